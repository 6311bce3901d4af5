package listener

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/cachesync/cachesync/internal/cachestate"
)

// ErrAlreadyRunning 表示监听已经建立，同一视图只允许一个订阅。
var ErrAlreadyRunning = errors.New("progress listener already running")

// Subscriber 提供 worker 进度流；ctx 取消后返回的 channel 会被关闭。
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan cachestate.ProgressEvent, error)
}

// Merger 是进度事件的落点，通常为 *cachestate.Store。
type Merger interface {
	Merge(cachestate.ProgressEvent)
}

// Listener 将进度流中的每条消息原样转交给 Merger，不做缓冲、节流或重排。
type Listener struct {
	source Subscriber
	sink   Merger
	logger *logrus.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New 构建 Listener；logger 可为空。
func New(source Subscriber, sink Merger, logger *logrus.Logger) *Listener {
	return &Listener{source: source, sink: sink, logger: logger}
}

// Start 建立订阅并启动转发循环。重复调用返回 ErrAlreadyRunning。
// 握手阶段受 ctx 约束（超时或取消即返回错误），建立后的订阅与 ctx 脱离，
// 只由 Stop 结束。握手期间调用 Stop 会中止握手。
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.cancel != nil {
		l.mu.Unlock()
		return ErrAlreadyRunning
	}
	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	l.cancel = cancel
	l.done = done
	l.mu.Unlock()

	stopHandshake := context.AfterFunc(ctx, cancel)
	events, err := l.source.Subscribe(subCtx)
	if !stopHandshake() {
		// ctx 在握手完成前结束，订阅即使已建立也要放弃
		err = ctx.Err()
	}
	if err != nil {
		cancel()
		l.release(done)
		close(done)
		return fmt.Errorf("subscribe progress: %w", err)
	}

	go l.forward(subCtx, events, done)
	l.log(logrus.InfoLevel, "progress_subscribed")
	return nil
}

// Stop 取消订阅并等待转发循环退出；之后到达的事件全部丢弃。
func (l *Listener) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	l.log(logrus.InfoLevel, "progress_unsubscribed")
}

// Running 表示当前是否持有订阅。
func (l *Listener) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancel != nil
}

func (l *Listener) forward(ctx context.Context, events <-chan cachestate.ProgressEvent, done chan struct{}) {
	defer close(done)
	defer l.release(done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				if ctx.Err() == nil {
					l.log(logrus.WarnLevel, "progress_stream_closed")
				}
				return
			}
			if ctx.Err() != nil {
				return
			}
			l.sink.Merge(event)
			if l.logger != nil {
				l.logger.WithFields(logrus.Fields{
					"action":  "progress",
					"version": event.VersionID,
					"side":    event.Side().String(),
					"done":    event.Done,
					"items":   len(event.Items),
				}).Debug("progress merged")
			}
		}
	}
}

// release 在订阅仍属于 done 对应的这一次 Start 时清空运行状态，
// 使流被 worker 关闭后 Running 返回 false，且允许重新 Start。
func (l *Listener) release(done chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done != done {
		return
	}
	if l.cancel != nil {
		l.cancel()
	}
	l.cancel, l.done = nil, nil
}

func (l *Listener) log(level logrus.Level, msg string) {
	if l.logger == nil {
		return
	}
	l.logger.WithField("action", "progress_listener").Log(level, msg)
}
