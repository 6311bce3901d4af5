package notice

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Level 区分成功与失败通知，对应界面层的 alertSuccess/alertError。
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice 是一条面向用户的结果通知。
type Notice struct {
	ID     string    `json:"id"`
	Level  Level     `json:"level"`
	Key    string    `json:"key"`
	Params Params    `json:"params,omitempty"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

// Reporter 接收命令层产出的通知。
type Reporter interface {
	Success(key string, params Params)
	Failure(key string, params Params)
}

// Feed 将通知保存在定长环形列表中，同时写入结构化日志，供 UI 轮询。
type Feed struct {
	mu     sync.Mutex
	limit  int
	items  []Notice
	logger *logrus.Logger
	now    func() time.Time
}

// NewFeed 创建最多保留 limit 条通知的 Feed，limit<=0 时退回 100。
func NewFeed(limit int, logger *logrus.Logger) *Feed {
	if limit <= 0 {
		limit = 100
	}
	return &Feed{
		limit:  limit,
		logger: logger,
		now:    time.Now,
	}
}

func (f *Feed) Success(key string, params Params) {
	f.push(LevelSuccess, key, params)
}

func (f *Feed) Failure(key string, params Params) {
	f.push(LevelError, key, params)
}

// List 返回按时间先后排列的通知副本。
func (f *Feed) List() []Notice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Notice(nil), f.items...)
}

func (f *Feed) push(level Level, key string, params Params) {
	n := Notice{
		ID:     uuid.NewString(),
		Level:  level,
		Key:    key,
		Params: params,
		Text:   Render(key, params),
		At:     f.now().UTC(),
	}

	f.mu.Lock()
	f.items = append(f.items, n)
	if overflow := len(f.items) - f.limit; overflow > 0 {
		f.items = append([]Notice(nil), f.items[overflow:]...)
	}
	f.mu.Unlock()

	if f.logger == nil {
		return
	}
	entry := f.logger.WithFields(logrus.Fields{
		"action":    "notice",
		"notice_id": n.ID,
		"key":       key,
	})
	if level == LevelError {
		entry.Warn(n.Text)
		return
	}
	entry.Info(n.Text)
}
