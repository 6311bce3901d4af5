package session

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"

	"github.com/cachesync/cachesync/internal/cachestate"
	"github.com/cachesync/cachesync/internal/dispatch"
	"github.com/cachesync/cachesync/internal/listener"
	"github.com/cachesync/cachesync/internal/logging"
	"github.com/cachesync/cachesync/internal/versions"
)

// Validator 发出单侧校验命令。
type Validator interface {
	Validate(ctx context.Context, versionID string, side cachestate.Side) dispatch.Outcome
}

// ProgressListener 是视图生命周期内的进度订阅。
type ProgressListener interface {
	Start(ctx context.Context) error
	Stop()
	Running() bool
}

type sideKey struct {
	versionID string
	side      cachestate.Side
}

// Session 表示拥有缓存状态的视图：激活时订阅进度并为新版本补齐记录、
// 每个 (version, side) 只发起一次校验；失活时退订并整体丢弃记录。
type Session struct {
	registry  *versions.Registry
	store     *cachestate.Store
	validator Validator
	listener  ProgressListener
	logger    *logrus.Logger

	mu        sync.Mutex
	active    bool
	validated map[sideKey]struct{}
}

// New 构建 Session，logger 可为空。
func New(registry *versions.Registry, store *cachestate.Store, validator Validator, progress ProgressListener, logger *logrus.Logger) *Session {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Session{
		registry:  registry,
		store:     store,
		validator: validator,
		listener:  progress,
		logger:    logger,
		validated: make(map[sideKey]struct{}),
	}
}

// Active 表示视图当前是否处于激活状态。
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Activate 建立进度订阅；若尚无版本列表则先拉取，再执行 Bootstrap。
// 重复激活只会重新执行 Bootstrap，不会重复校验已处理的版本；
// 若进度流已被 worker 关闭，重复激活会重新订阅。
// 订阅握手受 ctx 约束，且不持有会话锁，握手挂起时 Deactivate 仍可立即执行。
func (s *Session) Activate(ctx context.Context) ([]dispatch.Outcome, error) {
	if !s.listener.Running() {
		if err := s.listener.Start(ctx); err != nil && !errors.Is(err, listener.ErrAlreadyRunning) {
			return nil, err
		}
	}

	s.mu.Lock()
	if !s.active {
		s.active = true
		s.logger.WithField("action", "session_activate").Info("视图已激活")
	}
	s.mu.Unlock()

	if !s.registry.Loaded() {
		if err := s.registry.Refresh(ctx); err != nil {
			return nil, err
		}
	}
	return s.Bootstrap(ctx), nil
}

// Deactivate 退订进度流并丢弃全部记录与校验集合，下次激活重新开始。
// 即使激活仍在握手，也会中止握手。
func (s *Session) Deactivate() {
	s.mu.Lock()
	wasActive := s.active
	s.active = false
	s.validated = make(map[sideKey]struct{})
	s.mu.Unlock()

	s.listener.Stop()
	s.store.Reset()
	if wasActive {
		s.logger.WithField("action", "session_deactivate").Info("视图已失活")
	}
}

// Bootstrap 为当前版本列表中的每个版本确保存在记录，并对尚未校验的
// (version, side) 发起一次校验。视图未激活或版本列表未加载时不做任何事。
func (s *Session) Bootstrap(ctx context.Context) []dispatch.Outcome {
	list, ok := s.registry.Versions()
	if !ok {
		return nil
	}

	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}
	var pending []sideKey
	for _, v := range list {
		s.store.EnsureTracked(v.ID)
		for _, side := range cachestate.Sides {
			key := sideKey{versionID: v.ID, side: side}
			if _, done := s.validated[key]; done {
				continue
			}
			s.validated[key] = struct{}{}
			pending = append(pending, key)
		}
	}
	s.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	outcomes := make([]dispatch.Outcome, len(pending))
	var wg conc.WaitGroup
	for i, key := range pending {
		i, key := i, key
		wg.Go(func() {
			s.logger.WithFields(logging.CommandFields(string(dispatch.CommandValidate), key.versionID, key.side.String())).
				Info("Validating cache for " + s.registry.Label(key.versionID))
			outcomes[i] = s.validator.Validate(ctx, key.versionID, key.side)
		})
	}
	wg.Wait()
	return outcomes
}

// Validated 表示某个 (version, side) 在本次会话中是否已发起过校验。
func (s *Session) Validated(versionID string, side cachestate.Side) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.validated[sideKey{versionID: versionID, side: side}]
	return ok
}

// Refresh 重新拉取版本列表，并为新出现的版本执行 Bootstrap。
func (s *Session) Refresh(ctx context.Context) error {
	if err := s.registry.Refresh(ctx); err != nil {
		return err
	}
	s.Bootstrap(ctx)
	return nil
}

// ImportVersion 通过清单导入版本，成功后对新版本执行 Bootstrap。
func (s *Session) ImportVersion(ctx context.Context, manifestURI string) (string, error) {
	label, err := s.registry.Import(ctx, manifestURI)
	if err != nil {
		return "", err
	}
	s.Bootstrap(ctx)
	return label, nil
}

// AddVersionManual 手动添加版本，成功后对新版本执行 Bootstrap。
func (s *Session) AddVersionManual(ctx context.Context, name, assetURL string) error {
	if err := s.registry.AddManual(ctx, name, assetURL); err != nil {
		return err
	}
	s.Bootstrap(ctx)
	return nil
}

// RemoveVersion 从目录移除版本。记录不会被主动删除，与其余记录一起在失活时丢弃。
func (s *Session) RemoveVersion(ctx context.Context, versionID string, deleteCaches bool) error {
	return s.registry.Remove(ctx, versionID, deleteCaches)
}
