package versions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/cachesync/cachesync/internal/notice"
)

// ErrRegistryUnavailable 表示尚未成功拉取过版本列表。
var ErrRegistryUnavailable = errors.New("version registry not loaded")

// ErrVersionNotFound 表示指定版本不在当前列表中。
var ErrVersionNotFound = errors.New("version not found")

// Catalog 是外部目录服务的调用契约。
type Catalog interface {
	ListVersions(ctx context.Context) ([]Version, error)
	ImportVersion(ctx context.Context, uri string) (string, error)
	AddVersionManual(ctx context.Context, name, assetURL string) error
	RemoveVersion(ctx context.Context, versionID string, deleteCaches bool) error
}

// Registry 缓存最近一次成功拉取的版本列表；除此之外不做任何缓存策略。
type Registry struct {
	catalog  Catalog
	reporter notice.Reporter
	logger   *logrus.Logger

	mu       sync.RWMutex
	loaded   bool
	versions []Version
	byID     map[string]int
}

// NewRegistry 构建 Registry，reporter 可为空。
func NewRegistry(catalog Catalog, reporter notice.Reporter, logger *logrus.Logger) *Registry {
	return &Registry{
		catalog:  catalog,
		reporter: reporter,
		logger:   logger,
	}
}

// Refresh 整体替换版本列表；失败时保留上一次成功的结果并返回错误。
func (r *Registry) Refresh(ctx context.Context) error {
	list, err := r.catalog.ListVersions(ctx)
	if err != nil {
		return fmt.Errorf("list versions: %w", err)
	}

	byID := make(map[string]int, len(list))
	copied := make([]Version, 0, len(list))
	for _, v := range list {
		if _, dup := byID[v.ID]; dup {
			continue
		}
		byID[v.ID] = len(copied)
		copied = append(copied, v)
	}

	r.mu.Lock()
	r.versions = copied
	r.byID = byID
	r.loaded = true
	r.mu.Unlock()

	if r.logger != nil {
		r.logger.WithFields(logrus.Fields{
			"action":   "versions_refresh",
			"versions": len(copied),
		}).Debug("版本列表已刷新")
	}
	return nil
}

// Versions 返回当前列表副本；第二个返回值为 false 表示尚未加载（区别于空列表）。
func (r *Registry) Versions() ([]Version, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.loaded {
		return nil, false
	}
	return append([]Version(nil), r.versions...), true
}

// Loaded 表示是否至少成功拉取过一次。
func (r *Registry) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// Lookup 根据 ID 查找版本。
func (r *Registry) Lookup(versionID string) (Version, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.byID[versionID]
	if !ok {
		return Version{}, false
	}
	return r.versions[idx], true
}

// Label 返回版本展示名；未知版本退回 ID。
func (r *Registry) Label(versionID string) string {
	if v, ok := r.Lookup(versionID); ok {
		return v.Label()
	}
	return versionID
}

// Import 通过清单路径导入版本，成功后刷新列表并返回新版本标签。
func (r *Registry) Import(ctx context.Context, manifestURI string) (string, error) {
	uri := strings.TrimSpace(manifestURI)
	if uri == "" {
		err := errors.New("manifest path is required")
		r.failure(notice.KeyBuildFailedImport, err)
		return "", err
	}

	label, err := r.catalog.ImportVersion(ctx, uri)
	if err == nil {
		err = r.Refresh(ctx)
	}
	if err != nil {
		r.failure(notice.KeyBuildFailedImport, err)
		return "", err
	}
	r.success(notice.KeyBuildImported, label)
	return label, nil
}

// AddManual 以名称 + 资源地址手动添加版本。
func (r *Registry) AddManual(ctx context.Context, name, assetURL string) error {
	asset := strings.TrimSpace(assetURL)
	if asset == "" {
		err := errors.New("asset url is required")
		r.failure(notice.KeyBuildFailedAdd, err)
		return err
	}

	err := r.catalog.AddVersionManual(ctx, name, asset)
	if err == nil {
		err = r.Refresh(ctx)
	}
	if err != nil {
		r.failure(notice.KeyBuildFailedAdd, err)
		return err
	}
	r.success(notice.KeyBuildAdded, name)
	return nil
}

// Remove 从目录中移除版本，deleteCaches 为 true 时由 worker 一并删除其缓存。
func (r *Registry) Remove(ctx context.Context, versionID string, deleteCaches bool) error {
	v, ok := r.Lookup(versionID)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrVersionNotFound, versionID)
		r.failure(notice.KeyBuildFailedRemove, err)
		return err
	}

	err := r.catalog.RemoveVersion(ctx, versionID, deleteCaches)
	if err == nil {
		err = r.Refresh(ctx)
	}
	if err != nil {
		r.failure(notice.KeyBuildFailedRemove, err)
		return err
	}
	r.success(notice.KeyBuildRemoved, v.Label())
	return nil
}

func (r *Registry) success(key, name string) {
	if r.reporter != nil {
		r.reporter.Success(key, notice.Params{"name": name})
	}
}

func (r *Registry) failure(key string, err error) {
	if r.reporter != nil {
		r.reporter.Failure(key, notice.Params{"error": err.Error()})
	}
}
