package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cachesync/cachesync/internal/cachestate"
	"github.com/cachesync/cachesync/internal/config"
	"github.com/cachesync/cachesync/internal/versions"
)

// RemoteError 表示 worker 返回了非 2xx 响应。
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("worker responded %d", e.Status)
	}
	return e.Message
}

// Client 实现 versions.Catalog、dispatch.Worker 与 listener.Subscriber。
type Client struct {
	base   *url.URL
	http   *http.Client
	stream *http.Client
	logger *logrus.Logger
}

// NewClient 基于 WorkerConfig 构建客户端，Endpoint 需为 http/https 地址。
func NewClient(cfg config.WorkerConfig, logger *logrus.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.Endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid worker endpoint: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid worker endpoint: %s", cfg.Endpoint)
	}

	return &Client{
		base:   base,
		http:   newCommandClient(cfg, defaultTransport.Clone()),
		stream: newStreamClient(cfg, defaultTransport.Clone()),
		logger: logger,
	}, nil
}

type versionsResponse struct {
	Versions []versions.Version `json:"versions"`
}

type cacheRequest struct {
	UUID    string `json:"uuid"`
	Offline bool   `json:"offline"`
	Repair  *bool  `json:"repair,omitempty"`
}

type importRequest struct {
	URI string `json:"uri"`
}

type importResponse struct {
	Label string `json:"label"`
}

type manualRequest struct {
	Name     string `json:"name"`
	AssetURL string `json:"asset_url"`
}

type removeRequest struct {
	UUID         string `json:"uuid"`
	DeleteCaches bool   `json:"delete_caches"`
}

// ListVersions 拉取完整版本列表。
func (c *Client) ListVersions(ctx context.Context) ([]versions.Version, error) {
	var resp versionsResponse
	if err := c.call(ctx, http.MethodGet, "/versions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Versions, nil
}

// ImportVersion 通过清单导入版本，返回 worker 给出的版本标签。
func (c *Client) ImportVersion(ctx context.Context, uri string) (string, error) {
	var resp importResponse
	if err := c.call(ctx, http.MethodPost, "/versions/import", importRequest{URI: uri}, &resp); err != nil {
		return "", err
	}
	return resp.Label, nil
}

func (c *Client) AddVersionManual(ctx context.Context, name, assetURL string) error {
	return c.call(ctx, http.MethodPost, "/versions", manualRequest{Name: name, AssetURL: assetURL}, nil)
}

func (c *Client) RemoveVersion(ctx context.Context, versionID string, deleteCaches bool) error {
	return c.call(ctx, http.MethodPost, "/versions/remove", removeRequest{UUID: versionID, DeleteCaches: deleteCaches}, nil)
}

// ValidateCache 请求 worker 重新检查某一侧缓存，结果经进度流返回。
func (c *Client) ValidateCache(ctx context.Context, versionID string, side cachestate.Side) error {
	return c.call(ctx, http.MethodPost, "/cache/validate", cacheRequest{UUID: versionID, Offline: side.Offline()}, nil)
}

// DownloadCache 启动下载；repair=true 时对已有缓存做强制校验修复。
func (c *Client) DownloadCache(ctx context.Context, versionID string, side cachestate.Side, repair bool) error {
	body := cacheRequest{UUID: versionID, Offline: side.Offline(), Repair: &repair}
	return c.call(ctx, http.MethodPost, "/cache/download", body, nil)
}

func (c *Client) DeleteCache(ctx context.Context, versionID string, side cachestate.Side) error {
	return c.call(ctx, http.MethodPost, "/cache/delete", cacheRequest{UUID: versionID, Offline: side.Offline()}, nil)
}

func (c *Client) endpoint(path string) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String()
}

func (c *Client) call(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeRemoteError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func decodeRemoteError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	remote := &RemoteError{Status: resp.StatusCode}

	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		remote.Message = payload.Error
	} else if text := strings.TrimSpace(string(raw)); text != "" {
		remote.Message = text
	}
	return remote
}
