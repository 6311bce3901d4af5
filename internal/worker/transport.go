package worker

import (
	"net"
	"net/http"
	"time"

	"github.com/cachesync/cachesync/internal/config"
)

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          32,
	MaxIdleConnsPerHost:   32,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	DialContext: (&net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// newCommandClient 返回用于目录/命令调用的 http.Client，受 CommandTimeout 约束。
func newCommandClient(cfg config.WorkerConfig, transport http.RoundTripper) *http.Client {
	return &http.Client{
		Timeout:   commandTimeout(cfg),
		Transport: transport,
	}
}

// newStreamClient 返回不设整体超时的 http.Client，用于长连接进度流；
// 响应头仍需在 CommandTimeout 内返回，避免握手无限挂起。
func newStreamClient(cfg config.WorkerConfig, transport *http.Transport) *http.Client {
	transport.ResponseHeaderTimeout = commandTimeout(cfg)
	return &http.Client{Transport: transport}
}

func commandTimeout(cfg config.WorkerConfig) time.Duration {
	if cfg.CommandTimeout.DurationValue() > 0 {
		return cfg.CommandTimeout.DurationValue()
	}
	return 30 * time.Second
}
