package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
		return newFieldError("Global.LogLevel", "无法识别的日志级别")
	}
	if g.LogMaxSize < 0 {
		return newFieldError("Global.LogMaxSize", "不能为负数")
	}
	if g.LogMaxBackups < 0 {
		return newFieldError("Global.LogMaxBackups", "不能为负数")
	}
	if g.NoticeLimit <= 0 {
		return newFieldError("Global.NoticeLimit", "必须大于 0")
	}

	w := c.Worker
	if err := validateEndpoint(w.Endpoint); err != nil {
		return fmt.Errorf("Worker.WorkerEndpoint: %w", err)
	}
	if w.CommandTimeout.DurationValue() <= 0 {
		return newFieldError("Worker.CommandTimeout", "必须大于 0")
	}
	return nil
}

func validateEndpoint(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("缺少 worker 地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，worker: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("worker 缺少 Host: %s", raw)
	}
	return nil
}
