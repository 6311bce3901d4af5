package config

import (
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(testConfigPath(t, "valid.toml"))
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.Global.ListenPort != 5100 {
		t.Fatalf("ListenPort 应当被解析，得到 %d", cfg.Global.ListenPort)
	}
	if cfg.Global.NoticeLimit != 100 {
		t.Fatalf("NoticeLimit 应该自动填充默认值")
	}
	if cfg.Worker.Endpoint != "http://127.0.0.1:7300" {
		t.Fatalf("WorkerEndpoint 应去掉末尾斜杠，得到 %s", cfg.Worker.Endpoint)
	}
	if cfg.Worker.CommandTimeout.DurationValue() != 15*time.Second {
		t.Fatalf("CommandTimeout 解析错误: %s", cfg.Worker.CommandTimeout.DurationValue())
	}
}

func TestValidateRejectsMissingWorker(t *testing.T) {
	if _, err := Load(testConfigPath(t, "missing.toml")); err == nil {
		t.Fatalf("缺少 WorkerEndpoint 的配置应返回错误")
	}
}

func TestValidateEnforcesListenPortRange(t *testing.T) {
	cfg := validConfig()
	cfg.Global.ListenPort = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatalf("ListenPort 超出范围应当报错")
	}
}

func TestValidateReturnsFieldError(t *testing.T) {
	cfg := validConfig()
	cfg.Worker.CommandTimeout = 0
	err := cfg.Validate()
	fieldErr, ok := err.(FieldError)
	if !ok {
		t.Fatalf("expected FieldError, got %T (%v)", err, err)
	}
	if fieldErr.Field != "Worker.CommandTimeout" {
		t.Fatalf("unexpected field: %s", fieldErr.Field)
	}
}

func TestWorkerEndpointValidation(t *testing.T) {
	testCases := []struct {
		name      string
		endpoint  string
		shouldErr bool
	}{
		{"http ok", "http://127.0.0.1:7300", false},
		{"https ok", "https://worker.local", false},
		{"empty", "", true},
		{"bad scheme", "ftp://worker.local", true},
		{"missing host", "http://", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Worker.Endpoint = tc.endpoint
			err := cfg.Validate()
			if tc.shouldErr && err == nil {
				t.Fatalf("expected error for endpoint %q", tc.endpoint)
			}
			if !tc.shouldErr && err != nil {
				t.Fatalf("unexpected error for endpoint %q: %v", tc.endpoint, err)
			}
		})
	}
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Global.LogLevel = "chatty"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("未知日志级别应报错")
	}
}

func validConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			ListenPort:  5100,
			LogLevel:    "info",
			NoticeLimit: 10,
		},
		Worker: WorkerConfig{
			Endpoint:       "http://127.0.0.1:7300",
			CommandTimeout: Duration(time.Second),
		},
	}
}
