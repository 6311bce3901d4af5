package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/cachesync/cachesync/internal/cachestate"
	"github.com/cachesync/cachesync/internal/config"
	"github.com/cachesync/cachesync/internal/confirm"
	"github.com/cachesync/cachesync/internal/dispatch"
	"github.com/cachesync/cachesync/internal/listener"
	"github.com/cachesync/cachesync/internal/logging"
	"github.com/cachesync/cachesync/internal/notice"
	"github.com/cachesync/cachesync/internal/server"
	"github.com/cachesync/cachesync/internal/server/routes"
	"github.com/cachesync/cachesync/internal/session"
	"github.com/cachesync/cachesync/internal/version"
	"github.com/cachesync/cachesync/internal/versions"
	"github.com/cachesync/cachesync/internal/worker"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["worker"] = cfg.Worker.Endpoint
		fields["command_timeout"] = cfg.Worker.CommandTimeout.DurationValue().String()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	app, deps, err := buildApp(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化服务失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["worker"] = cfg.Worker.Endpoint
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Worker.ActivateOnStart {
		go activateOnStart(ctx, deps.Session, logger)
	}

	go func() {
		<-ctx.Done()
		deps.Session.Deactivate()
		if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
			logger.WithError(err).Warn("服务关闭超时")
		}
	}()

	if err := startHTTPServer(app, cfg.Global.ListenPort, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// buildApp 按“worker 客户端 → 版本目录 → 状态仓库 → 命令分发 → 进度订阅 →
// 视图会话 → 确认门 → Fiber app”的顺序装配组件，所有请求共享同一组实例。
func buildApp(cfg *config.Config, logger *logrus.Logger) (*fiber.App, routes.Dependencies, error) {
	client, err := worker.NewClient(cfg.Worker, logger)
	if err != nil {
		return nil, routes.Dependencies{}, err
	}

	feed := notice.NewFeed(cfg.Global.NoticeLimit, logger)
	registry := versions.NewRegistry(client, feed, logger)
	store := cachestate.NewStore()
	store.Subscribe(func(rec cachestate.Record) {
		logger.WithFields(logrus.Fields{
			"action":       "cache_record",
			"version":      rec.VersionID,
			"game_done":    rec.GameDone(),
			"offline_done": rec.OfflineDone(),
		}).Debug("缓存记录已更新")
	})
	dispatcher := dispatch.New(dispatch.Options{
		Worker:   client,
		Store:    store,
		Labels:   registry,
		Reporter: feed,
		Logger:   logger,
	})
	progress := listener.New(client, store, logger)
	sess := session.New(registry, store, dispatcher, progress, logger)
	gate := confirm.NewGate(dispatcher, registry, sess, logger)

	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		ListenPort: cfg.Global.ListenPort,
	})
	if err != nil {
		return nil, routes.Dependencies{}, err
	}

	deps := routes.Dependencies{
		Logger:     logger,
		Store:      store,
		Registry:   registry,
		Dispatcher: dispatcher,
		Gate:       gate,
		Session:    sess,
		Notices:    feed,
		Listener:   progress,
		StartedAt:  time.Now(),
		Version:    version.Full(),
	}
	routes.Register(app, deps)
	return app, deps, nil
}

func activateOnStart(ctx context.Context, sess *session.Session, logger *logrus.Logger) {
	outcomes, err := sess.Activate(ctx)
	if err != nil {
		logger.WithField("action", "session_activate").WithError(err).Warn("启动时激活视图失败")
		return
	}
	failed := 0
	for _, out := range outcomes {
		if !out.OK() {
			failed++
		}
	}
	logger.WithFields(logrus.Fields{
		"action":      "session_activate",
		"validations": len(outcomes),
		"failed":      failed,
	}).Info("启动时已激活视图")
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("cachesync", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 CACHESYNC_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("CACHESYNC_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

func startHTTPServer(app *fiber.App, port int, logger *logrus.Logger) error {
	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port), fiber.ListenConfig{DisableStartupMessage: true})
}
