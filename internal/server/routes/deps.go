package routes

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/cachesync/cachesync/internal/cachestate"
	"github.com/cachesync/cachesync/internal/confirm"
	"github.com/cachesync/cachesync/internal/dispatch"
	"github.com/cachesync/cachesync/internal/notice"
	"github.com/cachesync/cachesync/internal/session"
	"github.com/cachesync/cachesync/internal/versions"
)

// ListenerStatus 报告进度订阅是否在运行。
type ListenerStatus interface {
	Running() bool
}

// Dependencies 汇总路由需要的组件，由 main 在启动阶段构建一次。
type Dependencies struct {
	Logger     *logrus.Logger
	Store      *cachestate.Store
	Registry   *versions.Registry
	Dispatcher *dispatch.Dispatcher
	Gate       *confirm.Gate
	Session    *session.Session
	Notices    *notice.Feed
	Listener   ListenerStatus
	StartedAt  time.Time
	Version    string
}

// Register 挂载全部路由组。
func Register(app *fiber.App, deps Dependencies) {
	if app == nil {
		return
	}
	RegisterDiagnosticsRoutes(app, deps)
	RegisterSessionRoutes(app, deps)
	RegisterCommandRoutes(app, deps)
	RegisterConfirmationRoutes(app, deps)
}
