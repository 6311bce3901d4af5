package routes

import (
	"time"

	"github.com/gofiber/fiber/v3"
)

// RegisterDiagnosticsRoutes 暴露 /-/ 前缀的只读接口：缓存快照、版本列表、通知与运行状态。
func RegisterDiagnosticsRoutes(app *fiber.App, deps Dependencies) {
	app.Get("/-/cache", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"records": deps.Store.Snapshot()})
	})

	app.Get("/-/cache/:id", func(c fiber.Ctx) error {
		rec, ok := deps.Store.Record(c.Params("id"))
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "record_not_found")
		}
		return c.JSON(rec)
	})

	app.Get("/-/versions", func(c fiber.Ctx) error {
		list, loaded := deps.Registry.Versions()
		return c.JSON(fiber.Map{
			"loaded":   loaded,
			"versions": encodeVersions(list),
		})
	})

	app.Get("/-/notices", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"notices": deps.Notices.List()})
	})

	app.Get("/-/status", func(c fiber.Ctx) error {
		_, pending := deps.Gate.Pending()
		listening := false
		if deps.Listener != nil {
			listening = deps.Listener.Running()
		}
		return c.JSON(fiber.Map{
			"version":              deps.Version,
			"active":               deps.Session.Active(),
			"listening":            listening,
			"versions_loaded":      deps.Registry.Loaded(),
			"tracked":              deps.Store.Len(),
			"pending_confirmation": pending,
			"uptime_seconds":       int64(time.Since(deps.StartedAt) / time.Second),
		})
	})
}
