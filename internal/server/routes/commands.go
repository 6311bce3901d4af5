package routes

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/cachesync/cachesync/internal/confirm"
	"github.com/cachesync/cachesync/internal/dispatch"
	"github.com/cachesync/cachesync/internal/server"
)

// RegisterCommandRoutes 暴露缓存命令。非破坏性命令直接执行；
// 破坏性命令只生成待确认请求并返回 202。
func RegisterCommandRoutes(app *fiber.App, deps Dependencies) {
	app.Post("/versions/:id/offline/download", func(c fiber.Ctx) error {
		id, err := knownVersion(c, deps)
		if err != nil {
			return err
		}
		return renderOutcome(c, deps.Dispatcher.DownloadOffline(c.Context(), id))
	})

	app.Post("/versions/:id/offline/repair", func(c fiber.Ctx) error {
		id, err := knownVersion(c, deps)
		if err != nil {
			return err
		}
		return renderOutcome(c, deps.Dispatcher.RepairOffline(c.Context(), id))
	})

	targeted := map[string]confirm.Action{
		"/versions/:id/game/clear":     confirm.ActionClearGame,
		"/versions/:id/offline/delete": confirm.ActionDeleteOffline,
	}
	for path, action := range targeted {
		action := action
		app.Post(path, func(c fiber.Ctx) error {
			id, err := knownVersion(c, deps)
			if err != nil {
				return err
			}
			return requestConfirmation(c, deps, action, id)
		})
	}

	// 只移除版本时直接执行；连同缓存一起删除需要确认。
	app.Post("/versions/:id/remove", func(c fiber.Ctx) error {
		id, err := knownVersion(c, deps)
		if err != nil {
			return err
		}
		var req removeRequest
		if len(c.Body()) > 0 {
			if err := c.Bind().JSON(&req); err != nil {
				return server.RenderError(c, fiber.StatusBadRequest, "invalid_body", err)
			}
		}
		if req.DeleteCaches {
			return requestConfirmation(c, deps, confirm.ActionRemoveBuild, id)
		}
		if err := deps.Session.RemoveVersion(c.Context(), id, false); err != nil {
			return server.RenderError(c, fiber.StatusBadGateway, "remove_failed", err)
		}
		return c.JSON(fiber.Map{"removed": id, "delete_caches": false})
	})

	app.Post("/cache/game/clear", func(c fiber.Ctx) error {
		return requestConfirmation(c, deps, confirm.ActionClearAllGame, "")
	})
	app.Post("/cache/offline/delete", func(c fiber.Ctx) error {
		return requestConfirmation(c, deps, confirm.ActionDeleteAllOffline, "")
	})
}

type removeRequest struct {
	DeleteCaches bool `json:"delete_caches"`
}

func knownVersion(c fiber.Ctx, deps Dependencies) (string, error) {
	id := c.Params("id")
	if _, ok := deps.Registry.Lookup(id); !ok {
		return "", fiber.NewError(fiber.StatusNotFound, "version_not_found")
	}
	return id, nil
}

func requestConfirmation(c fiber.Ctx, deps Dependencies, action confirm.Action, versionID string) error {
	prompt, err := deps.Gate.Request(action, versionID)
	switch {
	case err == nil:
		return c.Status(fiber.StatusAccepted).JSON(prompt)
	case errors.Is(err, confirm.ErrUnknownAction):
		return server.RenderError(c, fiber.StatusNotImplemented, "action_unavailable", err)
	default:
		return server.RenderError(c, fiber.StatusBadRequest, "invalid_action", err)
	}
}

func renderOutcome(c fiber.Ctx, out dispatch.Outcome) error {
	status := fiber.StatusOK
	if !out.OK() {
		status = fiber.StatusBadGateway
	}
	return c.Status(status).JSON(encodeOutcome(out))
}
