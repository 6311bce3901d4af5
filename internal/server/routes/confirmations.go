package routes

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/cachesync/cachesync/internal/confirm"
	"github.com/cachesync/cachesync/internal/server"
)

// RegisterConfirmationRoutes 暴露待确认请求的查询、确认与取消。
func RegisterConfirmationRoutes(app *fiber.App, deps Dependencies) {
	app.Get("/confirmations/pending", func(c fiber.Ctx) error {
		prompt, ok := deps.Gate.Pending()
		if !ok {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.JSON(prompt)
	})

	app.Post("/confirmations/:id/confirm", func(c fiber.Ctx) error {
		result, err := deps.Gate.Confirm(c.Context(), c.Params("id"))
		if err != nil {
			return renderGateError(c, err)
		}
		payload := fiber.Map{
			"prompt":   result.Prompt,
			"outcomes": encodeOutcomes(result.Outcomes),
		}
		if result.Err != nil {
			payload["error"] = result.Err.Error()
		}
		return c.JSON(payload)
	})

	app.Post("/confirmations/:id/decline", func(c fiber.Ctx) error {
		if err := deps.Gate.Decline(c.Params("id")); err != nil {
			return renderGateError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func renderGateError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, confirm.ErrNoPendingPrompt):
		return server.RenderError(c, fiber.StatusNotFound, "no_pending_confirmation", err)
	case errors.Is(err, confirm.ErrPromptMismatch):
		return server.RenderError(c, fiber.StatusConflict, "confirmation_mismatch", err)
	default:
		return server.RenderError(c, fiber.StatusInternalServerError, "confirmation_failed", err)
	}
}
