package routes

import (
	"github.com/gofiber/fiber/v3"

	"github.com/cachesync/cachesync/internal/server"
)

type importRequest struct {
	URI string `json:"uri"`
}

type manualRequest struct {
	Name     string `json:"name"`
	AssetURL string `json:"asset_url"`
}

// RegisterSessionRoutes 暴露视图生命周期与版本目录相关接口。
func RegisterSessionRoutes(app *fiber.App, deps Dependencies) {
	app.Post("/session/activate", func(c fiber.Ctx) error {
		outcomes, err := deps.Session.Activate(c.Context())
		if err != nil {
			return server.RenderError(c, fiber.StatusBadGateway, "activate_failed", err)
		}
		return c.JSON(fiber.Map{
			"active":   true,
			"outcomes": encodeOutcomes(outcomes),
		})
	})

	app.Post("/session/deactivate", func(c fiber.Ctx) error {
		deps.Session.Deactivate()
		return c.JSON(fiber.Map{"active": false})
	})

	app.Post("/versions/refresh", func(c fiber.Ctx) error {
		if err := deps.Session.Refresh(c.Context()); err != nil {
			return server.RenderError(c, fiber.StatusBadGateway, "registry_unavailable", err)
		}
		list, _ := deps.Registry.Versions()
		return c.JSON(fiber.Map{"versions": encodeVersions(list)})
	})

	app.Post("/versions/import", func(c fiber.Ctx) error {
		var req importRequest
		if err := c.Bind().JSON(&req); err != nil {
			return server.RenderError(c, fiber.StatusBadRequest, "invalid_body", err)
		}
		label, err := deps.Session.ImportVersion(c.Context(), req.URI)
		if err != nil {
			return server.RenderError(c, fiber.StatusUnprocessableEntity, "import_failed", err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"label": label})
	})

	app.Post("/versions", func(c fiber.Ctx) error {
		var req manualRequest
		if err := c.Bind().JSON(&req); err != nil {
			return server.RenderError(c, fiber.StatusBadRequest, "invalid_body", err)
		}
		if err := deps.Session.AddVersionManual(c.Context(), req.Name, req.AssetURL); err != nil {
			return server.RenderError(c, fiber.StatusUnprocessableEntity, "add_failed", err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"name": req.Name})
	})
}
