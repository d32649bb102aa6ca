package template

import (
	"github.com/gofiber/fiber/v2"

	"bank-approvals/internal/config"
	"bank-approvals/internal/middleware"
)

type TemplateApi struct {
	controller *TemplateController
	config     *config.Config
}

func NewTemplateApi(controller *TemplateController, config *config.Config) *TemplateApi {
	return &TemplateApi{
		controller: controller,
		config:     config,
	}
}

func (h *TemplateApi) Setup(app *fiber.App) {
	templates := app.Group("/api/templates", middleware.AuthMiddleware(h.config.SkipAuth))

	templates.Post("/", h.controller.CreateTemplate)
	templates.Get("/", h.controller.ListTemplates)
	templates.Get("/:id", h.controller.GetTemplate)
	templates.Put("/:id", h.controller.UpdateTemplate)
	templates.Delete("/:id", h.controller.DeleteTemplate)
	templates.Post("/:id/publish", h.controller.PublishTemplate)
	templates.Post("/:id/deactivate", h.controller.DeactivateTemplate)
	templates.Post("/:id/test", h.controller.TestTemplate)
}
