package workflow

import (
	"github.com/gofiber/fiber/v2"

	"bank-approvals/internal/config"
	"bank-approvals/internal/middleware"
)

type WorkflowApi struct {
	controller *WorkflowController
	config     *config.Config
}

func NewWorkflowApi(controller *WorkflowController, config *config.Config) *WorkflowApi {
	return &WorkflowApi{
		controller: controller,
		config:     config,
	}
}

func (h *WorkflowApi) Setup(app *fiber.App) {
	workflows := app.Group("/api/workflows", middleware.AuthMiddleware(h.config.SkipAuth))

	workflows.Post("/submit", h.controller.Submit)
	workflows.Post("/:id/approve", h.controller.Approve)
	workflows.Post("/:id/reject", h.controller.Reject)
	workflows.Post("/:id/cancel", h.controller.Cancel)
	workflows.Get("/:id/status", h.controller.Status)
}
