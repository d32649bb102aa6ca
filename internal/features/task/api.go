package task

import (
	"github.com/gofiber/fiber/v2"

	"bank-approvals/internal/config"
	"bank-approvals/internal/middleware"
)

type TaskApi struct {
	controller *TaskController
	config     *config.Config
}

func NewTaskApi(controller *TaskController, config *config.Config) *TaskApi {
	return &TaskApi{
		controller: controller,
		config:     config,
	}
}

func (h *TaskApi) Setup(app *fiber.App) {
	tasks := app.Group("/api/tasks", middleware.AuthMiddleware(h.config.SkipAuth))

	tasks.Get("/", h.controller.ListTasks)
	tasks.Get("/workflow/:workflowId", h.controller.ListWorkflowTasks)
	tasks.Get("/:id", h.controller.GetTask)
}
