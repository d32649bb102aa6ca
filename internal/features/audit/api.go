package audit

import (
	"github.com/gofiber/fiber/v2"

	"bank-approvals/internal/config"
	"bank-approvals/internal/middleware"
)

type AuditApi struct {
	controller *AuditController
	config     *config.Config
}

func NewAuditApi(controller *AuditController, config *config.Config) *AuditApi {
	return &AuditApi{
		controller: controller,
		config:     config,
	}
}

func (h *AuditApi) Setup(app *fiber.App) {
	audit := app.Group("/api/audit", middleware.AuthMiddleware(h.config.SkipAuth))

	audit.Get("/", h.controller.ListLogs)
	audit.Get("/workflow/:workflowId", h.controller.ListWorkflowLogs)
	audit.Get("/workflow/:workflowId/export", h.controller.ExportWorkflowLogs)
}
