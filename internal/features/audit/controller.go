package audit

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

type AuditController struct {
	Service AuditService
}

func NewAuditController(service AuditService) *AuditController {
	return &AuditController{Service: service}
}

// ListLogs godoc
// @Summary List audit rows
// @Tags audit
// @Produce json
// @Param page query int false "Page (default 1)"
// @Param limit query int false "Page size (default 50)"
// @Success 200 {array} WorkflowAuditLog
// @Router /api/audit [get]
func (c *AuditController) ListLogs(ctx *fiber.Ctx) error {
	page, _ := strconv.ParseInt(ctx.Query("page", "1"), 10, 64)
	limit, _ := strconv.ParseInt(ctx.Query("limit", "50"), 10, 64)

	entries, err := c.Service.List(ctx.UserContext(), page, limit)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if entries == nil {
		entries = []WorkflowAuditLog{}
	}
	return ctx.JSON(entries)
}

// ListWorkflowLogs godoc
// @Summary List a workflow's transition trail
// @Tags audit
// @Produce json
// @Param workflowId path string true "Workflow ID"
// @Success 200 {array} WorkflowAuditLog
// @Router /api/audit/workflow/{workflowId} [get]
func (c *AuditController) ListWorkflowLogs(ctx *fiber.Ctx) error {
	entries, err := c.Service.ListByWorkflow(ctx.UserContext(), ctx.Params("workflowId"))
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if entries == nil {
		entries = []WorkflowAuditLog{}
	}
	return ctx.JSON(entries)
}

// ExportWorkflowLogs godoc
// @Summary Export a workflow's transition trail as XLSX
// @Tags audit
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param workflowId path string true "Workflow ID"
// @Success 200 {file} binary
// @Router /api/audit/workflow/{workflowId}/export [get]
func (c *AuditController) ExportWorkflowLogs(ctx *fiber.Ctx) error {
	data, filename, err := c.Service.ExportWorkflow(ctx.UserContext(), ctx.Params("workflowId"))
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	ctx.Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	ctx.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	return ctx.Send(data)
}
