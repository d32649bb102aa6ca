package workflow

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"bank-approvals/internal/features/task"
	"bank-approvals/internal/features/template"
)

type WorkflowController struct {
	Orchestrator *Orchestrator
}

func NewWorkflowController(orchestrator *Orchestrator) *WorkflowController {
	return &WorkflowController{Orchestrator: orchestrator}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrWorkflowNotFound), errors.Is(err, template.ErrTemplateNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrNoActiveTemplate):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, ErrAlreadyDecided),
		errors.Is(err, ErrNotPendingApproval),
		errors.Is(err, ErrWorkflowTerminal),
		errors.Is(err, task.ErrTaskAlreadyResolved):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// Submit godoc
// @Summary Submit an entity for approval
// @Description Starts (or idempotently rejoins) the approval workflow for an entity
// @Tags workflows
// @Accept json
// @Produce json
// @Param submission body SubmitRequest true "Submission"
// @Success 202 {object} WorkflowSubject
// @Failure 422 {object} map[string]string "No active template for entity type"
// @Router /api/workflows/submit [post]
func (c *WorkflowController) Submit(ctx *fiber.Ctx) error {
	var req SubmitRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	subject, err := c.Orchestrator.Submit(ctx.UserContext(), req)
	if err != nil {
		return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.Status(fiber.StatusAccepted).JSON(subject)
}

// Approve godoc
// @Summary Record an approval decision
// @Tags workflows
// @Accept json
// @Param id path string true "Workflow ID"
// @Param decision body DecisionRequest true "Decision"
// @Success 200 {object} map[string]string
// @Failure 409 {object} map[string]string "ALREADY_DECIDED or TASK_ALREADY_RESOLVED"
// @Router /api/workflows/{id}/approve [post]
func (c *WorkflowController) Approve(ctx *fiber.Ctx) error {
	var req DecisionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := c.Orchestrator.Approve(ctx.UserContext(), ctx.Params("id"), req); err != nil {
		return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"message": "Decision recorded"})
}

// Reject godoc
// @Summary Record a rejection decision
// @Tags workflows
// @Accept json
// @Param id path string true "Workflow ID"
// @Param decision body DecisionRequest true "Decision"
// @Success 200 {object} map[string]string
// @Router /api/workflows/{id}/reject [post]
func (c *WorkflowController) Reject(ctx *fiber.Ctx) error {
	var req DecisionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := c.Orchestrator.Reject(ctx.UserContext(), ctx.Params("id"), req); err != nil {
		return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"message": "Decision recorded"})
}

// Cancel godoc
// @Summary Cancel a workflow
// @Description Legal from any non-terminal state; approve/reject callbacks do not run
// @Tags workflows
// @Accept json
// @Param id path string true "Workflow ID"
// @Param cancellation body CancelRequest true "Cancellation"
// @Success 200 {object} map[string]string
// @Router /api/workflows/{id}/cancel [post]
func (c *WorkflowController) Cancel(ctx *fiber.Ctx) error {
	var req CancelRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := c.Orchestrator.Cancel(ctx.UserContext(), ctx.Params("id"), req); err != nil {
		return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"message": "Workflow cancelled"})
}

// Status godoc
// @Summary Get workflow status
// @Description Live instance state when available, persisted state otherwise
// @Tags workflows
// @Produce json
// @Param id path string true "Workflow ID"
// @Success 200 {object} StatusResponse
// @Router /api/workflows/{id}/status [get]
func (c *WorkflowController) Status(ctx *fiber.Ctx) error {
	status, err := c.Orchestrator.Status(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(status)
}
