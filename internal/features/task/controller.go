package task

import (
	"github.com/gofiber/fiber/v2"
)

type TaskController struct {
	Service TaskService
}

func NewTaskController(service TaskService) *TaskController {
	return &TaskController{Service: service}
}

// ListTasks godoc
// @Summary List approval tasks assigned to a user or role
// @Description Task inbox; matches on assignee user id or required role
// @Tags tasks
// @Produce json
// @Param assignee query string true "User ID or role name"
// @Param open query bool false "Only open tasks (default true)"
// @Success 200 {array} ApprovalTask
// @Router /api/tasks [get]
func (c *TaskController) ListTasks(ctx *fiber.Ctx) error {
	assignee := ctx.Query("assignee")
	if assignee == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "assignee query parameter is required"})
	}

	tasks, err := c.Service.ListByAssignee(ctx.UserContext(), assignee, ctx.QueryBool("open", true))
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if tasks == nil {
		tasks = []ApprovalTask{}
	}
	return ctx.JSON(tasks)
}

// GetTask godoc
// @Summary Get an approval task
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} ApprovalTask
// @Router /api/tasks/{id} [get]
func (c *TaskController) GetTask(ctx *fiber.Ctx) error {
	t, err := c.Service.GetTask(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if t == nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Task not found"})
	}
	return ctx.JSON(t)
}

// ListWorkflowTasks godoc
// @Summary List all tasks belonging to a workflow
// @Tags tasks
// @Produce json
// @Param workflowId path string true "Workflow ID"
// @Success 200 {array} ApprovalTask
// @Router /api/tasks/workflow/{workflowId} [get]
func (c *TaskController) ListWorkflowTasks(ctx *fiber.Ctx) error {
	tasks, err := c.Service.ListByWorkflow(ctx.UserContext(), ctx.Params("workflowId"))
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if tasks == nil {
		tasks = []ApprovalTask{}
	}
	return ctx.JSON(tasks)
}
