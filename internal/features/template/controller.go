package template

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

type TemplateController struct {
	Service TemplateService
}

func NewTemplateController(service TemplateService) *TemplateController {
	return &TemplateController{Service: service}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrTemplateNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrTemplateActive), errors.Is(err, ErrTemplateExists):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// CreateTemplate godoc
// @Summary Create a workflow template
// @Description Create a new (inactive) approval workflow template
// @Tags templates
// @Accept json
// @Produce json
// @Param template body WorkflowTemplate true "Template"
// @Success 201 {object} WorkflowTemplate
// @Failure 400 {object} map[string]string "Invalid request body"
// @Router /api/templates [post]
func (c *TemplateController) CreateTemplate(ctx *fiber.Ctx) error {
	var input WorkflowTemplate
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	tpl, err := c.Service.CreateTemplate(ctx.UserContext(), input)
	if err != nil {
		return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.Status(fiber.StatusCreated).JSON(tpl)
}

// UpdateTemplate godoc
// @Summary Update a workflow template
// @Description Update an inactive template; bumps the version
// @Tags templates
// @Accept json
// @Param id path string true "Template ID"
// @Param template body WorkflowTemplate true "Template"
// @Success 200 {object} map[string]string
// @Router /api/templates/{id} [put]
func (c *TemplateController) UpdateTemplate(ctx *fiber.Ctx) error {
	id := ctx.Params("id")
	var input WorkflowTemplate
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := c.Service.UpdateTemplate(ctx.UserContext(), id, input); err != nil {
		return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.JSON(fiber.Map{"message": "Template updated successfully"})
}

// PublishTemplate godoc
// @Summary Publish a workflow template
// @Description Activate a template, deactivating the prior active template for the entity type
// @Tags templates
// @Param id path string true "Template ID"
// @Success 200 {object} map[string]string
// @Router /api/templates/{id}/publish [post]
func (c *TemplateController) PublishTemplate(ctx *fiber.Ctx) error {
	if err := c.Service.Publish(ctx.UserContext(), ctx.Params("id")); err != nil {
		return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"message": "Template published successfully"})
}

// DeactivateTemplate godoc
// @Summary Deactivate a workflow template
// @Tags templates
// @Param id path string true "Template ID"
// @Success 200 {object} map[string]string
// @Router /api/templates/{id}/deactivate [post]
func (c *TemplateController) DeactivateTemplate(ctx *fiber.Ctx) error {
	if err := c.Service.Deactivate(ctx.UserContext(), ctx.Params("id")); err != nil {
		return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"message": "Template deactivated"})
}

// DeleteTemplate godoc
// @Summary Delete a workflow template
// @Description Delete an inactive template
// @Tags templates
// @Param id path string true "Template ID"
// @Success 204 {object} nil
// @Router /api/templates/{id} [delete]
func (c *TemplateController) DeleteTemplate(ctx *fiber.Ctx) error {
	if err := c.Service.DeleteTemplate(ctx.UserContext(), ctx.Params("id")); err != nil {
		return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

// GetTemplate godoc
// @Summary Get a template by ID
// @Tags templates
// @Produce json
// @Param id path string true "Template ID"
// @Success 200 {object} WorkflowTemplate
// @Router /api/templates/{id} [get]
func (c *TemplateController) GetTemplate(ctx *fiber.Ctx) error {
	tpl, err := c.Service.GetTemplate(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if tpl == nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Template not found"})
	}
	return ctx.JSON(tpl)
}

// ListTemplates godoc
// @Summary List templates
// @Tags templates
// @Produce json
// @Param entityType query string false "Entity type filter"
// @Success 200 {array} WorkflowTemplate
// @Router /api/templates [get]
func (c *TemplateController) ListTemplates(ctx *fiber.Ctx) error {
	templates, err := c.Service.ListTemplates(ctx.UserContext(), ctx.Query("entityType"))
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(templates)
}

// TestTemplate godoc
// @Summary Dry-run a template against sample metadata
// @Description Evaluates the template's decision tables and returns the computed plan without side effects
// @Tags templates
// @Accept json
// @Produce json
// @Param id path string true "Template ID"
// @Param metadata body map[string]interface{} true "Entity metadata"
// @Success 200 {object} decision.ComputedApprovalPlan
// @Router /api/templates/{id}/test [post]
func (c *TemplateController) TestTemplate(ctx *fiber.Ctx) error {
	var metadata map[string]interface{}
	if err := ctx.BodyParser(&metadata); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	plan, err := c.Service.TestTemplate(ctx.UserContext(), ctx.Params("id"), metadata)
	if err != nil {
		return ctx.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(plan)
}
