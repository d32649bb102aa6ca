package template

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"bank-approvals/internal/config"
	"bank-approvals/internal/features/decision"
	"bank-approvals/pkg/utils"
)

var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrTemplateActive   = errors.New("template is active")
	ErrTemplateExists   = errors.New("template already exists")
)

type TemplateService interface {
	CreateTemplate(ctx context.Context, tpl WorkflowTemplate) (*WorkflowTemplate, error)
	UpdateTemplate(ctx context.Context, templateID string, tpl WorkflowTemplate) error
	Publish(ctx context.Context, templateID string) error
	Deactivate(ctx context.Context, templateID string) error
	DeleteTemplate(ctx context.Context, templateID string) error
	GetTemplate(ctx context.Context, templateID string) (*WorkflowTemplate, error)
	GetActiveTemplate(ctx context.Context, entityType string) (*WorkflowTemplate, error)
	ListTemplates(ctx context.Context, entityType string) ([]WorkflowTemplate, error)

	// TestTemplate dry-runs the decision engine over caller-supplied
	// metadata. No side effects; usable against unpublished templates.
	TestTemplate(ctx context.Context, templateID string, metadata map[string]interface{}) (*decision.ComputedApprovalPlan, error)
}

type TemplateServiceImpl struct {
	Repo   TemplateRepository
	Engine *decision.Engine
	Config *config.Config
	Logger *zap.Logger
}

func NewTemplateService(repo TemplateRepository, engine *decision.Engine, cfg *config.Config, logger *zap.Logger) TemplateService {
	return &TemplateServiceImpl{
		Repo:   repo,
		Engine: engine,
		Config: cfg,
		Logger: logger,
	}
}

func (s *TemplateServiceImpl) CreateTemplate(ctx context.Context, tpl WorkflowTemplate) (*WorkflowTemplate, error) {
	if tpl.EntityType == "" {
		return nil, errors.New("entity type is required")
	}
	if tpl.TemplateID == "" {
		tpl.TemplateID = utils.Slugify(tpl.EntityType + "-" + tpl.Name)
	}

	existing, err := s.Repo.GetByTemplateID(ctx, tpl.TemplateID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrTemplateExists
	}

	// Templates always start inactive; only Publish activates.
	tpl.Active = false
	tpl.Version = 1
	if tpl.ApproverStrategy == "" {
		tpl.ApproverStrategy = SelectByRole
	}
	now := time.Now()
	tpl.CreatedAt = now
	tpl.UpdatedAt = now

	if err := s.Repo.Create(ctx, tpl); err != nil {
		return nil, err
	}

	s.Logger.Info("template created",
		zap.String("templateId", tpl.TemplateID),
		zap.String("entityType", tpl.EntityType))

	return &tpl, nil
}

func (s *TemplateServiceImpl) UpdateTemplate(ctx context.Context, templateID string, tpl WorkflowTemplate) error {
	existing, err := s.Repo.GetByTemplateID(ctx, templateID)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrTemplateNotFound
	}
	if existing.Active {
		return fmt.Errorf("cannot update: %w", ErrTemplateActive)
	}

	tpl.Version = existing.Version + 1
	return s.Repo.Update(ctx, templateID, tpl)
}

// Publish validates the template's decision tables, deactivates the prior
// active template for the entity type and activates this one.
func (s *TemplateServiceImpl) Publish(ctx context.Context, templateID string) error {
	tpl, err := s.Repo.GetByTemplateID(ctx, templateID)
	if err != nil {
		return err
	}
	if tpl == nil {
		return ErrTemplateNotFound
	}

	if err := validateTables(tpl.DecisionTables); err != nil {
		return fmt.Errorf("malformed decision table: %w", err)
	}

	if err := s.Repo.DeactivateForEntityType(ctx, tpl.EntityType); err != nil {
		return err
	}
	if err := s.Repo.SetActive(ctx, templateID, true); err != nil {
		return err
	}

	s.Logger.Info("template published",
		zap.String("templateId", templateID),
		zap.String("entityType", tpl.EntityType))

	return nil
}

func (s *TemplateServiceImpl) Deactivate(ctx context.Context, templateID string) error {
	tpl, err := s.Repo.GetByTemplateID(ctx, templateID)
	if err != nil {
		return err
	}
	if tpl == nil {
		return ErrTemplateNotFound
	}
	return s.Repo.SetActive(ctx, templateID, false)
}

func (s *TemplateServiceImpl) DeleteTemplate(ctx context.Context, templateID string) error {
	tpl, err := s.Repo.GetByTemplateID(ctx, templateID)
	if err != nil {
		return err
	}
	if tpl == nil {
		return ErrTemplateNotFound
	}
	if tpl.Active {
		return fmt.Errorf("cannot delete: %w", ErrTemplateActive)
	}
	return s.Repo.Delete(ctx, templateID)
}

func (s *TemplateServiceImpl) GetTemplate(ctx context.Context, templateID string) (*WorkflowTemplate, error) {
	return s.Repo.GetByTemplateID(ctx, templateID)
}

func (s *TemplateServiceImpl) GetActiveTemplate(ctx context.Context, entityType string) (*WorkflowTemplate, error) {
	return s.Repo.GetActiveByEntityType(ctx, entityType)
}

func (s *TemplateServiceImpl) ListTemplates(ctx context.Context, entityType string) ([]WorkflowTemplate, error) {
	return s.Repo.List(ctx, entityType)
}

func (s *TemplateServiceImpl) TestTemplate(ctx context.Context, templateID string, metadata map[string]interface{}) (*decision.ComputedApprovalPlan, error) {
	tpl, err := s.Repo.GetByTemplateID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, ErrTemplateNotFound
	}

	outputs := s.Engine.Evaluate(tpl.DecisionTables, metadata)
	plan := decision.CompilePlan(outputs, tpl.EscalationRules, s.Config.DefaultSLA)
	return &plan, nil
}

func validateTables(tables []decision.DecisionTable) error {
	for i, table := range tables {
		switch table.HitPolicy {
		case decision.HitPolicyFirst, decision.HitPolicyPriority, decision.HitPolicyAll, decision.HitPolicyCollect:
		default:
			return fmt.Errorf("table %d: unknown hit policy %q", i, table.HitPolicy)
		}
		seen := map[string]bool{}
		for _, rule := range table.Rules {
			if rule.RuleID == "" {
				return fmt.Errorf("table %d: rule without id", i)
			}
			if seen[rule.RuleID] {
				return fmt.Errorf("table %d: duplicate rule id %q", i, rule.RuleID)
			}
			seen[rule.RuleID] = true
		}
		if table.DefaultRuleID != "" && !seen[table.DefaultRuleID] {
			return fmt.Errorf("table %d: default rule %q not found", i, table.DefaultRuleID)
		}
	}
	return nil
}
