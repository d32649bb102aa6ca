package template

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"bank-approvals/internal/config"
	"bank-approvals/internal/features/decision"
)

type MockTemplateRepo struct {
	Templates map[string]*WorkflowTemplate
}

func newMockRepo() *MockTemplateRepo {
	return &MockTemplateRepo{Templates: map[string]*WorkflowTemplate{}}
}

func (m *MockTemplateRepo) Create(_ context.Context, tpl WorkflowTemplate) error {
	cp := tpl
	m.Templates[tpl.TemplateID] = &cp
	return nil
}

func (m *MockTemplateRepo) GetByTemplateID(_ context.Context, id string) (*WorkflowTemplate, error) {
	if tpl, ok := m.Templates[id]; ok {
		cp := *tpl
		return &cp, nil
	}
	return nil, nil
}

func (m *MockTemplateRepo) GetActiveByEntityType(_ context.Context, entityType string) (*WorkflowTemplate, error) {
	for _, tpl := range m.Templates {
		if tpl.EntityType == entityType && tpl.Active {
			cp := *tpl
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockTemplateRepo) List(_ context.Context, entityType string) ([]WorkflowTemplate, error) {
	var out []WorkflowTemplate
	for _, tpl := range m.Templates {
		if entityType == "" || tpl.EntityType == entityType {
			out = append(out, *tpl)
		}
	}
	return out, nil
}

func (m *MockTemplateRepo) Update(_ context.Context, id string, tpl WorkflowTemplate) error {
	existing, ok := m.Templates[id]
	if !ok {
		return errors.New("not found")
	}
	tpl.TemplateID = id
	tpl.EntityType = existing.EntityType
	tpl.Active = existing.Active
	m.Templates[id] = &tpl
	return nil
}

func (m *MockTemplateRepo) SetActive(_ context.Context, id string, active bool) error {
	if tpl, ok := m.Templates[id]; ok {
		tpl.Active = active
	}
	return nil
}

func (m *MockTemplateRepo) DeactivateForEntityType(_ context.Context, entityType string) error {
	for _, tpl := range m.Templates {
		if tpl.EntityType == entityType {
			tpl.Active = false
		}
	}
	return nil
}

func (m *MockTemplateRepo) Delete(_ context.Context, id string) error {
	delete(m.Templates, id)
	return nil
}

func (m *MockTemplateRepo) EnsureIndexes(_ context.Context) error { return nil }

func newTestService(repo TemplateRepository) TemplateService {
	return NewTemplateService(repo, decision.NewEngine(), &config.Config{DefaultSLA: 48 * time.Hour}, zap.NewNop())
}

func validTable() decision.DecisionTable {
	return decision.DecisionTable{
		HitPolicy: decision.HitPolicyFirst,
		Rules: []decision.DecisionRule{
			{RuleID: "r1", Conditions: map[string]string{"pricingVariance": "> 10"}, Outputs: map[string]interface{}{
				decision.OutputApprovalRequired: true,
				decision.OutputApproverRoles:    []interface{}{"PRODUCT_MANAGER", "RISK_MANAGER"},
				decision.OutputApprovalCount:    2,
				decision.OutputSequential:       true,
			}},
			{RuleID: "r2", Outputs: map[string]interface{}{decision.OutputApprovalRequired: false}},
		},
	}
}

func TestCreateTemplateStartsInactive(t *testing.T) {
	svc := newTestService(newMockRepo())

	tpl, err := svc.CreateTemplate(context.Background(), WorkflowTemplate{
		Name:       "Solution Config Approval",
		EntityType: "SOLUTION_CONFIGURATION",
		Active:     true, // caller cannot pre-activate
	})
	if err != nil {
		t.Fatal(err)
	}
	if tpl.Active {
		t.Error("new templates must start inactive")
	}
	if tpl.Version != 1 {
		t.Errorf("expected version 1, got %d", tpl.Version)
	}
	if tpl.TemplateID == "" {
		t.Error("template id must be derived when absent")
	}
}

func TestPublishDeactivatesSibling(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	first, _ := svc.CreateTemplate(context.Background(), WorkflowTemplate{
		Name: "v1", EntityType: "SOLUTION_CONFIGURATION", DecisionTables: []decision.DecisionTable{validTable()},
	})
	second, _ := svc.CreateTemplate(context.Background(), WorkflowTemplate{
		Name: "v2", EntityType: "SOLUTION_CONFIGURATION", DecisionTables: []decision.DecisionTable{validTable()},
	})

	if err := svc.Publish(context.Background(), first.TemplateID); err != nil {
		t.Fatal(err)
	}
	if err := svc.Publish(context.Background(), second.TemplateID); err != nil {
		t.Fatal(err)
	}

	if repo.Templates[first.TemplateID].Active {
		t.Error("publishing the second template must deactivate the first")
	}
	if !repo.Templates[second.TemplateID].Active {
		t.Error("published template must be active")
	}

	active, _ := svc.GetActiveTemplate(context.Background(), "SOLUTION_CONFIGURATION")
	if active == nil || active.TemplateID != second.TemplateID {
		t.Error("active lookup must return the latest published template")
	}
}

func TestPublishRejectsMalformedTable(t *testing.T) {
	svc := newTestService(newMockRepo())

	tpl, _ := svc.CreateTemplate(context.Background(), WorkflowTemplate{
		Name: "bad", EntityType: "PARTY_CHANGE",
		DecisionTables: []decision.DecisionTable{{HitPolicy: "BOGUS"}},
	})

	if err := svc.Publish(context.Background(), tpl.TemplateID); err == nil {
		t.Fatal("publish must reject a malformed decision table")
	}
}

func TestUpdateAndDeleteRefusedWhileActive(t *testing.T) {
	svc := newTestService(newMockRepo())

	tpl, _ := svc.CreateTemplate(context.Background(), WorkflowTemplate{
		Name: "v1", EntityType: "PARTY_CHANGE", DecisionTables: []decision.DecisionTable{validTable()},
	})
	if err := svc.Publish(context.Background(), tpl.TemplateID); err != nil {
		t.Fatal(err)
	}

	if err := svc.UpdateTemplate(context.Background(), tpl.TemplateID, WorkflowTemplate{Name: "v2"}); !errors.Is(err, ErrTemplateActive) {
		t.Errorf("expected ErrTemplateActive on update, got %v", err)
	}
	if err := svc.DeleteTemplate(context.Background(), tpl.TemplateID); !errors.Is(err, ErrTemplateActive) {
		t.Errorf("expected ErrTemplateActive on delete, got %v", err)
	}

	if err := svc.Deactivate(context.Background(), tpl.TemplateID); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteTemplate(context.Background(), tpl.TemplateID); err != nil {
		t.Errorf("delete of inactive template should succeed, got %v", err)
	}
}

func TestUpdateBumpsVersion(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)

	tpl, _ := svc.CreateTemplate(context.Background(), WorkflowTemplate{Name: "v1", EntityType: "PARTY_CHANGE"})
	if err := svc.UpdateTemplate(context.Background(), tpl.TemplateID, WorkflowTemplate{Name: "v2"}); err != nil {
		t.Fatal(err)
	}
	if repo.Templates[tpl.TemplateID].Version != 2 {
		t.Errorf("expected version 2, got %d", repo.Templates[tpl.TemplateID].Version)
	}
}

func TestTestTemplateDryRun(t *testing.T) {
	svc := newTestService(newMockRepo())

	tpl, _ := svc.CreateTemplate(context.Background(), WorkflowTemplate{
		Name: "dry", EntityType: "SOLUTION_CONFIGURATION", DecisionTables: []decision.DecisionTable{validTable()},
	})

	plan, err := svc.TestTemplate(context.Background(), tpl.TemplateID, map[string]interface{}{"pricingVariance": 15.0})
	if err != nil {
		t.Fatal(err)
	}
	if !plan.ApprovalRequired || plan.RequiredApprovals != 2 || !plan.Sequential {
		t.Errorf("unexpected plan: %+v", plan)
	}

	plan, err = svc.TestTemplate(context.Background(), tpl.TemplateID, map[string]interface{}{"pricingVariance": 5.0})
	if err != nil {
		t.Fatal(err)
	}
	if plan.ApprovalRequired {
		t.Errorf("low variance should auto-approve, got %+v", plan)
	}
}
