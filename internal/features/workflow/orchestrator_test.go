package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"bank-approvals/internal/config"
	"bank-approvals/internal/features/callback"
	"bank-approvals/internal/features/decision"
	"bank-approvals/internal/features/task"
	"bank-approvals/internal/features/template"
	"bank-approvals/internal/features/validator"
)

type mockSubjectRepo struct {
	mu       sync.Mutex
	subjects map[string]*WorkflowSubject
}

func newMockSubjectRepo() *mockSubjectRepo {
	return &mockSubjectRepo{subjects: map[string]*WorkflowSubject{}}
}

func (m *mockSubjectRepo) Create(_ context.Context, s *WorkflowSubject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subjects[s.InstanceID]; ok {
		return ErrDuplicateInstance
	}
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now
	cp := *s
	m.subjects[s.InstanceID] = &cp
	return nil
}

func (m *mockSubjectRepo) GetByWorkflowID(_ context.Context, workflowID string) (*WorkflowSubject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subjects {
		if s.WorkflowID == workflowID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockSubjectRepo) GetByInstanceID(_ context.Context, instanceID string) (*WorkflowSubject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.subjects[instanceID]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (m *mockSubjectRepo) Save(_ context.Context, s *WorkflowSubject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.subjects[s.InstanceID]
	if !ok {
		return errors.New("subject not found")
	}
	stored.State = s.State
	stored.Plan = s.Plan
	stored.Result = s.Result
	stored.EntityMetadata = s.EntityMetadata
	stored.UpdatedAt = time.Now()
	return nil
}

func (m *mockSubjectRepo) ListOpen(_ context.Context) ([]WorkflowSubject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []WorkflowSubject
	for _, s := range m.subjects {
		if !s.State.Terminal() {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *mockSubjectRepo) EnsureIndexes(context.Context) error { return nil }

type mockSignalRepo struct {
	mu      sync.Mutex
	signals []*WorkflowSignal
}

func (m *mockSignalRepo) Append(_ context.Context, s *WorkflowSignal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = primitive.NewObjectID()
	s.CreatedAt = time.Now()
	cp := *s
	m.signals = append(m.signals, &cp)
	return nil
}

func (m *mockSignalRepo) MarkApplied(_ context.Context, s *WorkflowSignal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, stored := range m.signals {
		if stored.ID == s.ID {
			stored.Applied = true
		}
	}
	return nil
}

func (m *mockSignalRepo) ListUnapplied(_ context.Context, instanceID string) ([]WorkflowSignal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []WorkflowSignal
	for _, s := range m.signals {
		if s.InstanceID == instanceID && !s.Applied {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *mockSignalRepo) EnsureIndexes(context.Context) error { return nil }

type mockTaskRepo struct {
	mu    sync.Mutex
	tasks map[string]*task.ApprovalTask
}

func newMockTaskRepo() *mockTaskRepo {
	return &mockTaskRepo{tasks: map[string]*task.ApprovalTask{}}
}

func (m *mockTaskRepo) CreateMany(_ context.Context, tasks []task.ApprovalTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range tasks {
		cp := t
		m.tasks[t.TaskID] = &cp
	}
	return nil
}

func (m *mockTaskRepo) GetByTaskID(_ context.Context, id string) (*task.ApprovalTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (m *mockTaskRepo) ListByWorkflow(_ context.Context, workflowID string) ([]task.ApprovalTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []task.ApprovalTask
	for level := 1; level <= len(m.tasks)+1; level++ {
		for _, t := range m.tasks {
			if t.WorkflowID == workflowID && t.ApprovalLevel == level {
				out = append(out, *t)
			}
		}
	}
	return out, nil
}

func (m *mockTaskRepo) ListByAssignee(_ context.Context, assignee string, onlyOpen bool) ([]task.ApprovalTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []task.ApprovalTask
	for _, t := range m.tasks {
		if t.AssignedTo != assignee && t.RequiredRole != assignee {
			continue
		}
		if onlyOpen && !t.Open() {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (m *mockTaskRepo) ListOpen(_ context.Context) ([]task.ApprovalTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []task.ApprovalTask
	for _, t := range m.tasks {
		if t.Open() {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *mockTaskRepo) Resolve(_ context.Context, taskID string, status task.TaskStatus, dec *task.ApprovalDecision) (*task.ApprovalTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok || !t.Open() {
		return nil, task.ErrTaskAlreadyResolved
	}
	t.Status = status
	t.Decision = dec
	cp := *t
	return &cp, nil
}

func (m *mockTaskRepo) MarkEscalationFired(_ context.Context, taskID, ruleID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return false, nil
	}
	for _, id := range t.EscalationsFired {
		if id == ruleID {
			return false, nil
		}
	}
	t.EscalationsFired = append(t.EscalationsFired, ruleID)
	return true, nil
}

func (m *mockTaskRepo) CloseOpenByWorkflow(_ context.Context, workflowID string, status task.TaskStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.WorkflowID == workflowID && t.Open() {
			t.Status = status
		}
	}
	return nil
}

func (m *mockTaskRepo) EnsureIndexes(context.Context) error { return nil }

func (m *mockTaskRepo) age(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		t.CreatedAt = t.CreatedAt.Add(-d)
		t.DueDate = t.DueDate.Add(-d)
	}
}

type mockTemplateService struct {
	templates map[string]*template.WorkflowTemplate
}

func (m *mockTemplateService) GetTemplate(_ context.Context, id string) (*template.WorkflowTemplate, error) {
	return m.templates[id], nil
}

func (m *mockTemplateService) GetActiveTemplate(_ context.Context, entityType string) (*template.WorkflowTemplate, error) {
	for _, tpl := range m.templates {
		if tpl.EntityType == entityType && tpl.Active {
			return tpl, nil
		}
	}
	return nil, nil
}

func (m *mockTemplateService) CreateTemplate(context.Context, template.WorkflowTemplate) (*template.WorkflowTemplate, error) {
	return nil, errors.New("not implemented")
}
func (m *mockTemplateService) UpdateTemplate(context.Context, string, template.WorkflowTemplate) error {
	return errors.New("not implemented")
}
func (m *mockTemplateService) Publish(context.Context, string) error {
	return errors.New("not implemented")
}
func (m *mockTemplateService) Deactivate(context.Context, string) error {
	return errors.New("not implemented")
}
func (m *mockTemplateService) DeleteTemplate(context.Context, string) error {
	return errors.New("not implemented")
}
func (m *mockTemplateService) ListTemplates(context.Context, string) ([]template.WorkflowTemplate, error) {
	return nil, errors.New("not implemented")
}
func (m *mockTemplateService) TestTemplate(context.Context, string, map[string]interface{}) (*decision.ComputedApprovalPlan, error) {
	return nil, errors.New("not implemented")
}

type recordingAudit struct {
	mu          sync.Mutex
	transitions []string
}

func (a *recordingAudit) RecordTransition(_ context.Context, _ string, previous, next string, _ string, _ map[string]interface{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.transitions = append(a.transitions, previous+">"+next)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) PublishWorkflowEvent(event string, _ *WorkflowSubject) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

type nopBroadcaster struct{}

func (nopBroadcaster) BroadcastTransition(string, string, WorkflowState, WorkflowState) {}

type countingHandler struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (h *countingHandler) Name() string { return "counting" }

func (h *countingHandler) Handle(callback.Payload) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	return h.err
}

func (h *countingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

type fixture struct {
	orch      *Orchestrator
	subjects  *mockSubjectRepo
	taskRepo  *mockTaskRepo
	audit     *recordingAudit
	publisher *recordingPublisher
	callbacks *callback.Registry
}

func newFixture(templates ...*template.WorkflowTemplate) *fixture {
	logger := zap.NewNop()
	cfg := &config.Config{DefaultSLA: 48 * time.Hour}

	tplSvc := &mockTemplateService{templates: map[string]*template.WorkflowTemplate{}}
	for _, tpl := range templates {
		tplSvc.templates[tpl.TemplateID] = tpl
	}

	subjects := newMockSubjectRepo()
	signals := &mockSignalRepo{}
	taskRepo := newMockTaskRepo()
	audit := &recordingAudit{}
	publisher := &recordingPublisher{}
	callbacks := callback.NewRegistry(logger)
	pipeline := validator.NewPipeline(validator.NewRegistry(cfg, nil, logger), logger)
	runtime := NewRuntime(subjects, signals, logger)

	orch := NewOrchestrator(cfg, tplSvc, pipeline, decision.NewEngine(),
		task.NewTaskService(taskRepo, logger), callbacks, subjects, runtime,
		audit, publisher, nopBroadcaster{}, logger)

	return &fixture{
		orch:      orch,
		subjects:  subjects,
		taskRepo:  taskRepo,
		audit:     audit,
		publisher: publisher,
		callbacks: callbacks,
	}
}

func solutionTemplate() *template.WorkflowTemplate {
	return &template.WorkflowTemplate{
		TemplateID: "solution-approval",
		Version:    1,
		Name:       "Solution approval",
		EntityType: "SOLUTION_CONFIGURATION",
		Active:     true,
		DecisionTables: []decision.DecisionTable{
			{
				Name:      "pricing",
				HitPolicy: decision.HitPolicyFirst,
				Rules: []decision.DecisionRule{
					{
						RuleID:     "variance-high",
						Conditions: map[string]string{"pricingVariance": "> 10"},
						Outputs: map[string]interface{}{
							decision.OutputApprovalRequired: true,
							decision.OutputApproverRoles:    []interface{}{"PRODUCT_MANAGER", "RISK_MANAGER"},
							decision.OutputApprovalCount:    2,
							decision.OutputSequential:       true,
						},
					},
					{
						RuleID:     "variance-low",
						Conditions: map[string]string{"pricingVariance": "<= 10"},
						Outputs: map[string]interface{}{
							decision.OutputApprovalRequired: false,
						},
					},
				},
			},
		},
	}
}

func submitSolution(t *testing.T, f *fixture, variance float64) *WorkflowSubject {
	t.Helper()
	subject, err := f.orch.Submit(context.Background(), SubmitRequest{
		EntityType:     "SOLUTION_CONFIGURATION",
		EntityID:       "sol-1",
		InitiatedBy:    "submitter",
		EntityMetadata: map[string]interface{}{"pricingVariance": variance},
	})
	if err != nil {
		t.Fatal(err)
	}
	return subject
}

func TestEndToEndSequentialApproval(t *testing.T) {
	f := newFixture(solutionTemplate())
	approved := &countingHandler{}
	f.callbacks.Bind(callback.EventOnApprove, "SOLUTION_CONFIGURATION", approved)

	subject := submitSolution(t, f, 15)
	if subject.State != StatePendingApproval {
		t.Fatalf("expected PENDING_APPROVAL, got %s", subject.State)
	}

	ctx := context.Background()
	tasks, _ := f.taskRepo.ListByWorkflow(ctx, subject.WorkflowID)
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}

	if err := f.orch.Approve(ctx, subject.WorkflowID, DecisionRequest{ApproverID: "alice", Comments: "ok"}); err != nil {
		t.Fatal(err)
	}
	status, err := f.orch.Status(ctx, subject.WorkflowID)
	if err != nil {
		t.Fatal(err)
	}
	if status.State != StatePendingApproval {
		t.Fatalf("one of two approvals should leave PENDING_APPROVAL, got %s", status.State)
	}

	if err := f.orch.Approve(ctx, subject.WorkflowID, DecisionRequest{ApproverID: "bob", Comments: "ok"}); err != nil {
		t.Fatal(err)
	}
	status, err = f.orch.Status(ctx, subject.WorkflowID)
	if err != nil {
		t.Fatal(err)
	}
	if status.State != StateCompleted {
		t.Fatalf("expected COMPLETED, got %s", status.State)
	}
	if status.Result == nil || len(status.Result.Decisions) != 2 {
		t.Fatalf("expected 2 recorded decisions, got %+v", status.Result)
	}
	if status.Result.Decisions[0].ApproverID != "alice" || status.Result.Decisions[1].ApproverID != "bob" {
		t.Errorf("decisions must be recorded in level order: %+v", status.Result.Decisions)
	}
	if approved.count() != 1 {
		t.Errorf("onApprove callback must fire exactly once, got %d", approved.count())
	}

	hasCompleted := false
	for _, e := range f.publisher.events {
		if e == EventWorkflowCompleted {
			hasCompleted = true
		}
	}
	if !hasCompleted {
		t.Error("completion event must be published")
	}
}

func TestAutoApprovalSkipsTasks(t *testing.T) {
	f := newFixture(solutionTemplate())
	approved := &countingHandler{}
	f.callbacks.Bind(callback.EventOnApprove, "SOLUTION_CONFIGURATION", approved)

	subject := submitSolution(t, f, 5)
	if subject.State != StateCompleted {
		t.Fatalf("expected COMPLETED, got %s", subject.State)
	}
	if subject.Result == nil || !subject.Result.AutoApproved {
		t.Errorf("result must record auto-approval, got %+v", subject.Result)
	}
	tasks, _ := f.taskRepo.ListByWorkflow(context.Background(), subject.WorkflowID)
	if len(tasks) != 0 {
		t.Errorf("auto-approval must create no tasks, got %d", len(tasks))
	}
	if approved.count() != 1 {
		t.Errorf("onApprove callback must still fire, got %d", approved.count())
	}
}

func TestSubmitIsIdempotent(t *testing.T) {
	f := newFixture(solutionTemplate())

	first := submitSolution(t, f, 15)
	second := submitSolution(t, f, 15)

	if first.WorkflowID != second.WorkflowID {
		t.Errorf("re-submission must return the existing workflow: %s vs %s", first.WorkflowID, second.WorkflowID)
	}
	if len(f.subjects.subjects) != 1 {
		t.Errorf("expected exactly one subject, got %d", len(f.subjects.subjects))
	}
	tasks, _ := f.taskRepo.ListByWorkflow(context.Background(), first.WorkflowID)
	if len(tasks) != 2 {
		t.Errorf("expected exactly one set of tasks, got %d", len(tasks))
	}
}

func TestSubmitWithoutActiveTemplate(t *testing.T) {
	f := newFixture()

	_, err := f.orch.Submit(context.Background(), SubmitRequest{
		EntityType: "ACCOUNT", EntityID: "a-1",
	})
	if !errors.Is(err, ErrNoActiveTemplate) {
		t.Fatalf("expected ErrNoActiveTemplate, got %v", err)
	}
	if len(f.subjects.subjects) != 0 {
		t.Error("configuration errors must not create a subject")
	}
}

func TestRejectEndsWorkflow(t *testing.T) {
	f := newFixture(solutionTemplate())
	rejected := &countingHandler{}
	f.callbacks.Bind(callback.EventOnReject, "SOLUTION_CONFIGURATION", rejected)

	subject := submitSolution(t, f, 15)
	ctx := context.Background()

	if err := f.orch.Reject(ctx, subject.WorkflowID, DecisionRequest{ApproverID: "alice", Comments: "too risky"}); err != nil {
		t.Fatal(err)
	}
	status, _ := f.orch.Status(ctx, subject.WorkflowID)
	if status.State != StateRejected {
		t.Fatalf("a single rejection must end the workflow, got %s", status.State)
	}
	if rejected.count() != 1 {
		t.Errorf("onReject callback must fire once, got %d", rejected.count())
	}

	// Remaining open tasks are closed.
	tasks, _ := f.taskRepo.ListByWorkflow(ctx, subject.WorkflowID)
	for _, tsk := range tasks {
		if tsk.Open() {
			t.Errorf("task %s left open after rejection", tsk.TaskID)
		}
	}
}

func TestCancelSkipsCallbacks(t *testing.T) {
	f := newFixture(solutionTemplate())
	approved := &countingHandler{}
	rejected := &countingHandler{}
	f.callbacks.Bind(callback.EventOnApprove, "SOLUTION_CONFIGURATION", approved)
	f.callbacks.Bind(callback.EventOnReject, "SOLUTION_CONFIGURATION", rejected)

	subject := submitSolution(t, f, 15)
	ctx := context.Background()

	if err := f.orch.Cancel(ctx, subject.WorkflowID, CancelRequest{Reason: "superseded", CancelledBy: "ops"}); err != nil {
		t.Fatal(err)
	}
	status, _ := f.orch.Status(ctx, subject.WorkflowID)
	if status.State != StateCancelled {
		t.Fatalf("expected CANCELLED, got %s", status.State)
	}
	if approved.count() != 0 || rejected.count() != 0 {
		t.Error("cancel must not run approve/reject callbacks")
	}

	// A decision after cancellation is refused.
	err := f.orch.Approve(ctx, subject.WorkflowID, DecisionRequest{ApproverID: "alice"})
	if !errors.Is(err, ErrWorkflowTerminal) {
		t.Errorf("expected ErrWorkflowTerminal, got %v", err)
	}
}

func TestCallbackFailureMarksFailed(t *testing.T) {
	f := newFixture(solutionTemplate())
	broken := &countingHandler{err: errors.New("webhook returned 400")}
	f.callbacks.Bind(callback.EventOnApprove, "SOLUTION_CONFIGURATION", broken)

	subject := submitSolution(t, f, 5)
	if subject.State != StateFailed {
		t.Fatalf("callback failure must mark the workflow FAILED, got %s", subject.State)
	}
	if subject.Result == nil || subject.Result.Outcome != "APPROVED" {
		t.Errorf("the approval decision must stand, got %+v", subject.Result)
	}
	if subject.Result.CallbackError == "" {
		t.Error("callback error must be recorded for operators")
	}
}

func TestSecondDecisionAlreadyDecided(t *testing.T) {
	tpl := solutionTemplate()
	tpl.DecisionTables[0].Rules[0].Outputs = map[string]interface{}{
		decision.OutputApprovalRequired:  true,
		decision.OutputApproverRoles:     []interface{}{"PRODUCT_MANAGER", "RISK_MANAGER"},
		decision.OutputApprovalCount:     2,
		decision.OutputSequential:        false,
		decision.OutputSpecificApprovers: []interface{}{"alice", "bob"},
	}
	f := newFixture(tpl)

	subject := submitSolution(t, f, 15)
	ctx := context.Background()

	if err := f.orch.Approve(ctx, subject.WorkflowID, DecisionRequest{ApproverID: "alice"}); err != nil {
		t.Fatal(err)
	}
	err := f.orch.Approve(ctx, subject.WorkflowID, DecisionRequest{ApproverID: "alice"})
	if !errors.Is(err, ErrAlreadyDecided) {
		t.Fatalf("expected ALREADY_DECIDED, got %v", err)
	}
}

func TestSameApproverCannotFillRoleBasedQuorum(t *testing.T) {
	// Role-based slots carry no AssignedTo, so without the completed-task
	// check one approver could claim every open slot in turn.
	f := newFixture(solutionTemplate())

	subject := submitSolution(t, f, 15)
	ctx := context.Background()

	if err := f.orch.Approve(ctx, subject.WorkflowID, DecisionRequest{ApproverID: "alice"}); err != nil {
		t.Fatal(err)
	}
	err := f.orch.Approve(ctx, subject.WorkflowID, DecisionRequest{ApproverID: "alice"})
	if !errors.Is(err, ErrAlreadyDecided) {
		t.Fatalf("expected ALREADY_DECIDED for a repeat approver, got %v", err)
	}

	status, err := f.orch.Status(ctx, subject.WorkflowID)
	if err != nil {
		t.Fatal(err)
	}
	if status.State != StatePendingApproval {
		t.Fatalf("repeat approval must not advance the workflow, got %s", status.State)
	}

	// A distinct approver still completes the quorum.
	if err := f.orch.Approve(ctx, subject.WorkflowID, DecisionRequest{ApproverID: "bob"}); err != nil {
		t.Fatal(err)
	}
	status, err = f.orch.Status(ctx, subject.WorkflowID)
	if err != nil {
		t.Fatal(err)
	}
	if status.State != StateCompleted {
		t.Fatalf("expected COMPLETED, got %s", status.State)
	}
	if len(status.Result.Decisions) != 2 ||
		status.Result.Decisions[0].ApproverID != "alice" ||
		status.Result.Decisions[1].ApproverID != "bob" {
		t.Fatalf("quorum must hold two distinct approvers: %+v", status.Result.Decisions)
	}
}

func TestRedFlagTerminatesWithoutTasks(t *testing.T) {
	tpl := solutionTemplate()
	tpl.Validators = []validator.ValidatorConfig{
		{
			Name:              "variance-screen",
			Kind:              validator.KindRules,
			Required:          true,
			RedFlagConditions: map[string]string{"pricingVariance": "> 100"},
			Action:            validator.ActionTerminateReject,
			Severity:          "HIGH",
		},
	}
	f := newFixture(tpl)
	rejected := &countingHandler{}
	f.callbacks.Bind(callback.EventOnReject, "SOLUTION_CONFIGURATION", rejected)

	subject := submitSolution(t, f, 150)
	if subject.State != StateRejected {
		t.Fatalf("expected REJECTED, got %s", subject.State)
	}
	tasks, _ := f.taskRepo.ListByWorkflow(context.Background(), subject.WorkflowID)
	if len(tasks) != 0 {
		t.Errorf("red-flag termination must not create tasks, got %d", len(tasks))
	}
	if rejected.count() != 1 {
		t.Errorf("onReject callback must fire once, got %d", rejected.count())
	}
}

func TestEscalationAutoApproveFiresOnce(t *testing.T) {
	tpl := solutionTemplate()
	tpl.DecisionTables[0].Rules[0].Outputs = map[string]interface{}{
		decision.OutputApprovalRequired: true,
		decision.OutputApproverRoles:    []interface{}{"PRODUCT_MANAGER"},
		decision.OutputApprovalCount:    1,
	}
	tpl.EscalationRules = []decision.EscalationRule{
		{RuleID: "auto-after-half", Condition: ">= 0.5", Action: decision.EscalationAutoApprove},
	}
	f := newFixture(tpl)
	approved := &countingHandler{}
	f.callbacks.Bind(callback.EventOnApprove, "SOLUTION_CONFIGURATION", approved)

	subject := submitSolution(t, f, 15)
	ctx := context.Background()

	// Age the task past half the SLA, then sweep twice.
	f.taskRepo.age(30 * time.Hour)
	f.orch.EscalationSweep(ctx)
	f.orch.EscalationSweep(ctx)

	status, _ := f.orch.Status(ctx, subject.WorkflowID)
	if status.State != StateCompleted {
		t.Fatalf("auto-approve escalation must complete the workflow, got %s", status.State)
	}
	if approved.count() != 1 {
		t.Errorf("escalation must fire exactly once across sweeps, got %d", approved.count())
	}
}

func TestSLATimeout(t *testing.T) {
	f := newFixture(solutionTemplate())
	timedOut := &countingHandler{}
	f.callbacks.Bind(callback.EventOnTimeout, "SOLUTION_CONFIGURATION", timedOut)

	subject := submitSolution(t, f, 15)
	ctx := context.Background()

	// No escalation rules configured, so an overdue task times the workflow
	// out on the next sweep.
	f.taskRepo.age(50 * time.Hour)
	f.orch.EscalationSweep(ctx)

	status, _ := f.orch.Status(ctx, subject.WorkflowID)
	if status.State != StateTimeout {
		t.Fatalf("expected TIMEOUT, got %s", status.State)
	}
	if timedOut.count() != 1 {
		t.Errorf("onTimeout callback must fire once, got %d", timedOut.count())
	}
	tasks, _ := f.taskRepo.ListByWorkflow(ctx, subject.WorkflowID)
	for _, tsk := range tasks {
		if tsk.Open() {
			t.Errorf("task %s left open after timeout", tsk.TaskID)
		}
	}
}

func TestStatusFallsBackToPersisted(t *testing.T) {
	f := newFixture(solutionTemplate())
	subject := submitSolution(t, f, 15)

	// Simulate a restart: the runtime no longer holds the instance.
	f.orch.runtime.Retire(subject.InstanceID)

	status, err := f.orch.Status(context.Background(), subject.WorkflowID)
	if err != nil {
		t.Fatal(err)
	}
	if status.Live {
		t.Error("status must be served from the persisted subject")
	}
	if status.State != StatePendingApproval {
		t.Errorf("persisted state expected PENDING_APPROVAL, got %s", status.State)
	}
}
