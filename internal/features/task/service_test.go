package task

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"bank-approvals/internal/features/decision"
)

type MockTaskRepo struct {
	Tasks map[string]*ApprovalTask
}

func newMockTaskRepo() *MockTaskRepo {
	return &MockTaskRepo{Tasks: map[string]*ApprovalTask{}}
}

func (m *MockTaskRepo) CreateMany(_ context.Context, tasks []ApprovalTask) error {
	for _, t := range tasks {
		cp := t
		m.Tasks[t.TaskID] = &cp
	}
	return nil
}

func (m *MockTaskRepo) GetByTaskID(_ context.Context, id string) (*ApprovalTask, error) {
	if t, ok := m.Tasks[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (m *MockTaskRepo) ListByWorkflow(_ context.Context, workflowID string) ([]ApprovalTask, error) {
	var out []ApprovalTask
	for _, t := range m.Tasks {
		if t.WorkflowID == workflowID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *MockTaskRepo) ListByAssignee(_ context.Context, assignee string, onlyOpen bool) ([]ApprovalTask, error) {
	var out []ApprovalTask
	for _, t := range m.Tasks {
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

func (m *MockTaskRepo) ListOpen(_ context.Context) ([]ApprovalTask, error) {
	var out []ApprovalTask
	for _, t := range m.Tasks {
		if t.Open() {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *MockTaskRepo) Resolve(_ context.Context, taskID string, status TaskStatus, dec *ApprovalDecision) (*ApprovalTask, error) {
	t, ok := m.Tasks[taskID]
	if !ok || !t.Open() {
		return nil, ErrTaskAlreadyResolved
	}
	t.Status = status
	t.Decision = dec
	cp := *t
	return &cp, nil
}

func (m *MockTaskRepo) MarkEscalationFired(_ context.Context, taskID, ruleID string) (bool, error) {
	t, ok := m.Tasks[taskID]
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

func (m *MockTaskRepo) CloseOpenByWorkflow(_ context.Context, workflowID string, status TaskStatus) error {
	for _, t := range m.Tasks {
		if t.WorkflowID == workflowID && t.Open() {
			t.Status = status
		}
	}
	return nil
}

func (m *MockTaskRepo) EnsureIndexes(_ context.Context) error { return nil }

func sequentialPlan() decision.ComputedApprovalPlan {
	return decision.ComputedApprovalPlan{
		ApprovalRequired:  true,
		RequiredApprovals: 2,
		ApproverRoles:     []string{"PRODUCT_MANAGER", "RISK_MANAGER"},
		Sequential:        true,
		SLA:               24 * time.Hour,
	}
}

func TestCreateTasksForPlan(t *testing.T) {
	repo := newMockTaskRepo()
	svc := NewTaskService(repo, zap.NewNop())

	now := time.Now()
	tasks, err := svc.CreateTasksForPlan(context.Background(), "wf-1", sequentialPlan(), now)
	if err != nil {
		t.Fatal(err)
	}

	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].ApprovalLevel != 1 || tasks[1].ApprovalLevel != 2 {
		t.Error("levels must be 1-based and ordered")
	}
	if tasks[0].RequiredRole != "PRODUCT_MANAGER" || tasks[1].RequiredRole != "RISK_MANAGER" {
		t.Errorf("roles must be slot-indexed: %v", tasks)
	}
	wantDue := now.Add(24 * time.Hour)
	if !tasks[0].DueDate.Equal(wantDue) {
		t.Errorf("due date should be now+SLA, got %v", tasks[0].DueDate)
	}
}

func TestCreateTasksAutoApprovalPlan(t *testing.T) {
	svc := NewTaskService(newMockTaskRepo(), zap.NewNop())

	tasks, err := svc.CreateTasksForPlan(context.Background(), "wf-1",
		decision.ComputedApprovalPlan{ApprovalRequired: false}, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 0 {
		t.Errorf("auto-approval plan must create no tasks, got %d", len(tasks))
	}
}

func TestCreateTasksFallbackRole(t *testing.T) {
	svc := NewTaskService(newMockTaskRepo(), zap.NewNop())

	tasks, _ := svc.CreateTasksForPlan(context.Background(), "wf-1",
		decision.ComputedApprovalPlan{ApprovalRequired: true, RequiredApprovals: 1, SLA: time.Hour}, time.Now())
	if tasks[0].RequiredRole != FallbackRole {
		t.Errorf("slot without a role must use the fallback role, got %s", tasks[0].RequiredRole)
	}
}

func TestSequentialGating(t *testing.T) {
	plan := sequentialPlan()
	now := time.Now()

	level1 := ApprovalTask{TaskID: "t1", ApprovalLevel: 1, Status: TaskStatusPending, CreatedAt: now}
	level2 := ApprovalTask{TaskID: "t2", ApprovalLevel: 2, Status: TaskStatusPending, CreatedAt: now}
	all := []ApprovalTask{level1, level2}

	if !Actionable(level1, plan, all) {
		t.Error("level-1 task must be actionable immediately")
	}
	if Actionable(level2, plan, all) {
		t.Error("level-2 task must be gated until level 1 approves")
	}

	// Approve level 1.
	all[0].Status = TaskStatusCompleted
	all[0].Decision = &ApprovalDecision{Decision: DecisionApprove}
	if !Actionable(all[1], plan, all) {
		t.Error("level-2 task must unlock after level-1 approval")
	}
}

func TestParallelAllActionable(t *testing.T) {
	plan := sequentialPlan()
	plan.Sequential = false

	all := []ApprovalTask{
		{TaskID: "t1", ApprovalLevel: 1, Status: TaskStatusPending},
		{TaskID: "t2", ApprovalLevel: 2, Status: TaskStatusPending},
	}
	for _, task := range all {
		if !Actionable(task, plan, all) {
			t.Errorf("task %s must be actionable in parallel mode", task.TaskID)
		}
	}
}

func TestResolveRace(t *testing.T) {
	repo := newMockTaskRepo()
	svc := NewTaskService(repo, zap.NewNop())

	tasks, _ := svc.CreateTasksForPlan(context.Background(), "wf-1", sequentialPlan(), time.Now())
	id := tasks[0].TaskID

	if _, err := svc.Resolve(context.Background(), id, TaskStatusCompleted,
		&ApprovalDecision{ApproverID: "alice", Decision: DecisionApprove, Timestamp: time.Now()}); err != nil {
		t.Fatal(err)
	}

	// The second resolver (e.g. an auto-approve escalation) must lose.
	_, err := svc.Resolve(context.Background(), id, TaskStatusCompleted,
		&ApprovalDecision{ApproverID: "escalation", Decision: DecisionApprove, Timestamp: time.Now()})
	if err != ErrTaskAlreadyResolved {
		t.Errorf("expected ErrTaskAlreadyResolved, got %v", err)
	}
}

func TestMatchEscalations(t *testing.T) {
	now := time.Now()
	sla := 10 * time.Hour

	tasks := []ApprovalTask{
		{TaskID: "old", Status: TaskStatusPending, CreatedAt: now.Add(-6 * time.Hour)},
		{TaskID: "fresh", Status: TaskStatusPending, CreatedAt: now.Add(-1 * time.Hour)},
		{TaskID: "done", Status: TaskStatusCompleted, CreatedAt: now.Add(-9 * time.Hour)},
	}
	rules := []decision.EscalationRule{
		{RuleID: "remind-half", Condition: ">= 0.5", Action: decision.EscalationSendReminder},
	}

	matches := MatchEscalations(tasks, rules, sla, now)
	if len(matches) != 1 || matches[0].Task.TaskID != "old" {
		t.Fatalf("expected only the aged open task to match, got %v", matches)
	}
}

func TestEscalationFiresOnce(t *testing.T) {
	repo := newMockTaskRepo()
	svc := NewTaskService(repo, zap.NewNop())

	tasks, _ := svc.CreateTasksForPlan(context.Background(), "wf-1", sequentialPlan(), time.Now())
	id := tasks[0].TaskID

	first, err := svc.MarkEscalationFired(context.Background(), id, "remind-half")
	if err != nil || !first {
		t.Fatalf("first fire should win, got %v %v", first, err)
	}
	second, err := svc.MarkEscalationFired(context.Background(), id, "remind-half")
	if err != nil || second {
		t.Errorf("second fire must be rejected, got %v %v", second, err)
	}
}

func TestEscalationTaskDoesNotRetriggerSameRule(t *testing.T) {
	repo := newMockTaskRepo()
	svc := NewTaskService(repo, zap.NewNop())

	now := time.Now()
	sla := 10 * time.Hour
	rule := decision.EscalationRule{
		RuleID:     "escalate-half",
		Condition:  ">= 0.5",
		Action:     decision.EscalationEscalateToRole,
		TargetRole: "SENIOR_MANAGER",
	}
	origin := ApprovalTask{
		TaskID:           "origin",
		WorkflowID:       "wf-1",
		RequiredRole:     "PRODUCT_MANAGER",
		ApprovalLevel:    1,
		Status:           TaskStatusPending,
		DueDate:          now.Add(sla),
		EscalationsFired: []string{rule.RuleID},
		CreatedAt:        now.Add(-6 * time.Hour),
	}

	spawned, err := svc.CreateEscalationTask(context.Background(), origin, rule, now)
	if err != nil {
		t.Fatal(err)
	}
	if spawned.RequiredRole != "SENIOR_MANAGER" || spawned.ApprovalLevel != 1 {
		t.Fatalf("escalation task must target the rule role at the origin level, got %+v", spawned)
	}

	// Even once the spawned task ages past the threshold, the rule that
	// created it must not match again, or escalations would chain forever.
	later := now.Add(6 * time.Hour)
	all, _ := svc.ListByWorkflow(context.Background(), "wf-1")
	all = append(all, origin)
	matches := MatchEscalations(all, []decision.EscalationRule{rule}, sla, later)
	if len(matches) != 0 {
		t.Fatalf("expected no further matches for the spawning rule, got %v", matches)
	}
}
