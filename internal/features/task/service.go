package task

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bank-approvals/internal/features/decision"
	"bank-approvals/pkg/condition"
)

// FallbackRole is assigned when a plan slot names neither a role nor a user.
const FallbackRole = "APPROVAL_OFFICER"

// EscalationMatch pairs an open task with an escalation rule whose condition
// holds. The orchestrator executes the action after winning the fired-set
// compare-and-set.
type EscalationMatch struct {
	Task ApprovalTask
	Rule decision.EscalationRule
}

type TaskService interface {
	CreateTasksForPlan(ctx context.Context, workflowID string, plan decision.ComputedApprovalPlan, now time.Time) ([]ApprovalTask, error)
	GetTask(ctx context.Context, taskID string) (*ApprovalTask, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]ApprovalTask, error)
	ListByAssignee(ctx context.Context, assignee string, onlyOpen bool) ([]ApprovalTask, error)
	ListOpen(ctx context.Context) ([]ApprovalTask, error)

	Resolve(ctx context.Context, taskID string, status TaskStatus, dec *ApprovalDecision) (*ApprovalTask, error)
	CloseOpenByWorkflow(ctx context.Context, workflowID string, status TaskStatus) error
	CreateEscalationTask(ctx context.Context, origin ApprovalTask, rule decision.EscalationRule, now time.Time) (*ApprovalTask, error)
	MarkEscalationFired(ctx context.Context, taskID, ruleID string) (bool, error)
}

type TaskServiceImpl struct {
	Repo   TaskRepository
	Logger *zap.Logger
}

func NewTaskService(repo TaskRepository, logger *zap.Logger) TaskService {
	return &TaskServiceImpl{Repo: repo, Logger: logger}
}

// CreateTasksForPlan creates one task per approver slot. Slot i takes the
// i-th approver role and, when the plan names specific approvers, the i-th
// approver (parallel-indexed to roles).
func (s *TaskServiceImpl) CreateTasksForPlan(ctx context.Context, workflowID string, plan decision.ComputedApprovalPlan, now time.Time) ([]ApprovalTask, error) {
	if !plan.ApprovalRequired || plan.RequiredApprovals == 0 {
		return nil, nil
	}

	due := now.Add(plan.SLA)
	tasks := make([]ApprovalTask, 0, plan.RequiredApprovals)

	for i := 0; i < plan.RequiredApprovals; i++ {
		role := FallbackRole
		if i < len(plan.ApproverRoles) {
			role = plan.ApproverRoles[i]
		}

		t := ApprovalTask{
			TaskID:        uuid.NewString(),
			WorkflowID:    workflowID,
			RequiredRole:  role,
			ApprovalLevel: i + 1,
			Status:        TaskStatusPending,
			DueDate:       due,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if i < len(plan.SpecificApprovers) {
			t.AssignedTo = plan.SpecificApprovers[i]
		}
		tasks = append(tasks, t)
	}

	if err := s.Repo.CreateMany(ctx, tasks); err != nil {
		return nil, err
	}

	s.Logger.Info("approval tasks created",
		zap.String("workflowId", workflowID),
		zap.Int("count", len(tasks)),
		zap.Bool("sequential", plan.Sequential))

	return tasks, nil
}

func (s *TaskServiceImpl) GetTask(ctx context.Context, taskID string) (*ApprovalTask, error) {
	return s.Repo.GetByTaskID(ctx, taskID)
}

func (s *TaskServiceImpl) ListByWorkflow(ctx context.Context, workflowID string) ([]ApprovalTask, error) {
	return s.Repo.ListByWorkflow(ctx, workflowID)
}

func (s *TaskServiceImpl) ListByAssignee(ctx context.Context, assignee string, onlyOpen bool) ([]ApprovalTask, error) {
	return s.Repo.ListByAssignee(ctx, assignee, onlyOpen)
}

func (s *TaskServiceImpl) ListOpen(ctx context.Context) ([]ApprovalTask, error) {
	return s.Repo.ListOpen(ctx)
}

func (s *TaskServiceImpl) Resolve(ctx context.Context, taskID string, status TaskStatus, dec *ApprovalDecision) (*ApprovalTask, error) {
	return s.Repo.Resolve(ctx, taskID, status, dec)
}

func (s *TaskServiceImpl) CloseOpenByWorkflow(ctx context.Context, workflowID string, status TaskStatus) error {
	return s.Repo.CloseOpenByWorkflow(ctx, workflowID, status)
}

// CreateEscalationTask adds a task at the origin's level assigned to the
// escalation role, so either the original or the escalated approver can act.
// The spawning rule is pre-marked fired on the new task; otherwise an
// unattended workflow would chain a fresh escalation task every time the
// previous one aged past the same threshold.
func (s *TaskServiceImpl) CreateEscalationTask(ctx context.Context, origin ApprovalTask, rule decision.EscalationRule, now time.Time) (*ApprovalTask, error) {
	t := ApprovalTask{
		TaskID:           uuid.NewString(),
		WorkflowID:       origin.WorkflowID,
		RequiredRole:     rule.TargetRole,
		ApprovalLevel:    origin.ApprovalLevel,
		Status:           TaskStatusPending,
		DueDate:          origin.DueDate,
		EscalationsFired: []string{rule.RuleID},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.Repo.CreateMany(ctx, []ApprovalTask{t}); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *TaskServiceImpl) MarkEscalationFired(ctx context.Context, taskID, ruleID string) (bool, error) {
	return s.Repo.MarkEscalationFired(ctx, taskID, ruleID)
}

// Actionable reports whether a task may be decided right now. In parallel
// mode every open task is actionable; in sequential mode only tasks at the
// lowest level that has not yet completed with an approval.
func Actionable(t ApprovalTask, plan decision.ComputedApprovalPlan, all []ApprovalTask) bool {
	if !t.Open() {
		return false
	}
	if !plan.Sequential {
		return true
	}
	for _, other := range all {
		if other.ApprovalLevel >= t.ApprovalLevel {
			continue
		}
		if !levelApproved(other.ApprovalLevel, all) {
			return false
		}
	}
	return true
}

// levelApproved is true when some task at the level completed with APPROVE.
func levelApproved(level int, all []ApprovalTask) bool {
	for _, t := range all {
		if t.ApprovalLevel != level {
			continue
		}
		if t.Status == TaskStatusCompleted && t.Decision != nil && t.Decision.Decision == DecisionApprove {
			return true
		}
	}
	return false
}

// MatchEscalations returns (task, rule) pairs whose condition holds for the
// task's age relative to the SLA. Pure; the caller claims each match via
// MarkEscalationFired before acting.
func MatchEscalations(tasks []ApprovalTask, rules []decision.EscalationRule, sla time.Duration, now time.Time) []EscalationMatch {
	if sla <= 0 {
		return nil
	}

	var matches []EscalationMatch
	for _, t := range tasks {
		if !t.Open() {
			continue
		}
		fired := map[string]bool{}
		for _, id := range t.EscalationsFired {
			fired[id] = true
		}

		ageFraction := now.Sub(t.CreatedAt).Seconds() / sla.Seconds()
		for _, rule := range rules {
			if fired[rule.RuleID] {
				continue
			}
			if condition.Evaluate(ageFraction, rule.Condition) {
				matches = append(matches, EscalationMatch{Task: t, Rule: rule})
			}
		}
	}
	return matches
}
