package task

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TaskStatus is the lifecycle state of one approval task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusCancelled  TaskStatus = "CANCELLED"
	TaskStatusTimeout    TaskStatus = "TIMEOUT"
)

// DecisionType is an approver's verdict.
type DecisionType string

const (
	DecisionApprove DecisionType = "APPROVE"
	DecisionReject  DecisionType = "REJECT"
)

// ApprovalDecision is immutable once recorded on a task.
type ApprovalDecision struct {
	ApproverID      string       `json:"approver_id" bson:"approver_id"`
	Decision        DecisionType `json:"decision" bson:"decision"`
	Comments        string       `json:"comments,omitempty" bson:"comments,omitempty"`
	Conditions      []string     `json:"conditions,omitempty" bson:"conditions,omitempty"`
	RequiredChanges []string     `json:"required_changes,omitempty" bson:"required_changes,omitempty"`
	Timestamp       time.Time    `json:"timestamp" bson:"timestamp"`
}

// ApprovalTask is one approver slot of a workflow's plan. ApprovalLevel is
// 1-based; under sequential gating only the lowest unresolved level is
// actionable.
type ApprovalTask struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TaskID        string             `json:"task_id" bson:"task_id"`
	WorkflowID    string             `json:"workflow_id" bson:"workflow_id"`
	AssignedTo    string             `json:"assigned_to,omitempty" bson:"assigned_to,omitempty"`
	RequiredRole  string             `json:"required_role" bson:"required_role"`
	ApprovalLevel int                `json:"approval_level" bson:"approval_level"`
	Status        TaskStatus         `json:"status" bson:"status"`
	DueDate       time.Time          `json:"due_date" bson:"due_date"`
	Decision      *ApprovalDecision  `json:"decision,omitempty" bson:"decision,omitempty"`

	// Escalation rule ids that already fired for this task.
	EscalationsFired []string `json:"escalations_fired,omitempty" bson:"escalations_fired,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Open reports whether the task can still be acted on.
func (t *ApprovalTask) Open() bool {
	return t.Status == TaskStatusPending || t.Status == TaskStatusInProgress
}
