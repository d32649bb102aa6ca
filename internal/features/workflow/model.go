package workflow

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"bank-approvals/internal/features/decision"
	"bank-approvals/internal/features/task"
)

type WorkflowState string

const (
	StateInitiated       WorkflowState = "INITIATED"
	StateValidation      WorkflowState = "VALIDATION"
	StatePendingApproval WorkflowState = "PENDING_APPROVAL"
	StateApproved        WorkflowState = "APPROVED"
	StateCompleted       WorkflowState = "COMPLETED"
	StateRejected        WorkflowState = "REJECTED"
	StateCancelled       WorkflowState = "CANCELLED"
	StateFailed          WorkflowState = "FAILED"
	StateTimeout         WorkflowState = "TIMEOUT"
)

func (s WorkflowState) Terminal() bool {
	switch s {
	case StateCompleted, StateRejected, StateCancelled, StateFailed, StateTimeout:
		return true
	}
	return false
}

var (
	ErrAlreadyDecided     = errors.New("ALREADY_DECIDED")
	ErrWorkflowNotFound   = errors.New("workflow not found")
	ErrNoActiveTemplate   = errors.New("no active template for entity type")
	ErrNotPendingApproval = errors.New("workflow is not pending approval")
	ErrWorkflowTerminal   = errors.New("workflow already in a terminal state")
)

// InstanceID derives the durable-execution correlation id. It is a pure
// function of the entity identity so redelivered submission events collapse
// onto the same instance.
func InstanceID(entityType, entityID string) string {
	return "approval-" + entityType + "-" + entityID
}

// WorkflowResult captures the terminal outcome. The decision outcome is fixed
// before callbacks run; a callback failure is recorded alongside it, never in
// place of it.
type WorkflowResult struct {
	Outcome       string                  `bson:"outcome" json:"outcome"`
	Reason        string                  `bson:"reason,omitempty" json:"reason,omitempty"`
	Decisions     []task.ApprovalDecision `bson:"decisions,omitempty" json:"decisions,omitempty"`
	AutoApproved  bool                    `bson:"auto_approved,omitempty" json:"autoApproved,omitempty"`
	CallbackError string                  `bson:"callback_error,omitempty" json:"callbackError,omitempty"`
	CompletedAt   time.Time               `bson:"completed_at" json:"completedAt"`
}

type WorkflowSubject struct {
	ID             primitive.ObjectID            `bson:"_id,omitempty" json:"-"`
	WorkflowID     string                        `bson:"workflow_id" json:"workflowId"`
	InstanceID     string                        `bson:"instance_id" json:"workflowInstanceId"`
	EntityType     string                        `bson:"entity_type" json:"entityType"`
	EntityID       string                        `bson:"entity_id" json:"entityId"`
	TenantID       string                        `bson:"tenant_id,omitempty" json:"tenantId,omitempty"`
	TemplateID     string                        `bson:"template_id" json:"templateId"`
	EntityData     map[string]interface{}        `bson:"entity_data,omitempty" json:"entityData,omitempty"`
	EntityMetadata map[string]interface{}        `bson:"entity_metadata,omitempty" json:"entityMetadata,omitempty"`
	State          WorkflowState                 `bson:"state" json:"state"`
	Plan           decision.ComputedApprovalPlan `bson:"plan" json:"plan"`
	Result         *WorkflowResult               `bson:"result,omitempty" json:"result,omitempty"`
	InitiatedBy    string                        `bson:"initiated_by,omitempty" json:"initiatedBy,omitempty"`
	Priority       string                        `bson:"priority,omitempty" json:"priority,omitempty"`
	CreatedAt      time.Time                     `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time                     `bson:"updated_at" json:"updatedAt"`
}

// Signal kinds appended to the durable log.
const (
	SignalDecision   = "decision"
	SignalCancel     = "cancel"
	SignalEscalation = "escalation"
	SignalTimeout    = "timeout"
)

// WorkflowSignal is one entry of the persisted signal log. Signals are
// appended before they are folded into the subject; unapplied entries are
// replayed on process start.
type WorkflowSignal struct {
	ID         primitive.ObjectID     `bson:"_id,omitempty" json:"-"`
	InstanceID string                 `bson:"instance_id" json:"instanceId"`
	Kind       string                 `bson:"kind" json:"kind"`
	TaskID     string                 `bson:"task_id,omitempty" json:"taskId,omitempty"`
	Decision   *task.ApprovalDecision `bson:"decision,omitempty" json:"decision,omitempty"`
	Reason     string                 `bson:"reason,omitempty" json:"reason,omitempty"`
	Actor      string                 `bson:"actor,omitempty" json:"actor,omitempty"`
	Applied    bool                   `bson:"applied" json:"applied"`
	CreatedAt  time.Time              `bson:"created_at" json:"createdAt"`
}

type SubmitRequest struct {
	EntityType     string                 `json:"entityType"`
	EntityID       string                 `json:"entityId"`
	TenantID       string                 `json:"tenantId"`
	TemplateID     string                 `json:"templateId"`
	EntityData     map[string]interface{} `json:"entityData"`
	EntityMetadata map[string]interface{} `json:"entityMetadata"`
	InitiatedBy    string                 `json:"initiatedBy"`
	Priority       string                 `json:"priority"`
}

type DecisionRequest struct {
	ApproverID      string   `json:"approverId"`
	Comments        string   `json:"comments"`
	Reason          string   `json:"reason"`
	Conditions      []string `json:"conditions"`
	RequiredChanges []string `json:"requiredChanges"`
}

type CancelRequest struct {
	Reason      string `json:"reason"`
	CancelledBy string `json:"cancelledBy"`
}

// StatusResponse is the read model for status queries. Live marks whether the
// answer came from a running in-memory instance or the persisted record.
type StatusResponse struct {
	WorkflowID string                        `json:"workflowId"`
	State      WorkflowState                 `json:"state"`
	Plan       decision.ComputedApprovalPlan `json:"plan"`
	Result     *WorkflowResult               `json:"result,omitempty"`
	Live       bool                          `json:"live"`
}
