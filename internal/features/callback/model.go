package callback

import (
	"errors"
	"fmt"
	"time"

	"bank-approvals/internal/features/task"
)

// Lifecycle events a workflow dispatches callbacks for.
const (
	EventOnApprove  = "onApprove"
	EventOnReject   = "onReject"
	EventOnTimeout  = "onTimeout"
	EventOnCancel   = "onCancel"
	EventOnValidate = "onValidate"
)

// Payload is handed to every callback handler on a workflow transition.
type Payload struct {
	Event       string                  `json:"event"`
	WorkflowID  string                  `json:"workflowId"`
	EntityType  string                  `json:"entityType"`
	EntityID    string                  `json:"entityId"`
	TenantID    string                  `json:"tenantId,omitempty"`
	State       string                  `json:"state"`
	HandlerName string                  `json:"-"`
	Decisions   []task.ApprovalDecision `json:"decisions,omitempty"`
	Metadata    map[string]interface{}  `json:"metadata,omitempty"`
	Timestamp   time.Time               `json:"timestamp"`
}

type Handler interface {
	Name() string
	Handle(payload Payload) error
}

// RetryableError marks a handler failure as transient. The registry retries
// these a few times before giving up; any other error fails immediately.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable callback failure: %v", e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

func Retryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
