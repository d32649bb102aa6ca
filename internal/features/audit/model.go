package audit

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WorkflowAuditLog is one append-only row per workflow state transition.
// Rows are never mutated or deleted.
type WorkflowAuditLog struct {
	ID            primitive.ObjectID     `json:"id" bson:"_id,omitempty"`
	WorkflowID    string                 `json:"workflow_id" bson:"workflow_id"`
	PreviousState string                 `json:"previous_state" bson:"previous_state"`
	NewState      string                 `json:"new_state" bson:"new_state"`
	Actor         string                 `json:"actor" bson:"actor"`
	Metadata      map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty"`
	Timestamp     time.Time              `json:"timestamp" bson:"timestamp"`
}
