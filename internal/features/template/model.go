package template

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"bank-approvals/internal/features/decision"
	"bank-approvals/internal/features/validator"
)

// ApproverSelectionStrategy picks how approver slots are filled.
type ApproverSelectionStrategy string

const (
	SelectByRole  ApproverSelectionStrategy = "ROLE_BASED"
	SelectByUsers ApproverSelectionStrategy = "SPECIFIC_USERS"
)

// CallbackHandlers names the handler registered for each lifecycle hook.
// Empty entries mean no callback for that event.
type CallbackHandlers struct {
	OnApprove  string `json:"on_approve,omitempty" bson:"on_approve,omitempty"`
	OnReject   string `json:"on_reject,omitempty" bson:"on_reject,omitempty"`
	OnTimeout  string `json:"on_timeout,omitempty" bson:"on_timeout,omitempty"`
	OnCancel   string `json:"on_cancel,omitempty" bson:"on_cancel,omitempty"`
	OnValidate string `json:"on_validate,omitempty" bson:"on_validate,omitempty"`
}

// WorkflowTemplate is the versioned rule configuration for one entity type.
// At most one template per entity type is active at a time; publishing a
// template deactivates its active sibling.
type WorkflowTemplate struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TemplateID string             `json:"template_id" bson:"template_id"`
	Version    int                `json:"version" bson:"version"`
	Name       string             `json:"name" bson:"name"`
	EntityType string             `json:"entity_type" bson:"entity_type"`
	Active     bool               `json:"active" bson:"active"`

	DecisionTables   []decision.DecisionTable    `json:"decision_tables" bson:"decision_tables"`
	ApproverStrategy ApproverSelectionStrategy   `json:"approver_strategy" bson:"approver_strategy"`
	EscalationRules  []decision.EscalationRule   `json:"escalation_rules,omitempty" bson:"escalation_rules,omitempty"`
	Callbacks        CallbackHandlers            `json:"callbacks" bson:"callbacks"`
	Validators       []validator.ValidatorConfig `json:"validators,omitempty" bson:"validators,omitempty"`

	CreatedBy string    `json:"created_by" bson:"created_by"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}
