package decision

import "time"

// HitPolicy controls how rule conflicts inside a decision table are resolved.
type HitPolicy string

const (
	HitPolicyFirst    HitPolicy = "FIRST"
	HitPolicyPriority HitPolicy = "PRIORITY"
	HitPolicyAll      HitPolicy = "ALL"
	HitPolicyCollect  HitPolicy = "COLLECT"
)

// FieldDecl declares a typed input or output field of a decision table.
// Type is one of "number", "string", "boolean", "list".
type FieldDecl struct {
	Name    string      `json:"name" bson:"name"`
	Type    string      `json:"type" bson:"type"`
	Default interface{} `json:"default,omitempty" bson:"default,omitempty"`
}

// DecisionRule maps condition expressions per input field to literal output
// values. A rule with an empty Conditions map matches unconditionally.
type DecisionRule struct {
	RuleID     string                 `json:"rule_id" bson:"rule_id"`
	Priority   int                    `json:"priority" bson:"priority"`
	Conditions map[string]string      `json:"conditions" bson:"conditions"`
	Outputs    map[string]interface{} `json:"outputs" bson:"outputs"`
}

// DecisionTable is an ordered set of rules plus a hit policy.
type DecisionTable struct {
	Name          string         `json:"name" bson:"name"`
	Inputs        []FieldDecl    `json:"inputs" bson:"inputs"`
	Outputs       []FieldDecl    `json:"outputs" bson:"outputs"`
	HitPolicy     HitPolicy      `json:"hit_policy" bson:"hit_policy"`
	Rules         []DecisionRule `json:"rules" bson:"rules"`
	DefaultRuleID string         `json:"default_rule_id,omitempty" bson:"default_rule_id,omitempty"`
}

// EscalationAction is what an escalation rule does when it fires.
type EscalationAction string

const (
	EscalationSendReminder   EscalationAction = "SEND_REMINDER"
	EscalationEscalateToRole EscalationAction = "ESCALATE_TO_ROLE"
	EscalationAutoApprove    EscalationAction = "AUTO_APPROVE"
	EscalationAutoReject     EscalationAction = "AUTO_REJECT"
)

// EscalationRule fires once per open task when its condition, evaluated
// against the task's age as a fraction of the SLA, holds. A condition of
// ">= 0.5" fires halfway through the SLA window.
type EscalationRule struct {
	RuleID     string           `json:"rule_id" bson:"rule_id"`
	Condition  string           `json:"condition" bson:"condition"`
	Action     EscalationAction `json:"action" bson:"action"`
	TargetRole string           `json:"target_role,omitempty" bson:"target_role,omitempty"`
}

// ComputedApprovalPlan is the compiled requirement for one submission.
// It is computed once per workflow and immutable thereafter.
type ComputedApprovalPlan struct {
	ApprovalRequired  bool                   `json:"approval_required" bson:"approval_required"`
	RequiredApprovals int                    `json:"required_approvals" bson:"required_approvals"`
	ApproverRoles     []string               `json:"approver_roles" bson:"approver_roles"`
	SpecificApprovers []string               `json:"specific_approvers,omitempty" bson:"specific_approvers,omitempty"`
	Sequential        bool                   `json:"sequential" bson:"sequential"`
	SLA               time.Duration          `json:"sla" bson:"sla"`
	EscalationRules   []EscalationRule       `json:"escalation_rules,omitempty" bson:"escalation_rules,omitempty"`
	AdditionalConfig  map[string]interface{} `json:"additional_config,omitempty" bson:"additional_config,omitempty"`
}
