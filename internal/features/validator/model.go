package validator

import "time"

// Kind selects the validator implementation for a config entry.
type Kind string

const (
	KindRules  Kind = "rules"
	KindScript Kind = "script"
	KindLLM    Kind = "llm"
	KindGraph  Kind = "graph"
)

// RedFlagAction is the recommended handling when a validator raises a flag.
type RedFlagAction string

const (
	ActionContinue        RedFlagAction = "CONTINUE"
	ActionEnhanceReview   RedFlagAction = "ENHANCE_REVIEW"
	ActionTerminateReject RedFlagAction = "TERMINATE_REJECT"
	ActionEscalate        RedFlagAction = "ESCALATE"
)

// ValidatorConfig describes one pipeline entry on a workflow template.
type ValidatorConfig struct {
	Name     string `json:"name" bson:"name"`
	Kind     Kind   `json:"kind" bson:"kind"`
	Priority int    `json:"priority" bson:"priority"`
	Required bool   `json:"required" bson:"required"`

	// Red-flag conditions evaluated over entity metadata (after enrichment
	// from this validator). Any matching condition raises the flag.
	RedFlagConditions map[string]string `json:"red_flag_conditions,omitempty" bson:"red_flag_conditions,omitempty"`
	Action            RedFlagAction     `json:"action,omitempty" bson:"action,omitempty"`
	Severity          string            `json:"severity,omitempty" bson:"severity,omitempty"`

	// Script source for script validators.
	Script string `json:"script,omitempty" bson:"script,omitempty"`

	// Free-form parameters (graph thresholds, LLM prompt hints, ...).
	Params map[string]interface{} `json:"params,omitempty" bson:"params,omitempty"`
}

// Input is the slice of a workflow subject a validator sees.
type Input struct {
	EntityType string
	EntityID   string
	TenantID   string
	EntityData map[string]interface{}
	Metadata   map[string]interface{}
}

// ValidationStep is one entry of the explainability trace.
type ValidationStep struct {
	Name      string    `json:"name" bson:"name"`
	Detail    string    `json:"detail" bson:"detail"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// ValidationResult is what each validator produces.
type ValidationResult struct {
	Validator       string                 `json:"validator" bson:"validator"`
	RedFlagDetected bool                   `json:"red_flag_detected" bson:"red_flag_detected"`
	Severity        string                 `json:"severity,omitempty" bson:"severity,omitempty"`
	Action          RedFlagAction          `json:"action,omitempty" bson:"action,omitempty"`
	Enrichment      map[string]interface{} `json:"enrichment,omitempty" bson:"enrichment,omitempty"`
	Steps           []ValidationStep       `json:"steps,omitempty" bson:"steps,omitempty"`
}

// Outcome aggregates the whole pipeline run.
type Outcome struct {
	Results  []ValidationResult
	RedFlag  bool
	Severity string
	Action   RedFlagAction
}

// stronger orders red-flag actions by how drastic they are.
func stronger(a, b RedFlagAction) RedFlagAction {
	rank := map[RedFlagAction]int{
		ActionContinue:        0,
		ActionEnhanceReview:   1,
		ActionEscalate:        2,
		ActionTerminateReject: 3,
	}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
