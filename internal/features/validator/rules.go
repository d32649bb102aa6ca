package validator

import (
	"context"
	"fmt"
	"time"

	"bank-approvals/pkg/condition"
)

// RulesValidator evaluates configured red-flag conditions against entity
// metadata. Deterministic and side-effect free.
type RulesValidator struct{}

func (v *RulesValidator) Name() string { return "rules" }

func (v *RulesValidator) Validate(_ context.Context, input Input, cfg ValidatorConfig) (*ValidationResult, error) {
	result := &ValidationResult{
		Validator: cfg.Name,
		Severity:  cfg.Severity,
		Action:    cfg.Action,
	}

	for field, expr := range cfg.RedFlagConditions {
		hit := condition.Evaluate(input.Metadata[field], expr)
		result.Steps = append(result.Steps, ValidationStep{
			Name:      "condition",
			Detail:    fmt.Sprintf("%s %s -> %t", field, expr, hit),
			Timestamp: time.Now(),
		})
		if hit {
			result.RedFlagDetected = true
		}
	}

	if !result.RedFlagDetected {
		result.Action = ActionContinue
		result.Severity = ""
	}

	return result, nil
}
