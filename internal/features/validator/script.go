package validator

import (
	"context"
	"fmt"
	"time"

	"github.com/d5/tengo/v2"
)

// ScriptValidator runs a tengo script against the submission. The script
// receives `metadata` and `entity` maps and may set `enrichment` (map),
// `red_flag` (bool) and `severity` (string).
type ScriptValidator struct{}

func (v *ScriptValidator) Name() string { return "script" }

func (v *ScriptValidator) Validate(ctx context.Context, input Input, cfg ValidatorConfig) (*ValidationResult, error) {
	if cfg.Script == "" {
		return nil, fmt.Errorf("script validator %s has no script configured", cfg.Name)
	}

	script := tengo.NewScript([]byte(cfg.Script))

	script.Add("entity_type", input.EntityType)
	script.Add("entity_id", input.EntityID)
	script.Add("metadata", input.Metadata)
	script.Add("entity", input.EntityData)
	script.Add("enrichment", map[string]interface{}{})
	script.Add("red_flag", false)
	script.Add("severity", "")

	compiled, err := script.Compile()
	if err != nil {
		return nil, fmt.Errorf("failed to compile validator script: %w", err)
	}

	if err := compiled.RunContext(ctx); err != nil {
		return nil, fmt.Errorf("validator script failed: %w", err)
	}

	result := &ValidationResult{
		Validator: cfg.Name,
		Action:    cfg.Action,
		Steps: []ValidationStep{
			{Name: "script", Detail: "executed", Timestamp: time.Now()},
		},
	}

	if enrichment := compiled.Get("enrichment").Map(); len(enrichment) > 0 {
		result.Enrichment = enrichment
	}
	result.RedFlagDetected = compiled.Get("red_flag").Bool()
	result.Severity = compiled.Get("severity").String()

	if !result.RedFlagDetected {
		result.Action = ActionContinue
		result.Severity = ""
	}

	return result, nil
}
