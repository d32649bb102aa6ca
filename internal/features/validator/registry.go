package validator

import (
	"context"
	"fmt"

	"bank-approvals/internal/config"
	"bank-approvals/internal/database"

	"go.uber.org/zap"
)

// Validator is one pluggable validation capability.
type Validator interface {
	Name() string
	Validate(ctx context.Context, input Input, cfg ValidatorConfig) (*ValidationResult, error)
}

// Registry maps validator kinds to implementations. It is built once at
// process start; runtime-conditional validators (LLM) are resolved here,
// with the rules validator substituted when their prerequisites are absent.
type Registry struct {
	validators map[Kind]Validator
	logger     *zap.Logger
}

func NewRegistry(cfg *config.Config, mongodb *database.MongodbDB, logger *zap.Logger) *Registry {
	rules := &RulesValidator{}

	r := &Registry{
		validators: map[Kind]Validator{
			KindRules:  rules,
			KindScript: &ScriptValidator{},
			KindGraph:  NewGraphValidator(mongodb),
		},
		logger: logger,
	}

	if cfg.LLMValidatorURL != "" && cfg.LLMAPIKey != "" {
		r.validators[KindLLM] = NewLLMValidator(cfg.LLMValidatorURL, cfg.LLMAPIKey)
	} else {
		// No credentials configured: LLM-kind configs degrade to the
		// deterministic rules validator.
		logger.Info("LLM validator not configured, substituting rules validator")
		r.validators[KindLLM] = rules
	}

	return r
}

// Resolve returns the validator registered for a kind.
func (r *Registry) Resolve(kind Kind) (Validator, error) {
	v, ok := r.validators[kind]
	if !ok {
		return nil, fmt.Errorf("unknown validator kind: %s", kind)
	}
	return v, nil
}
