package validator

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Pipeline runs a template's validators in priority order before decision
// table evaluation. Enrichment from each validator is merged into the
// subject's metadata so that later validators and the rule engine see it.
type Pipeline struct {
	registry *Registry
	logger   *zap.Logger
}

func NewPipeline(registry *Registry, logger *zap.Logger) *Pipeline {
	return &Pipeline{registry: registry, logger: logger}
}

// Run executes every configured validator. A failing validator marked
// required fails the whole run; optional failures are logged and treated as
// "no enrichment, no red flag". input.Metadata is mutated in place.
func (p *Pipeline) Run(ctx context.Context, input Input, configs []ValidatorConfig) (*Outcome, error) {
	ordered := make([]ValidatorConfig, len(configs))
	copy(ordered, configs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	outcome := &Outcome{Action: ActionContinue}

	for _, cfg := range ordered {
		v, err := p.registry.Resolve(cfg.Kind)
		if err != nil {
			if cfg.Required {
				return nil, err
			}
			p.logger.Warn("skipping unknown validator kind",
				zap.String("validator", cfg.Name), zap.String("kind", string(cfg.Kind)))
			continue
		}

		result, err := v.Validate(ctx, input, cfg)
		if err != nil {
			if cfg.Required {
				return nil, fmt.Errorf("required validator %s failed: %w", cfg.Name, err)
			}
			p.logger.Warn("optional validator failed",
				zap.String("validator", cfg.Name), zap.Error(err))
			continue
		}

		for k, val := range result.Enrichment {
			input.Metadata[k] = val
		}

		outcome.Results = append(outcome.Results, *result)
		if result.RedFlagDetected {
			outcome.RedFlag = true
			if result.Severity != "" {
				outcome.Severity = result.Severity
			}
			outcome.Action = stronger(outcome.Action, result.Action)
		}
	}

	// Surface non-terminal red flags to the decision tables.
	if outcome.RedFlag && outcome.Action != ActionTerminateReject {
		input.Metadata["redFlagAction"] = string(outcome.Action)
		if outcome.Severity != "" {
			input.Metadata["redFlagSeverity"] = outcome.Severity
		}
	}

	return outcome, nil
}
