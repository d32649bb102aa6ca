package validator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// LLMValidator calls an external model endpoint for a risk assessment. It is
// only registered when an endpoint and API key are configured.
type LLMValidator struct {
	url    string
	apiKey string
	client *http.Client
}

func NewLLMValidator(url, apiKey string) *LLMValidator {
	return &LLMValidator{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (v *LLMValidator) Name() string { return "llm" }

type llmRequest struct {
	EntityType string                 `json:"entity_type"`
	EntityID   string                 `json:"entity_id"`
	Metadata   map[string]interface{} `json:"metadata"`
	EntityData map[string]interface{} `json:"entity_data"`
	Hints      map[string]interface{} `json:"hints,omitempty"`
}

type llmResponse struct {
	RedFlag     bool                   `json:"red_flag"`
	Severity    string                 `json:"severity"`
	Action      string                 `json:"action"`
	Enrichment  map[string]interface{} `json:"enrichment"`
	Explanation []string               `json:"explanation"`
}

func (v *LLMValidator) Validate(ctx context.Context, input Input, cfg ValidatorConfig) (*ValidationResult, error) {
	body, err := json.Marshal(llmRequest{
		EntityType: input.EntityType,
		EntityID:   input.EntityID,
		Metadata:   input.Metadata,
		EntityData: input.EntityData,
		Hints:      cfg.Params,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+v.apiKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm validator call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("llm validator returned status %d", resp.StatusCode)
	}

	var parsed llmResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("invalid llm validator response: %w", err)
	}

	result := &ValidationResult{
		Validator:       cfg.Name,
		RedFlagDetected: parsed.RedFlag,
		Severity:        parsed.Severity,
		Action:          RedFlagAction(parsed.Action),
		Enrichment:      parsed.Enrichment,
	}
	if result.Action == "" {
		result.Action = cfg.Action
	}
	for _, step := range parsed.Explanation {
		result.Steps = append(result.Steps, ValidationStep{
			Name:      "llm",
			Detail:    step,
			Timestamp: time.Now(),
		})
	}

	return result, nil
}
