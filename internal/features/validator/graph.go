package validator

import (
	"context"
	"fmt"
	"time"

	"bank-approvals/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// GraphValidator inspects the entity_links collection for relationships to
// flagged parties. Links are written by the party subsystem; this validator
// only reads them.
type GraphValidator struct {
	links *mongo.Collection
}

func NewGraphValidator(mongodb *database.MongodbDB) *GraphValidator {
	v := &GraphValidator{}
	if mongodb != nil && mongodb.DB != nil {
		v.links = mongodb.DB.Collection("entity_links")
	}
	return v
}

func (v *GraphValidator) Name() string { return "graph" }

func (v *GraphValidator) Validate(ctx context.Context, input Input, cfg ValidatorConfig) (*ValidationResult, error) {
	if v.links == nil {
		return nil, fmt.Errorf("graph validator has no entity link store")
	}
	flagged, err := v.links.CountDocuments(ctx, bson.M{
		"entity_id": input.EntityID,
		"flagged":   true,
	})
	if err != nil {
		return nil, fmt.Errorf("entity link lookup failed: %w", err)
	}

	threshold := int64(1)
	if t, ok := cfg.Params["flagged_link_threshold"].(float64); ok && t > 0 {
		threshold = int64(t)
	}

	result := &ValidationResult{
		Validator: cfg.Name,
		Enrichment: map[string]interface{}{
			"flaggedLinkCount": flagged,
		},
		Steps: []ValidationStep{
			{
				Name:      "graph",
				Detail:    fmt.Sprintf("flagged links for %s: %d (threshold %d)", input.EntityID, flagged, threshold),
				Timestamp: time.Now(),
			},
		},
	}

	if flagged >= threshold {
		result.RedFlagDetected = true
		result.Severity = cfg.Severity
		result.Action = cfg.Action
	} else {
		result.Action = ActionContinue
	}

	return result, nil
}
