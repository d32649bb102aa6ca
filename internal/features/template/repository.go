package template

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bank-approvals/internal/database"
)

type TemplateRepository interface {
	Create(ctx context.Context, tpl WorkflowTemplate) error
	GetByTemplateID(ctx context.Context, templateID string) (*WorkflowTemplate, error)
	GetActiveByEntityType(ctx context.Context, entityType string) (*WorkflowTemplate, error)
	List(ctx context.Context, entityType string) ([]WorkflowTemplate, error)
	Update(ctx context.Context, templateID string, tpl WorkflowTemplate) error
	SetActive(ctx context.Context, templateID string, active bool) error
	DeactivateForEntityType(ctx context.Context, entityType string) error
	Delete(ctx context.Context, templateID string) error
	EnsureIndexes(ctx context.Context) error
}

type TemplateRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewTemplateRepository(mongodb *database.MongodbDB) TemplateRepository {
	return &TemplateRepositoryImpl{
		Collection: mongodb.DB.Collection("workflow_templates"),
	}
}

func (r *TemplateRepositoryImpl) Create(ctx context.Context, tpl WorkflowTemplate) error {
	_, err := r.Collection.InsertOne(ctx, tpl)
	return err
}

func (r *TemplateRepositoryImpl) GetByTemplateID(ctx context.Context, templateID string) (*WorkflowTemplate, error) {
	var tpl WorkflowTemplate
	err := r.Collection.FindOne(ctx, bson.M{"template_id": templateID}).Decode(&tpl)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &tpl, nil
}

func (r *TemplateRepositoryImpl) GetActiveByEntityType(ctx context.Context, entityType string) (*WorkflowTemplate, error) {
	var tpl WorkflowTemplate
	err := r.Collection.FindOne(ctx, bson.M{"entity_type": entityType, "active": true}).Decode(&tpl)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil // No active template for this entity type
		}
		return nil, err
	}
	return &tpl, nil
}

func (r *TemplateRepositoryImpl) List(ctx context.Context, entityType string) ([]WorkflowTemplate, error) {
	filter := bson.M{}
	if entityType != "" {
		filter["entity_type"] = entityType
	}

	cursor, err := r.Collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var templates []WorkflowTemplate
	if err = cursor.All(ctx, &templates); err != nil {
		return nil, err
	}
	return templates, nil
}

func (r *TemplateRepositoryImpl) Update(ctx context.Context, templateID string, tpl WorkflowTemplate) error {
	update := bson.M{
		"$set": bson.M{
			"name":              tpl.Name,
			"version":           tpl.Version,
			"decision_tables":   tpl.DecisionTables,
			"approver_strategy": tpl.ApproverStrategy,
			"escalation_rules":  tpl.EscalationRules,
			"callbacks":         tpl.Callbacks,
			"validators":        tpl.Validators,
			"updated_at":        time.Now(),
		},
	}
	_, err := r.Collection.UpdateOne(ctx, bson.M{"template_id": templateID}, update)
	return err
}

func (r *TemplateRepositoryImpl) SetActive(ctx context.Context, templateID string, active bool) error {
	_, err := r.Collection.UpdateOne(ctx, bson.M{"template_id": templateID}, bson.M{
		"$set": bson.M{"active": active, "updated_at": time.Now()},
	})
	return err
}

// DeactivateForEntityType clears the active flag on every template of the
// entity type. Publish is the only caller; this is the one multi-row write.
func (r *TemplateRepositoryImpl) DeactivateForEntityType(ctx context.Context, entityType string) error {
	_, err := r.Collection.UpdateMany(ctx, bson.M{"entity_type": entityType, "active": true}, bson.M{
		"$set": bson.M{"active": false, "updated_at": time.Now()},
	})
	return err
}

func (r *TemplateRepositoryImpl) Delete(ctx context.Context, templateID string) error {
	_, err := r.Collection.DeleteOne(ctx, bson.M{"template_id": templateID})
	return err
}

func (r *TemplateRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.Collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "template_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "entity_type", Value: 1}, {Key: "active", Value: 1}},
		},
	})
	return err
}
