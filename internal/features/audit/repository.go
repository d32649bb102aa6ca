package audit

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bank-approvals/internal/database"
)

type AuditRepository interface {
	Create(ctx context.Context, entry WorkflowAuditLog) error
	ListByWorkflow(ctx context.Context, workflowID string) ([]WorkflowAuditLog, error)
	List(ctx context.Context, limit, offset int64) ([]WorkflowAuditLog, error)
	EnsureIndexes(ctx context.Context) error
}

type AuditRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewAuditRepository(mongodb *database.MongodbDB) AuditRepository {
	return &AuditRepositoryImpl{
		Collection: mongodb.DB.Collection("workflow_audit_logs"),
	}
}

func (r *AuditRepositoryImpl) Create(ctx context.Context, entry WorkflowAuditLog) error {
	_, err := r.Collection.InsertOne(ctx, entry)
	return err
}

func (r *AuditRepositoryImpl) ListByWorkflow(ctx context.Context, workflowID string) ([]WorkflowAuditLog, error) {
	return r.find(ctx, bson.M{"workflow_id": workflowID}, options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: 1}}))
}

func (r *AuditRepositoryImpl) List(ctx context.Context, limit, offset int64) ([]WorkflowAuditLog, error) {
	return r.find(ctx, bson.M{}, options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit).
		SetSkip(offset))
}

func (r *AuditRepositoryImpl) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]WorkflowAuditLog, error) {
	cursor, err := r.Collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []WorkflowAuditLog
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *AuditRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.Collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "workflow_id", Value: 1}, {Key: "timestamp", Value: 1}},
		},
	})
	return err
}
