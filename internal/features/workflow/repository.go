package workflow

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bank-approvals/internal/database"
)

// ErrDuplicateInstance signals that a subject already exists for the
// deterministic instance id. Callers treat it as "already submitted", not as
// a failure.
var ErrDuplicateInstance = errors.New("workflow instance already exists")

var openStates = []WorkflowState{StateInitiated, StateValidation, StatePendingApproval, StateApproved}

type SubjectRepository interface {
	Create(ctx context.Context, subject *WorkflowSubject) error
	GetByWorkflowID(ctx context.Context, workflowID string) (*WorkflowSubject, error)
	GetByInstanceID(ctx context.Context, instanceID string) (*WorkflowSubject, error)
	Save(ctx context.Context, subject *WorkflowSubject) error
	ListOpen(ctx context.Context) ([]WorkflowSubject, error)
	EnsureIndexes(ctx context.Context) error
}

type SubjectRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewSubjectRepository(mongodb *database.MongodbDB) SubjectRepository {
	return &SubjectRepositoryImpl{
		Collection: mongodb.DB.Collection("workflow_subjects"),
	}
}

func (r *SubjectRepositoryImpl) Create(ctx context.Context, subject *WorkflowSubject) error {
	now := time.Now()
	subject.CreatedAt = now
	subject.UpdatedAt = now

	_, err := r.Collection.InsertOne(ctx, subject)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateInstance
		}
		return err
	}
	return nil
}

func (r *SubjectRepositoryImpl) GetByWorkflowID(ctx context.Context, workflowID string) (*WorkflowSubject, error) {
	return r.get(ctx, bson.M{"workflow_id": workflowID})
}

func (r *SubjectRepositoryImpl) GetByInstanceID(ctx context.Context, instanceID string) (*WorkflowSubject, error) {
	return r.get(ctx, bson.M{"instance_id": instanceID})
}

func (r *SubjectRepositoryImpl) get(ctx context.Context, filter bson.M) (*WorkflowSubject, error) {
	var subject WorkflowSubject
	err := r.Collection.FindOne(ctx, filter).Decode(&subject)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &subject, nil
}

func (r *SubjectRepositoryImpl) Save(ctx context.Context, subject *WorkflowSubject) error {
	subject.UpdatedAt = time.Now()
	_, err := r.Collection.UpdateOne(ctx,
		bson.M{"instance_id": subject.InstanceID},
		bson.M{"$set": bson.M{
			"state":           subject.State,
			"plan":            subject.Plan,
			"result":          subject.Result,
			"entity_metadata": subject.EntityMetadata,
			"updated_at":      subject.UpdatedAt,
		}},
	)
	return err
}

func (r *SubjectRepositoryImpl) ListOpen(ctx context.Context) ([]WorkflowSubject, error) {
	cursor, err := r.Collection.Find(ctx, bson.M{"state": bson.M{"$in": openStates}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var subjects []WorkflowSubject
	if err = cursor.All(ctx, &subjects); err != nil {
		return nil, err
	}
	return subjects, nil
}

func (r *SubjectRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.Collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "instance_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "workflow_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "entity_type", Value: 1}, {Key: "state", Value: 1}},
		},
	})
	return err
}

type SignalRepository interface {
	Append(ctx context.Context, signal *WorkflowSignal) error
	MarkApplied(ctx context.Context, signal *WorkflowSignal) error
	ListUnapplied(ctx context.Context, instanceID string) ([]WorkflowSignal, error)
	EnsureIndexes(ctx context.Context) error
}

type SignalRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewSignalRepository(mongodb *database.MongodbDB) SignalRepository {
	return &SignalRepositoryImpl{
		Collection: mongodb.DB.Collection("workflow_signals"),
	}
}

func (r *SignalRepositoryImpl) Append(ctx context.Context, signal *WorkflowSignal) error {
	signal.CreatedAt = time.Now()
	res, err := r.Collection.InsertOne(ctx, signal)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		signal.ID = oid
	}
	return nil
}

func (r *SignalRepositoryImpl) MarkApplied(ctx context.Context, signal *WorkflowSignal) error {
	signal.Applied = true
	_, err := r.Collection.UpdateOne(ctx,
		bson.M{"_id": signal.ID},
		bson.M{"$set": bson.M{"applied": true}},
	)
	return err
}

func (r *SignalRepositoryImpl) ListUnapplied(ctx context.Context, instanceID string) ([]WorkflowSignal, error) {
	cursor, err := r.Collection.Find(ctx,
		bson.M{"instance_id": instanceID, "applied": false},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var signals []WorkflowSignal
	if err = cursor.All(ctx, &signals); err != nil {
		return nil, err
	}
	return signals, nil
}

func (r *SignalRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.Collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "instance_id", Value: 1}, {Key: "applied", Value: 1}, {Key: "created_at", Value: 1}},
		},
	})
	return err
}
