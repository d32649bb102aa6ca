package task

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bank-approvals/internal/database"
)

// ErrTaskAlreadyResolved is returned when a compare-and-set on task status
// loses the race against another resolver (an explicit decision vs. a
// timer-driven escalation).
var ErrTaskAlreadyResolved = errors.New("TASK_ALREADY_RESOLVED")

type TaskRepository interface {
	CreateMany(ctx context.Context, tasks []ApprovalTask) error
	GetByTaskID(ctx context.Context, taskID string) (*ApprovalTask, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]ApprovalTask, error)
	ListByAssignee(ctx context.Context, assignee string, onlyOpen bool) ([]ApprovalTask, error)
	ListOpen(ctx context.Context) ([]ApprovalTask, error)

	// Resolve atomically moves an open task to a terminal status and records
	// the decision. Exactly one resolver wins; the rest receive
	// ErrTaskAlreadyResolved.
	Resolve(ctx context.Context, taskID string, status TaskStatus, decision *ApprovalDecision) (*ApprovalTask, error)

	// MarkEscalationFired records that an escalation rule fired for a task.
	// Returns false when the rule already fired (idempotency guard).
	MarkEscalationFired(ctx context.Context, taskID, ruleID string) (bool, error)

	CloseOpenByWorkflow(ctx context.Context, workflowID string, status TaskStatus) error
	EnsureIndexes(ctx context.Context) error
}

type TaskRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewTaskRepository(mongodb *database.MongodbDB) TaskRepository {
	return &TaskRepositoryImpl{
		Collection: mongodb.DB.Collection("approval_tasks"),
	}
}

func (r *TaskRepositoryImpl) CreateMany(ctx context.Context, tasks []ApprovalTask) error {
	if len(tasks) == 0 {
		return nil
	}
	docs := make([]interface{}, len(tasks))
	for i, t := range tasks {
		docs[i] = t
	}
	_, err := r.Collection.InsertMany(ctx, docs)
	return err
}

func (r *TaskRepositoryImpl) GetByTaskID(ctx context.Context, taskID string) (*ApprovalTask, error) {
	var t ApprovalTask
	err := r.Collection.FindOne(ctx, bson.M{"task_id": taskID}).Decode(&t)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *TaskRepositoryImpl) ListByWorkflow(ctx context.Context, workflowID string) ([]ApprovalTask, error) {
	return r.list(ctx, bson.M{"workflow_id": workflowID})
}

func (r *TaskRepositoryImpl) ListByAssignee(ctx context.Context, assignee string, onlyOpen bool) ([]ApprovalTask, error) {
	filter := bson.M{"$or": []bson.M{
		{"assigned_to": assignee},
		{"required_role": assignee},
	}}
	if onlyOpen {
		filter["status"] = bson.M{"$in": []TaskStatus{TaskStatusPending, TaskStatusInProgress}}
	}
	return r.list(ctx, filter)
}

func (r *TaskRepositoryImpl) ListOpen(ctx context.Context) ([]ApprovalTask, error) {
	return r.list(ctx, bson.M{"status": bson.M{"$in": []TaskStatus{TaskStatusPending, TaskStatusInProgress}}})
}

func (r *TaskRepositoryImpl) list(ctx context.Context, filter bson.M) ([]ApprovalTask, error) {
	cursor, err := r.Collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "approval_level", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var tasks []ApprovalTask
	if err = cursor.All(ctx, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *TaskRepositoryImpl) Resolve(ctx context.Context, taskID string, status TaskStatus, decision *ApprovalDecision) (*ApprovalTask, error) {
	update := bson.M{"$set": bson.M{
		"status":     status,
		"decision":   decision,
		"updated_at": time.Now(),
	}}

	after := options.After
	var resolved ApprovalTask
	err := r.Collection.FindOneAndUpdate(ctx,
		bson.M{
			"task_id": taskID,
			"status":  bson.M{"$in": []TaskStatus{TaskStatusPending, TaskStatusInProgress}},
		},
		update,
		options.FindOneAndUpdate().SetReturnDocument(after),
	).Decode(&resolved)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrTaskAlreadyResolved
		}
		return nil, err
	}
	return &resolved, nil
}

func (r *TaskRepositoryImpl) MarkEscalationFired(ctx context.Context, taskID, ruleID string) (bool, error) {
	res, err := r.Collection.UpdateOne(ctx,
		bson.M{"task_id": taskID, "escalations_fired": bson.M{"$ne": ruleID}},
		bson.M{
			"$addToSet": bson.M{"escalations_fired": ruleID},
			"$set":      bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (r *TaskRepositoryImpl) CloseOpenByWorkflow(ctx context.Context, workflowID string, status TaskStatus) error {
	_, err := r.Collection.UpdateMany(ctx,
		bson.M{
			"workflow_id": workflowID,
			"status":      bson.M{"$in": []TaskStatus{TaskStatusPending, TaskStatusInProgress}},
		},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now()}},
	)
	return err
}

func (r *TaskRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.Collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "task_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "workflow_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "assigned_to", Value: 1}, {Key: "status", Value: 1}},
		},
	})
	return err
}
