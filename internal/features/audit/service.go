package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type AuditService interface {
	// RecordTransition appends one audit row. It never bubbles an error up:
	// a transition must not be blocked by the trail, so failures are logged
	// and the row is dropped.
	RecordTransition(ctx context.Context, workflowID string, previous, next string, actor string, metadata map[string]interface{})

	ListByWorkflow(ctx context.Context, workflowID string) ([]WorkflowAuditLog, error)
	List(ctx context.Context, page, limit int64) ([]WorkflowAuditLog, error)
	ExportWorkflow(ctx context.Context, workflowID string) ([]byte, string, error)
}

type AuditServiceImpl struct {
	Repo     AuditRepository
	Archiver *Archiver
	Logger   *zap.Logger
}

func NewAuditService(repo AuditRepository, archiver *Archiver, logger *zap.Logger) AuditService {
	return &AuditServiceImpl{
		Repo:     repo,
		Archiver: archiver,
		Logger:   logger,
	}
}

func (s *AuditServiceImpl) RecordTransition(ctx context.Context, workflowID string, previous, next string, actor string, metadata map[string]interface{}) {
	if actor == "" {
		actor = "system"
	}
	entry := WorkflowAuditLog{
		ID:            primitive.NewObjectID(),
		WorkflowID:    workflowID,
		PreviousState: previous,
		NewState:      next,
		Actor:         actor,
		Metadata:      metadata,
		Timestamp:     time.Now(),
	}

	if err := s.Repo.Create(ctx, entry); err != nil {
		s.Logger.Error("failed to append audit row",
			zap.String("workflowId", workflowID),
			zap.String("transition", previous+" -> "+next),
			zap.Error(err))
		return
	}

	if s.Archiver != nil {
		s.Archiver.Enqueue(entry)
	}
}

func (s *AuditServiceImpl) ListByWorkflow(ctx context.Context, workflowID string) ([]WorkflowAuditLog, error) {
	return s.Repo.ListByWorkflow(ctx, workflowID)
}

func (s *AuditServiceImpl) List(ctx context.Context, page, limit int64) ([]WorkflowAuditLog, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	return s.Repo.List(ctx, limit, (page-1)*limit)
}

// ExportWorkflow renders a workflow's full transition trail as an XLSX
// workbook for compliance reviews.
func (s *AuditServiceImpl) ExportWorkflow(ctx context.Context, workflowID string) ([]byte, string, error) {
	entries, err := s.Repo.ListByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, "", err
	}
	return exportToExcel(entries, "audit-"+workflowID)
}
