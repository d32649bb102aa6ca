package audit

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type MockAuditRepo struct {
	Entries []WorkflowAuditLog
	Fail    bool
}

func (m *MockAuditRepo) Create(_ context.Context, entry WorkflowAuditLog) error {
	if m.Fail {
		return context.DeadlineExceeded
	}
	m.Entries = append(m.Entries, entry)
	return nil
}

func (m *MockAuditRepo) ListByWorkflow(_ context.Context, workflowID string) ([]WorkflowAuditLog, error) {
	var out []WorkflowAuditLog
	for _, e := range m.Entries {
		if e.WorkflowID == workflowID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockAuditRepo) List(_ context.Context, limit, offset int64) ([]WorkflowAuditLog, error) {
	if offset >= int64(len(m.Entries)) {
		return nil, nil
	}
	end := offset + limit
	if end > int64(len(m.Entries)) {
		end = int64(len(m.Entries))
	}
	return m.Entries[offset:end], nil
}

func (m *MockAuditRepo) EnsureIndexes(context.Context) error { return nil }

func TestRecordTransitionAppends(t *testing.T) {
	repo := &MockAuditRepo{}
	svc := NewAuditService(repo, nil, zap.NewNop())

	svc.RecordTransition(context.Background(), "wf-1", "INITIATED", "VALIDATION", "", nil)
	svc.RecordTransition(context.Background(), "wf-1", "VALIDATION", "PENDING_APPROVAL", "system", nil)

	if len(repo.Entries) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(repo.Entries))
	}
	if repo.Entries[0].Actor != "system" {
		t.Errorf("empty actor must default to system, got %q", repo.Entries[0].Actor)
	}
	if repo.Entries[1].PreviousState != "VALIDATION" || repo.Entries[1].NewState != "PENDING_APPROVAL" {
		t.Errorf("transition not recorded faithfully: %+v", repo.Entries[1])
	}
}

func TestRecordTransitionNeverFails(t *testing.T) {
	repo := &MockAuditRepo{Fail: true}
	svc := NewAuditService(repo, nil, zap.NewNop())

	// Must not panic and must not block the caller.
	svc.RecordTransition(context.Background(), "wf-1", "A", "B", "actor", nil)
}

func TestExportWorkflowProducesWorkbook(t *testing.T) {
	repo := &MockAuditRepo{Entries: []WorkflowAuditLog{
		{
			ID:            primitive.NewObjectID(),
			WorkflowID:    "wf-1",
			PreviousState: "PENDING_APPROVAL",
			NewState:      "COMPLETED",
			Actor:         "bob",
			Metadata:      map[string]interface{}{"decision": "APPROVE"},
			Timestamp:     time.Now(),
		},
	}}
	svc := NewAuditService(repo, nil, zap.NewNop())

	data, filename, err := svc.ExportWorkflow(context.Background(), "wf-1")
	if err != nil {
		t.Fatal(err)
	}
	if filename != "audit-wf-1.xlsx" {
		t.Errorf("unexpected filename %q", filename)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("export is not a readable workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Audit Trail")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header plus one row, got %d", len(rows))
	}
	if rows[1][3] != "COMPLETED" || rows[1][4] != "bob" {
		t.Errorf("row content mismatch: %v", rows[1])
	}
}
