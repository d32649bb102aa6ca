package audit

import (
	"database/sql"
	"encoding/json"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"bank-approvals/internal/config"
)

const archiveSchema = `
CREATE TABLE IF NOT EXISTS workflow_audit_archive (
	id             TEXT PRIMARY KEY,
	workflow_id    TEXT NOT NULL,
	previous_state TEXT,
	new_state      TEXT NOT NULL,
	actor          TEXT,
	metadata       JSONB,
	recorded_at    TIMESTAMPTZ NOT NULL
)`

// Archiver copies audit rows into a Postgres reporting warehouse. It is
// optional: without WAREHOUSE_DSN the constructor returns nil and the audit
// service skips it. Writes are asynchronous so warehouse latency never sits
// on the workflow path.
type Archiver struct {
	db     *sql.DB
	queue  chan WorkflowAuditLog
	done   chan struct{}
	logger *zap.Logger
}

func NewArchiver(cfg *config.Config, logger *zap.Logger) (*Archiver, error) {
	if cfg.WarehouseDSN == "" {
		return nil, nil
	}

	db, err := sql.Open("postgres", cfg.WarehouseDSN)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(archiveSchema); err != nil {
		db.Close()
		return nil, err
	}

	a := &Archiver{
		db:     db,
		queue:  make(chan WorkflowAuditLog, 256),
		done:   make(chan struct{}),
		logger: logger,
	}
	go a.run()

	logger.Info("audit warehouse archiver enabled")
	return a, nil
}

// Enqueue hands a row to the background writer. A full queue drops the row
// with a warning; the Mongo trail remains the source of truth.
func (a *Archiver) Enqueue(entry WorkflowAuditLog) {
	select {
	case a.queue <- entry:
	default:
		a.logger.Warn("audit archive queue full, dropping row",
			zap.String("workflowId", entry.WorkflowID))
	}
}

func (a *Archiver) run() {
	defer close(a.done)
	for entry := range a.queue {
		a.insert(entry)
	}
}

func (a *Archiver) insert(entry WorkflowAuditLog) {
	metadata, _ := json.Marshal(entry.Metadata)
	_, err := a.db.Exec(`
		INSERT INTO workflow_audit_archive
			(id, workflow_id, previous_state, new_state, actor, metadata, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		entry.ID.Hex(), entry.WorkflowID, entry.PreviousState, entry.NewState,
		entry.Actor, metadata, entry.Timestamp,
	)
	if err != nil {
		a.logger.Error("failed to archive audit row",
			zap.String("workflowId", entry.WorkflowID),
			zap.Error(err))
	}
}

// Close drains the queue and releases the warehouse connection.
func (a *Archiver) Close() error {
	close(a.queue)
	<-a.done
	return a.db.Close()
}
