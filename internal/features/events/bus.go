package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"bank-approvals/internal/config"
	"bank-approvals/internal/features/workflow"
)

// SubjectEntitySubmitted is the inbound trigger subject. Entity services
// publish here instead of calling the REST submit endpoint.
const SubjectEntitySubmitted = "entity.submitted"

// WorkflowEvent is the JSON schema published on terminal transitions.
type WorkflowEvent struct {
	Event      string                 `json:"event"`
	WorkflowID string                 `json:"workflow_id"`
	EntityType string                 `json:"entity_type"`
	EntityID   string                 `json:"entity_id"`
	TenantID   string                 `json:"tenant_id,omitempty"`
	State      string                 `json:"state"`
	Decisions  interface{}            `json:"decisions,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// Bus wraps the NATS connection. With no NATS_URL configured it degrades to
// log-only publication so the service still runs standalone.
//
// Publish failures are non-fatal: the terminal state is already durably
// recorded when an event goes out, and downstream consumers reconcile via
// the status API.
type Bus struct {
	conn   *nats.Conn
	logger *zap.Logger
}

func NewBus(cfg *config.Config, logger *zap.Logger) (*Bus, error) {
	if cfg.NatsURL == "" {
		logger.Info("NATS not configured, workflow events are log-only")
		return &Bus{logger: logger}, nil
	}

	conn, err := nats.Connect(cfg.NatsURL,
		nats.Name(cfg.AppId),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	logger.Info("connected to NATS", zap.String("url", cfg.NatsURL))
	return &Bus{conn: conn, logger: logger}, nil
}

// PublishWorkflowEvent emits a terminal workflow event outward.
func (b *Bus) PublishWorkflowEvent(event string, subject *workflow.WorkflowSubject) {
	payload := WorkflowEvent{
		Event:      event,
		WorkflowID: subject.WorkflowID,
		EntityType: subject.EntityType,
		EntityID:   subject.EntityID,
		TenantID:   subject.TenantID,
		State:      string(subject.State),
		Metadata:   subject.EntityMetadata,
		Timestamp:  time.Now(),
	}
	if subject.Result != nil {
		payload.Decisions = subject.Result.Decisions
	}

	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error("failed to marshal workflow event", zap.String("event", event), zap.Error(err))
		return
	}

	if b.conn == nil {
		b.logger.Info("workflow event",
			zap.String("event", event),
			zap.String("workflowId", subject.WorkflowID))
		return
	}

	if err := b.conn.Publish(event, data); err != nil {
		b.logger.Warn("failed to publish workflow event",
			zap.String("event", event),
			zap.String("workflowId", subject.WorkflowID),
			zap.Error(err))
		return
	}
	b.logger.Debug("workflow event published",
		zap.String("event", event),
		zap.String("workflowId", subject.WorkflowID))
}

// SubscribeSubmissions consumes inbound submission events. Submission is
// idempotent on the deterministic instance id, so redelivery of the same
// entity event is harmless.
func (b *Bus) SubscribeSubmissions(orchestrator *workflow.Orchestrator) error {
	if b.conn == nil {
		return nil
	}

	_, err := b.conn.QueueSubscribe(SubjectEntitySubmitted, "bank-approvals", func(msg *nats.Msg) {
		var req workflow.SubmitRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			b.logger.Error("malformed submission event", zap.Error(err))
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		subject, err := orchestrator.Submit(ctx, req)
		if err != nil {
			// Configuration errors stay on the bus for operators; there is
			// no workflow to attach them to.
			b.logger.Error("submission event rejected",
				zap.String("entityType", req.EntityType),
				zap.String("entityId", req.EntityID),
				zap.Error(err))
			return
		}
		b.logger.Info("submission event accepted",
			zap.String("workflowId", subject.WorkflowID),
			zap.String("state", string(subject.State)))
	})
	return err
}

func (b *Bus) Close() {
	if b.conn != nil {
		b.conn.Drain()
	}
}
