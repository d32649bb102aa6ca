package callback

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const maxAttempts = 3

// Registry resolves callback handlers for workflow transitions. Handlers are
// registered at startup, either bound to an event/entity-type pair or under a
// plain name that templates can reference in their callback config. A
// transition with no matching handler is a logged no-op.
type Registry struct {
	mu         sync.RWMutex
	bindings   map[string]Handler
	named      map[string]Handler
	logger     *zap.Logger
	retryDelay time.Duration
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		bindings:   map[string]Handler{},
		named:      map[string]Handler{},
		logger:     logger,
		retryDelay: 500 * time.Millisecond,
	}
}

func bindingKey(event, entityType string) string {
	return event + ":" + entityType
}

// Bind attaches a handler to every transition of the given event and entity
// type. entityType "*" matches all entity types.
func (r *Registry) Bind(event, entityType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[bindingKey(event, entityType)] = h
}

// RegisterNamed makes a handler addressable by name from template callback
// config.
func (r *Registry) RegisterNamed(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.named[h.Name()] = h
}

func (r *Registry) resolve(p Payload) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p.HandlerName != "" {
		if h, ok := r.named[p.HandlerName]; ok {
			return h
		}
	}
	if h, ok := r.bindings[bindingKey(p.Event, p.EntityType)]; ok {
		return h
	}
	return r.bindings[bindingKey(p.Event, "*")]
}

// Dispatch runs the handler for the payload. Retryable failures are retried
// with a linear backoff; the final error is returned so the caller can fail
// the workflow.
func (r *Registry) Dispatch(p Payload) error {
	h := r.resolve(p)
	if h == nil {
		r.logger.Info("no callback handler registered, skipping",
			zap.String("event", p.Event),
			zap.String("entityType", p.EntityType),
			zap.String("workflowId", p.WorkflowID))
		return nil
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = h.Handle(p)
		if err == nil {
			return nil
		}
		if !Retryable(err) {
			break
		}
		r.logger.Warn("callback handler failed, retrying",
			zap.String("handler", h.Name()),
			zap.String("workflowId", p.WorkflowID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < maxAttempts {
			time.Sleep(time.Duration(attempt) * r.retryDelay)
		}
	}

	r.logger.Error("callback handler failed",
		zap.String("handler", h.Name()),
		zap.String("event", p.Event),
		zap.String("workflowId", p.WorkflowID),
		zap.Error(err))
	return fmt.Errorf("callback %s for %s: %w", h.Name(), p.Event, err)
}
