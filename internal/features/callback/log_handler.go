package callback

import (
	"go.uber.org/zap"
)

// LogHandler records the transition and nothing else. Registered as the
// wildcard fallback so every terminal transition leaves a trace even when no
// integration is wired.
type LogHandler struct {
	logger *zap.Logger
}

func NewLogHandler(logger *zap.Logger) *LogHandler {
	return &LogHandler{logger: logger}
}

func (h *LogHandler) Name() string { return "log" }

func (h *LogHandler) Handle(p Payload) error {
	h.logger.Info("workflow callback",
		zap.String("event", p.Event),
		zap.String("workflowId", p.WorkflowID),
		zap.String("entityType", p.EntityType),
		zap.String("entityId", p.EntityID),
		zap.String("state", p.State),
		zap.Int("decisions", len(p.Decisions)))
	return nil
}
