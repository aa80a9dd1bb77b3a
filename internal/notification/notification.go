package notification

import (
	"context"
	"log/slog"
)

// Lifecycle event names emitted by the wager engine.
const (
	EventParticipantJoined  = "participant_joined"
	EventParticipantLeft    = "participant_left"
	EventReadyStatusChanged = "ready_status_changed"
	EventBetStarted         = "bet_started"
	EventScoreSubmitted     = "score_submitted"
	EventBetCompleted       = "bet_completed"
	EventBetCancelled       = "bet_cancelled"
)

// Event is the payload fanned out to a wager's room channel and, when UserID
// is set, the affected user's personal channel.
type Event struct {
	Name    string         `json:"event"`
	WagerID string         `json:"wager_id"`
	UserID  string         `json:"user_id,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Emitter delivers lifecycle events to interested observers. Delivery is
// best-effort: implementations must never let a failed delivery propagate
// back into the transactional core.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

// LoggerEmitter writes events to the structured logger. Used in development
// and as the fallback when Redis is not configured.
type LoggerEmitter struct {
	logger *slog.Logger
}

// NewLoggerEmitter constructs a logging emitter.
func NewLoggerEmitter(logger *slog.Logger) *LoggerEmitter {
	return &LoggerEmitter{logger: logger}
}

// Emit writes the event to the structured logger.
func (e *LoggerEmitter) Emit(_ context.Context, event Event) {
	if e == nil || e.logger == nil {
		return
	}
	e.logger.Info("wager event",
		slog.String("event", event.Name),
		slog.String("wager_id", event.WagerID),
		slog.String("user_id", event.UserID))
}
