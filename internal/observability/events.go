package observability

import (
	"context"
	"log/slog"
)

// EventKind names one of the relay's observable events.
type EventKind string

const (
	EventConnected      EventKind = "connected"
	EventDisconnected   EventKind = "disconnected"
	EventParseDropped   EventKind = "parse_dropped"
	EventSpotMatched    EventKind = "spot_matched"
	EventSpotSuppressed EventKind = "spot_suppressed"
	EventAlertSent      EventKind = "alert_sent"
	EventAlertFailed    EventKind = "alert_failed"
)

// level maps each event to the log level it is written at. Dropped lines are
// frequent and uninteresting, so they only show up at debug.
func (k EventKind) level() slog.Level {
	switch k {
	case EventParseDropped, EventSpotSuppressed:
		return slog.LevelDebug
	case EventDisconnected, EventAlertFailed:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// EventLog writes relay events as structured log records and counts them in
// dxrelay_events_total.
type EventLog struct {
	logger  *slog.Logger
	metrics *Metrics
}

// NewEventLog creates an EventLog. metrics may be nil.
func NewEventLog(logger *slog.Logger, metrics *Metrics) *EventLog {
	return &EventLog{logger: logger, metrics: metrics}
}

// Emit records one event with key/value attributes in slog style.
func (l *EventLog) Emit(kind EventKind, attrs ...any) {
	if l.metrics != nil {
		l.metrics.Events.WithLabelValues(string(kind)).Inc()
	}
	args := append([]any{"event", string(kind)}, attrs...)
	l.logger.Log(context.Background(), kind.level(), string(kind), args...)
}
