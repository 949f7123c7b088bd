// Package notify defines the alert sink contract and the delivery policy
// applied by the dispatcher: one bounded attempt per alert, failures reported
// as *Error and never retried.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/dx-spot-relay/internal/domain"
)

// Alert is a formatted message plus the spot it was rendered from. Sinks that
// only carry text use Text; structured sinks may use Spot.
type Alert struct {
	Text string
	Spot domain.Spot
}

// Sink delivers alerts to an external system.
type Sink interface {
	Send(ctx context.Context, alert Alert) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, alert Alert) error

// Send calls f.
func (f SinkFunc) Send(ctx context.Context, alert Alert) error { return f(ctx, alert) }

// Reason classifies a delivery failure.
type Reason int

const (
	DeliveryFailed Reason = iota
	Timeout
)

func (r Reason) String() string {
	if r == Timeout {
		return "timeout"
	}
	return "delivery_failed"
}

// Error reports a failed delivery.
type Error struct {
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("notify: %s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Deliver sends alert through sink, giving up after timeout. The sink runs in
// its own goroutine so a sink that ignores its context cannot stall the caller.
// A nil return means the sink confirmed delivery; anything else is a *Error.
func Deliver(ctx context.Context, sink Sink, alert Alert, timeout time.Duration) error {
	sendCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() { done <- sink.Send(sendCtx, alert) }()

	var err error
	select {
	case err = <-done:
	case <-sendCtx.Done():
		err = sendCtx.Err()
	}
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return &Error{Reason: Timeout, Err: fmt.Errorf("no confirmation within %s: %w", timeout, err)}
	}
	return &Error{Reason: DeliveryFailed, Err: err}
}

// Fanout sends every alert to all of its sinks and joins their errors.
type Fanout []Sink

// Send implements Sink. Every sink is attempted even when an earlier one fails.
func (f Fanout) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, s := range f {
		if err := s.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes alerts to a logger. It is the fallback when no external sink
// is configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Send implements Sink.
func (s *LogSink) Send(_ context.Context, alert Alert) error {
	s.logger.Info("dx alert",
		"callsign", alert.Spot.Callsign,
		"frequency_khz", alert.Spot.FrequencyKHz,
		"band", alert.Spot.Band,
		"mode", alert.Spot.Mode,
		"spotter", alert.Spot.Spotter,
		"text", alert.Text,
	)
	return nil
}
