package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/dx-spot-relay/internal/domain"
	"github.com/couchcryptid/dx-spot-relay/internal/feed"
	"github.com/couchcryptid/dx-spot-relay/internal/notify"
	"github.com/couchcryptid/dx-spot-relay/internal/observability"
	"github.com/jonboulle/clockwork"
)

// FeedSource opens feed sessions. *feed.Client implements it.
type FeedSource interface {
	Connect(ctx context.Context) (feed.Stream, error)
	State() feed.State
}

// Deduper decides whether a matching spot may alert again. *dedup.Cache implements it.
type Deduper interface {
	ShouldAlert(key domain.DedupKey, now time.Time, window time.Duration) bool
	Len() int
}

// EventRecorder receives the relay's structured events. *observability.EventLog implements it.
type EventRecorder interface {
	Emit(kind observability.EventKind, attrs ...any)
}

// Config holds the dispatcher's policy knobs.
type Config struct {
	Criteria      []domain.TargetCriterion
	DedupWindow   time.Duration
	NotifyTimeout time.Duration
	BackoffMin    time.Duration
	BackoffMax    time.Duration
	BackoffReset  time.Duration
}

// Dispatcher drives the relay: it keeps one feed session open and pushes each
// line through parse, filter, dedup, format and delivery.
type Dispatcher struct {
	cfg     Config
	source  FeedSource
	dedup   Deduper
	sink    notify.Sink
	events  EventRecorder
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   clockwork.Clock
}

// New creates a Dispatcher. A nil clock means the real clock.
func New(cfg Config, source FeedSource, dedup Deduper, sink notify.Sink, events EventRecorder,
	logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Dispatcher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Dispatcher{
		cfg:     cfg,
		source:  source,
		dedup:   dedup,
		sink:    sink,
		events:  events,
		logger:  logger,
		metrics: metrics,
		clock:   clock,
	}
}

// CheckReadiness returns nil while a feed session is streaming.
func (d *Dispatcher) CheckReadiness(_ context.Context) error {
	if s := d.source.State(); s != feed.Streaming {
		return fmt.Errorf("feed is %s", s)
	}
	return nil
}

// Run keeps a feed session open until ctx is cancelled, reconnecting with
// exponential backoff. It returns nil on cancellation; feed errors never end it.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("dispatcher started",
		"criteria", len(d.cfg.Criteria),
		"dedup_window", d.cfg.DedupWindow,
		"backoff_min", d.cfg.BackoffMin,
		"backoff_max", d.cfg.BackoffMax,
	)
	d.metrics.DispatcherRunning.Set(1)
	defer d.metrics.DispatcherRunning.Set(0)

	bo := newBackoff(d.cfg.BackoffMin, d.cfg.BackoffMax, d.cfg.BackoffReset)
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			d.logger.Info("dispatcher stopping", "reason", ctx.Err())
			return nil
		}
		if attempt > 0 {
			d.metrics.Reconnects.Inc()
		}

		lasted, err := d.runSession(ctx)
		d.metrics.FeedState.Set(float64(d.source.State()))
		if ctx.Err() != nil {
			d.logger.Info("dispatcher stopping", "reason", ctx.Err())
			return nil
		}

		bo.sessionEnded(lasted)
		delay := bo.next()
		d.events.Emit(observability.EventDisconnected,
			"reason", feed.ReasonOf(err).String(),
			"error", err,
			"session_duration", lasted,
			"retry_in", delay,
		)
		if !d.sleep(ctx, delay) {
			d.logger.Info("dispatcher stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// runSession connects, streams until the session fails and closes it. The
// stream is fully closed before it returns, so reconnects never overlap.
func (d *Dispatcher) runSession(ctx context.Context) (time.Duration, error) {
	stream, err := d.source.Connect(ctx)
	if err != nil {
		return 0, err
	}
	started := d.clock.Now()
	d.events.Emit(observability.EventConnected)
	defer func() { _ = stream.Close() }()

	for {
		line, err := stream.ReadLine(ctx)
		if err != nil {
			return d.clock.Since(started), err
		}
		d.metrics.FeedState.Set(float64(d.source.State()))
		d.HandleLine(ctx, line)
	}
}

// HandleLine runs one feed line through the pipeline. Every failure is
// recovered here: bad lines are dropped and failed deliveries are logged.
func (d *Dispatcher) HandleLine(ctx context.Context, line string) {
	d.metrics.LinesRead.Inc()
	now := d.clock.Now()

	spot, err := domain.ParseSpot(line, now)
	if err != nil {
		reason := "unknown"
		var perr *domain.ParseError
		if errors.As(err, &perr) {
			reason = perr.Kind.String()
		}
		d.metrics.ParseDrops.WithLabelValues(reason).Inc()
		d.events.Emit(observability.EventParseDropped, "reason", reason, "line", line)
		return
	}
	d.metrics.SpotsParsed.Inc()

	if !domain.MatchesAny(spot, d.cfg.Criteria) {
		return
	}
	d.metrics.SpotsMatched.Inc()
	key := spot.DedupKey()
	d.events.Emit(observability.EventSpotMatched, spotAttrs(spot)...)

	allowed := d.dedup.ShouldAlert(key, now, d.cfg.DedupWindow)
	d.metrics.DedupEntries.Set(float64(d.dedup.Len()))
	if !allowed {
		d.metrics.SpotsSuppressed.Inc()
		d.events.Emit(observability.EventSpotSuppressed, "key", key.String())
		return
	}

	d.deliver(ctx, spot)
}

// deliver makes exactly one bounded delivery attempt. The dedup entry stays
// recorded whatever the outcome.
func (d *Dispatcher) deliver(ctx context.Context, spot domain.Spot) {
	alert := notify.Alert{Text: domain.FormatAlert(spot), Spot: spot}

	start := time.Now()
	err := notify.Deliver(ctx, d.sink, alert, d.cfg.NotifyTimeout)
	d.metrics.DeliveryDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		reason := notify.DeliveryFailed
		var nerr *notify.Error
		if errors.As(err, &nerr) {
			reason = nerr.Reason
		}
		d.metrics.AlertsFailed.WithLabelValues(reason.String()).Inc()
		d.events.Emit(observability.EventAlertFailed,
			append(spotAttrs(spot), "reason", reason.String(), "error", err)...)
		return
	}
	d.metrics.AlertsSent.Inc()
	d.events.Emit(observability.EventAlertSent, spotAttrs(spot)...)
}

// sleep waits for d on the dispatcher's clock. It returns false if ctx ends first.
func (d *Dispatcher) sleep(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := d.clock.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

func spotAttrs(s domain.Spot) []any {
	return []any{
		"callsign", s.Callsign,
		"frequency_khz", s.FrequencyKHz,
		"band", string(s.Band),
		"mode", string(s.Mode),
		"spotter", s.Spotter,
	}
}
