package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dxrelay"

// Metrics holds the Prometheus counters, histograms, and gauges for the relay.
type Metrics struct {
	LinesRead         prometheus.Counter
	SpotsParsed       prometheus.Counter
	ParseDrops        *prometheus.CounterVec // labels: reason={not_a_spot,malformed_frequency,malformed_callsign}
	SpotsMatched      prometheus.Counter
	SpotsSuppressed   prometheus.Counter
	AlertsSent        prometheus.Counter
	AlertsFailed      *prometheus.CounterVec // labels: reason={delivery_failed,timeout}
	Reconnects        prometheus.Counter
	Events            *prometheus.CounterVec // labels: event
	FeedState         prometheus.Gauge
	DedupEntries      prometheus.Gauge
	DispatcherRunning prometheus.Gauge

	DeliveryDuration prometheus.Histogram
}

// NewMetrics creates and registers all relay metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, so
// tests can build as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		LinesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_read_total",
			Help:      "Total non-empty lines read from the cluster feed.",
		}),
		SpotsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spots_parsed_total",
			Help:      "Total feed lines that parsed into a valid spot.",
		}),
		ParseDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_drops_total",
			Help:      "Feed lines dropped by the parser, by reason.",
		}, []string{"reason"}),
		SpotsMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spots_matched_total",
			Help:      "Spots that matched at least one target criterion.",
		}),
		SpotsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spots_suppressed_total",
			Help:      "Matching spots suppressed by the dedup window.",
		}),
		AlertsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_sent_total",
			Help:      "Alerts confirmed by the notifier sink.",
		}),
		AlertsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_failed_total",
			Help:      "Alerts the notifier sink did not confirm, by reason.",
		}, []string{"reason"}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Feed connection attempts after the first one.",
		}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Structured events emitted by the relay, by kind.",
		}, []string{"event"}),
		FeedState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_state",
			Help:      "Feed connection state: 0 disconnected, 1 connecting, 2 logged in, 3 streaming.",
		}),
		DedupEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dedup_entries",
			Help:      "Entries currently held by the dedup cache.",
		}),
		DispatcherRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatcher_running",
			Help:      "1 when the dispatcher loop is active, 0 when shut down.",
		}),
		DeliveryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "alert_delivery_duration_seconds",
			Help:      "Time spent delivering one alert to the notifier sink.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.LinesRead,
		m.SpotsParsed,
		m.ParseDrops,
		m.SpotsMatched,
		m.SpotsSuppressed,
		m.AlertsSent,
		m.AlertsFailed,
		m.Reconnects,
		m.Events,
		m.FeedState,
		m.DedupEntries,
		m.DispatcherRunning,
		m.DeliveryDuration,
	}
}
