// Package metrics exposes pipeline, transmitter and governor counters to Prometheus.
//
// Every method is safe to call on a nil *Metrics, which disables recording.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/oshokin/relay-switch/internal/domain/relay"
	"github.com/oshokin/relay-switch/internal/stream"
	"github.com/oshokin/relay-switch/internal/version"
)

const namespace = "relay_switch"

// Metrics holds the Prometheus collectors of one process.
type Metrics struct {
	registry *prometheus.Registry

	// Pipeline
	entriesRead    *prometheus.CounterVec // By stream
	entriesDropped *prometheus.CounterVec // By stream
	commits        *prometheus.CounterVec // By stream and cold_start
	commitDuration *prometheus.HistogramVec
	cursor         *prometheus.GaugeVec // Cursor time part, by stream

	// Hardware
	sends        *prometheus.CounterVec // By address and state
	sendDuration prometheus.Histogram
	forcedOff    *prometheus.CounterVec // By address
}

// New creates the collectors and registers them, with the Go runtime and
// process collectors, on a fresh registry.
func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		entriesRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "entries_read_total",
			Help:      "Total number of stream entries read",
		}, []string{"stream"}),

		entriesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "entries_dropped_total",
			Help:      "Total number of malformed stream entries dropped",
		}, []string{"stream"}),

		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "commits_total",
			Help:      "Total number of committed batches",
		}, []string{"stream", "cold_start"}),

		commitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "commit_duration_seconds",
			Help:      "Batch commit duration in seconds, transmissions included",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}, []string{"stream"}),

		cursor: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "cursor_time_milliseconds",
			Help:      "Time part of the persisted cursor",
		}, []string{"stream"}),

		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transmitter",
			Name:      "sends_total",
			Help:      "Total number of relay commands transmitted",
		}, []string{"address", "state"}),

		sendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transmitter",
			Name:      "send_duration_seconds",
			Help:      "Time the output was busy per command",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 0.25, 0.5, 1},
		}),

		forcedOff: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "governor",
			Name:      "forced_off_total",
			Help:      "Total number of relays forced off after staying uncommanded",
		}, []string{"address"}),
	}

	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "build_info",
			Help:        "Build metadata, always 1",
			ConstLabels: prometheus.Labels{"version": version.Short(), "commit": version.Commit},
		}, func() float64 { return 1 }),
		m.entriesRead,
		m.entriesDropped,
		m.commits,
		m.commitDuration,
		m.cursor,
		m.sends,
		m.sendDuration,
		m.forcedOff,
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	return m, nil
}

// Registry returns the registry to serve, nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}

	return m.registry
}

// EntriesRead implements stream.Observer.
func (m *Metrics) EntriesRead(name string, count int) {
	if m == nil {
		return
	}

	m.entriesRead.WithLabelValues(name).Add(float64(count))
}

// EntryDropped implements stream.Observer.
func (m *Metrics) EntryDropped(name string) {
	if m == nil {
		return
	}

	m.entriesDropped.WithLabelValues(name).Inc()
}

// BatchCommitted implements stream.Observer.
func (m *Metrics) BatchCommitted(name string, coldStart bool, duration time.Duration) {
	if m == nil {
		return
	}

	cold := "false"
	if coldStart {
		cold = "true"
	}

	m.commits.WithLabelValues(name, cold).Inc()
	m.commitDuration.WithLabelValues(name).Observe(duration.Seconds())
}

// CursorAdvanced implements stream.Observer.
func (m *Metrics) CursorAdvanced(name string, cursor stream.EntryID) {
	if m == nil {
		return
	}

	m.cursor.WithLabelValues(name).Set(float64(cursor.Time))
}

// RelaySent records one transmitted command.
func (m *Metrics) RelaySent(addr relay.Address, state relay.State, duration time.Duration) {
	if m == nil {
		return
	}

	m.sends.WithLabelValues(addr.String(), state.String()).Inc()
	m.sendDuration.Observe(duration.Seconds())
}

// RelayForcedOff records one governor intervention.
func (m *Metrics) RelayForcedOff(addr relay.Address) {
	if m == nil {
		return
	}

	m.forcedOff.WithLabelValues(addr.String()).Inc()
}
