package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/relay-switch/internal/domain/relay"
	"github.com/oshokin/relay-switch/internal/stream"
)

// TestMetrics_Record checks every recorder updates its collector.
func TestMetrics_Record(t *testing.T) {
	t.Parallel()

	m, err := New()
	require.NoError(t, err)

	m.EntriesRead("rm8", 3)
	m.EntriesRead("rm8", 2)
	m.EntryDropped("rm8")
	m.BatchCommitted("rm8", true, time.Millisecond)
	m.BatchCommitted("rm8", false, time.Millisecond)
	m.BatchCommitted("rm8", false, time.Millisecond)
	m.CursorAdvanced("rm8", stream.EntryID{Time: 1700000000000, Sequence: 4})
	m.RelaySent(relay.MustFixed(2), relay.On, 384*time.Millisecond)
	m.RelayForcedOff(relay.MustFixed(2))

	require.InDelta(t, 5, testutil.ToFloat64(m.entriesRead.WithLabelValues("rm8")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.entriesDropped.WithLabelValues("rm8")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.commits.WithLabelValues("rm8", "true")), 0)
	require.InDelta(t, 2, testutil.ToFloat64(m.commits.WithLabelValues("rm8", "false")), 0)
	require.InDelta(t, 1700000000000, testutil.ToFloat64(m.cursor.WithLabelValues("rm8")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.sends.WithLabelValues("Relay2", "On")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.forcedOff.WithLabelValues("Relay2")), 0)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

// TestMetrics_Nil verifies a nil receiver records nothing and does not panic.
func TestMetrics_Nil(t *testing.T) {
	t.Parallel()

	var m *Metrics

	require.NotPanics(t, func() {
		m.EntriesRead("rm8", 1)
		m.EntryDropped("rm8")
		m.BatchCommitted("rm8", true, time.Second)
		m.CursorAdvanced("rm8", stream.Beginning)
		m.RelaySent(relay.MustFixed(1), relay.Off, time.Second)
		m.RelayForcedOff(relay.MustFixed(1))
	})
	require.Nil(t, m.Registry())
}
