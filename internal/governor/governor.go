// Package governor forces relays off when they have not been commanded for a while.
//
// Every known relay carries a last-commanded timestamp. A relay whose
// timestamp is older than the threshold is reported as expired once and its
// timestamp is reset, so a continuously silent relay is reported again only
// after another full threshold has passed.
package governor

import (
	"time"

	"github.com/oshokin/relay-switch/internal/domain/relay"
)

// DefaultThreshold is how long a relay may stay uncommanded before it is forced off.
const DefaultThreshold = 5 * time.Second

// Governor tracks when each relay was last commanded.
// It is not safe for concurrent use; the pipeline drives it from one goroutine.
type Governor struct {
	threshold time.Duration
	order     []relay.Address
	last      map[relay.Address]time.Time
}

// New creates a Governor with every known address seeded to now.
// A non-positive threshold selects DefaultThreshold.
func New(threshold time.Duration, known []relay.Address) *Governor {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	g := &Governor{
		threshold: threshold,
		order:     make([]relay.Address, 0, len(known)),
		last:      make(map[relay.Address]time.Time, len(known)),
	}

	g.Touch(known...)

	return g
}

// Threshold returns the silence period after which a relay expires.
func (g *Governor) Threshold() time.Duration {
	return g.threshold
}

// Touch marks addrs as commanded now. Unknown addresses become known.
func (g *Governor) Touch(addrs ...relay.Address) {
	now := time.Now()

	for _, addr := range addrs {
		if _, ok := g.last[addr]; !ok {
			g.order = append(g.order, addr)
		}

		g.last[addr] = now
	}
}

// Expired returns, in first-known order, the addresses whose last command is
// older than the threshold, and resets their timestamps to now.
func (g *Governor) Expired() []relay.Address {
	now := time.Now()

	var expired []relay.Address

	for _, addr := range g.order {
		if now.Sub(g.last[addr]) > g.threshold {
			expired = append(expired, addr)
			g.last[addr] = now
		}
	}

	return expired
}

// Known returns every tracked address in first-known order.
func (g *Governor) Known() []relay.Address {
	return append([]relay.Address(nil), g.order...)
}
