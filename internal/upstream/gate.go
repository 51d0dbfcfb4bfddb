package upstream

import (
	"context"
	"sync"
	"time"

	"github.com/tunetrail/tunetrail/internal/metrics"
)

// Gate is a per-provider pause switch shared by every caller of that
// provider. While closed, Wait blocks; the first caller to Trip a closed
// cooldown owns it and the gate reopens after the cooldown even if that
// caller goes away.
type Gate struct {
	provider string

	mu      sync.Mutex
	reopen  chan struct{} // non-nil while closed; closed on reopen
	waiters int
}

func NewGate(provider string) *Gate {
	return &Gate{provider: provider}
}

// Wait blocks until the gate is open or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		ch := g.reopen
		if ch == nil {
			g.mu.Unlock()
			return ctx.Err()
		}
		g.waiters++
		g.mu.Unlock()

		select {
		case <-ch:
			g.leave()
		case <-ctx.Done():
			g.leave()
			return ctx.Err()
		}
	}
}

func (g *Gate) leave() {
	g.mu.Lock()
	g.waiters--
	g.mu.Unlock()
}

// Trip closes the gate for d. It returns false without sleeping when the gate
// is already closed. Otherwise it blocks until the gate reopens (or ctx is
// done) and returns true. The reopen is scheduled independently of ctx.
func (g *Gate) Trip(ctx context.Context, d time.Duration) bool {
	g.mu.Lock()
	if g.reopen != nil {
		g.mu.Unlock()
		return false
	}
	ch := make(chan struct{})
	g.reopen = ch
	g.mu.Unlock()

	metrics.UpstreamCooldowns.WithLabelValues(g.provider).Inc()
	if d < 0 {
		d = 0
	}
	time.AfterFunc(d, func() {
		g.mu.Lock()
		g.reopen = nil
		g.mu.Unlock()
		close(ch)
	})

	select {
	case <-ch:
	case <-ctx.Done():
	}
	return true
}

// Closed reports whether a cooldown is in progress.
func (g *Gate) Closed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reopen != nil
}

// Waiters is the number of callers currently blocked in Wait.
func (g *Gate) Waiters() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.waiters
}
