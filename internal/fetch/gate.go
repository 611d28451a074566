package fetch

import (
	"context"
	"time"
)

// Gate spaces out request starts by a minimum delay.
// One request passes at a time; the next may pass once delay has elapsed
// since the previous one passed. A Gate is safe for concurrent use.
type Gate struct {
	delay time.Duration

	// token is held while a caller waits for its slot; next is only read
	// or written by the holder.
	token chan struct{}
	next  time.Time
}

// NewGate creates a Gate. A delay of zero or less never waits.
func NewGate(delay time.Duration) *Gate {
	if delay < 0 {
		delay = 0
	}
	g := &Gate{
		delay: delay,
		token: make(chan struct{}, 1),
	}
	g.token <- struct{}{}
	return g
}

// Delay returns the minimum gap between two passes.
func (g *Gate) Delay() time.Duration {
	return g.delay
}

// Wait blocks until the caller may start a request, then arms the gate for
// the next caller. It returns ctx.Err() if ctx ends first; the gate is not
// armed in that case.
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.token:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { g.token <- struct{}{} }()

	if wait := time.Until(g.next); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	g.next = time.Now().Add(g.delay)
	return nil
}
