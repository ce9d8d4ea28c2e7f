// Package schedule provides the cooperative poll loop every wait in the
// engine goes through: check a condition once per tick and give up after a
// fixed number of misses.
package schedule

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when the condition did not hold within the limit.
var ErrTimeout = errors.New("timed out")

// DefaultInterval is one poll per second.
const DefaultInterval = time.Second

// Poller waits in fixed ticks.
type Poller struct {
	Interval time.Duration
}

// New returns a Poller ticking every interval, or DefaultInterval when
// interval is not positive.
func New(interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{Interval: interval}
}

// Wait checks done once per tick. After limit misses it returns ErrTimeout.
// onTick, when set, is called after each miss with the miss count.
// A limit of zero or less waits until done or ctx ends.
func (p *Poller) Wait(ctx context.Context, limit int, done func() bool, onTick func(n int)) error {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for n := 0; ; {
		if done() {
			return nil
		}
		n++
		if limit > 0 && n > limit {
			return ErrTimeout
		}
		if onTick != nil {
			onTick(n)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
