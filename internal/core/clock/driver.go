package clock

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultTickRate is the fixed-step frequency in Hz.
const DefaultTickRate = 60

// TickFunc receives the measured elapsed time since the previous tick in milliseconds.
type TickFunc func(deltaMs float64)

// Driver runs a fixed-step loop. Every step measures the real elapsed time on
// its clock, so a late step carries a larger delta instead of being dropped.
type Driver struct {
	clock clockwork.Clock
	step  time.Duration
	tick  TickFunc
}

// NewDriver creates a driver ticking rate times per second. A nil clock means
// the real wall clock.
func NewDriver(clock clockwork.Clock, rate int, tick TickFunc) *Driver {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if rate <= 0 {
		rate = DefaultTickRate
	}

	return &Driver{
		clock: clock,
		step:  time.Second / time.Duration(rate),
		tick:  tick,
	}
}

// Step returns the tick period.
func (d *Driver) Step() time.Duration {
	return d.step
}

// Run blocks, ticking until ctx is done.
func (d *Driver) Run(ctx context.Context) error {
	ticker := d.clock.NewTicker(d.step)
	defer ticker.Stop()

	last := d.clock.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			now := d.clock.Now()
			delta := now.Sub(last)
			last = now
			d.tick(float64(delta) / float64(time.Millisecond))
		}
	}
}
