// Package clocktest provides a virtual clock for tests of code driven by util.Clock.
package clocktest

import (
	"context"
	"sync"
	"time"

	"github.com/dilshat/birthday-sender/util"
)

var _ util.Clock = (*FakeClock)(nil)

// FakeClock is a virtual util.Clock. Sleep advances the time instantly.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	slept  []time.Duration
	onTick func(now time.Time)
}

func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	now, onTick := c.now, c.onTick
	c.mu.Unlock()

	if onTick != nil {
		onTick(now)
	}
	return ctx.Err()
}

func (c *FakeClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// OnSleep registers a callback invoked after every Sleep with the new time
func (c *FakeClock) OnSleep(f func(now time.Time)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTick = f
}

// Slept returns all durations passed to Sleep so far
func (c *FakeClock) Slept() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.slept...)
}
