package service_test

import (
	"sync"
	"time"

	"github.com/campusops/equipment-service/internal/service"
)

// fakeClock drives due-date checks and the reconciler loop without sleeping.
type fakeClock struct {
	mu   sync.Mutex
	now  time.Time
	tick chan time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start, tick: make(chan time.Time, 1)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) Tick() {
	c.tick <- c.Now()
}

func (c *fakeClock) NewTicker(time.Duration) service.Ticker {
	return fakeTicker{ch: c.tick}
}

type fakeTicker struct {
	ch chan time.Time
}

func (t fakeTicker) C() <-chan time.Time { return t.ch }
func (t fakeTicker) Stop()               {}
