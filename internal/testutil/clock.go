package testutil

import (
	"sync"
	"time"

	"readearn/internal/clock"
)

// FakeClock is a manually driven clock.Clock for countdown tests.
//
// Tickers never fire on their own; Tick delivers one tick to every live
// ticker and blocks until each one has been received.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*FakeTicker
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves Now forward without firing tickers.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *FakeClock) NewTicker(d time.Duration) clock.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &FakeTicker{interval: d, ch: make(chan time.Time), stopped: make(chan struct{})}
	c.tickers = append(c.tickers, t)
	return t
}

// Tick advances the clock by each ticker's interval and delivers one tick.
// It returns how many tickers received it.
func (c *FakeClock) Tick() int {
	c.mu.Lock()
	live := make([]*FakeTicker, 0, len(c.tickers))
	for _, t := range c.tickers {
		if !t.isStopped() {
			live = append(live, t)
		}
	}
	c.tickers = live
	if len(live) > 0 {
		c.now = c.now.Add(live[0].interval)
	}
	now := c.now
	c.mu.Unlock()

	delivered := 0
	for _, t := range live {
		select {
		case t.ch <- now:
			delivered++
		case <-t.stopped:
		case <-time.After(time.Second):
		}
	}
	return delivered
}

// TickN calls Tick n times and returns the total deliveries.
func (c *FakeClock) TickN(n int) int {
	total := 0
	for i := 0; i < n; i++ {
		total += c.Tick()
	}
	return total
}

// Live reports the number of tickers not yet stopped.
func (c *FakeClock) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tickers {
		if !t.isStopped() {
			n++
		}
	}
	return n
}

type FakeTicker struct {
	interval time.Duration
	ch       chan time.Time
	once     sync.Once
	stopped  chan struct{}
}

func (t *FakeTicker) C() <-chan time.Time { return t.ch }

func (t *FakeTicker) Stop() {
	t.once.Do(func() { close(t.stopped) })
}

func (t *FakeTicker) isStopped() bool {
	select {
	case <-t.stopped:
		return true
	default:
		return false
	}
}
