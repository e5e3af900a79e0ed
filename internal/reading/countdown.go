package reading

import (
	"sync"
	"time"

	"readearn/internal/clock"
)

// Countdown decrements a number of seconds once per interval and reports
// every step. It owns its ticker and releases it on every exit path.
//
// Stop never blocks, so it may be called while holding the lock that onTick
// takes.
type Countdown struct {
	clock    clock.Clock
	interval time.Duration
	total    int
	onTick   func(c *Countdown, remaining int)

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

func NewCountdown(clk clock.Clock, interval time.Duration, seconds int, onTick func(c *Countdown, remaining int)) *Countdown {
	if clk == nil {
		clk = clock.Real{}
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Countdown{
		clock:    clk,
		interval: interval,
		total:    seconds,
		onTick:   onTick,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the countdown. Calling it again has no effect.
func (c *Countdown) Start() {
	c.startOnce.Do(func() {
		t := c.clock.NewTicker(c.interval)
		go c.run(t)
	})
}

// Stop cancels the countdown.
func (c *Countdown) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Done is closed once the countdown goroutine has exited.
func (c *Countdown) Done() <-chan struct{} {
	return c.done
}

func (c *Countdown) run(t clock.Ticker) {
	defer close(c.done)
	defer t.Stop()

	remaining := c.total
	for remaining > 0 {
		select {
		case <-c.stop:
			return
		case <-t.C():
		}
		// a tick that raced with Stop is dropped
		select {
		case <-c.stop:
			return
		default:
		}
		remaining--
		if c.onTick != nil {
			c.onTick(c, remaining)
		}
	}
}
