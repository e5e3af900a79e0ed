package reading

import (
	"sync"
	"testing"
	"time"

	"readearn/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountdownReachesZeroAfterNTicks(t *testing.T) {
	clk := testutil.NewFakeClock(time.Now())

	var mu sync.Mutex
	var seen []int
	c := NewCountdown(clk, time.Second, 5, func(_ *Countdown, remaining int) {
		mu.Lock()
		seen = append(seen, remaining)
		mu.Unlock()
	})
	c.Start()
	c.Start()
	assert.Equal(t, 1, clk.Live(), "second Start is a no-op")

	require.Equal(t, 5, clk.TickN(5))
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("countdown did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{4, 3, 2, 1, 0}, seen)
	assert.Equal(t, 0, clk.Live())
}

func TestCountdownStop(t *testing.T) {
	clk := testutil.NewFakeClock(time.Now())
	ticks := 0
	c := NewCountdown(clk, time.Second, 60, func(*Countdown, int) { ticks++ })
	c.Start()
	require.Equal(t, 3, clk.TickN(3))

	c.Stop()
	c.Stop()
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("countdown did not stop")
	}
	assert.Equal(t, 0, clk.Tick())
	assert.LessOrEqual(t, ticks, 3)
}
