package shadow

import (
	"context"
	"sync"
	"time"
)

// FrameClock marks paint boundaries. NextFrame blocks until the next frame
// begins or ctx is done.
type FrameClock interface {
	NextFrame(ctx context.Context) error
}

// ImmediateClock treats every call as a frame boundary. Useful for tests
// and for rendering snapshots where nothing is painted.
type ImmediateClock struct{}

// NextFrame returns immediately unless ctx is already done.
func (ImmediateClock) NextFrame(ctx context.Context) error {
	return ctx.Err()
}

// TickerClock releases all waiters together on a fixed-rate tick, so
// elements waiting on the same frame observe the same boundary.
type TickerClock struct {
	interval time.Duration

	start sync.Once
	stop  chan struct{}
	mu    sync.Mutex
	frame chan struct{}
}

// NewTickerClock returns a clock ticking fps times a second. Non-positive
// rates default to 60.
func NewTickerClock(fps int) *TickerClock {
	if fps <= 0 {
		fps = 60
	}
	return &TickerClock{
		interval: time.Second / time.Duration(fps),
		stop:     make(chan struct{}),
		frame:    make(chan struct{}),
	}
}

// Interval returns the time between frames.
func (c *TickerClock) Interval() time.Duration {
	return c.interval
}

// NextFrame waits for the next tick. It returns at once after Stop.
func (c *TickerClock) NextFrame(ctx context.Context) error {
	c.start.Do(func() { go c.run() })

	c.mu.Lock()
	frame := c.frame
	c.mu.Unlock()

	select {
	case <-frame:
		return nil
	case <-c.stop:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *TickerClock) run() {
	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.mu.Lock()
			close(c.frame)
			c.frame = make(chan struct{})
			c.mu.Unlock()
		case <-c.stop:
			c.mu.Lock()
			close(c.frame)
			c.frame = make(chan struct{})
			c.mu.Unlock()
			return
		}
	}
}

// Stop halts the clock. Pending waiters are released.
func (c *TickerClock) Stop() {
	c.start.Do(func() {})
	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
}
