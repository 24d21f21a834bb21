package clock

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Listener receives clock tick events.
type Listener interface {
	OnTick(now time.Time)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(now time.Time)

func (f ListenerFunc) OnTick(now time.Time) { f(now) }

// Clock drives all periodic maintenance with a single tick loop.
// Listeners decide for themselves whether enough time has passed
// for their own sweep, so one clock serves many intervals.
type Clock struct {
	interval  time.Duration
	listeners []Listener
	mu        sync.RWMutex
	cancel    context.CancelFunc
	logger    *zap.Logger
}

// New creates a clock with the given base tick interval.
func New(interval time.Duration, logger *zap.Logger) *Clock {
	return &Clock{
		interval: interval,
		logger:   logger,
	}
}

// AddListener registers a tick listener.
func (c *Clock) AddListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Start begins the tick loop in a background goroutine.
func (c *Clock) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.loop(ctx)
	c.logger.Info("clock started", zap.Duration("interval", c.interval))
}

// Stop halts the tick loop.
func (c *Clock) Stop() {
	if c.cancel != nil {
		c.cancel()
		c.logger.Info("clock stopped")
	}
}

func (c *Clock) loop(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.tick(now)
		}
	}
}

func (c *Clock) tick(now time.Time) {
	c.mu.RLock()
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.RUnlock()

	for _, l := range listeners {
		l.OnTick(now)
	}
}
