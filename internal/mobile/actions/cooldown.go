package actions

import (
	"sync"
	"time"
)

// Cooldown is the resend countdown. At most one countdown runs at a time;
// starting again cancels the previous one.
type Cooldown struct {
	mu       sync.Mutex
	duration time.Duration
	tick     time.Duration
	now      func() time.Time
	onTick   func(remaining time.Duration)

	deadline time.Time
	gen      uint64
	stop     chan struct{}
}

type CooldownOption func(*Cooldown)

// WithTick sets how often OnTick fires. Default is one second.
func WithTick(d time.Duration) CooldownOption {
	return func(c *Cooldown) { c.tick = d }
}

// OnTick is called from the countdown goroutine on every tick, and once
// more with zero when the countdown finishes.
func OnTick(fn func(remaining time.Duration)) CooldownOption {
	return func(c *Cooldown) { c.onTick = fn }
}

func NewCooldown(d time.Duration, opts ...CooldownOption) *Cooldown {
	c := &Cooldown{duration: d, tick: time.Second, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cooldown) Start() {
	c.mu.Lock()
	c.stopLocked()
	c.gen++
	gen := c.gen
	c.deadline = c.now().Add(c.duration)
	stop := make(chan struct{})
	c.stop = stop
	c.mu.Unlock()

	go c.run(gen, stop)
}

func (c *Cooldown) run(gen uint64, stop chan struct{}) {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			return
		}
		remaining := c.remainingLocked()
		finished := remaining == 0
		if finished {
			c.stop = nil
		}
		fn := c.onTick
		c.mu.Unlock()

		if fn != nil {
			fn(remaining)
		}
		if finished {
			return
		}
	}
}

// Cancel stops the countdown and clears it.
func (c *Cooldown) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.gen++
	c.deadline = time.Time{}
}

func (c *Cooldown) stopLocked() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

func (c *Cooldown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remainingLocked()
}

func (c *Cooldown) remainingLocked() time.Duration {
	if c.deadline.IsZero() {
		return 0
	}
	r := c.deadline.Sub(c.now())
	if r < 0 {
		return 0
	}
	return r
}

func (c *Cooldown) Active() bool {
	return c.Remaining() > 0
}

// Seconds is Remaining rounded up to whole seconds, as shown on screen.
func (c *Cooldown) Seconds() int {
	r := c.Remaining()
	return int((r + time.Second - 1) / time.Second)
}
