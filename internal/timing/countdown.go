// Package timing owns the session and per-question countdowns and the
// silence detector that drive auto-submit.
package timing

import (
	"sync"
	"time"

	"github.com/rbright/proctor/internal/clock"
)

// Countdown ticks once per second until it reaches zero, then calls
// onExpire exactly once. Callbacks run outside the countdown's lock on
// the clock's goroutine; owners must tolerate a tick racing Stop.
type Countdown struct {
	clock    clock.Clock
	onTick   func(remaining time.Duration)
	onExpire func()

	mu        sync.Mutex
	remaining time.Duration
	timer     *clock.Timer
	running   bool
	expired   bool
	stopped   bool
}

func NewCountdown(c clock.Clock, total time.Duration, onTick func(time.Duration), onExpire func()) *Countdown {
	if c == nil {
		c = clock.Real()
	}
	if total < 0 {
		total = 0
	}
	return &Countdown{
		clock:     c,
		onTick:    onTick,
		onExpire:  onExpire,
		remaining: total,
	}
}

// Start begins ticking. Calling Start on a running, stopped, or expired
// countdown does nothing.
func (c *Countdown) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running || c.stopped || c.expired {
		return
	}
	c.running = true
	c.scheduleLocked()
}

// Stop cancels the countdown. It never fires afterwards.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	c.running = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Countdown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *Countdown) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}

func (c *Countdown) scheduleLocked() {
	step := min(time.Second, c.remaining)
	if step <= 0 {
		// Never fire inline: Start is usually called under the owner's lock.
		step = time.Nanosecond
	}
	c.timer = c.clock.AfterFunc(step, func() { c.tick(step) })
}

func (c *Countdown) tick(step time.Duration) {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.remaining = max(c.remaining-step, 0)
	remaining := c.remaining
	done := remaining == 0
	if done {
		c.running = false
		c.expired = true
		c.timer = nil
	} else {
		c.scheduleLocked()
	}
	c.mu.Unlock()

	if c.onTick != nil {
		c.onTick(remaining)
	}
	if done && c.onExpire != nil {
		c.onExpire()
	}
}
