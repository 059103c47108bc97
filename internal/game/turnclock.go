package game

import (
	"sync"
	"time"
)

// TurnClock is a per-room countdown. It emits turnTimer on start, then
// timerUpdate once per second, and posts the expiry handler as a message onto
// the room inbox, never synchronously. A room has at most one active clock;
// Start implicitly cancels the previous one. Cancel is idempotent.
type TurnClock struct {
	mu     sync.Mutex
	cancel chan struct{}

	emit   func(event string, data map[string]interface{})
	expire func(onExpire func())
}

// NewTurnClock wires a clock to its room: emit sends to the room audience,
// expire enqueues the handler onto the room inbox.
func NewTurnClock(emit func(event string, data map[string]interface{}), expire func(onExpire func())) *TurnClock {
	return &TurnClock{emit: emit, expire: expire}
}

// Start begins a countdown of durationSeconds, replacing any running clock.
func (c *TurnClock) Start(durationSeconds int, onExpire func()) {
	c.mu.Lock()
	if c.cancel != nil {
		close(c.cancel)
	}
	stop := make(chan struct{})
	c.cancel = stop
	c.mu.Unlock()

	c.emit("turnTimer", map[string]interface{}{"totalSeconds": durationSeconds})

	go func() {
		// Monotonic deadline; the ticker only paces the updates.
		deadline := time.Now().Add(time.Duration(durationSeconds) * time.Second)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				remaining := int(time.Until(deadline).Round(time.Second) / time.Second)
				if remaining <= 0 {
					c.mu.Lock()
					if c.cancel == stop {
						c.cancel = nil
					}
					c.mu.Unlock()
					c.expire(onExpire)
					return
				}
				c.emit("timerUpdate", map[string]interface{}{"remaining": remaining})
			}
		}
	}()
}

// Reset restarts the countdown with a new duration.
func (c *TurnClock) Reset(durationSeconds int, onExpire func()) {
	c.Start(durationSeconds, onExpire)
}

// Cancel stops the running countdown, if any.
func (c *TurnClock) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		close(c.cancel)
		c.cancel = nil
	}
}

// Remaining is unknown to the clock itself; rooms that need it track the
// deadline alongside. Active reports whether a countdown is running.
func (c *TurnClock) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}
