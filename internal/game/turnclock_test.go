package game

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clockRecorder struct {
	mu      sync.Mutex
	events  []string
	expired int
}

func (c *clockRecorder) emit(event string, data map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *clockRecorder) expire(onExpire func()) {
	c.mu.Lock()
	c.expired++
	c.mu.Unlock()
	onExpire()
}

func (c *clockRecorder) snapshot() ([]string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.events...), c.expired
}

func TestTurnClockEmitsAndExpires(t *testing.T) {
	rec := &clockRecorder{}
	clock := NewTurnClock(rec.emit, rec.expire)

	fired := make(chan struct{})
	clock.Start(2, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(4 * time.Second):
		t.Fatal("clock did not expire")
	}

	events, expired := rec.snapshot()
	require.NotEmpty(t, events)
	assert.Equal(t, "turnTimer", events[0])
	assert.Contains(t, events, "timerUpdate")
	assert.Equal(t, 1, expired)
	assert.False(t, clock.Active())
}

func TestTurnClockCancelIsIdempotent(t *testing.T) {
	rec := &clockRecorder{}
	clock := NewTurnClock(rec.emit, rec.expire)

	clock.Start(30, func() { t.Error("cancelled clock must not expire") })
	clock.Cancel()
	clock.Cancel()
	assert.False(t, clock.Active())

	time.Sleep(1500 * time.Millisecond)
	_, expired := rec.snapshot()
	assert.Zero(t, expired)
}

func TestTurnClockStartReplacesPrevious(t *testing.T) {
	rec := &clockRecorder{}
	clock := NewTurnClock(rec.emit, rec.expire)

	clock.Start(30, func() { t.Error("replaced clock must not expire") })
	fired := make(chan struct{})
	clock.Start(1, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("replacement clock did not expire")
	}
}
