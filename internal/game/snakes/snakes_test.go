package snakes

import (
	"testing"

	"github.com/playarena/backend/internal/game/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine() *Engine {
	return New(1, []engine.Player{
		{UserID: "u1", Seat: 0},
		{UserID: "u2", Seat: 1},
	})
}

func roll(t *testing.T, e *Engine, user string) *engine.Result {
	t.Helper()
	res, err := e.Apply(user, engine.Action{Name: "rollDice"})
	require.NoError(t, err)
	return res
}

func TestLadderClimb(t *testing.T) {
	e := newTestEngine()
	e.s.Players[0].Position = 3
	e.s.RollCount = findRollCountFor(e.s.Seed, 1) // next die is 1 -> lands on 4

	roll(t, e, "u1")
	assert.Equal(t, 14, e.s.Players[0].Position, "cell 4 is the foot of a ladder to 14")
}

func TestSnakeBite(t *testing.T) {
	e := newTestEngine()
	e.s.Players[0].Position = 16
	e.s.RollCount = findRollCountFor(e.s.Seed, 1) // lands on 17, snake to 7

	roll(t, e, "u1")
	assert.Equal(t, 7, e.s.Players[0].Position)
}

func TestOvershootStaysPut(t *testing.T) {
	e := newTestEngine()
	e.s.Players[0].Position = 98
	e.s.RollCount = findRollCountFor(e.s.Seed, 5) // 98+5 > 100

	roll(t, e, "u1")
	assert.Equal(t, 98, e.s.Players[0].Position)
}

func TestWinAtExactly100(t *testing.T) {
	e := newTestEngine()
	e.s.Players[0].Position = 97
	e.s.RollCount = findRollCountFor(e.s.Seed, 3)

	res := roll(t, e, "u1")
	winner, terminal := e.IsTerminal()
	require.True(t, terminal)
	assert.Equal(t, "u1", winner)
	assert.Zero(t, res.Directive.ScheduleResolve, "no turn advance after the win")
}

func TestStrictRotationAndAnimationWindow(t *testing.T) {
	e := newTestEngine()

	res := roll(t, e, "u1")
	assert.Equal(t, advanceDelay, res.Directive.ScheduleResolve)

	// Rolls during the animation window are rejected.
	_, err := e.Apply("u1", engine.Action{Name: "rollDice"})
	assert.Error(t, err)
	_, err = e.Apply("u2", engine.Action{Name: "rollDice"})
	assert.Error(t, err)

	adv := e.Resolve()
	require.Equal(t, "turnChanged", adv.Events[0].Name)
	assert.Equal(t, "u2", adv.Events[0].Data["currentPlayerId"])

	// No extra turn on a six: rotation is strict regardless of die value.
	roll(t, e, "u2")
	e.Resolve()
	assert.Equal(t, "u1", e.actor().UserID)
}

func TestSnapshotRoundTrip(t *testing.T) {
	e := newTestEngine()
	roll(t, e, "u1")

	snap, err := e.Snapshot()
	require.NoError(t, err)

	restored := &Engine{}
	require.NoError(t, restored.Restore(snap))
	assert.Equal(t, e.Scores(), restored.Scores())
	assert.Equal(t, e.rollDie(), restored.rollDie())
}

// findRollCountFor scans for a roll counter whose next derived die equals
// want, so tests can steer the deterministic dice.
func findRollCountFor(seed int64, want int) int64 {
	probe := &Engine{s: state{Seed: seed}}
	for c := int64(0); c < 10000; c++ {
		probe.s.RollCount = c
		if probe.rollDie() == want {
			return c
		}
	}
	panic("die value not found")
}
