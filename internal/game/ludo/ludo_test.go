package ludo

import (
	"encoding/json"
	"testing"

	"github.com/playarena/backend/internal/game/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classicEngine() *Engine {
	return New(1, []engine.Player{
		{UserID: "u1", Seat: 0, Color: "red"},
		{UserID: "u2", Seat: 1, Color: "blue"},
	}, Params{Variant: VariantClassic})
}

func fastEngine() *Engine {
	return New(1, []engine.Player{
		{UserID: "u1", Seat: 0, Color: "red"},
		{UserID: "u2", Seat: 1, Color: "blue"},
	}, Params{Variant: VariantFast, ClockSeconds: 300})
}

func TestMoveTargetFromHome(t *testing.T) {
	p := &piece{State: stateHome}

	_, ok := moveTarget(p, 0, 3, true)
	assert.False(t, ok, "entering needs a six in Classic")

	tgt, ok := moveTarget(p, 0, 6, true)
	require.True(t, ok)
	assert.Equal(t, stateBoard, tgt.State)
	assert.Equal(t, 0, tgt.Cell)
}

func TestMoveTargetRingWrap(t *testing.T) {
	// Blue enters at 13; 45 steps in lands on (13+45)%52 = 6.
	p := &piece{State: stateBoard, Cell: 6}
	tgt, ok := moveTarget(p, 13, 5, true)
	require.True(t, ok)
	assert.Equal(t, stateBoard, tgt.State)
	assert.Equal(t, 11, tgt.Cell)
}

func TestMoveTargetEntersHomeStretch(t *testing.T) {
	// Red at traveled=49 (cell 49). A 3 gives total 52 -> stretch index 1.
	p := &piece{State: stateBoard, Cell: 49}
	tgt, ok := moveTarget(p, 0, 3, true)
	require.True(t, ok)
	assert.Equal(t, stateHomeStretch, tgt.State)
	assert.Equal(t, 1, tgt.Cell)
}

func TestMoveTargetFinishAndOvershoot(t *testing.T) {
	p := &piece{State: stateHomeStretch, Cell: 3}

	tgt, ok := moveTarget(p, 0, 2, true)
	require.True(t, ok)
	assert.Equal(t, stateFinished, tgt.State)

	_, ok = moveTarget(p, 0, 4, true)
	assert.False(t, ok, "overshooting the stretch end is invalid")
}

func TestCaptureOnNonSafeCell(t *testing.T) {
	e := classicEngine()
	red := e.s.Players[0]
	blue := e.s.Players[1]

	// Red piece parked on cell 10 (not safe), blue two cells behind.
	red.Pieces[0] = piece{ID: 0, State: stateBoard, Cell: 10}
	blue.Pieces[0] = piece{ID: 0, State: stateBoard, Cell: 8}
	e.s.TurnIndex = 1
	e.s.Phase = phaseMove
	e.s.Dice = 2

	res, err := e.applyMove(0)
	require.NoError(t, err)

	moved := res.Events[0]
	require.Equal(t, "pieceMoved", moved.Name)
	captured := moved.Data["capturedPieces"].([]map[string]interface{})
	require.Len(t, captured, 1)
	assert.Equal(t, "u1", captured[0]["playerId"])

	assert.Equal(t, stateHome, red.Pieces[0].State)
	assert.Equal(t, killPoints, blue.Score)
	assert.Equal(t, 0, red.Score, "penalty floors at zero")
}

func TestNoCaptureOnSafeCell(t *testing.T) {
	e := classicEngine()
	red := e.s.Players[0]
	blue := e.s.Players[1]

	// Cell 21 is safe.
	red.Pieces[0] = piece{ID: 0, State: stateBoard, Cell: 21}
	blue.Pieces[0] = piece{ID: 0, State: stateBoard, Cell: 19}
	e.s.TurnIndex = 1
	e.s.Phase = phaseMove
	e.s.Dice = 2

	_, err := e.applyMove(0)
	require.NoError(t, err)
	assert.Equal(t, stateBoard, red.Pieces[0].State)
	assert.Equal(t, 0, blue.Score)
}

func TestFastCaptureReturnsToEntry(t *testing.T) {
	e := fastEngine()
	red := e.s.Players[0]
	blue := e.s.Players[1]

	red.Pieces[0] = piece{ID: 0, State: stateBoard, Cell: 10}
	blue.Pieces[0] = piece{ID: 0, State: stateBoard, Cell: 9}
	e.s.TurnIndex = 1
	e.s.Phase = phaseMove
	e.s.Dice = 1

	_, err := e.applyMove(0)
	require.NoError(t, err)
	assert.Equal(t, stateBoard, red.Pieces[0].State)
	assert.Equal(t, entryCells["red"], red.Pieces[0].Cell)
}

func TestSixGrantsExtraTurn(t *testing.T) {
	e := classicEngine()
	red := e.s.Players[0]
	red.Pieces[0] = piece{ID: 0, State: stateBoard, Cell: 5}
	e.s.Phase = phaseMove
	e.s.Dice = 6

	res, err := e.applyMove(0)
	require.NoError(t, err)
	assert.Equal(t, true, res.Events[0].Data["extraTurn"])
	assert.Equal(t, 0, e.s.TurnIndex, "turn stays with the roller")
	assert.Equal(t, phaseRoll, e.s.Phase)
}

func TestFinishAwardsPointsAndWin(t *testing.T) {
	e := classicEngine()
	red := e.s.Players[0]
	for i := 0; i < 3; i++ {
		red.Pieces[i] = piece{ID: i, State: stateFinished}
	}
	red.Finished = 3
	red.Pieces[3] = piece{ID: 3, State: stateHomeStretch, Cell: 4}
	e.s.Phase = phaseMove
	e.s.Dice = 1

	_, err := e.applyMove(3)
	require.NoError(t, err)

	winner, terminal := e.IsTerminal()
	require.True(t, terminal)
	assert.Equal(t, "u1", winner)
	assert.Equal(t, finishPoints, red.Score)
}

func TestPieceConservation(t *testing.T) {
	e := fastEngine()
	// Play a handful of rolls and moves; the per-colour piece count over the
	// four states must stay 4.
	for i := 0; i < 40 && !e.s.Terminal; i++ {
		res, err := e.applyRoll()
		require.NoError(t, err)
		if e.s.Phase == phaseMove {
			movable := res.Events[0].Data["movablePieces"].([]int)
			_, err = e.applyMove(movable[0])
			require.NoError(t, err)
		} else if e.s.Pending {
			e.Resolve()
		}
	}

	for _, p := range e.s.Players {
		count := 0
		for _, pc := range p.Pieces {
			switch pc.State {
			case stateHome, stateBoard, stateHomeStretch, stateFinished:
				count++
			}
		}
		assert.Equal(t, piecesPerSide, count)
	}
}

func TestFastTimerWinTieBreaks(t *testing.T) {
	e := fastEngine()
	e.s.Players[0].Score = 23
	e.s.Players[1].Score = 17

	e.OnTimeout()
	winner, terminal := e.IsTerminal()
	require.True(t, terminal)
	assert.Equal(t, "u1", winner)

	// Tied score: more pieces finished wins.
	e2 := fastEngine()
	e2.s.Players[0].Score = 20
	e2.s.Players[1].Score = 20
	e2.s.Players[1].Finished = 2
	e2.OnTimeout()
	winner, _ = e2.IsTerminal()
	assert.Equal(t, "u2", winner)

	// Fully tied: lower seat wins.
	e3 := fastEngine()
	e3.OnTimeout()
	winner, _ = e3.IsTerminal()
	assert.Equal(t, "u1", winner)
}

func TestDeterministicDiceAfterRestore(t *testing.T) {
	e := fastEngine()
	e.applyRoll()
	snap, err := e.Snapshot()
	require.NoError(t, err)

	restored := &Engine{}
	require.NoError(t, restored.Restore(snap))

	// The next die value must be identical on both instances.
	assert.Equal(t, e.rollDie(), restored.rollDie())
}

func TestSnapshotRoundTrip(t *testing.T) {
	e := classicEngine()
	e.s.Players[0].Pieces[0] = piece{ID: 0, State: stateBoard, Cell: 17}
	e.s.Players[0].Score = 5

	snap, err := e.Snapshot()
	require.NoError(t, err)

	restored := &Engine{}
	require.NoError(t, restored.Restore(snap))
	again, err := restored.Snapshot()
	require.NoError(t, err)

	var a, b map[string]interface{}
	require.NoError(t, json.Unmarshal(snap, &a))
	require.NoError(t, json.Unmarshal(again, &b))
	assert.Equal(t, a, b)
}
