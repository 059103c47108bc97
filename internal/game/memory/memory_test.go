package memory

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/playarena/backend/internal/game/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoPlayers() []engine.Player {
	return []engine.Player{
		{UserID: "u1", Seat: 0},
		{UserID: "u2", Seat: 1},
	}
}

func newTestEngine(t *testing.T, seed int64) *Engine {
	t.Helper()
	return New(seed, twoPlayers(), Params{Pairs: 15, TurnSeconds: 15, Lifelines: 3})
}

// boardSymbols decodes the symbol layout from a snapshot.
func boardSymbols(t *testing.T, e *Engine) []string {
	t.Helper()
	data, err := e.Snapshot()
	require.NoError(t, err)
	var s struct {
		Cards []struct {
			Symbol string `json:"symbol"`
		} `json:"cards"`
	}
	require.NoError(t, json.Unmarshal(data, &s))
	symbols := make([]string, len(s.Cards))
	for i, c := range s.Cards {
		symbols[i] = c.Symbol
	}
	return symbols
}

// findPair returns two positions holding the same symbol.
func findPair(t *testing.T, symbols []string) (int, int) {
	t.Helper()
	for i := range symbols {
		for j := i + 1; j < len(symbols); j++ {
			if symbols[i] == symbols[j] {
				return i, j
			}
		}
	}
	t.Fatal("no pair found")
	return 0, 0
}

// findMismatch returns two positions holding different symbols.
func findMismatch(t *testing.T, symbols []string) (int, int) {
	t.Helper()
	for j := 1; j < len(symbols); j++ {
		if symbols[j] != symbols[0] {
			return 0, j
		}
	}
	t.Fatal("no mismatch found")
	return 0, 0
}

func selectCard(t *testing.T, e *Engine, user string, pos int) *engine.Result {
	t.Helper()
	res, err := e.Apply(user, engine.Action{
		Name: "selectCard",
		Data: json.RawMessage(fmt.Sprintf(`{"position":%d}`, pos)),
	})
	require.NoError(t, err)
	return res
}

func TestDeterministicShuffle(t *testing.T) {
	a := boardSymbols(t, newTestEngine(t, 42))
	b := boardSymbols(t, newTestEngine(t, 42))
	c := boardSymbols(t, newTestEngine(t, 43))

	assert.Equal(t, a, b, "same seed must yield identical arrangement")
	assert.NotEqual(t, a, c, "different seed should differ")
	assert.Len(t, a, 30)

	counts := map[string]int{}
	for _, s := range a {
		counts[s]++
	}
	for sym, n := range counts {
		assert.Equal(t, 2, n, "symbol %s must appear exactly twice", sym)
	}
}

func TestMatchScoresAndKeepsTurn(t *testing.T) {
	e := newTestEngine(t, 7)
	symbols := boardSymbols(t, e)
	a, b := findPair(t, symbols)

	res := selectCard(t, e, "u1", a)
	assert.Equal(t, "cardRevealed", res.Events[0].Name)

	res = selectCard(t, e, "u1", b)
	require.True(t, res.Directive.CancelTurnClock)
	require.Greater(t, res.Directive.ScheduleResolve, 0.0)

	res = e.Resolve()
	require.Equal(t, "cardsMatched", res.Events[0].Name)
	assert.Equal(t, map[string]float64{"u1": 10, "u2": 0}, e.Scores())
	// Extra turn: clock restarts for the same actor.
	assert.Equal(t, 15, res.Directive.StartTurnClock)

	// u1 still the actor.
	_, err := e.Apply("u2", engine.Action{Name: "selectCard", Data: json.RawMessage(`{"position":0}`)})
	assert.Error(t, err)
}

func TestMismatchAdvancesTurn(t *testing.T) {
	e := newTestEngine(t, 7)
	symbols := boardSymbols(t, e)
	a, b := findMismatch(t, symbols)

	selectCard(t, e, "u1", a)
	selectCard(t, e, "u1", b)
	res := e.Resolve()

	require.Equal(t, "cardsMismatched", res.Events[0].Name)
	assert.Equal(t, "u2", res.Events[0].Data["nextPlayerId"])
	assert.Equal(t, 15, res.Directive.StartTurnClock)

	// Now u2 is the actor.
	selectCard(t, e, "u2", a)
}

func TestSelectionRejections(t *testing.T) {
	e := newTestEngine(t, 7)
	symbols := boardSymbols(t, e)
	a, b := findPair(t, symbols)

	_, err := e.Apply("u1", engine.Action{Name: "selectCard", Data: json.RawMessage(`{"position":99}`)})
	assert.Error(t, err, "out of range")

	selectCard(t, e, "u1", a)
	_, err = e.Apply("u1", engine.Action{Name: "selectCard", Data: json.RawMessage(fmt.Sprintf(`{"position":%d}`, a))})
	assert.Error(t, err, "same position twice")

	selectCard(t, e, "u1", b)
	_, err = e.Apply("u1", engine.Action{Name: "selectCard", Data: json.RawMessage(`{"position":1}`)})
	assert.Error(t, err, "third card")

	e.Resolve()
	// a and b are now matched.
	_, err = e.Apply("u1", engine.Action{Name: "selectCard", Data: json.RawMessage(fmt.Sprintf(`{"position":%d}`, a))})
	assert.Error(t, err, "already matched")
}

func TestTimeoutLifelinesAndElimination(t *testing.T) {
	e := newTestEngine(t, 7)

	res := e.OnTimeout()
	require.Equal(t, "lifelineLost", res.Events[0].Name)
	assert.Equal(t, 2, res.Events[0].Data["remaining"])
	assert.Equal(t, "turnChanged", res.Events[1].Name)
	assert.Equal(t, "u2", res.Events[1].Data["currentPlayerId"])

	// Timeouts alternate actors: u2, u1, u2, u1. The fifth exhausts u1's
	// lifelines and u2 wins as the last player standing.
	e.OnTimeout() // u2: 3 -> 2
	e.OnTimeout() // u1: 2 -> 1
	e.OnTimeout() // u2: 2 -> 1
	res = e.OnTimeout() // u1: 1 -> 0, eliminated

	winner, terminal := e.IsTerminal()
	require.True(t, terminal)
	assert.Equal(t, "u2", winner)
	assert.True(t, res.Directive.CancelTurnClock)
	assert.Equal(t, "playerEliminated", res.Events[1].Name)
}

func TestInvariantScoresEqualPairsMatched(t *testing.T) {
	e := newTestEngine(t, 99)
	symbols := boardSymbols(t, e)

	// Match every pair as u1.
	matched := map[int]bool{}
	pairs := 0
	for i := range symbols {
		if matched[i] {
			continue
		}
		for j := i + 1; j < len(symbols); j++ {
			if !matched[j] && symbols[j] == symbols[i] {
				selectCard(t, e, "u1", i)
				selectCard(t, e, "u1", j)
				e.Resolve()
				matched[i], matched[j] = true, true
				pairs++
				break
			}
		}
	}

	require.Equal(t, 15, pairs)
	var total float64
	for _, s := range e.Scores() {
		total += s
	}
	assert.Equal(t, float64(10*pairs), total)

	winner, terminal := e.IsTerminal()
	require.True(t, terminal)
	assert.Equal(t, "u1", winner)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	e := newTestEngine(t, 7)
	symbols := boardSymbols(t, e)
	a, b := findPair(t, symbols)
	selectCard(t, e, "u1", a)
	selectCard(t, e, "u1", b)
	e.Resolve()

	data, err := e.Snapshot()
	require.NoError(t, err)

	restored := &Engine{}
	require.NoError(t, restored.Restore(data))

	assert.Equal(t, e.Scores(), restored.Scores())
	d2, err := restored.Snapshot()
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(d2))
}
