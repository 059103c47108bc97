// Package snakes implements Snakes & Ladders on the standard 1..100 board.
package snakes

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/playarena/backend/internal/game/engine"
)

const (
	winCell = 100
	// advanceDelay is the animation window after each roll; rolls inside it
	// are rejected.
	advanceDelay = 3.0
)

var snakes = map[int]int{
	99: 21, 95: 75, 87: 24, 62: 19, 54: 34, 49: 11, 46: 25, 17: 7,
}

var ladders = map[int]int{
	4: 14, 9: 31, 20: 38, 28: 84, 40: 59, 51: 67, 63: 81, 71: 91,
}

type playerState struct {
	engine.Player
	Position int `json:"position"`
}

type state struct {
	Seed      int64          `json:"seed"`
	Players   []*playerState `json:"players"`
	TurnIndex int            `json:"turn_index"`
	RollCount int64          `json:"roll_count"`
	Pending   bool           `json:"pending"`
	Terminal  bool           `json:"terminal"`
	WinnerID  string         `json:"winner_id,omitempty"`
}

// Engine is the Snakes & Ladders ruleset.
type Engine struct {
	s state
}

func New(seed int64, players []engine.Player) *Engine {
	e := &Engine{s: state{Seed: seed}}
	for _, pl := range players {
		e.s.Players = append(e.s.Players, &playerState{Player: pl})
	}
	return e
}

func (e *Engine) actor() *playerState {
	return e.s.Players[e.s.TurnIndex]
}

func (e *Engine) rollDie() int {
	e.s.RollCount++
	h := fnv.New64a()
	fmt.Fprintf(h, "%d:%d", e.s.Seed, e.s.RollCount)
	return int(h.Sum64()%6) + 1
}

func (e *Engine) Start() *engine.Result {
	return &engine.Result{Events: []engine.Event{
		engine.Broadcast("gameStarted", map[string]interface{}{
			"initialState": e.publicState(),
		}),
		engine.Broadcast("turnChanged", map[string]interface{}{
			"currentPlayerId": e.actor().UserID,
		}),
	}}
}

func (e *Engine) Apply(userID string, action engine.Action) (*engine.Result, error) {
	if e.s.Terminal {
		return nil, errors.New("game is over")
	}
	if action.Name != "rollDice" {
		return nil, fmt.Errorf("unknown action %q", action.Name)
	}
	if e.s.Pending {
		return nil, errors.New("previous move still animating")
	}
	if e.actor().UserID != userID {
		return nil, errors.New("not your turn")
	}

	actor := e.actor()
	dice := e.rollDie()
	from := actor.Position
	landed := from + dice

	events := []engine.Event{engine.Broadcast("diceRolled", map[string]interface{}{
		"playerId":      actor.UserID,
		"value":         dice,
		"movablePieces": []int{0},
	})}

	if landed > winCell {
		// Overshooting 100 stays in place.
		landed = from
	}
	final := landed
	if to, ok := snakes[landed]; ok {
		final = to
	} else if to, ok := ladders[landed]; ok {
		final = to
	}
	actor.Position = final

	events = append(events, engine.Broadcast("pieceMoved", map[string]interface{}{
		"playerId":       actor.UserID,
		"pieceId":        0,
		"boardAfter":     e.publicState(),
		"capturedPieces": []interface{}{},
		"extraTurn":      false,
	}))

	if final == winCell {
		e.s.Terminal = true
		e.s.WinnerID = actor.UserID
		return &engine.Result{Events: events}, nil
	}

	// Strict rotation after a 3 s animation window; no extra turn on six.
	e.s.Pending = true
	return &engine.Result{
		Events:    events,
		Directive: engine.Directive{ScheduleResolve: advanceDelay},
	}, nil
}

func (e *Engine) Resolve() *engine.Result {
	if e.s.Terminal || !e.s.Pending {
		return &engine.Result{}
	}
	e.s.Pending = false
	e.s.TurnIndex = (e.s.TurnIndex + 1) % len(e.s.Players)
	return &engine.Result{Events: []engine.Event{
		engine.Broadcast("turnChanged", map[string]interface{}{
			"currentPlayerId": e.actor().UserID,
		}),
	}}
}

func (e *Engine) OnTimeout() *engine.Result {
	return &engine.Result{}
}

func (e *Engine) IsTerminal() (string, bool) {
	return e.s.WinnerID, e.s.Terminal
}

func (e *Engine) Scores() map[string]float64 {
	scores := make(map[string]float64, len(e.s.Players))
	for _, p := range e.s.Players {
		scores[p.UserID] = float64(p.Position)
	}
	return scores
}

func (e *Engine) publicState() map[string]interface{} {
	players := make([]map[string]interface{}, len(e.s.Players))
	for i, p := range e.s.Players {
		players[i] = map[string]interface{}{
			"userId":   p.UserID,
			"seat":     p.Seat,
			"position": p.Position,
		}
	}
	return map[string]interface{}{
		"players":         players,
		"currentPlayerId": e.actor().UserID,
		"snakes":          snakes,
		"ladders":         ladders,
	}
}

// CurrentState reports the public view for late joiners and reconnects.
func (e *Engine) CurrentState() map[string]interface{} {
	return e.publicState()
}

func (e *Engine) Snapshot() ([]byte, error) {
	return json.Marshal(&e.s)
}

func (e *Engine) Restore(data []byte) error {
	return json.Unmarshal(data, &e.s)
}
