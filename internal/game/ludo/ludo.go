// Package ludo implements the Classic and Fast Ludo rulesets over a shared
// board model.
package ludo

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/playarena/backend/internal/game/engine"
)

// Variants
const (
	VariantClassic = "CLASSIC_LUDO"
	VariantFast    = "FAST_LUDO"
)

// Turn phases
const (
	phaseRoll = "roll"
	phaseMove = "move"
)

const noMoveAdvanceDelay = 3.0

type playerState struct {
	engine.Player
	Pieces   [piecesPerSide]piece `json:"pieces"`
	Score    int                  `json:"score"`
	Captures int                  `json:"captures"`
	Finished int                  `json:"finished"`
}

type state struct {
	Variant      string         `json:"variant"`
	Seed         int64          `json:"seed"`
	Players      []*playerState `json:"players"`
	TurnIndex    int            `json:"turn_index"`
	Phase        string         `json:"phase"`
	Dice         int            `json:"dice"`
	RollCount    int64          `json:"roll_count"`
	ClockSeconds int            `json:"clock_seconds"`
	Pending      bool           `json:"pending"`
	Terminal     bool           `json:"terminal"`
	WinnerID     string         `json:"winner_id,omitempty"`
}

// Engine drives one Ludo room, either variant.
type Engine struct {
	s state
}

// Params selects the variant and the Fast-Ludo game clock.
type Params struct {
	Variant      string
	ClockSeconds int
}

// New builds a Ludo engine. Fast Ludo starts every piece on the board at its
// colour's entry; Classic starts them at home.
func New(seed int64, players []engine.Player, p Params) *Engine {
	e := &Engine{s: state{
		Variant:      p.Variant,
		Seed:         seed,
		Phase:        phaseRoll,
		ClockSeconds: p.ClockSeconds,
	}}

	for _, pl := range players {
		ps := &playerState{Player: pl}
		if ps.Color == "" {
			ps.Color = ColorForSeat(pl.Seat)
		}
		for i := 0; i < piecesPerSide; i++ {
			if p.Variant == VariantFast {
				ps.Pieces[i] = piece{ID: i, State: stateBoard, Cell: entryCells[ps.Color]}
			} else {
				ps.Pieces[i] = piece{ID: i, State: stateHome}
			}
		}
		e.s.Players = append(e.s.Players, ps)
	}
	return e
}

func (e *Engine) actor() *playerState {
	return e.s.Players[e.s.TurnIndex]
}

// rollDie derives the next die value from the seed and the roll counter, so a
// restored snapshot replays identically.
func (e *Engine) rollDie() int {
	e.s.RollCount++
	h := fnv.New64a()
	fmt.Fprintf(h, "%d:%d", e.s.Seed, e.s.RollCount)
	return int(h.Sum64()%6) + 1
}

func (e *Engine) Start() *engine.Result {
	res := &engine.Result{
		Events: []engine.Event{
			engine.Broadcast("gameStarted", map[string]interface{}{
				"initialState": e.publicState(),
			}),
			engine.Broadcast("turnChanged", map[string]interface{}{
				"currentPlayerId": e.actor().UserID,
			}),
		},
	}
	if e.s.Variant == VariantFast && e.s.ClockSeconds > 0 {
		res.Directive = engine.Directive{StartTurnClock: e.s.ClockSeconds}
	}
	return res
}

type movePieceData struct {
	PieceID int `json:"pieceId"`
}

func (e *Engine) Apply(userID string, action engine.Action) (*engine.Result, error) {
	if e.s.Terminal {
		return nil, errors.New("game is over")
	}
	if e.actor().UserID != userID {
		return nil, errors.New("not your turn")
	}

	switch action.Name {
	case "rollDice":
		return e.applyRoll()
	case "movePiece":
		var data movePieceData
		if err := json.Unmarshal(action.Data, &data); err != nil {
			return nil, errors.New("invalid movePiece payload")
		}
		return e.applyMove(data.PieceID)
	default:
		return nil, fmt.Errorf("unknown action %q", action.Name)
	}
}

func (e *Engine) applyRoll() (*engine.Result, error) {
	if e.s.Phase != phaseRoll {
		return nil, errors.New("move pending, cannot roll")
	}
	if e.s.Pending {
		return nil, errors.New("turn is advancing")
	}

	actor := e.actor()
	e.s.Dice = e.rollDie()
	movable := e.movablePieces(actor, e.s.Dice)

	res := &engine.Result{Events: []engine.Event{
		engine.Broadcast("diceRolled", map[string]interface{}{
			"playerId":      actor.UserID,
			"value":         e.s.Dice,
			"movablePieces": movable,
		}),
	}}

	if len(movable) == 0 {
		if e.s.Dice == 6 && e.s.Variant == VariantClassic {
			// Six with nothing to move: roll again.
			return res, nil
		}
		if e.s.Variant == VariantFast {
			e.s.Pending = true
			res.Directive = engine.Directive{ScheduleResolve: noMoveAdvanceDelay}
			return res, nil
		}
		next := e.advanceTurn()
		res.Events = append(res.Events, engine.Broadcast("turnChanged", map[string]interface{}{
			"currentPlayerId": next.UserID,
		}))
		return res, nil
	}

	e.s.Phase = phaseMove
	return res, nil
}

func (e *Engine) applyMove(pieceID int) (*engine.Result, error) {
	if e.s.Phase != phaseMove {
		return nil, errors.New("roll the dice first")
	}
	if pieceID < 0 || pieceID >= piecesPerSide {
		return nil, errors.New("invalid piece")
	}

	actor := e.actor()
	p := &actor.Pieces[pieceID]
	entry := entryCells[actor.Color]
	tgt, ok := moveTarget(p, entry, e.s.Dice, e.s.Variant == VariantClassic)
	if !ok {
		return nil, errors.New("piece is not movable")
	}

	var captured []map[string]interface{}
	if tgt.State == stateBoard && !safeCells[tgt.Cell] {
		captured = e.capture(actor, tgt.Cell)
	}

	p.State = tgt.State
	p.Cell = tgt.Cell
	if tgt.State == stateFinished {
		actor.Finished++
		actor.Score += finishPoints
	}

	extraTurn := e.s.Dice == 6
	res := &engine.Result{}

	if e.checkFinishWin(actor) {
		extraTurn = false
	}

	res.Events = append(res.Events, engine.Broadcast("pieceMoved", map[string]interface{}{
		"playerId":       actor.UserID,
		"pieceId":        pieceID,
		"boardAfter":     e.publicState(),
		"capturedPieces": captured,
		"extraTurn":      extraTurn,
	}))

	if e.s.Terminal {
		res.Directive = engine.Directive{CancelTurnClock: e.s.Variant == VariantFast}
		return res, nil
	}

	e.s.Phase = phaseRoll
	if !extraTurn {
		next := e.advanceTurn()
		res.Events = append(res.Events, engine.Broadcast("turnChanged", map[string]interface{}{
			"currentPlayerId": next.UserID,
		}))
	}
	return res, nil
}

// capture sends every opposing piece on cell back: to home in Classic, to its
// own entry cell in Fast Ludo. Capturer gains KILL points, victim pays the
// penalty floored at zero.
func (e *Engine) capture(actor *playerState, cell int) []map[string]interface{} {
	var captured []map[string]interface{}
	for _, opp := range e.s.Players {
		if opp.UserID == actor.UserID {
			continue
		}
		for i := range opp.Pieces {
			pc := &opp.Pieces[i]
			if pc.State != stateBoard || pc.Cell != cell {
				continue
			}
			if e.s.Variant == VariantFast {
				pc.Cell = entryCells[opp.Color]
			} else {
				pc.State = stateHome
				pc.Cell = 0
			}
			actor.Score += killPoints
			actor.Captures++
			opp.Score -= killedPenalty
			if opp.Score < 0 {
				opp.Score = 0
			}
			captured = append(captured, map[string]interface{}{
				"playerId": opp.UserID,
				"pieceId":  pc.ID,
			})
		}
	}
	return captured
}

func (e *Engine) checkFinishWin(actor *playerState) bool {
	if actor.Finished == piecesPerSide {
		e.s.Terminal = true
		e.s.WinnerID = actor.UserID
		return true
	}
	return false
}

// movablePieces lists pieces with a legal target for the dice value.
func (e *Engine) movablePieces(p *playerState, dice int) []int {
	movable := []int{}
	entry := entryCells[p.Color]
	for i := range p.Pieces {
		if _, ok := moveTarget(&p.Pieces[i], entry, dice, e.s.Variant == VariantClassic); ok {
			movable = append(movable, i)
		}
	}
	return movable
}

func (e *Engine) advanceTurn() *playerState {
	e.s.TurnIndex = (e.s.TurnIndex + 1) % len(e.s.Players)
	e.s.Phase = phaseRoll
	e.s.Dice = 0
	return e.actor()
}

// Resolve runs the delayed auto-advance after a Fast-Ludo roll with no legal
// moves.
func (e *Engine) Resolve() *engine.Result {
	if e.s.Terminal || !e.s.Pending {
		return &engine.Result{}
	}
	e.s.Pending = false
	next := e.advanceTurn()
	return &engine.Result{Events: []engine.Event{
		engine.Broadcast("turnChanged", map[string]interface{}{
			"currentPlayerId": next.UserID,
		}),
	}}
}

// OnTimeout ends a Fast Ludo game at clock expiry: highest score wins, ties
// broken by pieces finished, then captures, then lower seat. Classic has no
// clock.
func (e *Engine) OnTimeout() *engine.Result {
	if e.s.Terminal || e.s.Variant != VariantFast {
		return &engine.Result{}
	}

	var winner *playerState
	for _, p := range e.s.Players {
		if winner == nil || better(p, winner) {
			winner = p
		}
	}
	e.s.Terminal = true
	e.s.WinnerID = winner.UserID
	return &engine.Result{}
}

// better reports whether a beats b under the Fast-Ludo timer tie-breaks.
func better(a, b *playerState) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Finished != b.Finished {
		return a.Finished > b.Finished
	}
	if a.Captures != b.Captures {
		return a.Captures > b.Captures
	}
	return a.Seat < b.Seat
}

func (e *Engine) IsTerminal() (string, bool) {
	return e.s.WinnerID, e.s.Terminal
}

func (e *Engine) Scores() map[string]float64 {
	scores := make(map[string]float64, len(e.s.Players))
	for _, p := range e.s.Players {
		scores[p.UserID] = float64(p.Score)
	}
	return scores
}

func (e *Engine) publicState() map[string]interface{} {
	players := make([]map[string]interface{}, len(e.s.Players))
	for i, p := range e.s.Players {
		pieces := make([]map[string]interface{}, piecesPerSide)
		for j, pc := range p.Pieces {
			pieces[j] = map[string]interface{}{
				"id":    pc.ID,
				"state": pc.State,
				"cell":  pc.Cell,
			}
		}
		players[i] = map[string]interface{}{
			"userId":   p.UserID,
			"seat":     p.Seat,
			"color":    p.Color,
			"score":    p.Score,
			"finished": p.Finished,
			"pieces":   pieces,
		}
	}
	return map[string]interface{}{
		"variant":         e.s.Variant,
		"players":         players,
		"currentPlayerId": e.actor().UserID,
		"dice":            e.s.Dice,
		"phase":           e.s.Phase,
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
