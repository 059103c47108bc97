// Package memory implements the card-matching game: a 2xP board, seeded
// shuffle, three lifelines per player, elimination on exhausted lifelines.
package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"

	"github.com/playarena/backend/internal/game/engine"
)

// Default symbol alphabet for the 15-pair, 30-card board.
var symbolSet = []string{
	"🍎", "🚗", "🐶", "🌟", "🎈", "🍕", "⚽", "🎸", "🐱", "🌈",
	"🦋", "🍩", "🚀", "🌻", "🎁",
}

const (
	matchPoints  = 10
	resolveDelay = 0.8
)

// Params tunes the board and the clock.
type Params struct {
	Pairs       int
	TurnSeconds int
	Lifelines   int
}

type card struct {
	Symbol    string `json:"symbol"`
	Matched   bool   `json:"matched"`
	MatchedBy string `json:"matched_by,omitempty"`
}

type playerState struct {
	engine.Player
	Score      int  `json:"score"`
	Lifelines  int  `json:"lifelines"`
	Eliminated bool `json:"eliminated"`
	// LastMatchSeq is the global match counter value when this player last
	// scored; it breaks score ties in favour of the earlier scorer.
	LastMatchSeq int `json:"last_match_seq"`
}

type state struct {
	Players      []*playerState `json:"players"`
	Cards        []card         `json:"cards"`
	TurnIndex    int            `json:"turn_index"`
	Revealed     []int          `json:"revealed"`
	PairsMatched int            `json:"pairs_matched"`
	TotalPairs   int            `json:"total_pairs"`
	MatchSeq     int            `json:"match_seq"`
	TurnSeconds  int            `json:"turn_seconds"`
	Terminal     bool           `json:"terminal"`
	WinnerID     string         `json:"winner_id,omitempty"`
	Pending      bool           `json:"pending"`
}

// Engine is the Memory ruleset.
type Engine struct {
	s state
}

// New builds a Memory engine with a deterministic board derived from seed.
func New(seed int64, players []engine.Player, p Params) *Engine {
	if p.Pairs <= 0 {
		p.Pairs = 15
	}
	if p.TurnSeconds <= 0 {
		p.TurnSeconds = 15
	}
	if p.Lifelines <= 0 {
		p.Lifelines = 3
	}

	e := &Engine{s: state{
		TotalPairs:  p.Pairs,
		TurnSeconds: p.TurnSeconds,
		Cards:       buildDeck(seed, p.Pairs),
	}}
	for _, pl := range players {
		e.s.Players = append(e.s.Players, &playerState{Player: pl, Lifelines: p.Lifelines})
	}
	return e
}

// buildDeck lays out 2*pairs cards and shuffles them with a seeded
// Fisher–Yates, three passes. Same seed, same board.
func buildDeck(seed int64, pairs int) []card {
	cards := make([]card, 0, 2*pairs)
	for i := 0; i < pairs; i++ {
		sym := fmt.Sprintf("S%d", i)
		if i < len(symbolSet) {
			sym = symbolSet[i]
		}
		cards = append(cards, card{Symbol: sym}, card{Symbol: sym})
	}

	rng := rand.New(rand.NewSource(seed))
	for pass := 0; pass < 3; pass++ {
		for i := len(cards) - 1; i > 0; i-- {
			j := rng.Intn(i + 1)
			cards[i], cards[j] = cards[j], cards[i]
		}
	}
	return cards
}

func (e *Engine) actor() *playerState {
	return e.s.Players[e.s.TurnIndex]
}

// Start deals the board and puts the first actor on the clock.
func (e *Engine) Start() *engine.Result {
	return &engine.Result{
		Events: []engine.Event{
			engine.Broadcast("gameStarted", map[string]interface{}{
				"initialState": e.publicState(),
			}),
			engine.Broadcast("turnChanged", map[string]interface{}{
				"currentPlayerId": e.actor().UserID,
			}),
		},
		Directive: engine.Directive{StartTurnClock: e.s.TurnSeconds},
	}
}

type selectCardData struct {
	Position int `json:"position"`
}

// Apply handles selectCard. Two distinct unmatched positions per turn; the
// second commit stops the clock and schedules resolution.
func (e *Engine) Apply(userID string, action engine.Action) (*engine.Result, error) {
	if e.s.Terminal {
		return nil, errors.New("game is over")
	}
	if action.Name != "selectCard" {
		return nil, fmt.Errorf("unknown action %q", action.Name)
	}
	if e.s.Pending {
		return nil, errors.New("pair is being resolved")
	}
	if e.actor().UserID != userID {
		return nil, errors.New("not your turn")
	}

	var data selectCardData
	if err := json.Unmarshal(action.Data, &data); err != nil {
		return nil, errors.New("invalid selectCard payload")
	}

	pos := data.Position
	switch {
	case pos < 0 || pos >= len(e.s.Cards):
		return nil, errors.New("position out of range")
	case e.s.Cards[pos].Matched:
		return nil, errors.New("card already matched")
	case len(e.s.Revealed) >= 2:
		return nil, errors.New("two cards already revealed")
	case len(e.s.Revealed) == 1 && e.s.Revealed[0] == pos:
		return nil, errors.New("card already revealed")
	}

	e.s.Revealed = append(e.s.Revealed, pos)

	res := &engine.Result{Events: []engine.Event{
		engine.Broadcast("cardRevealed", map[string]interface{}{
			"position":   pos,
			"symbol":     e.s.Cards[pos].Symbol,
			"byPlayerId": userID,
		}),
	}}

	if len(e.s.Revealed) == 2 {
		e.s.Pending = true
		res.Directive = engine.Directive{CancelTurnClock: true, ScheduleResolve: resolveDelay}
	}
	return res, nil
}

// Resolve settles the revealed pair after the display delay.
func (e *Engine) Resolve() *engine.Result {
	if !e.s.Pending || len(e.s.Revealed) != 2 {
		return &engine.Result{}
	}
	e.s.Pending = false

	a, b := e.s.Revealed[0], e.s.Revealed[1]
	positions := []int{a, b}
	e.s.Revealed = nil
	actor := e.actor()

	if e.s.Cards[a].Symbol == e.s.Cards[b].Symbol {
		e.s.Cards[a].Matched = true
		e.s.Cards[b].Matched = true
		e.s.Cards[a].MatchedBy = actor.UserID
		e.s.Cards[b].MatchedBy = actor.UserID
		e.s.PairsMatched++
		e.s.MatchSeq++
		actor.Score += matchPoints
		actor.LastMatchSeq = e.s.MatchSeq

		res := &engine.Result{Events: []engine.Event{
			engine.Broadcast("cardsMatched", map[string]interface{}{
				"positions":  positions,
				"byPlayerId": actor.UserID,
				"scores":     e.Scores(),
			}),
		}}

		if e.s.PairsMatched == e.s.TotalPairs {
			e.finish()
			return res
		}

		// Match grants another turn.
		res.Directive = engine.Directive{StartTurnClock: e.s.TurnSeconds}
		return res
	}

	next := e.advanceTurn()
	return &engine.Result{
		Events: []engine.Event{
			engine.Broadcast("cardsMismatched", map[string]interface{}{
				"positions":    positions,
				"nextPlayerId": next.UserID,
			}),
			engine.Broadcast("turnChanged", map[string]interface{}{
				"currentPlayerId": next.UserID,
			}),
		},
		Directive: engine.Directive{StartTurnClock: e.s.TurnSeconds},
	}
}

// OnTimeout flips back any face-up cards and costs the actor a lifeline. A
// stale expiry that raced the second-card commit is ignored.
func (e *Engine) OnTimeout() *engine.Result {
	if e.s.Terminal || e.s.Pending {
		return &engine.Result{}
	}

	e.s.Revealed = nil
	e.s.Pending = false
	actor := e.actor()
	actor.Lifelines--

	events := []engine.Event{
		engine.Broadcast("lifelineLost", map[string]interface{}{
			"playerId":  actor.UserID,
			"remaining": actor.Lifelines,
		}),
	}

	if actor.Lifelines <= 0 {
		actor.Eliminated = true
		events = append(events, engine.Broadcast("playerEliminated", map[string]interface{}{
			"playerId": actor.UserID,
		}))

		if alive := e.alivePlayers(); len(alive) == 1 {
			e.s.Terminal = true
			e.s.WinnerID = alive[0].UserID
			return &engine.Result{Events: events, Directive: engine.Directive{CancelTurnClock: true}}
		}
	}

	next := e.advanceTurn()
	events = append(events, engine.Broadcast("turnChanged", map[string]interface{}{
		"currentPlayerId": next.UserID,
	}))
	return &engine.Result{Events: events, Directive: engine.Directive{StartTurnClock: e.s.TurnSeconds}}
}

// advanceTurn compacts the rotation over eliminated players.
func (e *Engine) advanceTurn() *playerState {
	n := len(e.s.Players)
	for i := 1; i <= n; i++ {
		idx := (e.s.TurnIndex + i) % n
		if !e.s.Players[idx].Eliminated {
			e.s.TurnIndex = idx
			return e.s.Players[idx]
		}
	}
	return e.actor()
}

func (e *Engine) alivePlayers() []*playerState {
	var alive []*playerState
	for _, p := range e.s.Players {
		if !p.Eliminated {
			alive = append(alive, p)
		}
	}
	return alive
}

// finish declares the winner: highest score, ties to the earliest scorer.
func (e *Engine) finish() {
	e.s.Terminal = true
	var winner *playerState
	for _, p := range e.s.Players {
		if p.Eliminated {
			continue
		}
		if winner == nil || p.Score > winner.Score ||
			(p.Score == winner.Score && p.LastMatchSeq < winner.LastMatchSeq) {
			winner = p
		}
	}
	if winner != nil {
		e.s.WinnerID = winner.UserID
	}
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

// publicState is the board view sent to clients: matched cards are open,
// unmatched cards are face down.
func (e *Engine) publicState() map[string]interface{} {
	board := make([]map[string]interface{}, len(e.s.Cards))
	for i, c := range e.s.Cards {
		cell := map[string]interface{}{"matched": c.Matched}
		if c.Matched {
			cell["symbol"] = c.Symbol
			cell["matchedBy"] = c.MatchedBy
		}
		board[i] = cell
	}
	return map[string]interface{}{
		"board":           board,
		"totalPairs":      e.s.TotalPairs,
		"pairsMatched":    e.s.PairsMatched,
		"currentPlayerId": e.actor().UserID,
		"scores":          e.Scores(),
		"lifelines":       e.lifelineView(),
	}
}

func (e *Engine) lifelineView() map[string]int {
	view := make(map[string]int, len(e.s.Players))
	for _, p := range e.s.Players {
		view[p.UserID] = p.Lifelines
	}
	return view
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
