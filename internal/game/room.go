package game

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/playarena/backend/internal/game/engine"
	"github.com/playarena/backend/internal/models"
)

// Room is a single-writer actor. Inbound events, timer expiries and admin
// calls are enqueued onto the inbox; one worker drains it strictly in order,
// so handlers may block on the DB or the wallet without racing each other.
type Room struct {
	ID         string
	Type       string
	MaxPlayers int
	EntryFee   float64
	PrizePool  float64

	deps *Deps

	inbox chan func()
	quit  chan struct{}

	// Everything below is owned by the worker goroutine.
	status     string
	players    []engine.Player
	eng        engine.Engine
	clock      *TurnClock
	createdAt  time.Time
	startedAt  *time.Time
	finishedAt *time.Time
	winnerID   string

	joined       map[string]bool
	offlineSince map[string]time.Time
	clockEnd     time.Time
	autoStart    *time.Timer
}

func newRoom(deps *Deps, m *models.Room, players []engine.Player) (*Room, error) {
	eng, err := buildEngine(m.Type, m.ID, players, deps.Cfg)
	if err != nil {
		return nil, err
	}

	r := &Room{
		ID:           m.ID,
		Type:         m.Type,
		MaxPlayers:   m.MaxPlayers,
		EntryFee:     m.EntryFee,
		PrizePool:    m.PrizePool,
		deps:         deps,
		inbox:        make(chan func(), 256),
		quit:         make(chan struct{}),
		status:       m.Status,
		players:      players,
		eng:          eng,
		createdAt:    m.CreatedAt,
		joined:       make(map[string]bool),
		offlineSince: make(map[string]time.Time),
	}
	r.clock = NewTurnClock(
		func(event string, data map[string]interface{}) {
			deps.Bus.ToRoom(r.ID, event, data)
		},
		func(onExpire func()) { r.post(onExpire) },
	)

	go r.run()

	if m.Status == models.RoomWaiting {
		r.autoStart = time.AfterFunc(time.Duration(deps.Cfg.AutoStartSeconds)*time.Second, func() {
			r.post(r.startGame)
		})
	}
	return r, nil
}

func (r *Room) run() {
	for {
		select {
		case fn := <-r.inbox:
			fn()
		case <-r.quit:
			return
		}
	}
}

func (r *Room) post(fn func()) {
	select {
	case r.inbox <- fn:
	case <-r.quit:
	}
}

// ask runs fn on the worker and waits for its result. Returns nil when the
// room was evicted before the message ran.
func (r *Room) ask(fn func() interface{}) interface{} {
	reply := make(chan interface{}, 1)
	r.post(func() { reply <- fn() })
	select {
	case v := <-reply:
		return v
	case <-r.quit:
		return nil
	}
}

func (r *Room) isParticipant(userID string) bool {
	for _, p := range r.players {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// Status reports the room's lifecycle state.
func (r *Room) Status() string {
	if v, ok := r.ask(func() interface{} { return r.status }).(string); ok {
		return v
	}
	return models.RoomFinished
}

// Players returns the seated players.
func (r *Room) Players() []engine.Player {
	return r.players
}

// startGame drives WAITING -> PLAYING: engine start, first clock, snapshot.
func (r *Room) startGame() {
	if r.status != models.RoomWaiting {
		return
	}
	if r.autoStart != nil {
		r.autoStart.Stop()
	}

	r.status = models.RoomPlaying
	now := time.Now()
	r.startedAt = &now

	log.Printf("[ROOM] %s started (%s, %d players)", r.ID, r.Type, len(r.players))
	r.handleResult(r.eng.Start())
	r.persist()
}

// HandleJoin verifies the user holds a seat, adds them to the audience and
// re-emits the current state. Starting early when every seat has joined.
func (r *Room) HandleJoin(userID string) {
	r.post(func() {
		if !r.isParticipant(userID) {
			r.deps.Bus.ToUser(userID, "error", map[string]interface{}{"message": "not a participant of this game"})
			return
		}
		r.deps.Reg.JoinRoom(userID, r.ID)
		r.joined[userID] = true
		delete(r.offlineSince, userID)

		r.emitStateTo(userID)

		if r.status == models.RoomWaiting && len(r.joined) == len(r.players) {
			r.startGame()
		}
	})
}

// emitStateTo sends the engine view plus the clock's remaining seconds, so a
// reconnecting client resumes the countdown where it stands.
func (r *Room) emitStateTo(userID string) {
	data := map[string]interface{}{
		"gameId": r.ID,
		"type":   r.Type,
		"status": r.status,
		"state":  r.eng.CurrentState(),
	}
	if r.clock.Active() {
		if remaining := int(time.Until(r.clockEnd).Round(time.Second) / time.Second); remaining > 0 {
			data["timerRemaining"] = remaining
		}
	}
	r.deps.Bus.ToUser(userID, "gameState", data)
}

// HandleAction dispatches a validated inbound game event to the engine.
func (r *Room) HandleAction(userID string, action engine.Action) {
	r.post(func() {
		if !r.isParticipant(userID) {
			r.deps.Bus.ToUser(userID, "error", map[string]interface{}{"message": "not a participant of this game"})
			return
		}
		if r.status != models.RoomPlaying {
			r.deps.Bus.ToUser(userID, "error", map[string]interface{}{"message": "game is not in progress"})
			return
		}

		res, err := r.eng.Apply(userID, action)
		if err != nil {
			r.deps.Bus.ToUser(userID, "error", map[string]interface{}{"message": err.Error()})
			return
		}
		r.handleResult(res)
		r.persist()
	})
}

// handleResult emits the engine's events, applies its clock directives and
// checks for a terminal state. Worker-only.
func (r *Room) handleResult(res *engine.Result) {
	if res == nil {
		return
	}
	for _, ev := range res.Events {
		if ev.To == "" {
			r.deps.Bus.ToRoom(r.ID, ev.Name, ev.Data)
		} else {
			r.deps.Bus.ToUser(ev.To, ev.Name, ev.Data)
		}
	}

	d := res.Directive
	if d.CancelTurnClock {
		r.clock.Cancel()
	}
	if d.StartTurnClock > 0 {
		r.clockEnd = time.Now().Add(time.Duration(d.StartTurnClock) * time.Second)
		r.clock.Start(d.StartTurnClock, r.onClockExpire)
	}
	if d.ScheduleResolve > 0 {
		time.AfterFunc(time.Duration(d.ScheduleResolve*float64(time.Second)), func() {
			r.post(func() {
				if r.status != models.RoomPlaying {
					return
				}
				r.handleResult(r.eng.Resolve())
				r.persist()
			})
		})
	}

	if winner, terminal := r.eng.IsTerminal(); terminal {
		r.finish(winner)
	}
}

// onClockExpire runs on the worker via the clock's expiry post.
func (r *Room) onClockExpire() {
	if r.status != models.RoomPlaying {
		return
	}
	r.handleResult(r.eng.OnTimeout())
	r.persist()
}

// finish drives PLAYING -> FINISHED: settle once, publish the result, retain
// the room for a grace period.
func (r *Room) finish(winnerID string) {
	if r.status == models.RoomFinished {
		return
	}
	r.status = models.RoomFinished
	now := time.Now()
	r.finishedAt = &now
	r.winnerID = winnerID
	r.clock.Cancel()

	ctx := context.Background()
	scores := r.eng.Scores()
	if err := r.deps.Store.SaveScores(ctx, r.ID, scores); err != nil {
		log.Printf("[ROOM] %s failed to save scores: %v", r.ID, err)
	}

	if err := r.deps.Settler.Settle(ctx, r.ID, winnerID, r.PrizePool); err != nil {
		log.Printf("[ROOM] %s settlement failed: %v", r.ID, err)
	}

	r.deps.Bus.ToRoom(r.ID, "gameEnded", map[string]interface{}{
		"winnerId":    winnerID,
		"finalScores": scores,
		"prizePool":   r.PrizePool,
	})
	r.persist()

	log.Printf("[ROOM] %s finished winner=%s prize=%.2f", r.ID, winnerID, r.PrizePool)
	r.deps.Manager.scheduleEvict(r.ID, time.Duration(r.deps.Cfg.FinishedRoomGraceSecs)*time.Second)
}

// Cancel refunds every entry fee and drives WAITING -> CANCELLED. A room that
// already left WAITING is not cancellable.
func (r *Room) Cancel(reason string) bool {
	res := r.ask(func() interface{} {
		if r.status != models.RoomWaiting {
			return false
		}
		if r.autoStart != nil {
			r.autoStart.Stop()
		}
		r.status = models.RoomCancelled
		now := time.Now()
		r.finishedAt = &now

		ctx := context.Background()
		if r.EntryFee > 0 {
			for _, p := range r.players {
				if _, err := r.deps.Wallet.Credit(ctx, p.UserID, models.LedgerRefund, r.EntryFee, reason, r.ID); err != nil {
					log.Printf("[ROOM] %s refund to %s failed: %v", r.ID, p.UserID, err)
				}
			}
		}

		r.publishRoomEvent("gameCancelled", map[string]interface{}{
			"gameId":  r.ID,
			"message": reason,
		})
		r.persist()
		log.Printf("[ROOM] %s cancelled: %s", r.ID, reason)
		r.deps.Manager.scheduleEvict(r.ID, 0)
		return true
	})
	cancelled, _ := res.(bool)
	return cancelled
}

// NotifyDisconnect marks a participant offline. The turn is not advanced; if
// the user stays away past the grace period in a two-player game, the
// remaining player wins. A paid entry is preserved either way.
func (r *Room) NotifyDisconnect(userID string) {
	r.post(func() {
		if !r.isParticipant(userID) {
			return
		}
		r.offlineSince[userID] = time.Now()
		delete(r.joined, userID)

		if r.status != models.RoomPlaying {
			return
		}
		grace := time.Duration(r.deps.Cfg.DisconnectGraceSecs) * time.Second
		time.AfterFunc(grace, func() {
			r.post(func() { r.checkDisconnectForfeit(userID) })
		})
	})
}

func (r *Room) checkDisconnectForfeit(userID string) {
	if r.status != models.RoomPlaying {
		return
	}
	if _, offline := r.offlineSince[userID]; !offline {
		return
	}
	if r.deps.Reg.IsUserOnline(userID) {
		delete(r.offlineSince, userID)
		return
	}

	var remaining []string
	for _, p := range r.players {
		if _, off := r.offlineSince[p.UserID]; !off {
			remaining = append(remaining, p.UserID)
		}
	}
	if len(r.players) == 2 && len(remaining) == 1 {
		log.Printf("[ROOM] %s forfeit by disconnect: %s wins", r.ID, remaining[0])
		r.finish(remaining[0])
	}
}

// persist snapshots the room after every accepted mutation: durable row plus
// a Redis copy for cheap reads. Worker-only.
func (r *Room) persist() {
	snapshot, err := r.eng.Snapshot()
	if err != nil {
		log.Printf("[ROOM] %s snapshot failed: %v", r.ID, err)
		return
	}

	ctx := context.Background()
	turn := currentTurnFromSnapshot(snapshot)
	if err := r.deps.Store.SaveSnapshot(ctx, r.ID, r.status, snapshot, turn, r.winnerID, r.startedAt, r.finishedAt); err != nil {
		log.Printf("[DB] %s snapshot save failed: %v", r.ID, err)
	}

	if r.deps.Rdb != nil {
		key := "room:" + r.ID + ":state"
		if err := r.deps.Rdb.SetEx(ctx, key, snapshot, time.Hour).Err(); err != nil {
			log.Printf("[REDIS] %s cache save failed: %v", r.ID, err)
		}
	}
}

// publishRoomEvent routes an event through the room_events channel so other
// processes' ws layers see it too; without Redis it goes straight to the bus.
func (r *Room) publishRoomEvent(event string, data map[string]interface{}) {
	if r.deps.Rdb == nil {
		r.deps.Bus.ToRoom(r.ID, event, data)
		return
	}
	payload := map[string]interface{}{"type": event, "room_id": r.ID, "data": data}
	b, err := json.Marshal(payload)
	if err != nil {
		r.deps.Bus.ToRoom(r.ID, event, data)
		return
	}
	if err := r.deps.Rdb.Publish(context.Background(), "room_events", b).Err(); err != nil {
		log.Printf("[REDIS] publish %s failed: %v", event, err)
		r.deps.Bus.ToRoom(r.ID, event, data)
	}
}

func currentTurnFromSnapshot(snapshot []byte) int {
	var probe struct {
		TurnIndex int `json:"turn_index"`
	}
	json.Unmarshal(snapshot, &probe)
	return probe.TurnIndex
}
