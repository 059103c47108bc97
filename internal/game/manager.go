package game

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/playarena/backend/internal/config"
	"github.com/playarena/backend/internal/game/engine"
	"github.com/playarena/backend/internal/game/ludo"
	"github.com/playarena/backend/internal/models"
	"github.com/playarena/backend/internal/registry"
	"github.com/playarena/backend/internal/store"
	"github.com/playarena/backend/internal/wallet"
	"github.com/redis/go-redis/v9"
)

// Deps are the process-scoped services a room reaches for.
type Deps struct {
	Store   *store.Store
	Wallet  *wallet.Service
	Settler *Settler
	Bus     Emitter
	Reg     *registry.Registry
	Rdb     *redis.Client
	Cfg     *config.Config
	Manager *RoomManager
}

// RoomManager owns the live room actors.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	deps  *Deps
}

// Manager is the global room manager instance.
var Manager *RoomManager

// InitializeManager wires the global manager and starts its background jobs.
func InitializeManager(st *store.Store, w *wallet.Service, reg *registry.Registry, bus Emitter, rdb *redis.Client, cfg *config.Config) *RoomManager {
	m := &RoomManager{rooms: make(map[string]*Room)}
	m.deps = &Deps{
		Store:   st,
		Wallet:  w,
		Settler: NewSettler(w),
		Bus:     bus,
		Reg:     reg,
		Rdb:     rdb,
		Cfg:     cfg,
		Manager: m,
	}
	Manager = m

	if err := m.RehydrateLiveRooms(context.Background()); err != nil {
		log.Printf("[REHYDRATE] error rehydrating rooms: %v", err)
	}
	go m.startRegistryCleanup()
	return m
}

// ActivateRoom creates the in-memory actor for a freshly matched room and
// emits matchFound to every participant. Called after the room row is durable.
func (m *RoomManager) ActivateRoom(room *models.Room, participants []models.Participant) (*Room, error) {
	players := make([]engine.Player, len(participants))
	for i, p := range participants {
		players[i] = engine.Player{UserID: p.UserID, Seat: p.Seat, Color: p.Color}
	}

	r, err := newRoom(m.deps, room, players)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.rooms[room.ID] = r
	m.mu.Unlock()

	roster := make([]map[string]interface{}, len(players))
	for i, p := range players {
		roster[i] = map[string]interface{}{
			"playerId": p.UserID,
			"seat":     p.Seat,
			"color":    p.Color,
		}
	}
	for _, p := range players {
		m.deps.Bus.ToUser(p.UserID, "matchFound", map[string]interface{}{
			"gameId":       room.ID,
			"players":      roster,
			"yourPlayerId": p.UserID,
			"yourSeat":     p.Seat,
			"yourColor":    p.Color,
		})
	}

	log.Printf("[MANAGER] room %s activated (%s, %d players, fee=%.2f)", room.ID, room.Type, len(players), room.EntryFee)
	return r, nil
}

// GetRoom returns a live room, rehydrating it from the store if the process
// restarted since it was created.
func (m *RoomManager) GetRoom(roomID string) (*Room, error) {
	m.mu.RLock()
	r, ok := m.rooms[roomID]
	m.mu.RUnlock()
	if ok {
		return r, nil
	}
	return m.rehydrate(context.Background(), roomID)
}

func (m *RoomManager) rehydrate(ctx context.Context, roomID string) (*Room, error) {
	row, err := m.deps.Store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errors.New("room not found")
	}
	if row.Status == models.RoomFinished || row.Status == models.RoomCancelled {
		return nil, errors.New("room is over")
	}

	parts, err := m.deps.Store.Participants(ctx, roomID)
	if err != nil {
		return nil, err
	}
	players := make([]engine.Player, len(parts))
	for i, p := range parts {
		players[i] = engine.Player{UserID: p.UserID, Seat: p.Seat, Color: p.Color}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[roomID]; ok {
		return r, nil
	}

	r, err := newRoom(m.deps, row, players)
	if err != nil {
		return nil, err
	}
	if len(row.EngineState) > 0 {
		if err := r.eng.Restore(row.EngineState); err != nil {
			return nil, err
		}
	}
	if row.Status == models.RoomPlaying {
		r.post(func() { r.resumeClocks(row) })
	}
	m.rooms[roomID] = r

	log.Printf("[REHYDRATE] room %s restored (%s)", roomID, row.Status)
	return r, nil
}

// RehydrateLiveRooms loads WAITING and PLAYING rooms back into memory on boot.
func (m *RoomManager) RehydrateLiveRooms(ctx context.Context) error {
	rows, err := m.deps.Store.LiveRooms(ctx)
	if err != nil {
		return err
	}
	for i := range rows {
		if _, err := m.rehydrate(ctx, rows[i].ID); err != nil {
			log.Printf("[REHYDRATE] room %s skipped: %v", rows[i].ID, err)
		}
	}
	if len(rows) > 0 {
		log.Printf("[REHYDRATE] restored %d live rooms", len(rows))
	}
	return nil
}

// resumeClocks restarts the room clock after a restore. The Fast-Ludo game
// clock continues from its remaining time; per-turn clocks restart at full
// duration for the current actor. Worker-only.
func (r *Room) resumeClocks(row *models.Room) {
	switch r.Type {
	case models.GameMemory:
		r.clockEnd = time.Now().Add(time.Duration(r.deps.Cfg.MemoryTurnSeconds) * time.Second)
		r.clock.Start(r.deps.Cfg.MemoryTurnSeconds, r.onClockExpire)

	case models.GameFastLudo:
		total := r.deps.Cfg.FastLudoTimer2P
		if len(r.players) >= 3 {
			total = r.deps.Cfg.FastLudoTimer34P
		}
		remaining := total
		if row.StartedAt.Valid {
			elapsed := int(time.Since(row.StartedAt.Time) / time.Second)
			remaining = total - elapsed
		}
		if remaining <= 0 {
			r.onClockExpire()
			return
		}
		r.clockEnd = time.Now().Add(time.Duration(remaining) * time.Second)
		r.clock.Start(remaining, r.onClockExpire)
	}
	if row.StartedAt.Valid {
		t := row.StartedAt.Time
		r.startedAt = &t
	}
}

// scheduleEvict drops the room from memory after the grace period that serves
// late state queries.
func (m *RoomManager) scheduleEvict(roomID string, after time.Duration) {
	time.AfterFunc(after, func() {
		m.mu.Lock()
		r, ok := m.rooms[roomID]
		if ok {
			delete(m.rooms, roomID)
		}
		m.mu.Unlock()
		if ok {
			close(r.quit)
			log.Printf("[MANAGER] room %s evicted", roomID)
		}
	})
}

// ActiveRoomCount reports how many rooms live in memory.
func (m *RoomManager) ActiveRoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// RoomsOfUser returns the live rooms the user holds a seat in.
func (m *RoomManager) RoomsOfUser(userID string) []*Room {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Room
	for _, r := range m.rooms {
		for _, p := range r.players {
			if p.UserID == userID {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// HandleDisconnect fans the offline notice out to the user's rooms.
func (m *RoomManager) HandleDisconnect(userID string) {
	for _, r := range m.RoomsOfUser(userID) {
		r.NotifyDisconnect(userID)
	}
}

// startRegistryCleanup prunes stale registry entries on a fixed schedule.
func (m *RoomManager) startRegistryCleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		m.deps.Reg.Cleanup()
	}
}

// colorForSeat is re-exported for the matchmaker's seat assignment.
func colorForSeat(seat int) string {
	return ludo.ColorForSeat(seat)
}
