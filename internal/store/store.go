// Package store is the durable persistence layer: rooms, participants and the
// matchmaking queue. Writes for a room come only from its room worker, so no
// cross-room transactions exist.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/playarena/backend/internal/models"
)

type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *sqlx.DB {
	return s.db
}

// CreateRoomTx inserts the room and its participants inside the caller's
// transaction (matchmaker group formation).
func (s *Store) CreateRoomTx(tx *sqlx.Tx, room *models.Room, participants []models.Participant) error {
	_, err := tx.Exec(`INSERT INTO rooms (id, type, max_players, entry_fee, prize_pool, status, current_turn, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,0,NOW())`,
		room.ID, room.Type, room.MaxPlayers, room.EntryFee, room.PrizePool, room.Status)
	if err != nil {
		return err
	}
	for _, p := range participants {
		if _, err := tx.Exec(`INSERT INTO participants (room_id, user_id, seat, color, score) VALUES ($1,$2,$3,$4,0)`,
			p.RoomID, p.UserID, p.Seat, p.Color); err != nil {
			return err
		}
	}
	return nil
}

// SaveSnapshot persists the room row after an accepted mutation. Last writer
// wins per room id.
func (s *Store) SaveSnapshot(ctx context.Context, roomID, status string, engineState json.RawMessage, currentTurn int, winnerID string, startedAt, finishedAt *time.Time) error {
	var winner, started, finished interface{}
	if winnerID != "" {
		winner = winnerID
	}
	if startedAt != nil {
		started = *startedAt
	}
	if finishedAt != nil {
		finished = *finishedAt
	}
	_, err := s.db.ExecContext(ctx, `UPDATE rooms
		SET status=$1, engine_state=$2, current_turn=$3, winner_id=$4, started_at=$5, finished_at=$6
		WHERE id=$7`,
		status, []byte(engineState), currentTurn, winner, started, finished, roomID)
	return err
}

// retryRead retries a transient read failure once; writes are never retried
// here, the room worker surfaces those and keeps state unchanged.
func retryRead(fn func() error) error {
	err := fn()
	if err == nil || err == sql.ErrNoRows {
		return err
	}
	return fn()
}

// GetRoom loads a room row.
func (s *Store) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	var room models.Room
	err := retryRead(func() error {
		return s.db.GetContext(ctx, &room, `SELECT id, type, max_players, entry_fee, prize_pool, status, engine_state, current_turn, winner_id, created_at, started_at, finished_at
			FROM rooms WHERE id=$1`, roomID)
	})
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// LiveRooms returns rooms that were WAITING or PLAYING at shutdown, for
// rehydration on boot.
func (s *Store) LiveRooms(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	err := s.db.SelectContext(ctx, &rooms, `SELECT id, type, max_players, entry_fee, prize_pool, status, engine_state, current_turn, winner_id, created_at, started_at, finished_at
		FROM rooms WHERE status IN ($1, $2) ORDER BY created_at`, models.RoomWaiting, models.RoomPlaying)
	return rooms, err
}

// Participants lists a room's seats in seat order.
func (s *Store) Participants(ctx context.Context, roomID string) ([]models.Participant, error) {
	var parts []models.Participant
	err := retryRead(func() error {
		parts = parts[:0]
		return s.db.SelectContext(ctx, &parts, `SELECT room_id, user_id, seat, color, score
			FROM participants WHERE room_id=$1 ORDER BY seat`, roomID)
	})
	return parts, err
}

// SaveScores writes the final per-participant scores.
func (s *Store) SaveScores(ctx context.Context, roomID string, scores map[string]float64) error {
	for userID, score := range scores {
		if _, err := s.db.ExecContext(ctx, `UPDATE participants SET score=$1 WHERE room_id=$2 AND user_id=$3`,
			score, roomID, userID); err != nil {
			return err
		}
	}
	return nil
}

// IsParticipant reports whether the user holds a seat in the room.
func (s *Store) IsParticipant(ctx context.Context, roomID, userID string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM participants WHERE room_id=$1 AND user_id=$2`, roomID, userID)
	return count > 0, err
}

// Enqueue places a user in the matchmaking queue. A duplicate enqueue by the
// same user replaces the prior entry (remove then insert).
func (s *Store) Enqueue(ctx context.Context, userID, gameType string, maxPlayers int, entryFee float64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM queue WHERE user_id=$1`, userID); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO queue (user_id, type, max_players, entry_fee, enqueued_at) VALUES ($1,$2,$3,$4,NOW())`,
		userID, gameType, maxPlayers, entryFee); err != nil {
		return err
	}
	return tx.Commit()
}

// Dequeue removes a user's queue entry, reporting whether one existed.
func (s *Store) Dequeue(ctx context.Context, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM queue WHERE user_id=$1`, userID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeleteQueueEntry drops a single entry by id (stale user eviction).
func (s *Store) DeleteQueueEntry(ctx context.Context, id int) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM queue WHERE id=$1`, id)
	return err
}

// QueueBucket identifies one matchable group of queue entries.
type QueueBucket struct {
	Type       string  `db:"type"`
	MaxPlayers int     `db:"max_players"`
	EntryFee   float64 `db:"entry_fee"`
	Count      int     `db:"count"`
}

// MatchableBuckets lists (type, maxPlayers, entryFee) groups with enough
// waiting entries to fill a room, largest pending count first.
func (s *Store) MatchableBuckets(ctx context.Context) ([]QueueBucket, error) {
	var buckets []QueueBucket
	err := s.db.SelectContext(ctx, &buckets, `SELECT type, max_players, entry_fee, COUNT(*) AS count
		FROM queue GROUP BY type, max_players, entry_fee
		HAVING COUNT(*) >= max_players
		ORDER BY COUNT(*) DESC`)
	return buckets, err
}

// ClaimOldest locks and returns the oldest n entries of a bucket, strict FIFO
// by enqueued_at with id as the tie-break.
func (s *Store) ClaimOldest(tx *sqlx.Tx, b QueueBucket) ([]models.QueueEntry, error) {
	var entries []models.QueueEntry
	err := tx.Select(&entries, `SELECT id, user_id, type, max_players, entry_fee, enqueued_at
		FROM queue
		WHERE type=$1 AND max_players=$2 AND entry_fee=$3
		ORDER BY enqueued_at, id
		FOR UPDATE SKIP LOCKED
		LIMIT $4`, b.Type, b.MaxPlayers, b.EntryFee, b.MaxPlayers)
	return entries, err
}

// DeleteEntriesTx removes matched queue rows inside the match transaction.
func (s *Store) DeleteEntriesTx(tx *sqlx.Tx, ids []int) error {
	for _, id := range ids {
		if _, err := tx.Exec(`DELETE FROM queue WHERE id=$1`, id); err != nil {
			return err
		}
	}
	return nil
}

// QueuedUser reports whether a user currently waits in the queue.
func (s *Store) QueuedUser(ctx context.Context, userID string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM queue WHERE user_id=$1`, userID)
	return count > 0, err
}
