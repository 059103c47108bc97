package game

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/playarena/backend/internal/models"
	"github.com/playarena/backend/internal/store"
	"github.com/playarena/backend/internal/wallet"
)

// StartMatchmakerWorker runs the periodic queue sweep. It is the only
// matchmaker instance in the process; a sweep that produces a match re-runs
// immediately before going back to the tick.
func StartMatchmakerWorker(ctx context.Context) {
	interval := time.Duration(Manager.deps.Cfg.MatchmakerTickSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[MATCHMAKER] starting matchmaker worker (tick every %v)", interval)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[MATCHMAKER] worker stopped")
			return
		case <-ticker.C:
			for processMatchmaking(ctx) {
			}
		}
	}
}

// processMatchmaking runs one sweep and reports whether any match formed.
func processMatchmaking(ctx context.Context) bool {
	deps := Manager.deps
	buckets, err := deps.Store.MatchableBuckets(ctx)
	if err != nil {
		log.Printf("[MATCHMAKER] failed to list queue buckets: %v", err)
		return false
	}

	matchedAny := false
	for _, bucket := range buckets {
		for {
			matched, retry := tryMatchGroup(ctx, bucket)
			if matched {
				matchedAny = true
			}
			if !retry {
				break
			}
		}
	}
	return matchedAny
}

// tryMatchGroup attempts one atomic group formation for a bucket: claim the
// oldest maxPlayers entries, debit every entry fee, create the room and its
// participants, and delete the matched entries — all in one serializable
// transaction. A stale entry (insufficient balance) aborts the transaction,
// is dropped outside it, and the bucket is retried.
func tryMatchGroup(ctx context.Context, bucket store.QueueBucket) (matched, retry bool) {
	deps := Manager.deps

	tx, err := deps.Store.DB().BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		log.Printf("[MATCHMAKER] failed to begin transaction: %v", err)
		return false, false
	}
	defer tx.Rollback()

	entries, err := deps.Store.ClaimOldest(tx, bucket)
	if err != nil {
		log.Printf("[MATCHMAKER] failed to claim queue entries: %v", err)
		return false, false
	}
	if len(entries) < bucket.MaxPlayers {
		return false, false
	}

	roomID := uuid.NewString()

	for _, entry := range entries {
		if bucket.EntryFee <= 0 {
			continue
		}
		memo := fmt.Sprintf("entry fee for %s", bucket.Type)
		if _, err := deps.Wallet.DebitTx(tx, entry.UserID, models.LedgerGameEntry, bucket.EntryFee, memo, roomID); err != nil {
			tx.Rollback()
			if errors.Is(err, wallet.ErrInsufficientBalance) {
				dropStaleEntry(ctx, entry)
				return false, true
			}
			log.Printf("[MATCHMAKER] debit failed for user %s: %v", entry.UserID, err)
			return false, false
		}
	}

	prizePool := truncate2(0.9 * bucket.EntryFee * float64(bucket.MaxPlayers))
	room := &models.Room{
		ID:         roomID,
		Type:       bucket.Type,
		MaxPlayers: bucket.MaxPlayers,
		EntryFee:   bucket.EntryFee,
		PrizePool:  prizePool,
		Status:     models.RoomWaiting,
		CreatedAt:  time.Now(),
	}

	participants := make([]models.Participant, len(entries))
	ids := make([]int, len(entries))
	for i, entry := range entries {
		participants[i] = models.Participant{
			RoomID: roomID,
			UserID: entry.UserID,
			Seat:   i,
			Color:  colorForSeat(i),
		}
		ids[i] = entry.ID
	}

	if err := deps.Store.CreateRoomTx(tx, room, participants); err != nil {
		log.Printf("[MATCHMAKER] failed to create room: %v", err)
		return false, false
	}
	if err := deps.Store.DeleteEntriesTx(tx, ids); err != nil {
		log.Printf("[MATCHMAKER] failed to delete matched entries: %v", err)
		return false, false
	}
	if err := tx.Commit(); err != nil {
		log.Printf("[MATCHMAKER] failed to commit match: %v", err)
		return false, false
	}

	log.Printf("[MATCHMAKER] match created: room=%s type=%s players=%d fee=%.2f pool=%.2f",
		roomID, bucket.Type, len(entries), bucket.EntryFee, prizePool)

	// The matchFound emit happens-after the durable room row.
	if _, err := Manager.ActivateRoom(room, participants); err != nil {
		log.Printf("[MATCHMAKER] failed to activate room %s: %v", roomID, err)
		return true, true
	}
	return true, true
}

// dropStaleEntry removes a queue entry whose user can no longer cover the
// entry fee, and tells them why.
func dropStaleEntry(ctx context.Context, entry models.QueueEntry) {
	deps := Manager.deps
	if err := deps.Store.DeleteQueueEntry(ctx, entry.ID); err != nil {
		log.Printf("[MATCHMAKER] failed to drop stale entry %d: %v", entry.ID, err)
		return
	}
	log.Printf("[MATCHMAKER] dropped stale entry for user %s (insufficient balance)", entry.UserID)
	deps.Bus.ToUser(entry.UserID, "matchmakingError", map[string]interface{}{
		"message": "insufficient balance for entry fee",
	})
}

// truncate2 truncates toward zero at two fractional digits.
func truncate2(x float64) float64 {
	return math.Trunc(x*100) / 100
}
