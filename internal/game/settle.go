package game

import (
	"context"
	"log"
	"sync"

	"github.com/playarena/backend/internal/models"
	"github.com/playarena/backend/internal/wallet"
)

// Settler pays the prize pool to a finished room's winner exactly once. The
// in-memory set guards re-entry within the process; the unique ledger index on
// (game_id, GAME_WINNING) guards across restarts.
type Settler struct {
	mu      sync.Mutex
	settled map[string]bool
	wallet  *wallet.Service
}

func NewSettler(w *wallet.Service) *Settler {
	return &Settler{settled: make(map[string]bool), wallet: w}
}

// Settle credits prizePool to the winner for roomID. Calling it twice for the
// same room leaves the ledger unchanged.
func (s *Settler) Settle(ctx context.Context, roomID, winnerID string, prizePool float64) error {
	s.mu.Lock()
	if s.settled[roomID] {
		s.mu.Unlock()
		return nil
	}
	s.settled[roomID] = true
	s.mu.Unlock()

	if prizePool <= 0 || winnerID == "" {
		return nil
	}

	_, err := s.wallet.Credit(ctx, winnerID, models.LedgerGameWinning, prizePool, "prize payout", roomID)
	if err != nil {
		if wallet.IsUniqueViolation(err) {
			log.Printf("[SETTLE] room %s already settled, skipping", roomID)
			return nil
		}
		// Allow a retry on a later FINISHED signal.
		s.mu.Lock()
		delete(s.settled, roomID)
		s.mu.Unlock()
		return err
	}

	log.Printf("[SETTLE] room %s winner=%s prize=%.2f", roomID, winnerID, prizePool)
	return nil
}
