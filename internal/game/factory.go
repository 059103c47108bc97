package game

import (
	"fmt"

	"github.com/playarena/backend/internal/config"
	"github.com/playarena/backend/internal/game/engine"
	"github.com/playarena/backend/internal/game/ludo"
	"github.com/playarena/backend/internal/game/memory"
	"github.com/playarena/backend/internal/game/snakes"
	"github.com/playarena/backend/internal/models"
)

// buildEngine constructs the ruleset for a room. The shuffle/dice seed is
// derived from the room id so state is recoverable from the persisted row.
func buildEngine(roomType, roomID string, players []engine.Player, cfg *config.Config) (engine.Engine, error) {
	seed := engine.SeedFromRoomID(roomID)

	switch roomType {
	case models.GameMemory:
		return memory.New(seed, players, memory.Params{
			Pairs:       cfg.MemoryPairCount,
			TurnSeconds: cfg.MemoryTurnSeconds,
			Lifelines:   cfg.MemoryLifelines,
		}), nil

	case models.GameClassicLudo:
		return ludo.New(seed, players, ludo.Params{Variant: ludo.VariantClassic}), nil

	case models.GameFastLudo:
		clock := cfg.FastLudoTimer2P
		if len(players) >= 3 {
			clock = cfg.FastLudoTimer34P
		}
		return ludo.New(seed, players, ludo.Params{Variant: ludo.VariantFast, ClockSeconds: clock}), nil

	case models.GameSnakesLadders:
		return snakes.New(seed, players), nil
	}
	return nil, fmt.Errorf("unknown game type %q", roomType)
}
