package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeedFromRoomID(t *testing.T) {
	a := SeedFromRoomID("room-1")
	b := SeedFromRoomID("room-1")
	c := SeedFromRoomID("room-2")

	assert.Equal(t, a, b, "same room id must derive the same seed")
	assert.NotEqual(t, a, c)
	assert.GreaterOrEqual(t, a, int64(0))
}
