package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate2(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{45.0, 45.0},
		{0.9 * 50 * 2, 90.0},
		{0.9 * 33.33 * 3, 89.99}, // 89.991 truncates toward zero
		{12.345, 12.34},
		{12.999, 12.99},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, truncate2(tc.in), "truncate2(%v)", tc.in)
	}
}

func TestColorForSeatCycle(t *testing.T) {
	assert.Equal(t, "red", colorForSeat(0))
	assert.Equal(t, "blue", colorForSeat(1))
	assert.Equal(t, "green", colorForSeat(2))
	assert.Equal(t, "yellow", colorForSeat(3))
	assert.Equal(t, "red", colorForSeat(4))
}
