package ludo

// Board geometry: a 52-cell ring plus a 6-cell home stretch per colour.
const (
	ringSize      = 52
	stretchSize   = 6
	piecesPerSide = 4

	// Ring travel is counted in steps from the colour's entry cell. After 50
	// ring steps the piece turns into its home stretch.
	maxRingTravel = 50

	killPoints    = 5
	killedPenalty = 3
	finishPoints  = 10
)

// Piece states
const (
	stateHome        = "home"
	stateBoard       = "board"
	stateHomeStretch = "homeStretch"
	stateFinished    = "finished"
)

var (
	colors     = []string{"red", "blue", "green", "yellow"}
	entryCells = map[string]int{"red": 0, "blue": 13, "green": 26, "yellow": 39}
	safeCells  = map[int]bool{0: true, 13: true, 26: true, 39: true, 8: true, 21: true, 34: true, 47: true}
)

type piece struct {
	ID    int    `json:"id"`
	State string `json:"state"`
	// Cell is the ring index while on the board, or the stretch index
	// (0..5) while on the home stretch.
	Cell int `json:"cell"`
}

// traveled returns how many ring steps the piece has taken from its entry.
func traveled(entry, cell int) int {
	return (cell - entry + ringSize) % ringSize
}

// moveTarget computes where a piece lands with the given dice value.
// ok is false when the move is illegal (overshoot, or entering without a six).
type target struct {
	State string
	Cell  int
}

func moveTarget(p *piece, entry, dice int, enterOnSixOnly bool) (target, bool) {
	switch p.State {
	case stateFinished:
		return target{}, false

	case stateHome:
		if enterOnSixOnly && dice != 6 {
			return target{}, false
		}
		return target{State: stateBoard, Cell: entry}, true

	case stateBoard:
		total := traveled(entry, p.Cell) + dice
		if total <= maxRingTravel {
			return target{State: stateBoard, Cell: (entry + total) % ringSize}, true
		}
		stretchIdx := total - maxRingTravel - 1
		if stretchIdx > stretchSize-1 {
			return target{}, false
		}
		if stretchIdx == stretchSize-1 {
			return target{State: stateFinished, Cell: 0}, true
		}
		return target{State: stateHomeStretch, Cell: stretchIdx}, true

	case stateHomeStretch:
		idx := p.Cell + dice
		if idx > stretchSize-1 {
			return target{}, false
		}
		if idx == stretchSize-1 {
			return target{State: stateFinished, Cell: 0}, true
		}
		return target{State: stateHomeStretch, Cell: idx}, true
	}
	return target{}, false
}

// ColorForSeat assigns red, blue, green, yellow cyclically by seat index.
func ColorForSeat(seat int) string {
	return colors[seat%len(colors)]
}
