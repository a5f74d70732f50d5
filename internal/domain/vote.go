package domain

// Direction is a vote direction. The zero value NoVote is the absence of a vote;
// it is never persisted.
type Direction string

const (
	NoVote Direction = ""
	Up     Direction = "up"
	Down   Direction = "down"
)

// ParseDirection accepts "up" or "down".
func ParseDirection(s string) (Direction, bool) {
	switch Direction(s) {
	case Up, Down:
		return Direction(s), true
	default:
		return NoVote, false
	}
}

func (d Direction) Valid() bool { return d == Up || d == Down }

// Impact is the contribution of a vote state to the displayed score.
func (d Direction) Impact() int {
	switch d {
	case Up:
		return 1
	case Down:
		return -1
	default:
		return 0
	}
}

// CountDelta is how much the displayed count moves when the state goes from prev to next.
func CountDelta(prev, next Direction) int {
	return next.Impact() - prev.Impact()
}

// NextState is the state a click on clicked produces from current: clicking the
// recorded direction again toggles the vote off.
func NextState(current, clicked Direction) (next Direction, toggleOff bool) {
	if current == clicked {
		return NoVote, true
	}
	return clicked, false
}
