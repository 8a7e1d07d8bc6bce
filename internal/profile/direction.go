package profile

import "github.com/hudpulse/hudpulse/internal/errors"

// Direction is the closed set of directional labels a redness sub-region may
// carry. The value rides along on hit events so downstream consumers can map
// a hit back to a screen edge.
type Direction string

const (
	// DirectionFront marks the top-center damage indicator.
	DirectionFront Direction = "front"
	// DirectionBack marks the bottom-center damage indicator.
	DirectionBack Direction = "back"
	// DirectionLeft marks the left-edge damage indicator.
	DirectionLeft Direction = "left"
	// DirectionRight marks the right-edge damage indicator.
	DirectionRight Direction = "right"
	// DirectionFrontLeft marks the upper-left diagonal indicator.
	DirectionFrontLeft Direction = "front_left"
	// DirectionFrontRight marks the upper-right diagonal indicator.
	DirectionFrontRight Direction = "front_right"
	// DirectionBackLeft marks the lower-left diagonal indicator.
	DirectionBackLeft Direction = "back_left"
	// DirectionBackRight marks the lower-right diagonal indicator.
	DirectionBackRight Direction = "back_right"
)

var validDirections = map[Direction]struct{}{
	DirectionFront:      {},
	DirectionBack:       {},
	DirectionLeft:       {},
	DirectionRight:      {},
	DirectionFrontLeft:  {},
	DirectionFrontRight: {},
	DirectionBackLeft:   {},
	DirectionBackRight:  {},
}

// ParseDirection validates a raw direction string. The empty string is
// allowed and means the sub-region carries no directional label.
func ParseDirection(raw string) (Direction, error) {
	if raw == "" {
		return "", nil
	}
	d := Direction(raw)
	if _, ok := validDirections[d]; !ok {
		return "", errors.Newf(errors.CodeProfileInvalid, "unknown direction %q", raw)
	}
	return d, nil
}

// Valid reports whether d is a member of the direction set. The empty
// direction is valid and means unlabeled.
func (d Direction) Valid() bool {
	if d == "" {
		return true
	}
	_, ok := validDirections[d]
	return ok
}
