package profile

import (
	"image"
	"math"

	"github.com/hudpulse/hudpulse/internal/errors"
)

// Region is a rectangle in normalized screen coordinates. All four fields
// are fractions of the frame dimensions, so a profile written against a
// 1920x1080 monitor resolves correctly on any resolution.
type Region struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Validate checks the normalized-coordinate invariants: positive area,
// origin inside the unit square, and the rectangle fully contained in it.
func (r Region) Validate() error {
	if r.W <= 0 || r.H <= 0 {
		return errors.Newf(errors.CodeProfileInvalid, "region w/h must be positive, got w=%v h=%v", r.W, r.H)
	}
	if r.X < 0 || r.X > 1 || r.Y < 0 || r.Y > 1 {
		return errors.Newf(errors.CodeProfileInvalid, "region origin out of [0,1], got x=%v y=%v", r.X, r.Y)
	}
	if r.X+r.W > 1 || r.Y+r.H > 1 {
		return errors.Newf(errors.CodeProfileInvalid, "region extends past frame edge, x+w=%v y+h=%v", r.X+r.W, r.Y+r.H)
	}
	return nil
}

// ToPixels resolves the region against a concrete frame size. Each edge is
// rounded independently, then clamped so the result is at least 1x1 and
// lies fully inside the frame. Callers re-resolve every tick so a
// resolution change mid-watch lands the rectangles correctly on the next
// tick without a restart.
func (r Region) ToPixels(frameW, frameH int) image.Rectangle {
	left := int(math.Round(r.X * float64(frameW)))
	top := int(math.Round(r.Y * float64(frameH)))
	w := int(math.Round(r.W * float64(frameW)))
	h := int(math.Round(r.H * float64(frameH)))

	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	left = clampInt(left, 0, frameW-1)
	top = clampInt(top, 0, frameH-1)
	if w > frameW-left {
		w = frameW - left
	}
	if w < 1 {
		w = 1
	}
	if h > frameH-top {
		h = frameH - top
	}
	if h < 1 {
		h = 1
	}

	return image.Rect(left, top, left+w, top+h)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
