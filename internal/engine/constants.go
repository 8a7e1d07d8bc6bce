package engine

import "time"

// Tick loop timing
const (
	// CaptureBackoff is slept after a failed frame-size probe so a dead
	// display does not turn the tick loop into a busy spin.
	CaptureBackoff = 500 * time.Millisecond
	// TickTimeoutFloor is the minimum per-tick context deadline.
	TickTimeoutFloor = time.Second
)

// NumberDropScale maps a numeric health drop onto the hit value range:
// a drop of 25 points reads as 1.0.
const NumberDropScale = 25.0

// DefaultDebugDir receives ROI crops when saving is enabled without an
// explicit directory.
const DefaultDebugDir = "hudpulse_debug"
