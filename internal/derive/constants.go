package derive

import "time"

// Percent emission throttling: a bar percent is re-emitted when it moved
// by at least the delta or the interval elapsed, whichever comes first.
const (
	PercentMinDelta    = 0.005
	PercentMaxInterval = 500 * time.Millisecond
)
