// Package derive holds the runtime state machines between raw detector
// readings and emitted events: hit gating with cooldowns, level baselines
// for hit-on-decrease, smoothing, read stabilization, and emission
// throttling. Each machine takes the current time as an argument, so tests
// drive them with a synthetic clock.
package derive

import "time"

// Gate is a per-key hit gate. It idles until fired, then cools for the
// configured duration during which further fires are suppressed.
type Gate struct {
	cooldown time.Duration
	lastFire time.Time
	fired    bool
}

// NewGate creates a gate with the given cooldown.
func NewGate(cooldown time.Duration) Gate {
	return Gate{cooldown: cooldown}
}

// Ready reports whether the gate would fire right now.
func (g *Gate) Ready(now time.Time) bool {
	return !g.fired || now.Sub(g.lastFire) >= g.cooldown
}

// Fire attempts to fire the gate. It returns true and starts the cooldown
// only when the gate is idle.
func (g *Gate) Fire(now time.Time) bool {
	if !g.Ready(now) {
		return false
	}
	g.fired = true
	g.lastFire = now
	return true
}

// Observation is the outcome of feeding one accepted value to a
// LevelTracker. Prev is the baseline before this value replaced it.
type Observation struct {
	Prev    float64
	HasPrev bool
	Drop    float64
	Hit     bool
}

// LevelTracker derives hits from downward jumps of a tracked level. The
// baseline always advances to the latest accepted value, whether or not a
// hit fires, so a slow bleed under min_drop per tick never fires and
// recovery re-arms the detector at the new level.
type LevelTracker struct {
	minDrop float64
	gate    Gate
	prev    float64
	hasPrev bool
}

// NewLevelTracker creates a tracker that fires on drops of at least
// minDrop, rate-limited by cooldown.
func NewLevelTracker(minDrop float64, cooldown time.Duration) LevelTracker {
	return LevelTracker{minDrop: minDrop, gate: NewGate(cooldown)}
}

// Observe feeds the next accepted value and reports what it implied.
// A drop exactly equal to minDrop fires.
func (t *LevelTracker) Observe(now time.Time, v float64) Observation {
	obs := Observation{Prev: t.prev, HasPrev: t.hasPrev}
	if t.hasPrev {
		obs.Drop = t.prev - v
	}

	t.prev = v
	t.hasPrev = true

	if obs.HasPrev && obs.Drop >= t.minDrop && t.gate.Fire(now) {
		obs.Hit = true
	}
	return obs
}

// EMA applies exponential smoothing. The first sample primes the value;
// alpha 1 passes raw values through.
type EMA struct {
	alpha  float64
	value  float64
	primed bool
}

// NewEMA creates a smoother. Alphas outside (0,1] disable smoothing.
func NewEMA(alpha float64) EMA {
	if alpha <= 0 || alpha > 1 {
		alpha = 1
	}
	return EMA{alpha: alpha}
}

// Update feeds a raw value and returns the smoothed one.
func (e *EMA) Update(v float64) float64 {
	if !e.primed {
		e.value = v
		e.primed = true
		return v
	}
	e.value = e.alpha*v + (1-e.alpha)*e.value
	return e.value
}

// Stabilizer accepts a value only after it has been read identically a
// required number of consecutive times. A differing read restarts the
// count, so a flickering readout never stabilizes.
type Stabilizer struct {
	need      int
	candidate int
	count     int
}

// NewStabilizer creates a stabilizer requiring need consecutive reads.
func NewStabilizer(need int) Stabilizer {
	if need < 1 {
		need = 1
	}
	return Stabilizer{need: need}
}

// Observe feeds one read and reports whether the value is stable now.
// Stability persists while the same value keeps being read.
func (s *Stabilizer) Observe(v int) bool {
	if s.count > 0 && v == s.candidate {
		s.count++
	} else {
		s.candidate = v
		s.count = 1
	}
	return s.count >= s.need
}

// Throttle gates repeated emissions of a slowly moving value: it lets an
// emission through when nothing was emitted yet, the value moved by at
// least minDelta, or maxInterval elapsed since the last emission.
type Throttle struct {
	minDelta    float64
	maxInterval time.Duration
	last        float64
	lastAt      time.Time
	has         bool
}

// NewThrottle creates a throttle.
func NewThrottle(minDelta float64, maxInterval time.Duration) Throttle {
	return Throttle{minDelta: minDelta, maxInterval: maxInterval}
}

// ShouldEmit decides whether to emit v now and records the emission when
// it says yes.
func (t *Throttle) ShouldEmit(now time.Time, v float64) bool {
	if t.has {
		delta := v - t.last
		if delta < 0 {
			delta = -delta
		}
		if delta < t.minDelta && now.Sub(t.lastAt) < t.maxInterval {
			return false
		}
	}
	t.last = v
	t.lastAt = now
	t.has = true
	return true
}
