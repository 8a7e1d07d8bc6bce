// Package event defines the semantic events the engine emits and the sink
// boundary they cross. A sink receives a whole tick's batch at once, in
// order, so consumers never observe a partially published tick.
package event

import (
	"log/slog"
	"time"
)

// Kind is the event discriminator carried in the cmd field.
type Kind string

const (
	// KindHit is a derived damage event from any detector.
	KindHit Kind = "hit_recorded"
	// KindHealthPercent is a throttled bar percent update.
	KindHealthPercent Kind = "health_percent"
	// KindHealthValue is a stabilized number readout change.
	KindHealthValue Kind = "health_value"
)

// Event is one emitted observation. Value depends on the kind: the hit
// score for hits, the percent in [0,1] for bar updates, the integer
// readout for number updates. Prev and Drop ride along on level-derived
// hits so a consumer can reconstruct the jump without tracking state.
type Event struct {
	Cmd       Kind     `json:"cmd"`
	Detector  string   `json:"detector"`
	Source    string   `json:"source,omitempty"`
	Direction string   `json:"direction,omitempty"`
	Value     float64  `json:"value"`
	Prev      *float64 `json:"prev,omitempty"`
	Drop      *float64 `json:"drop,omitempty"`
	TS        int64    `json:"ts"`
}

// LogValue keeps event logging compact and structured.
func (e Event) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("cmd", string(e.Cmd)),
		slog.String("detector", e.Detector),
		slog.Float64("value", e.Value),
	}
	if e.Direction != "" {
		attrs = append(attrs, slog.String("direction", e.Direction))
	}
	return slog.GroupValue(attrs...)
}

// Millis converts a wall-clock time to the wire timestamp.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// Sink receives event batches. Publish must not block on slow consumers;
// implementations drop rather than stall the capture loop.
type Sink interface {
	Publish(events []Event)
}

// Float returns a pointer for the optional Prev/Drop fields.
func Float(v float64) *float64 {
	return &v
}
