package engine

import (
	"context"
	"image"
	"log/slog"
	"time"

	"github.com/hudpulse/hudpulse/internal/capture"
	"github.com/hudpulse/hudpulse/internal/debugcrop"
	"github.com/hudpulse/hudpulse/internal/derive"
	"github.com/hudpulse/hudpulse/internal/detect"
	"github.com/hudpulse/hudpulse/internal/event"
	"github.com/hudpulse/hudpulse/internal/metrics"
	"github.com/hudpulse/hudpulse/internal/profile"
	"github.com/hudpulse/hudpulse/internal/sampler"
)

// tickInfo carries one tick's shared inputs to every detector state.
type tickInfo struct {
	ctx       context.Context
	now       time.Time
	src       capture.Source
	frameW    int
	frameH    int
	logValues bool
}

// detectorState evaluates one configured detector each tick. A failed
// grab skips only that detector; all runtime state is kept.
type detectorState interface {
	name() string
	tick(ti tickInfo) []event.Event
}

// rednessState fires a directional hit when a sub-region's red excess
// crosses the profile threshold, gated per sub-region by a cooldown.
type rednessState struct {
	cfg   *profile.DetectorConfig
	gates map[string]*derive.Gate
	met   *metrics.Metrics
	saver *debugcrop.Saver
}

func newRednessState(cfg *profile.DetectorConfig, met *metrics.Metrics, saver *debugcrop.Saver) *rednessState {
	gates := make(map[string]*derive.Gate, len(cfg.ROIs))
	for _, sub := range cfg.ROIs {
		g := derive.NewGate(cfg.Cooldown())
		gates[sub.Name] = &g
	}
	return &rednessState{cfg: cfg, gates: gates, met: met, saver: saver}
}

func (s *rednessState) name() string { return s.cfg.Name }

func (s *rednessState) tick(ti tickInfo) []event.Event {
	var events []event.Event
	for i := range s.cfg.ROIs {
		sub := &s.cfg.ROIs[i]
		img, _, err := sampler.SampleAt(ti.ctx, ti.src, *sub.Rect, ti.frameW, ti.frameH)
		if err != nil {
			s.met.DetectorSkips.Add(1)
			slog.Debug("skipping redness roi after failed grab", "roi", sub.Name, "error", err)
			continue
		}
		s.saver.SaveOnce("redness", sub.Name, img)

		score := detect.RednessScore(img)
		if ti.logValues {
			slog.Info("redness score", "roi", sub.Name, "score", score)
		}
		if score < s.cfg.Threshold.MinScore {
			continue
		}
		if !s.gates[sub.Name].Fire(ti.now) {
			continue
		}
		s.saver.SaveHit("redness_hit", sub.Name, img)
		events = append(events, event.Event{
			Cmd:       event.KindHit,
			Detector:  sub.Name,
			Source:    string(profile.KindRedness),
			Direction: string(sub.Direction),
			Value:     score,
			TS:        event.Millis(ti.now),
		})
	}
	return events
}

// barState tracks the fill boundary of a horizontal health bar, smooths
// it when configured, throttles percent events, and derives hits from
// percent drops.
type barState struct {
	cfg      *profile.DetectorConfig
	ema      *derive.EMA
	throttle derive.Throttle
	tracker  derive.LevelTracker
	met      *metrics.Metrics
	saver    *debugcrop.Saver
}

func newBarState(cfg *profile.DetectorConfig, met *metrics.Metrics, saver *debugcrop.Saver) *barState {
	st := &barState{
		cfg:      cfg,
		throttle: derive.NewThrottle(derive.PercentMinDelta, derive.PercentMaxInterval),
		tracker:  derive.NewLevelTracker(cfg.HitOnDecrease.MinDrop, cfg.HitOnDecrease.Cooldown()),
		met:      met,
		saver:    saver,
	}
	if cfg.Smoothing != nil {
		ema := derive.NewEMA(cfg.Smoothing.Alpha)
		st.ema = &ema
	}
	return st
}

func (s *barState) name() string { return s.cfg.Name }

func (s *barState) tick(ti tickInfo) []event.Event {
	img, _, err := sampler.SampleAt(ti.ctx, ti.src, *s.cfg.ROI, ti.frameW, ti.frameH)
	if err != nil {
		s.met.DetectorSkips.Add(1)
		slog.Debug("skipping bar detector after failed grab", "detector", s.cfg.Name, "error", err)
		return nil
	}
	s.saver.SaveOnce("health_bar", s.cfg.Name, img)

	percent := s.measure(img)
	if s.ema != nil {
		percent = s.ema.Update(percent)
	}
	if ti.logValues {
		slog.Info("health bar percent", "detector", s.cfg.Name, "percent", percent)
	}

	var events []event.Event
	if s.throttle.ShouldEmit(ti.now, percent) {
		events = append(events, event.Event{
			Cmd:      event.KindHealthPercent,
			Detector: s.cfg.Name,
			Value:    percent,
			TS:       event.Millis(ti.now),
		})
	}
	if obs := s.tracker.Observe(ti.now, percent); obs.Hit {
		s.saver.SaveHit("health_bar_hit", s.cfg.Name, img)
		events = append(events, event.Event{
			Cmd:      event.KindHit,
			Detector: s.cfg.Name,
			Source:   string(profile.KindHealthBar),
			Value:    clamp01(obs.Drop),
			Prev:     event.Float(obs.Prev),
			Drop:     event.Float(obs.Drop),
			TS:       event.Millis(ti.now),
		})
	}
	return events
}

func (s *barState) measure(img *image.NRGBA) float64 {
	return measureBar(s.cfg, img)
}

// measureBar runs the boundary scan with calibrated colors when the
// profile carries them, otherwise the threshold fallback.
func measureBar(cfg *profile.DetectorConfig, img *image.NRGBA) float64 {
	if cs := cfg.ColorSampling; cs != nil {
		return detect.BarPercent(img, detect.BarParams{
			FilledRGB:       cs.FilledRGB,
			EmptyRGB:        cs.EmptyRGB,
			ToleranceL1:     cs.ToleranceL1,
			ColumnFillRatio: profile.DefaultColumnFillRatio,
		})
	}
	fb := cfg.ThresholdFallback
	return detect.BarPercentFallback(img, detect.FallbackParams{
		Mode:            fb.Mode,
		Min:             fb.Min,
		ColumnFillRatio: profile.DefaultColumnFillRatio,
	})
}

// numberState reads a digit strip by template matching, emits the value
// once stabilized and changed, and derives hits from stable drops.
type numberState struct {
	cfg         *profile.DetectorConfig
	params      detect.NumberParams
	stab        derive.Stabilizer
	tracker     derive.LevelTracker
	lastEmitted int
	hasEmitted  bool
	met         *metrics.Metrics
	saver       *debugcrop.Saver
}

func newNumberState(cfg *profile.DetectorConfig, set detect.DigitSet, met *metrics.Metrics, saver *debugcrop.Saver) *numberState {
	return &numberState{
		cfg:     cfg,
		params:  numberParams(cfg, set),
		stab:    derive.NewStabilizer(cfg.Readout.StableReads),
		tracker: derive.NewLevelTracker(cfg.HitOnDecrease.MinDrop, cfg.HitOnDecrease.Cooldown()),
		met:     met,
		saver:   saver,
	}
}

func numberParams(cfg *profile.DetectorConfig, set detect.DigitSet) detect.NumberParams {
	return detect.NumberParams{
		Digits:     cfg.Digits,
		Threshold:  cfg.Preprocess.Threshold,
		Scale:      cfg.Preprocess.Scale,
		Invert:     cfg.Preprocess.Invert,
		HammingMax: cfg.Templates.HammingMax,
		Min:        cfg.Readout.Min,
		Max:        cfg.Readout.Max,
		Templates:  set,
	}
}

func (s *numberState) name() string { return s.cfg.Name }

func (s *numberState) tick(ti tickInfo) []event.Event {
	img, _, err := sampler.SampleAt(ti.ctx, ti.src, *s.cfg.ROI, ti.frameW, ti.frameH)
	if err != nil {
		s.met.DetectorSkips.Add(1)
		slog.Debug("skipping number detector after failed grab", "detector", s.cfg.Name, "error", err)
		return nil
	}
	s.saver.SaveOnce("health_number", s.cfg.Name, img)

	value, ok := detect.ReadNumber(img, s.params)
	if !ok {
		s.met.RejectedReads.Add(1)
		if ti.logValues {
			slog.Info("health number read rejected", "detector", s.cfg.Name)
		}
		return nil
	}
	if ti.logValues {
		slog.Info("health number read", "detector", s.cfg.Name, "value", value)
	}

	if !s.stab.Observe(value) {
		return nil
	}

	var events []event.Event
	if !s.hasEmitted || value != s.lastEmitted {
		events = append(events, event.Event{
			Cmd:      event.KindHealthValue,
			Detector: s.cfg.Name,
			Value:    float64(value),
			TS:       event.Millis(ti.now),
		})
		s.lastEmitted = value
		s.hasEmitted = true
	}
	if obs := s.tracker.Observe(ti.now, float64(value)); obs.Hit {
		s.saver.SaveHit("health_number_hit", s.cfg.Name, img)
		events = append(events, event.Event{
			Cmd:      event.KindHit,
			Detector: s.cfg.Name,
			Source:   string(profile.KindHealthNumber),
			Value:    clamp01(obs.Drop / NumberDropScale),
			Prev:     event.Float(obs.Prev),
			Drop:     event.Float(obs.Drop),
			TS:       event.Millis(ti.now),
		})
	}
	return events
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
