// Package engine owns the watch lifecycle: profile loading, the tick
// scheduler, per-detector runtime state, and batched event publication.
// One watch runs at a time; starting a new one atomically replaces the
// old, and no runtime state survives the switch.
package engine

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/hudpulse/hudpulse/internal/capture"
	"github.com/hudpulse/hudpulse/internal/config"
	"github.com/hudpulse/hudpulse/internal/debugcrop"
	apperrors "github.com/hudpulse/hudpulse/internal/errors"
	"github.com/hudpulse/hudpulse/internal/event"
	"github.com/hudpulse/hudpulse/internal/metrics"
	"github.com/hudpulse/hudpulse/internal/profile"
	"github.com/hudpulse/hudpulse/internal/resilience"
	"github.com/hudpulse/hudpulse/internal/syncx"
	"github.com/hudpulse/hudpulse/internal/templates"
	"github.com/hudpulse/hudpulse/internal/trace"
)

// Watcher runs at most one watch at a time and publishes its events.
type Watcher struct {
	store          *templates.Store
	sink           event.Sink
	met            *metrics.Metrics
	debug          config.Debug
	stillPath      string
	captureTimeout time.Duration
	openSource     func(capture.Options) (capture.Source, error)

	mu      sync.Mutex // serializes start/stop
	current *watch
	times   *syncx.RWGuard[eventTimes]
}

type eventTimes struct {
	lastEvent time.Time
	lastHit   time.Time
}

// watch is the runtime of one started profile.
type watch struct {
	profile *profile.Profile
	source  capture.Source
	states  []detectorState
	tick    time.Duration
	debug   config.Debug
	stopCh  chan struct{}
	done    chan struct{}
	ticks   uint64
}

// New creates a Watcher. The sink may be nil to discard events; met must
// not be nil.
func New(cfg *config.Config, store *templates.Store, sink event.Sink, met *metrics.Metrics) *Watcher {
	if store == nil {
		store = templates.New()
	}
	if sink == nil {
		sink = event.Discard
	}
	return &Watcher{
		store:          store,
		sink:           sink,
		met:            met,
		debug:          cfg.Debug,
		stillPath:      cfg.StillImagePath,
		captureTimeout: time.Duration(cfg.CaptureTimeoutMS) * time.Millisecond,
		openSource:     capture.Open,
		times:          syncx.NewGuard(eventTimes{}),
	}
}

// StartWatch loads the profile and starts its tick loop. Everything that
// can fail happens before the running watch is touched: a rejected
// profile, an unresolved template set, or a dead capture source leaves
// the previous watch running. Only after the new watch is fully viable is
// the old one stopped and replaced.
func (w *Watcher) StartWatch(ctx context.Context, profileJSON []byte) error {
	p, err := profile.Parse(profileJSON)
	if err != nil {
		return err
	}

	dbg := w.effectiveDebug(p)
	var saver *debugcrop.Saver
	if dbg.SaveROIImages {
		saver = debugcrop.NewSaver(dbg.SaveDir)
	}

	states, err := w.buildStates(p, saver)
	if err != nil {
		return err
	}

	src, err := w.openSource(w.captureOptions(p))
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeCaptureUnavailable, "open capture source")
	}
	// The source must hand over a frame before it replaces anything.
	if err := resilience.Retry(ctx, resilience.CaptureInitRetryConfig(), func() error {
		probeCtx := ctx
		if w.captureTimeout > 0 {
			var cancel context.CancelFunc
			probeCtx, cancel = context.WithTimeout(ctx, w.captureTimeout)
			defer cancel()
		}
		_, _, err := src.FrameSize(probeCtx)
		return err
	}); err != nil {
		src.Close()
		return apperrors.Wrap(err, apperrors.CodeCaptureUnavailable, "capture source probe")
	}

	next := &watch{
		profile: p,
		source:  src,
		states:  states,
		tick:    p.Capture.Tick(),
		debug:   dbg,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current != nil {
		w.stopLocked(w.current)
	}
	w.times.Set(eventTimes{})
	w.current = next
	go w.run(next)

	logCtx, _ := trace.EnsureContext(ctx)
	trace.Logger(logCtx).Info("watch started",
		"profile", p.Name,
		"tick", next.tick,
		"detectors", p.DetectorNames(),
		"source", p.Capture.Source,
	)
	return nil
}

// StopWatch halts the active watch. It is idempotent, and once it
// returns no further events will be published.
func (w *Watcher) StopWatch() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return
	}
	name := w.current.profile.Name
	w.stopLocked(w.current)
	w.current = nil
	slog.Info("watch stopped", "profile", name)
}

func (w *Watcher) stopLocked(wt *watch) {
	close(wt.stopCh)
	<-wt.done
	wt.source.Close()
}

// Frame grabs one full frame, from the active watch's source when one is
// running, otherwise from a fresh default source that is closed after the
// grab. Used for calibration screenshots.
func (w *Watcher) Frame(ctx context.Context) (image.Image, error) {
	w.mu.Lock()
	wt := w.current
	w.mu.Unlock()
	if wt != nil {
		return wt.source.CaptureFrame(ctx)
	}

	opts := capture.Options{
		Source:       profile.SourceMonitor,
		MonitorIndex: profile.DefaultMonitorIndex,
		Timeout:      w.captureTimeout,
	}
	if w.stillPath != "" {
		opts.Source = profile.SourceStill
		opts.StillPath = w.stillPath
	}
	src, err := w.openSource(opts)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCaptureUnavailable, "open capture source")
	}
	defer src.Close()
	return src.CaptureFrame(ctx)
}

// Status reports the engine's externally visible state.
type Status struct {
	Running         bool     `json:"running"`
	Profile         string   `json:"profile,omitempty"`
	TickMS          int      `json:"tick_ms,omitempty"`
	Detectors       []string `json:"detectors,omitempty"`
	Events          uint64   `json:"events"`
	Hits            uint64   `json:"hits"`
	CaptureFailures uint64   `json:"capture_failures"`
	LastEventMS     int64    `json:"last_event_ms,omitempty"`
	LastHitMS       int64    `json:"last_hit_ms,omitempty"`
}

func (w *Watcher) Status() Status {
	w.mu.Lock()
	wt := w.current
	w.mu.Unlock()

	st := Status{
		Events:          w.met.Hits.Load() + w.met.PercentEvents.Load() + w.met.ValueEvents.Load(),
		Hits:            w.met.Hits.Load(),
		CaptureFailures: w.met.CaptureFailures.Load(),
	}
	times := w.times.Get()
	if !times.lastEvent.IsZero() {
		st.LastEventMS = times.lastEvent.UnixMilli()
	}
	if !times.lastHit.IsZero() {
		st.LastHitMS = times.lastHit.UnixMilli()
	}
	if wt != nil {
		st.Running = true
		st.Profile = wt.profile.Name
		st.TickMS = wt.profile.Capture.TickMS
		st.Detectors = lo.Map(wt.states, func(s detectorState, _ int) string { return s.name() })
	}
	return st
}

func (w *Watcher) run(wt *watch) {
	defer close(wt.done)
	w.met.WatchActive.Store(1)
	defer w.met.WatchActive.Store(0)

	ticker := time.NewTicker(wt.tick)
	defer ticker.Stop()

	for {
		select {
		case <-wt.stopCh:
			return
		case <-ticker.C:
			if !w.step(wt) {
				return
			}
		}
	}
}

// step runs one tick. It returns false when the watch was stopped while
// the tick was in flight.
func (w *Watcher) step(wt *watch) bool {
	started := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout(wt.tick))
	defer cancel()
	ctx = trace.WithContext(ctx, trace.New())

	frameW, frameH, err := wt.source.FrameSize(ctx)
	if err != nil {
		w.met.CaptureFailures.Add(1)
		trace.Logger(ctx).Warn("frame size probe failed, backing off",
			"error", err, "backoff", CaptureBackoff)
		select {
		case <-wt.stopCh:
			return false
		case <-time.After(CaptureBackoff):
			return true
		}
	}

	wt.ticks++
	ti := tickInfo{
		ctx:       ctx,
		now:       time.Now(),
		src:       wt.source,
		frameW:    frameW,
		frameH:    frameH,
		logValues: wt.debug.LogValues && wt.ticks%uint64(wt.debug.LogEveryNTicks) == 0,
	}

	var batch []event.Event
	for _, st := range wt.states {
		batch = append(batch, st.tick(ti)...)
	}

	if len(batch) > 0 {
		// A stop racing this tick wins: its events are dropped.
		select {
		case <-wt.stopCh:
			return false
		default:
		}
		w.sink.Publish(batch)
		w.recordBatch(batch)
	}
	w.met.RecordTick(time.Since(started))
	return true
}

func (w *Watcher) recordBatch(batch []event.Event) {
	times := w.times.Get()
	for _, ev := range batch {
		w.met.RecordEvent(string(ev.Cmd))
		t := time.UnixMilli(ev.TS)
		times.lastEvent = t
		if ev.Cmd == event.KindHit {
			times.lastHit = t
		}
	}
	w.times.Set(times)
}

func (w *Watcher) buildStates(p *profile.Profile, saver *debugcrop.Saver) ([]detectorState, error) {
	states := make([]detectorState, 0, len(p.Detectors))
	for i := range p.Detectors {
		d := &p.Detectors[i]
		switch d.Type {
		case profile.KindRedness:
			states = append(states, newRednessState(d, w.met, saver))
		case profile.KindHealthBar:
			states = append(states, newBarState(d, w.met, saver))
		case profile.KindHealthNumber:
			set, err := w.store.ResolveRef(d.Templates)
			if err != nil {
				return nil, apperrors.Wrapf(err, apperrors.CodeTemplateSetUnresolved, "detectors[%d]", i)
			}
			states = append(states, newNumberState(d, set.Glyphs, w.met, saver))
		}
	}
	return states, nil
}

func (w *Watcher) captureOptions(p *profile.Profile) capture.Options {
	opts := capture.Options{
		Source:       p.Capture.Source,
		MonitorIndex: p.Capture.MonitorIndex,
		Timeout:      w.captureTimeout,
	}
	if p.Capture.Source == profile.SourceStill {
		opts.StillPath = w.stillPath
		if sp, ok := p.Meta["still_path"].(string); ok && sp != "" {
			opts.StillPath = sp
		}
	}
	return opts
}

// effectiveDebug layers the profile's debug block over the server
// defaults. A profile block wins field-group-wise; gaps fall back.
func (w *Watcher) effectiveDebug(p *profile.Profile) config.Debug {
	dbg := w.debug
	if p.Debug != nil {
		dbg = config.Debug{
			LogValues:      p.Debug.LogValues,
			LogEveryNTicks: p.Debug.LogEveryNTicks,
			SaveROIImages:  p.Debug.SaveROIImages,
			SaveDir:        p.Debug.SaveDir,
		}
		if dbg.LogEveryNTicks == 0 {
			dbg.LogEveryNTicks = w.debug.LogEveryNTicks
		}
		if dbg.SaveDir == "" {
			dbg.SaveDir = w.debug.SaveDir
		}
	}
	if dbg.LogEveryNTicks < 1 {
		dbg.LogEveryNTicks = 1
	}
	if dbg.SaveDir == "" {
		dbg.SaveDir = DefaultDebugDir
	}
	return dbg
}

func tickTimeout(tick time.Duration) time.Duration {
	if t := 2 * tick; t > TickTimeoutFloor {
		return t
	}
	return TickTimeoutFloor
}
