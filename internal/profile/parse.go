package profile

import (
	"encoding/json"
	"fmt"

	"github.com/samber/lo"

	"github.com/hudpulse/hudpulse/internal/errors"
)

// Parse decodes, normalizes, and validates a profile document. Unknown JSON
// fields are ignored so older engines tolerate newer profiles; unknown
// detector types are rejected so a typo never silently drops a detector.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(err, errors.CodeProfileInvalid, "profile is not valid JSON")
	}
	p.normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// normalize fills defaults and folds field aliases in place. It never
// rejects; Validate does that on the normalized form.
func (p *Profile) normalize() {
	if p.Name == "" {
		p.Name = DefaultProfileName
	}
	if p.Capture.Source == "" {
		p.Capture.Source = DefaultCaptureSource
	}
	if p.Capture.MonitorIndex == 0 {
		p.Capture.MonitorIndex = DefaultMonitorIndex
	}
	if p.Capture.TickMS == 0 {
		p.Capture.TickMS = DefaultTickMS
	}

	for i := range p.Detectors {
		d := &p.Detectors[i]
		switch d.Type {
		case KindRedness:
			normalizeRedness(d)
		case KindHealthBar:
			normalizeBar(d)
		case KindHealthNumber:
			normalizeNumber(d)
		}
	}
}

func normalizeRedness(d *DetectorConfig) {
	if d.Name == "" {
		d.Name = DefaultRednessName
	}
	if d.Threshold == nil {
		d.Threshold = &RednessThreshold{MinScore: DefaultRednessMinScore}
	}
	if d.CooldownMS == 0 {
		d.CooldownMS = DefaultRednessCooldownMS
	}
	// "zones" is the legacy spelling of "rois".
	if len(d.ROIs) == 0 && len(d.Zones) > 0 {
		d.ROIs = d.Zones
	}
	d.Zones = nil
	for i := range d.ROIs {
		sub := &d.ROIs[i]
		if sub.Name == "" {
			sub.Name = fmt.Sprintf("roi_%d", i)
		}
		if sub.Rect == nil && sub.ROI != nil {
			sub.Rect = sub.ROI
		}
		sub.ROI = nil
	}
}

func normalizeBar(d *DetectorConfig) {
	if d.Name == "" {
		d.Name = DefaultBarName
	}
	if d.ROI == nil && d.Rect != nil {
		d.ROI = d.Rect
	}
	d.Rect = nil
	if d.Orientation == "" {
		d.Orientation = DefaultBarOrientation
	}
	if d.ColorSampling != nil && d.ColorSampling.ToleranceL1 == 0 {
		d.ColorSampling.ToleranceL1 = DefaultBarToleranceL1
	}
	// Without calibrated colors the boundary scan falls back to a
	// brightness threshold.
	if d.ColorSampling == nil && d.ThresholdFallback == nil {
		d.ThresholdFallback = &ThresholdFallback{}
	}
	if d.ThresholdFallback != nil {
		if d.ThresholdFallback.Mode == "" {
			d.ThresholdFallback.Mode = DefaultFallbackMode
		}
		if d.ThresholdFallback.Min == 0 {
			d.ThresholdFallback.Min = DefaultFallbackMin
		}
	}
	if d.HitOnDecrease != nil {
		if d.HitOnDecrease.MinDrop == 0 {
			d.HitOnDecrease.MinDrop = DefaultBarMinDrop
		}
		if d.HitOnDecrease.CooldownMS == 0 {
			d.HitOnDecrease.CooldownMS = DefaultBarCooldownMS
		}
	}
}

func normalizeNumber(d *DetectorConfig) {
	if d.Name == "" {
		d.Name = DefaultNumberName
	}
	if d.ROI == nil && d.Rect != nil {
		d.ROI = d.Rect
	}
	d.Rect = nil
	if d.Digits == 0 {
		d.Digits = DefaultNumberDigits
	}
	if d.Preprocess == nil {
		d.Preprocess = &Preprocess{}
	}
	if d.Preprocess.Threshold == 0 {
		d.Preprocess.Threshold = DefaultNumberThreshold
	}
	if d.Preprocess.Scale == 0 {
		d.Preprocess.Scale = DefaultNumberScale
	}
	if d.Readout == nil {
		d.Readout = &Readout{}
	}
	if d.Readout.Max == 0 {
		d.Readout.Max = DefaultReadoutMax
	}
	if d.Readout.StableReads == 0 {
		d.Readout.StableReads = DefaultStableReads
	}
	if d.HitOnDecrease == nil {
		d.HitOnDecrease = &HitOnDecrease{}
	}
	if d.HitOnDecrease.MinDrop == 0 {
		d.HitOnDecrease.MinDrop = DefaultNumberMinDrop
	}
	if d.HitOnDecrease.CooldownMS == 0 {
		d.HitOnDecrease.CooldownMS = DefaultNumberCooldownMS
	}
	if d.Templates == nil {
		d.Templates = &TemplateRef{}
	}
	if d.Templates.SetID == "" {
		d.Templates.SetID = DefaultTemplateSetID
	}
	if d.Templates.HammingMax == 0 {
		d.Templates.HammingMax = DefaultTemplateHamming
	}
}

// Validate checks the normalized profile against every structural invariant.
// The first violation is returned as a profile_invalid error.
func (p *Profile) Validate() error {
	if p.Capture.Source != SourceMonitor && p.Capture.Source != SourceStill {
		return errors.Newf(errors.CodeProfileInvalid, "capture source must be monitor or still, got %q", p.Capture.Source)
	}
	if p.Capture.MonitorIndex < 1 {
		return errors.Newf(errors.CodeProfileInvalid, "monitor_index must be >= 1, got %d", p.Capture.MonitorIndex)
	}
	if p.Capture.TickMS <= 0 {
		return errors.Newf(errors.CodeProfileInvalid, "tick_ms must be positive, got %d", p.Capture.TickMS)
	}
	if len(p.Detectors) == 0 {
		return errors.New(errors.CodeProfileInvalid, "profile has no detectors")
	}

	for i := range p.Detectors {
		d := &p.Detectors[i]
		var err error
		switch d.Type {
		case KindRedness:
			err = validateRedness(d)
		case KindHealthBar:
			err = validateBar(d)
		case KindHealthNumber:
			err = validateNumber(d)
		default:
			err = errors.Newf(errors.CodeProfileInvalid, "unsupported detector type %q", d.Type)
		}
		if err != nil {
			return errors.Wrapf(err, errors.CodeProfileInvalid, "detectors[%d]", i)
		}
	}

	if dups := lo.FindDuplicates(p.DetectorNames()); len(dups) > 0 {
		return errors.Newf(errors.CodeProfileInvalid, "duplicate detector names %v", dups)
	}
	return nil
}

func validateRedness(d *DetectorConfig) error {
	if d.Threshold.MinScore < 0 || d.Threshold.MinScore > 1 {
		return errors.Newf(errors.CodeProfileInvalid, "min_score must be in [0,1], got %v", d.Threshold.MinScore)
	}
	if d.CooldownMS < 0 {
		return errors.Newf(errors.CodeProfileInvalid, "cooldown_ms must be >= 0, got %d", d.CooldownMS)
	}
	if len(d.ROIs) == 0 {
		return errors.New(errors.CodeProfileInvalid, "redness detector has no sub-regions")
	}
	seen := make(map[string]struct{}, len(d.ROIs))
	for i := range d.ROIs {
		sub := &d.ROIs[i]
		if sub.Rect == nil {
			return errors.Newf(errors.CodeProfileInvalid, "sub-region %q has no rect", sub.Name)
		}
		if err := sub.Rect.Validate(); err != nil {
			return errors.Wrapf(err, errors.CodeProfileInvalid, "sub-region %q", sub.Name)
		}
		if !sub.Direction.Valid() {
			return errors.Newf(errors.CodeProfileInvalid, "sub-region %q: unknown direction %q", sub.Name, sub.Direction)
		}
		if _, dup := seen[sub.Name]; dup {
			return errors.Newf(errors.CodeProfileInvalid, "duplicate sub-region name %q", sub.Name)
		}
		seen[sub.Name] = struct{}{}
	}
	return nil
}

func validateBar(d *DetectorConfig) error {
	if d.ROI == nil {
		return errors.New(errors.CodeProfileInvalid, "health_bar has no roi")
	}
	if err := d.ROI.Validate(); err != nil {
		return err
	}
	if d.Orientation != DefaultBarOrientation {
		return errors.Newf(errors.CodeProfileInvalid, "health_bar orientation must be horizontal, got %q", d.Orientation)
	}
	if cs := d.ColorSampling; cs != nil {
		if cs.ToleranceL1 < 0 || cs.ToleranceL1 > MaxToleranceL1 {
			return errors.Newf(errors.CodeProfileInvalid, "tolerance_l1 must be in [0,%d], got %d", MaxToleranceL1, cs.ToleranceL1)
		}
	}
	if tf := d.ThresholdFallback; tf != nil {
		if tf.Mode != "brightness" && tf.Mode != "saturation" {
			return errors.Newf(errors.CodeProfileInvalid, "threshold_fallback mode must be brightness or saturation, got %q", tf.Mode)
		}
		if tf.Min < 0 || tf.Min > 1 {
			return errors.Newf(errors.CodeProfileInvalid, "threshold_fallback min must be in [0,1], got %v", tf.Min)
		}
	}
	if d.HitOnDecrease == nil {
		return errors.New(errors.CodeProfileInvalid, "health_bar requires hit_on_decrease")
	}
	if md := d.HitOnDecrease.MinDrop; md <= 0 || md > 1 {
		return errors.Newf(errors.CodeProfileInvalid, "min_drop must be in (0,1], got %v", md)
	}
	if d.HitOnDecrease.CooldownMS < 0 {
		return errors.Newf(errors.CodeProfileInvalid, "cooldown_ms must be >= 0, got %d", d.HitOnDecrease.CooldownMS)
	}
	if s := d.Smoothing; s != nil {
		if s.Alpha <= 0 || s.Alpha > 1 {
			return errors.Newf(errors.CodeProfileInvalid, "smoothing alpha must be in (0,1], got %v", s.Alpha)
		}
	}
	return nil
}

func validateNumber(d *DetectorConfig) error {
	if d.ROI == nil {
		return errors.New(errors.CodeProfileInvalid, "health_number has no roi")
	}
	if err := d.ROI.Validate(); err != nil {
		return err
	}
	if d.Digits < 1 {
		return errors.Newf(errors.CodeProfileInvalid, "digits must be >= 1, got %d", d.Digits)
	}
	if t := d.Preprocess.Threshold; t < 0 || t > 1 {
		return errors.Newf(errors.CodeProfileInvalid, "preprocess threshold must be in [0,1], got %v", t)
	}
	if d.Preprocess.Scale < 1 {
		return errors.Newf(errors.CodeProfileInvalid, "preprocess scale must be >= 1, got %d", d.Preprocess.Scale)
	}
	if d.Readout.Min > d.Readout.Max {
		return errors.Newf(errors.CodeProfileInvalid, "readout min %d > max %d", d.Readout.Min, d.Readout.Max)
	}
	if d.Readout.StableReads < 1 {
		return errors.Newf(errors.CodeProfileInvalid, "stable_reads must be >= 1, got %d", d.Readout.StableReads)
	}
	if d.HitOnDecrease.MinDrop < 1 {
		return errors.Newf(errors.CodeProfileInvalid, "min_drop must be >= 1, got %v", d.HitOnDecrease.MinDrop)
	}
	if d.HitOnDecrease.CooldownMS < 0 {
		return errors.Newf(errors.CodeProfileInvalid, "cooldown_ms must be >= 0, got %d", d.HitOnDecrease.CooldownMS)
	}
	if d.Templates.HammingMax < 0 {
		return errors.Newf(errors.CodeProfileInvalid, "hamming_max must be >= 0, got %d", d.Templates.HammingMax)
	}
	return nil
}
