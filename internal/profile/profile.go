package profile

import "time"

// DetectorKind names one of the supported detection algorithms.
type DetectorKind string

const (
	// KindRedness scores the mean red excess over one or more sub-regions.
	KindRedness DetectorKind = "redness_rois"
	// KindHealthBar locates the filled/empty boundary of a horizontal bar.
	KindHealthBar DetectorKind = "health_bar"
	// KindHealthNumber reads an integer via digit template matching.
	KindHealthNumber DetectorKind = "health_number"
)

// Profile is the parsed, normalized, validated form of a profile document.
type Profile struct {
	SchemaVersion int              `json:"schema_version"`
	Name          string           `json:"name"`
	Meta          map[string]any   `json:"meta,omitempty"`
	Capture       CaptureConfig    `json:"capture"`
	Detectors     []DetectorConfig `json:"detectors"`
	Debug         *DebugConfig     `json:"debug,omitempty"`
}

// CaptureConfig selects the frame source and the sampling cadence.
type CaptureConfig struct {
	Source       string `json:"source"`
	MonitorIndex int    `json:"monitor_index"`
	TickMS       int    `json:"tick_ms"`
}

// Tick returns the sampling interval as a duration. The floor keeps a
// misconfigured profile from spinning the capture loop.
func (c CaptureConfig) Tick() time.Duration {
	ms := c.TickMS
	if ms < 10 {
		ms = 10
	}
	return time.Duration(ms) * time.Millisecond
}

// DebugConfig is the per-profile debug block. Environment variables override
// every field at watch-start.
type DebugConfig struct {
	LogValues      bool   `json:"log_values"`
	LogEveryNTicks int    `json:"log_every_n_ticks"`
	SaveROIImages  bool   `json:"save_roi_images"`
	SaveDir        string `json:"save_dir"`
}

// DetectorConfig holds the union of all detector settings. Type selects the
// variant; validation enforces that the fields required by that variant are
// present and in range, and ignores the rest.
type DetectorConfig struct {
	Type DetectorKind `json:"type"`
	Name string       `json:"name,omitempty"`

	// Redness fields.
	Threshold  *RednessThreshold `json:"threshold,omitempty"`
	ROIs       []SubRegion       `json:"rois,omitempty"`
	Zones      []SubRegion       `json:"zones,omitempty"`
	CooldownMS int               `json:"cooldown_ms,omitempty"`

	// Bar and number share a single target rectangle. Both spellings are
	// accepted; normalization folds Rect into ROI.
	ROI  *Region `json:"roi,omitempty"`
	Rect *Region `json:"rect,omitempty"`

	// Bar fields.
	Orientation       string             `json:"orientation,omitempty"`
	ColorSampling     *ColorSampling     `json:"color_sampling,omitempty"`
	ThresholdFallback *ThresholdFallback `json:"threshold_fallback,omitempty"`
	Smoothing         *Smoothing         `json:"smoothing,omitempty"`
	HitOnDecrease     *HitOnDecrease     `json:"hit_on_decrease,omitempty"`

	// Number fields.
	Digits     int          `json:"digits,omitempty"`
	Preprocess *Preprocess  `json:"preprocess,omitempty"`
	Readout    *Readout     `json:"readout,omitempty"`
	Templates  *TemplateRef `json:"templates,omitempty"`
}

// Cooldown returns the detector's hit cooldown as a duration.
func (d DetectorConfig) Cooldown() time.Duration {
	return time.Duration(d.CooldownMS) * time.Millisecond
}

// SubRegion is one named rectangle inside a redness detector. Direction is
// optional and rides along on hit events.
type SubRegion struct {
	Name      string    `json:"name"`
	Direction Direction `json:"direction,omitempty"`
	Rect      *Region   `json:"rect,omitempty"`
	ROI       *Region   `json:"roi,omitempty"`
}

// RednessThreshold gates redness hits.
type RednessThreshold struct {
	MinScore float64 `json:"min_score"`
}

// ColorSampling carries calibrated filled/empty reference colors for the
// bar boundary scan. ToleranceL1 is the maximum L1 distance from the filled
// reference for a pixel to be classified at all.
type ColorSampling struct {
	FilledRGB   [3]uint8 `json:"filled_rgb"`
	EmptyRGB    [3]uint8 `json:"empty_rgb"`
	ToleranceL1 int      `json:"tolerance_l1"`
}

// ThresholdFallback classifies bar pixels without calibration, by
// brightness or saturation.
type ThresholdFallback struct {
	Mode string  `json:"mode"`
	Min  float64 `json:"min"`
}

// Smoothing applies exponential smoothing to bar percents before emission
// and hit derivation. Alpha in (0,1]; 1 disables smoothing.
type Smoothing struct {
	Alpha float64 `json:"alpha"`
}

// HitOnDecrease derives hits from downward jumps of a tracked level.
// MinDrop is in percent fraction for bars and whole units for numbers.
type HitOnDecrease struct {
	MinDrop    float64 `json:"min_drop"`
	CooldownMS int     `json:"cooldown_ms"`
}

// Cooldown returns the hit cooldown as a duration.
func (h HitOnDecrease) Cooldown() time.Duration {
	return time.Duration(h.CooldownMS) * time.Millisecond
}

// Preprocess controls binarization before template matching.
type Preprocess struct {
	Threshold float64 `json:"threshold"`
	Scale     int     `json:"scale"`
	Invert    bool    `json:"invert"`
}

// Readout bounds accepted number reads and the stability requirement.
type Readout struct {
	Min         int `json:"min"`
	Max         int `json:"max"`
	StableReads int `json:"stable_reads"`
}

// TemplateRef points at a digit template set, either by id (resolved from
// the template store) or inline via Digits. Inline bits may be a bit string
// or an array of 0/1 per pixel.
type TemplateRef struct {
	SetID      string         `json:"template_set_id"`
	HammingMax int            `json:"hamming_max"`
	Width      int            `json:"width,omitempty"`
	Height     int            `json:"height,omitempty"`
	Digits     map[string]any `json:"digits,omitempty"`
}

// Inline reports whether the reference embeds its own digit bitmaps.
func (t *TemplateRef) Inline() bool {
	return t != nil && len(t.Digits) > 0
}

// DetectorNames lists the identity of every detector in profile order.
// Redness detectors contribute their own name; their sub-region names are
// runtime state keys, not detector identities.
func (p *Profile) DetectorNames() []string {
	names := make([]string, 0, len(p.Detectors))
	for _, d := range p.Detectors {
		names = append(names, d.Name)
	}
	return names
}
