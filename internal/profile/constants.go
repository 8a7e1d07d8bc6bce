// Package profile defines the declarative watch profile: capture settings,
// detector configurations, and the normalized screen regions they observe.
package profile

// Capture source kinds
const (
	SourceMonitor = "monitor"
	SourceStill   = "still"
)

// Defaults applied while normalizing a parsed profile
const (
	DefaultProfileName   = "Unnamed Profile"
	DefaultCaptureSource = SourceMonitor
	DefaultMonitorIndex  = 1
	DefaultTickMS        = 50
)

// Redness detector defaults
const (
	DefaultRednessName       = "redness_rois"
	DefaultRednessMinScore   = 0.35
	DefaultRednessCooldownMS = 200
)

// Health-bar detector defaults and bounds
const (
	DefaultBarName         = "health_bar"
	DefaultBarOrientation  = "horizontal"
	DefaultBarToleranceL1  = 120
	DefaultBarMinDrop      = 0.02
	DefaultBarCooldownMS   = 150
	DefaultFallbackMode    = "brightness"
	DefaultFallbackMin     = 0.5
	MaxToleranceL1         = 765
	DefaultColumnFillRatio = 0.5
)

// Health-number detector defaults
const (
	DefaultNumberName       = "health_number"
	DefaultNumberDigits     = 3
	DefaultNumberThreshold  = 0.6
	DefaultNumberScale      = 1
	DefaultReadoutMin       = 0
	DefaultReadoutMax       = 999
	DefaultStableReads      = 1
	DefaultNumberMinDrop    = 1
	DefaultNumberCooldownMS = 150
	DefaultTemplateSetID    = "learned_v1"
	DefaultTemplateHamming  = 120
)
