// Package capture provides platform-agnostic access to monitor pixels.
// A Source hands out the active frame size and rectangular pixel regions;
// the monitor implementation shells out to the native screenshot tool of
// the host platform, the still implementation serves a fixed image for
// profile testing and development off-target.
package capture

import (
	"context"
	"image"
	"time"

	apperrors "github.com/hudpulse/hudpulse/internal/errors"
	"github.com/hudpulse/hudpulse/internal/profile"
)

// FrameSizeTTL bounds how long a cached monitor resolution is trusted.
// Resolution changes (fullscreen toggles, display switches) are picked up
// on the first tick after expiry.
const FrameSizeTTL = 2 * time.Second

// Source yields frames and regions from one capture target. Implementations
// are safe for use from a single watch loop; Close releases any temp files
// or cached state.
type Source interface {
	// FrameSize returns the current frame width and height in pixels.
	FrameSize(ctx context.Context) (int, int, error)
	// CaptureRegion grabs the given pixel rectangle from the frame.
	CaptureRegion(ctx context.Context, rect image.Rectangle) (*image.NRGBA, error)
	// CaptureFrame grabs the whole frame.
	CaptureFrame(ctx context.Context) (image.Image, error)
	Close() error
}

// Options selects and parameterizes a capture source.
type Options struct {
	Source       string        // profile.SourceMonitor or profile.SourceStill
	MonitorIndex int           // 1-based display index for monitor capture
	StillPath    string        // image file served by the still source
	Timeout      time.Duration // per-grab ceiling, 0 means none
}

// Open builds the capture source the options describe. Monitor sources
// verify the platform screenshot tool up front so a watch fails at start
// rather than on its first tick.
func Open(opts Options) (Source, error) {
	switch opts.Source {
	case "", profile.SourceMonitor:
		return newMonitor(opts)
	case profile.SourceStill:
		return NewStill(opts.StillPath)
	default:
		return nil, apperrors.Newf(apperrors.CodeProfileInvalid, "unknown capture source %q", opts.Source)
	}
}
