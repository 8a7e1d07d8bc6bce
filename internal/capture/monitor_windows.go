//go:build windows

package capture

import (
	apperrors "github.com/hudpulse/hudpulse/internal/errors"
)

// newMonitor has no Windows backend yet. Watches on Windows hosts can
// still run against a still source.
func newMonitor(opts Options) (Source, error) {
	return nil, apperrors.New(apperrors.CodeCaptureUnavailable, "monitor capture not supported on windows")
}
