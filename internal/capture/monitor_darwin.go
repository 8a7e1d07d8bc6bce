//go:build darwin

package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	apperrors "github.com/hudpulse/hudpulse/internal/errors"
)

type darwinBackend struct {
	tempDir string
	display int
}

// newMonitor shells out to the native screencapture tool. The display
// flag is 1-based, matching the profile's monitor_index.
func newMonitor(opts Options) (Source, error) {
	if _, err := exec.LookPath("screencapture"); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCaptureUnavailable, "screencapture not found")
	}
	display := opts.MonitorIndex
	if display < 1 {
		display = 1
	}
	b := &darwinBackend{tempDir: tempGrabDir(), display: display}
	return newMonitorSource(b, opts.Timeout), nil
}

func (d *darwinBackend) grabFrame(ctx context.Context) ([]byte, error) {
	return d.run(ctx)
}

func (d *darwinBackend) grabRegion(ctx context.Context, rect image.Rectangle) ([]byte, error) {
	region := fmt.Sprintf("%d,%d,%d,%d", rect.Min.X, rect.Min.Y, rect.Dx(), rect.Dy())
	return d.run(ctx, "-R", region)
}

func (d *darwinBackend) run(ctx context.Context, extra ...string) ([]byte, error) {
	tmpFile := filepath.Join(d.tempDir, "grab.png")
	args := []string{"-x", "-t", "png", "-D", strconv.Itoa(d.display)}
	args = append(args, extra...)
	args = append(args, tmpFile)

	cmd := exec.CommandContext(ctx, "screencapture", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("screencapture: %w (%s)", err, stderr.String())
	}

	data, err := os.ReadFile(tmpFile)
	if err != nil {
		return nil, fmt.Errorf("read screenshot: %w", err)
	}
	os.Remove(tmpFile)
	return data, nil
}

func (d *darwinBackend) cleanup() {
	if d.tempDir != "" {
		os.RemoveAll(d.tempDir)
	}
}
