//go:build linux

package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	apperrors "github.com/hudpulse/hudpulse/internal/errors"
)

type linuxBackend struct {
	tempDir string
	tool    string // maim or scrot
}

// newMonitor prefers maim for its exact region geometry, falling back to
// scrot. Both grab the X root window, so monitor_index past the first
// display is served by the combined desktop frame.
func newMonitor(opts Options) (Source, error) {
	var tool string
	switch {
	case lookPathOK("maim"):
		tool = "maim"
	case lookPathOK("scrot"):
		tool = "scrot"
	default:
		return nil, apperrors.New(apperrors.CodeCaptureUnavailable, "no screenshot tool found (install maim or scrot)")
	}
	if opts.MonitorIndex > 1 {
		slog.Warn("monitor_index beyond first display maps to the combined desktop", "monitor_index", opts.MonitorIndex, "tool", tool)
	}
	b := &linuxBackend{tempDir: tempGrabDir(), tool: tool}
	return newMonitorSource(b, opts.Timeout), nil
}

func lookPathOK(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func (l *linuxBackend) grabFrame(ctx context.Context) ([]byte, error) {
	if l.tool == "maim" {
		return l.run(ctx, "maim")
	}
	return l.run(ctx, "scrot", "-o")
}

func (l *linuxBackend) grabRegion(ctx context.Context, rect image.Rectangle) ([]byte, error) {
	if l.tool == "maim" {
		geom := fmt.Sprintf("%dx%d+%d+%d", rect.Dx(), rect.Dy(), rect.Min.X, rect.Min.Y)
		return l.run(ctx, "maim", "-g", geom)
	}
	area := fmt.Sprintf("%d,%d,%d,%d", rect.Min.X, rect.Min.Y, rect.Dx(), rect.Dy())
	return l.run(ctx, "scrot", "-o", "-a", area)
}

func (l *linuxBackend) run(ctx context.Context, tool string, extra ...string) ([]byte, error) {
	tmpFile := filepath.Join(l.tempDir, "grab.png")
	args := append(extra, tmpFile)

	cmd := exec.CommandContext(ctx, tool, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w (%s)", tool, err, stderr.String())
	}

	data, err := os.ReadFile(tmpFile)
	if err != nil {
		return nil, fmt.Errorf("read screenshot: %w", err)
	}
	os.Remove(tmpFile)
	return data, nil
}

func (l *linuxBackend) cleanup() {
	if l.tempDir != "" {
		os.RemoveAll(l.tempDir)
	}
}
