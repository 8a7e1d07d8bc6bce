package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png" // screenshot tools emit PNG
	"log/slog"
	"os"
	"time"

	"github.com/disintegration/imaging"

	apperrors "github.com/hudpulse/hudpulse/internal/errors"
	"github.com/hudpulse/hudpulse/internal/resilience"
	"github.com/hudpulse/hudpulse/internal/syncx"
)

// backend implements the platform-specific screenshot commands.
type backend interface {
	grabFrame(ctx context.Context) ([]byte, error)
	grabRegion(ctx context.Context, rect image.Rectangle) ([]byte, error)
	cleanup()
}

type frameDims struct {
	w, h int
	at   time.Time
}

// monitorSource decodes backend screenshots and caches the frame size.
// The grab path runs behind a circuit breaker so a wedged screenshot tool
// fails fast instead of stalling every tick.
type monitorSource struct {
	backend backend
	breaker *resilience.Breaker
	dims    *syncx.RWGuard[frameDims]
	timeout time.Duration
}

func newMonitorSource(b backend, timeout time.Duration) *monitorSource {
	return &monitorSource{
		backend: b,
		breaker: resilience.New(resilience.CaptureConfig()),
		dims:    syncx.NewGuard(frameDims{}),
		timeout: timeout,
	}
}

func (m *monitorSource) FrameSize(ctx context.Context) (int, int, error) {
	if d := m.dims.Get(); d.w > 0 && time.Since(d.at) < FrameSizeTTL {
		return d.w, d.h, nil
	}

	img, err := m.CaptureFrame(ctx)
	if err != nil {
		return 0, 0, err
	}
	b := img.Bounds()
	m.dims.Set(frameDims{w: b.Dx(), h: b.Dy(), at: time.Now()})
	return b.Dx(), b.Dy(), nil
}

func (m *monitorSource) CaptureRegion(ctx context.Context, rect image.Rectangle) (*image.NRGBA, error) {
	if rect.Empty() {
		return nil, apperrors.Newf(apperrors.CodeCaptureUnavailable, "empty capture rect %v", rect)
	}

	img, err := m.grab(ctx, func(ctx context.Context) ([]byte, error) {
		return m.backend.grabRegion(ctx, rect)
	})
	if err != nil {
		return nil, err
	}
	return imaging.Clone(img), nil
}

func (m *monitorSource) CaptureFrame(ctx context.Context) (image.Image, error) {
	return m.grab(ctx, m.backend.grabFrame)
}

func (m *monitorSource) grab(ctx context.Context, fn func(context.Context) ([]byte, error)) (image.Image, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	img, err := resilience.ExecuteWithResult(m.breaker, func() (image.Image, error) {
		data, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode screenshot: %w", err)
		}
		return img, nil
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCaptureUnavailable, "screen grab failed")
	}
	return img, nil
}

func (m *monitorSource) Close() error {
	m.backend.cleanup()
	return nil
}

func tempGrabDir() string {
	dir, err := os.MkdirTemp("", "hudpulse-grab-*")
	if err != nil {
		slog.Error("failed to create temp dir for screenshots", "error", err)
		return os.TempDir()
	}
	return dir
}
