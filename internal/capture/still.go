package capture

import (
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "github.com/chai2010/webp" // HUD screenshots are often shared as webp
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"

	apperrors "github.com/hudpulse/hudpulse/internal/errors"
)

// Still serves regions of a fixed decoded image. It backs profile dry runs
// and development hosts without a grabbable display.
type Still struct {
	img *image.NRGBA
}

// NewStill decodes the image at path into a still source.
func NewStill(path string) (*Still, error) {
	if path == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "still source needs an image path")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeCaptureUnavailable, "open still image %s", path)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeCaptureUnavailable, "decode still image %s", path)
	}
	return NewStillFromImage(img), nil
}

// NewStillFromImage wraps an already decoded image.
func NewStillFromImage(img image.Image) *Still {
	return &Still{img: imaging.Clone(img)}
}

func (s *Still) FrameSize(ctx context.Context) (int, int, error) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy(), nil
}

// CaptureRegion returns a copy, so callers may scribble on the pixels.
func (s *Still) CaptureRegion(ctx context.Context, rect image.Rectangle) (*image.NRGBA, error) {
	if rect.Empty() {
		return nil, apperrors.Newf(apperrors.CodeCaptureUnavailable, "empty capture rect %v", rect)
	}
	return imaging.Crop(s.img, rect), nil
}

func (s *Still) CaptureFrame(ctx context.Context) (image.Image, error) {
	return s.img, nil
}

func (s *Still) Close() error {
	return nil
}
