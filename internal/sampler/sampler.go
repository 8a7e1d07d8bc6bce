// Package sampler turns normalized profile regions into pixel grabs.
// Regions are re-projected against the live frame size on every call, so
// a resolution change mid-watch lands on the next tick without restart.
package sampler

import (
	"context"
	"image"

	"github.com/hudpulse/hudpulse/internal/capture"
	apperrors "github.com/hudpulse/hudpulse/internal/errors"
	"github.com/hudpulse/hudpulse/internal/profile"
)

// Sample grabs one region, querying the source for the current frame size
// first. Single-shot paths such as profile testing use this form.
func Sample(ctx context.Context, src capture.Source, region profile.Region) (*image.NRGBA, image.Rectangle, error) {
	fw, fh, err := src.FrameSize(ctx)
	if err != nil {
		return nil, image.Rectangle{}, apperrors.Wrap(err, apperrors.CodeCaptureUnavailable, "frame size")
	}
	return SampleAt(ctx, src, region, fw, fh)
}

// SampleAt grabs one region against an already known frame size. The watch
// loop resolves the size once per tick and fans it out to every detector.
func SampleAt(ctx context.Context, src capture.Source, region profile.Region, frameW, frameH int) (*image.NRGBA, image.Rectangle, error) {
	rect := region.ToPixels(frameW, frameH)

	img, err := src.CaptureRegion(ctx, rect)
	if err != nil {
		return nil, rect, err
	}
	if img == nil || img.Bounds().Empty() {
		return nil, rect, apperrors.Newf(apperrors.CodeCaptureUnavailable, "empty grab for rect %v", rect)
	}
	return img, rect, nil
}
