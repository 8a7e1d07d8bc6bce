package engine

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/hudpulse/hudpulse/internal/capture"
	"github.com/hudpulse/hudpulse/internal/debugcrop"
	"github.com/hudpulse/hudpulse/internal/detect"
	apperrors "github.com/hudpulse/hudpulse/internal/errors"
	"github.com/hudpulse/hudpulse/internal/profile"
	"github.com/hudpulse/hudpulse/internal/sampler"
)

// Rect is a pixel rectangle in report form.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// TestSample describes one sampled region of a profile test pass.
type TestSample struct {
	Detector  string   `json:"detector"`
	Kind      string   `json:"kind"`
	Region    string   `json:"region,omitempty"`
	Rect      Rect     `json:"rect"`
	CaptureMS float64  `json:"capture_ms"`
	EvalMS    float64  `json:"eval_ms"`
	Score     *float64 `json:"score,omitempty"`
	Percent   *float64 `json:"percent,omitempty"`
	Value     *int     `json:"value,omitempty"`
	Rejected  bool     `json:"rejected,omitempty"`
	Crop      string   `json:"crop,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// TestReport is the JSON-serializable result of a TestProfile pass.
type TestReport struct {
	Profile string       `json:"profile"`
	FrameW  int          `json:"frame_w"`
	FrameH  int          `json:"frame_h"`
	Samples []TestSample `json:"samples"`
	Errors  []string     `json:"errors,omitempty"`
}

// TestProfile runs one synchronous detector pass over a single captured
// frame without touching the running watch: every region is cropped from
// the same frame, measured, and reported with its pixel rect and
// timings. With a non-empty outputDir each crop is also saved for
// calibration.
func (w *Watcher) TestProfile(ctx context.Context, profileJSON []byte, outputDir string) (*TestReport, error) {
	p, err := profile.Parse(profileJSON)
	if err != nil {
		return nil, err
	}

	src, err := w.openSource(w.captureOptions(p))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCaptureUnavailable, "open capture source")
	}
	defer src.Close()

	frame, err := src.CaptureFrame(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCaptureUnavailable, "capture test frame")
	}
	still := capture.NewStillFromImage(frame)
	frameW, frameH, _ := still.FrameSize(ctx)

	var saver *debugcrop.Saver
	if outputDir != "" {
		saver = debugcrop.NewSaver(outputDir)
	}

	report := &TestReport{Profile: p.Name, FrameW: frameW, FrameH: frameH}
	for i := range p.Detectors {
		d := &p.Detectors[i]
		switch d.Type {
		case profile.KindRedness:
			for j := range d.ROIs {
				sub := &d.ROIs[j]
				smp, img := sampleForReport(ctx, still, *sub.Rect, frameW, frameH)
				smp.Detector = d.Name
				smp.Kind = string(d.Type)
				smp.Region = sub.Name
				if img != nil {
					t0 := time.Now()
					score := detect.RednessScore(img)
					smp.EvalMS = msSince(t0)
					smp.Score = &score
					smp.Crop = saveReportCrop(saver, "redness", sub.Name, img)
				}
				report.Samples = append(report.Samples, smp)
			}

		case profile.KindHealthBar:
			smp, img := sampleForReport(ctx, still, *d.ROI, frameW, frameH)
			smp.Detector = d.Name
			smp.Kind = string(d.Type)
			if img != nil {
				t0 := time.Now()
				percent := measureBar(d, img)
				smp.EvalMS = msSince(t0)
				smp.Percent = &percent
				smp.Crop = saveReportCrop(saver, "health_bar", d.Name, img)
			}
			report.Samples = append(report.Samples, smp)

		case profile.KindHealthNumber:
			set, err := w.store.ResolveRef(d.Templates)
			if err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("detectors[%d]: %v", i, err))
				continue
			}
			smp, img := sampleForReport(ctx, still, *d.ROI, frameW, frameH)
			smp.Detector = d.Name
			smp.Kind = string(d.Type)
			if img != nil {
				t0 := time.Now()
				value, ok := detect.ReadNumber(img, numberParams(d, set.Glyphs))
				smp.EvalMS = msSince(t0)
				if ok {
					smp.Value = &value
				} else {
					smp.Rejected = true
				}
				smp.Crop = saveReportCrop(saver, "health_number", d.Name, img)
			}
			report.Samples = append(report.Samples, smp)
		}
	}
	return report, nil
}

func sampleForReport(ctx context.Context, src capture.Source, region profile.Region, frameW, frameH int) (TestSample, *image.NRGBA) {
	t0 := time.Now()
	img, rect, err := sampler.SampleAt(ctx, src, region, frameW, frameH)
	smp := TestSample{
		Rect:      Rect{X: rect.Min.X, Y: rect.Min.Y, W: rect.Dx(), H: rect.Dy()},
		CaptureMS: msSince(t0),
	}
	if err != nil {
		smp.Error = err.Error()
		return smp, nil
	}
	return smp, img
}

func saveReportCrop(saver *debugcrop.Saver, kind, name string, img *image.NRGBA) string {
	path, saved := saver.SaveOnce(kind, name, img)
	if !saved {
		return ""
	}
	return path
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}
