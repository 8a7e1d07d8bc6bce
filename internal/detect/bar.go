package detect

import "image"

// BarParams classifies bar pixels against calibrated reference colors.
type BarParams struct {
	FilledRGB   [3]uint8
	EmptyRGB    [3]uint8
	ToleranceL1 int
	// ColumnFillRatio is the fraction of a column's pixels that must be
	// filled for the column to count as filled.
	ColumnFillRatio float64
}

// FallbackParams classifies bar pixels without calibration. Mode is
// "brightness" (max channel against Min) or "saturation" ((max-min)/max
// against Min).
type FallbackParams struct {
	Mode            string
	Min             float64
	ColumnFillRatio float64
}

// BarPercent scans a horizontal bar left to right and returns the filled
// fraction in [0,1]. A pixel within ToleranceL1 of the filled reference is
// classified filled or empty by whichever reference is closer; pixels
// beyond the tolerance are ignored, which keeps borders and glyph overlays
// from breaking the column counts. The first column that fails the fill
// ratio marks the boundary.
func BarPercent(img *image.NRGBA, p BarParams) float64 {
	return scanColumns(img, p.ColumnFillRatio, func(r, g, b uint8) (counted, filled bool) {
		df := l1(r, g, b, p.FilledRGB)
		if df > p.ToleranceL1 {
			return false, false
		}
		de := l1(r, g, b, p.EmptyRGB)
		return true, df <= de
	})
}

// BarPercentFallback scans like BarPercent but classifies each pixel by
// brightness or saturation. Used when the profile carries no calibrated
// color sampling.
func BarPercentFallback(img *image.NRGBA, p FallbackParams) float64 {
	saturation := p.Mode == "saturation"
	return scanColumns(img, p.ColumnFillRatio, func(r, g, b uint8) (counted, filled bool) {
		mx := maxChannel(r, g, b)
		if saturation {
			if mx == 0 {
				return true, false
			}
			mn := minChannel(r, g, b)
			return true, float64(mx-mn)/float64(mx) >= p.Min
		}
		return true, float64(mx)/255.0 >= p.Min
	})
}

// scanColumns walks columns left to right counting filled pixels per the
// classifier. The boundary is the first column whose filled count falls
// below the fill ratio; its x position over the width is the percent. A
// bar with no such column is full.
func scanColumns(img *image.NRGBA, fillRatio float64, classify func(r, g, b uint8) (counted, filled bool)) float64 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return 0
	}

	colMin := int(fillRatio * float64(h))
	if colMin < 1 {
		colMin = 1
	}

	for x := 0; x < w; x++ {
		filled := 0
		for y := 0; y < h; y++ {
			i := img.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)
			if counted, f := classify(img.Pix[i], img.Pix[i+1], img.Pix[i+2]); counted && f {
				filled++
			}
		}
		if filled < colMin {
			return clamp01(float64(x) / float64(w))
		}
	}
	return 1.0
}

func maxChannel(r, g, b uint8) uint8 {
	mx := r
	if g > mx {
		mx = g
	}
	if b > mx {
		mx = b
	}
	return mx
}

func minChannel(r, g, b uint8) uint8 {
	mn := r
	if g < mn {
		mn = g
	}
	if b < mn {
		mn = b
	}
	return mn
}
