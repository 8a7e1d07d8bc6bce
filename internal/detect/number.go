package detect

import (
	"image"
	"math"
)

// DigitSet holds the ten glyph templates of one template set, all at the
// same dimensions.
type DigitSet struct {
	W, H   int
	Glyphs [10]Bitmap
}

// NumberParams drives one template-OCR read.
type NumberParams struct {
	Digits     int
	Threshold  float64
	Scale      int
	Invert     bool
	HammingMax int
	Min, Max   int
	Templates  DigitSet
}

// ReadNumber binarizes a buffer, splits it into equal-width digit cells,
// and matches each cell against the glyph templates by minimum Hamming
// distance, scanning digits ascending so ties resolve deterministically.
// The whole read is rejected when any cell's best distance exceeds
// HammingMax or the assembled value falls outside [Min,Max]. A rejected
// read is a non-event: the caller keeps its previous state.
func ReadNumber(img *image.NRGBA, p NumberParams) (int, bool) {
	if p.Digits < 1 || p.Templates.W < 1 || p.Templates.H < 1 {
		return 0, false
	}

	bm := Binarize(img, p.Threshold, p.Invert, p.Scale)
	if bm.W < 1 || bm.H < 1 {
		return 0, false
	}

	value := 0
	for i := 0; i < p.Digits; i++ {
		x0 := int(math.Round(float64(i) * float64(bm.W) / float64(p.Digits)))
		x1 := int(math.Round(float64(i+1) * float64(bm.W) / float64(p.Digits)))
		if x0 > bm.W-1 {
			x0 = bm.W - 1
		}
		if x1 > bm.W {
			x1 = bm.W
		}
		if x1 <= x0 {
			x1 = x0 + 1
		}

		cell := ResizeNearest(bm.SubColumns(x0, x1), p.Templates.W, p.Templates.H)

		bestDigit, bestDist := -1, math.MaxInt
		for d := 0; d < 10; d++ {
			if dist := Hamming(cell, p.Templates.Glyphs[d]); dist < bestDist {
				bestDigit, bestDist = d, dist
			}
		}
		if bestDigit < 0 || bestDist > p.HammingMax {
			return 0, false
		}
		value = value*10 + bestDigit
	}

	if value < p.Min || value > p.Max {
		return 0, false
	}
	return value, true
}
