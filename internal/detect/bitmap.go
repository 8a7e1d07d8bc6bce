package detect

import (
	"image"
	"math"
)

// Bitmap is a 1-bit image stored one byte per pixel, row-major. The digit
// templates and every intermediate OCR buffer use this form.
type Bitmap struct {
	W, H int
	Bits []uint8
}

// Integer luma weights, summing to the divisor.
const (
	lumaR   = 299
	lumaG   = 587
	lumaB   = 114
	lumaDiv = 1000
)

// Binarize thresholds a buffer into a Bitmap. Each pixel's integer luma is
// compared against round(threshold*255); invert flips the result. scale
// replicates each source pixel into a scale x scale block, which gives the
// template matcher more area to vote over for small glyphs.
func Binarize(img *image.NRGBA, threshold float64, invert bool, scale int) Bitmap {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if scale < 1 {
		scale = 1
	}
	thr := int(math.Round(threshold * 255))

	out := Bitmap{W: w * scale, H: h * scale}
	out.Bits = make([]uint8, out.W*out.H)

	for y := 0; y < h; y++ {
		i := img.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < w; x++ {
			r := int(img.Pix[i])
			g := int(img.Pix[i+1])
			bl := int(img.Pix[i+2])
			gray := (lumaR*r + lumaG*g + lumaB*bl) / lumaDiv

			var bit uint8
			if gray >= thr {
				bit = 1
			}
			if invert {
				bit ^= 1
			}

			for dy := 0; dy < scale; dy++ {
				row := (y*scale+dy)*out.W + x*scale
				for dx := 0; dx < scale; dx++ {
					out.Bits[row+dx] = bit
				}
			}
			i += 4
		}
	}
	return out
}

// ResizeNearest resamples a bitmap to w x h with floor source mapping.
// Templates are matched at their own dimensions, so every cell passes
// through here before Hamming comparison.
func ResizeNearest(b Bitmap, w, h int) Bitmap {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	if b.W == w && b.H == h {
		return b
	}

	out := Bitmap{W: w, H: h, Bits: make([]uint8, w*h)}
	for y := 0; y < h; y++ {
		sy := y * b.H / h
		row := sy * b.W
		for x := 0; x < w; x++ {
			out.Bits[y*w+x] = b.Bits[row+x*b.W/w]
		}
	}
	return out
}

// SubColumns returns the vertical slice [x0,x1) of all rows.
func (b Bitmap) SubColumns(x0, x1 int) Bitmap {
	w := x1 - x0
	out := Bitmap{W: w, H: b.H, Bits: make([]uint8, w*b.H)}
	for y := 0; y < b.H; y++ {
		copy(out.Bits[y*w:(y+1)*w], b.Bits[y*b.W+x0:y*b.W+x1])
	}
	return out
}

// Hamming counts mismatched bits between two equally sized bitmaps.
// Dimension mismatch returns MaxInt so it can never win a match.
func Hamming(a, b Bitmap) int {
	if a.W != b.W || a.H != b.H {
		return math.MaxInt
	}
	dist := 0
	for i := range a.Bits {
		if a.Bits[i] != b.Bits[i] {
			dist++
		}
	}
	return dist
}
