package detect

import "image"

// RednessScore returns the mean red excess of a buffer in [0,1]. A pixel
// contributes only when its red channel exceeds both green and blue; the
// contribution is the excess over the larger of the two, normalized to
// [0,1]. Neutral grays and white score zero no matter how bright, so a
// flashbang does not read as damage.
func RednessScore(img *image.NRGBA) float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return 0
	}

	var total float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := img.PixOffset(b.Min.X, y)
		for x := 0; x < w; x++ {
			r := img.Pix[i]
			g := img.Pix[i+1]
			bl := img.Pix[i+2]
			mx := g
			if bl > mx {
				mx = bl
			}
			if r > mx {
				total += float64(r-mx) / 255.0
			}
			i += 4
		}
	}

	return clamp01(total / float64(w*h))
}
