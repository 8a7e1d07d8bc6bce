// Package detect implements the pixel-level detection algorithms: redness
// scoring, health-bar boundary scanning, and digit template matching. All
// functions are pure and deterministic; given the same buffer and
// parameters they return the same result, which keeps them testable with
// synthetic images.
package detect

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// l1 is the Manhattan distance between a pixel and a reference color.
func l1(r, g, b uint8, ref [3]uint8) int {
	d := absInt(int(r) - int(ref[0]))
	d += absInt(int(g) - int(ref[1]))
	d += absInt(int(b) - int(ref[2]))
	return d
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
