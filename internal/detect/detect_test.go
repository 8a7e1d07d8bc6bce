package detect

import (
	"image"
	"math"
	"testing"
)

// solid builds a w x h buffer of one color.
func solid(w, h int, r, g, b uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = r
		img.Pix[i+1] = g
		img.Pix[i+2] = b
		img.Pix[i+3] = 255
	}
	return img
}

func setPixel(img *image.NRGBA, x, y int, r, g, b uint8) {
	i := img.PixOffset(x, y)
	img.Pix[i] = r
	img.Pix[i+1] = g
	img.Pix[i+2] = b
	img.Pix[i+3] = 255
}

// fillCols paints columns [x0,x1) of every row.
func fillCols(img *image.NRGBA, x0, x1 int, r, g, b uint8) {
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := x0; x < x1; x++ {
			setPixel(img, x, y, r, g, b)
		}
	}
}

func TestRednessScore(t *testing.T) {
	tests := []struct {
		name string
		img  *image.NRGBA
		want float64
	}{
		{"pure red", solid(4, 4, 255, 0, 0), 1.0},
		{"neutral gray", solid(4, 4, 128, 128, 128), 0.0},
		{"white flash", solid(4, 4, 255, 255, 255), 0.0},
		{"blue dominant", solid(4, 4, 100, 0, 200), 0.0},
		{"moderate red", solid(4, 4, 200, 50, 80), float64(200-80) / 255.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RednessScore(tt.img); got != tt.want {
				t.Errorf("RednessScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRednessScoreMixed(t *testing.T) {
	// One fully red pixel and one black pixel average to 0.5.
	img := solid(2, 1, 0, 0, 0)
	setPixel(img, 0, 0, 255, 0, 0)

	if got := RednessScore(img); got != 0.5 {
		t.Errorf("RednessScore() = %v, want 0.5", got)
	}
}

func barParams() BarParams {
	return BarParams{
		FilledRGB:       [3]uint8{200, 40, 40},
		EmptyRGB:        [3]uint8{40, 40, 40},
		ToleranceL1:     120,
		ColumnFillRatio: 0.5,
	}
}

func TestBarPercentBoundary(t *testing.T) {
	// 100 columns, the first 60 filled: the first empty column is x=60,
	// so the bar reads exactly 0.60.
	img := solid(100, 10, 40, 40, 40)
	fillCols(img, 0, 60, 200, 40, 40)

	if got := BarPercent(img, barParams()); got != 0.60 {
		t.Errorf("BarPercent() = %v, want 0.60", got)
	}
}

func TestBarPercentFullAndEmpty(t *testing.T) {
	full := solid(100, 10, 200, 40, 40)
	if got := BarPercent(full, barParams()); got != 1.0 {
		t.Errorf("full bar = %v, want 1.0", got)
	}

	empty := solid(100, 10, 40, 40, 40)
	if got := BarPercent(empty, barParams()); got != 0.0 {
		t.Errorf("empty bar = %v, want 0.0", got)
	}
}

func TestBarPercentIgnoresOutOfToleranceRows(t *testing.T) {
	// A white border row is beyond tolerance from the filled reference and
	// must not disturb the column classification.
	img := solid(100, 10, 40, 40, 40)
	fillCols(img, 0, 60, 200, 40, 40)
	for x := 0; x < 100; x++ {
		setPixel(img, x, 0, 255, 255, 255)
	}

	if got := BarPercent(img, barParams()); got != 0.60 {
		t.Errorf("BarPercent() = %v, want 0.60 with border ignored", got)
	}
}

func TestBarPercentPartialColumn(t *testing.T) {
	// Column 60 has 4 of 10 rows filled, below the half-fill ratio, so it
	// is the boundary even though it is not fully empty.
	img := solid(100, 10, 40, 40, 40)
	fillCols(img, 0, 60, 200, 40, 40)
	for y := 0; y < 4; y++ {
		setPixel(img, 60, y, 200, 40, 40)
	}

	if got := BarPercent(img, barParams()); got != 0.60 {
		t.Errorf("BarPercent() = %v, want 0.60", got)
	}
}

func TestBarPercentEquidistantCountsFilled(t *testing.T) {
	p := BarParams{
		FilledRGB:       [3]uint8{100, 0, 0},
		EmptyRGB:        [3]uint8{0, 0, 0},
		ToleranceL1:     120,
		ColumnFillRatio: 0.5,
	}
	img := solid(1, 1, 50, 0, 0)

	if got := BarPercent(img, p); got != 1.0 {
		t.Errorf("BarPercent() = %v, want 1.0 for the equidistant pixel", got)
	}
}

func TestBarPercentFallbackBrightness(t *testing.T) {
	img := solid(100, 4, 30, 30, 30)
	fillCols(img, 0, 30, 220, 220, 220)

	p := FallbackParams{Mode: "brightness", Min: 0.5, ColumnFillRatio: 0.5}
	if got := BarPercentFallback(img, p); got != 0.30 {
		t.Errorf("BarPercentFallback() = %v, want 0.30", got)
	}
}

func TestBarPercentFallbackSaturation(t *testing.T) {
	// Saturated red half, then a bright but gray half: saturation mode
	// keeps reading the boundary where brightness mode would see a full bar.
	img := solid(100, 4, 180, 180, 180)
	fillCols(img, 0, 50, 200, 40, 40)

	p := FallbackParams{Mode: "saturation", Min: 0.5, ColumnFillRatio: 0.5}
	if got := BarPercentFallback(img, p); got != 0.50 {
		t.Errorf("BarPercentFallback() = %v, want 0.50", got)
	}

	// Black pixels have zero max channel and never count as filled.
	black := solid(10, 4, 0, 0, 0)
	if got := BarPercentFallback(black, p); got != 0.0 {
		t.Errorf("BarPercentFallback(black) = %v, want 0.0", got)
	}
}

func TestBinarize(t *testing.T) {
	img := solid(2, 1, 0, 0, 0)
	setPixel(img, 0, 0, 255, 255, 255)

	bm := Binarize(img, 0.5, false, 1)
	if bm.W != 2 || bm.H != 1 {
		t.Fatalf("dims = %dx%d, want 2x1", bm.W, bm.H)
	}
	if bm.Bits[0] != 1 || bm.Bits[1] != 0 {
		t.Errorf("Bits = %v, want [1 0]", bm.Bits)
	}

	inv := Binarize(img, 0.5, true, 1)
	if inv.Bits[0] != 0 || inv.Bits[1] != 1 {
		t.Errorf("inverted Bits = %v, want [0 1]", inv.Bits)
	}
}

func TestBinarizeThresholdBoundary(t *testing.T) {
	// threshold 0.5 rounds to 128: gray 128 is on, gray 127 is off.
	on := solid(1, 1, 128, 128, 128)
	off := solid(1, 1, 127, 127, 127)

	if got := Binarize(on, 0.5, false, 1).Bits[0]; got != 1 {
		t.Errorf("gray 128 = %d, want 1", got)
	}
	if got := Binarize(off, 0.5, false, 1).Bits[0]; got != 0 {
		t.Errorf("gray 127 = %d, want 0", got)
	}
}

func TestBinarizeScaleReplicates(t *testing.T) {
	img := solid(2, 1, 0, 0, 0)
	setPixel(img, 0, 0, 255, 255, 255)

	bm := Binarize(img, 0.5, false, 2)
	if bm.W != 4 || bm.H != 2 {
		t.Fatalf("dims = %dx%d, want 4x2", bm.W, bm.H)
	}
	want := []uint8{1, 1, 0, 0, 1, 1, 0, 0}
	for i, b := range want {
		if bm.Bits[i] != b {
			t.Errorf("Bits[%d] = %d, want %d", i, bm.Bits[i], b)
		}
	}
}

func TestResizeNearestFloorMapping(t *testing.T) {
	src := Bitmap{W: 4, H: 1, Bits: []uint8{1, 0, 1, 0}}

	out := ResizeNearest(src, 2, 1)
	// Floor mapping picks source columns 0 and 2.
	if out.Bits[0] != 1 || out.Bits[1] != 1 {
		t.Errorf("Bits = %v, want [1 1]", out.Bits)
	}

	up := ResizeNearest(Bitmap{W: 1, H: 1, Bits: []uint8{1}}, 3, 3)
	for i, b := range up.Bits {
		if b != 1 {
			t.Errorf("upscaled Bits[%d] = %d, want 1", i, b)
		}
	}
}

func TestSubColumns(t *testing.T) {
	src := Bitmap{W: 4, H: 2, Bits: []uint8{
		0, 1, 1, 0,
		1, 0, 0, 1,
	}}

	out := src.SubColumns(1, 3)
	want := []uint8{1, 1, 0, 0}
	if out.W != 2 || out.H != 2 {
		t.Fatalf("dims = %dx%d, want 2x2", out.W, out.H)
	}
	for i, b := range want {
		if out.Bits[i] != b {
			t.Errorf("Bits[%d] = %d, want %d", i, out.Bits[i], b)
		}
	}
}

func TestHamming(t *testing.T) {
	a := Bitmap{W: 2, H: 2, Bits: []uint8{1, 0, 0, 1}}
	b := Bitmap{W: 2, H: 2, Bits: []uint8{1, 0, 0, 1}}
	c := Bitmap{W: 2, H: 2, Bits: []uint8{1, 1, 0, 1}}
	d := Bitmap{W: 4, H: 1, Bits: []uint8{1, 0, 0, 1}}

	if got := Hamming(a, b); got != 0 {
		t.Errorf("Hamming(a, a) = %d, want 0", got)
	}
	if got := Hamming(a, c); got != 1 {
		t.Errorf("Hamming(a, c) = %d, want 1", got)
	}
	if got := Hamming(a, d); got != math.MaxInt {
		t.Errorf("Hamming dimension mismatch = %d, want MaxInt", got)
	}
}

// testFont is a 3x5 glyph per digit, rows top to bottom.
var testFont = map[int][5]string{
	0: {"111", "101", "101", "101", "111"},
	1: {"010", "110", "010", "010", "111"},
	2: {"111", "001", "111", "100", "111"},
	3: {"111", "001", "111", "001", "111"},
	4: {"101", "101", "111", "001", "001"},
	5: {"111", "100", "111", "001", "111"},
	6: {"111", "100", "111", "101", "111"},
	7: {"111", "001", "010", "010", "010"},
	8: {"111", "101", "111", "101", "111"},
	9: {"111", "101", "111", "001", "111"},
}

func testDigitSet() DigitSet {
	set := DigitSet{W: 3, H: 5}
	for d, rows := range testFont {
		bits := make([]uint8, 0, 15)
		for _, row := range rows {
			for _, ch := range row {
				if ch == '1' {
					bits = append(bits, 1)
				} else {
					bits = append(bits, 0)
				}
			}
		}
		set.Glyphs[d] = Bitmap{W: 3, H: 5, Bits: bits}
	}
	return set
}

// renderDigits draws the glyphs for a digit string as white-on-black, one
// 3x5 cell per digit.
func renderDigits(t *testing.T, s string) *image.NRGBA {
	t.Helper()
	img := solid(3*len(s), 5, 0, 0, 0)
	for i, ch := range s {
		rows, ok := testFont[int(ch-'0')]
		if !ok {
			t.Fatalf("no glyph for %q", ch)
		}
		for y, row := range rows {
			for x, bit := range row {
				if bit == '1' {
					setPixel(img, i*3+x, y, 255, 255, 255)
				}
			}
		}
	}
	return img
}

func numberParams() NumberParams {
	return NumberParams{
		Digits:     3,
		Threshold:  0.5,
		Scale:      1,
		HammingMax: 0,
		Min:        0,
		Max:        999,
		Templates:  testDigitSet(),
	}
}

func TestReadNumber(t *testing.T) {
	img := renderDigits(t, "042")

	got, ok := ReadNumber(img, numberParams())
	if !ok {
		t.Fatal("ReadNumber() rejected a clean render")
	}
	if got != 42 {
		t.Errorf("ReadNumber() = %d, want 42", got)
	}
}

func TestReadNumberRejectsCorruptCell(t *testing.T) {
	// Whiting out the middle cell leaves no glyph within the Hamming
	// budget, which must reject the entire read, not just one digit.
	img := renderDigits(t, "042")
	fillCols(img, 3, 6, 255, 255, 255)

	p := numberParams()
	p.HammingMax = 1
	if _, ok := ReadNumber(img, p); ok {
		t.Error("ReadNumber() accepted a read with an unmatchable cell")
	}
}

func TestReadNumberHammingTolerance(t *testing.T) {
	img := renderDigits(t, "042")
	// Flip one blank pixel of the '4' cell. Distance 1 to the true glyph,
	// farther from every other, so a budget of 2 still reads 42.
	setPixel(img, 4, 0, 255, 255, 255)

	p := numberParams()
	p.HammingMax = 2
	got, ok := ReadNumber(img, p)
	if !ok || got != 42 {
		t.Errorf("ReadNumber() = %d, %v; want 42 within tolerance", got, ok)
	}

	p.HammingMax = 0
	if _, ok := ReadNumber(img, p); ok {
		t.Error("ReadNumber() accepted a noisy cell with a zero budget")
	}
}

func TestReadNumberRangeCheck(t *testing.T) {
	img := renderDigits(t, "042")

	p := numberParams()
	p.Min = 100
	if _, ok := ReadNumber(img, p); ok {
		t.Error("ReadNumber() accepted a value below readout min")
	}

	p = numberParams()
	p.Max = 41
	if _, ok := ReadNumber(img, p); ok {
		t.Error("ReadNumber() accepted a value above readout max")
	}
}

func TestReadNumberScaledInput(t *testing.T) {
	// Doubling via preprocess scale and resizing back to template
	// dimensions is lossless for a replicated bitmap.
	img := renderDigits(t, "042")

	p := numberParams()
	p.Scale = 2
	got, ok := ReadNumber(img, p)
	if !ok || got != 42 {
		t.Errorf("ReadNumber(scale 2) = %d, %v; want 42", got, ok)
	}
}
