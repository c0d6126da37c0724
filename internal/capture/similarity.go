package capture

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

const (
	// compareWidth is the width frames are downscaled to before comparison.
	compareWidth = 480
	ssimWindow   = 7
)

var (
	ssimC1 = math.Pow(0.01*255, 2)
	ssimC2 = math.Pow(0.03*255, 2)
)

// Gray downscales img to compareWidth (keeping aspect ratio) and converts it to
// 8-bit grayscale.
func Gray(img image.Image) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > compareWidth {
		h = int(math.Max(1, math.Round(float64(h)*compareWidth/float64(w))))
		w = compareWidth
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	if w == b.Dx() {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		return dst
	}
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// SSIM returns the mean structural similarity of two grayscale frames over
// sliding 7x7 windows. Frames of different size score 0.
func SSIM(a, b *image.Gray) float64 {
	w, h := a.Rect.Dx(), a.Rect.Dy()
	if w != b.Rect.Dx() || h != b.Rect.Dy() {
		return 0
	}
	if w < ssimWindow || h < ssimWindow {
		if equalGray(a, b) {
			return 1
		}
		return 0
	}

	// Summed-area tables of x, y, x², y² and xy, one row and column of padding.
	stride := w + 1
	sx := make([]float64, stride*(h+1))
	sy := make([]float64, len(sx))
	sxx := make([]float64, len(sx))
	syy := make([]float64, len(sx))
	sxy := make([]float64, len(sx))

	for y := 0; y < h; y++ {
		var rx, ry, rxx, ryy, rxy float64
		for x := 0; x < w; x++ {
			px := float64(a.Pix[a.PixOffset(a.Rect.Min.X+x, a.Rect.Min.Y+y)])
			py := float64(b.Pix[b.PixOffset(b.Rect.Min.X+x, b.Rect.Min.Y+y)])
			rx += px
			ry += py
			rxx += px * px
			ryy += py * py
			rxy += px * py

			i := (y+1)*stride + x + 1
			up := y*stride + x + 1
			sx[i] = sx[up] + rx
			sy[i] = sy[up] + ry
			sxx[i] = sxx[up] + rxx
			syy[i] = syy[up] + ryy
			sxy[i] = sxy[up] + rxy
		}
	}

	box := func(t []float64, x0, y0 int) float64 {
		x1, y1 := x0+ssimWindow, y0+ssimWindow
		return t[y1*stride+x1] - t[y0*stride+x1] - t[y1*stride+x0] + t[y0*stride+x0]
	}

	n := float64(ssimWindow * ssimWindow)
	covNorm := n / (n - 1)
	var total float64
	var count int
	for y := 0; y+ssimWindow <= h; y++ {
		for x := 0; x+ssimWindow <= w; x++ {
			mx := box(sx, x, y) / n
			my := box(sy, x, y) / n
			vx := covNorm * (box(sxx, x, y)/n - mx*mx)
			vy := covNorm * (box(syy, x, y)/n - my*my)
			cxy := covNorm * (box(sxy, x, y)/n - mx*my)

			num := (2*mx*my + ssimC1) * (2*cxy + ssimC2)
			den := (mx*mx + my*my + ssimC1) * (vx + vy + ssimC2)
			total += num / den
			count++
		}
	}
	return total / float64(count)
}

// HistogramCorrelation returns the Pearson correlation of the 256-bin intensity
// histograms of two frames, in [-1, 1].
func HistogramCorrelation(a, b *image.Gray) float64 {
	ha, hb := histogram(a), histogram(b)

	var ma, mb float64
	for i := range ha {
		ma += ha[i]
		mb += hb[i]
	}
	ma /= float64(len(ha))
	mb /= float64(len(hb))

	var num, da, db float64
	for i := range ha {
		xa, xb := ha[i]-ma, hb[i]-mb
		num += xa * xb
		da += xa * xa
		db += xb * xb
	}
	if da == 0 || db == 0 {
		if ha == hb {
			return 1
		}
		return 0
	}
	return num / math.Sqrt(da*db)
}

func histogram(g *image.Gray) [256]float64 {
	var h [256]float64
	for y := g.Rect.Min.Y; y < g.Rect.Max.Y; y++ {
		row := g.Pix[g.PixOffset(g.Rect.Min.X, y):g.PixOffset(g.Rect.Max.X, y)]
		for _, p := range row {
			h[p]++
		}
	}
	return h
}

func equalGray(a, b *image.Gray) bool {
	for y := 0; y < a.Rect.Dy(); y++ {
		for x := 0; x < a.Rect.Dx(); x++ {
			if a.GrayAt(a.Rect.Min.X+x, a.Rect.Min.Y+y) != b.GrayAt(b.Rect.Min.X+x, b.Rect.Min.Y+y) {
				return false
			}
		}
	}
	return true
}
