package raster

import (
	"image"
	"math"

	"texswap/pkg/colorutil"
)

// Plane is a single-channel float image.
type Plane struct {
	Width  int
	Height int
	Pix    []float64
}

// NewPlane allocates a zero plane.
func NewPlane(width, height int) Plane {
	return Plane{Width: width, Height: height, Pix: make([]float64, width*height)}
}

// At returns the value at (x, y).
func (p Plane) At(x, y int) float64 {
	return p.Pix[y*p.Width+x]
}

// Resize resamples the plane to w x h with bilinear interpolation. Source
// coordinates are x * srcW/w, so the top-left sample is preserved.
func (p Plane) Resize(w, h int) Plane {
	if p.Width == w && p.Height == h {
		return Plane{Width: w, Height: h, Pix: append([]float64(nil), p.Pix...)}
	}

	out := NewPlane(w, h)
	if p.Width == 0 || p.Height == 0 {
		return out
	}
	scaleX := float64(p.Width) / float64(w)
	scaleY := float64(p.Height) / float64(h)

	ParallelRows(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			sy := float64(y) * scaleY
			py0 := int(sy)
			py1 := min(p.Height-1, py0+1)
			wy := sy - float64(py0)
			for x := 0; x < w; x++ {
				sx := float64(x) * scaleX
				px0 := int(sx)
				px1 := min(p.Width-1, px0+1)
				wx := sx - float64(px0)

				v00 := p.Pix[py0*p.Width+px0]
				v10 := p.Pix[py0*p.Width+px1]
				v01 := p.Pix[py1*p.Width+px0]
				v11 := p.Pix[py1*p.Width+px1]
				out.Pix[y*w+x] = v00*(1-wx)*(1-wy) + v10*wx*(1-wy) + v01*(1-wx)*wy + v11*wx*wy
			}
		}
	})
	return out
}

// MinMax returns the extreme values of the plane.
func (p Plane) MinMax() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range p.Pix {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// Visualize renders the plane min-max normalised to grey. A flat plane (up to
// rounding noise) is rendered mid-grey.
func (p Plane) Visualize() *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, p.Width, p.Height))
	lo, hi := p.MinMax()
	span := hi - lo
	if span <= 1e-9*math.Max(1, math.Abs(hi)) {
		span = 0
	}
	for i, v := range p.Pix {
		n := 0.5
		if span > 0 {
			n = (v - lo) / span
		}
		g := colorutil.Clamp8(n * 255)
		o := i * 4
		out.Pix[o], out.Pix[o+1], out.Pix[o+2], out.Pix[o+3] = g, g, g, 255
	}
	return out
}
