package raster

import (
	"image"
	"image/color"
)

// BlendMode specifies how an overlay is combined with the base image.
type BlendMode int

const (
	BlendNormal BlendMode = iota
	BlendMultiply
	BlendScreen
)

func (m BlendMode) String() string {
	switch m {
	case BlendNormal:
		return "Normal"
	case BlendMultiply:
		return "Multiply"
	case BlendScreen:
		return "Screen"
	default:
		return "Unknown"
	}
}

// Blend combines src over dst using mode, then mixes the result into dst by
// opacity scaled by the source alpha. The returned pixel is opaque when dst is.
func Blend(dst, src color.RGBA, mode BlendMode, opacity float64) color.RGBA {
	if src.A == 0 || opacity <= 0 {
		return dst
	}
	if opacity > 1 {
		opacity = 1
	}

	// src is premultiplied
	sa := float64(src.A) / 255
	sf := [3]float64{float64(src.R) / 255 / sa, float64(src.G) / 255 / sa, float64(src.B) / 255 / sa}
	df := [3]float64{float64(dst.R) / 255, float64(dst.G) / 255, float64(dst.B) / 255}

	var rf [3]float64
	for i := 0; i < 3; i++ {
		s := min(sf[i], 1)
		switch mode {
		case BlendMultiply:
			rf[i] = s * df[i]
		case BlendScreen:
			rf[i] = 1 - (1-s)*(1-df[i])
		default:
			rf[i] = s
		}
	}

	w := opacity * sa
	mix := func(d, r float64) uint8 {
		return uint8((d*(1-w)+r*w)*255 + 0.5)
	}
	return color.RGBA{
		R: mix(df[0], rf[0]),
		G: mix(df[1], rf[1]),
		B: mix(df[2], rf[2]),
		A: dst.A,
	}
}

// CompositeMasked blends overlay onto a copy of base. weights holds a per-pixel
// opacity in [0,1] in raster order; pixels with zero weight keep the base.
func CompositeMasked(base, overlay *image.RGBA, weights []float64, mode BlendMode) (*image.RGBA, error) {
	bb, ob := base.Bounds(), overlay.Bounds()
	if bb.Dx() != ob.Dx() || bb.Dy() != ob.Dy() || len(weights) != bb.Dx()*bb.Dy() {
		return nil, ErrDimensionMismatch
	}

	out := Clone(base)
	src := ToRGBA(overlay)
	w, h := bb.Dx(), bb.Dy()
	ParallelRows(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				i := y*w + x
				if weights[i] <= 0 {
					continue
				}
				o := out.PixOffset(x, y)
				s := src.PixOffset(x, y)
				d := color.RGBA{out.Pix[o], out.Pix[o+1], out.Pix[o+2], out.Pix[o+3]}
				c := color.RGBA{src.Pix[s], src.Pix[s+1], src.Pix[s+2], src.Pix[s+3]}
				r := Blend(d, c, mode, weights[i])
				out.Pix[o], out.Pix[o+1], out.Pix[o+2], out.Pix[o+3] = r.R, r.G, r.B, r.A
			}
		}
	})
	return out, nil
}

// Tint returns a solid image of the given size, used for highlighting masks.
func Tint(w, h int, c color.RGBA) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(out.Pix); i += 4 {
		out.Pix[i], out.Pix[i+1], out.Pix[i+2], out.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return out
}
