package perspective

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"texswap/internal/raster"
	"texswap/pkg/geometry"
)

// Warp renders tex into a w x h image through h. The homography maps the unit
// square, so texture pixels are first scaled into [0,1]². Samples are
// bilinear on all four channels. Pixels whose inverse mapping leaves the unit
// square stay transparent black, which also drops the half-texel fringe the
// constant border blends in.
func Warp(tex *image.RGBA, h geometry.Homography, w, ht int) (*image.RGBA, error) {
	src, err := raster.RGBAMat(tex)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	m := toPixels(h.Matrix, tex.Bounds().Dx(), tex.Bounds().Dy())
	transform := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	defer transform.Close()
	for i, v := range m {
		transform.SetDoubleAt(i/3, i%3, v)
	}

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.WarpPerspectiveWithParams(src, &dst, transform, image.Pt(w, ht),
		gocv.InterpolationLinear, gocv.BorderConstant, color.RGBA{R: 0, G: 0, B: 0, A: 0})

	out, err := raster.MatRGBA(dst)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read warped texture")
	}

	raster.ParallelRows(ht, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				uv, ok := h.Inverse.Apply(geometry.Point2D{X: float64(x), Y: float64(y)})
				if ok && uv.X >= 0 && uv.X <= 1 && uv.Y >= 0 && uv.Y <= 1 {
					continue
				}
				o := out.PixOffset(x, y)
				clear(out.Pix[o : o+4])
			}
		}
	})
	return out, nil
}

// toPixels composes m with the scaling from texture pixels to unit-square
// coordinates, so texel (tw-1, th-1) lands where m sends (1, 1).
func toPixels(m geometry.Matrix3, tw, th int) geometry.Matrix3 {
	sx, sy := 1.0, 1.0
	if tw > 1 {
		sx = 1 / float64(tw-1)
	}
	if th > 1 {
		sy = 1 / float64(th-1)
	}
	return m.Mul(geometry.Matrix3{sx, 0, 0, 0, sy, 0, 0, 0, 1})
}
