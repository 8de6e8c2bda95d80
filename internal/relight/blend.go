package relight

import (
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"texswap/internal/raster"
)

// Blender composites an overlay onto a base image through a soft mask. All
// three inputs share dimensions.
type Blender interface {
	Blend(base, overlay *image.RGBA, mask raster.Mask) (*image.RGBA, error)
}

// BoundaryBlender alpha-composites each pixel with weight mask/255 scaled by
// the overlay's alpha. Fully masked pixels take the overlay, unmasked pixels
// keep the base and feathered edges mix the two.
type BoundaryBlender struct{}

func (BoundaryBlender) Blend(base, overlay *image.RGBA, mask raster.Mask) (*image.RGBA, error) {
	if !mask.Matches(base) {
		return nil, raster.ErrDimensionMismatch
	}
	return raster.CompositeMasked(base, overlay, mask.Weights(), raster.BlendNormal)
}

// FeatheredMask softens the edge of mask over radius pixels. Alpha follows a
// raised cosine of the city-block distance to the nearest outside pixel,
// reaching 255 at radius; outside pixels stay 0. A non-positive radius
// returns the mask binarised. The mask is resampled when it is not w x h.
func FeatheredMask(mask raster.Mask, w, h, radius int) raster.Mask {
	src := mask.ResizeNearest(w, h)
	out := raster.NewMask(w, h)
	if radius <= 0 {
		for i, v := range src.Pix {
			if v > 0 {
				out.Pix[i] = 255
			}
		}
		return out
	}

	dist := DistanceField(src)
	r := float64(radius)
	for i, d := range dist {
		if src.Pix[i] == 0 {
			continue
		}
		dd := float64(d + 1)
		if dd >= r {
			out.Pix[i] = 255
			continue
		}
		out.Pix[i] = uint8(math.Round(255 * (1 - math.Cos(math.Pi*dd/r)) / 2))
	}
	return out
}

// DistanceField returns, for each set pixel, the 4-neighbour distance to the
// nearest boundary pixel, one that touches an unset pixel or the image edge.
// Boundary and unset pixels are 0. The mask is zero-padded by one pixel so
// the outside counts as unset, and the L1 transform's distance to the nearest
// zero is one more than the distance to the boundary.
func DistanceField(m raster.Mask) []int {
	w, h := m.Width, m.Height
	d := make([]int, w*h)
	if w == 0 || h == 0 {
		return d
	}

	src := raster.MaskMat(m)
	defer src.Close()
	padded := gocv.NewMat()
	defer padded.Close()
	gocv.CopyMakeBorder(src, &padded, 1, 1, 1, 1, gocv.BorderConstant, color.RGBA{})

	dist, labels := gocv.NewMat(), gocv.NewMat()
	defer dist.Close()
	defer labels.Close()
	gocv.DistanceTransform(padded, &dist, &labels, gocv.DistL1, gocv.DistanceMask3, gocv.DistanceLabelCComp)

	field := raster.MatPlane(dist)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := int(math.Round(field.Pix[(y+1)*(w+2)+x+1])) - 1
			d[y*w+x] = max(v, 0)
		}
	}
	return d
}
