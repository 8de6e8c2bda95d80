// Package segment locates the countertop region of a kitchen photograph.
//
// Strategies implement Segmenter and are combined with Chain, which tries
// them in order and falls back on failure. Heuristic never fails on a valid
// image and belongs at the end of every chain.
package segment

import (
	"context"
	"image"

	"texswap/internal/raster"
	"texswap/pkg/geometry"
)

// Segmenter produces a countertop mask for an image.
type Segmenter interface {
	Name() string
	Segment(ctx context.Context, img *image.RGBA) (*Result, error)
}

// Result is the output of a segmentation strategy. Mask has the same size as
// the input image and holds 0 or 255.
type Result struct {
	Mask        raster.Mask
	Confidence  float64
	BoundingBox geometry.RectInt
	Source      string
}

// NewResult fills the bounding box from the mask.
func NewResult(mask raster.Mask, confidence float64, source string) *Result {
	box, _ := BoundingBox(mask)
	return &Result{Mask: mask, Confidence: confidence, BoundingBox: box, Source: source}
}

// BoundingBox returns the tight box around the nonzero pixels of mask. An
// empty mask yields a zero box and ok=false.
func BoundingBox(mask raster.Mask) (geometry.RectInt, bool) {
	return mask.BoundingBox()
}
