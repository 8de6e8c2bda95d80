// Package raster holds the pixel containers and numeric kernels shared by the
// pipeline stages: masks, float planes, edge and blur filters, resampling and
// compositing. Every function returns new buffers; inputs are never mutated.
package raster

import (
	"image"
	"runtime"

	"github.com/pkg/errors"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrEmptyImage is returned for nil or zero-dimension images.
	ErrEmptyImage = errors.New("image has zero width or height")

	// ErrDimensionMismatch is returned when a mask does not match its image.
	ErrDimensionMismatch = errors.New("mask dimensions do not match image")
)

// CheckImage returns ErrEmptyImage for nil or zero-area images.
func CheckImage(img image.Image) error {
	if img == nil {
		return ErrEmptyImage
	}
	if r, ok := img.(*image.RGBA); ok && r == nil {
		return ErrEmptyImage
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return errors.Wrapf(ErrEmptyImage, "bounds %v", b)
	}
	return nil
}

// ToRGBA returns a copy of img as an *image.RGBA anchored at the origin.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(out, out.Bounds(), img, b.Min, xdraw.Src)
	return out
}

// Clone returns a deep copy of img, re-anchored at the origin.
func Clone(img *image.RGBA) *image.RGBA {
	return ToRGBA(img)
}

// Resize scales img to w x h with bilinear filtering. Same-size input is copied.
func Resize(img *image.RGBA, w, h int) *image.RGBA {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return Clone(img)
	}
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.BiLinear.Scale(out, out.Bounds(), img, b, xdraw.Src, nil)
	return out
}

// ResizeHigh scales img with Catmull-Rom filtering, used for large downscales.
func ResizeHigh(img *image.RGBA, w, h int) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(out, out.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return out
}

// ParallelRows splits [0, height) into bands and calls fn on each band
// concurrently. fn must only write rows inside its band.
func ParallelRows(height int, fn func(y0, y1 int)) {
	workers := runtime.GOMAXPROCS(0)
	if workers > height {
		workers = height
	}
	if workers <= 1 {
		fn(0, height)
		return
	}

	band := (height + workers - 1) / workers
	var g errgroup.Group
	for y0 := 0; y0 < height; y0 += band {
		y0, y1 := y0, min(y0+band, height)
		g.Go(func() error {
			fn(y0, y1)
			return nil
		})
	}
	_ = g.Wait()
}
