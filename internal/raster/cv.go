package raster

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// RGBAMat copies img into a new 4-channel 8-bit Mat. The caller closes it.
func RGBAMat(img *image.RGBA) (gocv.Mat, error) {
	if err := CheckImage(img); err != nil {
		return gocv.Mat{}, err
	}
	src := ToRGBA(img)
	b := src.Bounds()
	wrapped, err := gocv.NewMatFromBytes(b.Dy(), b.Dx(), gocv.MatTypeCV8UC4, src.Pix)
	if err != nil {
		return gocv.Mat{}, errors.Wrap(err, "failed to wrap image")
	}
	defer wrapped.Close()
	// wrapped borrows src.Pix; clone so the Mat owns its pixels
	return wrapped.Clone(), nil
}

// MatRGBA copies a 4-channel 8-bit Mat into an image.
func MatRGBA(m gocv.Mat) (*image.RGBA, error) {
	if m.Type() != gocv.MatTypeCV8UC4 {
		return nil, errors.Errorf("expected 8-bit RGBA mat, got %v", m.Type())
	}
	out := image.NewRGBA(image.Rect(0, 0, m.Cols(), m.Rows()))
	copy(out.Pix, m.ToBytes())
	return out, nil
}

// MaskMat copies a mask into a single-channel 8-bit Mat.
func MaskMat(mask Mask) gocv.Mat {
	m := gocv.NewMatWithSize(mask.Height, mask.Width, gocv.MatTypeCV8U)
	copy(mustUint8(&m), mask.Pix)
	return m
}

// PlaneMat copies a plane into a single-channel 64-bit float Mat.
func PlaneMat(p Plane) gocv.Mat {
	m := gocv.NewMatWithSize(p.Height, p.Width, gocv.MatTypeCV64F)
	copy(MatFloats(&m), p.Pix)
	return m
}

// MatPlane copies a single-channel float Mat into a plane. 8-bit and 32-bit
// Mats are converted first.
func MatPlane(m gocv.Mat) Plane {
	if m.Type() != gocv.MatTypeCV64F {
		conv := gocv.NewMat()
		defer conv.Close()
		m.ConvertTo(&conv, gocv.MatTypeCV64F)
		m = conv
	}
	return Plane{Width: m.Cols(), Height: m.Rows(), Pix: append([]float64(nil), MatFloats(&m)...)}
}

// MatFloats returns the live data of a continuous 64-bit float Mat. It panics
// on any other Mat, which is a programming error in this package's callers.
func MatFloats(m *gocv.Mat) []float64 {
	data, err := m.DataPtrFloat64()
	if err != nil {
		panic(errors.Wrap(err, "float mat"))
	}
	return data
}

func mustUint8(m *gocv.Mat) []uint8 {
	data, err := m.DataPtrUint8()
	if err != nil {
		panic(errors.Wrap(err, "byte mat"))
	}
	return data
}
