package relight

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"texswap/internal/config"
	"texswap/internal/raster"
)

func newEngine() *Engine {
	return NewEngine(config.DefaultParams().Relight, nil, nil)
}

func squareMask(w, h int, r image.Rectangle) raster.Mask {
	m := raster.NewMask(w, h)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.Set(x, y, 255)
		}
	}
	return m
}

func fullMask(w, h int) raster.Mask {
	return squareMask(w, h, image.Rect(0, 0, w, h))
}

func TestFeatheredMaskMonotoneAndSaturating(t *testing.T) {
	mask := squareMask(40, 40, image.Rect(5, 5, 35, 35))
	f := FeatheredMask(mask, 40, 40, 8)

	assert.Equal(t, uint8(0), f.At(2, 20), "outside stays zero")
	assert.Equal(t, uint8(10), f.At(5, 20), "boundary pixel")
	assert.Equal(t, uint8(255), f.At(20, 20), "interior saturates")

	prev := uint8(0)
	for x := 5; x <= 20; x++ {
		v := f.At(x, 20)
		assert.GreaterOrEqual(t, v, prev, "x=%d", x)
		prev = v
	}
	for i, v := range f.Pix {
		if mask.Pix[i] == 0 {
			assert.Zero(t, v)
		}
	}
}

func TestFeatheredMaskZeroRadius(t *testing.T) {
	mask := squareMask(10, 10, image.Rect(2, 2, 6, 6))
	mask.Set(7, 7, 40)
	f := FeatheredMask(mask, 10, 10, 0)
	assert.Equal(t, uint8(255), f.At(3, 3))
	assert.Equal(t, uint8(255), f.At(7, 7))
	assert.Equal(t, 17, f.Count())
}

func TestDistanceField(t *testing.T) {
	mask := squareMask(9, 9, image.Rect(1, 1, 8, 8))
	d := DistanceField(mask)
	assert.Equal(t, 0, d[1*9+1])
	assert.Equal(t, 1, d[2*9+2])
	assert.Equal(t, 3, d[4*9+4])
	assert.Equal(t, 0, d[0])

	// the image edge counts as outside
	full := DistanceField(fullMask(5, 5))
	assert.Equal(t, 0, full[0])
	assert.Equal(t, 0, full[2])
	assert.Equal(t, 1, full[1*5+1])
	assert.Equal(t, 2, full[2*5+2])
}

func TestExtractLightingConfidenceBounds(t *testing.T) {
	e := newEngine()
	for _, c := range []color.RGBA{{0, 0, 0, 255}, {255, 255, 255, 255}} {
		img := raster.Tint(48, 32, c)
		comp, err := e.ExtractLighting(img, fullMask(48, 32))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, comp.Confidence, 0.0)
		assert.LessOrEqual(t, comp.Confidence, 1.0)
	}
}

func TestExtractLightingEmptyMask(t *testing.T) {
	comp, err := newEngine().ExtractLighting(raster.Tint(16, 16, color.RGBA{9, 9, 9, 255}), raster.NewMask(16, 16))
	require.NoError(t, err)
	assert.Zero(t, comp.Confidence)
	for _, g := range comp.Gain().Pix {
		assert.Equal(t, 1.0, g)
	}
}

func TestExtractLightingMismatch(t *testing.T) {
	_, err := newEngine().ExtractLighting(raster.Tint(16, 16, color.RGBA{}), raster.NewMask(8, 8))
	assert.ErrorIs(t, err, raster.ErrDimensionMismatch)
}

func TestUniformLightingIsIdentity(t *testing.T) {
	e := newEngine()
	img := raster.Tint(40, 30, color.RGBA{128, 128, 128, 255})
	mask := squareMask(40, 30, image.Rect(5, 5, 35, 25))
	comp, err := e.ExtractLighting(img, mask)
	require.NoError(t, err)
	assert.Greater(t, comp.Confidence, 0.99)

	for i, g := range comp.Gain().Pix {
		assert.InDelta(t, 1.0, g, 1e-9, "pixel %d", i)
	}

	tex := raster.Tint(20, 20, color.RGBA{90, 140, 60, 255})
	res, err := e.ApplyLighting(tex, comp, 40, 30)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 30), res.Relit.Bounds())
	assert.Equal(t, color.RGBA{90, 140, 60, 255}, res.Relit.RGBAAt(20, 15))
	assert.Equal(t, color.RGBA{128, 128, 128, 255}, res.Shading.RGBAAt(0, 0), "flat shading renders mid-grey")
}

func TestShadingFollowsBrightness(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 120, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 120; x++ {
			v := uint8(40 + x)
			img.SetRGBA(x, y, color.RGBA{v, v, v, 255})
		}
	}
	comp, err := newEngine().ExtractLighting(img, fullMask(120, 40))
	require.NoError(t, err)

	gain := comp.Gain()
	assert.Less(t, gain.At(5, 20), 1.0)
	assert.Greater(t, gain.At(114, 20), 1.0)
}

func TestBoundaryBlender(t *testing.T) {
	base := raster.Tint(4, 1, color.RGBA{0, 0, 0, 255})
	over := raster.Tint(4, 1, color.RGBA{200, 100, 50, 255})
	over.SetRGBA(3, 0, color.RGBA{})
	mask := raster.Mask{Width: 4, Height: 1, Pix: []uint8{0, 255, 51, 255}}

	out, err := BoundaryBlender{}.Blend(base, over, mask)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, out.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{200, 100, 50, 255}, out.RGBAAt(1, 0))
	assert.Equal(t, color.RGBA{40, 20, 10, 255}, out.RGBAAt(2, 0))
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, out.RGBAAt(3, 0), "transparent overlay keeps base")

	_, err = BoundaryBlender{}.Blend(base, over, raster.NewMask(2, 2))
	assert.ErrorIs(t, err, raster.ErrDimensionMismatch)
}

func TestBlendSeamlesslyResizes(t *testing.T) {
	base := raster.Tint(10, 10, color.RGBA{10, 10, 10, 255})
	over := raster.Tint(5, 5, color.RGBA{250, 250, 250, 255})
	out, err := newEngine().BlendSeamlessly(base, over, fullMask(10, 10), 10, 10)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{250, 250, 250, 255}, out.RGBAAt(7, 7))
}
