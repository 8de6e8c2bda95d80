package perspective

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"texswap/internal/config"
	"texswap/internal/raster"
	"texswap/pkg/geometry"
)

func newMapper() *Mapper {
	return NewMapper(config.DefaultParams().Geometry, nil)
}

func pt(x, y float64) geometry.Point2D { return geometry.Point2D{X: x, Y: y} }

func TestComputeHomographyMapsUnitSquare(t *testing.T) {
	quads := []geometry.Quad{
		{TopLeft: pt(100, 120), TopRight: pt(400, 100), BottomRight: pt(420, 330), BottomLeft: pt(80, 300)},
		{TopLeft: pt(107, 157), TopRight: pt(404, 157), BottomRight: pt(404, 354), BottomLeft: pt(107, 354)},
		{TopLeft: pt(0.5, 0.25), TopRight: pt(3, 0), BottomRight: pt(2.5, 2), BottomLeft: pt(0, 1.5)},
	}
	for _, q := range quads {
		h := newMapper().ComputeHomography(q)
		assert.InDelta(t, 1.0, h.Matrix[8], 1e-12)
		for i, want := range q.Points() {
			got, ok := h.Matrix.Apply(unitSquare[i])
			require.True(t, ok)
			assert.InDelta(t, want.X, got.X, 1e-6)
			assert.InDelta(t, want.Y, got.Y, 1e-6)

			back, ok := h.Inverse.Apply(want)
			require.True(t, ok)
			assert.InDelta(t, unitSquare[i].X, back.X, 1e-6)
			assert.InDelta(t, unitSquare[i].Y, back.Y, 1e-6)
		}
	}
}

func TestComputeHomographyDegenerate(t *testing.T) {
	h := newMapper().ComputeHomography(geometry.Quad{})
	assert.Equal(t, geometry.IdentityHomography(), h)
}

// rectScene is a white image with a black rectangle and a mask covering the
// rectangle's interior inset by one pixel.
func rectScene(w, h int, r image.Rectangle) (*image.RGBA, raster.Mask) {
	img := raster.Tint(w, h, color.RGBA{255, 255, 255, 255})
	mask := raster.NewMask(w, h)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, color.RGBA{0, 0, 0, 255})
			if x > r.Min.X && x < r.Max.X-1 && y > r.Min.Y && y < r.Max.Y-1 {
				mask.Set(x, y, 255)
			}
		}
	}
	return img, mask
}

func TestDetectRectangle(t *testing.T) {
	img, mask := rectScene(512, 512, image.Rect(106, 156, 406, 356))
	res, err := newMapper().Detect(img, mask)
	require.NoError(t, err)

	assert.Len(t, res.Corners, 4)
	assert.Equal(t, pt(107, 157), res.Quad.TopLeft)
	assert.Equal(t, pt(404, 157), res.Quad.TopRight)
	assert.Equal(t, pt(404, 354), res.Quad.BottomRight)
	assert.Equal(t, pt(107, 354), res.Quad.BottomLeft)
	assert.Greater(t, res.Confidence, 0.99)
	assert.LessOrEqual(t, res.Confidence, 1.0)
}

func TestDetectEmptyMask(t *testing.T) {
	img := raster.Tint(32, 32, color.RGBA{50, 50, 50, 255})
	res, err := newMapper().Detect(img, raster.NewMask(32, 32))
	require.NoError(t, err)
	assert.Equal(t, geometry.Quad{}, res.Quad)
	assert.Equal(t, geometry.IdentityHomography(), res.Homography)
	assert.Zero(t, res.Confidence)
}

func TestDetectMismatch(t *testing.T) {
	img := raster.Tint(32, 32, color.RGBA{})
	_, err := newMapper().Detect(img, raster.NewMask(16, 32))
	assert.ErrorIs(t, err, raster.ErrDimensionMismatch)
}

func TestFitQuadFallbacks(t *testing.T) {
	m := newMapper()
	box := geometry.RectInt{X: 5, Y: 6, Width: 10, Height: 4}
	assert.Equal(t, box.Corners(), m.FitQuad([]geometry.Point2D{pt(1, 1), pt(2, 2)}, box))

	line := []geometry.Point2D{pt(0, 0), pt(1, 1), pt(2, 2), pt(3, 3)}
	q := m.FitQuad(line, box)
	assert.Equal(t, pt(0, 0), q.TopLeft)
	assert.Equal(t, pt(3, 3), q.TopRight)
	assert.Equal(t, pt(3, 3), q.BottomRight)
	assert.Equal(t, pt(0, 0), q.BottomLeft)
}

func TestFitQuadReducesHull(t *testing.T) {
	pts := []geometry.Point2D{
		pt(0, 0), pt(100, 0), pt(100, 50), pt(0, 50),
		pt(50, -1), pt(50, 51), pt(40, 20),
	}
	q := newMapper().FitQuad(pts, geometry.RectInt{})
	assert.Greater(t, q.Area(), 4000.0)
	assert.Less(t, q.TopLeft.X, q.TopRight.X)
	assert.Less(t, q.TopLeft.Y, q.BottomLeft.Y)
}

func TestConfidenceBounds(t *testing.T) {
	m := newMapper()
	for _, img := range []*image.RGBA{
		raster.Tint(40, 30, color.RGBA{0, 0, 0, 255}),
		raster.Tint(40, 30, color.RGBA{255, 255, 255, 255}),
	} {
		full := raster.NewMask(40, 30)
		for i := range full.Pix {
			full.Pix[i] = 255
		}
		for _, mask := range []raster.Mask{raster.NewMask(40, 30), full} {
			res, err := m.Detect(img, mask)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, res.Confidence, 0.0)
			assert.LessOrEqual(t, res.Confidence, 1.0)
		}
	}
}

func TestHarrisRanksRectangleCorners(t *testing.T) {
	gray := raster.NewPlane(20, 20)
	mask := raster.NewMask(20, 20)
	for y := 5; y < 15; y++ {
		for x := 5; x < 15; x++ {
			gray.Pix[y*20+x] = 255
			mask.Set(x, y, 255)
		}
	}

	corners := newMapper().Harris(gray, mask.EdgePixels())
	require.GreaterOrEqual(t, len(corners), 5)
	top := []geometry.Point2D{corners[0].Point, corners[1].Point, corners[2].Point, corners[3].Point}
	assert.ElementsMatch(t, []geometry.Point2D{pt(5, 5), pt(14, 5), pt(14, 14), pt(5, 14)}, top)
	assert.Greater(t, corners[3].Response, corners[4].Response)
	for _, c := range corners {
		assert.NotEqual(t, pt(10, 5), c.Point, "straight edges have no corner response")
	}

	assert.Empty(t, newMapper().Harris(raster.NewPlane(20, 20), mask.EdgePixels()))
}

func TestWarp(t *testing.T) {
	tex := raster.Tint(2, 2, color.RGBA{200, 10, 10, 255})
	q := geometry.Quad{TopLeft: pt(10, 10), TopRight: pt(30, 10), BottomRight: pt(30, 20), BottomLeft: pt(10, 20)}
	h := newMapper().ComputeHomography(q)

	out, err := Warp(tex, h, 40, 30)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 30), out.Bounds())
	assert.Equal(t, color.RGBA{200, 10, 10, 255}, out.RGBAAt(20, 15))
	assert.Equal(t, color.RGBA{}, out.RGBAAt(5, 5))
	assert.Equal(t, color.RGBA{}, out.RGBAAt(35, 25))
	assert.Equal(t, color.RGBA{}, out.RGBAAt(9, 15), "no fringe past the quad edge")
}

func TestWarpKeepsTextureOrientation(t *testing.T) {
	red, blue := color.RGBA{200, 0, 0, 255}, color.RGBA{0, 0, 200, 255}
	tex := raster.Tint(4, 2, red)
	for y := 0; y < 2; y++ {
		tex.SetRGBA(2, y, blue)
		tex.SetRGBA(3, y, blue)
	}
	q := geometry.Quad{TopLeft: pt(10, 10), TopRight: pt(30, 10), BottomRight: pt(30, 20), BottomLeft: pt(10, 20)}

	out, err := Warp(tex, newMapper().ComputeHomography(q), 40, 30)
	require.NoError(t, err)
	assert.Equal(t, red, out.RGBAAt(12, 15))
	assert.Equal(t, blue, out.RGBAAt(28, 15))

	_, err = Warp(image.NewRGBA(image.Rect(0, 0, 0, 0)), newMapper().ComputeHomography(q), 4, 4)
	assert.ErrorIs(t, err, raster.ErrEmptyImage)
}
