package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"texswap/internal/codec"
	"texswap/internal/config"
	"texswap/internal/raster"
)

var (
	white = color.RGBA{255, 255, 255, 255}
	black = color.RGBA{0, 0, 0, 255}
	grey  = color.RGBA{128, 128, 128, 255}
)

// scene draws a filled rectangle on a white background.
func scene(w, h int, r image.Rectangle, c color.RGBA) *image.RGBA {
	img := raster.Tint(w, h, white)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	data, err := codec.EncodePNG(img)
	require.NoError(t, err)
	return data
}

func newTestLogger() (*logrus.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.TextFormatter{DisableColors: true, DisableTimestamp: true})
	logger.SetLevel(logrus.DebugLevel)
	return logger, &buf
}

func newEngine() *Engine {
	return New(config.DefaultParams(), nil, nil)
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func TestReplaceDarkCountertop(t *testing.T) {
	kitchen := scene(512, 512, image.Rect(106, 156, 406, 356), black)
	material := raster.Tint(256, 256, grey)

	out, err := newEngine().ReplaceImages(context.Background(), kitchen, material, config.DefaultOptions())
	require.NoError(t, err)

	final := out.Images.Final
	require.Equal(t, image.Rect(0, 0, 512, 512), final.Bounds())
	c := final.RGBAAt(256, 256)
	assert.InDelta(t, 128, int(c.R), 1)
	assert.InDelta(t, 128, int(c.G), 1)
	assert.InDelta(t, 128, int(c.B), 1)
	assert.Equal(t, white, final.RGBAAt(10, 10), "background untouched")

	meta := out.Metadata
	assert.Equal(t, "heuristic", meta.SegmentationSource)
	assert.InDelta(t, 0.8, meta.SegmentationConfidence, 1e-9)
	assert.Greater(t, meta.PerspectiveConfidence, 0.9)
	assert.Greater(t, meta.LightingConfidence, 0.9)
	assert.Equal(t, []string{"#808080"}, meta.DominantColors)
	assert.NotNil(t, out.Images.Lighting)

	q := newEngine().AssessQuality(meta)
	assert.Greater(t, q.OverallScore, 0.0)
	assert.LessOrEqual(t, q.OverallScore, 1.0)
	assert.Empty(t, q.Recommendations)
}

func TestReplaceMatchingMaterialIsNearIdentity(t *testing.T) {
	kitchen := scene(400, 400, image.Rect(80, 120, 320, 300), grey)
	material := raster.Tint(64, 64, grey)

	out, err := newEngine().ReplaceImages(context.Background(), kitchen, material, config.DefaultOptions())
	require.NoError(t, err)

	for y := 140; y < 280; y++ {
		for x := 100; x < 300; x++ {
			got := out.Images.Final.RGBAAt(x, y)
			assert.LessOrEqual(t, absDiff(got.R, 128), 2, "(%d,%d)", x, y)
			assert.LessOrEqual(t, absDiff(got.G, 128), 2, "(%d,%d)", x, y)
			assert.LessOrEqual(t, absDiff(got.B, 128), 2, "(%d,%d)", x, y)
		}
	}
}

func TestReplaceUniformKitchenIsUnchanged(t *testing.T) {
	kitchen := raster.Tint(96, 64, color.RGBA{120, 130, 140, 255})
	material := raster.Tint(32, 32, color.RGBA{200, 10, 10, 255})

	out, err := newEngine().ReplaceImages(context.Background(), kitchen, material, config.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, kitchen.Pix, out.Images.Final.Pix)
	assert.True(t, out.Images.Mask.Empty())
	assert.Zero(t, out.Metadata.SegmentationConfidence)
	assert.Zero(t, out.Metadata.PerspectiveConfidence)
	assert.Zero(t, out.Metadata.LightingConfidence)

	q := AssessQuality(out.Metadata, config.DefaultParams().Quality)
	assert.Equal(t, []string{
		RecommendSegmentation,
		RecommendPerspective,
		RecommendLighting,
		RecommendOverall,
	}, q.Recommendations)
}

func TestReplaceWithoutLighting(t *testing.T) {
	kitchen := scene(200, 160, image.Rect(40, 50, 160, 120), black)
	opts := config.DefaultOptions()
	opts.PreserveLighting = false

	res, err := newEngine().Replace(context.Background(),
		encodePNG(t, kitchen), encodePNG(t, raster.Tint(32, 32, grey)), opts)
	require.NoError(t, err)

	assert.NotEmpty(t, res.FinalImage)
	assert.NotEmpty(t, res.Debug.OriginalMask)
	assert.NotEmpty(t, res.Debug.ProcessedTexture)
	assert.NotEmpty(t, res.Debug.WarpedTexture)
	assert.NotEmpty(t, res.Debug.BeforeBlending)
	assert.Empty(t, res.Debug.Lighting)
	assert.Zero(t, res.Metadata.LightingConfidence)

	final, err := codec.Decode(res.FinalImage)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 200, 160), final.Bounds())
}

func TestReplaceDownscalesToMaxOutputSize(t *testing.T) {
	kitchen := scene(300, 200, image.Rect(60, 60, 240, 150), black)
	opts := config.DefaultOptions()
	opts.MaxOutputSize = 150

	out, err := newEngine().ReplaceImages(context.Background(), kitchen, raster.Tint(16, 16, grey), opts)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 150, 100), out.Images.Final.Bounds())
	assert.Equal(t, 150, out.Images.Mask.Width)
	assert.Equal(t, 100, out.Images.Mask.Height)
}

func TestReplaceRejectsBadInput(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	material := raster.Tint(8, 8, grey)

	opts := config.DefaultOptions()
	opts.OutputQuality = 101
	_, err := e.ReplaceImages(ctx, raster.Tint(8, 8, white), material, opts)
	assert.Error(t, err)

	_, err = e.ReplaceImages(ctx, image.NewRGBA(image.Rect(0, 0, 0, 0)), material, config.DefaultOptions())
	assert.ErrorIs(t, err, raster.ErrEmptyImage)

	_, err = e.Replace(ctx, nil, encodePNG(t, material), config.DefaultOptions())
	assert.Error(t, err)
}

func TestReplaceCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	kitchen := scene(64, 64, image.Rect(10, 10, 50, 50), black)
	_, err := newEngine().ReplaceImages(ctx, kitchen, raster.Tint(8, 8, grey), config.DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBatchSkipsFailures(t *testing.T) {
	logger, buf := newTestLogger()
	e := New(config.DefaultParams(), nil, logger)

	good := encodePNG(t, scene(120, 90, image.Rect(20, 20, 100, 70), black))
	results := e.Batch(context.Background(),
		[][]byte{good, {}, good}, encodePNG(t, raster.Tint(16, 16, grey)), config.DefaultOptions())

	require.Len(t, results, 2)
	assert.Equal(t, 0, results[0].Index)
	assert.Equal(t, 2, results[1].Index, "index survives the skipped image")
	for _, r := range results {
		assert.NotEmpty(t, r.FinalImage)
	}
	assert.Contains(t, buf.String(), "Failed to process image")
	assert.Contains(t, buf.String(), "image=2")
	assert.Contains(t, buf.String(), "succeeded=2")
}

func TestBatchBadMaterial(t *testing.T) {
	good := encodePNG(t, raster.Tint(16, 16, white))
	results := newEngine().Batch(context.Background(), [][]byte{good}, []byte("nope"), config.DefaultOptions())
	assert.Empty(t, results)
}

func TestAssessQuality(t *testing.T) {
	p := config.DefaultParams().Quality

	fast := AssessQuality(Metadata{
		SegmentationConfidence: 1,
		PerspectiveConfidence:  1,
		LightingConfidence:     1,
		ProcessingTimeMs:       500,
	}, p)
	assert.InDelta(t, 1.0, fast.OverallScore, 1e-12)
	assert.Equal(t, 1.0, fast.Breakdown.Blending)
	assert.Empty(t, fast.Recommendations)

	slow := AssessQuality(Metadata{
		SegmentationConfidence: 0.8,
		PerspectiveConfidence:  0.5,
		LightingConfidence:     0.9,
		ProcessingTimeMs:       12000,
	}, p)
	assert.Equal(t, 0.8, slow.Breakdown.Blending)
	assert.InDelta(t, 0.8*0.3+0.5*0.3+0.9*0.2+0.8*0.2, slow.OverallScore, 1e-12)
	assert.Equal(t, []string{RecommendPerspective}, slow.Recommendations)
}
