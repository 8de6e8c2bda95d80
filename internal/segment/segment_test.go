package segment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"texswap/internal/codec"
	"texswap/internal/config"
	"texswap/internal/raster"
)

func fill(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

// kitchen draws a black rectangle on white.
func kitchen(w, h int, r image.Rectangle) *image.RGBA {
	img := fill(w, h, color.RGBA{255, 255, 255, 255})
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, color.RGBA{0, 0, 0, 255})
		}
	}
	return img
}

func TestHeuristicFindsRectangle(t *testing.T) {
	img := kitchen(512, 512, image.Rect(106, 156, 406, 356))
	res, err := NewHeuristic(config.DefaultParams().Segment).Segment(context.Background(), img)
	require.NoError(t, err)

	assert.Equal(t, 512, res.Mask.Width)
	assert.Equal(t, 512, res.Mask.Height)
	for _, v := range res.Mask.Pix {
		assert.True(t, v == 0 || v == 255)
	}
	assert.InDelta(t, 0.8, res.Confidence, 1e-12)
	assert.Equal(t, "heuristic", res.Source)

	// interior of the rectangle, inset by the Sobel response width
	assert.Equal(t, 107, res.BoundingBox.X)
	assert.Equal(t, 157, res.BoundingBox.Y)
	assert.Equal(t, 297, res.BoundingBox.Width)
	assert.Equal(t, 197, res.BoundingBox.Height)
	assert.Equal(t, uint8(0), res.Mask.At(10, 10), "background rejected")
}

func TestHeuristicUniformImage(t *testing.T) {
	res, err := NewHeuristic(config.DefaultParams().Segment).Segment(context.Background(), fill(64, 48, color.RGBA{120, 120, 120, 255}))
	require.NoError(t, err)
	assert.True(t, res.Mask.Empty())
	assert.Zero(t, res.Confidence)
	_, ok := BoundingBox(res.Mask)
	assert.False(t, ok)
}

func TestHeuristicEmptyImage(t *testing.T) {
	_, err := NewHeuristic(config.DefaultParams().Segment).Segment(context.Background(), image.NewRGBA(image.Rect(0, 0, 0, 0)))
	assert.True(t, errors.Is(err, raster.ErrEmptyImage))
}

func maskPNG(t *testing.T, w, h int, r image.Rectangle) string {
	t.Helper()
	m := fill(w, h, color.RGBA{0, 0, 0, 255})
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.SetRGBA(x, y, color.RGBA{255, 255, 255, 255})
		}
	}
	data, err := codec.EncodePNG(m)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(data)
}

func TestRemoteSegment(t *testing.T) {
	var gotAuth, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		_, err := codec.Decode(body)
		assert.NoError(t, err)

		json.NewEncoder(w).Encode([]remoteSegment{
			{Label: "wall", Score: 0.99, Mask: maskPNG(t, 20, 10, image.Rect(0, 0, 20, 3))},
			{Label: "Countertop", Score: 0.7, Mask: maskPNG(t, 20, 10, image.Rect(2, 5, 8, 9))},
			{Label: "table", Score: 0.9, Mask: maskPNG(t, 20, 10, image.Rect(12, 5, 18, 9))},
		})
	}))
	defer srv.Close()

	r := NewRemote(config.RemoteConfig{Endpoint: srv.URL, Token: "secret", Labels: []string{"countertop", "table"}})
	res, err := r.Segment(context.Background(), fill(20, 10, color.RGBA{1, 2, 3, 255}))
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "image/png", gotType)
	assert.InDelta(t, 0.9, res.Confidence, 1e-12)
	assert.Equal(t, 2*6*4, res.Mask.Count())
	assert.Equal(t, uint8(0), res.Mask.At(5, 1), "wall not included")
	assert.Equal(t, "remote", res.Source)
}

func TestRemoteFailures(t *testing.T) {
	img := fill(20, 10, color.RGBA{1, 2, 3, 255})

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model loading", http.StatusServiceUnavailable)
		}},
		{"shape", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error":"x"}`))
		}},
		{"no label", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode([]remoteSegment{{Label: "floor", Score: 1, Mask: maskPNG(t, 20, 10, image.Rect(0, 0, 1, 1))}})
		}},
		{"dimensions", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode([]remoteSegment{{Label: "counter", Score: 1, Mask: maskPNG(t, 8, 8, image.Rect(0, 0, 1, 1))}})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			_, err := NewRemote(config.RemoteConfig{Endpoint: srv.URL, Labels: []string{"counter"}}).Segment(context.Background(), img)
			assert.Error(t, err)
		})
	}
}

func newTestLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})
	return l
}

type failing struct{ err error }

func (f failing) Name() string { return "failing" }
func (f failing) Segment(context.Context, *image.RGBA) (*Result, error) {
	return nil, f.err
}

func TestChainFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	var logs bytes.Buffer
	logger := newTestLogger(&logs)

	chain := NewChain(logger,
		failing{errors.New("model missing")},
		NewRemote(config.RemoteConfig{Endpoint: srv.URL, Labels: []string{"countertop"}}),
		NewHeuristic(config.DefaultParams().Segment),
	)
	img := kitchen(128, 128, image.Rect(30, 40, 100, 90))
	res, err := chain.Segment(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, "heuristic", res.Source)
	assert.False(t, res.Mask.Empty())
	assert.Contains(t, logs.String(), "strategy=remote")
	assert.Equal(t, "chain(failing,remote,heuristic)", chain.Name())
}

func TestChainAllFail(t *testing.T) {
	chain := NewChain(nil, failing{errors.New("a")}, failing{errors.New("b")})
	_, err := chain.Segment(context.Background(), fill(4, 4, color.RGBA{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b")

	_, err = chain.Segment(context.Background(), nil)
	assert.True(t, errors.Is(err, raster.ErrEmptyImage))
}
