// Package cvnet runs a local semantic-segmentation network through OpenCV's
// DNN module. Any model OpenCV can read (ONNX, Caffe, TensorFlow) works as
// long as it emits an N x C x H x W score tensor.
package cvnet

import (
	"context"
	"image"
	"math"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"texswap/internal/config"
	"texswap/internal/raster"
	"texswap/internal/segment"
)

// Segmenter marks pixels whose highest-scoring class is one of ClassIDs.
type Segmenter struct {
	cfg config.ModelConfig

	mu  sync.Mutex // gocv.Net is not safe for concurrent Forward calls
	net *gocv.Net
}

// New loads the network at cfg.Path.
func New(cfg config.ModelConfig) (*Segmenter, error) {
	if cfg.Path == "" {
		return nil, errors.New("no model path configured")
	}
	if len(cfg.ClassIDs) == 0 {
		return nil, errors.New("no countertop class ids configured")
	}
	if cfg.InputSize <= 0 {
		cfg.InputSize = 512
	}

	net := gocv.ReadNet(cfg.Path, "")
	if net.Empty() {
		return nil, errors.Errorf("failed to load model %s", cfg.Path)
	}
	return &Segmenter{cfg: cfg, net: &net}, nil
}

func (s *Segmenter) Name() string { return "cvnet" }

// Close releases the network.
func (s *Segmenter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.net == nil {
		return nil
	}
	err := s.net.Close()
	s.net = nil
	return err
}

func (s *Segmenter) Segment(ctx context.Context, img *image.RGBA) (*segment.Result, error) {
	if err := raster.CheckImage(img); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rgba := raster.ToRGBA(img)
	w, h := rgba.Bounds().Dx(), rgba.Bounds().Dy()
	mat, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC4, rgba.Pix)
	if err != nil {
		return nil, errors.Wrap(err, "failed to wrap image")
	}
	defer mat.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(mat, &bgr, gocv.ColorRGBAToBGR)

	size := s.cfg.InputSize
	blob := gocv.BlobFromImage(bgr, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	s.mu.Lock()
	if s.net == nil {
		s.mu.Unlock()
		return nil, errors.New("segmenter closed")
	}
	s.net.SetInput(blob, "")
	out := s.net.Forward("")
	s.mu.Unlock()
	defer out.Close()

	dims := out.Size()
	if len(dims) != 4 {
		return nil, errors.Errorf("unexpected output shape %v", dims)
	}
	classes, oh, ow := dims[1], dims[2], dims[3]
	scores, err := out.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read output")
	}

	small, coverage := s.argmaxMask(scores, classes, oh, ow)
	mask := raster.Mask{Width: ow, Height: oh, Pix: small}.ResizeNearest(w, h)
	if mask.Empty() {
		return nil, errors.New("model found no countertop pixels")
	}
	return segment.NewResult(mask, coverage, s.Name()), nil
}

// argmaxMask returns a 0/255 mask at the network resolution and the mean
// winning softmax probability over the selected pixels.
func (s *Segmenter) argmaxMask(scores []float32, classes, h, w int) ([]uint8, float64) {
	wanted := make(map[int]bool, len(s.cfg.ClassIDs))
	for _, id := range s.cfg.ClassIDs {
		wanted[id] = true
	}

	plane := h * w
	out := make([]uint8, plane)
	sum, n := 0.0, 0
	for i := 0; i < plane; i++ {
		best, bestScore := 0, scores[i]
		for c := 1; c < classes; c++ {
			if v := scores[c*plane+i]; v > bestScore {
				best, bestScore = c, v
			}
		}
		if !wanted[best] {
			continue
		}
		p := softmaxAt(scores, classes, plane, i, bestScore)
		if p < s.cfg.Threshold {
			continue
		}
		out[i] = 255
		sum += p
		n++
	}
	if n == 0 {
		return out, 0
	}
	return out, sum / float64(n)
}

func softmaxAt(scores []float32, classes, plane, i int, top float32) float64 {
	denom := 0.0
	for c := 0; c < classes; c++ {
		denom += math.Exp(float64(scores[c*plane+i] - top))
	}
	return 1 / denom
}
