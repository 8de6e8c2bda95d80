// Package relight separates the scene lighting over the countertop from its
// surface colour and re-applies that lighting to the replacement texture.
package relight

import (
	"image"
	"math"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"texswap/internal/config"
	"texswap/internal/logging"
	"texswap/internal/raster"
	"texswap/pkg/colorutil"
)

// Components is a shading/reflectance decomposition over a mask.
type Components struct {
	Shading     raster.Plane
	Reflectance raster.Plane
	Confidence  float64

	// Support is the mask the decomposition was computed over.
	Support raster.Mask
}

// Gain returns the shading relative to its mean inside the support, so a
// uniformly lit region has gain 1 everywhere. Pixels outside the support get 1.
func (c *Components) Gain() raster.Plane {
	gain := raster.NewPlane(c.Shading.Width, c.Shading.Height)
	var inside []float64
	for i, v := range c.Support.Pix {
		if v > 0 {
			inside = append(inside, c.Shading.Pix[i])
		}
	}
	mean := 1.0
	if len(inside) > 0 {
		mean = stat.Mean(inside, nil)
	}
	if mean <= 0 {
		mean = 1
	}
	for i, v := range c.Support.Pix {
		if v > 0 {
			gain.Pix[i] = c.Shading.Pix[i] / mean
		} else {
			gain.Pix[i] = 1
		}
	}
	return gain
}

// Result is a relit texture with a visualisation of the applied shading.
type Result struct {
	Relit      *image.RGBA
	Shading    *image.RGBA
	Confidence float64
}

// Engine runs the relighting stage.
type Engine struct {
	params  config.RelightParams
	blender Blender
	logger  *logrus.Logger
}

// NewEngine returns an engine blending with b, or with a BoundaryBlender when
// b is nil.
func NewEngine(params config.RelightParams, b Blender, logger *logrus.Logger) *Engine {
	if b == nil {
		b = BoundaryBlender{}
	}
	return &Engine{params: params, blender: b, logger: logging.OrDiscard(logger)}
}

// ExtractLighting estimates per-pixel shading inside mask with a mask-aware
// multi-scale Retinex. Illumination is the average of log-domain blurs at each
// configured sigma, computed per channel and combined; reflectance is the
// channel mean divided by shading. Confidence measures how well R*S
// reconstructs the input.
func (e *Engine) ExtractLighting(img *image.RGBA, mask raster.Mask) (*Components, error) {
	if err := raster.CheckImage(img); err != nil {
		return nil, err
	}
	if !mask.Matches(img) {
		return nil, errors.Wrapf(raster.ErrDimensionMismatch, "mask %dx%d, image %v", mask.Width, mask.Height, img.Bounds().Size())
	}

	w, h := mask.Width, mask.Height
	comp := &Components{
		Shading:     raster.NewPlane(w, h),
		Reflectance: raster.NewPlane(w, h),
		Support:     mask.Clone(),
	}
	if mask.Empty() {
		for i := range comp.Shading.Pix {
			comp.Shading.Pix[i] = 1
		}
		return comp, nil
	}

	weights := mask.Weights()
	channels := raster.Channels(img)
	logSum := raster.NewPlane(w, h)
	for _, ch := range channels {
		logs := raster.NewPlane(w, h)
		for i, v := range ch.Pix {
			logs.Pix[i] = math.Log(math.Max(1, v))
		}
		for _, sigma := range e.params.RetinexSigmas {
			blurred := raster.Blur(logs, weights, sigma)
			for i, v := range blurred.Pix {
				logSum.Pix[i] += v
			}
		}
	}

	n := float64(len(channels) * len(e.params.RetinexSigmas))
	floor := e.params.ReflectanceFloor
	var residuals []float64
	for i := range logSum.Pix {
		s := math.Exp(logSum.Pix[i] / n)
		intensity := (channels[0].Pix[i] + channels[1].Pix[i] + channels[2].Pix[i]) / 3
		r := math.Max(floor, intensity/math.Max(floor, s))
		comp.Shading.Pix[i] = s
		comp.Reflectance.Pix[i] = r
		if mask.Pix[i] > 0 {
			residuals = append(residuals, math.Abs(r*s-intensity))
		}
	}
	comp.Confidence = math.Max(0, 1-stat.Mean(residuals, nil)/255)

	e.logger.WithFields(logrus.Fields{
		"stage":      "lighting",
		"pixels":     len(residuals),
		"confidence": comp.Confidence,
	}).Debug("Lighting extracted")
	return comp, nil
}

// ApplyLighting resizes tex to w x h and multiplies its colour by the
// relative shading of comp. Alpha is preserved.
func (e *Engine) ApplyLighting(tex *image.RGBA, comp *Components, w, h int) (*Result, error) {
	if err := raster.CheckImage(tex); err != nil {
		return nil, err
	}
	if comp == nil {
		return nil, errors.New("no lighting components")
	}

	src := raster.Resize(tex, w, h)
	gain := comp.Gain().Resize(w, h)
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	raster.ParallelRows(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				g := gain.Pix[y*w+x]
				o := src.PixOffset(x, y)
				out.Pix[o] = colorutil.Clamp8(float64(src.Pix[o]) * g)
				out.Pix[o+1] = colorutil.Clamp8(float64(src.Pix[o+1]) * g)
				out.Pix[o+2] = colorutil.Clamp8(float64(src.Pix[o+2]) * g)
				out.Pix[o+3] = src.Pix[o+3]
			}
		}
	})

	return &Result{
		Relit:      out,
		Shading:    comp.Shading.Resize(w, h).Visualize(),
		Confidence: comp.Confidence,
	}, nil
}

// BlendSeamlessly composites overlay onto base through mask at w x h,
// resizing any input that does not match.
func (e *Engine) BlendSeamlessly(base, overlay *image.RGBA, mask raster.Mask, w, h int) (*image.RGBA, error) {
	if err := raster.CheckImage(base); err != nil {
		return nil, err
	}
	if err := raster.CheckImage(overlay); err != nil {
		return nil, err
	}
	return e.blender.Blend(
		raster.Resize(base, w, h),
		raster.Resize(overlay, w, h),
		mask.ResizeNearest(w, h),
	)
}
