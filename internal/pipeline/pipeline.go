// Package pipeline runs the full countertop replacement: segmentation,
// texture preparation, perspective mapping, relighting and blending.
package pipeline

import (
	"context"
	"image"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"texswap/internal/codec"
	"texswap/internal/config"
	"texswap/internal/logging"
	"texswap/internal/perspective"
	"texswap/internal/raster"
	"texswap/internal/relight"
	"texswap/internal/segment"
	"texswap/internal/texture"
	"texswap/pkg/geometry"
)

// Metadata reports stage confidences and timing for one replacement.
type Metadata struct {
	SegmentationConfidence float64       `json:"segmentation_confidence"`
	PerspectiveConfidence  float64       `json:"perspective_confidence"`
	LightingConfidence     float64       `json:"lighting_confidence"`
	ProcessingTimeMs       int64         `json:"processing_time_ms"`
	TextureScale           float64       `json:"texture_scale"`
	SegmentationSource     string        `json:"segmentation_source"`
	Quad                   geometry.Quad `json:"quad"`
	DominantColors         []string      `json:"dominant_colors"`
}

// Images holds the decoded artefacts of a replacement. Lighting is nil when
// lighting was not preserved.
type Images struct {
	Final          *image.RGBA
	Mask           raster.Mask
	Texture        *image.RGBA
	Warped         *image.RGBA
	Lighting       *image.RGBA
	BeforeBlending *image.RGBA
}

// Output is the result of ReplaceImages.
type Output struct {
	Images   Images
	Metadata Metadata
}

// Debug holds JPEG-encoded intermediate images. Lighting is empty when
// lighting was not preserved.
type Debug struct {
	OriginalMask     []byte
	ProcessedTexture []byte
	WarpedTexture    []byte
	Lighting         []byte
	BeforeBlending   []byte
}

// Result is the encoded result of Replace.
type Result struct {
	FinalImage []byte
	Debug      Debug
	Metadata   Metadata
}

// Engine wires the stages together. It keeps no state between calls and is
// safe for concurrent use when its Segmenter is.
type Engine struct {
	params    config.Params
	segmenter segment.Segmenter
	textures  *texture.Processor
	mapper    *perspective.Mapper
	relight   *relight.Engine
	logger    *logrus.Logger
}

// Option customises an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	blender relight.Blender
}

// WithBlender replaces the default boundary alpha blend.
func WithBlender(b relight.Blender) Option {
	return func(o *engineOptions) { o.blender = b }
}

// New builds an engine. A nil segmenter uses the edge heuristic alone.
func New(params config.Params, seg segment.Segmenter, logger *logrus.Logger, opts ...Option) *Engine {
	logger = logging.OrDiscard(logger)
	var o engineOptions
	for _, opt := range opts {
		opt(&o)
	}
	if seg == nil {
		seg = segment.NewHeuristic(params.Segment)
	}
	return &Engine{
		params:    params,
		segmenter: seg,
		textures:  texture.NewProcessor(params.Texture, logger),
		mapper:    perspective.NewMapper(params.Geometry, logger),
		relight:   relight.NewEngine(params.Relight, o.blender, logger),
		logger:    logger,
	}
}

// Replace decodes both images, runs the pipeline and encodes the final and
// debug images as JPEG at opts.OutputQuality.
func (e *Engine) Replace(ctx context.Context, kitchen, material []byte, opts config.Options) (*Result, error) {
	k, err := codec.Decode(kitchen)
	if err != nil {
		return nil, errors.Wrap(err, "kitchen image")
	}
	m, err := codec.Decode(material)
	if err != nil {
		return nil, errors.Wrap(err, "material sample")
	}

	out, err := e.ReplaceImages(ctx, k, m, opts)
	if err != nil {
		return nil, err
	}
	return encode(out, opts.OutputQuality)
}

// ReplaceImages runs the pipeline on decoded images.
func (e *Engine) ReplaceImages(ctx context.Context, kitchen, material *image.RGBA, opts config.Options) (*Output, error) {
	start := time.Now()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := raster.CheckImage(kitchen); err != nil {
		return nil, errors.Wrap(err, "kitchen image")
	}

	tex, err := e.textures.Process(material)
	if err != nil {
		return nil, errors.Wrap(err, "texture replacement failed: material sample")
	}
	return e.run(ctx, kitchen, tex, opts, start)
}

// run executes every stage after texture processing.
func (e *Engine) run(ctx context.Context, kitchen *image.RGBA, tex *texture.Processed, opts config.Options, start time.Time) (*Output, error) {
	img := codec.FitWithin(raster.ToRGBA(kitchen), opts.MaxOutputSize)
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	log := e.logger.WithFields(logrus.Fields{"width": w, "height": h})
	log.Info("Starting texture replacement")

	seg, err := e.segmenter.Segment(ctx, img)
	if err != nil {
		return nil, errors.Wrap(err, "texture replacement failed: segmentation")
	}
	log.WithFields(logrus.Fields{
		"stage":      "segmentation",
		"source":     seg.Source,
		"confidence": seg.Confidence,
	}).Info("Countertop segmented")

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	persp, err := e.mapper.Detect(img, seg.Mask)
	if err != nil {
		return nil, errors.Wrap(err, "texture replacement failed: perspective")
	}
	log.WithFields(logrus.Fields{
		"stage":      "perspective",
		"confidence": persp.Confidence,
	}).Info("Perspective detected")

	warped, err := perspective.Warp(tex.Tileable, persp.Homography, w, h)
	if err != nil {
		return nil, errors.Wrap(err, "texture replacement failed: warp")
	}

	toBlend := warped
	var lighting *image.RGBA
	lightConf := 0.0
	if opts.PreserveLighting {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		comp, err := e.relight.ExtractLighting(img, seg.Mask)
		if err != nil {
			return nil, errors.Wrap(err, "texture replacement failed: lighting")
		}
		relit, err := e.relight.ApplyLighting(warped, comp, w, h)
		if err != nil {
			return nil, errors.Wrap(err, "texture replacement failed: lighting")
		}
		toBlend, lighting, lightConf = relit.Relit, relit.Shading, relit.Confidence
		log.WithFields(logrus.Fields{
			"stage":      "lighting",
			"confidence": lightConf,
		}).Info("Lighting applied")
	}

	feathered := relight.FeatheredMask(seg.Mask, w, h, opts.FeatherRadius)
	final, err := e.relight.BlendSeamlessly(img, toBlend, feathered, w, h)
	if err != nil {
		return nil, errors.Wrap(err, "texture replacement failed: blending")
	}

	elapsed := time.Since(start)
	log.WithField("duration", elapsed).Info("Pipeline completed")

	return &Output{
		Images: Images{
			Final:          final,
			Mask:           seg.Mask,
			Texture:        tex.Tileable,
			Warped:         warped,
			Lighting:       lighting,
			BeforeBlending: toBlend,
		},
		Metadata: Metadata{
			SegmentationConfidence: seg.Confidence,
			PerspectiveConfidence:  persp.Confidence,
			LightingConfidence:     lightConf,
			ProcessingTimeMs:       elapsed.Milliseconds(),
			TextureScale:           tex.Scale,
			SegmentationSource:     seg.Source,
			Quad:                   persp.Quad,
			DominantColors:         texture.HexColors(tex.Metadata.DominantColors),
		},
	}, nil
}

func encode(out *Output, quality int) (*Result, error) {
	var res Result
	var err error
	enc := func(img image.Image) []byte {
		if err != nil || img == nil {
			return nil
		}
		var data []byte
		data, err = codec.EncodeJPEG(img, quality)
		return data
	}

	res.FinalImage = enc(out.Images.Final)
	res.Debug.OriginalMask = enc(out.Images.Mask.Visualize())
	res.Debug.ProcessedTexture = enc(out.Images.Texture)
	res.Debug.WarpedTexture = enc(out.Images.Warped)
	if out.Images.Lighting != nil {
		res.Debug.Lighting = enc(out.Images.Lighting)
	}
	res.Debug.BeforeBlending = enc(out.Images.BeforeBlending)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode output")
	}
	res.Metadata = out.Metadata
	return &res, nil
}

// BatchItem is one successful batch result. Index is the position of its
// kitchen image in the input.
type BatchItem struct {
	Index int
	*Result
}

// Batch replaces the countertop in each kitchen image with the same material.
// The material is processed once. Failed images are logged and skipped, so the
// result holds only the successes, in input order.
func (e *Engine) Batch(ctx context.Context, kitchens [][]byte, material []byte, opts config.Options) []BatchItem {
	e.logger.WithField("images", len(kitchens)).Info("Starting batch processing")

	results := make([]BatchItem, 0, len(kitchens))
	if err := opts.Validate(); err != nil {
		e.logger.WithError(err).Error("Invalid batch options")
		return results
	}
	m, err := codec.Decode(material)
	if err != nil {
		e.logger.WithError(err).Error("Failed to decode material sample")
		return results
	}
	tex, err := e.textures.Process(m)
	if err != nil {
		e.logger.WithError(err).Error("Failed to process material sample")
		return results
	}

	for i, data := range kitchens {
		if ctx.Err() != nil {
			e.logger.WithError(ctx.Err()).Warn("Batch cancelled")
			break
		}
		log := e.logger.WithField("image", i+1)
		log.Infof("Processing image %d/%d", i+1, len(kitchens))

		res, err := e.replaceOne(ctx, data, tex, opts)
		if err != nil {
			log.WithError(err).Error("Failed to process image")
			continue
		}
		results = append(results, BatchItem{Index: i, Result: res})
	}

	e.logger.WithFields(logrus.Fields{
		"succeeded": len(results),
		"total":     len(kitchens),
	}).Info("Batch processing completed")
	return results
}

func (e *Engine) replaceOne(ctx context.Context, kitchen []byte, tex *texture.Processed, opts config.Options) (*Result, error) {
	start := time.Now()
	img, err := codec.Decode(kitchen)
	if err != nil {
		return nil, errors.Wrap(err, "kitchen image")
	}
	out, err := e.run(ctx, img, tex, opts, start)
	if err != nil {
		return nil, err
	}
	return encode(out, opts.OutputQuality)
}
