package pipeline

import (
	"time"

	"texswap/internal/config"
)

// Recommendation texts emitted by AssessQuality.
const (
	RecommendSegmentation = "Low segmentation quality detected. Consider using a clearer kitchen image with visible countertops."
	RecommendPerspective  = "Perspective detection struggled. Try using an image with more defined countertop edges."
	RecommendLighting     = "Lighting extraction quality is low. The result may look less realistic."
	RecommendOverall      = "Overall quality is below optimal. Consider using higher quality input images."
)

// Breakdown holds the per-stage scores that make up the overall score.
type Breakdown struct {
	Segmentation float64 `json:"segmentation"`
	Perspective  float64 `json:"perspective"`
	Lighting     float64 `json:"lighting"`
	Blending     float64 `json:"blending"`
}

// Quality is a heuristic assessment of a replacement.
type Quality struct {
	OverallScore    float64   `json:"overall_score"`
	Breakdown       Breakdown `json:"breakdown"`
	Recommendations []string  `json:"recommendations"`
}

// AssessQuality scores a replacement from its metadata. Blending has no
// direct measure, so it scores 0.8 plus 0.2 for runs faster than
// FastProcessing.
func AssessQuality(meta Metadata, p config.QualityParams) Quality {
	b := Breakdown{
		Segmentation: meta.SegmentationConfidence,
		Perspective:  meta.PerspectiveConfidence,
		Lighting:     meta.LightingConfidence,
		Blending:     0.8,
	}
	if time.Duration(meta.ProcessingTimeMs)*time.Millisecond < p.FastProcessing {
		b.Blending = 1.0
	}

	q := Quality{
		Breakdown:       b,
		Recommendations: []string{},
	}
	if b.Segmentation < p.SegmentationMin {
		q.Recommendations = append(q.Recommendations, RecommendSegmentation)
	}
	if b.Perspective < p.PerspectiveMin {
		q.Recommendations = append(q.Recommendations, RecommendPerspective)
	}
	if b.Lighting < p.LightingMin {
		q.Recommendations = append(q.Recommendations, RecommendLighting)
	}

	q.OverallScore = b.Segmentation*p.SegmentationWeight +
		b.Perspective*p.PerspectiveWeight +
		b.Lighting*p.LightingWeight +
		b.Blending*p.BlendingWeight
	if q.OverallScore < p.OverallMin {
		q.Recommendations = append(q.Recommendations, RecommendOverall)
	}
	return q
}

// AssessQuality scores meta with the engine's quality parameters.
func (e *Engine) AssessQuality(meta Metadata) Quality {
	return AssessQuality(meta, e.params.Quality)
}
