package config

import "time"

// Params carries every heuristic constant of the pipeline. Stages take the
// sub-struct they need through their constructors.
type Params struct {
	Segment  SegmentParams  `mapstructure:"segment"`
	Texture  TextureParams  `mapstructure:"texture"`
	Geometry GeometryParams `mapstructure:"geometry"`
	Relight  RelightParams  `mapstructure:"relight"`
	Quality  QualityParams  `mapstructure:"quality"`
}

// SegmentParams tunes the edge-based fallback segmenter.
type SegmentParams struct {
	EdgeThreshold      uint8   `mapstructure:"edge_threshold"`
	SearchBandTop      float64 `mapstructure:"search_band_top"`
	SearchBandBottom   float64 `mapstructure:"search_band_bottom"`
	FallbackConfidence float64 `mapstructure:"fallback_confidence"`
	// Flood-filled regions outside this area fraction are discarded.
	MinRegionFraction float64 `mapstructure:"min_region_fraction"`
	MaxRegionFraction float64 `mapstructure:"max_region_fraction"`
}

type TextureParams struct {
	MinTileSize            int     `mapstructure:"min_tile_size"`
	MaxTileSize            int     `mapstructure:"max_tile_size"`
	TileBlendFraction      float64 `mapstructure:"tile_blend_fraction"`
	EdgeThreshold          uint8   `mapstructure:"edge_threshold"`
	ScaleSampleLimit       int     `mapstructure:"scale_sample_limit"`
	ScaleDivisor           float64 `mapstructure:"scale_divisor"`
	ScaleMin               float64 `mapstructure:"scale_min"`
	ScaleMax               float64 `mapstructure:"scale_max"`
	DefaultFeatureDistance float64 `mapstructure:"default_feature_distance"`
	DominantColorCount     int     `mapstructure:"dominant_color_count"`
	ColorQuantStep         int     `mapstructure:"color_quant_step"`
	RetinexSigmaDivisor    float64 `mapstructure:"retinex_sigma_divisor"`
}

type GeometryParams struct {
	HarrisK         float64 `mapstructure:"harris_k"`
	HarrisThreshold float64 `mapstructure:"harris_threshold"`
	HarrisWindow    int     `mapstructure:"harris_window"`
	MaxCorners      int     `mapstructure:"max_corners"`
	PreferredAspect float64 `mapstructure:"preferred_aspect"`
	AreaWeight      float64 `mapstructure:"area_weight"`
	AspectWeight    float64 `mapstructure:"aspect_weight"`
	DegenerateDet   float64 `mapstructure:"degenerate_det"`
}

type RelightParams struct {
	RetinexSigmas    []float64 `mapstructure:"retinex_sigmas"`
	ReflectanceFloor float64   `mapstructure:"reflectance_floor"`
}

// QualityParams weights the stage confidences in the overall score and sets
// the thresholds below which a recommendation is emitted.
type QualityParams struct {
	SegmentationWeight float64       `mapstructure:"segmentation_weight"`
	PerspectiveWeight  float64       `mapstructure:"perspective_weight"`
	LightingWeight     float64       `mapstructure:"lighting_weight"`
	BlendingWeight     float64       `mapstructure:"blending_weight"`
	SegmentationMin    float64       `mapstructure:"segmentation_min"`
	PerspectiveMin     float64       `mapstructure:"perspective_min"`
	LightingMin        float64       `mapstructure:"lighting_min"`
	OverallMin         float64       `mapstructure:"overall_min"`
	FastProcessing     time.Duration `mapstructure:"fast_processing"`
}

// DefaultParams returns the tuned defaults.
func DefaultParams() Params {
	return Params{
		Segment: SegmentParams{
			EdgeThreshold:      50,
			SearchBandTop:      0.30,
			SearchBandBottom:   0.80,
			FallbackConfidence: 0.8,
			MinRegionFraction:  0.002,
			MaxRegionFraction:  0.6,
		},
		Texture: TextureParams{
			MinTileSize:            256,
			MaxTileSize:            1024,
			TileBlendFraction:      0.10,
			EdgeThreshold:          50,
			ScaleSampleLimit:       100,
			ScaleDivisor:           50,
			ScaleMin:               0.1,
			ScaleMax:               10,
			DefaultFeatureDistance: 50,
			DominantColorCount:     5,
			ColorQuantStep:         16,
			RetinexSigmaDivisor:    3,
		},
		Geometry: GeometryParams{
			HarrisK:         0.04,
			HarrisThreshold: 0.01,
			HarrisWindow:    1,
			MaxCorners:      20,
			PreferredAspect: 1.5,
			AreaWeight:      0.6,
			AspectWeight:    0.4,
			DegenerateDet:   1e-10,
		},
		Relight: RelightParams{
			RetinexSigmas:    []float64{15, 80, 250},
			ReflectanceFloor: 0.1,
		},
		Quality: QualityParams{
			SegmentationWeight: 0.3,
			PerspectiveWeight:  0.3,
			LightingWeight:     0.2,
			BlendingWeight:     0.2,
			SegmentationMin:    0.7,
			PerspectiveMin:     0.6,
			LightingMin:        0.5,
			OverallMin:         0.6,
			FastProcessing:     10 * time.Second,
		},
	}
}
