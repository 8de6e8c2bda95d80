package config

import "github.com/pkg/errors"

// Options are the per-call knobs of a replacement.
type Options struct {
	FeatherRadius    int  `mapstructure:"feather_radius"`
	PreserveLighting bool `mapstructure:"preserve_lighting"`
	OutputQuality    int  `mapstructure:"output_quality"`
	MaxOutputSize    int  `mapstructure:"max_output_size"`
}

// DefaultOptions returns radius 8, lighting preserved, quality 90, 2048px cap.
func DefaultOptions() Options {
	return Options{
		FeatherRadius:    8,
		PreserveLighting: true,
		OutputQuality:    90,
		MaxOutputSize:    2048,
	}
}

// Validate rejects out-of-range options.
func (o Options) Validate() error {
	if o.FeatherRadius < 0 {
		return errors.Errorf("feather radius must be >= 0, got %d", o.FeatherRadius)
	}
	if o.OutputQuality < 0 || o.OutputQuality > 100 {
		return errors.Errorf("output quality must be within 0-100, got %d", o.OutputQuality)
	}
	if o.MaxOutputSize < 1 {
		return errors.Errorf("max output size must be >= 1, got %d", o.MaxOutputSize)
	}
	return nil
}
