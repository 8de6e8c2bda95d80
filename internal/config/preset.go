package config

import (
	"sort"

	"github.com/pkg/errors"
)

// Preset names accepted by ApplyPreset.
const (
	PresetBalanced = "balanced"
	PresetSpeed    = "speed"
	PresetQuality  = "quality"
)

var presets = map[string]func(*Config){
	PresetBalanced: func(*Config) {},
	PresetSpeed: func(c *Config) {
		c.Options.MaxOutputSize = 1024
		c.Options.FeatherRadius = 4
		c.Params.Texture.MaxTileSize = 512
		c.Params.Relight.RetinexSigmas = []float64{15, 80}
		c.Params.Geometry.MaxCorners = 12
	},
	PresetQuality: func(c *Config) {
		c.Options.MaxOutputSize = 4096
		c.Options.FeatherRadius = 12
		c.Options.OutputQuality = 95
		c.Params.Texture.MaxTileSize = 2048
		c.Params.Geometry.MaxCorners = 40
	},
}

// Presets lists the preset names in sorted order.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyPreset overwrites the settings a preset controls. An empty name is
// the balanced preset.
func ApplyPreset(c *Config, name string) error {
	if name == "" {
		name = PresetBalanced
	}
	apply, ok := presets[name]
	if !ok {
		return errors.Errorf("unknown preset %q (want one of %v)", name, Presets())
	}
	apply(c)
	return nil
}
