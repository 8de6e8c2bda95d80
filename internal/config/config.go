// Package config loads pipeline settings from YAML and the environment.
package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// DefaultPath is the file New looks for in the working directory.
const DefaultPath = "texswap.yaml"

// EnvPrefix prefixes environment overrides, e.g. TEXSWAP_LOG_LEVEL.
const EnvPrefix = "TEXSWAP"

type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Segmenter SegmenterConfig `mapstructure:"segmenter"`
	Options   Options         `mapstructure:"options"`
	Params    Params          `mapstructure:"params"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

// SegmenterConfig selects and configures the segmentation strategies.
// Strategies are tried in order; "heuristic" should come last.
type SegmenterConfig struct {
	Strategies []string     `mapstructure:"strategies"`
	Remote     RemoteConfig `mapstructure:"remote"`
	Model      ModelConfig  `mapstructure:"model"`
}

type RemoteConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Token    string        `mapstructure:"token"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Labels   []string      `mapstructure:"labels"`
}

type ModelConfig struct {
	Path      string  `mapstructure:"path"`
	InputSize int     `mapstructure:"input_size"`
	ClassIDs  []int   `mapstructure:"class_ids"`
	Threshold float64 `mapstructure:"threshold"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Segmenter: SegmenterConfig{
			Strategies: []string{"heuristic"},
			Remote: RemoteConfig{
				Timeout: 30 * time.Second,
				Labels:  []string{"countertop", "counter", "table"},
			},
			Model: ModelConfig{
				InputSize: 512,
				Threshold: 0.5,
			},
		},
		Options: DefaultOptions(),
		Params:  DefaultParams(),
	}
}

// Load reads configPath (YAML) with environment overrides applied.
func Load(configPath string) (*Config, error) {
	return LoadWith(viper.New(), configPath)
}

// LoadWith loads into an existing viper instance so callers can bind flags
// first. An empty configPath skips the file and uses defaults plus env.
func LoadWith(v *viper.Viper, configPath string) (*Config, error) {
	return LoadPreset(v, configPath, PresetBalanced)
}

// LoadPreset is LoadWith starting from a preset instead of the defaults. The
// file, environment and bound flags still override preset values.
func LoadPreset(v *viper.Viper, configPath, preset string) (*Config, error) {
	base := Default()
	if err := ApplyPreset(base, preset); err != nil {
		return nil, err
	}
	setDefaults(v, base)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	// Params not named in the file keep their preset values.
	cfg := base
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Options.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid options")
	}
	return cfg, nil
}

// New loads DefaultPath, falling back to defaults when it cannot be read.
func New() *Config {
	cfg, err := Load(DefaultPath)
	if err != nil {
		return Default()
	}
	return cfg
}

// setDefaults registers every leaf of d under its mapstructure key.
// Unmarshal only looks up environment variables for registered keys.
func setDefaults(v *viper.Viper, d *Config) {
	registerDefaults(v, "", reflect.ValueOf(d).Elem())
}

func registerDefaults(v *viper.Viper, prefix string, val reflect.Value) {
	t := val.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		if f.Type.Kind() == reflect.Struct {
			registerDefaults(v, key, val.Field(i))
			continue
		}
		v.SetDefault(key, val.Field(i).Interface())
	}
}
