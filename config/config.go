// Package config loads the sonido-voz configuration file.
//
// Every section is optional; omitted keys keep the values from Default.
//
//	log_level: info
//	workers: 4
//	audio:
//	  max_duration: 3s
//	  enable_ffmpeg: true
//	analysis:
//	  pitch_method: yin
//	artifacts:
//	  dir: ./artifacts
//	server:
//	  addr: ":3001"
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-voz/analysis"
	"github.com/RyanBlaney/sonido-voz/features"
	"github.com/RyanBlaney/sonido-voz/logging"
	"github.com/RyanBlaney/sonido-voz/predictor"
	"github.com/RyanBlaney/sonido-voz/server"
	"github.com/RyanBlaney/sonido-voz/transcode"
)

// Config is the top-level configuration
type Config struct {
	LogLevel string `yaml:"log_level"`
	Workers  int    `yaml:"workers"` // 0 = GOMAXPROCS

	Audio    transcode.LoaderConfig `yaml:"audio"`
	Analysis analysis.Config        `yaml:"analysis"`

	// Normalization overrides the units recorded in the artifact manifest
	Normalization *features.Normalization `yaml:"normalization"`

	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Server    server.Config   `yaml:"server"`
}

// ArtifactsConfig locates the trained artifact bundle
type ArtifactsConfig struct {
	// Dir is a bundle directory; empty uses the embedded reference bundle
	Dir string `yaml:"dir"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Audio:    *transcode.DefaultLoaderConfig(),
		Analysis: *analysis.DefaultConfig(),
		Server:   *server.DefaultConfig(),
	}
}

// Load reads the YAML configuration file at path
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over the defaults and validates the result
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate returns a joined error listing every invalid setting
func Validate(cfg *Config) error {
	var errs []error

	if _, ok := logging.ParseLevel(cfg.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}
	if cfg.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative: %d", cfg.Workers))
	}
	if err := cfg.Audio.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("audio: %w", err))
	}
	if err := cfg.Analysis.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("analysis: %w", err))
	} else if cfg.Audio.TargetSampleRate > 0 {
		if err := cfg.Analysis.ValidateRate(cfg.Audio.TargetSampleRate); err != nil {
			errs = append(errs, fmt.Errorf("analysis: %w", err))
		}
	}
	if cfg.Normalization != nil {
		if err := cfg.Normalization.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("normalization: %w", err))
		}
	}
	if err := cfg.Server.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}
	if cfg.Artifacts.Dir != "" {
		if info, err := os.Stat(cfg.Artifacts.Dir); err != nil {
			errs = append(errs, fmt.Errorf("artifacts.dir: %w", err))
		} else if !info.IsDir() {
			errs = append(errs, fmt.Errorf("artifacts.dir %q is not a directory", cfg.Artifacts.Dir))
		}
	}

	return errors.Join(errs...)
}

// Level returns the parsed log level
func (c *Config) Level() logging.Level {
	level, _ := logging.ParseLevel(c.LogLevel)
	return level
}

// PredictorOptions translates the configuration into predictor options
func (c *Config) PredictorOptions() []predictor.Option {
	audio := c.Audio
	an := c.Analysis

	opts := []predictor.Option{
		predictor.WithLoaderConfig(&audio),
		predictor.WithAnalysisConfig(&an),
		predictor.WithWorkers(c.Workers),
	}
	if c.Normalization != nil {
		norm := *c.Normalization
		opts = append(opts, predictor.WithNormalization(&norm))
	}
	if c.Artifacts.Dir != "" {
		opts = append(opts, predictor.WithBundleDir(c.Artifacts.Dir))
	}
	return opts
}
