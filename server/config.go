package server

import (
	"errors"
	"fmt"
	"time"
)

// Config holds HTTP server configuration
type Config struct {
	Addr string `yaml:"addr" json:"addr"`

	// MaxUploadBytes bounds the request body of audio endpoints
	MaxUploadBytes int64 `yaml:"max_upload_bytes" json:"max_upload_bytes"`

	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Addr:            ":3001",
		MaxUploadBytes:  10 << 20,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// Validate validates the server configuration
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, fmt.Errorf("addr is required"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("max upload bytes must be positive: %d", c.MaxUploadBytes))
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("timeouts must not be negative"))
	}
	return errors.Join(errs...)
}
