// Package config provides YAML configuration loading and validation for the
// lantern development server binary.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lanternhq/lantern/server"
)

// Config is the top-level configuration structure for the lantern binary.
type Config struct {
	// ListenAddr is the TCP listen address (e.g. ":8080"). Defaults to
	// ":8080" when omitted.
	ListenAddr string `yaml:"listen_addr"`

	// InputBufferSize is the per-connection read buffer size in bytes.
	// Must be at least 8192 so a maximal header field fits. Defaults to
	// 8192 when omitted.
	InputBufferSize int `yaml:"input_buffer_size"`

	// OutputBufferSize is the per-connection write buffer size in bytes.
	// Defaults to 65536 when omitted.
	OutputBufferSize int `yaml:"output_buffer_size"`

	// MaxRequestBodySize bounds request bodies declared via Content-Length.
	// Defaults to 10000000 when omitted.
	MaxRequestBodySize int64 `yaml:"max_request_body_size"`

	// FlushChunks flushes the connection after every response chunk, as
	// needed for server-sent events.
	FlushChunks bool `yaml:"flush_chunks"`

	// LogLevel sets the minimum log severity: "debug", "info", "warn", or
	// "error". Defaults to "info" when omitted.
	LogLevel string `yaml:"log_level"`

	// MIMETypes maps additional file extensions (without the dot) to media
	// types, extending the server's built-in table.
	MIMETypes map[string]string `yaml:"mime_types"`

	// CompressibleTypes lists additional media types worth gzip
	// compression.
	CompressibleTypes []string `yaml:"compressible_types"`
}

// Load reads and parses the YAML configuration file at path, applies
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.InputBufferSize == 0 {
		c.InputBufferSize = 8 * 1024
	}
	if c.OutputBufferSize == 0 {
		c.OutputBufferSize = 64 * 1024
	}
	if c.MaxRequestBodySize == 0 {
		c.MaxRequestBodySize = 10_000_000
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.InputBufferSize < 8*1024 {
		return fmt.Errorf("input_buffer_size must be at least 8192, got %d", c.InputBufferSize)
	}
	if c.OutputBufferSize < 4*1024 {
		return fmt.Errorf("output_buffer_size must be at least 4096, got %d", c.OutputBufferSize)
	}
	if c.MaxRequestBodySize < 0 {
		return fmt.Errorf("max_request_body_size must not be negative, got %d", c.MaxRequestBodySize)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	return nil
}

// ServerOptions maps the configuration onto engine options.
func (c *Config) ServerOptions() server.Options {
	return server.Options{
		Addr:               c.ListenAddr,
		InputBufferSize:    c.InputBufferSize,
		OutputBufferSize:   c.OutputBufferSize,
		MaxRequestBodySize: c.MaxRequestBodySize,
		FlushChunks:        c.FlushChunks,
		MIMETypes:          c.MIMETypes,
		CompressibleTypes:  c.CompressibleTypes,
	}
}
