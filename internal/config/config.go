// Package config loads juniper-tag settings from a TOML file.
package config

import (
	"errors"
	"io/fs"
	"maps"
	"os"

	"github.com/pelletier/go-toml/v2"

	jerrors "github.com/FocuswithJustin/JuniperTag/core/errors"
)

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = "juniper-tag.toml"

// Defaults.
const (
	DefaultSchemaDir   = "schemas"
	DefaultSchema      = "tei-all.rng"
	DefaultCacheSize   = 16
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
	DefaultQueueBuffer = 16
)

// Config holds application configuration.
type Config struct {
	SchemaDir     string            `toml:"schema_dir"`
	DefaultSchema string            `toml:"default_schema"`
	Profiles      map[string]string `toml:"profiles"`
	CacheSize     int               `toml:"cache_size"`
	LogLevel      string            `toml:"log_level"`
	LogFormat     string            `toml:"log_format"`
	// JournalPath is the SQLite event journal; empty disables journaling.
	JournalPath string `toml:"journal_path"`
	QueueBuffer int    `toml:"queue_buffer"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		SchemaDir:     DefaultSchemaDir,
		DefaultSchema: DefaultSchema,
		Profiles:      map[string]string{"tei-novel": "tei-novel.rng"},
		CacheSize:     DefaultCacheSize,
		LogLevel:      DefaultLogLevel,
		LogFormat:     DefaultLogFormat,
		QueueBuffer:   DefaultQueueBuffer,
	}
}

// Load reads the config file at path. A missing file yields Default().
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, jerrors.NewIO("read config", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, jerrors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Parse decodes TOML data, filling keys it does not set with defaults.
// Profiles in the file are merged over the default profiles.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, &jerrors.ValidationError{Field: "toml", Message: "malformed config", Err: err}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.SchemaDir == "" {
		c.SchemaDir = def.SchemaDir
	}
	if c.DefaultSchema == "" {
		c.DefaultSchema = def.DefaultSchema
	}
	profiles := def.Profiles
	maps.Copy(profiles, c.Profiles)
	c.Profiles = profiles
	if c.CacheSize == 0 {
		c.CacheSize = def.CacheSize
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = def.LogFormat
	}
	if c.QueueBuffer == 0 {
		c.QueueBuffer = def.QueueBuffer
	}
}

// Validate checks values that have no sensible fallback.
func (c *Config) Validate() error {
	if c.CacheSize < 0 {
		return jerrors.NewValidation("cache_size", "must not be negative")
	}
	if c.QueueBuffer < 0 {
		return jerrors.NewValidation("queue_buffer", "must not be negative")
	}
	return nil
}

// Marshal encodes c as TOML.
func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}
