// Package config loads imgopt options from file, environment and flags.
//
// Numeric options are clamped to their valid range instead of being
// rejected: a compression level of 42 becomes 9, a JPEG quality of 3
// becomes 10. Only the ambient settings (log level, stats driver) are
// validated with errors.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// Valid ranges for the numeric options.
const (
	MinCompressionLevel = 0
	MaxCompressionLevel = 9
	MinJPEGQuality      = 10
	MaxJPEGQuality      = 95
	MinWebPQuality      = 1
	MaxWebPQuality      = 100
)

// Config is the fully resolved option set handed to the engine.
type Config struct {
	AutoOptimize     bool `mapstructure:"auto_optimize"`
	CompressionLevel int  `mapstructure:"compression_level"`
	JPEGQuality      int  `mapstructure:"jpeg_quality"`
	WebPQuality      int  `mapstructure:"webp_quality"`
	ProgressiveJPEG  bool `mapstructure:"progressive_jpeg"`
	BackupOriginals  bool `mapstructure:"backup_originals"`
	ConvertWebP      bool `mapstructure:"convert_webp"`

	Preset string      `mapstructure:"preset"`
	Stats  StatsConfig `mapstructure:"stats"`
	Log    LogConfig   `mapstructure:"log"`
	Tools  ToolsConfig `mapstructure:"tools"`
	Bulk   BulkConfig  `mapstructure:"bulk"`
}

// StatsConfig selects the stats store.
type StatsConfig struct {
	Driver string `mapstructure:"driver"` // "sqlite" or "pgx"
	DSN    string `mapstructure:"dsn"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ToolsConfig overrides external binary locations. Empty means PATH lookup.
type ToolsConfig struct {
	Magick string `mapstructure:"magick"`
	CWebP  string `mapstructure:"cwebp"`
}

// BulkConfig tunes the bulk runner.
type BulkConfig struct {
	Workers int `mapstructure:"workers"`
}

// Default returns the options a fresh install starts with.
func Default() Config {
	return Config{
		AutoOptimize:     true,
		CompressionLevel: 6,
		JPEGQuality:      80,
		WebPQuality:      80,
		ProgressiveJPEG:  false,
		BackupOriginals:  true,
		ConvertWebP:      false,
		Stats:            StatsConfig{Driver: "sqlite", DSN: "imgopt.db"},
		Log:              LogConfig{Level: "info", Format: "text"},
		Bulk:             BulkConfig{Workers: 1},
	}
}

// Load reads configuration from cfgFile (or the default search path),
// IMGOPT_* environment variables and the given viper instance's bound
// flags. Pass nil to use a fresh viper.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".imgopt")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/imgopt")
	}

	v.SetEnvPrefix("IMGOPT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// Presets fill in numeric options the user did not set explicitly.
	if name := v.GetString("preset"); name != "" {
		p, ok := GetPreset(name)
		if !ok {
			return nil, fmt.Errorf("unknown preset %q", name)
		}
		p.apply(v)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Clamp()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("auto_optimize", d.AutoOptimize)
	v.SetDefault("compression_level", d.CompressionLevel)
	v.SetDefault("jpeg_quality", d.JPEGQuality)
	v.SetDefault("webp_quality", d.WebPQuality)
	v.SetDefault("progressive_jpeg", d.ProgressiveJPEG)
	v.SetDefault("backup_originals", d.BackupOriginals)
	v.SetDefault("convert_webp", d.ConvertWebP)

	v.SetDefault("stats.driver", d.Stats.Driver)
	v.SetDefault("stats.dsn", d.Stats.DSN)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("tools.magick", "")
	v.SetDefault("tools.cwebp", "")
	v.SetDefault("bulk.workers", d.Bulk.Workers)
}

// Clamp forces every numeric option into its valid range.
func (c *Config) Clamp() {
	c.CompressionLevel = ClampCompressionLevel(c.CompressionLevel)
	c.JPEGQuality = ClampJPEGQuality(c.JPEGQuality)
	c.WebPQuality = ClampWebPQuality(c.WebPQuality)
	if c.Bulk.Workers <= 0 {
		c.Bulk.Workers = runtime.NumCPU()
	}
}

func (c *Config) validate() error {
	switch c.Stats.Driver {
	case "sqlite", "pgx":
	default:
		return fmt.Errorf("invalid stats driver: %s (must be sqlite or pgx)", c.Stats.Driver)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Log.Format)
	}
	return nil
}

// ClampCompressionLevel limits a PNG compression level to 0-9.
func ClampCompressionLevel(n int) int { return clamp(n, MinCompressionLevel, MaxCompressionLevel) }

// ClampJPEGQuality limits a JPEG quality to 10-95.
func ClampJPEGQuality(n int) int { return clamp(n, MinJPEGQuality, MaxJPEGQuality) }

// ClampWebPQuality limits a WebP quality to 1-100.
func ClampWebPQuality(n int) int { return clamp(n, MinWebPQuality, MaxWebPQuality) }

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
