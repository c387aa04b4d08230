package config

import (
	"sort"

	"github.com/spf13/viper"
)

// Preset is a named bundle of numeric options.
type Preset struct {
	Name             string
	CompressionLevel int
	JPEGQuality      int
	WebPQuality      int
	ProgressiveJPEG  bool
}

// Built-in presets.
var presets = map[string]Preset{
	"lossless": {
		Name:             "lossless",
		CompressionLevel: 9,
		JPEGQuality:      95,
		WebPQuality:      100,
	},
	"balanced": {
		Name:             "balanced",
		CompressionLevel: 6,
		JPEGQuality:      80,
		WebPQuality:      80,
	},
	"aggressive": {
		Name:             "aggressive",
		CompressionLevel: 9,
		JPEGQuality:      65,
		WebPQuality:      60,
		ProgressiveJPEG:  true,
	},
}

// GetPreset returns a preset by name.
func GetPreset(name string) (Preset, bool) {
	p, ok := presets[name]
	return p, ok
}

// PresetNames lists the built-in presets in alphabetical order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// apply sets the preset's values as viper defaults so that anything the
// user configured explicitly still wins.
func (p Preset) apply(v *viper.Viper) {
	v.SetDefault("compression_level", p.CompressionLevel)
	v.SetDefault("jpeg_quality", p.JPEGQuality)
	v.SetDefault("webp_quality", p.WebPQuality)
	v.SetDefault("progressive_jpeg", p.ProgressiveJPEG)
}
