package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "imgopt.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "{}\n")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.True(t, cfg.AutoOptimize)
	assert.Equal(t, 6, cfg.CompressionLevel)
	assert.Equal(t, 80, cfg.JPEGQuality)
	assert.Equal(t, 80, cfg.WebPQuality)
	assert.False(t, cfg.ProgressiveJPEG)
	assert.True(t, cfg.BackupOriginals)
	assert.False(t, cfg.ConvertWebP)
	assert.Equal(t, "sqlite", cfg.Stats.Driver)
	assert.Equal(t, 1, cfg.Bulk.Workers)
}

func TestLoad_ClampsOutOfRange(t *testing.T) {
	path := writeConfig(t, `
compression_level: 42
jpeg_quality: 3
webp_quality: 400
`)

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, MaxCompressionLevel, cfg.CompressionLevel)
	assert.Equal(t, MinJPEGQuality, cfg.JPEGQuality)
	assert.Equal(t, MaxWebPQuality, cfg.WebPQuality)
}

func TestLoad_NegativeValuesClampLow(t *testing.T) {
	path := writeConfig(t, `
compression_level: -1
jpeg_quality: 200
webp_quality: 0
`)

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.CompressionLevel)
	assert.Equal(t, 95, cfg.JPEGQuality)
	assert.Equal(t, 1, cfg.WebPQuality)
}

func TestLoad_PresetYieldsToExplicitKeys(t *testing.T) {
	path := writeConfig(t, `
preset: aggressive
jpeg_quality: 70
`)

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.CompressionLevel)
	assert.Equal(t, 70, cfg.JPEGQuality)
	assert.Equal(t, 60, cfg.WebPQuality)
	assert.True(t, cfg.ProgressiveJPEG)
}

func TestLoad_UnknownPreset(t *testing.T) {
	path := writeConfig(t, "preset: nope\n")

	_, err := Load(viper.New(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown preset")
}

func TestLoad_InvalidDriver(t *testing.T) {
	path := writeConfig(t, "stats:\n  driver: mysql\n")

	_, err := Load(viper.New(), path)
	require.Error(t, err)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "{}\n")
	t.Setenv("IMGOPT_JPEG_QUALITY", "55")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, 55, cfg.JPEGQuality)
}

func TestLoad_NestedEnvOverride(t *testing.T) {
	path := writeConfig(t, "{}\n")
	t.Setenv("IMGOPT_STATS_DSN", "/var/lib/imgopt/stats.db")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/imgopt/stats.db", cfg.Stats.DSN)
}

func TestClampHelpers(t *testing.T) {
	assert.Equal(t, 0, ClampCompressionLevel(-5))
	assert.Equal(t, 9, ClampCompressionLevel(10))
	assert.Equal(t, 5, ClampCompressionLevel(5))
	assert.Equal(t, 10, ClampJPEGQuality(0))
	assert.Equal(t, 95, ClampJPEGQuality(96))
	assert.Equal(t, 1, ClampWebPQuality(-3))
	assert.Equal(t, 100, ClampWebPQuality(101))
}

func TestPresetNames(t *testing.T) {
	assert.Equal(t, []string{"aggressive", "balanced", "lossless"}, PresetNames())
}
