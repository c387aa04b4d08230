// Package cmd contains the imgopt commands.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AnyUserName/imgopt/internal/config"
	"github.com/AnyUserName/imgopt/internal/encoder"
	"github.com/AnyUserName/imgopt/internal/output"
	"github.com/AnyUserName/imgopt/internal/stats"
)

var (
	version   = "dev"
	cfgFile   string
	verbose   bool
	quiet     bool
	colorMode string

	v       = viper.New()
	cfg     *config.Config
	logger  *slog.Logger
	printer *output.Printer
)

var rootCmd = &cobra.Command{
	Use:   "imgopt",
	Short: "Lossless-first re-encoder for image libraries",
	Long: `imgopt re-encodes PNG, JPEG, WebP, GIF, BMP and TIFF files in place.

Each file goes through ImageMagick, libvips or the built-in raster encoder,
whichever is available first. The first original is kept next to the file
as <name>.optimizer-backup, outputs that are not smaller are rolled back,
and before/after sizes are recorded per path.

Example usage:
  imgopt optimize photo.jpg            # re-encode one file
  imgopt bulk ./uploads --workers 4    # every attachment under a media root
  imgopt stats                         # savings so far
  imgopt restore photo.jpg             # copy the first original back`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// SetVersion sets the version reported by --version.
func SetVersion(ver string) {
	version = ver
	rootCmd.Version = ver
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"imgopt %s (%s/%s, %s)\n",
		ver, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is .imgopt.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	pf.BoolVarP(&quiet, "quiet", "q", false, "only print errors")
	pf.StringVar(&colorMode, "color", "auto", "color output: auto, always, never")

	pf.String("preset", "", "option preset: lossless, balanced, aggressive")
	pf.Int("compression-level", 6, "PNG compression level 0-9")
	pf.Int("jpeg-quality", 80, "JPEG quality 10-95")
	pf.Int("webp-quality", 80, "WebP quality 1-100")
	pf.Bool("progressive", false, "write progressive JPEGs")
	pf.Bool("backup", true, "keep <file>.optimizer-backup of the first original")
	pf.Bool("webp", false, "also write a .webp next to PNG and JPEG files")
	pf.String("stats-driver", "sqlite", "stats store driver: sqlite or pgx")
	pf.String("stats-dsn", "imgopt.db", "stats store DSN (sqlite file path or postgres URL)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text or json")

	for key, flag := range map[string]string{
		"preset":            "preset",
		"compression_level": "compression-level",
		"jpeg_quality":      "jpeg-quality",
		"webp_quality":      "webp-quality",
		"progressive_jpeg":  "progressive",
		"backup_originals":  "backup",
		"convert_webp":      "webp",
		"stats.driver":      "stats-driver",
		"stats.dsn":         "stats-dsn",
		"log.level":         "log-level",
		"log.format":        "log-format",
	} {
		_ = v.BindPFlag(key, pf.Lookup(flag))
	}

	SetVersion(version)
}

// initConfig loads configuration and builds the logger and printer.
func initConfig() error {
	var err error
	cfg, err = config.Load(v, cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger = newLogger(os.Stderr, cfg.Log, verbose)
	slog.SetDefault(logger)

	useColors, err := output.UseColors(colorMode)
	if err != nil {
		return err
	}
	printer = output.NewPrinter(useColors, quiet)

	logger.Debug("configuration loaded",
		"config", v.ConfigFileUsed(),
		"preset", cfg.Preset,
		"compression_level", cfg.CompressionLevel,
		"jpeg_quality", cfg.JPEGQuality,
		"webp_quality", cfg.WebPQuality,
		"backup", cfg.BackupOriginals,
		"webp", cfg.ConvertWebP,
	)
	return nil
}

func newLogger(w io.Writer, lc config.LogConfig, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func newRegistry() *encoder.Registry {
	return encoder.NewRegistry(encoder.Tools{Magick: cfg.Tools.Magick, CWebP: cfg.Tools.CWebP})
}

func openStore(ctx context.Context) (*stats.SQLStore, error) {
	store, err := stats.Open(ctx, cfg.Stats.Driver, cfg.Stats.DSN)
	if err != nil {
		return nil, fmt.Errorf("open stats store: %w", err)
	}
	return store, nil
}
