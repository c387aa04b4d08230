package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/imgopt/internal/derivative"
	"github.com/AnyUserName/imgopt/internal/format"
)

var webpCmd = &cobra.Command{
	Use:   "webp <file>...",
	Short: "Write a .webp next to each image",
	Long: `Writes <name>.webp beside each file using the first backend that can
produce WebP: ImageMagick, libvips, the built-in encoder, then cwebp.
The source file is not modified.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWebP,
}

func init() {
	rootCmd.AddCommand(webpCmd)
}

func runWebP(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	gen := derivative.New(newRegistry().WebPWriters(), cfg.WebPQuality, logger)

	var failed int
	for _, path := range args {
		t, err := format.Resolve(path)
		if err != nil || !t.Format.CanDeriveWebP() {
			printer.Skip("%s: not a PNG or JPEG image", path)
			continue
		}
		dst, err := gen.Generate(ctx, path)
		if err != nil {
			failed++
			printer.Error("%s: %v", path, err)
			continue
		}
		printer.Success("%s -> %s", path, dst)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}
