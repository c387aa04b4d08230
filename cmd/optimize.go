package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/imgopt/internal/engine"
	"github.com/AnyUserName/imgopt/internal/format"
	"github.com/AnyUserName/imgopt/internal/output"
)

var optimizeAttachment int64

var optimizeCmd = &cobra.Command{
	Use:   "optimize <file>...",
	Short: "Re-encode image files in place",
	Long: `Re-encodes each file with the first available backend.

Files that are not images, are empty or unreadable are skipped. When the
output is not smaller the input is put back and the file counts as
unchanged.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOptimize,
}

func init() {
	optimizeCmd.Flags().Int64Var(&optimizeAttachment, "attachment", 0, "attachment ID recorded with the stats row")
	rootCmd.AddCommand(optimizeCmd)
}

func runOptimize(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	eng := engine.New(*cfg, newRegistry(), store, engine.WithLogger(logger))

	var failed int
	for _, path := range args {
		res, err := eng.OptimizeFile(ctx, path, optimizeAttachment)
		switch {
		case errors.Is(err, format.ErrNotApplicable):
			printer.Skip("%s: not an image this tool handles", path)
		case err != nil:
			failed++
			printer.Error("%s: %v", path, err)
		default:
			printResult(res)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}

func printResult(res *engine.Result) {
	switch {
	case res.Restored:
		printer.Info("%s: kept original, %s output was not smaller", res.Path, res.Backend)
	case res.SavedBytes == 0:
		printer.Info("%s: unchanged (%s)", res.Path, res.Backend)
	default:
		printer.Success("%s: %s -> %s (-%.1f%%) [%s]",
			res.Path, output.Bytes(res.OriginalSize), output.Bytes(res.NewSize), res.SavedPercent, res.Backend)
	}
	if res.WebPPath != "" {
		printer.Info("  webp: %s", res.WebPPath)
	}
}
