package cmd

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/imgopt/internal/engine"
	"github.com/AnyUserName/imgopt/internal/format"
	"github.com/AnyUserName/imgopt/internal/watch"
)

var watchSettle time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch <media_root>",
	Short: "Optimize images as they are added",
	Long: `Watches the media root and optimizes new or rewritten images once they
have been quiet for --settle. Requires auto_optimize to be enabled.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchSettle, "settle", watch.DefaultSettle, "quiet period before a file is optimized")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if !cfg.AutoOptimize {
		printer.Warning("auto_optimize is off, nothing to do")
		return nil
	}
	ctx := cmd.Context()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	eng := engine.New(*cfg, newRegistry(), store, engine.WithLogger(logger))
	w := watch.New(args[0], eng, watchSettle, logger)
	w.OnResult = func(path string, res *engine.Result, err error) {
		switch {
		case errors.Is(err, format.ErrNotApplicable):
		case err != nil:
			printer.Error("%s: %v", path, err)
		default:
			printResult(res)
		}
	}
	return w.Run(ctx)
}
