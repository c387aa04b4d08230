package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/imgopt/internal/output"
)

var statsLimit int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show recorded savings",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().IntVarP(&statsLimit, "limit", "n", 20, "most recent records to list (0 = all)")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	sum, err := store.Summary(ctx)
	if err != nil {
		return err
	}

	printer.Header("Totals")
	printer.Print("  Files:     %d", sum.TotalFiles)
	printer.Print("  Original:  %s", output.Bytes(sum.TotalOriginal))
	printer.Print("  Saved:     %s (%.1f%%)", output.Bytes(sum.TotalSaved), sum.SavedPercent())

	records, err := store.List(ctx, statsLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	printer.Header("Recent")
	tbl := output.NewTable(printer.Out(), []string{"Path", "Original", "Optimized", "Saved", "When"})
	for _, r := range records {
		tbl.AddRow(
			output.TruncLeft(r.FilePath, 60),
			output.Bytes(r.OriginalSize),
			output.Bytes(r.OptimizedSize),
			fmt.Sprintf("%s (%.1f%%)", output.Bytes(r.SavedBytes), percent(r.SavedBytes, r.OriginalSize)),
			r.OptimizedAt.Local().Format(time.DateTime),
		)
	}
	return tbl.Render()
}

func percent(part, whole uint64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
