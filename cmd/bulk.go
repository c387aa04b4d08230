package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/imgopt/internal/batch"
	"github.com/AnyUserName/imgopt/internal/engine"
	"github.com/AnyUserName/imgopt/internal/library"
	"github.com/AnyUserName/imgopt/internal/metrics"
	"github.com/AnyUserName/imgopt/internal/output"
	"github.com/AnyUserName/imgopt/internal/report"
)

var (
	bulkWorkers  int
	bulkReport   string
	bulkTextfile string
)

var bulkCmd = &cobra.Command{
	Use:   "bulk <media_root>",
	Short: "Optimize every attachment under a media root",
	Long: `Scans the media root, groups thumbnail sizes with their primary image
and optimizes each attachment. Attachments run in parallel up to
--workers; files within one attachment run one after another.`,
	Args: cobra.ExactArgs(1),
	RunE: runBulk,
}

func init() {
	bulkCmd.Flags().IntVarP(&bulkWorkers, "workers", "w", 0, "parallel attachments (0 = bulk.workers from config)")
	bulkCmd.Flags().StringVar(&bulkReport, "report", "", "write a JSON run report to this file")
	bulkCmd.Flags().StringVar(&bulkTextfile, "metrics-textfile", "", "write Prometheus metrics to this file")
	rootCmd.AddCommand(bulkCmd)
}

func runBulk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	lib, err := library.Scan(args[0])
	if err != nil {
		return err
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := newRegistry()
	logger.Debug(reg.String())

	eng := engine.New(*cfg, reg, store, engine.WithLogger(logger), engine.WithSource(lib))
	driver := batch.New(lib, eng, logger)

	ids, err := driver.ListTargetIDs(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		printer.Warning("no images found in %s", lib.Root)
		return nil
	}

	workers := bulkWorkers
	if workers <= 0 {
		workers = cfg.Bulk.Workers
	}
	printer.Info("optimizing %d attachments with %d workers", len(ids), workers)

	rep := report.New(lib.Root, cfg.Preset)
	var done, skipped, files int
	var saved uint64

	runErr := driver.Run(ctx, ids, workers, func(o batch.Outcome) {
		done++
		rep.Add(o)
		if o.Skipped {
			skipped++
			if o.Err != nil {
				printer.Warning("[%d/%d] attachment %d: %v", done, len(ids), o.ID, o.Err)
			}
			return
		}
		files += o.Files
		saved += o.SavedBytes
		printer.Print("[%d/%d] %s: %d files, saved %s",
			done, len(ids), output.TruncLeft(primaryPath(o), 50), o.Files, output.Bytes(o.SavedBytes))
	})

	elapsed := time.Since(start)
	rep.RunInfo = &report.RunInfo{Workers: workers, Seconds: elapsed.Seconds(), Backends: reg.String()}

	printer.Header("Bulk run")
	printer.Print("  Attachments: %d (%d skipped)", done, skipped)
	printer.Print("  Files:       %d", files)
	printer.Print("  Saved:       %s", output.Bytes(saved))
	printer.Print("  Time:        %s", elapsed.Round(time.Millisecond))

	if bulkReport != "" {
		if err := report.WriteJSON(rep, bulkReport); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		printer.Print("  Report:      %s", bulkReport)
	}
	if bulkTextfile != "" {
		if err := metrics.WriteTextfile(bulkTextfile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return runErr
}

func primaryPath(o batch.Outcome) string {
	if len(o.Results) > 0 {
		return o.Results[0].Path
	}
	return fmt.Sprintf("attachment %d", o.ID)
}
