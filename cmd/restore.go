package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/imgopt/internal/backup"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <file>...",
	Short: "Copy backed-up originals back over optimized files",
	Long: `Copies <file>.optimizer-backup over <file>. The backup is kept, so a
later optimize run still starts from the same original.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRestore,
}

func init() {
	rootCmd.AddCommand(restoreCmd)
}

func runRestore(_ *cobra.Command, args []string) error {
	m := backup.New(true)

	var failed int
	for _, path := range args {
		err := m.Restore(path)
		switch {
		case errors.Is(err, backup.ErrNoBackup):
			printer.Warning("%s: no backup", path)
		case err != nil:
			failed++
			printer.Error("%v", err)
		default:
			printer.Success("%s restored", path)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}
