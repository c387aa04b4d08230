package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/imgopt/internal/output"
)

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "Show which encoding backends are available",
	Args:  cobra.NoArgs,
	RunE:  runBackends,
}

func init() {
	rootCmd.AddCommand(backendsCmd)
}

func runBackends(_ *cobra.Command, _ []string) error {
	tbl := output.NewTable(printer.Out(), []string{"Backend", "Available", "Formats", "WebP"})
	for _, s := range newRegistry().Status() {
		formats := make([]string, len(s.Formats))
		for i, f := range s.Formats {
			formats[i] = string(f)
		}
		tbl.AddRow(s.Name, yesNo(s.Available), strings.Join(formats, ","), yesNo(s.WebP))
	}
	return tbl.Render()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
