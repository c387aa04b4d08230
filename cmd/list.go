package cmd

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/imgopt/internal/library"
	"github.com/AnyUserName/imgopt/internal/output"
)

var listCmd = &cobra.Command{
	Use:   "list <media_root>",
	Short: "List attachments under a media root",
	Args:  cobra.ExactArgs(1),
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	lib, err := library.Scan(args[0])
	if err != nil {
		return err
	}

	tbl := output.NewTable(printer.Out(), []string{"ID", "Format", "Sizes", "Path"})
	for _, a := range lib.Attachments() {
		tbl.AddRow(
			strconv.FormatInt(a.ID, 10),
			string(a.Format),
			strconv.Itoa(len(a.Sizes)),
			a.RelPath,
		)
	}
	if err := tbl.Render(); err != nil {
		return err
	}
	printer.Info("%d attachments in %s", lib.Len(), lib.Root)
	return nil
}
