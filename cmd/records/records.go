// Package records implements commands that work on a site's record file.
package records

import "github.com/spf13/cobra"

// Command returns the records command with its subcommands.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Work with crawled records",
	}
	cmd.AddCommand(NewExportCommand())
	return cmd
}
