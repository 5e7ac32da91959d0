// Package sites implements the commands for inspecting site definitions.
package sites

import "github.com/spf13/cobra"

// Command returns the sites command with its subcommands.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sites",
		Short: "Inspect configured sites",
		Long:  `List and validate the site definitions in the configured sites directory.`,
	}

	cmd.AddCommand(NewListCommand())
	cmd.AddCommand(NewValidateCommand())

	return cmd
}
