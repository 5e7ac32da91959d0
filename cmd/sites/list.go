package sites

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	cmdcommon "github.com/jonesrussell/newsharvest/cmd/common"
	sitespkg "github.com/jonesrussell/newsharvest/internal/sites"
)

// RenderTable writes one row per site.
func RenderTable(w io.Writer, all []*sitespkg.Site) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Seeds", "Pages", "Interaction", "Output", "Stats"})

	for _, site := range all {
		t.AppendRow(table.Row{
			site.Name,
			seedSummary(site),
			site.Seeds.Pages,
			site.Policy(-1).String(),
			site.OutputFile,
			site.StatsFile,
		})
	}
	t.Render()
}

func seedSummary(site *sitespkg.Site) string {
	parts := make([]string, 0, 2)
	if n := len(site.Seeds.URLs); n > 0 {
		parts = append(parts, fmt.Sprintf("%d urls", n))
	}
	if site.Seeds.URLsFile != "" {
		parts = append(parts, site.Seeds.URLsFile)
	}
	return strings.Join(parts, " + ")
}

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configured sites",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := cmdcommon.NewCommandDeps()
			if err != nil {
				return fmt.Errorf("failed to get dependencies: %w", err)
			}

			registry, err := deps.LoadSites()
			if err != nil {
				return err
			}
			if registry.Len() == 0 {
				deps.Logger.Info("No sites configured")
				return nil
			}

			RenderTable(cmd.OutOrStdout(), registry.All())
			return nil
		},
	}
}
