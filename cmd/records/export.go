package records

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	cmdcommon "github.com/jonesrussell/newsharvest/cmd/common"
	"github.com/jonesrussell/newsharvest/internal/export"
	"github.com/jonesrussell/newsharvest/internal/logger"
	"github.com/jonesrussell/newsharvest/internal/store"
)

// Export reads the record file at recordsPath and writes it to w in format.
func Export(ctx context.Context, recordsPath, format string, w io.Writer, log logger.Logger) (int, error) {
	exporter, err := export.New(format)
	if err != nil {
		return 0, err
	}

	if _, statErr := os.Stat(recordsPath); statErr != nil {
		return 0, fmt.Errorf("record file: %w", statErr)
	}

	s, err := store.NewJSONFileStore(recordsPath, store.WithLogger(log))
	if err != nil {
		return 0, err
	}
	records, err := s.Records(ctx)
	if err != nil {
		return 0, err
	}

	if err = exporter.Export(w, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export <site>",
		Short: "Export a site's records",
		Long: `Export converts the site's record file. Output goes to stdout unless
--output is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := cmdcommon.NewCommandDeps()
			if err != nil {
				return fmt.Errorf("failed to get dependencies: %w", err)
			}

			registry, err := deps.LoadSites()
			if err != nil {
				return err
			}
			site, err := registry.Find(args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if output != "" {
				file, createErr := os.Create(output)
				if createErr != nil {
					return fmt.Errorf("create %s: %w", output, createErr)
				}
				defer file.Close()
				w = file
			}

			recordsPath := filepath.Join(deps.Config.Output.RecordsDir, site.OutputFile)
			n, err := Export(cmd.Context(), recordsPath, format, w, deps.Logger)
			if err != nil {
				return err
			}

			deps.Logger.Info("Records exported",
				logger.String("site", site.Name),
				logger.String("format", format),
				logger.Int("records", n),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", export.FormatCSV,
		"Export format ("+strings.Join(export.Formats(), "|")+")")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")

	return cmd
}
