package sites

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	cmdcommon "github.com/jonesrussell/newsharvest/cmd/common"
	sitespkg "github.com/jonesrussell/newsharvest/internal/sites"
)

// ErrInvalidSites is returned when at least one definition fails validation.
var ErrInvalidSites = errors.New("invalid site definitions")

// Result is the validation outcome for one file.
type Result struct {
	File string
	Site string
	Err  error
}

// Validate checks every definition file in dir, including seed URL files.
func Validate(dir string) ([]Result, error) {
	files, err := sitespkg.Files(dir)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(files))
	for _, file := range files {
		res := Result{File: filepath.Base(file)}
		site, loadErr := sitespkg.LoadFile(file)
		if loadErr != nil {
			res.Err = loadErr
		} else {
			res.Site = site.Name
			if _, seedErr := site.SeedURLs(); seedErr != nil {
				res.Err = seedErr
			}
		}
		results = append(results, res)
	}
	return results, nil
}

// RenderResults writes the validation table and reports whether all passed.
func RenderResults(w io.Writer, results []Result) bool {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"File", "Site", "Status"})

	ok := true
	for _, res := range results {
		status := "ok"
		if res.Err != nil {
			ok = false
			status = res.Err.Error()
		}
		t.AppendRow(table.Row{res.File, res.Site, status})
	}
	t.Render()
	return ok
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate every site definition",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := cmdcommon.NewCommandDeps()
			if err != nil {
				return fmt.Errorf("failed to get dependencies: %w", err)
			}

			results, err := Validate(deps.Config.SitesDir)
			if err != nil {
				return err
			}
			if !RenderResults(cmd.OutOrStdout(), results) {
				return ErrInvalidSites
			}
			return nil
		},
	}
}
