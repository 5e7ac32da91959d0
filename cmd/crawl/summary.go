package crawl

import (
	"io"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/jonesrussell/newsharvest/internal/stats"
)

// RenderSummary prints the run counters and the response-code histogram.
func RenderSummary(w io.Writer, snap stats.Snapshot) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Run %s (%s)", snap.RunID, snap.Site)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Listing pages", snap.TotalBaseURL},
		{"Listing pages OK", snap.SuccessfulBaseURL},
		{"Listing pages failed", snap.FailedBaseURL},
		{"Article requests", snap.TotalRequests},
		{"Article requests OK", snap.SuccessfulRequests},
		{"Article requests failed", snap.FailedRequests},
		{"Articles scraped", snap.ArticlesScraped},
		{"Read-more clicks", snap.ReadMoreClicks},
		{"Errors", len(snap.Errors)},
	})

	codes := make([]string, 0, len(snap.ResponseCodes))
	for code := range snap.ResponseCodes {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	if len(codes) > 0 {
		t.AppendSeparator()
		for _, code := range codes {
			t.AppendRow(table.Row{"Response " + code, snap.ResponseCodes[code]})
		}
	}

	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	t.Render()
}
