package stats

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsNamespace prefixes every exported metric.
const MetricsNamespace = "newsharvest"

// PrometheusSink writes the snapshot in the Prometheus text format, for the
// node_exporter textfile collector.
type PrometheusSink struct {
	Path string
}

// NewPrometheusSink creates a sink writing to path.
func NewPrometheusSink(path string) *PrometheusSink {
	return &PrometheusSink{Path: path}
}

// Write replaces the metrics file with the gauges for snap.
func (p *PrometheusSink) Write(ctx context.Context, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	site := prometheus.Labels{"site": snap.Site}

	fetches := factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   MetricsNamespace,
		Name:        "fetches",
		Help:        "Fetches in the last run by page kind and outcome",
		ConstLabels: site,
	}, []string{"kind", "outcome"})
	fetches.WithLabelValues("listing", "success").Set(float64(snap.SuccessfulBaseURL))
	fetches.WithLabelValues("listing", "failure").Set(float64(snap.FailedBaseURL))
	fetches.WithLabelValues("article", "success").Set(float64(snap.SuccessfulRequests))
	fetches.WithLabelValues("article", "failure").Set(float64(snap.FailedRequests))

	codes := factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   MetricsNamespace,
		Name:        "response_codes",
		Help:        "Responses in the last run by status code",
		ConstLabels: site,
	}, []string{"code"})
	for code, n := range snap.ResponseCodes {
		codes.WithLabelValues(code).Set(float64(n))
	}

	gauge := func(name, help string, v float64) {
		factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   MetricsNamespace,
			Name:        name,
			Help:        help,
			ConstLabels: site,
		}).Set(v)
	}
	gauge("articles_scraped", "Articles scraped in the last run", float64(snap.ArticlesScraped))
	gauge("read_more_clicks", "Reveal interactions in the last run", float64(snap.ReadMoreClicks))
	gauge("errors", "Errors logged in the last run", float64(len(snap.Errors)))
	gauge("last_run_start_timestamp_seconds", "Start time of the last run", float64(snap.StartedAt.Unix()))
	if snap.FinishedAt != nil {
		gauge("last_run_finish_timestamp_seconds", "Finish time of the last run", float64(snap.FinishedAt.Unix()))
	}

	if err := prometheus.WriteToTextfile(p.Path, reg); err != nil {
		return fmt.Errorf("write metrics file: %w", err)
	}
	return nil
}
