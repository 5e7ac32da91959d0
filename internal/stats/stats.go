// Package stats aggregates per-run crawl statistics: listing and article
// counters, a response-code histogram and an ordered error log.
package stats

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/jonesrussell/newsharvest/internal/logger"
)

// TransportErrorCode is the histogram key used when a fetch produced no status code.
const TransportErrorCode = "transport_error"

// Stage tags an error log entry with the part of the run that produced it.
type Stage string

const (
	StageListing     Stage = "listing"
	StageArticle     Stage = "article"
	StageInteraction Stage = "interaction"
	StageStore       Stage = "store"
)

// Snapshot is the serialized form of a run's statistics.
type Snapshot struct {
	RunID              string         `json:"run_id"`
	Site               string         `json:"site"`
	StartedAt          time.Time      `json:"started_at"`
	FinishedAt         *time.Time     `json:"finished_at"`
	TotalBaseURL       int            `json:"total_baseURL"`
	TotalRequests      int            `json:"total_requests"`
	SuccessfulBaseURL  int            `json:"successful_baseURL"`
	FailedBaseURL      int            `json:"failed_baseURL"`
	SuccessfulRequests int            `json:"successful_requests"`
	FailedRequests     int            `json:"failed_requests"`
	ArticlesScraped    int            `json:"articles_scraped"`
	ReadMoreClicks     int            `json:"read_more_clicks"`
	ResponseCodes      map[string]int `json:"response_codes"`
	Errors             []string       `json:"errors"`
}

// HistogramTotal returns the sum of all response-code counts.
func (s Snapshot) HistogramTotal() int {
	total := 0
	for _, n := range s.ResponseCodes {
		total += n
	}
	return total
}

// Sink persists a snapshot somewhere.
type Sink interface {
	Write(ctx context.Context, snap Snapshot) error
}

// RunStats is the mutex-guarded aggregate for one crawl run. Counters only
// ever increase.
type RunStats struct {
	mu    sync.Mutex
	snap  Snapshot
	sinks []Sink
	log   logger.Logger
	now   func() time.Time
}

// Option configures RunStats.
type Option func(*RunStats)

// WithSinks adds sinks written on every Flush.
func WithSinks(sinks ...Sink) Option {
	return func(r *RunStats) {
		r.sinks = append(r.sinks, sinks...)
	}
}

// WithLogger sets the logger used for error entries and the run summary.
func WithLogger(log logger.Logger) Option {
	return func(r *RunStats) {
		r.log = log
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *RunStats) {
		r.now = now
	}
}

// New creates RunStats for the given run and site.
func New(runID, site string, opts ...Option) *RunStats {
	r := &RunStats{
		log: logger.NewNop(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.log = r.log.With(logger.Component("stats"), logger.String("run_id", runID))
	r.snap = Snapshot{
		RunID:         runID,
		Site:          site,
		StartedAt:     r.now().UTC(),
		ResponseCodes: make(map[string]int),
		Errors:        []string{},
	}
	return r
}

func codeKey(code int) string {
	if code <= 0 {
		return TransportErrorCode
	}
	return strconv.Itoa(code)
}

// IsSuccess reports whether code is a 2xx status.
func IsSuccess(code int) bool {
	return code >= 200 && code < 300
}

// RecordListing records one listing fetch attempt. err is the transport error,
// if any; a non-2xx code without err is a status failure.
func (r *RunStats) RecordListing(url string, code int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snap.TotalBaseURL++
	r.snap.ResponseCodes[codeKey(code)]++

	if err == nil && IsSuccess(code) {
		r.snap.SuccessfulBaseURL++
		return
	}

	r.snap.FailedBaseURL++
	if err != nil {
		r.appendError(StageListing, fmt.Sprintf("Error on %s: %v", url, err))
		return
	}
	r.appendError(StageListing, fmt.Sprintf("Failed to parse page: %s with status code: %d", url, code))
}

// RecordArticle records one article fetch attempt.
func (r *RunStats) RecordArticle(url string, code int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snap.TotalRequests++
	r.snap.ResponseCodes[codeKey(code)]++

	if err == nil && IsSuccess(code) {
		r.snap.SuccessfulRequests++
		r.snap.ArticlesScraped++
		return
	}

	r.snap.FailedRequests++
	if err != nil {
		r.appendError(StageArticle, fmt.Sprintf("Error on %s: %v", url, err))
		return
	}
	r.appendError(StageArticle, fmt.Sprintf("Failed to parse article: %s with status code: %d", url, code))
}

// RecordReveal counts one successful "load more" interaction.
func (r *RunStats) RecordReveal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap.ReadMoreClicks++
}

// RecordError appends a free-form error for stage.
func (r *RunStats) RecordError(stage Stage, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appendError(stage, msg)
}

// appendError must be called with mu held.
func (r *RunStats) appendError(stage Stage, msg string) {
	r.snap.Errors = append(r.snap.Errors, fmt.Sprintf("[%s] %s", stage, msg))
	r.log.Error(msg, logger.String("stage", string(stage)))
}

// Snapshot returns a deep copy of the current statistics.
func (r *RunStats) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.copyLocked()
}

func (r *RunStats) copyLocked() Snapshot {
	out := r.snap
	out.ResponseCodes = maps.Clone(r.snap.ResponseCodes)
	out.Errors = slices.Clone(r.snap.Errors)
	if r.snap.FinishedAt != nil {
		finished := *r.snap.FinishedAt
		out.FinishedAt = &finished
	}
	return out
}

// Flush stamps the finish time and writes the latest snapshot to every sink.
// Calling it again rewrites the latest snapshot. All sinks are attempted even
// if one fails.
func (r *RunStats) Flush(ctx context.Context) error {
	r.mu.Lock()
	finished := r.now().UTC()
	r.snap.FinishedAt = &finished
	snap := r.copyLocked()
	r.mu.Unlock()

	var errs []error
	for _, sink := range r.sinks {
		if err := sink.Write(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("flush stats: %w", err)
	}
	return nil
}

// LogSummary writes the run totals at info level.
func (r *RunStats) LogSummary() {
	snap := r.Snapshot()
	r.log.Info("Crawl run finished",
		logger.String("site", snap.Site),
		logger.Int("total_baseURL", snap.TotalBaseURL),
		logger.Int("successful_baseURL", snap.SuccessfulBaseURL),
		logger.Int("failed_baseURL", snap.FailedBaseURL),
		logger.Int("total_requests", snap.TotalRequests),
		logger.Int("successful_requests", snap.SuccessfulRequests),
		logger.Int("failed_requests", snap.FailedRequests),
		logger.Int("articles_scraped", snap.ArticlesScraped),
		logger.Int("read_more_clicks", snap.ReadMoreClicks),
		logger.Any("response_codes", snap.ResponseCodes),
		logger.Int("errors", len(snap.Errors)),
	)
}
