// Package dispatcher runs the listing → article fetch graph for a set of
// crawl jobs, streaming one record per discovered article to the record sink.
package dispatcher

//go:generate mockgen -source=dispatcher.go -destination=mocks/mock_dispatcher.go -package=mocks -exclude_interfaces=Adapter,Expander,Stats
//go:generate mockgen -source=../pagination/pagination.go -destination=mocks/mock_pagination.go -package=mocks -exclude_interfaces=Control,Page,Session,Recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonesrussell/newsharvest/internal/domain"
	"github.com/jonesrussell/newsharvest/internal/fetcher"
	"github.com/jonesrussell/newsharvest/internal/links"
	"github.com/jonesrussell/newsharvest/internal/logger"
	"github.com/jonesrussell/newsharvest/internal/pagination"
	"github.com/jonesrussell/newsharvest/internal/stats"
)

// Fetcher performs a single logical GET.
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers map[string]string) (*fetcher.Response, error)
}

// RecordSink persists records as they are produced.
type RecordSink interface {
	Append(ctx context.Context, rec domain.ArticleRecord) error
}

// Adapter reads one site's listing and article pages.
type Adapter interface {
	RequestHeaders() map[string]string
	ListingLinks(pageURL string, body []byte) ([]string, error)
	Extract(pageURL string, body []byte) (map[domain.FieldName]*string, error)
	PaginationPolicy(maxReveals int) pagination.Policy
}

// Expander runs the reveal loop on a rendered page.
type Expander interface {
	Expand(ctx context.Context, page pagination.Page, policy pagination.Policy) (pagination.Result, error)
}

// Stats receives every fetch outcome.
type Stats interface {
	RecordListing(url string, code int, err error)
	RecordArticle(url string, code int, err error)
	RecordReveal()
	RecordError(stage stats.Stage, msg string)
}

// Adapters maps site names to adapters.
type Adapters map[string]Adapter

// Options tunes concurrency and pagination timing.
type Options struct {
	JobConcurrency int
	Concurrency    int
	// JobTimeout bounds one listing job, 0 = unbounded
	JobTimeout    time.Duration
	ScrollSettle  time.Duration
	RevealSettle  time.Duration
	RevealTimeout time.Duration
}

// Dispatcher schedules crawl jobs. Create one per run.
type Dispatcher struct {
	fetcher  Fetcher
	sink     RecordSink
	stats    Stats
	adapters Adapters
	sessions pagination.SessionProvider
	expander Expander
	opts     Options
	log      logger.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

// Params holds the Dispatcher dependencies. Sessions may be nil when no site
// needs interaction; Expander defaults to a pagination.Controller.
type Params struct {
	Fetcher  Fetcher
	Sink     RecordSink
	Stats    Stats
	Adapters Adapters
	Sessions pagination.SessionProvider
	Expander Expander
	Options  Options
	Logger   logger.Logger
}

// New creates a Dispatcher.
func New(p Params) (*Dispatcher, error) {
	if p.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if p.Sink == nil {
		return nil, errors.New("record sink is required")
	}
	if p.Stats == nil {
		return nil, errors.New("stats is required")
	}

	log := p.Logger
	if log == nil {
		log = logger.NewNop()
	}
	log = log.With(logger.Component("dispatcher"))

	expander := p.Expander
	if expander == nil {
		expander = pagination.NewController(p.Stats, log)
	}

	opts := p.Options
	opts.JobConcurrency = max(opts.JobConcurrency, 1)
	opts.Concurrency = max(opts.Concurrency, 1)

	return &Dispatcher{
		fetcher:  p.Fetcher,
		sink:     p.Sink,
		stats:    p.Stats,
		adapters: p.Adapters,
		sessions: p.Sessions,
		expander: expander,
		opts:     opts,
		log:      log,
		seen:     make(map[string]struct{}),
	}, nil
}

// Run processes every job. Per-job failures are recorded in stats and never
// returned; only a record sink failure or cancellation of ctx ends the run
// early with an error.
func (d *Dispatcher) Run(ctx context.Context, jobs []domain.CrawlJob) error {
	d.log.Info("Starting crawl",
		logger.Int("jobs", len(jobs)),
		logger.Int("job_concurrency", d.opts.JobConcurrency),
		logger.Int("concurrency", d.opts.Concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.JobConcurrency)
	for _, job := range jobs {
		g.Go(func() error {
			return d.runJob(gctx, job)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// runJob handles one listing. The returned error is fatal for the run.
func (d *Dispatcher) runJob(ctx context.Context, job domain.CrawlJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	log := d.log.With(logger.String("listing_url", job.ListingURL), logger.String("site", job.Site))

	adapter, ok := d.adapters[job.Site]
	if !ok {
		d.stats.RecordError(stats.StageListing, fmt.Sprintf("No adapter for site %q: %s", job.Site, job.ListingURL))
		return nil
	}

	jobCtx := ctx
	if d.opts.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, d.opts.JobTimeout)
		defer cancel()
	}

	headers := adapter.RequestHeaders()
	resp, err := d.fetcher.Fetch(jobCtx, job.ListingURL, headers)
	code := statusOf(resp)
	d.stats.RecordListing(job.ListingURL, code, err)
	if err != nil || !resp.OK() {
		log.Warn("Listing fetch failed", logger.Int("status", code), logger.Error(err))
		return ctx.Err()
	}

	articleURLs, err := d.discover(jobCtx, job, adapter, resp, headers)
	if err != nil {
		d.stats.RecordError(stats.StageListing, fmt.Sprintf("Failed to read links on %s: %v", job.ListingURL, err))
		if len(articleURLs) == 0 {
			return ctx.Err()
		}
	}

	fresh := d.claim(articleURLs)
	log.Info("Listing processed",
		logger.String("policy", job.Policy.String()),
		logger.Int("links", len(articleURLs)),
		logger.Int("new_links", len(fresh)),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Concurrency)
	for _, u := range fresh {
		link := domain.ArticleLink{URL: u, Job: job}
		g.Go(func() error {
			return d.processArticle(gctx, jobCtx, adapter, link, headers)
		})
	}
	return g.Wait()
}

// discover returns the absolute article URLs for a fetched listing.
func (d *Dispatcher) discover(
	ctx context.Context,
	job domain.CrawlJob,
	adapter Adapter,
	resp *fetcher.Response,
	headers map[string]string,
) ([]string, error) {
	base := resp.URL
	if base == "" {
		base = job.ListingURL
	}

	if !job.Policy.Interactive {
		return adapter.ListingLinks(base, resp.Body)
	}

	if d.sessions == nil {
		d.stats.RecordError(stats.StageInteraction, fmt.Sprintf(
			"No rendered session available for %s, using raw document links", job.ListingURL))
		return adapter.ListingLinks(base, resp.Body)
	}

	session, err := d.sessions.Acquire(ctx, job.ListingURL, headers)
	if err != nil {
		d.stats.RecordError(stats.StageInteraction, fmt.Sprintf(
			"Failed to open rendered page %s: %v", job.ListingURL, err))
		return adapter.ListingLinks(base, resp.Body)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			d.log.Warn("Failed to close browser session",
				logger.String("listing_url", job.ListingURL),
				logger.Error(closeErr),
			)
		}
	}()

	policy := adapter.PaginationPolicy(job.Policy.MaxReveals)
	policy.ScrollSettle = d.opts.ScrollSettle
	policy.RevealSettle = d.opts.RevealSettle
	policy.RevealTimeout = d.opts.RevealTimeout

	result, err := d.expander.Expand(ctx, session, policy)
	return result.Links, err
}

// claim returns the URLs not yet seen in this run, marking them seen.
func (d *Dispatcher) claim(urls []string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	fresh := make([]string, 0, len(urls))
	for _, u := range urls {
		key := links.Key(u)
		if _, dup := d.seen[key]; dup {
			continue
		}
		d.seen[key] = struct{}{}
		fresh = append(fresh, u)
	}
	return fresh
}

// processArticle fetches one article and leaves exactly one trace of it: a
// stored record once the fetch was attempted, or an article error when the
// run stopped first. fetchCtx may carry the job deadline. The record is
// written even if runCtx is cancelled while the fetch is in flight.
func (d *Dispatcher) processArticle(
	runCtx, fetchCtx context.Context,
	adapter Adapter,
	link domain.ArticleLink,
	headers map[string]string,
) error {
	if err := runCtx.Err(); err != nil {
		d.stats.RecordError(stats.StageArticle, fmt.Sprintf("Skipped %s, run stopped: %v", link.URL, err))
		return err
	}

	resp, err := d.fetcher.Fetch(fetchCtx, link.URL, headers)
	code := statusOf(resp)
	d.stats.RecordArticle(link.URL, code, err)

	rec := domain.FailedRecord(code, link.URL)
	if err == nil && resp.OK() {
		fields, extractErr := adapter.Extract(link.URL, resp.Body)
		if extractErr != nil {
			d.stats.RecordError(stats.StageArticle, fmt.Sprintf("Failed to extract %s: %v", link.URL, extractErr))
		} else {
			rec = domain.NewRecord(code, link.URL, fields)
		}
	}

	if appendErr := d.sink.Append(context.WithoutCancel(runCtx), rec); appendErr != nil {
		d.stats.RecordError(stats.StageStore, fmt.Sprintf("Failed to store %s: %v", link.URL, appendErr))
		return fmt.Errorf("store record for %s: %w", link.URL, appendErr)
	}
	return nil
}

func statusOf(resp *fetcher.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
