// Package fetcher performs the HTTP GETs for listing and article pages on top
// of a shared colly collector, so delay and parallelism limits apply across
// every fetch in a run.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	colly "github.com/gocolly/colly/v2"

	"github.com/jonesrussell/newsharvest/internal/config"
	"github.com/jonesrussell/newsharvest/internal/logger"
)

// ErrRobotsBlocked is returned when robots.txt disallows the URL.
var ErrRobotsBlocked = errors.New("blocked by robots.txt")

// errRetryableStatus marks a 5xx response so backoff retries it.
var errRetryableStatus = errors.New("retryable status")

const statusServerErrorLow = 500

// Response is the outcome of one fetch. StatusCode is 0 when no response was received.
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
	Header     http.Header
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Fetcher fetches a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers map[string]string) (*Response, error)
}

// CollyFetcher implements Fetcher with a colly collector. A non-2xx status is
// returned as a Response with a nil error; only transport failures are errors.
type CollyFetcher struct {
	base    *colly.Collector
	headers map[string]string
	robots  *RobotsChecker
	retry   config.CrawlerConfig
	log     logger.Logger
}

// Option configures a CollyFetcher.
type Option func(*CollyFetcher)

// WithRobotsChecker enables robots.txt checks before every fetch.
func WithRobotsChecker(r *RobotsChecker) Option {
	return func(f *CollyFetcher) {
		f.robots = r
	}
}

// New creates a CollyFetcher from the crawler config.
func New(cfg config.CrawlerConfig, log logger.Logger, opts ...Option) (*CollyFetcher, error) {
	collectorOpts := []colly.CollectorOption{
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
		colly.IgnoreRobotsTxt(),
	}
	if cfg.MaxBodySize > 0 {
		collectorOpts = append(collectorOpts, colly.MaxBodySize(cfg.MaxBodySize))
	}

	c := colly.NewCollector(collectorOpts...)
	if cfg.RequestTimeout > 0 {
		c.SetRequestTimeout(cfg.RequestTimeout)
	}

	parallelism := max(cfg.Concurrency, 1)
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
		Parallelism: parallelism,
	}); err != nil {
		return nil, fmt.Errorf("set limit rule: %w", err)
	}

	f := &CollyFetcher{
		base:    c,
		headers: cfg.Headers,
		retry:   cfg,
		log:     log.With(logger.Component("fetcher")),
	}
	for _, opt := range opts {
		opt(f)
	}

	if cfg.RespectRobotsTxt && f.robots == nil {
		f.robots = NewRobotsChecker(&http.Client{Timeout: cfg.RequestTimeout}, cfg.UserAgent, 0)
	}

	f.log.Debug("Fetcher configured",
		logger.Duration("delay", cfg.Delay),
		logger.Duration("random_delay", cfg.RandomDelay),
		logger.Int("parallelism", parallelism),
		logger.Int("max_retries", cfg.MaxRetries),
		logger.Bool("respect_robots_txt", f.robots != nil),
	)
	return f, nil
}

// Fetch implements Fetcher. With max_retries > 0, transport errors and 5xx
// responses are retried with exponential backoff; the caller only sees the
// final outcome.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string, headers map[string]string) (*Response, error) {
	if f.robots != nil {
		allowed, err := f.robots.IsAllowed(ctx, rawURL)
		if err != nil {
			return &Response{URL: rawURL}, err
		}
		if !allowed {
			return &Response{URL: rawURL}, fmt.Errorf("%w: %s", ErrRobotsBlocked, rawURL)
		}
	}

	if f.retry.MaxRetries <= 0 {
		return f.fetchOnce(ctx, rawURL, headers)
	}

	var (
		resp    *Response
		lastErr error
	)
	op := func() error {
		resp, lastErr = f.fetchOnce(ctx, rawURL, headers)
		switch {
		case lastErr != nil:
			if ctx.Err() != nil {
				return backoff.Permanent(lastErr)
			}
			return lastErr
		case resp.StatusCode >= statusServerErrorLow:
			return fmt.Errorf("%w: %d", errRetryableStatus, resp.StatusCode)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.retry.RetryInitial
	b.MaxInterval = f.retry.RetryMax
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(f.retry.MaxRetries)), ctx)

	notify := func(err error, wait time.Duration) {
		f.log.Debug("Retrying fetch",
			logger.String("url", rawURL),
			logger.Duration("wait", wait),
			logger.Error(err),
		)
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil && lastErr == nil && resp != nil {
		// retries exhausted on a 5xx: the status is the outcome, not an error
		return resp, nil
	}
	return resp, lastErr
}

// fetchOnce performs a single GET on a clone of the base collector.
func (f *CollyFetcher) fetchOnce(ctx context.Context, rawURL string, headers map[string]string) (*Response, error) {
	c := f.base.Clone()
	c.Context = ctx

	result := &Response{URL: rawURL}
	c.OnResponse(func(r *colly.Response) {
		result.StatusCode = r.StatusCode
		result.Body = r.Body
		if r.Headers != nil {
			result.Header = r.Headers.Clone()
		}
		if r.Request != nil && r.Request.URL != nil {
			result.URL = r.Request.URL.String()
		}
	})
	c.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			result.StatusCode = r.StatusCode
		}
	})

	hdr := make(http.Header, len(f.headers)+len(headers))
	for k, v := range f.headers {
		hdr.Set(k, v)
	}
	for k, v := range headers {
		hdr.Set(k, v)
	}

	if err := c.Request(http.MethodGet, rawURL, nil, nil, hdr); err != nil {
		return result, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	return result, nil
}
