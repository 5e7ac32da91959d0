// Package crawl implements the crawl command for running one site's listings.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	cmdcommon "github.com/jonesrussell/newsharvest/cmd/common"
	"github.com/jonesrussell/newsharvest/internal/browser"
	"github.com/jonesrussell/newsharvest/internal/config"
	"github.com/jonesrussell/newsharvest/internal/dispatcher"
	"github.com/jonesrussell/newsharvest/internal/domain"
	"github.com/jonesrussell/newsharvest/internal/fetcher"
	"github.com/jonesrussell/newsharvest/internal/logger"
	"github.com/jonesrussell/newsharvest/internal/pagination"
	"github.com/jonesrussell/newsharvest/internal/sites"
	"github.com/jonesrussell/newsharvest/internal/stats"
	"github.com/jonesrussell/newsharvest/internal/store"
)

const flushTimeout = 30 * time.Second

// Crawler holds everything one run needs. Build it with constructCrawlerDependencies.
type Crawler struct {
	logger     logger.Logger
	site       *sites.Site
	jobs       []domain.CrawlJob
	stats      *stats.RunStats
	dispatcher *dispatcher.Dispatcher
	closers    []func() error
}

// Start runs every job, then flushes statistics even when the run failed or
// was interrupted.
func (c *Crawler) Start(ctx context.Context) error {
	defer c.close()

	c.logger.Info("Crawl started",
		logger.String("site", c.site.Name),
		logger.Int("jobs", len(c.jobs)),
	)

	runErr := c.dispatcher.Run(ctx, c.jobs)
	if runErr != nil {
		c.logger.Error("Crawl aborted", logger.Error(runErr))
	}

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancel()
	flushErr := c.stats.Flush(flushCtx)

	c.stats.LogSummary()
	RenderSummary(os.Stdout, c.stats.Snapshot())

	return errors.Join(runErr, flushErr)
}

func (c *Crawler) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			c.logger.Warn("Failed to release resource", logger.Error(err))
		}
	}
}

// Command returns the crawl command for use in the root command.
func Command() *cobra.Command {
	var (
		maxReveals int
		pages      int
	)

	cmd := &cobra.Command{
		Use:   "crawl <site>",
		Short: "Crawl a site's listing pages",
		Long: `Crawl fetches every listing page configured for the named site, follows the
article links found there and appends one record per article to the site's
output file. Statistics are written to the site's stats file when the run ends.

--max-reveals overrides the site's reveal limit for interactive listings and
--pages overrides its seed page expansion; negative values keep the site's setting.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := cmdcommon.NewCommandDeps()
			if err != nil {
				return fmt.Errorf("failed to initialize dependencies: %w", err)
			}
			defer func() { _ = deps.Logger.Sync() }()

			crawler, err := constructCrawlerDependencies(deps, args[0], sites.JobOptions{
				MaxReveals: maxReveals,
				Pages:      pages,
			})
			if err != nil {
				return fmt.Errorf("failed to construct crawler dependencies: %w", err)
			}

			return crawler.Start(cmd.Context())
		},
	}

	defaults := sites.DefaultJobOptions()
	cmd.Flags().IntVar(&maxReveals, "max-reveals", defaults.MaxReveals,
		"Override the site's max_reveals for interactive listings")
	cmd.Flags().IntVar(&pages, "pages", defaults.Pages,
		"Override the site's seed page expansion (0 disables it)")

	return cmd
}

// constructCrawlerDependencies wires the run for siteName.
func constructCrawlerDependencies(
	deps cmdcommon.CommandDeps,
	siteName string,
	opts sites.JobOptions,
) (*Crawler, error) {
	cfg := deps.Config
	log := deps.Logger

	registry, err := deps.LoadSites()
	if err != nil {
		return nil, err
	}
	site, err := registry.Find(siteName)
	if err != nil {
		return nil, err
	}

	jobs, err := site.Jobs(opts)
	if err != nil {
		return nil, fmt.Errorf("build jobs: %w", err)
	}

	runID := uuid.NewString()
	log = log.With(logger.String("run_id", runID), logger.String("site", site.Name))

	c := &Crawler{logger: log, site: site, jobs: jobs}

	sinks := []stats.Sink{stats.NewFileSink(filepath.Join(cfg.Output.StatsDir, site.StatsFile))}
	if cfg.Output.MetricsFile != "" {
		sinks = append(sinks, stats.NewPrometheusSink(cfg.Output.MetricsFile))
	}
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		c.closers = append(c.closers, client.Close)
		sinks = append(sinks, stats.NewRedisSink(client, cfg.Redis.KeyPrefix, cfg.Redis.TTL))
	}
	c.stats = stats.New(runID, site.Name, stats.WithSinks(sinks...), stats.WithLogger(log))

	sink, err := newRecordSink(cfg, site, c.stats, log)
	if err != nil {
		c.close()
		return nil, err
	}

	f, err := fetcher.New(cfg.Crawler, log)
	if err != nil {
		c.close()
		return nil, fmt.Errorf("create fetcher: %w", err)
	}

	sessions, closeSessions, err := newSessionProvider(cfg, jobs, log)
	if err != nil {
		c.close()
		return nil, err
	}
	if closeSessions != nil {
		c.closers = append(c.closers, closeSessions)
	}

	c.dispatcher, err = dispatcher.New(dispatcher.Params{
		Fetcher:  f,
		Sink:     sink,
		Stats:    c.stats,
		Adapters: dispatcher.Adapters{site.Name: site},
		Sessions: sessions,
		Options: dispatcher.Options{
			JobConcurrency: cfg.Crawler.JobConcurrency,
			Concurrency:    cfg.Crawler.Concurrency,
			JobTimeout:     cfg.Crawler.JobTimeout,
			ScrollSettle:   cfg.Browser.ScrollSettle,
			RevealSettle:   cfg.Browser.RevealSettle,
			RevealTimeout:  cfg.Browser.RevealTimeout,
		},
		Logger: log,
	})
	if err != nil {
		c.close()
		return nil, fmt.Errorf("create dispatcher: %w", err)
	}
	return c, nil
}

// newRecordSink opens the site's record file, mirrored into Elasticsearch when enabled.
func newRecordSink(
	cfg *config.Config,
	site *sites.Site,
	rs *stats.RunStats,
	log logger.Logger,
) (dispatcher.RecordSink, error) {
	fileStore, err := store.NewJSONFileStore(
		filepath.Join(cfg.Output.RecordsDir, site.OutputFile),
		store.WithLogger(log),
		store.WithCorruptHook(func(path string, size int) {
			rs.RecordError(stats.StageStore, fmt.Sprintf(
				"Discarded unreadable record file %s (%d bytes)", path, size))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}

	if !cfg.Elasticsearch.Enabled {
		return fileStore, nil
	}

	client, err := store.NewElasticsearchClient(cfg.Elasticsearch)
	if err != nil {
		return nil, err
	}
	indexer := store.NewIndexer(client, cfg.Elasticsearch.Index, log)
	onMirrorError := func(rec domain.ArticleRecord, mirrorErr error) {
		rs.RecordError(stats.StageStore, fmt.Sprintf("Failed to index %s: %v", rec.ArticleURL, mirrorErr))
	}
	return store.NewMirroredStore(fileStore, indexer, onMirrorError, log), nil
}

// newSessionProvider starts the browser pool when a job needs interaction.
// Without it, interactive jobs fall back to the links in the raw document.
func newSessionProvider(
	cfg *config.Config,
	jobs []domain.CrawlJob,
	log logger.Logger,
) (pagination.SessionProvider, func() error, error) {
	interactive := false
	for _, job := range jobs {
		if job.Policy.Interactive {
			interactive = true
			break
		}
	}
	if !interactive {
		return nil, nil, nil
	}
	if !cfg.Browser.Enabled {
		log.Warn("Site needs interactive pagination but the browser is disabled; only links in the raw listing will be followed")
		return nil, nil, nil
	}

	pool, err := browser.NewPool(cfg.Browser, cfg.Crawler.UserAgent, log)
	if err != nil {
		return nil, nil, fmt.Errorf("start browser pool: %w", err)
	}
	return pool, pool.Close, nil
}
