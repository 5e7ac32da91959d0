package config

import (
	"errors"
	"strings"
	"time"

	"github.com/jonesrussell/newsharvest/internal/logger"
)

// Default configuration values
const (
	DefaultConfigPath     = "config.yml"
	DefaultSitesDir       = "sites"
	DefaultRecordsDir     = "."
	DefaultUserAgent      = "newsharvest/1.0"
	DefaultRequestTimeout = 30 * time.Second
	DefaultDelay          = 1 * time.Second
	DefaultConcurrency    = 8
	DefaultJobConcurrency = 2
	DefaultMaxBodySize    = 10 * 1024 * 1024 // 10MB
	DefaultRetryInitial   = 500 * time.Millisecond
	DefaultRetryMax       = 5 * time.Second

	DefaultMaxSessions       = 1
	DefaultNavigationTimeout = 30 * time.Second
	DefaultScrollSettle      = 1 * time.Second
	DefaultRevealSettle      = 2 * time.Second
	DefaultRevealTimeout     = 10 * time.Second

	DefaultRedisKeyPrefix = "newsharvest:stats:"
	DefaultRedisTTL       = 7 * 24 * time.Hour
	DefaultRecordsIndex   = "newsharvest_articles"
)

// Config is the root configuration for a newsharvest run.
type Config struct {
	Logging       logger.Config       `yaml:"logging"`
	Crawler       CrawlerConfig       `yaml:"crawler"`
	Browser       BrowserConfig       `yaml:"browser"`
	Output        OutputConfig        `yaml:"output"`
	SitesDir      string              `env:"SITES_DIR"     yaml:"sites_dir"`
	Redis         RedisConfig         `yaml:"redis"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
}

// CrawlerConfig controls HTTP fetching and dispatch concurrency.
type CrawlerConfig struct {
	// UserAgent is sent on every request unless a site header overrides it
	UserAgent string `env:"CRAWLER_USER_AGENT" yaml:"user_agent"`
	// Headers are added to every request; site headers take precedence
	Headers map[string]string `yaml:"headers"`
	// RequestTimeout bounds a single HTTP fetch
	RequestTimeout time.Duration `env:"CRAWLER_REQUEST_TIMEOUT" yaml:"request_timeout"`
	// Delay is the fixed delay between requests to the same domain
	Delay time.Duration `env:"CRAWLER_DELAY" yaml:"delay"`
	// RandomDelay is added on top of Delay
	RandomDelay time.Duration `env:"CRAWLER_RANDOM_DELAY" yaml:"random_delay"`
	// Concurrency bounds article fetches per listing job
	Concurrency int `env:"CRAWLER_CONCURRENCY" yaml:"concurrency"`
	// JobConcurrency bounds listing jobs processed at once
	JobConcurrency int `env:"CRAWLER_JOB_CONCURRENCY" yaml:"job_concurrency"`
	// JobTimeout bounds a whole listing job (0 = unbounded)
	JobTimeout time.Duration `env:"CRAWLER_JOB_TIMEOUT" yaml:"job_timeout"`
	// MaxRetries is the number of extra attempts on transport errors and 5xx (0 = single attempt)
	MaxRetries int `env:"CRAWLER_MAX_RETRIES" yaml:"max_retries"`
	// RetryInitial is the first backoff interval
	RetryInitial time.Duration `env:"CRAWLER_RETRY_INITIAL" yaml:"retry_initial"`
	// RetryMax caps the backoff interval
	RetryMax time.Duration `env:"CRAWLER_RETRY_MAX" yaml:"retry_max"`
	// RespectRobotsTxt blocks URLs disallowed by robots.txt
	RespectRobotsTxt bool `env:"CRAWLER_RESPECT_ROBOTS_TXT" yaml:"respect_robots_txt"`
	// MaxBodySize is the maximum response body size in bytes
	MaxBodySize int `env:"CRAWLER_MAX_BODY_SIZE" yaml:"max_body_size"`
}

// BrowserConfig controls rendered-page sessions used for interactive pagination.
type BrowserConfig struct {
	Enabled           bool          `env:"BROWSER_ENABLED"            yaml:"enabled"`
	Headless          *bool         `yaml:"headless"`
	SkipInstall       bool          `env:"BROWSER_SKIP_INSTALL"       yaml:"skip_install"`
	MaxSessions       int           `env:"BROWSER_MAX_SESSIONS"       yaml:"max_sessions"`
	NavigationTimeout time.Duration `env:"BROWSER_NAVIGATION_TIMEOUT" yaml:"navigation_timeout"`
	// NavigationDelay is the minimum gap between page navigations across sessions
	NavigationDelay time.Duration `env:"BROWSER_NAVIGATION_DELAY" yaml:"navigation_delay"`
	ScrollSettle    time.Duration `env:"BROWSER_SCROLL_SETTLE"    yaml:"scroll_settle"`
	RevealSettle    time.Duration `env:"BROWSER_REVEAL_SETTLE"    yaml:"reveal_settle"`
	RevealTimeout   time.Duration `env:"BROWSER_REVEAL_TIMEOUT"   yaml:"reveal_timeout"`
}

// IsHeadless reports whether the browser runs headless. Defaults to true.
func (b BrowserConfig) IsHeadless() bool {
	return b.Headless == nil || *b.Headless
}

// OutputConfig controls where record and stats files are written.
type OutputConfig struct {
	RecordsDir string `env:"OUTPUT_RECORDS_DIR" yaml:"records_dir"`
	StatsDir   string `env:"OUTPUT_STATS_DIR"   yaml:"stats_dir"`
	// MetricsFile is a Prometheus textfile written at the end of a run (empty = off)
	MetricsFile string `env:"OUTPUT_METRICS_FILE" yaml:"metrics_file"`
}

// RedisConfig enables the Redis stats snapshot sink.
type RedisConfig struct {
	Enabled   bool          `env:"REDIS_ENABLED"    yaml:"enabled"`
	Address   string        `env:"REDIS_ADDRESS"    yaml:"address"`
	Password  string        `env:"REDIS_PASSWORD"   yaml:"password"`
	DB        int           `env:"REDIS_DB"         yaml:"db"`
	KeyPrefix string        `env:"REDIS_KEY_PREFIX" yaml:"key_prefix"`
	TTL       time.Duration `env:"REDIS_TTL"        yaml:"ttl"`
}

// ElasticsearchConfig enables mirroring records into an index.
type ElasticsearchConfig struct {
	Enabled   bool     `env:"ELASTICSEARCH_ENABLED"    yaml:"enabled"`
	Addresses []string `env:"ELASTICSEARCH_ADDRESSES"  yaml:"addresses"`
	Username  string   `env:"ELASTICSEARCH_USERNAME"   yaml:"username"`
	Password  string   `env:"ELASTICSEARCH_PASSWORD"   yaml:"password"`
	APIKey    string   `env:"ELASTICSEARCH_API_KEY"    yaml:"api_key"`
	Index     string   `env:"ELASTICSEARCH_INDEX_NAME" yaml:"index"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	c.Logging.SetDefaults()
	if c.SitesDir == "" {
		c.SitesDir = DefaultSitesDir
	}

	c.Crawler.setDefaults()
	c.Browser.setDefaults()

	if c.Output.RecordsDir == "" {
		c.Output.RecordsDir = DefaultRecordsDir
	}
	if c.Output.StatsDir == "" {
		c.Output.StatsDir = c.Output.RecordsDir
	}

	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = DefaultRedisTTL
	}
	if c.Elasticsearch.Index == "" {
		c.Elasticsearch.Index = DefaultRecordsIndex
	}
}

func (c *CrawlerConfig) setDefaults() {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.Delay == 0 {
		c.Delay = DefaultDelay
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.JobConcurrency == 0 {
		c.JobConcurrency = DefaultJobConcurrency
	}
	if c.RetryInitial == 0 {
		c.RetryInitial = DefaultRetryInitial
	}
	if c.RetryMax == 0 {
		c.RetryMax = DefaultRetryMax
	}
	if c.MaxBodySize == 0 {
		c.MaxBodySize = DefaultMaxBodySize
	}
}

func (b *BrowserConfig) setDefaults() {
	if b.MaxSessions == 0 {
		b.MaxSessions = DefaultMaxSessions
	}
	if b.NavigationTimeout == 0 {
		b.NavigationTimeout = DefaultNavigationTimeout
	}
	if b.ScrollSettle == 0 {
		b.ScrollSettle = DefaultScrollSettle
	}
	if b.RevealSettle == 0 {
		b.RevealSettle = DefaultRevealSettle
	}
	if b.RevealTimeout == 0 {
		b.RevealTimeout = DefaultRevealTimeout
	}
}

// Validate checks every section and joins the failures.
func (c *Config) Validate() error {
	return errors.Join(
		c.Crawler.Validate(),
		c.Browser.Validate(),
		c.Output.Validate(),
		c.Redis.Validate(),
		c.Elasticsearch.Validate(),
	)
}

// Validate validates the crawler section.
func (c *CrawlerConfig) Validate() error {
	switch {
	case c.Concurrency < 1:
		return invalid(ErrInvalidCrawler, "concurrency", c.Concurrency, "must be positive")
	case c.JobConcurrency < 1:
		return invalid(ErrInvalidCrawler, "job_concurrency", c.JobConcurrency, "must be positive")
	case c.RequestTimeout < 0:
		return invalid(ErrInvalidCrawler, "request_timeout", c.RequestTimeout, "must be non-negative")
	case c.Delay < 0:
		return invalid(ErrInvalidCrawler, "delay", c.Delay, "must be non-negative")
	case c.RandomDelay < 0:
		return invalid(ErrInvalidCrawler, "random_delay", c.RandomDelay, "must be non-negative")
	case c.JobTimeout < 0:
		return invalid(ErrInvalidCrawler, "job_timeout", c.JobTimeout, "must be non-negative")
	case c.MaxRetries < 0:
		return invalid(ErrInvalidCrawler, "max_retries", c.MaxRetries, "must be non-negative")
	case c.MaxBodySize < 0:
		return invalid(ErrInvalidCrawler, "max_body_size", c.MaxBodySize, "must be non-negative")
	}
	return nil
}

// Validate validates the browser section.
func (b *BrowserConfig) Validate() error {
	switch {
	case b.MaxSessions < 1:
		return invalid(ErrInvalidBrowser, "max_sessions", b.MaxSessions, "must be positive")
	case b.RevealTimeout < 0:
		return invalid(ErrInvalidBrowser, "reveal_timeout", b.RevealTimeout, "must be non-negative")
	case b.NavigationDelay < 0:
		return invalid(ErrInvalidBrowser, "navigation_delay", b.NavigationDelay, "must be non-negative")
	}
	return nil
}

// Validate validates the output section.
func (o *OutputConfig) Validate() error {
	if strings.TrimSpace(o.RecordsDir) == "" {
		return invalid(ErrInvalidOutput, "records_dir", o.RecordsDir, "must not be empty")
	}
	return nil
}

// Validate validates the redis section. A disabled section is always valid.
func (r *RedisConfig) Validate() error {
	if !r.Enabled {
		return nil
	}
	if r.Address == "" {
		return invalid(ErrInvalidRedis, "address", r.Address, "required when enabled")
	}
	if r.TTL < 0 {
		return invalid(ErrInvalidRedis, "ttl", r.TTL, "must be non-negative")
	}
	return nil
}

// Validate validates the elasticsearch section. A disabled section is always valid.
func (e *ElasticsearchConfig) Validate() error {
	if !e.Enabled {
		return nil
	}
	if len(e.Addresses) == 0 {
		return invalid(ErrInvalidElasticsearch, "addresses", e.Addresses, "required when enabled")
	}
	if e.Index == "" {
		return invalid(ErrInvalidElasticsearch, "index", e.Index, "required when enabled")
	}
	return nil
}
