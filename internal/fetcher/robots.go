package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

const (
	defaultRobotsCacheTTL = 24 * time.Hour
	robotsTxtPath         = "/robots.txt"
	maxRobotsBodyBytes    = 512 * 1024 // 512 KB
)

// RobotsChecker checks and caches robots.txt rules per host. A missing,
// unreadable or non-2xx robots.txt allows everything.
type RobotsChecker struct {
	httpClient *http.Client
	userAgent  string
	cacheTTL   time.Duration

	mu    sync.RWMutex
	cache map[string]*robotsEntry // keyed by scheme://host
}

type robotsEntry struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
}

func (e *robotsEntry) allowAll() bool {
	return e.data == nil
}

// NewRobotsChecker creates a RobotsChecker. A zero cacheTTL uses 24h.
func NewRobotsChecker(httpClient *http.Client, userAgent string, cacheTTL time.Duration) *RobotsChecker {
	if cacheTTL == 0 {
		cacheTTL = defaultRobotsCacheTTL
	}
	return &RobotsChecker{
		httpClient: httpClient,
		userAgent:  userAgent,
		cacheTTL:   cacheTTL,
		cache:      make(map[string]*robotsEntry),
	}
}

// IsAllowed reports whether rawURL may be fetched by this user agent.
func (r *RobotsChecker) IsAllowed(ctx context.Context, rawURL string) (bool, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("robots: parse url: %w", err)
	}
	if parsed.Host == "" {
		return false, fmt.Errorf("robots: empty host in url %q", rawURL)
	}

	scheme := parsed.Scheme
	if scheme == "" {
		scheme = "https"
	}
	origin := scheme + "://" + strings.ToLower(parsed.Host)

	entry := r.cached(origin)
	if entry == nil {
		entry = r.fetch(ctx, origin)
	}
	if entry.allowAll() {
		return true, nil
	}

	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	return entry.data.TestAgent(path, r.userAgent), nil
}

func (r *RobotsChecker) cached(origin string) *robotsEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.cache[origin]
	if !ok || time.Since(entry.fetchedAt) > r.cacheTTL {
		return nil
	}
	return entry
}

func (r *RobotsChecker) fetch(ctx context.Context, origin string) *robotsEntry {
	entry := &robotsEntry{fetchedAt: time.Now()}

	if body, ok := r.download(ctx, origin+robotsTxtPath); ok {
		if data, err := robotstxt.FromBytes(body); err == nil {
			entry.data = data
		}
	}

	r.mu.Lock()
	r.cache[origin] = entry
	r.mu.Unlock()
	return entry
}

// download returns the body of a 2xx robots.txt response.
func (r *RobotsChecker) download(ctx context.Context, robotsURL string) ([]byte, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, http.NoBody)
	if err != nil {
		return nil, false
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBodyBytes))
	if err != nil {
		return nil, false
	}
	return body, true
}
