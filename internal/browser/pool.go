// Package browser provides rendered-page sessions backed by Playwright for
// listings that only reveal their links after interaction.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/playwright-community/playwright-go"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/jonesrussell/newsharvest/internal/config"
	"github.com/jonesrussell/newsharvest/internal/logger"
	"github.com/jonesrussell/newsharvest/internal/pagination"
)

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("browser pool closed")

// Pool owns one browser process and bounds how many sessions are open at once.
type Pool struct {
	pw        *playwright.Playwright
	browser   playwright.Browser
	sem       *semaphore.Weighted
	limiter   *rate.Limiter
	cfg       config.BrowserConfig
	userAgent string
	log       logger.Logger

	mu     sync.Mutex
	closed bool
}

// NewPool starts Playwright and launches Chromium.
func NewPool(cfg config.BrowserConfig, userAgent string, log logger.Logger) (*Pool, error) {
	pw, err := playwright.Run(&playwright.RunOptions{
		SkipInstallBrowsers: cfg.SkipInstall,
	})
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.IsHeadless()),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	limit := rate.Inf
	if cfg.NavigationDelay > 0 {
		limit = rate.Every(cfg.NavigationDelay)
	}

	p := &Pool{
		pw:        pw,
		browser:   b,
		sem:       semaphore.NewWeighted(int64(max(cfg.MaxSessions, 1))),
		limiter:   rate.NewLimiter(limit, 1),
		cfg:       cfg,
		userAgent: userAgent,
		log:       log.With(logger.Component("browser")),
	}
	p.log.Info("Browser pool started",
		logger.Int("max_sessions", cfg.MaxSessions),
		logger.Bool("headless", cfg.IsHeadless()),
	)
	return p, nil
}

// Acquire opens a page on url in a fresh browser context. It blocks while
// max_sessions sessions are open. The session must be closed by the caller.
func (p *Pool) Acquire(ctx context.Context, url string, headers map[string]string) (pagination.Session, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, ErrPoolClosed
	}

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("wait for browser session: %w", err)
	}
	release := func() { p.sem.Release(1) }

	if err := p.limiter.Wait(ctx); err != nil {
		release()
		return nil, fmt.Errorf("wait for navigation slot: %w", err)
	}

	bctx, err := p.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:        playwright.String(p.userAgent),
		ExtraHttpHeaders: headers,
	})
	if err != nil {
		release()
		return nil, fmt.Errorf("new browser context: %w", err)
	}
	bctx.SetDefaultNavigationTimeout(toMillis(p.cfg.NavigationTimeout))

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		release()
		return nil, fmt.Errorf("new page: %w", err)
	}

	s := &Session{
		url:     url,
		page:    page,
		bctx:    bctx,
		release: release,
		log:     p.log.With(logger.String("url", url)),
	}

	if _, err = page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("navigate to %s: %w", url, err)
	}

	s.log.Debug("Browser session opened")
	return s, nil
}

// Close shuts down the browser and the Playwright driver.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	var errs []error
	if err := p.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close browser: %w", err))
	}
	if err := p.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop playwright: %w", err))
	}
	return errors.Join(errs...)
}
