package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/jonesrussell/newsharvest/internal/logger"
	"github.com/jonesrussell/newsharvest/internal/pagination"
)

const (
	scrollToBottomJS = "window.scrollTo(0, document.body.scrollHeight)"
	clickTimeout     = 5 * time.Second
	interceptedMsg   = "intercepts pointer events"
)

// Session is one open page. It implements pagination.Page.
type Session struct {
	url     string
	page    playwright.Page
	bctx    playwright.BrowserContext
	release func()
	log     logger.Logger

	closeOnce sync.Once
	closeErr  error
}

// BaseURL returns the page URL after redirects, or the requested URL.
func (s *Session) BaseURL() string {
	if s.page != nil {
		if u := s.page.URL(); u != "" && u != "about:blank" {
			return u
		}
	}
	return s.url
}

// ScrollToBottom implements pagination.Page.
func (s *Session) ScrollToBottom(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.page.Evaluate(scrollToBottomJS)
	return err
}

// Wait sleeps for d or until ctx is done.
func (s *Session) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Reveal waits for the first element matching selector to be visible and enabled.
func (s *Session) Reveal(ctx context.Context, selector string, timeout time.Duration) (pagination.Control, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	loc := s.page.Locator(selector).First()
	err := loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(toMillis(timeout)),
	})
	if err != nil {
		if errors.Is(err, playwright.ErrTimeout) {
			return nil, fmt.Errorf("%w: %s", pagination.ErrControlUnavailable, selector)
		}
		return nil, fmt.Errorf("wait for %s: %w", selector, err)
	}

	enabled, err := loc.IsEnabled()
	if err != nil {
		return nil, fmt.Errorf("check %s enabled: %w", selector, err)
	}
	if !enabled {
		return nil, fmt.Errorf("%w: %s is disabled", pagination.ErrControlUnavailable, selector)
	}

	return &control{loc: loc}, nil
}

// Links implements pagination.Page.
func (s *Session) Links(ctx context.Context, selector, attr string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	anchors, err := s.page.Locator(selector).All()
	if err != nil {
		return nil, fmt.Errorf("locate %s: %w", selector, err)
	}

	hrefs := make([]string, 0, len(anchors))
	for _, a := range anchors {
		v, attrErr := a.GetAttribute(attr)
		if attrErr != nil {
			return hrefs, fmt.Errorf("read %s: %w", attr, attrErr)
		}
		if v != "" {
			hrefs = append(hrefs, v)
		}
	}
	return hrefs, nil
}

// Close closes the page and its browser context and frees the pool slot.
// Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.page != nil {
			if err := s.page.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close page: %w", err))
			}
		}
		if s.bctx != nil {
			if err := s.bctx.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close browser context: %w", err))
			}
		}
		if s.release != nil {
			s.release()
		}
		s.closeErr = errors.Join(errs...)
		if s.log != nil {
			s.log.Debug("Browser session closed")
		}
	})
	return s.closeErr
}

type control struct {
	loc playwright.Locator
}

func (c *control) ScrollIntoView(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.loc.ScrollIntoViewIfNeeded()
}

func (c *control) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return classifyClickError(c.loc.Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(toMillis(clickTimeout)),
	}))
}

func (c *control) DispatchClick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.loc.DispatchEvent("click", nil, playwright.LocatorDispatchEventOptions{
		Timeout: playwright.Float(toMillis(clickTimeout)),
	})
}

// classifyClickError maps an obstructed click to ErrClickIntercepted.
func classifyClickError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) || strings.Contains(err.Error(), interceptedMsg) {
		return fmt.Errorf("%w: %w", pagination.ErrClickIntercepted, err)
	}
	return err
}

func toMillis(d time.Duration) float64 {
	return float64(d.Milliseconds())
}
