// Package pagination drives the "load more" sequence on a rendered listing
// page and reads the article links it reveals.
package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/newsharvest/internal/domain"
	"github.com/jonesrussell/newsharvest/internal/links"
	"github.com/jonesrussell/newsharvest/internal/logger"
	"github.com/jonesrussell/newsharvest/internal/stats"
)

var (
	// ErrControlUnavailable means the reveal control did not become
	// interactable within the wait. It ends pagination normally.
	ErrControlUnavailable = errors.New("reveal control unavailable")

	// ErrClickIntercepted means another element received the click.
	ErrClickIntercepted = errors.New("click intercepted")
)

// Control is a located, interactable reveal control.
type Control interface {
	ScrollIntoView(ctx context.Context) error
	// Click performs a user-like click. It returns ErrClickIntercepted when
	// the control is covered by another element.
	Click(ctx context.Context) error
	// DispatchClick activates the control programmatically.
	DispatchClick(ctx context.Context) error
}

// Page is a live rendered listing page.
type Page interface {
	ScrollToBottom(ctx context.Context) error
	// Reveal waits up to timeout for selector to be visible and returns it.
	// It returns ErrControlUnavailable when it never appears.
	Reveal(ctx context.Context, selector string, timeout time.Duration) (Control, error)
	// Links returns the attr value of every element matching selector.
	Links(ctx context.Context, selector, attr string) ([]string, error)
	BaseURL() string
	Wait(ctx context.Context, d time.Duration) error
}

// Session is a rendered page bound to one listing URL. Close releases it.
type Session interface {
	Page
	Close() error
}

// SessionProvider opens rendered sessions.
type SessionProvider interface {
	Acquire(ctx context.Context, url string, headers map[string]string) (Session, error)
}

// Recorder receives interaction outcomes.
type Recorder interface {
	RecordReveal()
	RecordError(stage stats.Stage, msg string)
}

// Policy configures one Expand call.
type Policy struct {
	MaxReveals     int
	RevealSelector string
	LinkSelector   string
	LinkAttr       string
	ScrollSettle   time.Duration
	RevealSettle   time.Duration
	RevealTimeout  time.Duration
}

// Result is the outcome of Expand. Links is never nil.
type Result struct {
	Links []string
	State domain.PaginationState
}

// Controller runs the reveal loop.
type Controller struct {
	stats Recorder
	log   logger.Logger
}

// NewController creates a Controller reporting to rec.
func NewController(rec Recorder, log logger.Logger) *Controller {
	return &Controller{
		stats: rec,
		log:   log.With(logger.Component("pagination")),
	}
}

// Expand activates the reveal control up to policy.MaxReveals times, then runs
// the link query once. Interaction failures end the loop with outcome error
// but the links revealed so far are still returned; only a failed link query
// is returned as an error.
func (c *Controller) Expand(ctx context.Context, page Page, policy Policy) (Result, error) {
	state := domain.PaginationState{MaxReveals: max(policy.MaxReveals, 0)}

	for state.Reveals < state.MaxReveals {
		err := c.revealOnce(ctx, page, policy)
		if errors.Is(err, ErrControlUnavailable) {
			state.Outcome = domain.OutcomeExhausted
			break
		}
		if err != nil {
			state.Outcome = domain.OutcomeError
			c.stats.RecordError(stats.StageInteraction, fmt.Sprintf(
				"Reveal failed on %s after %d reveals: %v", page.BaseURL(), state.Reveals, err,
			))
			break
		}
		state.Reveals++
		c.stats.RecordReveal()
		c.log.Debug("Revealed more content",
			logger.String("url", page.BaseURL()),
			logger.Int("reveals", state.Reveals),
		)
	}
	if state.Outcome == "" {
		state.Outcome = domain.OutcomeLimitReached
	}

	result := Result{Links: []string{}, State: state}

	attr := policy.LinkAttr
	if attr == "" {
		attr = "href"
	}
	hrefs, err := page.Links(ctx, policy.LinkSelector, attr)
	if err != nil {
		return result, fmt.Errorf("query links on %s: %w", page.BaseURL(), err)
	}
	result.Links = links.ResolveAll(page.BaseURL(), hrefs)

	c.log.Info("Pagination finished",
		logger.String("url", page.BaseURL()),
		logger.String("outcome", string(state.Outcome)),
		logger.Int("reveals", state.Reveals),
		logger.Int("links", len(result.Links)),
	)
	return result, nil
}

// revealOnce performs one scroll, locate, click, settle cycle.
func (c *Controller) revealOnce(ctx context.Context, page Page, policy Policy) error {
	if err := page.ScrollToBottom(ctx); err != nil {
		return fmt.Errorf("scroll to bottom: %w", err)
	}
	if err := page.Wait(ctx, policy.ScrollSettle); err != nil {
		return err
	}

	control, err := page.Reveal(ctx, policy.RevealSelector, policy.RevealTimeout)
	if err != nil {
		return err
	}

	if err = control.ScrollIntoView(ctx); err != nil {
		return fmt.Errorf("scroll control into view: %w", err)
	}

	if err = control.Click(ctx); err != nil {
		if !errors.Is(err, ErrClickIntercepted) {
			return fmt.Errorf("click control: %w", err)
		}
		c.log.Debug("Click intercepted, dispatching programmatic click",
			logger.String("url", page.BaseURL()),
		)
		if err = control.DispatchClick(ctx); err != nil {
			return fmt.Errorf("dispatch click: %w", err)
		}
	}

	return page.Wait(ctx, policy.RevealSettle)
}
