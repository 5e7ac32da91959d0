// Package domain holds the value types shared by the crawl engine components.
package domain

import "fmt"

// InteractionPolicy says whether a listing page needs "reveal more" interaction
// in a rendered page before its links can be read.
type InteractionPolicy struct {
	Interactive bool
	MaxReveals  int
}

// NoInteraction is the policy for listing pages whose links are in the raw document.
func NoInteraction() InteractionPolicy {
	return InteractionPolicy{}
}

// Interactive returns a policy allowing up to maxReveals activations of the reveal control.
// Negative values are clamped to zero.
func Interactive(maxReveals int) InteractionPolicy {
	if maxReveals < 0 {
		maxReveals = 0
	}
	return InteractionPolicy{Interactive: true, MaxReveals: maxReveals}
}

func (p InteractionPolicy) String() string {
	if !p.Interactive {
		return "none"
	}
	return fmt.Sprintf("interactive(%d)", p.MaxReveals)
}

// CrawlJob is one listing URL to process. Jobs are built once at run start and never mutated.
type CrawlJob struct {
	ListingURL string
	Policy     InteractionPolicy
	// Site is the name of the adapter that knows how to read this listing.
	Site string
}

// ArticleLink is an absolute article URL discovered on a listing page.
type ArticleLink struct {
	URL string
	Job CrawlJob
}
