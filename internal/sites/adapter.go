package sites

import (
	"maps"

	"github.com/jonesrussell/newsharvest/internal/pagination"
)

// RequestHeaders returns a copy of the site's request headers.
func (s *Site) RequestHeaders() map[string]string {
	return maps.Clone(s.Headers)
}

// PaginationPolicy returns the selector part of the reveal policy; timings
// are left for the caller to fill from browser config.
func (s *Site) PaginationPolicy(maxReveals int) pagination.Policy {
	return pagination.Policy{
		MaxReveals:     maxReveals,
		RevealSelector: s.Interaction.RevealSelector,
		LinkSelector:   s.Listing.LinkSelector,
		LinkAttr:       s.Listing.LinkAttr,
	}
}
