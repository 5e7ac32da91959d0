// Package sites holds site adapters: per-site seeds, headers, pagination
// policy and field selectors, loaded from YAML.
package sites

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/jonesrussell/newsharvest/internal/domain"
)

// Interaction modes.
const (
	ModeNone        = "none"
	ModeInteractive = "interactive"
)

// FallbackReadability enables readability extraction for empty article content.
const FallbackReadability = "readability"

const (
	defaultLinkAttr  = "href"
	defaultPageParam = "page"
	defaultJoin      = " "
)

var (
	// ErrSiteNotFound is returned when no adapter has the requested name.
	ErrSiteNotFound = errors.New("site not found")
	// ErrInvalidSite is wrapped by every adapter validation failure.
	ErrInvalidSite = errors.New("invalid site")
)

// Site is one adapter definition.
type Site struct {
	Name        string            `yaml:"name"`
	OutputFile  string            `yaml:"output_file"`
	StatsFile   string            `yaml:"stats_file"`
	Seeds       Seeds             `yaml:"seeds"`
	Headers     map[string]string `yaml:"headers"`
	Interaction Interaction       `yaml:"interaction"`
	Listing     Listing           `yaml:"listing"`
	// Fields maps record field names to extraction rules
	Fields map[domain.FieldName]FieldRule `yaml:"fields"`
	// ContentFallback names an extractor used when article_content comes back empty
	ContentFallback string `yaml:"content_fallback"`

	// dir is the directory the definition was loaded from; relative paths resolve against it
	dir string
}

// Seeds lists the listing pages a run starts from.
type Seeds struct {
	URLs     []string `yaml:"urls"`
	URLsFile string   `yaml:"urls_file"`
	// Pages > 0 expands every seed into ?<page_param>=1..Pages
	Pages     int    `yaml:"pages"`
	PageParam string `yaml:"page_param"`
}

// Interaction configures the "load more" sequence.
type Interaction struct {
	Mode           string `yaml:"mode"`
	MaxReveals     int    `yaml:"max_reveals"`
	RevealSelector string `yaml:"reveal_selector"`
}

// Interactive reports whether listings need a rendered page.
func (i Interaction) Interactive() bool {
	return i.Mode == ModeInteractive
}

// Listing configures link discovery on a listing page.
type Listing struct {
	LinkSelector string `yaml:"link_selector"`
	LinkAttr     string `yaml:"link_attr"`
	// Feed treats the listing as RSS/Atom; links come from item URLs
	Feed bool `yaml:"feed"`
}

// FieldRule extracts one record field.
type FieldRule struct {
	Selector string `yaml:"selector"`
	// Attr reads an attribute instead of element text
	Attr string `yaml:"attr"`
	// Absolute resolves the value against the page URL
	Absolute bool `yaml:"absolute"`
	// All joins every match with Join
	All  bool   `yaml:"all"`
	Join string `yaml:"join"`
	// Index picks the n-th non-empty match
	Index *int `yaml:"index"`
	// Pattern keeps the first capture group (or the whole match) of a regex
	Pattern string `yaml:"pattern"`

	re *regexp.Regexp
}

// SetDefaults fills zero values.
func (s *Site) SetDefaults() {
	if s.OutputFile == "" {
		s.OutputFile = s.Name + ".json"
	}
	if s.StatsFile == "" {
		s.StatsFile = s.Name + "_spider_stats.json"
	}
	if s.Seeds.PageParam == "" {
		s.Seeds.PageParam = defaultPageParam
	}
	if s.Interaction.Mode == "" {
		s.Interaction.Mode = ModeNone
	}
	if s.Listing.LinkAttr == "" {
		s.Listing.LinkAttr = defaultLinkAttr
	}
	for name, rule := range s.Fields {
		if rule.All && rule.Join == "" {
			rule.Join = defaultJoin
		}
		s.Fields[name] = rule
	}
}

// Validate checks the definition and compiles field patterns.
func (s *Site) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSite)
	}
	if len(s.Seeds.URLs) == 0 && s.Seeds.URLsFile == "" {
		return fmt.Errorf("%w: %s: seeds.urls or seeds.urls_file is required", ErrInvalidSite, s.Name)
	}
	if s.Seeds.Pages < 0 {
		return fmt.Errorf("%w: %s: seeds.pages must be non-negative", ErrInvalidSite, s.Name)
	}

	switch s.Interaction.Mode {
	case ModeNone:
	case ModeInteractive:
		if s.Interaction.RevealSelector == "" {
			return fmt.Errorf("%w: %s: interaction.reveal_selector is required in interactive mode", ErrInvalidSite, s.Name)
		}
		if s.Interaction.MaxReveals < 0 {
			return fmt.Errorf("%w: %s: interaction.max_reveals must be non-negative", ErrInvalidSite, s.Name)
		}
		if s.Listing.Feed {
			return fmt.Errorf("%w: %s: feed listings cannot be interactive", ErrInvalidSite, s.Name)
		}
	default:
		return fmt.Errorf("%w: %s: unknown interaction.mode %q", ErrInvalidSite, s.Name, s.Interaction.Mode)
	}

	if !s.Listing.Feed && s.Listing.LinkSelector == "" {
		return fmt.Errorf("%w: %s: listing.link_selector is required", ErrInvalidSite, s.Name)
	}

	for name, rule := range s.Fields {
		if !isKnownField(name) {
			return fmt.Errorf("%w: %s: unknown field %q", ErrInvalidSite, s.Name, name)
		}
		if rule.Selector == "" {
			return fmt.Errorf("%w: %s: fields.%s.selector is required", ErrInvalidSite, s.Name, name)
		}
		if rule.Pattern != "" {
			re, err := regexp.Compile(rule.Pattern)
			if err != nil {
				return fmt.Errorf("%w: %s: fields.%s.pattern: %w", ErrInvalidSite, s.Name, name, err)
			}
			rule.re = re
			s.Fields[name] = rule
		}
	}

	switch s.ContentFallback {
	case "", FallbackReadability:
	default:
		return fmt.Errorf("%w: %s: unknown content_fallback %q", ErrInvalidSite, s.Name, s.ContentFallback)
	}
	return nil
}

func isKnownField(name domain.FieldName) bool {
	return slices.Contains(domain.ArticleFields, name)
}

// Policy returns the interaction policy for this site's jobs, honouring an
// optional max-reveals override (negative means no override).
func (s *Site) Policy(maxRevealsOverride int) domain.InteractionPolicy {
	if !s.Interaction.Interactive() {
		return domain.NoInteraction()
	}
	n := s.Interaction.MaxReveals
	if maxRevealsOverride >= 0 {
		n = maxRevealsOverride
	}
	return domain.Interactive(n)
}
