package sites

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/newsharvest/internal/domain"
	"github.com/jonesrussell/newsharvest/internal/links"
)

// ListingLinks returns the absolute article URLs found on a fetched listing
// page, in document order, without duplicates.
func (s *Site) ListingLinks(pageURL string, body []byte) ([]string, error) {
	if s.Listing.Feed {
		return FeedLinks(pageURL, body)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}
	return links.ResolveAll(pageURL, s.ListingHrefs(doc)), nil
}

// ListingHrefs returns the raw link attribute of every listing anchor.
func (s *Site) ListingHrefs(doc *goquery.Document) []string {
	var hrefs []string
	doc.Find(s.Listing.LinkSelector).Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr(s.Listing.LinkAttr); ok {
			hrefs = append(hrefs, href)
		}
	})
	return hrefs
}

// Extract parses an article page and applies every field rule. The content
// fallback runs only when the article_content rule yields nothing.
func (s *Site) Extract(pageURL string, body []byte) (map[domain.FieldName]*string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse article html: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse article url: %w", err)
	}

	fields := s.ExtractFields(doc, base)
	if fields[domain.FieldArticleContent] == nil && s.ContentFallback == FallbackReadability {
		if text := ReadabilityText(body, base); text != "" {
			fields[domain.FieldArticleContent] = &text
		}
	}
	return fields, nil
}

// ExtractFields applies the field rules to doc. A rule that matches nothing
// leaves its field nil; fields without a rule are nil.
func (s *Site) ExtractFields(doc *goquery.Document, base *url.URL) map[domain.FieldName]*string {
	out := make(map[domain.FieldName]*string, len(domain.ArticleFields))
	for _, name := range domain.ArticleFields {
		rule, ok := s.Fields[name]
		if !ok {
			out[name] = nil
			continue
		}
		out[name] = rule.apply(doc, base)
	}
	return out
}

func (r FieldRule) apply(doc *goquery.Document, base *url.URL) *string {
	values := r.values(doc.Find(r.Selector))
	if len(values) == 0 {
		return nil
	}

	var value string
	switch {
	case r.Index != nil:
		i := *r.Index
		if i < 0 {
			i += len(values)
		}
		if i < 0 || i >= len(values) {
			return nil
		}
		value = values[i]
	case r.All:
		value = strings.Join(values, r.Join)
	default:
		value = values[0]
	}

	if r.re != nil {
		m := r.re.FindStringSubmatch(value)
		if m == nil {
			return nil
		}
		value = m[0]
		if len(m) > 1 {
			value = m[1]
		}
	}

	if r.Absolute {
		abs, err := links.Resolve(base, value)
		if err != nil {
			return nil
		}
		value = abs
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

// values returns the trimmed, non-empty text or attribute of every match.
func (r FieldRule) values(sel *goquery.Selection) []string {
	var values []string
	sel.Each(func(_ int, node *goquery.Selection) {
		var v string
		if r.Attr != "" {
			attr, ok := node.Attr(r.Attr)
			if !ok {
				return
			}
			v = attr
		} else {
			v = node.Text()
		}
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	})
	return values
}
