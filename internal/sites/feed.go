package sites

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/jonesrussell/newsharvest/internal/links"
)

// httpPrefix is the scheme prefix used to decide whether a GUID is a usable URL.
const httpPrefix = "http"

// FeedLinks parses an RSS or Atom document and returns the item URLs resolved
// against feedURL. Items without a usable link are skipped.
func FeedLinks(feedURL string, body []byte) ([]string, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	hrefs := make([]string, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if link := itemLink(item); link != "" {
			hrefs = append(hrefs, link)
		}
	}
	return links.ResolveAll(feedURL, hrefs), nil
}

func itemLink(item *gofeed.Item) string {
	if item.Link != "" {
		return item.Link
	}
	if strings.HasPrefix(item.GUID, httpPrefix) {
		return item.GUID
	}
	return ""
}
