package sites

import (
	"bytes"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// ReadabilityText runs a readability extractor over the full page and returns
// the main text, or "" when nothing usable is found.
func ReadabilityText(body []byte, pageURL *url.URL) string {
	if len(bytes.TrimSpace(body)) == 0 || pageURL == nil {
		return ""
	}

	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return ""
	}

	return strings.Join(strings.Fields(article.TextContent), " ")
}
