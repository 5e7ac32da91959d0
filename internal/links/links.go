// Package links resolves raw hrefs found on listing pages into absolute
// article URLs and derives the key used to fetch each URL once per run.
package links

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	errEmptyInput          = errors.New("resolve link: empty input")
	errMissingSchemeOrHost = errors.New("resolve link: missing scheme or host")
	errUnsupportedScheme   = errors.New("resolve link: unsupported scheme")
)

// defaultPorts maps schemes to their default port strings.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// Resolve turns href into an absolute http(s) URL relative to base. Fragments
// are dropped. Non-navigational hrefs (mailto:, javascript:, bare "#") fail.
func Resolve(base *url.URL, href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" {
		return "", errEmptyInput
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("resolve link: %w", err)
	}

	abs := ref
	if base != nil {
		abs = base.ResolveReference(ref)
	}

	scheme := strings.ToLower(abs.Scheme)
	if scheme != "http" && scheme != "https" {
		if scheme == "" || abs.Host == "" {
			return "", errMissingSchemeOrHost
		}
		return "", fmt.Errorf("%w: %s", errUnsupportedScheme, scheme)
	}
	if abs.Host == "" {
		return "", errMissingSchemeOrHost
	}

	abs.Fragment = ""
	abs.RawFragment = ""
	return abs.String(), nil
}

// ResolveAll resolves every href against base, skipping unusable ones and
// keeping the first occurrence of each URL.
func ResolveAll(base string, hrefs []string) []string {
	baseURL, err := url.Parse(base)
	if err != nil {
		baseURL = nil
	}

	seen := make(map[string]struct{}, len(hrefs))
	out := make([]string, 0, len(hrefs))
	for _, href := range hrefs {
		abs, resolveErr := Resolve(baseURL, href)
		if resolveErr != nil {
			continue
		}
		key := Key(abs)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, abs)
	}
	return out
}

// Key returns the dedupe key for an absolute URL: scheme and host lowercased,
// default port and fragment removed. Path and query are kept as-is.
func Key(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}

	scheme := strings.ToLower(parsed.Scheme)
	host := strings.ToLower(parsed.Hostname())
	if port := parsed.Port(); port != "" && defaultPorts[scheme] != port {
		host += ":" + port
	}

	parsed.Scheme = scheme
	parsed.Host = host
	parsed.Fragment = ""
	parsed.RawFragment = ""
	if parsed.Path == "" {
		parsed.Path = "/"
	}
	return parsed.String()
}
