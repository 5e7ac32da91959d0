package sites

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonesrussell/newsharvest/internal/domain"
)

// JobOptions override site settings for one run. Negative values leave the
// site setting untouched.
type JobOptions struct {
	MaxReveals int
	Pages      int
}

// DefaultJobOptions overrides nothing.
func DefaultJobOptions() JobOptions {
	return JobOptions{MaxReveals: -1, Pages: -1}
}

// SeedURLs returns the configured seeds followed by those in urls_file, in
// order, without duplicates. Blank lines and lines starting with # are skipped.
func (s *Site) SeedURLs() ([]string, error) {
	seeds := make([]string, 0, len(s.Seeds.URLs))
	seeds = append(seeds, s.Seeds.URLs...)

	if s.Seeds.URLsFile != "" {
		fromFile, err := readURLFile(s.resolvePath(s.Seeds.URLsFile))
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, fromFile...)
	}

	seen := make(map[string]struct{}, len(seeds))
	out := seeds[:0]
	for _, raw := range seeds {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if _, dup := seen[raw]; dup {
			continue
		}
		seen[raw] = struct{}{}
		out = append(out, raw)
	}
	return out, nil
}

func (s *Site) resolvePath(p string) string {
	if filepath.IsAbs(p) || s.dir == "" {
		return p
	}
	return filepath.Join(s.dir, p)
}

func readURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open urls file: %w", err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("read urls file %s: %w", path, err)
	}
	return urls, nil
}

// Jobs builds the immutable job list for a run.
func (s *Site) Jobs(opts JobOptions) ([]domain.CrawlJob, error) {
	seeds, err := s.SeedURLs()
	if err != nil {
		return nil, err
	}

	pages := s.Seeds.Pages
	if opts.Pages >= 0 {
		pages = opts.Pages
	}
	policy := s.Policy(opts.MaxReveals)

	jobs := make([]domain.CrawlJob, 0, len(seeds)*max(pages, 1))
	for _, seed := range seeds {
		listingURLs, expandErr := expandPages(seed, s.Seeds.PageParam, pages)
		if expandErr != nil {
			return nil, expandErr
		}
		for _, u := range listingURLs {
			jobs = append(jobs, domain.CrawlJob{
				ListingURL: u,
				Policy:     policy,
				Site:       s.Name,
			})
		}
	}
	return jobs, nil
}

// expandPages returns seed unchanged when pages is 0, otherwise one URL per
// page with param set to 1..pages.
func expandPages(seed, param string, pages int) ([]string, error) {
	if pages <= 0 {
		return []string{seed}, nil
	}

	parsed, err := url.Parse(seed)
	if err != nil {
		return nil, fmt.Errorf("parse seed %q: %w", seed, err)
	}

	out := make([]string, 0, pages)
	for page := 1; page <= pages; page++ {
		u := *parsed
		q := u.Query()
		q.Set(param, strconv.Itoa(page))
		u.RawQuery = q.Encode()
		out = append(out, u.String())
	}
	return out, nil
}
