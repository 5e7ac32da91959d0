package sites_test

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/newsharvest/internal/domain"
	"github.com/jonesrussell/newsharvest/internal/sites"
)

const dtSite = `
name: digitalterminal
output_file: DT.json
stats_file: dt_spider_stats.json
seeds:
  urls: [https://digitalterminal.in/device]
headers:
  Referer: https://digitalterminal.in/
interaction:
  mode: interactive
  max_reveals: 2
  reveal_selector: 'div[data-test-id="load-more"]'
listing:
  link_selector: 'div[data-test-id="headline"] a'
fields:
  title:           {selector: "h1"}
  author_name:     {selector: 'div[data-test-id="author-name"] a'}
  author_url:      {selector: 'div[data-test-id="author-name"] a', attr: href, absolute: true}
  article_content: {selector: 'div[data-test-id="text"] p', all: true}
  published_date:  {selector: 'div.byline span', index: 1, pattern: '(\d{2}\.\d{2}\.\d{2})'}
`

const articleHTML = `<!doctype html>
<html><body>
  <h1>  Foldables hit record sales  </h1>
  <div data-test-id="author-name"><a href="/author/jane-doe">Jane Doe</a></div>
  <div class="byline"><span>Updated</span><span>Published 13.09.24, 07:18 AM</span></div>
  <div data-test-id="text">
    <p> First paragraph. </p>
    <p></p>
    <p>Second paragraph.</p>
  </div>
</body></html>`

func mustParse(t *testing.T, def string) *sites.Site {
	t.Helper()
	site, err := sites.Parse([]byte(def))
	require.NoError(t, err)
	return site
}

func TestParse_AppliesDefaults(t *testing.T) {
	t.Parallel()

	site := mustParse(t, `
name: telegraph
seeds:
  urls: [https://www.telegraphindia.com/india/page-1]
listing:
  link_selector: 'ul.storylisting a'
`)
	assert.Equal(t, "telegraph.json", site.OutputFile)
	assert.Equal(t, "telegraph_spider_stats.json", site.StatsFile)
	assert.Equal(t, sites.ModeNone, site.Interaction.Mode)
	assert.Equal(t, "href", site.Listing.LinkAttr)
	assert.Equal(t, "page", site.Seeds.PageParam)
	assert.Equal(t, domain.NoInteraction(), site.Policy(-1))
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		def  string
	}{
		{name: "empty", def: ""},
		{name: "missing name", def: "seeds: {urls: [https://a]}\nlisting: {link_selector: a}"},
		{name: "missing seeds", def: "name: x\nlisting: {link_selector: a}"},
		{name: "missing link selector", def: "name: x\nseeds: {urls: [https://a]}"},
		{name: "unknown mode", def: "name: x\nseeds: {urls: [https://a]}\nlisting: {link_selector: a}\ninteraction: {mode: scroll}"},
		{name: "interactive without selector", def: "name: x\nseeds: {urls: [https://a]}\nlisting: {link_selector: a}\ninteraction: {mode: interactive}"},
		{name: "unknown field", def: "name: x\nseeds: {urls: [https://a]}\nlisting: {link_selector: a}\nfields: {summary: {selector: p}}"},
		{name: "bad pattern", def: "name: x\nseeds: {urls: [https://a]}\nlisting: {link_selector: a}\nfields: {title: {selector: h1, pattern: '('}}"},
		{name: "unknown key", def: "name: x\nseeds: {urls: [https://a]}\nlisting: {link_selector: a}\ncolour: red"},
		{name: "unknown fallback", def: "name: x\nseeds: {urls: [https://a]}\nlisting: {link_selector: a}\ncontent_fallback: magic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := sites.Parse([]byte(tt.def))
			require.Error(t, err)
		})
	}
}

func TestSite_PolicyOverride(t *testing.T) {
	t.Parallel()

	site := mustParse(t, dtSite)
	assert.Equal(t, domain.Interactive(2), site.Policy(-1))
	assert.Equal(t, domain.Interactive(0), site.Policy(0))
	assert.Equal(t, domain.Interactive(7), site.Policy(7))
}

func TestSite_JobsExpandsPages(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "urls.txt"), []byte(
		"https://www.livemint.com/technology\n\n# comment\nhttps://www.livemint.com/news?sort=new\nhttps://www.livemint.com/technology\n",
	), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "livemint.yml"), []byte(`
name: livemint
seeds:
  urls_file: urls.txt
  pages: 2
listing:
  link_selector: 'h2 a'
`), 0o600))

	site, err := sites.LoadFile(filepath.Join(dir, "livemint.yml"))
	require.NoError(t, err)

	jobs, err := site.Jobs(sites.DefaultJobOptions())
	require.NoError(t, err)

	got := make([]string, 0, len(jobs))
	for _, j := range jobs {
		got = append(got, j.ListingURL)
		assert.Equal(t, "livemint", j.Site)
		assert.Equal(t, domain.NoInteraction(), j.Policy)
	}
	assert.Equal(t, []string{
		"https://www.livemint.com/technology?page=1",
		"https://www.livemint.com/technology?page=2",
		"https://www.livemint.com/news?page=1&sort=new",
		"https://www.livemint.com/news?page=2&sort=new",
	}, got)

	jobs, err = site.Jobs(sites.JobOptions{MaxReveals: -1, Pages: 0})
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}

func TestSite_JobsMissingURLFile(t *testing.T) {
	t.Parallel()

	site := mustParse(t, "name: x\nseeds: {urls_file: /nonexistent/urls.txt}\nlisting: {link_selector: a}")
	_, err := site.Jobs(sites.DefaultJobOptions())
	require.Error(t, err)
}

func TestSite_ListingLinks(t *testing.T) {
	t.Parallel()

	site := mustParse(t, dtSite)
	body := []byte(`<html><body>
		<div data-test-id="headline"><a href="/story/one">One</a></div>
		<div data-test-id="headline"><a href="https://digitalterminal.in/story/two">Two</a></div>
		<div data-test-id="headline"><a href="/story/one#top">One again</a></div>
		<div data-test-id="headline"><a>No href</a></div>
		<div class="other"><a href="/story/skip">Skip</a></div>
	</body></html>`)

	got, err := site.ListingLinks("https://digitalterminal.in/device", body)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://digitalterminal.in/story/one",
		"https://digitalterminal.in/story/two",
	}, got)
}

func TestSite_ExtractFields(t *testing.T) {
	t.Parallel()

	site := mustParse(t, dtSite)
	fields, err := site.Extract("https://digitalterminal.in/story/one", []byte(articleHTML))
	require.NoError(t, err)

	require.NotNil(t, fields[domain.FieldTitle])
	assert.Equal(t, "Foldables hit record sales", *fields[domain.FieldTitle])
	require.NotNil(t, fields[domain.FieldAuthorName])
	assert.Equal(t, "Jane Doe", *fields[domain.FieldAuthorName])
	require.NotNil(t, fields[domain.FieldAuthorURL])
	assert.Equal(t, "https://digitalterminal.in/author/jane-doe", *fields[domain.FieldAuthorURL])
	require.NotNil(t, fields[domain.FieldArticleContent])
	assert.Equal(t, "First paragraph. Second paragraph.", *fields[domain.FieldArticleContent])
	require.NotNil(t, fields[domain.FieldPublishedDate])
	assert.Equal(t, "13.09.24", *fields[domain.FieldPublishedDate])
}

func TestSite_ExtractFieldsMissesAreNull(t *testing.T) {
	t.Parallel()

	site := mustParse(t, dtSite)
	fields, err := site.Extract("https://digitalterminal.in/story/one", []byte(`<html><body><h1>Only a title</h1></body></html>`))
	require.NoError(t, err)

	assert.Len(t, fields, len(domain.ArticleFields))
	require.NotNil(t, fields[domain.FieldTitle])
	assert.Nil(t, fields[domain.FieldAuthorName])
	assert.Nil(t, fields[domain.FieldAuthorURL])
	assert.Nil(t, fields[domain.FieldArticleContent])
	assert.Nil(t, fields[domain.FieldPublishedDate])
}

func TestFieldRule_IndexOutOfRangeAndNegative(t *testing.T) {
	t.Parallel()

	site := mustParse(t, `
name: x
seeds: {urls: [https://a]}
listing: {link_selector: a}
fields:
  title: {selector: li, index: 5}
  author_name: {selector: li, index: -1}
`)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<ul><li>a</li><li>b</li><li>c</li></ul>`))
	require.NoError(t, err)
	base, _ := url.Parse("https://a/")

	fields := site.ExtractFields(doc, base)
	assert.Nil(t, fields[domain.FieldTitle])
	require.NotNil(t, fields[domain.FieldAuthorName])
	assert.Equal(t, "c", *fields[domain.FieldAuthorName])
}

func TestFeedLinks(t *testing.T) {
	t.Parallel()

	site := mustParse(t, `
name: feedsite
seeds: {urls: [https://news.example/rss]}
listing: {feed: true}
`)
	body := []byte(`<?xml version="1.0"?>
<rss version="2.0"><channel><title>News</title>
  <item><title>A</title><link>https://news.example/a</link></item>
  <item><title>B</title><guid>https://news.example/b</guid></item>
  <item><title>C</title><link>/c</link></item>
  <item><title>No link</title></item>
</channel></rss>`)

	got, err := site.ListingLinks("https://news.example/rss", body)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://news.example/a",
		"https://news.example/b",
		"https://news.example/c",
	}, got)

	_, err = site.ListingLinks("https://news.example/rss", []byte("<html>not a feed</html>"))
	require.Error(t, err)
}

func TestReadabilityFallback(t *testing.T) {
	t.Parallel()

	site := mustParse(t, `
name: x
seeds: {urls: [https://a]}
listing: {link_selector: a}
content_fallback: readability
fields:
  title: {selector: h1}
  article_content: {selector: div.missing p, all: true}
`)

	paragraph := strings.Repeat("Smartphone shipments grew sharply in the quarter as foldables gained share. ", 12)
	body := `<html><head><title>Shipments</title></head><body>
		<nav><a href="/">Home</a></nav>
		<article><h1>Shipments</h1>` +
		strings.Repeat("<p>"+paragraph+"</p>", 5) +
		`</article><footer>Footer</footer></body></html>`

	fields, err := site.Extract("https://a/story", []byte(body))
	require.NoError(t, err)
	require.NotNil(t, fields[domain.FieldArticleContent])
	assert.Contains(t, *fields[domain.FieldArticleContent], "foldables gained share")
}

func TestLoad_Registry(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dt.yml"), []byte(dtSite), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "inc42.yaml"), []byte(`
name: inc42
seeds: {urls: [https://inc42.com/buzz/]}
listing: {link_selector: 'h2.entry-title a'}
`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o600))

	reg, err := sites.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	all := reg.All()
	assert.Equal(t, "digitalterminal", all[0].Name)
	assert.Equal(t, "inc42", all[1].Name)

	found, err := reg.Find("inc42")
	require.NoError(t, err)
	assert.Equal(t, "inc42.json", found.OutputFile)

	_, err = reg.Find("missing")
	require.ErrorIs(t, err, sites.ErrSiteNotFound)
}

func TestLoad_ReportsEveryBadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yml"), []byte("name: a"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), []byte("name: [oops"), 0o600))

	_, err := sites.Load(dir)
	require.Error(t, err)

	var loadErr *sites.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, err.Error(), "a.yml")
	assert.Contains(t, err.Error(), "b.yml")
	assert.ErrorIs(t, err, sites.ErrInvalidSite)
}

func TestLoad_DuplicateNames(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	def := "name: dup\nseeds: {urls: [https://a]}\nlisting: {link_selector: a}"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.yml"), []byte(def), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "two.yml"), []byte(def), 0o600))

	_, err := sites.Load(dir)
	require.ErrorIs(t, err, sites.ErrInvalidSite)
}
