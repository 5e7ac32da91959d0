package dispatcher_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/jonesrussell/newsharvest/internal/dispatcher"
	"github.com/jonesrussell/newsharvest/internal/dispatcher/mocks"
	"github.com/jonesrussell/newsharvest/internal/domain"
	"github.com/jonesrussell/newsharvest/internal/fetcher"
	"github.com/jonesrussell/newsharvest/internal/pagination"
	"github.com/jonesrussell/newsharvest/internal/stats"
)

const siteName = "example"

// fakeAdapter serves listing links from a map and extracts the body as title.
type fakeAdapter struct {
	listings   map[string][]string
	extractErr error
}

func (a *fakeAdapter) RequestHeaders() map[string]string {
	return map[string]string{"Accept-Language": "en"}
}

func (a *fakeAdapter) ListingLinks(pageURL string, _ []byte) ([]string, error) {
	return a.listings[pageURL], nil
}

func (a *fakeAdapter) Extract(_ string, body []byte) (map[domain.FieldName]*string, error) {
	if a.extractErr != nil {
		return nil, a.extractErr
	}
	return map[domain.FieldName]*string{domain.FieldTitle: domain.StringPtr(string(body))}, nil
}

func (a *fakeAdapter) PaginationPolicy(maxReveals int) pagination.Policy {
	return pagination.Policy{MaxReveals: maxReveals, RevealSelector: "button.more", LinkSelector: "a.story"}
}

type memorySink struct {
	mu      sync.Mutex
	records []domain.ArticleRecord
}

func (s *memorySink) Append(ctx context.Context, rec domain.ArticleRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *memorySink) byURL() map[string]domain.ArticleRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]domain.ArticleRecord, len(s.records))
	for _, r := range s.records {
		out[r.ArticleURL] = r
	}
	return out
}

// fakeSession exposes `available` reveals, then reports the control gone.
type fakeSession struct {
	base      string
	available int
	hrefs     []string
	reveals   int
	closed    int
}

type fakeControl struct{ s *fakeSession }

func (c fakeControl) ScrollIntoView(context.Context) error { return nil }
func (c fakeControl) Click(context.Context) error {
	c.s.reveals++
	return nil
}
func (c fakeControl) DispatchClick(context.Context) error { return nil }

func (s *fakeSession) ScrollToBottom(context.Context) error { return nil }
func (s *fakeSession) Reveal(context.Context, string, time.Duration) (pagination.Control, error) {
	if s.reveals >= s.available {
		return nil, pagination.ErrControlUnavailable
	}
	return fakeControl{s: s}, nil
}
func (s *fakeSession) Links(context.Context, string, string) ([]string, error) { return s.hrefs, nil }
func (s *fakeSession) BaseURL() string                                         { return s.base }
func (s *fakeSession) Wait(context.Context, time.Duration) error               { return nil }
func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

func ok(url, body string) *fetcher.Response {
	return &fetcher.Response{URL: url, StatusCode: 200, Body: []byte(body)}
}

func status(url string, code int) *fetcher.Response {
	return &fetcher.Response{URL: url, StatusCode: code}
}

func job(url string) domain.CrawlJob {
	return domain.CrawlJob{ListingURL: url, Policy: domain.NoInteraction(), Site: siteName}
}

func newDispatcher(t *testing.T, p dispatcher.Params) *dispatcher.Dispatcher {
	t.Helper()
	if p.Options.Concurrency == 0 {
		p.Options.Concurrency = 4
	}
	d, err := dispatcher.New(p)
	require.NoError(t, err)
	return d
}

func TestNew_RequiresDependencies(t *testing.T) {
	t.Parallel()

	_, err := dispatcher.New(dispatcher.Params{})
	require.Error(t, err)

	ctrl := gomock.NewController(t)
	_, err = dispatcher.New(dispatcher.Params{Fetcher: mocks.NewMockFetcher(ctrl)})
	require.Error(t, err)

	_, err = dispatcher.New(dispatcher.Params{
		Fetcher: mocks.NewMockFetcher(ctrl),
		Sink:    &memorySink{},
	})
	require.Error(t, err)
}

func TestRun_ListingWithSuccessAndNotFound(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	f := mocks.NewMockFetcher(ctrl)
	f.EXPECT().Fetch(gomock.Any(), "https://site/news", gomock.Any()).Return(ok("https://site/news", ""), nil)
	f.EXPECT().Fetch(gomock.Any(), "https://site/a/1", gomock.Any()).Return(ok("https://site/a/1", "First"), nil)
	f.EXPECT().Fetch(gomock.Any(), "https://site/a/2", gomock.Any()).Return(status("https://site/a/2", 404), nil)

	sink := &memorySink{}
	rs := stats.New("run-1", siteName)
	d := newDispatcher(t, dispatcher.Params{
		Fetcher: f,
		Sink:    sink,
		Stats:   rs,
		Adapters: dispatcher.Adapters{siteName: &fakeAdapter{listings: map[string][]string{
			"https://site/news": {"https://site/a/1", "https://site/a/2"},
		}}},
	})

	require.NoError(t, d.Run(context.Background(), []domain.CrawlJob{job("https://site/news")}))

	snap := rs.Snapshot()
	assert.Equal(t, 1, snap.TotalBaseURL)
	assert.Equal(t, 1, snap.SuccessfulBaseURL)
	assert.Equal(t, 0, snap.FailedBaseURL)
	assert.Equal(t, 2, snap.TotalRequests)
	assert.Equal(t, 1, snap.SuccessfulRequests)
	assert.Equal(t, 1, snap.FailedRequests)
	assert.Equal(t, 1, snap.ArticlesScraped)
	assert.Equal(t, map[string]int{"200": 2, "404": 1}, snap.ResponseCodes)
	assert.Equal(t, snap.TotalBaseURL+snap.TotalRequests, snap.HistogramTotal())
	require.Len(t, snap.Errors, 1)
	assert.Contains(t, snap.Errors[0], "https://site/a/2")

	records := sink.byURL()
	require.Len(t, records, 2)

	first := records["https://site/a/1"]
	assert.Equal(t, 200, first.ResponseCode)
	require.NotNil(t, first.Title)
	assert.Equal(t, "First", *first.Title)

	missing := records["https://site/a/2"]
	assert.Equal(t, domain.FailedRecord(404, "https://site/a/2"), missing)
}

func TestRun_FailedListingSchedulesNothing(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	f := mocks.NewMockFetcher(ctrl)
	f.EXPECT().Fetch(gomock.Any(), "https://site/broken", gomock.Any()).Return(status("https://site/broken", 500), nil)
	f.EXPECT().Fetch(gomock.Any(), "https://site/down", gomock.Any()).Return(nil, errors.New("connection refused"))

	sink := &memorySink{}
	rs := stats.New("run-2", siteName)
	d := newDispatcher(t, dispatcher.Params{
		Fetcher:  f,
		Sink:     sink,
		Stats:    rs,
		Adapters: dispatcher.Adapters{siteName: &fakeAdapter{}},
	})

	err := d.Run(context.Background(), []domain.CrawlJob{job("https://site/broken"), job("https://site/down")})
	require.NoError(t, err)

	snap := rs.Snapshot()
	assert.Equal(t, 2, snap.TotalBaseURL)
	assert.Equal(t, 2, snap.FailedBaseURL)
	assert.Equal(t, 0, snap.TotalRequests)
	assert.Equal(t, map[string]int{"500": 1, stats.TransportErrorCode: 1}, snap.ResponseCodes)
	assert.Len(t, snap.Errors, 2)
	assert.Empty(t, sink.records)
}

func TestRun_ArticleTransportErrorStoresNullRecord(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	f := mocks.NewMockFetcher(ctrl)
	f.EXPECT().Fetch(gomock.Any(), "https://site/news", gomock.Any()).Return(ok("https://site/news", ""), nil)
	f.EXPECT().Fetch(gomock.Any(), "https://site/a/1", gomock.Any()).Return(nil, errors.New("tls handshake timeout"))

	sink := &memorySink{}
	rs := stats.New("run-3", siteName)
	d := newDispatcher(t, dispatcher.Params{
		Fetcher: f,
		Sink:    sink,
		Stats:   rs,
		Adapters: dispatcher.Adapters{siteName: &fakeAdapter{listings: map[string][]string{
			"https://site/news": {"https://site/a/1"},
		}}},
	})

	require.NoError(t, d.Run(context.Background(), []domain.CrawlJob{job("https://site/news")}))

	require.Len(t, sink.records, 1)
	assert.Equal(t, domain.FailedRecord(0, "https://site/a/1"), sink.records[0])
	assert.Equal(t, 1, rs.Snapshot().ResponseCodes[stats.TransportErrorCode])
}

func TestRun_DeduplicatesArticlesAcrossListings(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	f := mocks.NewMockFetcher(ctrl)
	f.EXPECT().Fetch(gomock.Any(), "https://site/news", gomock.Any()).Return(ok("https://site/news", ""), nil)
	f.EXPECT().Fetch(gomock.Any(), "https://site/world", gomock.Any()).Return(ok("https://site/world", ""), nil)
	f.EXPECT().Fetch(gomock.Any(), "https://site/a/1", gomock.Any()).Return(ok("https://site/a/1", "Shared"), nil).Times(1)
	f.EXPECT().Fetch(gomock.Any(), "https://site/a/2", gomock.Any()).Return(ok("https://site/a/2", "Only"), nil).Times(1)

	sink := &memorySink{}
	rs := stats.New("run-4", siteName)
	d := newDispatcher(t, dispatcher.Params{
		Fetcher: f,
		Sink:    sink,
		Stats:   rs,
		Adapters: dispatcher.Adapters{siteName: &fakeAdapter{listings: map[string][]string{
			"https://site/news":  {"https://site/a/1", "https://site/a/2"},
			"https://site/world": {"https://SITE/a/1#comments"},
		}}},
		Options: dispatcher.Options{JobConcurrency: 1},
	})

	require.NoError(t, d.Run(context.Background(), []domain.CrawlJob{job("https://site/news"), job("https://site/world")}))

	urls := make([]string, 0, len(sink.records))
	for _, r := range sink.records {
		urls = append(urls, r.ArticleURL)
	}
	sort.Strings(urls)
	assert.Equal(t, []string{"https://site/a/1", "https://site/a/2"}, urls)
	assert.Equal(t, 2, rs.Snapshot().TotalRequests)
}

func TestRun_StoreFailureIsFatal(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	f := mocks.NewMockFetcher(ctrl)
	f.EXPECT().Fetch(gomock.Any(), "https://site/news", gomock.Any()).Return(ok("https://site/news", ""), nil)
	f.EXPECT().Fetch(gomock.Any(), "https://site/a/1", gomock.Any()).Return(ok("https://site/a/1", "Body"), nil)

	diskFull := errors.New("no space left on device")
	sink := mocks.NewMockRecordSink(ctrl)
	sink.EXPECT().Append(gomock.Any(), gomock.Any()).Return(diskFull)

	rs := stats.New("run-5", siteName)
	d := newDispatcher(t, dispatcher.Params{
		Fetcher: f,
		Sink:    sink,
		Stats:   rs,
		Adapters: dispatcher.Adapters{siteName: &fakeAdapter{listings: map[string][]string{
			"https://site/news": {"https://site/a/1"},
		}}},
	})

	err := d.Run(context.Background(), []domain.CrawlJob{job("https://site/news")})
	require.ErrorIs(t, err, diskFull)

	snap := rs.Snapshot()
	require.NotEmpty(t, snap.Errors)
	assert.Contains(t, snap.Errors[len(snap.Errors)-1], "[store]")
}

func TestRun_ExtractFailureStoresNullRecord(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	f := mocks.NewMockFetcher(ctrl)
	f.EXPECT().Fetch(gomock.Any(), "https://site/news", gomock.Any()).Return(ok("https://site/news", ""), nil)
	f.EXPECT().Fetch(gomock.Any(), "https://site/a/1", gomock.Any()).Return(ok("https://site/a/1", "x"), nil)

	sink := &memorySink{}
	rs := stats.New("run-6", siteName)
	d := newDispatcher(t, dispatcher.Params{
		Fetcher: f,
		Sink:    sink,
		Stats:   rs,
		Adapters: dispatcher.Adapters{siteName: &fakeAdapter{
			listings:   map[string][]string{"https://site/news": {"https://site/a/1"}},
			extractErr: errors.New("bad markup"),
		}},
	})

	require.NoError(t, d.Run(context.Background(), []domain.CrawlJob{job("https://site/news")}))

	require.Len(t, sink.records, 1)
	assert.Equal(t, domain.FailedRecord(200, "https://site/a/1"), sink.records[0])
	snap := rs.Snapshot()
	assert.Equal(t, 1, snap.ArticlesScraped)
	require.Len(t, snap.Errors, 1)
	assert.Contains(t, snap.Errors[0], "[article]")
}

func TestRun_UnknownSiteIsRecorded(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	f := mocks.NewMockFetcher(ctrl)

	rs := stats.New("run-7", siteName)
	d := newDispatcher(t, dispatcher.Params{Fetcher: f, Sink: &memorySink{}, Stats: rs})

	require.NoError(t, d.Run(context.Background(), []domain.CrawlJob{job("https://site/news")}))

	snap := rs.Snapshot()
	assert.Equal(t, 0, snap.TotalBaseURL)
	require.Len(t, snap.Errors, 1)
	assert.Contains(t, snap.Errors[0], "No adapter")
}

func TestRun_InteractiveListingUsesRenderedLinks(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	f := mocks.NewMockFetcher(ctrl)
	f.EXPECT().Fetch(gomock.Any(), "https://site/news", gomock.Any()).Return(ok("https://site/news", ""), nil)
	f.EXPECT().Fetch(gomock.Any(), "https://site/a/1", gomock.Any()).Return(ok("https://site/a/1", "One"), nil)
	f.EXPECT().Fetch(gomock.Any(), "https://site/a/2", gomock.Any()).Return(ok("https://site/a/2", "Two"), nil)

	session := &fakeSession{base: "https://site/news", available: 2, hrefs: []string{"/a/1", "/a/2"}}
	provider := mocks.NewMockSessionProvider(ctrl)
	provider.EXPECT().
		Acquire(gomock.Any(), "https://site/news", map[string]string{"Accept-Language": "en"}).
		Return(session, nil)

	sink := &memorySink{}
	rs := stats.New("run-8", siteName)
	d := newDispatcher(t, dispatcher.Params{
		Fetcher:  f,
		Sink:     sink,
		Stats:    rs,
		Sessions: provider,
		Adapters: dispatcher.Adapters{siteName: &fakeAdapter{}},
	})

	interactive := domain.CrawlJob{ListingURL: "https://site/news", Policy: domain.Interactive(5), Site: siteName}
	require.NoError(t, d.Run(context.Background(), []domain.CrawlJob{interactive}))

	assert.Equal(t, 1, session.closed)
	snap := rs.Snapshot()
	assert.Equal(t, 2, snap.ReadMoreClicks)
	assert.Equal(t, 2, snap.TotalRequests)
	assert.Len(t, sink.records, 2)
}

func TestRun_InteractiveFallsBackWhenSessionFails(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	f := mocks.NewMockFetcher(ctrl)
	f.EXPECT().Fetch(gomock.Any(), "https://site/news", gomock.Any()).Return(ok("https://site/news", ""), nil)
	f.EXPECT().Fetch(gomock.Any(), "https://site/a/1", gomock.Any()).Return(ok("https://site/a/1", "One"), nil)

	provider := mocks.NewMockSessionProvider(ctrl)
	provider.EXPECT().Acquire(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("browser crashed"))

	sink := &memorySink{}
	rs := stats.New("run-9", siteName)
	d := newDispatcher(t, dispatcher.Params{
		Fetcher:  f,
		Sink:     sink,
		Stats:    rs,
		Sessions: provider,
		Adapters: dispatcher.Adapters{siteName: &fakeAdapter{listings: map[string][]string{
			"https://site/news": {"https://site/a/1"},
		}}},
	})

	interactive := domain.CrawlJob{ListingURL: "https://site/news", Policy: domain.Interactive(3), Site: siteName}
	require.NoError(t, d.Run(context.Background(), []domain.CrawlJob{interactive}))

	assert.Len(t, sink.records, 1)
	snap := rs.Snapshot()
	require.Len(t, snap.Errors, 1)
	assert.Contains(t, snap.Errors[0], "[interaction]")
}

func TestRun_JobTimeoutStillStoresRecords(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	f := mocks.NewMockFetcher(ctrl)
	f.EXPECT().Fetch(gomock.Any(), "https://site/news", gomock.Any()).Return(ok("https://site/news", ""), nil)
	f.EXPECT().Fetch(gomock.Any(), "https://site/slow", gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ string, _ map[string]string) (*fetcher.Response, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

	sink := &memorySink{}
	rs := stats.New("run-10", siteName)
	d := newDispatcher(t, dispatcher.Params{
		Fetcher: f,
		Sink:    sink,
		Stats:   rs,
		Adapters: dispatcher.Adapters{siteName: &fakeAdapter{listings: map[string][]string{
			"https://site/news": {"https://site/slow"},
		}}},
		Options: dispatcher.Options{JobTimeout: 20 * time.Millisecond},
	})

	require.NoError(t, d.Run(context.Background(), []domain.CrawlJob{job("https://site/news")}))

	require.Len(t, sink.records, 1)
	assert.Equal(t, domain.FailedRecord(0, "https://site/slow"), sink.records[0])
	assert.Equal(t, 1, rs.Snapshot().FailedRequests)
}

func TestRun_CancelledContext(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	f := mocks.NewMockFetcher(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := newDispatcher(t, dispatcher.Params{
		Fetcher:  f,
		Sink:     &memorySink{},
		Stats:    stats.New("run-11", siteName),
		Adapters: dispatcher.Adapters{siteName: &fakeAdapter{}},
	})

	err := d.Run(ctx, []domain.CrawlJob{job("https://site/news")})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRun_InterruptKeepsFetchedArticles(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ctrl := gomock.NewController(t)
	f := mocks.NewMockFetcher(ctrl)
	f.EXPECT().Fetch(gomock.Any(), "https://site/news", gomock.Any()).Return(ok("https://site/news", ""), nil)
	f.EXPECT().Fetch(gomock.Any(), "https://site/a/1", gomock.Any()).
		DoAndReturn(func(context.Context, string, map[string]string) (*fetcher.Response, error) {
			cancel()
			return ok("https://site/a/1", "One"), nil
		})

	sink := &memorySink{}
	rs := stats.New("run-12", siteName)
	d := newDispatcher(t, dispatcher.Params{
		Fetcher: f,
		Sink:    sink,
		Stats:   rs,
		Adapters: dispatcher.Adapters{siteName: &fakeAdapter{listings: map[string][]string{
			"https://site/news": {"https://site/a/1", "https://site/a/2"},
		}}},
		Options: dispatcher.Options{Concurrency: 1},
	})

	err := d.Run(ctx, []domain.CrawlJob{job("https://site/news")})
	require.ErrorIs(t, err, context.Canceled)

	require.Len(t, sink.records, 1)
	stored := sink.records[0]
	assert.Equal(t, "https://site/a/1", stored.ArticleURL)
	require.NotNil(t, stored.Title)
	assert.Equal(t, "One", *stored.Title)

	snap := rs.Snapshot()
	assert.Equal(t, 1, snap.ArticlesScraped)
	assert.Equal(t, 1, snap.TotalRequests)
	require.Len(t, snap.Errors, 1)
	assert.Contains(t, snap.Errors[0], "[article]")
	assert.Contains(t, snap.Errors[0], "https://site/a/2")
}

type runCounters struct {
	TotalBaseURL       int
	SuccessfulBaseURL  int
	FailedBaseURL      int
	TotalRequests      int
	SuccessfulRequests int
	ReadMoreClicks     int
	ResponseCodes      map[string]int
}

func countersOf(snap stats.Snapshot) runCounters {
	return runCounters{
		TotalBaseURL:       snap.TotalBaseURL,
		SuccessfulBaseURL:  snap.SuccessfulBaseURL,
		FailedBaseURL:      snap.FailedBaseURL,
		TotalRequests:      snap.TotalRequests,
		SuccessfulRequests: snap.SuccessfulRequests,
		ReadMoreClicks:     snap.ReadMoreClicks,
		ResponseCodes:      snap.ResponseCodes,
	}
}

func TestRun_Scenarios(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		jobs        []domain.CrawlJob
		listings    map[string][]string
		session     *fakeSession
		responses   map[string]*fetcher.Response
		wantRecords []string
		want        runCounters
	}{
		{
			name:     "failed listing does not stop the next one",
			jobs:     []domain.CrawlJob{job("https://site/a"), job("https://site/b")},
			listings: map[string][]string{"https://site/b": {"https://site/b/1", "https://site/b/2", "https://site/b/3"}},
			responses: map[string]*fetcher.Response{
				"https://site/a":   status("https://site/a", 503),
				"https://site/b":   ok("https://site/b", ""),
				"https://site/b/1": ok("https://site/b/1", "One"),
				"https://site/b/2": ok("https://site/b/2", "Two"),
				"https://site/b/3": ok("https://site/b/3", "Three"),
			},
			wantRecords: []string{"https://site/b/1", "https://site/b/2", "https://site/b/3"},
			want: runCounters{
				TotalBaseURL:       2,
				SuccessfulBaseURL:  1,
				FailedBaseURL:      1,
				TotalRequests:      3,
				SuccessfulRequests: 3,
				ResponseCodes:      map[string]int{"200": 4, "503": 1},
			},
		},
		{
			name: "interactive listing exhausted after one reveal",
			jobs: []domain.CrawlJob{{ListingURL: "https://site/live", Policy: domain.Interactive(2), Site: siteName}},
			session: &fakeSession{
				base:      "https://site/live",
				available: 1,
				hrefs:     []string{"/n/1", "/n/2", "/n/3", "/n/4", "/n/5"},
			},
			responses: map[string]*fetcher.Response{
				"https://site/live": ok("https://site/live", ""),
				"https://site/n/1":  ok("https://site/n/1", "1"),
				"https://site/n/2":  ok("https://site/n/2", "2"),
				"https://site/n/3":  ok("https://site/n/3", "3"),
				"https://site/n/4":  ok("https://site/n/4", "4"),
				"https://site/n/5":  ok("https://site/n/5", "5"),
			},
			wantRecords: []string{
				"https://site/n/1", "https://site/n/2", "https://site/n/3", "https://site/n/4", "https://site/n/5",
			},
			want: runCounters{
				TotalBaseURL:       1,
				SuccessfulBaseURL:  1,
				TotalRequests:      5,
				SuccessfulRequests: 5,
				ReadMoreClicks:     1,
				ResponseCodes:      map[string]int{"200": 6},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			f := mocks.NewMockFetcher(ctrl)
			for url, resp := range tt.responses {
				f.EXPECT().Fetch(gomock.Any(), url, gomock.Any()).Return(resp, nil).Times(1)
			}

			provider := mocks.NewMockSessionProvider(ctrl)
			if tt.session != nil {
				provider.EXPECT().Acquire(gomock.Any(), tt.session.base, gomock.Any()).Return(tt.session, nil)
			}

			sink := &memorySink{}
			rs := stats.New("run-"+tt.name, siteName)
			d := newDispatcher(t, dispatcher.Params{
				Fetcher:  f,
				Sink:     sink,
				Stats:    rs,
				Sessions: provider,
				Adapters: dispatcher.Adapters{siteName: &fakeAdapter{listings: tt.listings}},
			})

			require.NoError(t, d.Run(context.Background(), tt.jobs))

			urls := make([]string, 0, len(sink.records))
			for _, r := range sink.records {
				urls = append(urls, r.ArticleURL)
				assert.Equal(t, 200, r.ResponseCode)
			}
			sort.Strings(urls)
			assert.Equal(t, tt.wantRecords, urls)

			snap := rs.Snapshot()
			assert.Equal(t, tt.want, countersOf(snap))
			assert.Equal(t, snap.TotalBaseURL+snap.TotalRequests, snap.HistogramTotal())
			if tt.session != nil {
				assert.Equal(t, 1, tt.session.closed)
			}
		})
	}
}
