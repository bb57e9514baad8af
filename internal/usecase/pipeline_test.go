package usecase

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"feedingest/internal/domain"
	"feedingest/internal/infrastructure/fetcher"
	"feedingest/internal/infrastructure/parser"
	"feedingest/internal/layout"
)

const okArticle = `<html><body><article><h1>Title</h1><p>Lead paragraph.</p><p>Body.</p></article></body></html>`

type fakeReader struct {
	feeds map[string][]domain.FeedItemStub
	errs  map[string]error
}

func (f *fakeReader) Read(_ context.Context, feedURL string) (iter.Seq[domain.FeedItemStub], error) {
	if err := f.errs[feedURL]; err != nil {
		return nil, err
	}
	stubs := f.feeds[feedURL]
	return func(yield func(domain.FeedItemStub) bool) {
		for _, s := range stubs {
			if !yield(s) {
				return
			}
		}
	}, nil
}

type fakeFetcher struct {
	pages map[string]string
	errs  map[string]error
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, pageURL string) (string, error) {
	f.calls = append(f.calls, pageURL)
	if err := f.errs[pageURL]; err != nil {
		return "", err
	}
	if html, ok := f.pages[pageURL]; ok {
		return html, nil
	}
	return okArticle, nil
}

type fakeRestrictions struct {
	errs map[string]error
}

func (f *fakeRestrictions) Check(doc domain.Document) error {
	return f.errs[doc.Link]
}

type memorySink struct {
	docs []domain.Document
}

func (m *memorySink) Save(_ context.Context, doc domain.Document) error {
	m.docs = append(m.docs, doc)
	return nil
}

type countingPacer struct {
	waits int
}

func (c *countingPacer) Wait(context.Context) error {
	c.waits++
	return nil
}

func stubs(feed string, n int) []domain.FeedItemStub {
	out := make([]domain.FeedItemStub, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.FeedItemStub{
			Title:       fmt.Sprintf("item %d", i),
			Link:        fmt.Sprintf("%s/item/%d", feed, i),
			PublishedAt: time.Date(2025, time.March, 10, 10-i, 0, 0, 0, time.UTC),
			Feed:        feed,
		})
	}
	return out
}

func dispatcher() *layout.Dispatcher {
	return layout.NewDispatcher([]layout.Layout{layout.NewArticleLayout(), layout.NewScienceLayout()}, nil)
}

var fixedNow = time.Date(2025, time.March, 11, 12, 0, 0, 0, time.UTC)

func newTestPipeline(reader *fakeReader, fetch *fakeFetcher, restr *fakeRestrictions, sink *memorySink, policy FetchErrorPolicy) *Pipeline {
	deps := PipelineDeps{
		Reader:       reader,
		Fetcher:      fetch,
		Extractor:    dispatcher(),
		Clock:        func() time.Time { return fixedNow },
		OnFetchError: policy,
	}
	if sink != nil {
		deps.Sink = sink
	}
	if restr != nil {
		deps.Restrictions = restr
	}
	return NewPipeline(deps)
}

func TestPerFeedCap(t *testing.T) {
	t.Parallel()

	cases := []struct {
		quota, feeds, want int
	}{
		{50, 5, 11},
		{3, 5, 0},
		{10, 5, 3},
		{9, 5, 0},
		{0, 3, 0},
		{10, 0, 0},
	}
	for _, tc := range cases {
		if got := PerFeedCap(tc.quota, tc.feeds); got != tc.want {
			t.Fatalf("PerFeedCap(%d, %d) = %d, want %d", tc.quota, tc.feeds, got, tc.want)
		}
	}
}

func TestParseFetchErrorPolicy(t *testing.T) {
	t.Parallel()

	if p, err := ParseFetchErrorPolicy(""); err != nil || p != AbortRun {
		t.Fatalf("expected abort default, got %v %v", p, err)
	}
	if p, err := ParseFetchErrorPolicy("item"); err != nil || p != SkipItem {
		t.Fatalf("expected item policy, got %v %v", p, err)
	}
	if _, err := ParseFetchErrorPolicy("retry"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}

func TestRunEmitsEveryArticle(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{feeds: map[string][]domain.FeedItemStub{"a": stubs("a", 3)}}
	fetch := &fakeFetcher{}
	sink := &memorySink{}
	pacer := &countingPacer{}

	p := newTestPipeline(reader, fetch, nil, sink, "")
	p.pacer = pacer

	stats, err := p.Run(context.Background(), []string{"a"}, 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(sink.docs) != 3 || stats.Emitted != 3 {
		t.Fatalf("expected 3 documents, got %d (stats %+v)", len(sink.docs), stats)
	}
	for _, doc := range sink.docs {
		if doc.Text == "" || doc.Abstract == "" {
			t.Fatalf("document %s missing content: %+v", doc.Link, doc)
		}
		if !doc.LoadedAt.Equal(fixedNow) {
			t.Fatalf("unexpected loadedAt: %v", doc.LoadedAt)
		}
		if doc.Layout != "article" {
			t.Fatalf("unexpected layout: %s", doc.Layout)
		}
	}
	if pacer.waits != 2 {
		t.Fatalf("expected pauses between fetches only, got %d", pacer.waits)
	}
}

func TestRunDropsUnrecognisedLayout(t *testing.T) {
	t.Parallel()

	items := stubs("a", 3)
	reader := &fakeReader{feeds: map[string][]domain.FeedItemStub{"a": items}}
	fetch := &fakeFetcher{pages: map[string]string{items[1].Link: `<html><body><div>gallery</div></body></html>`}}
	sink := &memorySink{}

	stats, err := newTestPipeline(reader, fetch, nil, sink, "").Run(context.Background(), []string{"a"}, 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sink.docs) != 2 || stats.Dropped != 1 {
		t.Fatalf("expected 2 documents and 1 drop, got %d / %+v", len(sink.docs), stats)
	}
	for _, doc := range sink.docs {
		if doc.Link == items[1].Link {
			t.Fatalf("unrecognised page must not be emitted")
		}
	}
}

func TestRunAppliesPerFeedCap(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{feeds: map[string][]domain.FeedItemStub{"a": stubs("a", 7)}}
	fetch := &fakeFetcher{}
	sink := &memorySink{}

	if _, err := newTestPipeline(reader, fetch, nil, sink, "").Run(context.Background(), []string{"a"}, 4); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(fetch.calls) != 5 {
		t.Fatalf("expected 5 fetches (4/1+1), got %d", len(fetch.calls))
	}
}

func TestRunFromDateStopsOnlyCurrentFeed(t *testing.T) {
	t.Parallel()

	a := stubs("a", 4)
	reader := &fakeReader{feeds: map[string][]domain.FeedItemStub{"a": a, "b": stubs("b", 2)}}
	fetch := &fakeFetcher{}
	sink := &memorySink{}
	restr := &fakeRestrictions{errs: map[string]error{
		a[1].Link: &domain.OutOfRangeError{Restriction: domain.FromDate, Link: a[1].Link},
	}}

	if _, err := newTestPipeline(reader, fetch, restr, sink, "").Run(context.Background(), []string{"a", "b"}, 0); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(fetch.calls) != 4 {
		t.Fatalf("expected 2 fetches from a and 2 from b, got %v", fetch.calls)
	}
	if len(sink.docs) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(sink.docs))
	}
	if sink.docs[1].Feed != "b" || sink.docs[2].Feed != "b" {
		t.Fatalf("expected feed b to be processed after a stopped")
	}
}

func TestRunToDateSkipsItem(t *testing.T) {
	t.Parallel()

	a := stubs("a", 3)
	reader := &fakeReader{feeds: map[string][]domain.FeedItemStub{"a": a}}
	sink := &memorySink{}
	restr := &fakeRestrictions{errs: map[string]error{
		a[0].Link: &domain.OutOfRangeError{Restriction: domain.ToDate, Link: a[0].Link},
	}}

	if _, err := newTestPipeline(reader, &fakeFetcher{}, restr, sink, "").Run(context.Background(), []string{"a"}, 0); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sink.docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(sink.docs))
	}
}

func TestRunFinishStopsEverything(t *testing.T) {
	t.Parallel()

	a := stubs("a", 3)
	reader := &fakeReader{feeds: map[string][]domain.FeedItemStub{"a": a, "b": stubs("b", 3)}}
	fetch := &fakeFetcher{}
	sink := &memorySink{}
	restr := &fakeRestrictions{errs: map[string]error{
		a[1].Link: fmt.Errorf("limit: %w", domain.ErrFinish),
	}}

	_, err := newTestPipeline(reader, fetch, restr, sink, "").Run(context.Background(), []string{"a", "b"}, 0)
	if !errors.Is(err, domain.ErrFinish) {
		t.Fatalf("expected ErrFinish, got %v", err)
	}
	if len(sink.docs) != 1 || len(fetch.calls) != 2 {
		t.Fatalf("expected run to stop at second item, got %d docs / %d fetches", len(sink.docs), len(fetch.calls))
	}
}

func TestRunFetchErrorPolicies(t *testing.T) {
	t.Parallel()

	a := stubs("a", 3)
	failing := map[string]error{a[1].Link: &domain.FetchError{URL: a[1].Link, StatusCode: http.StatusBadGateway}}

	cases := []struct {
		policy    FetchErrorPolicy
		wantErr   bool
		wantDocs  int
		wantCalls int
	}{
		{policy: AbortRun, wantErr: true, wantDocs: 1, wantCalls: 2},
		{policy: SkipFeed, wantDocs: 2, wantCalls: 3},
		{policy: SkipItem, wantDocs: 3, wantCalls: 4},
	}

	for _, tc := range cases {
		t.Run(string(tc.policy), func(t *testing.T) {
			t.Parallel()

			reader := &fakeReader{feeds: map[string][]domain.FeedItemStub{"a": a, "b": stubs("b", 1)}}
			fetch := &fakeFetcher{errs: failing}
			sink := &memorySink{}

			_, err := newTestPipeline(reader, fetch, nil, sink, tc.policy).Run(context.Background(), []string{"a", "b"}, 0)

			var fetchErr *domain.FetchError
			if tc.wantErr != errors.As(err, &fetchErr) {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(sink.docs) != tc.wantDocs {
				t.Fatalf("expected %d documents, got %d", tc.wantDocs, len(sink.docs))
			}
			if len(fetch.calls) != tc.wantCalls {
				t.Fatalf("expected %d fetches, got %d", tc.wantCalls, len(fetch.calls))
			}
		})
	}
}

func TestRunContinuesAfterEmptyFeed(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{
		feeds: map[string][]domain.FeedItemStub{"b": stubs("b", 2)},
		errs:  map[string]error{"a": &domain.EmptyFeedError{Feed: "a"}},
	}
	sink := &memorySink{}

	stats, err := newTestPipeline(reader, &fakeFetcher{}, nil, sink, "").Run(context.Background(), []string{"a", "b"}, 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.FeedsFailed != 1 || len(sink.docs) != 2 {
		t.Fatalf("unexpected result: %+v, %d docs", stats, len(sink.docs))
	}
}

func TestDocumentsStopsWhenConsumerBreaks(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{feeds: map[string][]domain.FeedItemStub{"a": stubs("a", 5)}}
	fetch := &fakeFetcher{}
	p := newTestPipeline(reader, fetch, nil, nil, "")

	count := 0
	for doc, err := range p.Documents(context.Background(), []string{"a"}, 0) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if doc.Link == "" {
			t.Fatalf("empty document")
		}
		count++
		if count == 2 {
			break
		}
	}
	if len(fetch.calls) != 2 {
		t.Fatalf("expected lazy fetching, got %d fetches", len(fetch.calls))
	}
}

func TestRunCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reader := &fakeReader{feeds: map[string][]domain.FeedItemStub{"a": stubs("a", 1)}}
	_, err := newTestPipeline(reader, &fakeFetcher{}, nil, &memorySink{}, "").Run(ctx, []string{"a"}, 0)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunExcludedEntryNeverFetched(t *testing.T) {
	t.Parallel()

	feed := `<?xml version="1.0"?>
<rss version="2.0"><channel><title>t</title>
<item><title>one</title><link>https://tass.example/politics/1</link><pubDate>Mon, 10 Mar 2025 10:00:00 +0300</pubDate></item>
<item><title>two</title><link>https://tass.example/nauka/2</link><pubDate>Mon, 10 Mar 2025 09:00:00 +0300</pubDate></item>
<item><title>three</title><link>https://tass.example/economy/3</link><pubDate>Mon, 10 Mar 2025 08:00:00 +0300</pubDate></item>
</channel></rss>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feed))
	}))
	defer server.Close()

	reader, err := parser.NewFeedReader(fetcher.New(fetcher.Options{HTTPClient: server.Client()}), []string{"tass.example/nauka"}, nil)
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}

	fetch := &fakeFetcher{}
	sink := &memorySink{}
	p := NewPipeline(PipelineDeps{Reader: reader, Fetcher: fetch, Extractor: dispatcher(), Sink: sink})

	if _, err := p.Run(context.Background(), []string{server.URL}, 0); err != nil {
		t.Fatalf("run: %v", err)
	}

	for _, call := range fetch.calls {
		if call == "https://tass.example/nauka/2" {
			t.Fatalf("excluded entry reached the page fetcher")
		}
	}
	if len(fetch.calls) != 2 || len(sink.docs) != 2 {
		t.Fatalf("expected 2 fetches and documents, got %d / %d", len(fetch.calls), len(sink.docs))
	}
}
