package usecase

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"feedingest/internal/domain"
	"feedingest/internal/ports"
)

// FetchErrorPolicy decides how far a failed page fetch propagates.
type FetchErrorPolicy string

const (
	AbortRun FetchErrorPolicy = "abort"
	SkipFeed FetchErrorPolicy = "feed"
	SkipItem FetchErrorPolicy = "item"
)

// ParseFetchErrorPolicy maps a config value to a policy; empty means AbortRun.
func ParseFetchErrorPolicy(value string) (FetchErrorPolicy, error) {
	switch FetchErrorPolicy(value) {
	case "", AbortRun:
		return AbortRun, nil
	case SkipFeed:
		return SkipFeed, nil
	case SkipItem:
		return SkipItem, nil
	default:
		return "", fmt.Errorf("unknown fetch error policy %q", value)
	}
}

// PipelineDeps wires all driven adapters into the ingestion pipeline.
type PipelineDeps struct {
	Reader       ports.FeedReader
	Fetcher      ports.PageFetcher
	Extractor    ports.Extractor
	Restrictions ports.Restrictions
	Sink         ports.DocumentSink
	Pacer        ports.Pacer
	Logger       *slog.Logger
	Clock        func() time.Time
	OnFetchError FetchErrorPolicy
}

// Pipeline implements the feed → page → document workflow.
type Pipeline struct {
	reader       ports.FeedReader
	fetcher      ports.PageFetcher
	extractor    ports.Extractor
	restrictions ports.Restrictions
	sink         ports.DocumentSink
	pacer        ports.Pacer
	logger       *slog.Logger
	clock        func() time.Time
	onFetchError FetchErrorPolicy
}

// Stats summarises a finished run.
type Stats struct {
	Feeds       int
	FeedsFailed int
	Emitted     int
	Dropped     int
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	policy := deps.OnFetchError
	if policy == "" {
		policy = AbortRun
	}

	return &Pipeline{
		reader:       deps.Reader,
		fetcher:      deps.Fetcher,
		extractor:    deps.Extractor,
		restrictions: deps.Restrictions,
		sink:         deps.Sink,
		pacer:        deps.Pacer,
		logger:       logger,
		clock:        clock,
		onFetchError: policy,
	}
}

// WithSink returns a copy of the pipeline that saves into sink.
func (p *Pipeline) WithSink(sink ports.DocumentSink) *Pipeline {
	cp := *p
	cp.sink = sink
	return &cp
}

// PerFeedCap spreads a global quota over feeds. Zero means uncapped.
func PerFeedCap(quota, feeds int) int {
	if quota <= 0 || feeds <= 0 {
		return 0
	}
	if quota/feeds >= 2 {
		return quota/feeds + 1
	}
	return 0
}

// Documents lazily yields enriched documents. A non-nil error is always the
// last value yielded.
func (p *Pipeline) Documents(ctx context.Context, feeds []string, quota int) iter.Seq2[domain.Document, error] {
	return func(yield func(domain.Document, error) bool) {
		var stats Stats
		p.run(ctx, feeds, quota, &stats, yield)
	}
}

// Run drains Documents into the sink. It returns domain.ErrFinish (wrapped)
// when the restriction collaborator ended the run.
func (p *Pipeline) Run(ctx context.Context, feeds []string, quota int) (Stats, error) {
	var (
		stats  Stats
		runErr error
	)

	p.run(ctx, feeds, quota, &stats, func(doc domain.Document, err error) bool {
		if err != nil {
			runErr = err
			return false
		}
		if p.sink == nil {
			return true
		}
		if err := p.sink.Save(ctx, doc); err != nil {
			runErr = fmt.Errorf("save document %s: %w", doc.Link, err)
			return false
		}
		return true
	})

	p.logger.Info("ingestion finished",
		"feeds", stats.Feeds,
		"feeds_failed", stats.FeedsFailed,
		"emitted", stats.Emitted,
		"dropped", stats.Dropped,
	)
	return stats, runErr
}

func (p *Pipeline) run(ctx context.Context, feeds []string, quota int, stats *Stats, yield func(domain.Document, error) bool) {
	limit := PerFeedCap(quota, len(feeds))
	p.logger.Debug("ingestion started", "feeds", len(feeds), "quota", quota, "per_feed_cap", limit)

	fetched := 0
	for _, feedURL := range feeds {
		if err := ctx.Err(); err != nil {
			yield(domain.Document{}, err)
			return
		}

		stubs, err := p.reader.Read(ctx, feedURL)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				yield(domain.Document{}, ctxErr)
				return
			}
			stats.FeedsFailed++
			p.logger.Warn("feed skipped", "feed", feedURL, "error", err)
			continue
		}

		stats.Feeds++
		if !p.processFeed(ctx, feedURL, stubs, limit, &fetched, stats, yield) {
			return
		}
	}
}

// processFeed reports whether the run should continue with the next feed.
func (p *Pipeline) processFeed(
	ctx context.Context,
	feedURL string,
	stubs iter.Seq[domain.FeedItemStub],
	limit int,
	fetched *int,
	stats *Stats,
	yield func(domain.Document, error) bool,
) bool {
	taken := 0
	for stub := range stubs {
		if limit > 0 && taken >= limit {
			p.logger.Debug("per-feed cap reached", "feed", feedURL, "cap", limit)
			break
		}
		taken++

		if *fetched > 0 && p.pacer != nil {
			if err := p.pacer.Wait(ctx); err != nil {
				yield(domain.Document{}, err)
				return false
			}
		}
		*fetched++

		html, err := p.fetcher.Fetch(ctx, stub.Link)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				yield(domain.Document{}, ctxErr)
				return false
			}
			stats.Dropped++
			switch p.onFetchError {
			case SkipItem:
				p.logger.Warn("page skipped", "link", stub.Link, "error", err)
				continue
			case SkipFeed:
				p.logger.Warn("feed aborted after page failure", "feed", feedURL, "link", stub.Link, "error", err)
				return true
			default:
				yield(domain.Document{}, fmt.Errorf("fetch page %s: %w", stub.Link, err))
				return false
			}
		}

		content, err := p.extractor.Extract(stub.Link, html, stub)
		if err != nil {
			var layoutErr *domain.LayoutError
			if errors.As(err, &layoutErr) {
				stats.Dropped++
				p.logger.Warn("page layout not recognised", "link", stub.Link, "tried", layoutErr.Tried)
				continue
			}
			yield(domain.Document{}, fmt.Errorf("extract page %s: %w", stub.Link, err))
			return false
		}

		doc := domain.NewDocument(stub, content, p.clock())

		if p.restrictions != nil {
			if err := p.restrictions.Check(doc); err != nil {
				var rangeErr *domain.OutOfRangeError
				if !errors.As(err, &rangeErr) {
					yield(domain.Document{}, err)
					return false
				}
				stats.Dropped++
				p.logger.Warn("document is outside the specified date range", "link", doc.Link, "restriction", rangeErr.Restriction)
				if rangeErr.Restriction == domain.FromDate {
					return true
				}
				continue
			}
		}

		stats.Emitted++
		if !yield(doc, nil) {
			return false
		}
	}
	return true
}
