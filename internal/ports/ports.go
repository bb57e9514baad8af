package ports

import (
	"context"
	"iter"

	"feedingest/internal/domain"
)

// FeedReader pulls item stubs from a syndication feed.
type FeedReader interface {
	Read(ctx context.Context, feedURL string) (iter.Seq[domain.FeedItemStub], error)
}

// PageFetcher downloads the raw HTML of an article page.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// Extractor turns a fetched page into article content.
type Extractor interface {
	Extract(pageURL, html string, stub domain.FeedItemStub) (domain.ExtractedContent, error)
}

// Restrictions is the host collaborator enforcing date and count limits.
type Restrictions interface {
	Check(doc domain.Document) error
}

// DocumentSink persists emitted documents on behalf of the host.
type DocumentSink interface {
	Save(ctx context.Context, doc domain.Document) error
}

// Pacer delays consecutive page fetches.
type Pacer interface {
	Wait(ctx context.Context) error
}
