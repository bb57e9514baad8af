package domain

import "time"

// FeedItemStub is a minimal entry pulled from a syndication feed before page enrichment.
type FeedItemStub struct {
	ID          string
	Title       string
	Link        string
	PublishedAt time.Time
	// Summary is empty when the feed supplied none.
	Summary string
	Feed    string
}

// HasSummary reports whether the feed supplied a usable summary.
func (s FeedItemStub) HasSummary() bool {
	return s.Summary != ""
}

// ExtractedContent is produced by a page layout.
type ExtractedContent struct {
	Text     string
	Abstract string
	Layout   string
}

// Document is the enriched record handed to the host for persistence.
type Document struct {
	ID          string
	Title       string
	Link        string
	PublishedAt time.Time
	Summary     string
	Feed        string
	Text        string
	Abstract    string
	Layout      string
	LoadedAt    time.Time
}

// NewDocument merges a stub with its extraction result.
func NewDocument(stub FeedItemStub, content ExtractedContent, loadedAt time.Time) Document {
	return Document{
		ID:          stub.ID,
		Title:       stub.Title,
		Link:        stub.Link,
		PublishedAt: stub.PublishedAt,
		Summary:     stub.Summary,
		Feed:        stub.Feed,
		Text:        content.Text,
		Abstract:    content.Abstract,
		Layout:      content.Layout,
		LoadedAt:    loadedAt,
	}
}

// Naive drops the zone of t while keeping its wall clock reading.
func Naive(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
