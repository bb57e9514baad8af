package parser

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"

	"feedingest/internal/domain"
	"feedingest/internal/ports"
)

const regexpPrefix = "re:"

// Downloader is the subset of the HTTP client the feed reader needs.
type Downloader interface {
	Get(ctx context.Context, target string) ([]byte, string, error)
}

// FeedReader downloads syndication feeds and turns entries into item stubs.
type FeedReader struct {
	client  Downloader
	parser  *gofeed.Parser
	exclude []matcher
	logger  *slog.Logger
}

var _ ports.FeedReader = (*FeedReader)(nil)

// NewFeedReader compiles exclusion patterns. A pattern is a substring of the
// link, or a regular expression when prefixed with "re:".
func NewFeedReader(client Downloader, excludePatterns []string, log *slog.Logger) (*FeedReader, error) {
	exclude := make([]matcher, 0, len(excludePatterns))
	for _, pattern := range excludePatterns {
		m, err := newMatcher(pattern)
		if err != nil {
			return nil, err
		}
		exclude = append(exclude, m)
	}

	return &FeedReader{
		client:  client,
		parser:  gofeed.NewParser(),
		exclude: exclude,
		logger:  log,
	}, nil
}

// Read fetches the feed eagerly and yields its stubs lazily, in feed order.
func (r *FeedReader) Read(ctx context.Context, feedURL string) (iter.Seq[domain.FeedItemStub], error) {
	body, _, err := r.client.Get(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", feedURL, err)
	}

	feed, err := r.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	if len(feed.Items) == 0 {
		return nil, &domain.EmptyFeedError{Feed: feedURL}
	}

	r.debug("feed loaded", "feed", feedURL, "entries", len(feed.Items))

	return func(yield func(domain.FeedItemStub) bool) {
		for _, item := range feed.Items {
			stub, ok := r.toStub(feedURL, item)
			if !ok {
				continue
			}
			if !yield(stub) {
				return
			}
		}
	}, nil
}

func (r *FeedReader) toStub(feedURL string, item *gofeed.Item) (domain.FeedItemStub, bool) {
	link := strings.TrimSpace(item.Link)
	if link == "" {
		r.warn("entry without link skipped", "feed", feedURL, "title", item.Title)
		return domain.FeedItemStub{}, false
	}

	if r.excluded(link) {
		r.debug("entry excluded", "link", link)
		return domain.FeedItemStub{}, false
	}

	raw := item.Published
	if strings.TrimSpace(raw) == "" {
		raw = item.Updated
	}
	published, err := dateparse.ParseAny(strings.TrimSpace(raw))
	if err != nil {
		r.warn("entry with unparseable date skipped", "link", link, "date", raw, "error", err)
		return domain.FeedItemStub{}, false
	}

	return domain.FeedItemStub{
		Title:       strings.TrimSpace(item.Title),
		Link:        link,
		PublishedAt: domain.Naive(published),
		Summary:     plainText(item.Description),
		Feed:        feedURL,
	}, true
}

func (r *FeedReader) excluded(link string) bool {
	for _, m := range r.exclude {
		if m(link) {
			return true
		}
	}
	return false
}

type matcher func(link string) bool

func newMatcher(pattern string) (matcher, error) {
	if expr, ok := strings.CutPrefix(pattern, regexpPrefix); ok {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
		return re.MatchString, nil
	}
	return func(link string) bool {
		return strings.Contains(link, pattern)
	}, nil
}

// plainText strips markup that feeds commonly embed in descriptions.
func plainText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "<") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func (r *FeedReader) debug(msg string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

func (r *FeedReader) warn(msg string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
