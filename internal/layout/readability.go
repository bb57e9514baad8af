package layout

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"feedingest/internal/domain"
)

// ReadabilityLayout is a catch-all that relies on readability heuristics.
// Register it last: it recognises almost any page with prose on it.
type ReadabilityLayout struct{}

var _ Layout = ReadabilityLayout{}

func (ReadabilityLayout) Name() string {
	return "readability"
}

func (r ReadabilityLayout) Extract(page Page, stub domain.FeedItemStub) (domain.ExtractedContent, error) {
	parsedURL, err := url.Parse(page.URL)
	if err != nil {
		return domain.ExtractedContent{}, fmt.Errorf("readability: bad url %s: %v: %w", page.URL, err, ErrNoMatch)
	}

	article, err := readability.FromReader(strings.NewReader(page.HTML), parsedURL)
	if err != nil {
		return domain.ExtractedContent{}, fmt.Errorf("readability: %v: %w", err, ErrNoMatch)
	}

	content, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return domain.ExtractedContent{}, fmt.Errorf("readability: parse content: %w", err)
	}

	text := visibleText(content.Selection)
	if text == "" {
		return domain.ExtractedContent{}, fmt.Errorf("readability: no readable text: %w", ErrNoMatch)
	}

	abstract := stub.Summary
	if !stub.HasSummary() {
		abstract = normalizeSpace(article.Excerpt)
	}
	if abstract == "" {
		abstract = visibleText(content.Find("p").First())
	}
	if abstract == "" {
		return domain.ExtractedContent{}, fmt.Errorf("readability: no abstract: %w", ErrNoMatch)
	}

	return domain.ExtractedContent{
		Text:     text,
		Abstract: abstract,
		Layout:   r.Name(),
	}, nil
}
