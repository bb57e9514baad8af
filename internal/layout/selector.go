package layout

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"feedingest/internal/domain"
)

// LeadScope tells a SelectorLayout where to look for the lead element.
type LeadScope string

const (
	LeadInContainer LeadScope = "container"
	LeadInDocument  LeadScope = "document"
)

// SelectorLayout recognises pages by a container selector and takes the
// abstract from the feed summary or from a lead element.
type SelectorLayout struct {
	name      string
	container string
	lead      string
	leadScope LeadScope
}

var _ Layout = (*SelectorLayout)(nil)

// NewSelectorLayout builds a layout from CSS selectors. An empty scope means LeadInContainer.
func NewSelectorLayout(name, container, lead string, scope LeadScope) *SelectorLayout {
	if scope == "" {
		scope = LeadInContainer
	}
	return &SelectorLayout{name: name, container: container, lead: lead, leadScope: scope}
}

// NewArticleLayout matches pages built around a primary <article> element.
func NewArticleLayout() *SelectorLayout {
	return NewSelectorLayout("article", "article", "p", LeadInContainer)
}

// NewScienceLayout matches the science section template, which keeps its body
// in div.text-content and its lead outside of it.
func NewScienceLayout() *SelectorLayout {
	return NewSelectorLayout("science", "div.text-content", "div.news-header__lead", LeadInDocument)
}

func (l *SelectorLayout) Name() string {
	return l.name
}

func (l *SelectorLayout) Extract(page Page, stub domain.FeedItemStub) (domain.ExtractedContent, error) {
	if page.Doc == nil {
		return domain.ExtractedContent{}, fmt.Errorf("%s: page %s has no parsed document", l.name, page.URL)
	}

	body := page.Doc.Find(l.container).First()
	if body.Length() == 0 {
		return domain.ExtractedContent{}, fmt.Errorf("%s: no %q container: %w", l.name, l.container, ErrNoMatch)
	}

	text := visibleText(body)
	if text == "" {
		return domain.ExtractedContent{}, fmt.Errorf("%s: empty %q container: %w", l.name, l.container, ErrNoMatch)
	}

	abstract := stub.Summary
	if !stub.HasSummary() {
		abstract = l.leadText(page.Doc, body)
		if abstract == "" {
			return domain.ExtractedContent{}, fmt.Errorf("%s: no %q lead: %w", l.name, l.lead, ErrNoMatch)
		}
	}

	return domain.ExtractedContent{
		Text:     text,
		Abstract: abstract,
		Layout:   l.name,
	}, nil
}

func (l *SelectorLayout) leadText(doc *goquery.Document, body *goquery.Selection) string {
	if l.lead == "" {
		return ""
	}

	scope := body
	if l.leadScope == LeadInDocument {
		scope = doc.Selection
	}

	var lead string
	scope.Find(l.lead).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		lead = visibleText(s)
		return lead == ""
	})
	return lead
}
