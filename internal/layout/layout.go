package layout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"feedingest/internal/domain"
)

// ErrNoMatch marks a structural mismatch between a page and a layout.
var ErrNoMatch = errors.New("layout does not match page")

// Page is an immutable view over a fetched article page.
type Page struct {
	URL  string
	HTML string
	Doc  *goquery.Document
}

// NewPage parses raw HTML once so that every layout can share the tree.
func NewPage(pageURL, html string) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Page{}, fmt.Errorf("parse page %s: %w", pageURL, err)
	}
	return Page{URL: pageURL, HTML: html, Doc: doc}, nil
}

// Layout recognises one page template and extracts its content.
// Extract returns an error wrapping ErrNoMatch when the page has a different structure;
// any other error aborts the dispatch.
type Layout interface {
	Name() string
	Extract(page Page, stub domain.FeedItemStub) (domain.ExtractedContent, error)
}

// Registry keeps named layouts in registration order.
type Registry struct {
	order   []string
	layouts map[string]Layout
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{layouts: map[string]Layout{}}
}

// Register appends a layout, or replaces one with the same name in place.
func (r *Registry) Register(l Layout) {
	if r.layouts == nil {
		r.layouts = map[string]Layout{}
	}
	name := l.Name()
	if _, ok := r.layouts[name]; !ok {
		r.order = append(r.order, name)
	}
	r.layouts[name] = l
}

// Names lists registered layouts in priority order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Resolve returns the layouts for names in the given order.
// With no names it returns every layout in registration order.
func (r *Registry) Resolve(names ...string) ([]Layout, error) {
	if len(names) == 0 {
		names = r.order
	}
	resolved := make([]Layout, 0, len(names))
	for _, name := range names {
		l, ok := r.layouts[name]
		if !ok {
			return nil, fmt.Errorf("layout %s is not registered", name)
		}
		resolved = append(resolved, l)
	}
	return resolved, nil
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// visibleText collapses the text of sel, skipping script-like elements.
func visibleText(sel *goquery.Selection) string {
	clone := sel.Clone()
	clone.Find("script, style, noscript, template").Remove()
	return normalizeSpace(clone.Text())
}
