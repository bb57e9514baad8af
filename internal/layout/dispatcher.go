package layout

import (
	"errors"
	"fmt"
	"log/slog"

	"feedingest/internal/domain"
	"feedingest/internal/ports"
)

// Dispatcher tries layouts in priority order and returns the first full match.
type Dispatcher struct {
	layouts []Layout
	logger  *slog.Logger
}

var _ ports.Extractor = (*Dispatcher)(nil)

// NewDispatcher keeps layouts in the given order; earlier layouts win on overlap.
func NewDispatcher(layouts []Layout, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		layouts: append([]Layout(nil), layouts...),
		logger:  log,
	}
}

// Extract parses the raw page and dispatches it.
func (d *Dispatcher) Extract(pageURL, html string, stub domain.FeedItemStub) (domain.ExtractedContent, error) {
	page, err := NewPage(pageURL, html)
	if err != nil {
		return domain.ExtractedContent{}, err
	}
	return d.Dispatch(page, stub)
}

// Dispatch returns a *domain.LayoutError when no layout recognises the page.
func (d *Dispatcher) Dispatch(page Page, stub domain.FeedItemStub) (domain.ExtractedContent, error) {
	tried := make([]string, 0, len(d.layouts))
	for _, l := range d.layouts {
		content, err := l.Extract(page, stub)
		if err == nil {
			d.debug("layout matched", "link", stub.Link, "layout", l.Name())
			return content, nil
		}
		if !errors.Is(err, ErrNoMatch) {
			return domain.ExtractedContent{}, fmt.Errorf("layout %s: %w", l.Name(), err)
		}
		d.debug("layout skipped", "link", stub.Link, "layout", l.Name(), "reason", err)
		tried = append(tried, l.Name())
	}

	return domain.ExtractedContent{}, &domain.LayoutError{Link: stub.Link, Tried: tried}
}

func (d *Dispatcher) debug(msg string, args ...interface{}) {
	if d.logger != nil {
		d.logger.Debug(msg, args...)
	}
}
