package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFinish tells the pipeline to stop the whole run.
var ErrFinish = errors.New("ingestion finished by restriction")

// Restriction names the limit that rejected a document.
type Restriction string

const (
	FromDate         Restriction = "from_date"
	ToDate           Restriction = "to_date"
	MaximumMaterials Restriction = "maximum_materials"
)

// EmptyFeedError is returned when a feed carries no entries.
type EmptyFeedError struct {
	Feed string
}

func (e *EmptyFeedError) Error() string {
	return fmt.Sprintf("rss feed %s is empty", e.Feed)
}

// FetchError carries a non-success HTTP status.
type FetchError struct {
	URL        string
	StatusCode int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to access %s: status code %d", e.URL, e.StatusCode)
}

// LayoutError is returned when no registered layout recognised a page.
type LayoutError struct {
	Link  string
	Tried []string
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("%s not parsed: no layout matched (tried %s)", e.Link, strings.Join(e.Tried, ", "))
}

// OutOfRangeError signals that a document falls outside the configured restrictions.
type OutOfRangeError struct {
	Restriction Restriction
	Link        string
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("document %s is outside the %s restriction", e.Link, e.Restriction)
}
