package restriction

import (
	"fmt"
	"time"

	"feedingest/internal/domain"
	"feedingest/internal/ports"
)

// Limits is a minimal stand-in for the host's restriction collaborator.
// It is not safe for concurrent use; the pipeline is sequential.
type Limits struct {
	maximum  int
	from     *time.Time
	to       *time.Time
	accepted int
}

var _ ports.Restrictions = (*Limits)(nil)

// NewLimits builds limits; maximum <= 0 disables the count limit and nil bounds are open.
func NewLimits(maximum int, from, to *time.Time) *Limits {
	return &Limits{maximum: maximum, from: from, to: to}
}

// Check returns ErrFinish once the maximum is reached, or an
// *OutOfRangeError when the document is outside the date window.
func (l *Limits) Check(doc domain.Document) error {
	if l.maximum > 0 && l.accepted >= l.maximum {
		return fmt.Errorf("%d documents accepted: %w", l.accepted, domain.ErrFinish)
	}
	if l.from != nil && doc.PublishedAt.Before(*l.from) {
		return &domain.OutOfRangeError{Restriction: domain.FromDate, Link: doc.Link}
	}
	if l.to != nil && doc.PublishedAt.After(*l.to) {
		return &domain.OutOfRangeError{Restriction: domain.ToDate, Link: doc.Link}
	}
	l.accepted++
	return nil
}

// Accepted reports how many documents passed the checks.
func (l *Limits) Accepted() int {
	return l.accepted
}
