package fetcher

import (
	"context"
	"math/rand/v2"
	"time"

	"feedingest/internal/ports"
)

// RandomPacer sleeps for a uniform random duration in [min, max].
type RandomPacer struct {
	min time.Duration
	max time.Duration
}

var _ ports.Pacer = (*RandomPacer)(nil)

// NewRandomPacer swaps the bounds if they are reversed.
func NewRandomPacer(min, max time.Duration) *RandomPacer {
	if max < min {
		min, max = max, min
	}
	return &RandomPacer{min: min, max: max}
}

// Wait blocks for the next delay or until ctx is done.
func (p *RandomPacer) Wait(ctx context.Context) error {
	delay := p.next()
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *RandomPacer) next() time.Duration {
	if p.max <= p.min {
		return p.min
	}
	return p.min + rand.N(p.max-p.min+1)
}
