package admission

import (
	"context"
	"sync"
	"time"
)

// Pacer enforces a minimum gap between successful triggers across every
// instance of every app, so upstream services never see a traffic burst
// from concurrent scheduler loops.
type Pacer struct {
	mu   sync.Mutex
	last time.Time

	Now   func() time.Time
	Sleep func(time.Duration)
}

// NewPacer builds a Pacer using now for timestamps and time.Sleep to wait.
func NewPacer(now func() time.Time) *Pacer {
	return &Pacer{Now: now, Sleep: time.Sleep}
}

// WaitAndMark blocks until at least minInterval has elapsed since the last
// call returned, then records this call as the new last action. If a wait
// is needed and ctx is already cancelled, it returns ctx.Err() without
// sleeping; a sleep that has started is not interrupted by cancellation.
func (p *Pacer) WaitAndMark(ctx context.Context, minInterval time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if minInterval > 0 && !p.last.IsZero() {
		elapsed := p.Now().Sub(p.last)
		if wait := minInterval - elapsed; wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			p.Sleep(wait)
		}
	}
	p.last = p.Now()
	return nil
}
