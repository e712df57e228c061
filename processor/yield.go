package processor

import (
	"context"
	"time"
)

// DefaultFrameDelay approximates one rendering frame.
const DefaultFrameDelay = 16 * time.Millisecond

// Yielder hands control back to the host between batches.
type Yielder interface {
	Yield(ctx context.Context) error
}

// YielderFunc adapts a function to Yielder.
type YielderFunc func(ctx context.Context) error

// Yield calls f.
func (f YielderFunc) Yield(ctx context.Context) error { return f(ctx) }

// FrameYielder waits a fixed delay between batches.
type FrameYielder struct {
	Delay time.Duration
}

// Yield waits for the delay or until ctx is done.
func (y FrameYielder) Yield(ctx context.Context) error {
	delay := y.Delay
	if delay <= 0 {
		delay = DefaultFrameDelay
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
