package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// ErrUnavailable is returned while the breaker is open.
var ErrUnavailable = errors.New("adapter: provider unavailable")

// BreakerSettings configures WithBreaker.
type BreakerSettings struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// TripRatio is the failure ratio (after at least 3 requests) that opens the breaker.
	TripRatio     float64
	OnStateChange func(name string, from, to gobreaker.State)
}

// breakerAdapter guards an LLMAdapter with a two-step circuit breaker. The
// outcome is reported once the stream has been fully delivered.
type breakerAdapter struct {
	inner LLMAdapter
	cb    *gobreaker.TwoStepCircuitBreaker
}

// WithBreaker wraps inner so repeated provider failures fail fast with ErrUnavailable.
func WithBreaker(inner LLMAdapter, s BreakerSettings) LLMAdapter {
	ratio := s.TripRatio
	if ratio <= 0 {
		ratio = 0.6
	}
	st := gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= ratio
		},
		OnStateChange: s.OnStateChange,
	}
	return &breakerAdapter{inner: inner, cb: gobreaker.NewTwoStepCircuitBreaker(st)}
}

func (b *breakerAdapter) Info() ModelInfo {
	return b.inner.Info()
}

func (b *breakerAdapter) Complete(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	done, err := b.cb.Allow()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	stream, err := b.inner.Complete(ctx, req)
	if err != nil {
		done(false)
		return nil, err
	}

	out := make(chan StreamChunk, 64)
	go func() {
		defer close(out)
		ok := true
		for chunk := range stream {
			if chunk.Error != nil {
				ok = false
			}
			out <- chunk
		}
		done(ok)
	}()
	return out, nil
}
