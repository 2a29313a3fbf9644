package model

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryOptions configures the retry decorator.
type RetryOptions struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries uint64
	// InitialInterval is the first backoff duration.
	InitialInterval time.Duration
	// MaxInterval caps a single backoff duration.
	MaxInterval time.Duration
	// Multiplier grows the interval between attempts.
	Multiplier float64
	// ShouldRetry decides whether an error is transient. Nil retries every error
	// except context cancellation.
	ShouldRetry func(error) bool
}

// RetryModel wraps a Model with exponential backoff on upstream failures.
// Attempts are buffered so that callers only ever observe the chunks of the
// attempt that succeeded.
type RetryModel struct {
	inner Model
	opts  RetryOptions
}

var _ Model = (*RetryModel)(nil)

// WithRetry decorates m with retry/backoff.
func WithRetry(m Model, optFns ...func(o *RetryOptions)) *RetryModel {
	opts := RetryOptions{
		MaxRetries:      2,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Multiplier:      2.0,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &RetryModel{inner: m, opts: opts}
}

func (r *RetryModel) newBackOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.opts.InitialInterval
	eb.MaxInterval = r.opts.MaxInterval
	eb.Multiplier = r.opts.Multiplier
	eb.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(eb, r.opts.MaxRetries), ctx)
}

// Generate implements Model.
func (r *RetryModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	out := make(chan Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		var chunks []Response
		op := func() error {
			chunks = chunks[:0]
			respCh, innerErr := r.inner.Generate(ctx, req)
			for resp := range respCh {
				chunks = append(chunks, resp)
			}
			if err, ok := <-innerErr; ok && err != nil {
				if ctx.Err() != nil || (r.opts.ShouldRetry != nil && !r.opts.ShouldRetry(err)) {
					return backoff.Permanent(err)
				}
				return err
			}
			return nil
		}

		if err := backoff.Retry(op, r.newBackOff(ctx)); err != nil {
			errCh <- err
			return
		}
		for _, c := range chunks {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- c:
			}
		}
	}()

	return out, errCh
}

// Info implements Model.
func (r *RetryModel) Info() Info { return r.inner.Info() }
