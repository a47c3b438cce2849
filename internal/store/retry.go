package store

import (
	"context"
	"errors"
	"time"

	"trivia-match/internal/domain"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// RetryPolicy bounds how long transient failures are retried.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
	MaxRetries      uint64
}

// DefaultRetryPolicy keeps a single operation under roughly five seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		MaxElapsedTime:  5 * time.Second,
		MaxRetries:      6,
	}
}

// Retrying decorates a Store and retries operations that failed with
// domain.ErrTransientIO using exponential backoff. Any other error is
// returned as is.
type Retrying struct {
	next   Store
	policy RetryPolicy
}

func NewRetrying(next Store, policy RetryPolicy) *Retrying {
	return &Retrying{next: next, policy: policy}
}

func (r *Retrying) Get(ctx context.Context, path string) (Snapshot, error) {
	var snap Snapshot
	err := r.do(ctx, "get", path, func() error {
		var err error
		snap, err = r.next.Get(ctx, path)
		return err
	})
	return snap, err
}

func (r *Retrying) Set(ctx context.Context, path string, value any) error {
	return r.do(ctx, "set", path, func() error {
		return r.next.Set(ctx, path, value)
	})
}

func (r *Retrying) Update(ctx context.Context, path string, fields map[string]any) error {
	return r.do(ctx, "update", path, func() error {
		return r.next.Update(ctx, path, fields)
	})
}

func (r *Retrying) Delete(ctx context.Context, path string) error {
	return r.do(ctx, "delete", path, func() error {
		return r.next.Delete(ctx, path)
	})
}

func (r *Retrying) Subscribe(ctx context.Context, path string, fn func(Snapshot)) (func(), error) {
	var cancel func()
	err := r.do(ctx, "subscribe", path, func() error {
		var err error
		cancel, err = r.next.Subscribe(ctx, path, fn)
		return err
	})
	return cancel, err
}

func (r *Retrying) Transact(ctx context.Context, path string, fn TxFunc) (Snapshot, error) {
	var snap Snapshot
	err := r.do(ctx, "transact", path, func() error {
		var err error
		snap, err = r.next.Transact(ctx, path, fn)
		return err
	})
	return snap, err
}

func (r *Retrying) do(ctx context.Context, op, path string, fn func() error) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.policy.InitialInterval
	exp.MaxInterval = r.policy.MaxInterval
	exp.MaxElapsedTime = r.policy.MaxElapsedTime

	var b backoff.BackOff = exp
	if r.policy.MaxRetries > 0 {
		b = backoff.WithMaxRetries(b, r.policy.MaxRetries)
	}
	b = backoff.WithContext(b, ctx)

	return backoff.RetryNotify(func() error {
		err := fn()
		if err == nil || errors.Is(err, domain.ErrTransientIO) {
			return err
		}
		return backoff.Permanent(err)
	}, b, func(err error, wait time.Duration) {
		log.Warn().Err(err).Str("op", op).Str("path", path).Dur("retry_in", wait).Msg("store operation failed, retrying")
	})
}
