// Package provision drives bounded-attempt confirmation polling for
// server-side operations that are accepted immediately but become
// queryable only after asynchronous provisioning.
package provision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brunodmt/tether/internal/state"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Defaults for the confirmation poll.
const (
	DefaultMaxAttempts = 4
	DefaultInterval    = 2 * time.Second
)

// ErrConfirmExhausted marks a poll that used up every attempt without the
// resource becoming queryable. Callers surface it as a status message, not
// as a failure of the outer operation.
var ErrConfirmExhausted = errors.New("confirmation attempts exhausted")

// FetchFunc probes whether a provisioned resource is queryable yet.
type FetchFunc func(ctx context.Context, id string) (state.Channel, error)

// Coordinator runs constant-interval, bounded-attempt confirmation polls.
type Coordinator struct {
	maxAttempts uint64
	interval    time.Duration
	logger      *zap.Logger
}

// NewCoordinator creates a coordinator. Zero values select the defaults.
func NewCoordinator(maxAttempts int, interval time.Duration, logger *zap.Logger) *Coordinator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Coordinator{
		maxAttempts: uint64(maxAttempts),
		interval:    interval,
		logger:      logger,
	}
}

// Confirm polls fetch until it succeeds or attempts run out. The first
// success cancels every remaining attempt immediately; no timer survives a
// resolved poll. Context cancellation aborts between attempts.
func (c *Coordinator) Confirm(ctx context.Context, id string, fetch FetchFunc) (state.Channel, error) {
	var (
		out      state.Channel
		attempts int
	)

	op := func() error {
		attempts++
		ch, err := fetch(ctx, id)
		if err != nil {
			c.logger.Debug("confirmation attempt failed",
				zap.String("resource_id", id), zap.Int("attempt", attempts), zap.Error(err))
			return err
		}
		out = ch
		return nil
	}

	// maxAttempts total calls = 1 initial + (maxAttempts-1) retries.
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.interval), c.maxAttempts-1),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		if ctx.Err() != nil {
			return state.Channel{}, ctx.Err()
		}
		return state.Channel{}, fmt.Errorf("%w after %d attempts: %v", ErrConfirmExhausted, attempts, err)
	}
	return out, nil
}
