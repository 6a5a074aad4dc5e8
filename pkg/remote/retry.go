package remote

import (
	"context"
	"math"
	"math/rand"
	"time"

	log "github.com/sirupsen/logrus"
)

// RetryConfig controls the backoff applied to retried remote calls.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
	Jitter      float64
}

// DefaultRetryConfig returns sensible defaults for flaky networks.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		InitialWait: 200 * time.Millisecond,
		MaxWait:     5 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.1,
	}
}

// retryingClient wraps a Client and retries failed calls with exponential
// backoff. Every remote API error is treated as transient: the store has no
// documented distinction between transient and permanent failures, and
// retrying a mutation is safe because Write and Delete are idempotent.
type retryingClient struct {
	inner Client
	cfg   RetryConfig
}

// WithRetry wraps client so that failed calls are retried.
func WithRetry(client Client, cfg RetryConfig) Client {
	return &retryingClient{inner: client, cfg: cfg}
}

func (c *retryingClient) List(ctx context.Context, projectID string) ([]File, error) {
	return c.do(ctx, "list", func() ([]File, error) {
		return c.inner.List(ctx, projectID)
	})
}

func (c *retryingClient) Write(ctx context.Context, projectID, name, content string,
	typ FileType) ([]File, error) {
	return c.do(ctx, "write", func() ([]File, error) {
		return c.inner.Write(ctx, projectID, name, content, typ)
	})
}

func (c *retryingClient) Delete(ctx context.Context, projectID, name string) ([]File, error) {
	return c.do(ctx, "delete", func() ([]File, error) {
		return c.inner.Delete(ctx, projectID, name)
	})
}

func (c *retryingClient) do(ctx context.Context, op string,
	fn func() ([]File, error)) ([]File, error) {

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		files, err := fn()
		if err == nil {
			return files, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == c.cfg.MaxAttempts {
			break
		}

		wait := float64(c.cfg.InitialWait) * math.Pow(c.cfg.Multiplier, float64(attempt-1))
		if wait > float64(c.cfg.MaxWait) {
			wait = float64(c.cfg.MaxWait)
		}
		if c.cfg.Jitter > 0 {
			wait += wait * c.cfg.Jitter * (rand.Float64()*2 - 1)
		}

		log.WithError(err).WithField("op", op).Debugf(
			"Remote call failed. Retrying in %s (attempt %d/%d)",
			time.Duration(wait), attempt, c.cfg.MaxAttempts)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(wait)):
		}
	}
	return nil, lastErr
}
