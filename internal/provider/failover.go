package provider

import (
	"context"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/rs/zerolog/log"
)

// ChainConfig tunes per-provider retry behavior inside a failover chain.
type ChainConfig struct {
	// RetryMaxAttempts is how many times a single provider is tried before
	// the chain moves on.
	RetryMaxAttempts int

	// RetryInitialDelay is the delay before the first retry.
	RetryInitialDelay time.Duration

	// RetryBackoffMultiplier is the exponential backoff multiplier.
	RetryBackoffMultiplier float64
}

// DefaultChainConfig returns the retry defaults used in production.
func DefaultChainConfig() ChainConfig {
	return ChainConfig{
		RetryMaxAttempts:       2,
		RetryInitialDelay:      250 * time.Millisecond,
		RetryBackoffMultiplier: 2.0,
	}
}

// Chain tries providers in configuration order. Each provider gets a bounded
// retry budget; when one succeeds after the first had failed, the response is
// marked FailedOver. When every provider fails the chain returns an
// *InvocationError carrying each provider's last error.
type Chain struct {
	invokers []Invoker
	retry    retry.Retry[Response]
}

// NewChain builds a failover chain over invokers, tried in order.
func NewChain(cfg ChainConfig, invokers ...Invoker) *Chain {
	return &Chain{
		invokers: invokers,
		retry: retry.New[Response](retry.Config{
			MaxAttempts:   cfg.RetryMaxAttempts,
			InitialDelay:  cfg.RetryInitialDelay,
			BackoffPolicy: retry.BackoffExponential,
			Multiplier:    cfg.RetryBackoffMultiplier,
		}),
	}
}

func (c *Chain) Name() string { return "chain" }

// Invoke walks the chain until a provider succeeds.
func (c *Chain) Invoke(ctx context.Context, req Request) (Response, error) {
	var attempts []AttemptError

	for _, inv := range c.invokers {
		resp, err := c.retry.Do(ctx, func(ctx context.Context) (Response, error) {
			return inv.Invoke(ctx, req)
		})
		if err == nil {
			resp.FailedOver = len(attempts) > 0
			if resp.FailedOver {
				log.Warn().
					Str("provider", inv.Name()).
					Int("failed_providers", len(attempts)).
					Msg("model invocation failed over")
			}
			return resp, nil
		}

		log.Warn().Err(err).Str("provider", inv.Name()).Msg("provider invocation failed")
		attempts = append(attempts, AttemptError{Provider: inv.Name(), Err: err})

		if ctx.Err() != nil {
			break
		}
	}

	return Response{}, &InvocationError{Attempts: attempts}
}
