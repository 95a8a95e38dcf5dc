package llm

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lumikids/tutorflow/types"
)

// RateLimitedClient wraps a Client with a token-bucket limiter so bursts of
// concurrent sessions cannot exceed the provider's request quota. Wait blocks
// until a slot is available or the context is done.
type RateLimitedClient struct {
	inner   Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewRateLimitedClient wraps client at rps requests per second with the given
// burst.
func NewRateLimitedClient(client Client, rps float64, burst int, logger *zap.Logger) *RateLimitedClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedClient{
		inner:   client,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger.With(zap.String("component", "llm_ratelimit")),
	}
}

func (c *RateLimitedClient) Complete(ctx context.Context, msgs []types.Message, tools []types.ToolSchema) (*Completion, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, types.NewError(types.ErrModelUnavailable, "rate limit wait aborted").WithCause(err).WithRetryable(true)
	}
	return c.inner.Complete(ctx, msgs, tools)
}

func (c *RateLimitedClient) Model() string {
	return c.inner.Model()
}

var _ Client = (*RateLimitedClient)(nil)
