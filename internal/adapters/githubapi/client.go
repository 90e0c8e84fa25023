package githubapi

import (
	"context"
	"fmt"
	"time"

	"github.com/google/go-github/v62/github"

	"github.com/teamlens/teamlens/pkg/logger"
	"github.com/teamlens/teamlens/pkg/metrics"
)

const (
	defaultMaxRetries = 3
	defaultRetryBase  = 500 * time.Millisecond
	pageSize          = 100
)

// Quota is a point-in-time view of the REST core rate limit.
type Quota struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Client wraps the GitHub REST client with retry and quota helpers.
type Client struct {
	gh         *github.Client
	maxRetries int
	retryBase  time.Duration
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithMaxRetries sets how many times a transient failure is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithRetryBase sets the first backoff delay; it doubles per attempt.
func WithRetryBase(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.retryBase = d
		}
	}
}

// WithBaseURL points the client at a different API endpoint. Used by tests.
func WithBaseURL(raw string) Option {
	return func(c *Client) {
		if gh, err := c.gh.WithEnterpriseURLs(raw, raw); err == nil {
			c.gh = gh
		}
	}
}

// NewClient builds an authenticated client.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		gh:         github.NewClient(nil).WithAuthToken(token),
		maxRetries: defaultMaxRetries,
		retryBase:  defaultRetryBase,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckQuota fetches the current core rate limit.
func (c *Client) CheckQuota(ctx context.Context) (Quota, error) {
	metrics.RecordAPIRequest("github")
	limits, _, err := c.gh.RateLimit.Get(ctx)
	if err != nil {
		metrics.RecordAPIError("github")
		return Quota{}, fmt.Errorf("%w: %v", ErrRateLimit, err)
	}
	core := limits.GetCore()
	return Quota{
		Limit:     core.Limit,
		Remaining: core.Remaining,
		ResetAt:   core.Reset.Time,
	}, nil
}

// withRetry runs fn with bounded exponential backoff. Secondary rate limit
// responses wait out the advertised delay instead of the backoff curve.
func (c *Client) withRetry(ctx context.Context, op string, fn func() (*github.Response, error)) error {
	log := logger.Named("github")

	var err error
	delay := c.retryBase
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			metrics.RecordAPIRetry()
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}

		metrics.RecordAPIRequest("github")
		var resp *github.Response
		resp, err = fn()
		if err == nil {
			return nil
		}

		if abuse, ok := err.(*github.AbuseRateLimitError); ok && abuse.RetryAfter != nil {
			delay = *abuse.RetryAfter
		}
		if _, ok := err.(*github.RateLimitError); ok {
			log.Warn(ctx, "primary rate limit hit", logger.String("op", op))
		}
		if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 &&
			resp.StatusCode != 403 && resp.StatusCode != 429 {
			break
		}

		log.Debug(ctx, "request failed, retrying",
			logger.String("op", op),
			logger.Int("attempt", attempt+1),
			logger.Error(err))
	}

	metrics.RecordAPIError("github")
	return err
}
