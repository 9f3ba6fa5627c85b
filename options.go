package securenotify

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// WithBaseURL sets the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithAPIKey sets the bearer API key used on every request.
func WithAPIKey(apiKey string) Option {
	return func(c *Client) {
		c.apiKey = apiKey
	}
}

// WithTimeout sets the per-request timeout. Streaming reads are exempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
		if c.httpClient != nil {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithMaxRetries sets the maximum number of retry attempts.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.retry.MaxRetries = n
	}
}

// WithInitialDelay sets the initial retry backoff delay.
func WithInitialDelay(d time.Duration) Option {
	return func(c *Client) {
		c.retry.InitialDelay = d
	}
}

// WithMaxDelay sets the maximum retry backoff delay.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Client) {
		c.retry.MaxDelay = d
	}
}

// WithBackoffMultiplier sets the backoff multiplier.
func WithBackoffMultiplier(f float64) Option {
	return func(c *Client) {
		c.retry.BackoffMultiplier = f
	}
}

// WithJitter toggles the ±25% backoff jitter.
func WithJitter(enabled bool) Option {
	return func(c *Client) {
		c.retry.Jitter = enabled
	}
}

// WithRetryConfig replaces the whole retry configuration.
func WithRetryConfig(cfg *RetryConfig) Option {
	return func(c *Client) {
		if cfg != nil {
			c.retry = cfg
		}
	}
}

// WithRateLimiter enables the token bucket: capacity tokens, refilling
// refillRate tokens every refillInterval.
func WithRateLimiter(capacity int, refillRate float64, refillInterval time.Duration) Option {
	return func(c *Client) {
		c.limiterEnabled = true
		c.bucketCapacity = capacity
		c.refillRate = refillRate
		c.refillInterval = refillInterval
	}
}

// WithAcquireTimeout bounds how long a call may wait for a limiter token.
// Negative waits as long as the context allows; zero never waits.
func WithAcquireTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.acquireTimeout = d
	}
}

// WithDeduplication enables request deduplication with the default window
// (5s TTL, 1000 pending, 10000 cached).
func WithDeduplication() Option {
	return func(c *Client) {
		c.dedupEnabled = true
	}
}

// WithDeduplicationConfig enables request deduplication with explicit bounds.
func WithDeduplicationConfig(ttl time.Duration, maxPending, maxCached int) Option {
	return func(c *Client) {
		c.dedupEnabled = true
		c.dedupTTL = ttl
		c.maxPending = maxPending
		c.maxCached = maxCached
	}
}

// WithHeartbeatInterval sets the SSE staleness detection interval.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(c *Client) {
		c.heartbeatInterval = d
	}
}

// WithReconnectDelay sets the SSE reconnect base delay.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Client) {
		c.reconnectDelay = d
	}
}

// WithMaxReconnectAttempts bounds the SSE reconnect loop.
func WithMaxReconnectAttempts(n int) Option {
	return func(c *Client) {
		c.maxReconnectAttempts = n
	}
}

// WithMetrics enables Prometheus metrics collection on the default registry.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSimpleLogger enables debug logging with a console logger.
func WithSimpleLogger() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
		c.logger = NewSimpleLogger()
	}
}

// WithDebug enables debug logging with the default configuration.
func WithDebug() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
	}
}

// WithDebugConfig sets a custom debug configuration.
func WithDebugConfig(config *DebugConfig) Option {
	return func(c *Client) {
		if config != nil {
			c.debug = config
		}
	}
}

// WithRequestIDGenerator sets a custom function for generating request IDs.
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.RequestIDGen = gen
	}
}

// ValidateConfiguration validates the client configuration and returns an
// error naming every problem found.
func (c *Client) ValidateConfiguration() error {
	var problems []string

	problems = append(problems, c.validateConnectionConfig()...)
	problems = append(problems, c.validateRetryConfig()...)
	problems = append(problems, c.validateRateLimiterConfig()...)
	problems = append(problems, c.validateDedupConfig()...)
	problems = append(problems, c.validateSSEConfig()...)

	if len(problems) > 0 {
		return &Error{
			Code:    CodeValidation,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", problems),
		}
	}
	return nil
}

func (c *Client) validateConnectionConfig() []string {
	var problems []string

	if c.baseURL == "" {
		problems = append(problems, "baseURL must be set")
	} else if u, err := url.Parse(c.baseURL); err != nil || u.Scheme == "" || u.Host == "" {
		problems = append(problems, "baseURL must be an absolute URL")
	}

	if c.apiKey == "" {
		problems = append(problems, "apiKey must be set")
	}

	if c.timeout <= 0 {
		problems = append(problems, "timeout must be positive")
	}

	return problems
}

func (c *Client) validateRetryConfig() []string {
	var problems []string

	if c.retry.MaxRetries < 0 {
		problems = append(problems, "maxRetries must be non-negative")
	}

	if c.retry.InitialDelay <= 0 {
		problems = append(problems, "initialDelay must be positive")
	}

	if c.retry.MaxDelay < c.retry.InitialDelay {
		problems = append(problems, "maxDelay must be greater than or equal to initialDelay")
	}

	if c.retry.BackoffMultiplier <= 0 {
		problems = append(problems, "backoffMultiplier must be positive")
	}

	return problems
}

func (c *Client) validateRateLimiterConfig() []string {
	var problems []string

	if c.limiterEnabled {
		if c.bucketCapacity <= 0 {
			problems = append(problems, "rateLimiter capacity must be positive")
		}
		if c.refillRate <= 0 {
			problems = append(problems, "rateLimiter refillRate must be positive")
		}
		if c.refillInterval <= 0 {
			problems = append(problems, "rateLimiter refillInterval must be positive")
		}
	}

	return problems
}

func (c *Client) validateDedupConfig() []string {
	var problems []string

	if c.dedupEnabled {
		if c.dedupTTL <= 0 {
			problems = append(problems, "dedupTTL must be positive when deduplication is enabled")
		}
		if c.maxPending <= 0 {
			problems = append(problems, "maxPending must be positive")
		}
		if c.maxCached <= 0 {
			problems = append(problems, "maxCached must be positive")
		}
	}

	return problems
}

func (c *Client) validateSSEConfig() []string {
	var problems []string

	if c.heartbeatInterval <= 0 {
		problems = append(problems, "heartbeatInterval must be positive")
	}
	if c.reconnectDelay <= 0 {
		problems = append(problems, "reconnectDelay must be positive")
	}
	if c.maxReconnectAttempts <= 0 {
		problems = append(problems, "maxReconnectAttempts must be positive")
	}

	return problems
}
