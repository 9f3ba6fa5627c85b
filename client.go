package securenotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"
)

// Client is the SecureNotify API client. It layers rate limiting, request
// deduplication and retries around every outbound call, and owns one SSE
// consumer for subscriptions. All state is explicit per instance, so multiple
// independent clients coexist without interference. Safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	transport  *transport

	retry          *RetryConfig
	rateLimiter    *RateLimiter
	acquireTimeout time.Duration

	dedup      *Deduplicator
	dedupTTL   time.Duration
	maxPending int
	maxCached  int

	sse                  *SSEClient
	heartbeatInterval    time.Duration
	reconnectDelay       time.Duration
	maxReconnectAttempts int

	metrics *MetricsCollector
	logger  Logger
	debug   *DebugConfig

	keys      *KeyService
	channels  *ChannelService
	publish   *PublishService
	apiKeys   *APIKeyService
	subscribe *SubscribeService

	limiterEnabled bool
	bucketCapacity int
	refillRate     float64
	refillInterval time.Duration
	dedupEnabled   bool

	closed          atomic.Bool
	validationError error
}

// New constructs a Client using the provided functional options. A best
// effort validation is performed; call IsValid / ValidationError for errors.
func New(options ...Option) *Client {
	client := &Client{
		timeout:              30 * time.Second,
		retry:                NewRetryConfig(),
		acquireTimeout:       -1, // wait as long as the context allows
		dedupTTL:             5 * time.Second,
		maxPending:           1000,
		maxCached:            10000,
		heartbeatInterval:    30 * time.Second,
		reconnectDelay:       time.Second,
		maxReconnectAttempts: 10,
		debug:                DefaultDebugConfig(),
	}

	for _, option := range options {
		option(client)
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: client.timeout}
	}
	client.transport = newTransport(client.baseURL, client.apiKey, client.httpClient)

	if client.limiterEnabled {
		client.rateLimiter = NewRateLimiter(client.bucketCapacity, client.refillRate, client.refillInterval)
	}
	if client.dedupEnabled {
		client.dedup = NewDeduplicator(client.dedupTTL, client.maxPending, client.maxCached)
	}

	client.sse = NewSSEClient(client.transport.openStream, SSEConfig{
		HeartbeatInterval:    client.heartbeatInterval,
		ReconnectDelay:       client.reconnectDelay,
		MaxReconnectAttempts: client.maxReconnectAttempts,
		Logger:               client.logger,
		Metrics:              client.metrics,
	})

	client.keys = &KeyService{client: client}
	client.channels = &ChannelService{client: client}
	client.publish = &PublishService{client: client}
	client.apiKeys = &APIKeyService{client: client}
	client.subscribe = &SubscribeService{client: client}

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	return client
}

// Keys returns the public key management service.
func (c *Client) Keys() *KeyService { return c.keys }

// Channels returns the channel management service.
func (c *Client) Channels() *ChannelService { return c.channels }

// Publish returns the message publishing service.
func (c *Client) Publish() *PublishService { return c.publish }

// APIKeys returns the API key management service.
func (c *Client) APIKeys() *APIKeyService { return c.apiKeys }

// Subscribe returns the subscription service.
func (c *Client) Subscribe() *SubscribeService { return c.subscribe }

// DedupStats returns deduplicator counters, or zeroes when deduplication is
// disabled.
func (c *Client) DedupStats() DedupStats {
	if c.dedup == nil {
		return DedupStats{}
	}
	return c.dedup.Stats()
}

// Close tears down every subscription and marks the client unusable.
func (c *Client) Close() {
	if c.closed.Swap(true) {
		return
	}
	c.sse.Close()
	c.httpClient.CloseIdleConnections()
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

// invoke runs one API call through the reliability pipeline:
// limiter admission, then deduplication, then retries around the transport.
// params is the logical parameter set identifying the call for dedup keying.
func (c *Client) invoke(ctx context.Context, method, path string, params map[string]interface{}, body interface{}, query url.Values, useCache bool) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	start := time.Now()
	var requestID string
	if c.debug != nil && c.debug.Enabled && c.debug.RequestIDGen != nil {
		requestID = c.debug.RequestIDGen()
	}
	if c.debugEnabled(c.debug.LogRequests) {
		c.logger.Debug("Starting request", "requestID", requestID, "method", method, "path", path)
	}

	c.metrics.RecordRequestStart(method, path)
	defer c.metrics.RecordRequestEnd(method, path)

	if c.rateLimiter != nil {
		ok := c.rateLimiter.AcquireTimeout(ctx, c.acquireTimeout)
		c.metrics.RecordRateLimiterTokens("default", c.rateLimiter.AvailableTokens())
		if !ok {
			if c.debugEnabled(c.debug.LogRateLimit) {
				c.logger.Warn("Rate limit exceeded", "requestID", requestID, "path", path)
			}
			c.metrics.RecordError(CodeRateLimited, path)
			return nil, newError(CodeRateLimited, "local rate limit exceeded", ErrRateLimited)
		}
	}

	exec := func(ctx context.Context) (interface{}, error) {
		attempt := 0
		return DoWithRetry(ctx, c.retry, func(ctx context.Context) (interface{}, error) {
			if attempt > 0 {
				c.metrics.RecordRetry(method, path, attempt)
				if c.debugEnabled(c.debug.LogRetries) {
					c.logger.Info("Retry attempt", "requestID", requestID, "attempt", attempt, "maxRetries", c.retry.MaxRetries, "path", path)
				}
			}
			attempt++
			return c.transport.do(ctx, method, path, body, query)
		})
	}

	var result interface{}
	var err error
	if c.dedup != nil {
		endpoint := method + " " + path
		var hit bool
		result, hit, err = c.dedup.execute(ctx, endpoint, params, exec, useCache)
		if hit {
			c.metrics.RecordDedupHit(path)
			if c.debugEnabled(c.debug.LogDedup) {
				c.logger.Debug("Deduplication hit", "requestID", requestID, "path", path)
			}
		} else {
			c.metrics.RecordDedupMiss(path)
		}
		c.metrics.RecordDedupCacheSize("default", c.dedup.Stats().Completed)
	} else {
		result, err = exec(ctx)
	}

	duration := time.Since(start)
	if err != nil {
		var apiErr *Error
		status := 0
		code := CodeUnknown
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
			code = apiErr.Code
		}
		c.metrics.RecordRequest(method, path, status, duration)
		c.metrics.RecordError(code, path)
		return nil, err
	}
	c.metrics.RecordRequest(method, path, http.StatusOK, duration)

	raw, _ := result.(json.RawMessage)
	return raw, nil
}

// debugEnabled reports whether the given debug flag is active and a logger
// is attached.
func (c *Client) debugEnabled(flag bool) bool {
	return c.debug != nil && c.debug.Enabled && flag && c.logger != nil
}

// decode unmarshals a raw payload into out, mapping failures onto the
// serialization error kind.
func decode(raw json.RawMessage, out interface{}) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return newError(CodeSerialization, fmt.Sprintf("failed to decode response: %v", err), err)
	}
	return nil
}
