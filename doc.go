// Package securenotify is the Go client SDK for the SecureNotify notification
// service: public key registration, channel management, message publishing and
// real-time subscriptions over HTTP + Server-Sent Events.
//
// Every outbound call is wrapped in composable reliability primitives:
//
//   - Token bucket rate limiting with blocking acquire
//   - Retries with exponential backoff + cryptographically jittered delays
//   - Request de-duplication (merges concurrent identical calls, with an
//     optional LRU/TTL cache of completed results)
//   - Reconnecting SSE consumer with heartbeat staleness detection and
//     Last-Event-ID resumption
//
// Design goals:
//   - Small surface area: functional options configure everything
//   - Safe concurrent use of a single *Client instance
//   - Explicit lifecycle: no package-level state, multiple clients coexist
//   - Pluggable metrics (Prometheus) and structured logging (zerolog)
//
// Typical usage:
//
//	client := securenotify.New(
//	    securenotify.WithBaseURL("https://notify.example.com"),
//	    securenotify.WithAPIKey(os.Getenv("SECURENOTIFY_API_KEY")),
//	    securenotify.WithMaxRetries(3),
//	    securenotify.WithRateLimiter(10, 1, time.Second),
//	    securenotify.WithDeduplication(),
//	)
//	defer client.Close()
//
//	resp, err := client.Publish().Send(ctx, "alerts", "disk filling up")
//
// Subscriptions run one goroutine per channel; a handler that panics is
// isolated and logged rather than killing the stream.
package securenotify
