package securenotify

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// transport performs authenticated JSON requests against the SecureNotify
// API and maps the error envelope onto typed errors. Streaming reads use a
// dedicated client without a request timeout so long-lived SSE responses are
// not killed mid-stream.
type transport struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	streamClient *http.Client
}

func newTransport(baseURL, apiKey string, httpClient *http.Client) *transport {
	stream := &http.Client{}
	if httpClient != nil {
		stream.Transport = httpClient.Transport
	}
	return &transport{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		httpClient:   httpClient,
		streamClient: stream,
	}
}

func (t *transport) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "securenotify-go/"+Version)
}

// do executes one request and returns the raw JSON payload. A 204 yields nil.
func (t *transport) do(ctx context.Context, method, path string, body interface{}, query url.Values) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, newError(CodeSerialization, "failed to encode request body", err)
		}
		reader = bytes.NewReader(encoded)
	}

	u := t.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, newError(CodeValidation, "failed to build request", err)
	}
	t.setHeaders(req)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		payload, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, newError(CodeConnection, "failed to read response body", err)
		}
		return payload, nil
	default:
		return nil, t.parseError(resp)
	}
}

// openStream opens one SSE response body for a channel, sending the
// resumption id when present. Implements StreamOpener.
func (t *transport) openStream(ctx context.Context, channel, lastEventID string) (io.ReadCloser, error) {
	u := t.baseURL + "/api/subscribe?channel=" + url.QueryEscape(channel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, newError(CodeValidation, "failed to build stream request", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}

	resp, err := t.streamClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	if resp.StatusCode != http.StatusOK {
		err := t.parseError(resp)
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

// errorEnvelope is the API error body shape.
type errorEnvelope struct {
	ErrorCode string                 `json:"error_code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details"`
}

func (t *transport) parseError(resp *http.Response) *Error {
	requestID := resp.Header.Get("X-Request-Id")

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.ErrorCode == "" {
		return &Error{
			Code:       codeForStatus(resp.StatusCode),
			Message:    fmt.Sprintf("server error (status %d)", resp.StatusCode),
			StatusCode: resp.StatusCode,
			RequestID:  requestID,
			Timestamp:  time.Now(),
		}
	}

	e := &Error{
		Code:       ErrorCode(env.ErrorCode),
		Message:    env.Message,
		StatusCode: resp.StatusCode,
		RequestID:  requestID,
		Details:    env.Details,
		Timestamp:  time.Now(),
	}
	if e.Code == CodeRateLimited {
		e.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		if e.RetryAfter == 0 {
			e.RetryAfter = time.Minute
		}
	}
	return e
}

// codeForStatus maps an HTTP status onto an error code when the body carried
// no usable envelope.
func codeForStatus(status int) ErrorCode {
	switch status {
	case http.StatusBadRequest:
		return CodeValidation
	case http.StatusUnauthorized:
		return CodeAuthRequired
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeResourceExists
	case http.StatusRequestEntityTooLarge:
		return CodeMessageTooLarge
	case http.StatusTooManyRequests:
		return CodeRateLimited
	case http.StatusBadGateway:
		return CodeBadGateway
	case http.StatusServiceUnavailable:
		return CodeServiceUnavailable
	case http.StatusGatewayTimeout:
		return CodeGatewayTimeout
	default:
		if status >= 500 {
			return CodeInternal
		}
		return CodeUnknown
	}
}

// classifyTransportError maps a net/http transport failure onto the timeout
// or connection error kinds.
func classifyTransportError(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(CodeTimeout, "request timed out", err)
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return newError(CodeTimeout, "request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return newError(CodeConnection, "request cancelled", err)
	}
	return newError(CodeConnection, "connection failed", err)
}

// parseRetryAfter parses a Retry-After header in either delay-seconds or
// HTTP-date form, capped at one hour.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if seconds > 0 {
			delay := time.Duration(seconds) * time.Second
			if delay > time.Hour {
				delay = time.Hour
			}
			return delay
		}
		return 0
	}

	if t, err := http.ParseTime(value); err == nil {
		delay := time.Until(t)
		if delay > 0 && delay <= time.Hour {
			return delay
		}
	}

	return 0
}

func defaultRequestID() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(buf[:])
}
