package securenotify

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode identifies a failure class. The string values match the
// error_code field of the SecureNotify API error envelope; client-side
// failures use the same namespace so one classifier covers both.
type ErrorCode string

const (
	// Authentication / authorization (4xx).
	CodeAuthRequired ErrorCode = "AUTH_REQUIRED"
	CodeAuthFailed   ErrorCode = "AUTH_FAILED"
	CodeForbidden    ErrorCode = "FORBIDDEN"

	// Resource errors (4xx).
	CodeNotFound       ErrorCode = "NOT_FOUND"
	CodeChannelExists  ErrorCode = "CHANNEL_EXISTS"
	CodeKeyExpired     ErrorCode = "KEY_EXPIRED"
	CodeResourceExists ErrorCode = "RESOURCE_EXISTS"

	// Request errors (4xx).
	CodeValidation      ErrorCode = "VALIDATION_ERROR"
	CodeMessageTooLarge ErrorCode = "MESSAGE_TOO_LARGE"
	CodeRateLimited     ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Server errors (5xx).
	CodeInternal           ErrorCode = "INTERNAL_ERROR"
	CodeBadGateway         ErrorCode = "BAD_GATEWAY"
	CodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	CodeGatewayTimeout     ErrorCode = "GATEWAY_TIMEOUT"

	// Client-side failures (no HTTP status involved).
	CodeNetwork       ErrorCode = "NETWORK_ERROR"
	CodeTimeout       ErrorCode = "TIMEOUT_ERROR"
	CodeConnection    ErrorCode = "CONNECTION_ERROR"
	CodeSerialization ErrorCode = "SERIALIZATION_ERROR"

	// SSE failures.
	CodeSSEConnection       ErrorCode = "SSE_CONNECTION_ERROR"
	CodeSSEHeartbeatTimeout ErrorCode = "SSE_HEARTBEAT_TIMEOUT"

	// Anything the classifier cannot place.
	CodeUnknown ErrorCode = "UNKNOWN"
)

// retryableCodes is the set of codes the retry engine may recover from.
// Everything else fails closed on first occurrence.
var retryableCodes = map[ErrorCode]bool{
	CodeRateLimited:         true,
	CodeInternal:            true,
	CodeBadGateway:          true,
	CodeServiceUnavailable:  true,
	CodeGatewayTimeout:      true,
	CodeNetwork:             true,
	CodeTimeout:             true,
	CodeConnection:          true,
	CodeSSEConnection:       true,
	CodeSSEHeartbeatTimeout: true,
}

// Sentinel errors for local admission failures.
var (
	// ErrRateLimited is returned when the local token bucket denies a request.
	ErrRateLimited = errors.New("securenotify: rate limited")

	// ErrClientClosed is returned when a call is made on a closed client.
	ErrClientClosed = errors.New("securenotify: client closed")

	// ErrAlreadyConnected is returned when Connect is called for a channel
	// that already has a live consuming loop. A channel's stream has exactly
	// one owner.
	ErrAlreadyConnected = errors.New("securenotify: channel already connected")

	// ErrDedupEvicted signals that a pending deduplicated request was evicted
	// before completing; waiters must re-issue the operation themselves.
	ErrDedupEvicted = errors.New("securenotify: pending request evicted")
)

// Error is the typed error returned by every SDK operation. It carries
// enough structure (code, status, retry-after hint, underlying cause) for
// callers to decide further action without string matching.
type Error struct {
	Code       ErrorCode
	Message    string
	StatusCode int
	RequestID  string
	RetryAfter time.Duration
	Details    map[string]interface{}
	Timestamp  time.Time
	Cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches errors by code so errors.Is(err, &Error{Code: CodeNotFound}) works.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Retryable reports whether this particular error may succeed on retry.
// Checked before the coarse code-based classification so a retryable
// subtype of an otherwise terminal family is honored.
func (e *Error) Retryable() bool {
	if e == nil {
		return false
	}
	return retryableCodes[e.Code]
}

// IsRetryable classifies an arbitrary error for the retry engine.
// Unclassified errors are not retryable (fail closed).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return false
}

func newError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func validationError(format string, args ...interface{}) *Error {
	return newError(CodeValidation, fmt.Sprintf(format, args...), nil)
}
