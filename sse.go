package securenotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ConnectionState is the lifecycle state of one channel subscription.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

// String returns the lowercase state name.
func (s ConnectionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Event is one dispatched SSE frame.
type Event struct {
	Channel string
	Type    string
	ID      string
	Data    string
	// Parsed holds the decoded payload when Data looked like a serialized
	// object and parsed cleanly; otherwise nil and Data carries the raw text.
	Parsed interface{}
}

// EventHandler receives dispatched frames for a channel.
type EventHandler func(event Event)

// HeartbeatHandler is the out-of-band liveness signal invoked when no frame
// arrives within the heartbeat interval. It never forces disconnection.
type HeartbeatHandler func(channel string)

// StreamOpener opens one SSE-shaped stream for a channel. lastEventID, when
// non-empty, requests continuation from that point. A nil error is the
// structural success signal; the returned body must honor ctx cancellation.
type StreamOpener func(ctx context.Context, channel, lastEventID string) (io.ReadCloser, error)

// channelIDPattern is the accepted channel identifier shape.
var channelIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,256}$`)

// ValidChannelID reports whether a channel identifier has the accepted shape:
// 1-256 characters of [A-Za-z0-9_-].
func ValidChannelID(channel string) bool {
	return channelIDPattern.MatchString(channel)
}

// SSEConfig configures an SSEClient.
type SSEConfig struct {
	HeartbeatInterval    time.Duration
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	Logger               Logger
	Metrics              *MetricsCollector
}

// SSEClient maintains one logical subscription per channel over an abstract
// stream-opening operation, with incremental frame decoding, heartbeat
// staleness detection and bounded exponential reconnects.
type SSEClient struct {
	opener               StreamOpener
	heartbeatInterval    time.Duration
	reconnectDelay       time.Duration
	maxReconnectAttempts int
	logger               Logger
	metrics              *MetricsCollector

	mu        sync.Mutex
	subs      map[string]*subscription
	heartbeat HeartbeatHandler
	closed    bool
}

// subscription owns the stream for one channel. lastEventID and baseDelay
// are touched only by the connect loop that holds active, so exactly one
// consumer ever reads or reconnects a channel's stream.
type subscription struct {
	channel     string
	handler     EventHandler
	state       atomic.Int32
	active      atomic.Bool
	lastEventID string
	baseDelay   time.Duration
	stop        chan struct{}
	stopOnce    sync.Once
}

func (s *subscription) setState(state ConnectionState) {
	s.state.Store(int32(state))
}

func (s *subscription) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// NewSSEClient creates a streaming consumer over opener. Zero config fields
// get the service defaults (30s heartbeat, 1s reconnect base, 10 attempts).
func NewSSEClient(opener StreamOpener, cfg SSEConfig) *SSEClient {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = time.Second
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = 10
	}
	return &SSEClient{
		opener:               opener,
		heartbeatInterval:    cfg.HeartbeatInterval,
		reconnectDelay:       cfg.ReconnectDelay,
		maxReconnectAttempts: cfg.MaxReconnectAttempts,
		logger:               cfg.Logger,
		metrics:              cfg.Metrics,
		subs:                 make(map[string]*subscription),
	}
}

// Subscribe registers handler for a channel. It does not open the stream;
// call Connect (typically on its own goroutine) to start consuming.
func (c *SSEClient) Subscribe(channel string, handler EventHandler) error {
	if !ValidChannelID(channel) {
		return invalidChannelError(channel)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	sub := c.subs[channel]
	if sub == nil {
		sub = &subscription{
			channel:   channel,
			baseDelay: c.reconnectDelay,
			stop:      make(chan struct{}),
		}
		c.subs[channel] = sub
	}
	sub.handler = handler
	return nil
}

// OnHeartbeat registers the out-of-band heartbeat handler shared by all
// channel subscriptions.
func (c *SSEClient) OnHeartbeat(handler HeartbeatHandler) {
	c.mu.Lock()
	c.heartbeat = handler
	c.mu.Unlock()
}

// Unsubscribe tears down one channel's subscription, leaving others running.
func (c *SSEClient) Unsubscribe(channel string) {
	c.mu.Lock()
	sub := c.subs[channel]
	delete(c.subs, channel)
	c.mu.Unlock()
	if sub != nil {
		sub.stopOnce.Do(func() { close(sub.stop) })
	}
}

// State reports the connection state for a channel.
func (c *SSEClient) State(channel string) ConnectionState {
	c.mu.Lock()
	sub := c.subs[channel]
	c.mu.Unlock()
	if sub == nil {
		return StateDisconnected
	}
	return ConnectionState(sub.state.Load())
}

// Close disconnects every channel subscription.
func (c *SSEClient) Close() {
	c.mu.Lock()
	c.closed = true
	subs := make([]*subscription, 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	c.subs = make(map[string]*subscription)
	c.mu.Unlock()
	for _, sub := range subs {
		sub.stopOnce.Do(func() { close(sub.stop) })
	}
}

// Connect opens the stream for channel and blocks consuming it, reconnecting
// with capped exponential backoff on transport failures. It returns nil after
// an explicit Unsubscribe/Close, ctx.Err() on cancellation, and an
// SSE_CONNECTION_ERROR once the reconnect budget is exhausted. The channel
// identifier is validated before any network activity. A channel has at most
// one consuming loop; a second concurrent Connect for the same channel
// returns ErrAlreadyConnected without opening anything.
func (c *SSEClient) Connect(ctx context.Context, channel string) error {
	if !ValidChannelID(channel) {
		return invalidChannelError(channel)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	sub := c.subs[channel]
	if sub == nil {
		sub = &subscription{
			channel:   channel,
			baseDelay: c.reconnectDelay,
			stop:      make(chan struct{}),
		}
		c.subs[channel] = sub
	}
	c.mu.Unlock()

	if !sub.active.CompareAndSwap(false, true) {
		return ErrAlreadyConnected
	}
	defer sub.active.Store(false)

	// attempt == -1 is the initial connect; 0..max-1 are reconnects. The
	// budget resets whenever a stream opens successfully.
	attempt := -1
	for {
		if sub.stopped() {
			sub.setState(StateDisconnected)
			return nil
		}
		if err := ctx.Err(); err != nil {
			sub.setState(StateDisconnected)
			return err
		}

		if attempt >= 0 {
			if attempt >= c.maxReconnectAttempts {
				sub.setState(StateDisconnected)
				return &Error{
					Code:      CodeSSEConnection,
					Message:   fmt.Sprintf("failed to reconnect channel %q after %d attempts", channel, c.maxReconnectAttempts),
					Timestamp: time.Now(),
				}
			}
			sub.setState(StateReconnecting)
			c.metrics.RecordSSEReconnect(channel)

			shift := attempt
			if shift > 5 {
				shift = 5
			}
			delay := sub.baseDelay * (1 << uint(shift))
			if !c.sleepOrStop(ctx, sub, delay) {
				sub.setState(StateDisconnected)
				return ctx.Err()
			}
		}

		opened, err := c.stream(ctx, sub)
		if err == nil {
			sub.setState(StateDisconnected)
			if sub.stopped() {
				return nil
			}
			return ctx.Err()
		}
		if c.logger != nil {
			c.logger.Warn("Stream interrupted", "channel", channel, "attempt", attempt+1, "error", err.Error())
		}
		if opened {
			attempt = 0
		} else {
			attempt++
		}
	}
}

// sleepOrStop waits for delay, returning false if ctx is cancelled. An
// explicit stop also interrupts the sleep (reported as a true with the stop
// observed at the top of the loop).
func (c *SSEClient) sleepOrStop(ctx context.Context, sub *subscription, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-sub.stop:
		return true
	case <-ctx.Done():
		return false
	}
}

// stream performs one connect-and-consume cycle. The bool reports whether
// the transport open succeeded; a nil error means the stream ended because
// of an explicit stop.
func (c *SSEClient) stream(ctx context.Context, sub *subscription) (bool, error) {
	sub.setState(StateConnecting)

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-sub.stop:
			cancel()
		case <-streamCtx.Done():
		}
	}()

	body, err := c.opener(streamCtx, sub.channel, sub.lastEventID)
	if err != nil {
		if sub.stopped() {
			return false, nil
		}
		return false, newError(CodeSSEConnection, "failed to open stream", err)
	}
	defer body.Close()

	sub.setState(StateConnected)
	sub.lastEventID = ""
	// A retry hint applies to the stream that sent it; a fresh stream starts
	// back at the configured delay.
	sub.baseDelay = c.reconnectDelay
	c.metrics.RecordSSEState(sub.channel, StateConnected)
	defer c.metrics.RecordSSEState(sub.channel, StateDisconnected)
	if c.logger != nil {
		c.logger.Info("Channel connected", "channel", sub.channel)
	}

	// Single-shot heartbeat timer owned by one goroutine and re-armed after
	// every firing or frame, so pending fires can never stack.
	activity := make(chan struct{}, 1)
	go func() {
		hb := time.NewTimer(c.heartbeatInterval)
		defer hb.Stop()
		for {
			select {
			case <-activity:
				if !hb.Stop() {
					select {
					case <-hb.C:
					default:
					}
				}
				hb.Reset(c.heartbeatInterval)
			case <-hb.C:
				c.fireHeartbeat(sub.channel)
				hb.Reset(c.heartbeatInterval)
			case <-streamCtx.Done():
				return
			}
		}
	}()

	dec := newFrameDecoder(
		func(eventType, id, data string) {
			c.dispatch(sub, eventType, id, data)
			select {
			case activity <- struct{}{}:
			default:
			}
		},
		func(delay time.Duration) {
			sub.baseDelay = delay
		},
	)

	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
		}
		if err != nil {
			if sub.stopped() {
				return true, nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return true, nil
			}
			return true, newError(CodeSSEConnection, "stream terminated", err)
		}
	}
}

// dispatch delivers one frame to the channel handler. The id field becomes
// the resumption id for the next reconnect. Handler panics are isolated and
// logged; a misbehaving handler must not kill the stream.
func (c *SSEClient) dispatch(sub *subscription, eventType, id, data string) {
	if id != "" {
		sub.lastEventID = id
	}
	c.metrics.RecordSSEEvent(sub.channel, eventType)

	var parsed interface{}
	if strings.HasPrefix(data, "{") {
		var v interface{}
		if err := json.Unmarshal([]byte(data), &v); err == nil {
			parsed = v
		}
	}

	c.mu.Lock()
	handler := sub.handler
	c.mu.Unlock()
	if handler == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil && c.logger != nil {
			c.logger.Error("Event handler panicked", "channel", sub.channel, "panic", fmt.Sprintf("%v", r))
		}
	}()
	handler(Event{
		Channel: sub.channel,
		Type:    eventType,
		ID:      id,
		Data:    data,
		Parsed:  parsed,
	})
}

func (c *SSEClient) fireHeartbeat(channel string) {
	c.mu.Lock()
	handler := c.heartbeat
	c.mu.Unlock()
	if handler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil && c.logger != nil {
			c.logger.Error("Heartbeat handler panicked", "channel", channel, "panic", fmt.Sprintf("%v", r))
		}
	}()
	handler(channel)
}

func invalidChannelError(channel string) *Error {
	return validationError(
		"invalid channel ID %q: must be 1-256 characters of letters, digits, hyphens and underscores", channel)
}
