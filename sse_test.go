package securenotify

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// scriptedStream is an in-memory SSE response body. Read blocks until a
// chunk arrives or the stream context is cancelled, mirroring how an HTTP
// response body behaves under request cancellation.
type scriptedStream struct {
	ctx    context.Context
	chunks chan []byte
	buf    []byte
}

func newScriptedStream(ctx context.Context, chunks ...string) *scriptedStream {
	s := &scriptedStream{ctx: ctx, chunks: make(chan []byte, len(chunks)+1)}
	for _, c := range chunks {
		s.chunks <- []byte(c)
	}
	return s
}

func (s *scriptedStream) Read(p []byte) (int, error) {
	if len(s.buf) > 0 {
		n := copy(p, s.buf)
		s.buf = s.buf[n:]
		return n, nil
	}
	select {
	case chunk, ok := <-s.chunks:
		if !ok {
			return 0, io.EOF
		}
		n := copy(p, chunk)
		s.buf = chunk[n:]
		return n, nil
	case <-s.ctx.Done():
		return 0, s.ctx.Err()
	}
}

func (s *scriptedStream) Close() error { return nil }

func TestValidChannelID(t *testing.T) {
	valid := []string{"valid-channel", "A1_2-3", "a", strings.Repeat("x", 256)}
	for _, id := range valid {
		if !ValidChannelID(id) {
			t.Errorf("Expected %q to be valid", id)
		}
	}

	invalid := []string{"", "has space", "dot.id", "slash/id", strings.Repeat("x", 257), "emojié"}
	for _, id := range invalid {
		if ValidChannelID(id) {
			t.Errorf("Expected %q to be invalid", id)
		}
	}
}

func TestConnectionStateString(t *testing.T) {
	tests := []struct {
		state ConnectionState
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{StateReconnecting, "reconnecting"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State %d: got %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestSubscribeRejectsInvalidChannel(t *testing.T) {
	var opens atomic.Int64
	c := NewSSEClient(func(ctx context.Context, channel, lastEventID string) (io.ReadCloser, error) {
		opens.Add(1)
		return nil, errors.New("should not be reached")
	}, SSEConfig{})

	err := c.Subscribe("has space", func(Event) {})
	if !errors.Is(err, &Error{Code: CodeValidation}) {
		t.Errorf("Expected a validation error, got %v", err)
	}

	if err := c.Connect(context.Background(), "bad.id"); !errors.Is(err, &Error{Code: CodeValidation}) {
		t.Errorf("Expected a validation error from Connect, got %v", err)
	}
	if opens.Load() != 0 {
		t.Error("Expected no stream open for invalid channel ids")
	}
}

func TestConnectDispatchesEvents(t *testing.T) {
	opener := func(ctx context.Context, channel, lastEventID string) (io.ReadCloser, error) {
		return newScriptedStream(ctx,
			"event: notification\nid: 7\ndata: {\"x\":1}\n\n",
			"data: plain text\n\n",
		), nil
	}
	c := NewSSEClient(opener, SSEConfig{ReconnectDelay: time.Millisecond, MaxReconnectAttempts: 3})

	events := make(chan Event, 4)
	if err := c.Subscribe("orders", func(e Event) { events <- e }); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- c.Connect(context.Background(), "orders") }()

	first := <-events
	if first.Type != "notification" || first.ID != "7" || first.Channel != "orders" {
		t.Errorf("Unexpected first event: %+v", first)
	}
	parsed, ok := first.Parsed.(map[string]interface{})
	if !ok || parsed["x"] != float64(1) {
		t.Errorf("Expected parsed JSON payload, got %v", first.Parsed)
	}

	second := <-events
	if second.Type != "message" || second.Data != "plain text" {
		t.Errorf("Unexpected second event: %+v", second)
	}
	if second.Parsed != nil {
		t.Errorf("Expected nil Parsed for non-JSON payload, got %v", second.Parsed)
	}

	if got := c.State("orders"); got != StateConnected {
		t.Errorf("Expected connected state, got %v", got)
	}

	c.Unsubscribe("orders")
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil after Unsubscribe, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Connect did not return after Unsubscribe")
	}
}

func TestConnectReconnectBudget(t *testing.T) {
	var opens atomic.Int64
	opener := func(ctx context.Context, channel, lastEventID string) (io.ReadCloser, error) {
		opens.Add(1)
		return nil, errors.New("connection refused")
	}
	c := NewSSEClient(opener, SSEConfig{ReconnectDelay: time.Millisecond, MaxReconnectAttempts: 3})
	if err := c.Subscribe("orders", func(Event) {}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	err := c.Connect(context.Background(), "orders")
	if !errors.Is(err, &Error{Code: CodeSSEConnection}) {
		t.Fatalf("Expected SSE connection error, got %v", err)
	}

	// One initial attempt plus exactly three bounded reconnects.
	if got := opens.Load(); got != 4 {
		t.Errorf("Expected 4 open attempts, got %d", got)
	}
	if got := c.State("orders"); got != StateDisconnected {
		t.Errorf("Expected disconnected after giving up, got %v", got)
	}
}

func TestConnectResumesWithLastEventID(t *testing.T) {
	var mu sync.Mutex
	var seenIDs []string
	stop := make(chan struct{})

	opener := func(ctx context.Context, channel, lastEventID string) (io.ReadCloser, error) {
		mu.Lock()
		seenIDs = append(seenIDs, lastEventID)
		n := len(seenIDs)
		mu.Unlock()
		if n == 1 {
			s := newScriptedStream(ctx, "id: 42\ndata: x\n\n")
			close(s.chunks) // EOF after the frame
			return s, nil
		}
		close(stop)
		return newScriptedStream(ctx), nil
	}
	c := NewSSEClient(opener, SSEConfig{ReconnectDelay: time.Millisecond, MaxReconnectAttempts: 5})
	c.Subscribe("orders", func(Event) {})

	done := make(chan error, 1)
	go func() { done <- c.Connect(context.Background(), "orders") }()

	select {
	case <-stop:
	case <-time.After(time.Second):
		t.Fatal("Second open never happened")
	}
	c.Unsubscribe("orders")
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(seenIDs) < 2 {
		t.Fatalf("Expected at least 2 opens, got %d", len(seenIDs))
	}
	if seenIDs[0] != "" {
		t.Errorf("Expected empty id on first open, got %q", seenIDs[0])
	}
	if seenIDs[1] != "42" {
		t.Errorf("Expected resumption from id 42, got %q", seenIDs[1])
	}
}

func TestConnectHandlerPanicDoesNotKillStream(t *testing.T) {
	opener := func(ctx context.Context, channel, lastEventID string) (io.ReadCloser, error) {
		return newScriptedStream(ctx, "data: first\n\n", "data: second\n\n"), nil
	}
	c := NewSSEClient(opener, SSEConfig{ReconnectDelay: time.Millisecond})

	events := make(chan string, 2)
	c.Subscribe("orders", func(e Event) {
		events <- e.Data
		if e.Data == "first" {
			panic("handler bug")
		}
	})

	done := make(chan error, 1)
	go func() { done <- c.Connect(context.Background(), "orders") }()

	if got := <-events; got != "first" {
		t.Fatalf("Expected 'first', got %q", got)
	}
	select {
	case got := <-events:
		if got != "second" {
			t.Errorf("Expected 'second', got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("Stream died after handler panic")
	}

	c.Unsubscribe("orders")
	<-done
}

func TestHeartbeatFiresWhenStreamIsQuiet(t *testing.T) {
	opener := func(ctx context.Context, channel, lastEventID string) (io.ReadCloser, error) {
		return newScriptedStream(ctx), nil // never sends anything
	}
	c := NewSSEClient(opener, SSEConfig{
		HeartbeatInterval: 20 * time.Millisecond,
		ReconnectDelay:    time.Millisecond,
	})

	var beats atomic.Int64
	c.OnHeartbeat(func(channel string) {
		if channel != "orders" {
			t.Errorf("Expected heartbeat for 'orders', got %q", channel)
		}
		beats.Add(1)
	})
	c.Subscribe("orders", func(Event) {})

	done := make(chan error, 1)
	go func() { done <- c.Connect(context.Background(), "orders") }()

	time.Sleep(90 * time.Millisecond)
	c.Unsubscribe("orders")
	<-done

	if got := beats.Load(); got < 2 {
		t.Errorf("Expected repeated heartbeats on a quiet stream, got %d", got)
	}
}

func TestHeartbeatSuppressedByTraffic(t *testing.T) {
	feed := make(chan []byte, 16)
	opener := func(ctx context.Context, channel, lastEventID string) (io.ReadCloser, error) {
		s := &scriptedStream{ctx: ctx, chunks: feed}
		return s, nil
	}
	c := NewSSEClient(opener, SSEConfig{
		HeartbeatInterval: 50 * time.Millisecond,
		ReconnectDelay:    time.Millisecond,
	})

	var beats atomic.Int64
	c.OnHeartbeat(func(string) { beats.Add(1) })
	c.Subscribe("orders", func(Event) {})

	done := make(chan error, 1)
	go func() { done <- c.Connect(context.Background(), "orders") }()

	// Frames arriving faster than the interval keep re-arming the timer.
	for i := 0; i < 8; i++ {
		feed <- []byte("data: tick\n\n")
		time.Sleep(15 * time.Millisecond)
	}

	c.Unsubscribe("orders")
	<-done

	if got := beats.Load(); got != 0 {
		t.Errorf("Expected no heartbeat under steady traffic, got %d", got)
	}
}

func TestUnsubscribeLeavesOtherChannelsRunning(t *testing.T) {
	opener := func(ctx context.Context, channel, lastEventID string) (io.ReadCloser, error) {
		return newScriptedStream(ctx), nil
	}
	c := NewSSEClient(opener, SSEConfig{ReconnectDelay: time.Millisecond})
	c.Subscribe("alpha", func(Event) {})
	c.Subscribe("beta", func(Event) {})

	doneAlpha := make(chan error, 1)
	doneBeta := make(chan error, 1)
	go func() { doneAlpha <- c.Connect(context.Background(), "alpha") }()
	go func() { doneBeta <- c.Connect(context.Background(), "beta") }()

	time.Sleep(20 * time.Millisecond)
	c.Unsubscribe("alpha")

	select {
	case err := <-doneAlpha:
		if err != nil {
			t.Errorf("Expected clean stop for alpha, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("alpha did not stop")
	}

	select {
	case err := <-doneBeta:
		t.Fatalf("beta stopped unexpectedly: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	if got := c.State("beta"); got != StateConnected {
		t.Errorf("Expected beta still connected, got %v", got)
	}

	c.Close()
	<-doneBeta
}

func TestConnectAfterCloseReturnsClientClosed(t *testing.T) {
	c := NewSSEClient(func(ctx context.Context, channel, lastEventID string) (io.ReadCloser, error) {
		return newScriptedStream(ctx), nil
	}, SSEConfig{})
	c.Close()

	if err := c.Connect(context.Background(), "orders"); !errors.Is(err, ErrClientClosed) {
		t.Errorf("Expected ErrClientClosed, got %v", err)
	}
}

func TestConnectContextCancel(t *testing.T) {
	opener := func(ctx context.Context, channel, lastEventID string) (io.ReadCloser, error) {
		return newScriptedStream(ctx), nil
	}
	c := NewSSEClient(opener, SSEConfig{ReconnectDelay: time.Millisecond})
	c.Subscribe("orders", func(Event) {})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Connect(ctx, "orders") }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Connect did not return after cancellation")
	}
}

func TestConnectRejectsConcurrentConsumers(t *testing.T) {
	var opens atomic.Int64
	opener := func(ctx context.Context, channel, lastEventID string) (io.ReadCloser, error) {
		opens.Add(1)
		return newScriptedStream(ctx), nil
	}
	c := NewSSEClient(opener, SSEConfig{ReconnectDelay: time.Millisecond})
	c.Subscribe("orders", func(Event) {})

	done := make(chan error, 1)
	go func() { done <- c.Connect(context.Background(), "orders") }()

	deadline := time.Now().Add(time.Second)
	for c.State("orders") != StateConnected {
		if time.Now().After(deadline) {
			t.Fatal("First consumer never connected")
		}
		time.Sleep(time.Millisecond)
	}

	if err := c.Connect(context.Background(), "orders"); !errors.Is(err, ErrAlreadyConnected) {
		t.Fatalf("Expected ErrAlreadyConnected for a second consumer, got %v", err)
	}
	if got := opens.Load(); got != 1 {
		t.Errorf("Expected a single transport stream for the channel, got %d", got)
	}

	c.Unsubscribe("orders")
	if err := <-done; err != nil {
		t.Errorf("Expected clean stop for the first consumer, got %v", err)
	}

	// The owner released the channel; a fresh subscription may connect.
	c.Subscribe("orders", func(Event) {})
	done2 := make(chan error, 1)
	go func() { done2 <- c.Connect(context.Background(), "orders") }()
	deadline = time.Now().Add(time.Second)
	for c.State("orders") != StateConnected {
		if time.Now().After(deadline) {
			t.Fatal("Reconnect after release never happened")
		}
		time.Sleep(time.Millisecond)
	}
	c.Unsubscribe("orders")
	if err := <-done2; err != nil {
		t.Errorf("Expected clean stop after resubscribe, got %v", err)
	}
}

func TestRetryFieldScopedToConnection(t *testing.T) {
	var mu sync.Mutex
	opens := 0
	opener := func(ctx context.Context, channel, lastEventID string) (io.ReadCloser, error) {
		mu.Lock()
		opens++
		n := opens
		mu.Unlock()
		if n == 1 {
			s := newScriptedStream(ctx, "retry: 20\ndata: x\n\n")
			close(s.chunks) // EOF forces a reconnect under the 20ms hint
			return s, nil
		}
		return newScriptedStream(ctx), nil
	}
	c := NewSSEClient(opener, SSEConfig{ReconnectDelay: time.Millisecond, MaxReconnectAttempts: 5})
	c.Subscribe("orders", func(Event) {})

	done := make(chan error, 1)
	go func() { done <- c.Connect(context.Background(), "orders") }()

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := opens
		mu.Unlock()
		if n >= 2 && c.State("orders") == StateConnected {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Second stream never opened")
		}
		time.Sleep(time.Millisecond)
	}

	c.mu.Lock()
	sub := c.subs["orders"]
	c.mu.Unlock()
	c.Unsubscribe("orders")
	<-done

	if sub.baseDelay != time.Millisecond {
		t.Errorf("Expected the retry hint discarded on a fresh stream, got %v", sub.baseDelay)
	}
}

func TestRetryFieldAdjustsReconnectDelay(t *testing.T) {
	opener := func(ctx context.Context, channel, lastEventID string) (io.ReadCloser, error) {
		return newScriptedStream(ctx, "retry: 5000\ndata: x\n\n"), nil
	}
	c := NewSSEClient(opener, SSEConfig{ReconnectDelay: time.Millisecond})

	events := make(chan Event, 1)
	c.Subscribe("orders", func(e Event) { events <- e })

	done := make(chan error, 1)
	go func() { done <- c.Connect(context.Background(), "orders") }()
	<-events

	c.mu.Lock()
	sub := c.subs["orders"]
	c.mu.Unlock()
	if sub.baseDelay != 5*time.Second {
		t.Errorf("Expected base delay 5s from retry field, got %v", sub.baseDelay)
	}

	c.Unsubscribe("orders")
	<-done
}
