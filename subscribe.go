package securenotify

import (
	"context"
)

// SubscribeService receives channel events over the server-sent event stream.
type SubscribeService struct {
	client *Client
}

// Subscription is a live stream consumer started by SubscribeService.Subscribe.
type Subscription struct {
	channel string
	service *SubscribeService
	cancel  context.CancelFunc
	errCh   chan error
}

// Subscribe starts consuming channel on a background goroutine and returns
// immediately. The handler runs on the stream goroutine; a panic inside it is
// recovered and logged without dropping the connection. Use Err to observe the
// terminal outcome of the stream.
func (s *SubscribeService) Subscribe(ctx context.Context, channel string, handler EventHandler) (*Subscription, error) {
	if err := s.client.sse.Subscribe(channel, handler); err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		channel: channel,
		service: s,
		cancel:  cancel,
		errCh:   make(chan error, 1),
	}
	go func() {
		sub.errCh <- s.client.sse.Connect(streamCtx, channel)
	}()
	return sub, nil
}

// Listen is the blocking variant of Subscribe. It consumes channel until the
// context is cancelled, the subscription is closed, or the reconnect budget
// runs out.
func (s *SubscribeService) Listen(ctx context.Context, channel string, handler EventHandler) error {
	if err := s.client.sse.Subscribe(channel, handler); err != nil {
		return err
	}
	return s.client.sse.Connect(ctx, channel)
}

// OnHeartbeat registers a handler invoked whenever a heartbeat event arrives
// on any subscribed channel.
func (s *SubscribeService) OnHeartbeat(handler HeartbeatHandler) {
	s.client.sse.OnHeartbeat(handler)
}

// Unsubscribe stops the stream for one channel, leaving others untouched.
func (s *SubscribeService) Unsubscribe(channel string) {
	s.client.sse.Unsubscribe(channel)
}

// State reports the current connection state for a channel.
func (s *SubscribeService) State(channel string) ConnectionState {
	return s.client.sse.State(channel)
}

// Channel returns the channel identifier this subscription consumes.
func (sub *Subscription) Channel() string {
	return sub.channel
}

// Err blocks until the stream goroutine finishes and returns its result:
// nil after Close or Unsubscribe, the context error on cancellation, or the
// connection error that exhausted the reconnect budget.
func (sub *Subscription) Err() error {
	err := <-sub.errCh
	// Re-buffer so repeated calls observe the same outcome.
	sub.errCh <- err
	return err
}

// Close stops this subscription's stream.
func (sub *Subscription) Close() {
	sub.service.Unsubscribe(sub.channel)
	sub.cancel()
}
