package securenotify

import (
	"context"
	"net/url"
)

// PublishService sends messages to channels.
type PublishService struct {
	client *Client
}

// PublishRequest carries the full input set for PublishService.SendWithRequest.
// The convenience Send* helpers fill the common fields.
type PublishRequest struct {
	Channel  string
	Message  string
	Priority MessagePriority
	Sender   string
	// Encrypted marks the payload as end-to-end encrypted.
	Encrypted bool
	Signature string
	// Cache lets the server cache the message for late joiners.
	Cache bool
}

// Send publishes a normal-priority encrypted message.
func (s *PublishService) Send(ctx context.Context, channel, message string) (*PublishResponse, error) {
	return s.SendWithRequest(ctx, PublishRequest{
		Channel:   channel,
		Message:   message,
		Priority:  PriorityNormal,
		Encrypted: true,
		Cache:     true,
	})
}

// SendCritical publishes with critical priority.
func (s *PublishService) SendCritical(ctx context.Context, channel, message string) (*PublishResponse, error) {
	return s.SendWithRequest(ctx, PublishRequest{
		Channel:   channel,
		Message:   message,
		Priority:  PriorityCritical,
		Encrypted: true,
		Cache:     true,
	})
}

// SendHigh publishes with high priority.
func (s *PublishService) SendHigh(ctx context.Context, channel, message string) (*PublishResponse, error) {
	return s.SendWithRequest(ctx, PublishRequest{
		Channel:   channel,
		Message:   message,
		Priority:  PriorityHigh,
		Encrypted: true,
		Cache:     true,
	})
}

// SendBulk publishes with bulk priority, unencrypted and uncached, for
// high-volume fanout.
func (s *PublishService) SendBulk(ctx context.Context, channel, message string) (*PublishResponse, error) {
	return s.SendWithRequest(ctx, PublishRequest{
		Channel:  channel,
		Message:  message,
		Priority: PriorityBulk,
	})
}

// SendWithRequest publishes with explicit control over every field.
func (s *PublishService) SendWithRequest(ctx context.Context, req PublishRequest) (*PublishResponse, error) {
	if req.Channel == "" {
		return nil, validationError("channel must not be empty")
	}
	if req.Message == "" {
		return nil, validationError("message must not be empty")
	}

	body := map[string]interface{}{
		"channel":   req.Channel,
		"message":   req.Message,
		"priority":  int(req.Priority),
		"encrypted": req.Encrypted,
		"cache":     req.Cache,
	}
	if req.Sender != "" {
		body["sender"] = req.Sender
	}
	if req.Signature != "" {
		body["signature"] = req.Signature
	}

	raw, err := s.client.invoke(ctx, "POST", "/api/publish", body, body, nil, false)
	if err != nil {
		return nil, err
	}
	var out PublishResponse
	if err := decode(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QueueStatus reports pending delivery counts for a channel.
func (s *PublishService) QueueStatus(ctx context.Context, channel string) (*QueueStatus, error) {
	if channel == "" {
		return nil, validationError("channel must not be empty")
	}

	query := url.Values{"channel": []string{channel}}
	params := map[string]interface{}{"channel": channel}
	raw, err := s.client.invoke(ctx, "GET", "/api/publish", params, nil, query, true)
	if err != nil {
		return nil, err
	}
	var out QueueStatus
	if err := decode(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
