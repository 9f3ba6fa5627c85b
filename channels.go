package securenotify

import (
	"context"
	"net/url"
)

// ChannelService manages notification channels.
type ChannelService struct {
	client *Client
}

// CreateChannelRequest carries the inputs for ChannelService.Create.
type CreateChannelRequest struct {
	Name string
	// Type defaults to ChannelEncrypted when empty.
	Type        ChannelType
	Description string
	// TTL is the channel lifetime in seconds; zero means unlimited.
	TTL      int
	Metadata map[string]interface{}
}

// Create creates a channel.
func (s *ChannelService) Create(ctx context.Context, req CreateChannelRequest) (*CreateChannelResponse, error) {
	if req.Name == "" {
		return nil, validationError("channel name must not be empty")
	}
	if req.Type == "" {
		req.Type = ChannelEncrypted
	}

	body := map[string]interface{}{
		"name": req.Name,
		"type": string(req.Type),
	}
	if req.Description != "" {
		body["description"] = req.Description
	}
	if req.TTL > 0 {
		body["ttl"] = req.TTL
	}
	if req.Metadata != nil {
		body["metadata"] = req.Metadata
	}

	raw, err := s.client.invoke(ctx, "POST", "/api/channels", body, body, nil, false)
	if err != nil {
		return nil, err
	}
	var out CreateChannelResponse
	if err := decode(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get fetches a channel by id.
func (s *ChannelService) Get(ctx context.Context, channelID string) (*ChannelInfo, error) {
	if channelID == "" {
		return nil, validationError("channel ID must not be empty")
	}

	path := "/api/channels/" + url.PathEscape(channelID)
	raw, err := s.client.invoke(ctx, "GET", path, nil, nil, nil, true)
	if err != nil {
		return nil, err
	}
	var out ChannelInfo
	if err := decode(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns all channels visible to the caller.
func (s *ChannelService) List(ctx context.Context) ([]ChannelInfo, error) {
	raw, err := s.client.invoke(ctx, "GET", "/api/channels", nil, nil, nil, true)
	if err != nil {
		return nil, err
	}
	var out channelList
	if err := decode(raw, &out); err != nil {
		return nil, err
	}
	return out.Channels, nil
}
