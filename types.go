package securenotify

import (
	"context"
	"time"
)

// MessagePriority orders queued messages on the server. Higher wins.
type MessagePriority int

const (
	PriorityCritical MessagePriority = 100
	PriorityHigh     MessagePriority = 75
	PriorityNormal   MessagePriority = 50
	PriorityLow      MessagePriority = 25
	PriorityBulk     MessagePriority = 0
)

// ChannelType is the visibility/lifetime class of a channel.
type ChannelType string

const (
	ChannelPublic    ChannelType = "public"
	ChannelEncrypted ChannelType = "encrypted"
	ChannelTemporary ChannelType = "temporary"
)

// Operation is one opaque unit of remote work executed under the
// reliability pipeline. The core never inspects the value it returns.
type Operation func(ctx context.Context) (interface{}, error)

// Option configures a Client at construction time.
type Option func(*Client)

// PublicKeyInfo describes a registered end-to-end encryption public key.
type PublicKeyInfo struct {
	ID         string                 `json:"id"`
	ChannelID  string                 `json:"channel_id"`
	PublicKey  string                 `json:"public_key"`
	Algorithm  string                 `json:"algorithm"`
	CreatedAt  time.Time              `json:"created_at"`
	ExpiresAt  *time.Time             `json:"expires_at,omitempty"`
	LastUsedAt *time.Time             `json:"last_used_at,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// RegisterKeyResponse is returned by KeyService.Register.
type RegisterKeyResponse struct {
	KeyID     string     `json:"key_id"`
	ChannelID string     `json:"channel_id"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ChannelInfo describes a notification channel.
type ChannelInfo struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	ChannelType ChannelType            `json:"type"`
	Description string                 `json:"description,omitempty"`
	Creator     string                 `json:"creator,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	ExpiresAt   *time.Time             `json:"expires_at,omitempty"`
	IsActive    bool                   `json:"is_active"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// CreateChannelResponse is returned by ChannelService.Create.
type CreateChannelResponse struct {
	ChannelID   string      `json:"channel_id"`
	Name        string      `json:"name"`
	ChannelType ChannelType `json:"type"`
	CreatedAt   time.Time   `json:"created_at"`
	ExpiresAt   *time.Time  `json:"expires_at,omitempty"`
}

// MessageInfo describes a delivered message.
type MessageInfo struct {
	ID        string          `json:"id"`
	Channel   string          `json:"channel"`
	Message   string          `json:"message"`
	Encrypted bool            `json:"encrypted"`
	Sender    string          `json:"sender,omitempty"`
	Priority  MessagePriority `json:"priority,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// PublishResponse is returned by PublishService.Send.
type PublishResponse struct {
	MessageID   string    `json:"message_id"`
	Channel     string    `json:"channel"`
	Timestamp   time.Time `json:"timestamp"`
	AutoCreated bool      `json:"auto_created,omitempty"`
}

// QueueStatus reports pending delivery counts for a channel.
type QueueStatus struct {
	Channel        string         `json:"channel"`
	PendingCount   int            `json:"pending_count"`
	PriorityCounts map[string]int `json:"priority_counts"`
}

// APIKeyInfo describes an API key (the secret is only returned at creation).
type APIKeyInfo struct {
	ID          string     `json:"id"`
	KeyPrefix   string     `json:"key_prefix"`
	Name        string     `json:"name"`
	Permissions []string   `json:"permissions"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// CreateAPIKeyResponse is returned by APIKeyService.Create and is the only
// place the full key secret is ever exposed.
type CreateAPIKeyResponse struct {
	KeyID       string     `json:"key_id"`
	Key         string     `json:"key"`
	KeyPrefix   string     `json:"key_prefix"`
	Name        string     `json:"name"`
	Permissions []string   `json:"permissions"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// List endpoints wrap their items in a keyed envelope.
type publicKeyList struct {
	Keys []PublicKeyInfo `json:"keys"`
}

type channelList struct {
	Channels []ChannelInfo `json:"channels"`
}

type apiKeyList struct {
	Keys []APIKeyInfo `json:"keys"`
}
