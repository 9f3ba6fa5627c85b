package securenotify

import (
	"context"
	"net/url"
)

// APIKeyService manages API keys used to authenticate clients.
type APIKeyService struct {
	client *Client
}

// CreateAPIKeyRequest describes a new API key.
type CreateAPIKeyRequest struct {
	Name string `json:"name"`
	// ExpiresIn is the key lifetime in seconds. Zero means no expiry.
	ExpiresIn   int      `json:"expires_in,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// Create issues a new API key. The secret is only returned once.
func (s *APIKeyService) Create(ctx context.Context, req CreateAPIKeyRequest) (*CreateAPIKeyResponse, error) {
	if req.Name == "" {
		return nil, validationError("api key name must not be empty")
	}

	raw, err := s.client.invoke(ctx, "POST", "/api/apikeys", nil, req, nil, false)
	if err != nil {
		return nil, err
	}
	var out CreateAPIKeyResponse
	if err := decode(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get fetches metadata for one API key. The secret is never included.
func (s *APIKeyService) Get(ctx context.Context, keyID string) (*APIKeyInfo, error) {
	if keyID == "" {
		return nil, validationError("key id must not be empty")
	}

	path := "/api/apikeys/" + url.PathEscape(keyID)
	params := map[string]interface{}{"key_id": keyID}
	raw, err := s.client.invoke(ctx, "GET", path, params, nil, nil, true)
	if err != nil {
		return nil, err
	}
	var out APIKeyInfo
	if err := decode(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns all API keys visible to the caller.
func (s *APIKeyService) List(ctx context.Context) ([]APIKeyInfo, error) {
	params := map[string]interface{}{"op": "list_apikeys"}
	raw, err := s.client.invoke(ctx, "GET", "/api/apikeys", params, nil, nil, true)
	if err != nil {
		return nil, err
	}
	var out apiKeyList
	if err := decode(raw, &out); err != nil {
		return nil, err
	}
	return out.Keys, nil
}

// Revoke permanently disables an API key.
func (s *APIKeyService) Revoke(ctx context.Context, keyID string) error {
	if keyID == "" {
		return validationError("key id must not be empty")
	}

	path := "/api/apikeys/" + url.PathEscape(keyID)
	_, err := s.client.invoke(ctx, "DELETE", path, nil, nil, nil, false)
	return err
}
