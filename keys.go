package securenotify

import (
	"context"
	"net/url"
)

// KeyService manages end-to-end encryption public keys.
type KeyService struct {
	client *Client
}

// RegisterKeyRequest carries the inputs for KeyService.Register.
type RegisterKeyRequest struct {
	PublicKey string
	Algorithm string
	// ExpiresIn is the key lifetime in seconds; zero means no expiry.
	ExpiresIn int
	Metadata  map[string]interface{}
}

// Register registers a public key with the service.
func (s *KeyService) Register(ctx context.Context, req RegisterKeyRequest) (*RegisterKeyResponse, error) {
	if req.PublicKey == "" {
		return nil, validationError("public key must not be empty")
	}
	if req.Algorithm == "" {
		return nil, validationError("algorithm must not be empty")
	}

	body := map[string]interface{}{
		"public_key": req.PublicKey,
		"algorithm":  req.Algorithm,
	}
	if req.ExpiresIn > 0 {
		body["expires_in"] = req.ExpiresIn
	}
	if req.Metadata != nil {
		body["metadata"] = req.Metadata
	}

	raw, err := s.client.invoke(ctx, "POST", "/api/register", body, body, nil, false)
	if err != nil {
		return nil, err
	}
	var out RegisterKeyResponse
	if err := decode(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get fetches a registered public key by id.
func (s *KeyService) Get(ctx context.Context, keyID string) (*PublicKeyInfo, error) {
	if keyID == "" {
		return nil, validationError("key ID must not be empty")
	}

	path := "/api/keys/" + url.PathEscape(keyID)
	raw, err := s.client.invoke(ctx, "GET", path, nil, nil, nil, true)
	if err != nil {
		return nil, err
	}
	var out PublicKeyInfo
	if err := decode(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns all registered public keys.
func (s *KeyService) List(ctx context.Context) ([]PublicKeyInfo, error) {
	raw, err := s.client.invoke(ctx, "GET", "/api/keys", nil, nil, nil, true)
	if err != nil {
		return nil, err
	}
	var out publicKeyList
	if err := decode(raw, &out); err != nil {
		return nil, err
	}
	return out.Keys, nil
}

// Revoke revokes a public key, with an optional audit reason.
func (s *KeyService) Revoke(ctx context.Context, keyID, reason string) error {
	if keyID == "" {
		return validationError("key ID must not be empty")
	}

	var body map[string]interface{}
	if reason != "" {
		body = map[string]interface{}{"reason": reason}
	}
	path := "/api/keys/" + url.PathEscape(keyID) + "/revoke"
	_, err := s.client.invoke(ctx, "POST", path, body, body, nil, false)
	return err
}
