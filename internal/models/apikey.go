package models

import "time"

// APIKey authenticates API requests and resolves them to an account/user.
type APIKey struct {
	ID         string     `json:"id"`
	AccountID  string     `json:"account_id"`
	UserID     string     `json:"user_id"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"-"` // SHA256 hash, never expose
	KeyPrefix  string     `json:"key_prefix"`
	Active     bool       `json:"active"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// APIKeyCreateResult is returned when creating a new key.
// Contains the full key which is shown only once.
type APIKeyCreateResult struct {
	APIKey
	Key string `json:"key"`
}
