package model

import "time"

// Credential is the provider token pair stored behind an opaque session id.
type Credential struct {
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenExpiry  time.Time `json:"token_expiry"`
	ID           string    `json:"id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	Email        string    `json:"email"`
}

// Expired reports whether the session itself has lapsed. A zero ExpiresAt never expires.
func (c *Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}
