// Package service defines the interfaces between the classifier core and its collaborators.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/unclutter/internal/model"
)

// MaxListResults caps how many messages a single list call may return.
const MaxListResults = 50

// ListOptions narrows a message listing.
type ListOptions struct {
	Query      string
	MaxResults int
}

// Clamp returns the options with MaxResults forced into [1, MaxListResults].
// A non-positive value selects the maximum.
func (o ListOptions) Clamp() ListOptions {
	if o.MaxResults <= 0 || o.MaxResults > MaxListResults {
		o.MaxResults = MaxListResults
	}
	return o
}

// MessageSource fetches messages from a mail provider.
type MessageSource interface {
	// ListMessages returns message metadata. Messages that fail to load individually
	// are skipped rather than failing the whole listing.
	ListMessages(ctx context.Context, opts ListOptions) ([]model.Message, error)
	// GetMessage returns one message including its body text.
	GetMessage(ctx context.Context, id string) (*model.Message, error)
	// Name identifies the source in logs and metrics.
	Name() string
}

// TokenStore persists OAuth credentials keyed by an opaque session id.
type TokenStore interface {
	// Get returns common.ErrNotFound when id is unknown or its credential has expired.
	Get(ctx context.Context, id string) (*model.Credential, error)
	Put(ctx context.Context, cred *model.Credential) error
	// Delete is idempotent.
	Delete(ctx context.Context, id string) error
	// PurgeExpired removes expired credentials and reports how many were removed.
	PurgeExpired(ctx context.Context) (int, error)
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
