package authstore

import (
	"context"

	"github.com/cercia-labs/cercia-core/internal/domain"
)

// Credentials is what survives a restart of the extension for the logged-in agent.
type Credentials struct {
	APIKey           string              `json:"apiKey"`
	ClaimURL         string              `json:"claimUrl,omitempty"`
	VerificationCode string              `json:"verificationCode,omitempty"`
	CachedAgent      *domain.CachedAgent `json:"cachedAgent,omitempty"`
}

// Event reports a credentials change made by any execution context.
type Event struct {
	LoggedOut bool
}

// Store persists the credentials of the single logged-in agent.
type Store interface {
	// Get returns the stored credentials and whether any exist.
	Get(ctx context.Context) (Credentials, bool, error)
	Save(ctx context.Context, c Credentials) error
	// Clear removes the credentials (log out).
	Clear(ctx context.Context) error
	// Watch streams credential changes until ctx is done.
	Watch(ctx context.Context) (<-chan Event, error)
}
