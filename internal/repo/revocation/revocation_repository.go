// Package revocation keeps a list of session token IDs that were revoked before their expiry.
package revocation

import (
	"context"
	"time"
)

// Repository defines the interface for the token revocation list.
type Repository interface {
	// Revoke marks the token ID as revoked until the given time, after which
	// the token has expired anyway and the entry may be dropped.
	Revoke(ctx context.Context, tokenID string, until time.Time) error

	// IsRevoked reports whether the token ID was revoked.
	IsRevoked(ctx context.Context, tokenID string) (bool, error)

	// Close releases any resources held by the repository.
	Close() error
}

// NopRepository never revokes anything: tokens stay valid until they expire.
type NopRepository struct{}

var _ Repository = NopRepository{}

// Revoke implements Repository.Revoke as a no-op.
func (NopRepository) Revoke(context.Context, string, time.Time) error { return nil }

// IsRevoked implements Repository.IsRevoked; nothing is ever revoked.
func (NopRepository) IsRevoked(context.Context, string) (bool, error) { return false, nil }

// Close implements Repository.Close.
func (NopRepository) Close() error { return nil }
