// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/onepass-app/onepass-server/internal/model"
)

// KeyRepository provides access to the signing key collection.
type KeyRepository interface {
	// GetActive returns the single key flagged active, or errs.ErrNoActiveKey.
	GetActive(ctx context.Context) (*model.SigningKey, error)

	// GetByID returns a key by id regardless of its active flag, or
	// errs.ErrNotFound. Revoked keys are returned with RevokedAt set.
	GetByID(ctx context.Context, keyID string) (*model.SigningKey, error)

	// Create inserts a new key. Used by first-run bootstrap.
	Create(ctx context.Context, key *model.SigningKey) error
}
