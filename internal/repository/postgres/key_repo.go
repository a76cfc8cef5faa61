package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/onepass-app/onepass-server/internal/errs"
	"github.com/onepass-app/onepass-server/internal/model"
)

// KeyRepo implements KeyRepository using PostgreSQL.
type KeyRepo struct{ db *DB }

// NewKeyRepo constructs a signing key repository.
func NewKeyRepo(db *DB) *KeyRepo { return &KeyRepo{db: db} }

// GetActive selects the single key flagged active. A partial unique index
// guarantees at most one such row.
func (r *KeyRepo) GetActive(ctx context.Context) (*model.SigningKey, error) {
	const q = `
SELECT key_id, public_key, private_key, active, revoked_at, created_at
FROM signing_keys WHERE active`
	row := r.db.Pool.QueryRow(ctx, q)
	var k model.SigningKey
	if err := row.Scan(&k.KeyID, &k.PublicKey, &k.PrivateKey, &k.Active, &k.RevokedAt, &k.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNoActiveKey
		}
		return nil, err
	}
	return &k, nil
}

// GetByID selects a key by id, active or not.
func (r *KeyRepo) GetByID(ctx context.Context, keyID string) (*model.SigningKey, error) {
	const q = `
SELECT key_id, public_key, private_key, active, revoked_at, created_at
FROM signing_keys WHERE key_id=$1`
	row := r.db.Pool.QueryRow(ctx, q, keyID)
	var k model.SigningKey
	if err := row.Scan(&k.KeyID, &k.PublicKey, &k.PrivateKey, &k.Active, &k.RevokedAt, &k.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &k, nil
}

// Create inserts a new key row.
func (r *KeyRepo) Create(ctx context.Context, key *model.SigningKey) error {
	const q = `
INSERT INTO signing_keys (key_id, public_key, private_key, active, revoked_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Pool.Exec(ctx, q, key.KeyID, key.PublicKey, key.PrivateKey, key.Active, key.RevokedAt, key.CreatedAt)
	return err
}
