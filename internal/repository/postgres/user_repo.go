package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/onepass-app/onepass-server/internal/errs"
	"github.com/onepass-app/onepass-server/internal/model"
	"github.com/onepass-app/onepass-server/internal/repository"
)

// UserRepo implements UserRepository using PostgreSQL. The pass lives in
// pass_* columns on the user row; pass_key_id IS NULL means no pass.
type UserRepo struct{ db *DB }

// NewUserRepo constructs a user repository.
func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

// EnsureUser inserts the user row if absent. Safe under duplicate trigger delivery.
func (r *UserRepo) EnsureUser(ctx context.Context, uid string) error {
	const q = `INSERT INTO users (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`
	_, err := r.db.Pool.Exec(ctx, q, uid)
	return err
}

// GetPass loads the pass embedded in the user row.
func (r *UserRepo) GetPass(ctx context.Context, uid string) (*model.Pass, error) {
	const q = `
SELECT pass_key_id, pass_issued_at, pass_version, pass_active, pass_signature,
       pass_last_scanned_at, pass_revoked_at, pass_revoked_by, pass_revocation_reason
FROM users WHERE id=$1`
	row := r.db.Pool.QueryRow(ctx, q, uid)
	var (
		keyID         *string
		issuedAt      *int64
		version       *int
		active        *bool
		signature     *string
		lastScannedAt *int64
		revokedAt     *time.Time
		revokedBy     *string
		reason        *string
	)
	if err := row.Scan(&keyID, &issuedAt, &version, &active, &signature,
		&lastScannedAt, &revokedAt, &revokedBy, &reason); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	if keyID == nil {
		return nil, nil // user exists, no pass yet
	}
	p := &model.Pass{
		OwnerUserID:   uid,
		KeyID:         *keyID,
		LastScannedAt: lastScannedAt,
	}
	if issuedAt != nil {
		p.IssuedAt = *issuedAt
	}
	if version != nil {
		p.Version = *version
	}
	if active != nil {
		p.Active = *active
	}
	if signature != nil {
		p.Signature = *signature
	}
	p.RevokedAt = revokedAt
	if revokedBy != nil {
		p.RevokedBy = *revokedBy
	}
	if reason != nil {
		p.RevocationReason = *reason
	}
	return p, nil
}

// SavePass merges a freshly issued pass into the user row, clearing any
// previous revocation and scan bookkeeping.
func (r *UserRepo) SavePass(ctx context.Context, uid string, pass *model.Pass) error {
	const q = `
UPDATE users
SET pass_key_id=$2, pass_issued_at=$3, pass_version=$4, pass_active=$5,
    pass_signature=$6, pass_last_scanned_at=NULL, pass_revoked_at=NULL,
    pass_revoked_by=NULL, pass_revocation_reason=NULL
WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, uid, pass.KeyID, pass.IssuedAt, pass.Version, pass.Active, pass.Signature)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// RevokePass marks the pass revoked and writes the audit row in one transaction.
func (r *UserRepo) RevokePass(ctx context.Context, p repository.RevokePassParams) (err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const upd = `
UPDATE users
SET pass_active=false, pass_revoked_at=$2, pass_revoked_by=$3, pass_revocation_reason=$4
WHERE id=$1 AND pass_key_id IS NOT NULL`
	tag, err := tx.Exec(ctx, upd, p.UID, p.RevokedAt, p.RevokedBy, p.Reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}

	const ins = `
INSERT INTO validations (id, uid, event_id, ticket_id, result, reason, scanned_by, scanner_role, created_at)
VALUES ($1, $2, '', NULL, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO NOTHING`
	if _, err = tx.Exec(ctx, ins, p.AuditID, p.UID, string(model.ValidationRevoked),
		p.Reason, p.RevokedBy, string(model.RoleAdmin), p.RevokedAt); err != nil {
		return err
	}
	return nil
}
