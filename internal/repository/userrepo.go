package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/onepass-app/onepass-server/internal/model"
)

// RevokePassParams carries one pass revocation, committed atomically with
// its audit row.
type RevokePassParams struct {
	UID       string
	RevokedBy string
	Reason    string
	RevokedAt time.Time
	AuditID   uuid.UUID // deterministic id keeps a retried commit idempotent
}

// UserRepository accesses user records and the pass embedded in them.
type UserRepository interface {
	// EnsureUser inserts the user row if it does not exist yet.
	EnsureUser(ctx context.Context, uid string) error

	// GetPass loads the user's pass. It returns errs.ErrNotFound when the
	// user does not exist and (nil, nil) when the user exists without a pass.
	GetPass(ctx context.Context, uid string) (*model.Pass, error)

	// SavePass merges a freshly issued pass into the user's record.
	// errs.ErrNotFound when the user does not exist.
	SavePass(ctx context.Context, uid string, pass *model.Pass) error

	// RevokePass marks the pass revoked and appends the pass_revoked audit
	// row in one transaction.
	RevokePass(ctx context.Context, p RevokePassParams) error
}
