package service

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/onepass-app/onepass-server/internal/errs"
	"github.com/onepass-app/onepass-server/internal/model"
	"github.com/onepass-app/onepass-server/internal/repository"
)

// RevokeResult reports a revocation outcome.
type RevokeResult struct {
	Success bool
	Message string
}

// PassRevoker executes administrative pass revocation.
type PassRevoker interface {
	Revoke(ctx context.Context, caller model.Caller, targetUID, reason string) (*RevokeResult, error)
}

type PassRevokerImpl struct {
	users repository.UserRepository
	now   func() time.Time
	log   *zap.Logger
}

// NewPassRevoker constructs PassRevoker.
func NewPassRevoker(users repository.UserRepository, log *zap.Logger) *PassRevokerImpl {
	return &PassRevokerImpl{users: users, now: time.Now, log: log}
}

// Revoke deactivates the target's pass. ADMIN only. Revoking an already
// revoked or inactive pass succeeds with no writes.
func (s *PassRevokerImpl) Revoke(ctx context.Context, caller model.Caller, targetUID, reason string) (*RevokeResult, error) {
	if caller.UID == "" {
		return nil, errs.ErrUnauthenticated
	}
	if caller.Role != model.RoleAdmin {
		s.log.Warn("revoke attempt by non-admin",
			zap.String("caller", caller.UID),
			zap.String("role", string(caller.Role)),
			zap.String("target", targetUID),
		)
		return nil, errs.ErrPermissionDenied
	}
	if targetUID == "" || reason == "" {
		return nil, fmt.Errorf("%w: target uid and reason required", errs.ErrInvalidArgument)
	}

	pass, err := s.users.GetPass(ctx, targetUID)
	if err != nil {
		return nil, fmt.Errorf("load target: %w", err)
	}
	if pass == nil {
		return nil, fmt.Errorf("%w: user %s has no pass", errs.ErrNotFound, targetUID)
	}
	if !pass.Active || pass.RevokedAt != nil {
		return &RevokeResult{Success: true, Message: "already revoked"}, nil
	}

	auditID, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	if err := s.users.RevokePass(ctx, repository.RevokePassParams{
		UID:       targetUID,
		RevokedBy: caller.UID,
		Reason:    reason,
		RevokedAt: s.now(),
		AuditID:   auditID,
	}); err != nil {
		return nil, fmt.Errorf("revoke pass: %w", err)
	}

	s.log.Info("pass revoked",
		zap.String("target", targetUID),
		zap.String("by", caller.UID),
		zap.String("reason", reason),
	)
	return &RevokeResult{Success: true, Message: "pass revoked"}, nil
}
