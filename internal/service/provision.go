package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/onepass-app/onepass-server/internal/errs"
	"github.com/onepass-app/onepass-server/internal/repository"
)

// Provisioner reacts to new-account creation by eagerly issuing a pass.
// Both trigger variants (auth-provider user event and user-record creation)
// funnel into the same handler; issuance is idempotent, so duplicate or
// overlapping delivery is safe.
type Provisioner interface {
	HandleUserCreated(ctx context.Context, uid string) error
}

type ProvisionerImpl struct {
	users  repository.UserRepository
	issuer PassIssuer
	log    *zap.Logger
}

// NewProvisioner constructs Provisioner.
func NewProvisioner(users repository.UserRepository, issuer PassIssuer, log *zap.Logger) *ProvisionerImpl {
	return &ProvisionerImpl{users: users, issuer: issuer, log: log}
}

// HandleUserCreated ensures the user row exists and issues a pass. Issuance
// failure is logged and swallowed: account creation must never be blocked,
// and the pass is re-issued lazily on first request.
func (s *ProvisionerImpl) HandleUserCreated(ctx context.Context, uid string) error {
	if uid == "" {
		return fmt.Errorf("%w: empty uid", errs.ErrInvalidArgument)
	}
	if err := s.users.EnsureUser(ctx, uid); err != nil {
		s.log.Error("ensure user on provision", zap.String("uid", uid), zap.Error(err))
		return nil
	}
	if _, err := s.issuer.IssueOrGet(ctx, uid); err != nil {
		s.log.Warn("eager pass issuance failed, will retry on first use",
			zap.String("uid", uid), zap.Error(err))
	}
	return nil
}
