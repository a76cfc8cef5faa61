// Package service contains the pass issuance, entry validation, revocation,
// and provisioning services.
package service

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/onepass-app/onepass-server/internal/errs"
	"github.com/onepass-app/onepass-server/internal/model"
	"github.com/onepass-app/onepass-server/internal/repository"
	"github.com/onepass-app/onepass-server/internal/token"
)

// passVersion is the credential format version stamped into new payloads.
const passVersion = 1

// PassIssuer builds and persists a user's signed pass.
type PassIssuer interface {
	// IssueOrGet returns the user's existing usable pass unchanged, or
	// issues a new one under the active key. Idempotent.
	IssueOrGet(ctx context.Context, userID string) (*model.Pass, error)
}

type PassIssuerImpl struct {
	users repository.UserRepository
	keys  repository.KeyRepository
	now   func() time.Time
}

// NewPassIssuer constructs PassIssuer with required dependencies.
func NewPassIssuer(users repository.UserRepository, keys repository.KeyRepository) *PassIssuerImpl {
	return &PassIssuerImpl{users: users, keys: keys, now: time.Now}
}

// IssueOrGet implements the issuance state machine. A pass that is active,
// signed, and unrevoked is returned as-is with no writes; otherwise a fresh
// payload is signed under the active key and merged into the user record in
// a single write. No active key is an error with no partial write.
func (s *PassIssuerImpl) IssueOrGet(ctx context.Context, userID string) (*model.Pass, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", errs.ErrInvalidArgument)
	}

	// Provisioning may have failed at account creation; issuance is the
	// lazy retry path, so the user row is created here if missing.
	if err := s.users.EnsureUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}

	existing, err := s.users.GetPass(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load pass: %w", err)
	}
	if existing.Usable() {
		return existing, nil
	}

	key, err := s.keys.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("active key: %w", err)
	}
	if len(key.PrivateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("active key %s: bad private key size %d", key.KeyID, len(key.PrivateKey))
	}

	issuedAt := s.now().Unix()
	payload, err := token.EncodePayload(token.Payload{
		UID: userID,
		KID: key.KeyID,
		IAT: issuedAt,
		Ver: passVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	pass := &model.Pass{
		OwnerUserID: userID,
		KeyID:       key.KeyID,
		IssuedAt:    issuedAt,
		Version:     passVersion,
		Active:      true,
		Signature:   token.Sign(payload, ed25519.PrivateKey(key.PrivateKey)),
	}
	if err := s.users.SavePass(ctx, userID, pass); err != nil {
		return nil, fmt.Errorf("save pass: %w", err)
	}
	return pass, nil
}
