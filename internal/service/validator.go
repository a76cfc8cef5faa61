package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/onepass-app/onepass-server/internal/errs"
	"github.com/onepass-app/onepass-server/internal/model"
	"github.com/onepass-app/onepass-server/internal/repository"
	"github.com/onepass-app/onepass-server/internal/token"
)

// Rejection reason codes returned to the scanning client.
const (
	ReasonBadSignature   = "BAD_SIGNATURE"
	ReasonRevoked        = "REVOKED"
	ReasonUnregistered   = "UNREGISTERED"
	ReasonAlreadyScanned = "ALREADY_SCANNED"
	ReasonUnknown        = "UNKNOWN"
)

// Audit reasons recorded on rejected validation rows.
const (
	auditBadFormat      = "bad_format"
	auditBadSignature   = "bad_signature"
	auditRevoked        = "revoked"
	auditNotRegistered  = "not_registered"
	auditAlreadyScanned = "already_scanned"
)

// DefaultReplayWindow absorbs client double-submits of the same scan.
const DefaultReplayWindow = 30 * time.Second

// scanRoles is the allow-list for entry validation.
var scanRoles = map[model.Role]bool{
	model.RoleStaff:     true,
	model.RoleSecurity:  true,
	model.RoleAdmin:     true,
	model.RoleOrganizer: true,
}

// ValidateInput is one scan request.
type ValidateInput struct {
	Caller  model.Caller
	QRText  string
	EventID string
}

// ValidateResult is the structured accept/reject outcome. Business
// rejections are results, not errors; only auth/argument failures error.
type ValidateResult struct {
	Accepted  bool
	Reason    string // set when rejected
	TicketID  string // set when accepted
	ScannedAt time.Time
	Remaining int // clamped to >= 0

	// Prior redemption details, set for ALREADY_SCANNED losses of a race.
	PriorRedeemedAt *time.Time
	PriorScannedBy  string
}

// SignatureVerifier checks a detached signature by key id.
type SignatureVerifier interface {
	Verify(ctx context.Context, payload []byte, sigB64, keyID string) bool
}

// EntryValidator runs the scan protocol: parse, verify, pass status, replay
// window, ticket eligibility, atomic redemption.
type EntryValidator interface {
	Validate(ctx context.Context, in ValidateInput) (*ValidateResult, error)
}

type EntryValidatorImpl struct {
	users    repository.UserRepository
	entries  repository.EntryRepository
	verifier SignatureVerifier
	window   time.Duration
	now      func() time.Time
	log      *zap.Logger
}

// NewEntryValidator constructs EntryValidator. window <= 0 selects the default.
func NewEntryValidator(users repository.UserRepository, entries repository.EntryRepository,
	verifier SignatureVerifier, window time.Duration, log *zap.Logger) *EntryValidatorImpl {
	if window <= 0 {
		window = DefaultReplayWindow
	}
	return &EntryValidatorImpl{
		users:    users,
		entries:  entries,
		verifier: verifier,
		window:   window,
		now:      time.Now,
		log:      log,
	}
}

// Validate performs a single scan. The reads before the commit are fast-path
// checks and may be stale; at-most-once redemption rests on the repository
// transaction's re-read of ticket state and event capacity.
func (s *EntryValidatorImpl) Validate(ctx context.Context, in ValidateInput) (*ValidateResult, error) {
	if in.Caller.UID == "" {
		return nil, errs.ErrUnauthenticated
	}
	if !scanRoles[in.Caller.Role] {
		s.log.Warn("scan by unauthorized role",
			zap.String("caller", in.Caller.UID),
			zap.String("role", string(in.Caller.Role)),
		)
		return nil, errs.ErrPermissionDenied
	}
	if in.EventID == "" {
		return nil, fmt.Errorf("%w: event id required", errs.ErrInvalidArgument)
	}

	parsed, err := token.ParseCredential(in.QRText)
	if err != nil {
		s.append(ctx, in, "", nil, model.ValidationRejected, auditBadFormat)
		return s.reject(ReasonBadSignature), nil
	}
	uid := parsed.Payload.UID

	if !s.verifier.Verify(ctx, parsed.PayloadBytes, parsed.Signature, parsed.Payload.KID) {
		s.append(ctx, in, uid, nil, model.ValidationRejected, auditBadSignature)
		return s.reject(ReasonBadSignature), nil
	}

	pass, err := s.users.GetPass(ctx, uid)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return s.fail(ctx, in, uid, nil, err), nil
	}
	if !pass.Usable() {
		s.append(ctx, in, uid, nil, model.ValidationRejected, auditRevoked)
		return s.reject(ReasonRevoked), nil
	}

	// The replay check runs before the ticket lookup: once a scan commits,
	// the ticket stops matching the redeemable filter, so an immediate
	// resubmit of the same credential must be caught here.
	cutoff := s.now().Add(-s.window)
	replayed, err := s.entries.HasAcceptedSince(ctx, uid, in.EventID, cutoff)
	if err != nil {
		return s.fail(ctx, in, uid, nil, err), nil
	}
	if replayed {
		// Silent idempotent reject: no audit row for legitimate client retries.
		return s.reject(ReasonAlreadyScanned), nil
	}

	ticket, err := s.entries.FindRedeemableTicket(ctx, uid, in.EventID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			s.append(ctx, in, uid, nil, model.ValidationRejected, auditNotRegistered)
			return s.reject(ReasonUnregistered), nil
		}
		return s.fail(ctx, in, uid, nil, err), nil
	}

	auditID, err := uuid.NewV4()
	if err != nil {
		return s.fail(ctx, in, uid, &ticket.ID, err), nil
	}
	scannedAt := s.now()
	remaining, err := s.entries.Redeem(ctx, repository.RedeemParams{
		TicketID:    ticket.ID,
		UID:         uid,
		EventID:     in.EventID,
		ScannedBy:   in.Caller.UID,
		ScannerRole: in.Caller.Role,
		ScannedAt:   scannedAt,
		AuditID:     auditID,
	})
	if err != nil {
		var redeemed *errs.AlreadyRedeemedError
		if errors.As(err, &redeemed) {
			s.append(ctx, in, uid, &ticket.ID, model.ValidationRejected, auditAlreadyScanned)
			res := s.reject(ReasonAlreadyScanned)
			res.PriorRedeemedAt = &redeemed.RedeemedAt
			res.PriorScannedBy = redeemed.ScannedBy
			return res, nil
		}
		// Capacity exhaustion and transaction failures both land here:
		// surfaced as UNKNOWN, recorded with the underlying message.
		return s.fail(ctx, in, uid, &ticket.ID, err), nil
	}

	if remaining < 0 {
		remaining = 0
	}
	return &ValidateResult{
		Accepted:  true,
		TicketID:  ticket.ID.String(),
		ScannedAt: scannedAt,
		Remaining: remaining,
	}, nil
}

func (s *EntryValidatorImpl) reject(reason string) *ValidateResult {
	return &ValidateResult{Accepted: false, Reason: reason}
}

// fail records an error-result audit row and maps the failure to UNKNOWN.
func (s *EntryValidatorImpl) fail(ctx context.Context, in ValidateInput, uid string, ticketID *uuid.UUID, cause error) *ValidateResult {
	s.log.Error("validation failed",
		zap.String("uid", uid),
		zap.String("event", in.EventID),
		zap.Error(cause),
	)
	s.append(ctx, in, uid, ticketID, model.ValidationError, cause.Error())
	return s.reject(ReasonUnknown)
}

// append writes a best-effort audit row; a failed write must not change the
// caller-visible outcome of the scan.
func (s *EntryValidatorImpl) append(ctx context.Context, in ValidateInput, uid string, ticketID *uuid.UUID, result model.ValidationResult, reason string) {
	id, err := uuid.NewV4()
	if err != nil {
		s.log.Error("audit id", zap.Error(err))
		return
	}
	rec := &model.ValidationRecord{
		ID:          id,
		UID:         uid,
		EventID:     in.EventID,
		TicketID:    ticketID,
		Result:      result,
		Reason:      reason,
		ScannedBy:   in.Caller.UID,
		ScannerRole: in.Caller.Role,
		CreatedAt:   s.now(),
	}
	if err := s.entries.AppendValidation(ctx, rec); err != nil {
		s.log.Error("append validation", zap.Error(err))
	}
}
