package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/onepass-app/onepass-server/internal/model"
)

// RedeemParams carries one redemption commit: the ticket transition, the
// pass bookkeeping, the event counter moves, and the accepted audit row.
type RedeemParams struct {
	TicketID    uuid.UUID
	UID         string
	EventID     string
	ScannedBy   string
	ScannerRole model.Role
	ScannedAt   time.Time
	AuditID     uuid.UUID // deterministic id keeps a retried commit idempotent
}

// EntryRepository serves entry validation: ticket eligibility, the replay
// window, audit rows, and the atomic redemption transaction.
type EntryRepository interface {
	// FindRedeemableTicket returns a ticket owned by uid for the event whose
	// state still permits redemption (ISSUED or TRANSFERRED), or
	// errs.ErrNotFound. This read is advisory; the transaction re-checks.
	FindRedeemableTicket(ctx context.Context, ownerID, eventID string) (*model.Ticket, error)

	// HasAcceptedSince reports whether an accepted validation exists for
	// (uid, eventID) after the cutoff. Backs the anti-replay window.
	HasAcceptedSince(ctx context.Context, uid, eventID string, cutoff time.Time) (bool, error)

	// AppendValidation inserts one audit row. Rows are write-once.
	AppendValidation(ctx context.Context, rec *model.ValidationRecord) error

	// Redeem atomically marks the ticket REDEEMED, bumps the event counters,
	// sets the pass last-scanned time, and inserts the accepted audit row.
	// It returns the event's remaining count after the decrement. Failure
	// modes: *errs.AlreadyRedeemedError when a concurrent scan won the race,
	// errs.ErrSoldOut when the event has no remaining capacity,
	// errs.ErrNotFound when the ticket row is gone.
	Redeem(ctx context.Context, p RedeemParams) (remaining int, err error)
}
