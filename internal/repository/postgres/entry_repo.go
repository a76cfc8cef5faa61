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

// EntryRepo implements EntryRepository using PostgreSQL.
type EntryRepo struct{ db *DB }

// NewEntryRepo constructs an entry validation repository.
func NewEntryRepo(db *DB) *EntryRepo { return &EntryRepo{db: db} }

// FindRedeemableTicket returns the oldest ticket for (owner, event) still in
// a redeemable state. Advisory only; Redeem re-checks under lock.
func (r *EntryRepo) FindRedeemableTicket(ctx context.Context, ownerID, eventID string) (*model.Ticket, error) {
	const q = `
SELECT id, owner_id, event_id, state
FROM tickets
WHERE owner_id=$1 AND event_id=$2 AND state IN ('ISSUED','TRANSFERRED')
ORDER BY id
LIMIT 1`
	row := r.db.Pool.QueryRow(ctx, q, ownerID, eventID)
	var t model.Ticket
	if err := row.Scan(&t.ID, &t.OwnerID, &t.EventID, &t.State); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// HasAcceptedSince reports an accepted validation for (uid, event) after cutoff.
func (r *EntryRepo) HasAcceptedSince(ctx context.Context, uid, eventID string, cutoff time.Time) (bool, error) {
	const q = `
SELECT EXISTS(
  SELECT 1 FROM validations
  WHERE uid=$1 AND event_id=$2 AND result='accepted' AND created_at > $3)`
	var ok bool
	if err := r.db.Pool.QueryRow(ctx, q, uid, eventID, cutoff).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// AppendValidation inserts one audit row.
func (r *EntryRepo) AppendValidation(ctx context.Context, rec *model.ValidationRecord) error {
	const q = `
INSERT INTO validations (id, uid, event_id, ticket_id, result, reason, scanned_by, scanner_role, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.Pool.Exec(ctx, q, rec.ID, rec.UID, rec.EventID, rec.TicketID,
		string(rec.Result), rec.Reason, rec.ScannedBy, string(rec.ScannerRole), rec.CreatedAt)
	return err
}

// Redeem commits a redemption atomically: the ticket row is re-read under
// lock, the event counters move via a guarded single UPDATE (no
// read-modify-write), and the accepted audit row is keyed by a
// caller-supplied id so a retried commit stays idempotent.
func (r *EntryRepo) Redeem(ctx context.Context, p repository.RedeemParams) (remaining int, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
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

	const selTicket = `SELECT state, redeemed_at, scanned_by FROM tickets WHERE id=$1 FOR UPDATE`
	var (
		state      string
		redeemedAt *time.Time
		scannedBy  *string
	)
	if err = tx.QueryRow(ctx, selTicket, p.TicketID).Scan(&state, &redeemedAt, &scannedBy); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, errs.ErrNotFound
		}
		return 0, err
	}
	switch model.TicketState(state) {
	case model.TicketIssued, model.TicketTransferred:
		// redeemable
	case model.TicketRedeemed:
		e := &errs.AlreadyRedeemedError{}
		if redeemedAt != nil {
			e.RedeemedAt = *redeemedAt
		}
		if scannedBy != nil {
			e.ScannedBy = *scannedBy
		}
		return 0, e
	default:
		return 0, errs.ErrNotFound
	}

	const decEvent = `
UPDATE events
SET tickets_remaining = tickets_remaining - 1, tickets_redeemed = tickets_redeemed + 1
WHERE id=$1 AND tickets_remaining > 0
RETURNING tickets_remaining`
	if err = tx.QueryRow(ctx, decEvent, p.EventID).Scan(&remaining); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, errs.ErrSoldOut
		}
		return 0, err
	}

	const updTicket = `
UPDATE tickets SET state='REDEEMED', redeemed_at=$2, scanned_by=$3, scanner_role=$4 WHERE id=$1`
	if _, err = tx.Exec(ctx, updTicket, p.TicketID, p.ScannedAt, p.ScannedBy, string(p.ScannerRole)); err != nil {
		return 0, err
	}

	const updPass = `UPDATE users SET pass_last_scanned_at=$2 WHERE id=$1`
	if _, err = tx.Exec(ctx, updPass, p.UID, p.ScannedAt.Unix()); err != nil {
		return 0, err
	}

	const insAudit = `
INSERT INTO validations (id, uid, event_id, ticket_id, result, reason, scanned_by, scanner_role, created_at)
VALUES ($1, $2, $3, $4, 'accepted', '', $5, $6, $7)
ON CONFLICT (id) DO NOTHING`
	if _, err = tx.Exec(ctx, insAudit, p.AuditID, p.UID, p.EventID, p.TicketID,
		p.ScannedBy, string(p.ScannerRole), p.ScannedAt); err != nil {
		return 0, err
	}
	return remaining, nil
}
