package service

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/onepass-app/onepass-server/internal/errs"
	"github.com/onepass-app/onepass-server/internal/model"
	"github.com/onepass-app/onepass-server/internal/repository"
)

type fakeUsers struct {
	users  map[string]bool        // uid -> exists
	passes map[string]*model.Pass // uid -> pass (absent key = no pass)

	ensureErr error
	getErr    error
	saveErr   error
	revokeErr error

	ensureCalls int
	saveCalls   int
	revokeCalls int
}

var _ repository.UserRepository = (*fakeUsers)(nil)

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[string]bool{}, passes: map[string]*model.Pass{}}
}

func (f *fakeUsers) EnsureUser(_ context.Context, uid string) error {
	f.ensureCalls++
	if f.ensureErr != nil {
		return f.ensureErr
	}
	f.users[uid] = true
	return nil
}

func (f *fakeUsers) GetPass(_ context.Context, uid string) (*model.Pass, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if !f.users[uid] {
		return nil, errs.ErrNotFound
	}
	p, ok := f.passes[uid]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (f *fakeUsers) SavePass(_ context.Context, uid string, pass *model.Pass) error {
	f.saveCalls++
	if f.saveErr != nil {
		return f.saveErr
	}
	if !f.users[uid] {
		return errs.ErrNotFound
	}
	c := *pass
	f.passes[uid] = &c
	return nil
}

func (f *fakeUsers) RevokePass(_ context.Context, p repository.RevokePassParams) error {
	f.revokeCalls++
	if f.revokeErr != nil {
		return f.revokeErr
	}
	pass, ok := f.passes[p.UID]
	if !ok {
		return errs.ErrNotFound
	}
	pass.Active = false
	at := p.RevokedAt
	pass.RevokedAt = &at
	pass.RevokedBy = p.RevokedBy
	pass.RevocationReason = p.Reason
	return nil
}

type fakeKeys struct {
	active *model.SigningKey
	byID   map[string]*model.SigningKey
}

var _ repository.KeyRepository = (*fakeKeys)(nil)

func (f *fakeKeys) GetActive(context.Context) (*model.SigningKey, error) {
	if f.active == nil {
		return nil, errs.ErrNoActiveKey
	}
	c := *f.active
	return &c, nil
}

func (f *fakeKeys) GetByID(_ context.Context, keyID string) (*model.SigningKey, error) {
	k, ok := f.byID[keyID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *k
	return &c, nil
}

func (f *fakeKeys) Create(_ context.Context, key *model.SigningKey) error {
	if f.byID == nil {
		f.byID = map[string]*model.SigningKey{}
	}
	f.byID[key.KeyID] = key
	if key.Active {
		f.active = key
	}
	return nil
}

// acceptedRow mirrors what the postgres repo persists on commit and what
// HasAcceptedSince queries.
type acceptedRow struct {
	uid     string
	eventID string
	at      time.Time
}

// fakeEntries is stateful the way the postgres repo is: a committed Redeem
// flips the ticket out of the redeemable set and records the accepted row.
type fakeEntries struct {
	ticket    *model.Ticket
	ticketErr error

	accepted     bool // forces HasAcceptedSince regardless of recorded rows
	acceptedErr  error
	acceptedRows []acceptedRow

	remaining int
	redeemErr error

	appended  []*model.ValidationRecord
	appendErr error

	redeemCalls int
	lastRedeem  repository.RedeemParams
}

var _ repository.EntryRepository = (*fakeEntries)(nil)

func (f *fakeEntries) FindRedeemableTicket(context.Context, string, string) (*model.Ticket, error) {
	if f.ticketErr != nil {
		return nil, f.ticketErr
	}
	if f.ticket == nil ||
		(f.ticket.State != model.TicketIssued && f.ticket.State != model.TicketTransferred) {
		return nil, errs.ErrNotFound
	}
	c := *f.ticket
	return &c, nil
}

func (f *fakeEntries) HasAcceptedSince(_ context.Context, uid, eventID string, cutoff time.Time) (bool, error) {
	if f.acceptedErr != nil {
		return false, f.acceptedErr
	}
	if f.accepted {
		return true, nil
	}
	for _, r := range f.acceptedRows {
		if r.uid == uid && r.eventID == eventID && r.at.After(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeEntries) AppendValidation(_ context.Context, rec *model.ValidationRecord) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, rec)
	return nil
}

func (f *fakeEntries) Redeem(_ context.Context, p repository.RedeemParams) (int, error) {
	f.redeemCalls++
	f.lastRedeem = p
	if f.redeemErr != nil {
		return 0, f.redeemErr
	}
	if f.ticket != nil && f.ticket.ID == p.TicketID {
		at := p.ScannedAt
		f.ticket.State = model.TicketRedeemed
		f.ticket.RedeemedAt = &at
		f.ticket.ScannedBy = p.ScannedBy
	}
	f.acceptedRows = append(f.acceptedRows, acceptedRow{uid: p.UID, eventID: p.EventID, at: p.ScannedAt})
	return f.remaining, nil
}

func issuedTicket(owner, event string) *model.Ticket {
	return &model.Ticket{
		ID:      uuid.Must(uuid.NewV4()),
		OwnerID: owner,
		EventID: event,
		State:   model.TicketIssued,
	}
}
