// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Role is the closed set of caller roles recognized by the platform.
type Role string

const (
	RoleUser      Role = "USER"
	RoleStaff     Role = "STAFF"
	RoleSecurity  Role = "SECURITY"
	RoleOrganizer Role = "ORGANIZER"
	RoleAdmin     Role = "ADMIN"
	RoleService   Role = "SERVICE" // internal trigger delivery, not a human caller
)

// ParseRole maps a claim string onto the closed role set.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleStaff, RoleSecurity, RoleOrganizer, RoleAdmin, RoleService:
		return Role(s), true
	}
	return "", false
}

// SigningKey is an asymmetric key pair used to sign passes. Exactly one key
// is active at a time; older keys stay in the table so previously issued
// passes keep verifying until the key itself is revoked.
type SigningKey struct {
	KeyID      string
	PublicKey  []byte // Ed25519 public key (32 bytes)
	PrivateKey []byte // Ed25519 private key (64 bytes), never leaves the server
	Active     bool
	RevokedAt  *time.Time
	CreatedAt  time.Time
}

// Revoked reports whether the key has been explicitly revoked.
// Inactive-but-unrevoked keys still verify.
func (k *SigningKey) Revoked() bool { return k.RevokedAt != nil }

// Pass is the signed credential embedded in a user's record. The signature
// is detached, over the canonical payload {uid, kid, iat, ver}.
type Pass struct {
	OwnerUserID      string
	KeyID            string
	IssuedAt         int64 // epoch seconds
	Version          int
	Active           bool
	Signature        string // base64url, no padding
	LastScannedAt    *int64 // epoch seconds
	RevokedAt        *time.Time
	RevokedBy        string
	RevocationReason string
}

// Usable reports whether the pass can admit its holder: it must be active,
// signed, and not revoked.
func (p *Pass) Usable() bool {
	return p != nil && p.Active && p.Signature != "" && p.RevokedAt == nil
}

// TicketState enumerates the ticket lifecycle.
type TicketState string

const (
	TicketIssued      TicketState = "ISSUED"
	TicketTransferred TicketState = "TRANSFERRED"
	TicketRedeemed    TicketState = "REDEEMED"
	TicketCancelled   TicketState = "CANCELLED"
)

// Ticket is a single admission right. It transitions ISSUED/TRANSFERRED ->
// REDEEMED exactly once; entry validation performs that transition.
type Ticket struct {
	ID          uuid.UUID
	OwnerID     string
	EventID     string
	State       TicketState
	RedeemedAt  *time.Time
	ScannedBy   string
	ScannerRole Role
}

// Event carries the capacity counters mutated alongside redemption.
// TicketsRemaining never goes negative; a redemption that would do so aborts.
type Event struct {
	ID               string
	Name             string
	TicketsRemaining int
	TicketsRedeemed  int
}

// ValidationResult enumerates audit outcomes.
type ValidationResult string

const (
	ValidationAccepted ValidationResult = "accepted"
	ValidationRejected ValidationResult = "rejected"
	ValidationError    ValidationResult = "error"
	ValidationRevoked  ValidationResult = "pass_revoked"
)

// ValidationRecord is an append-only audit row. Accepted rows double as the
// anti-replay lookup window.
type ValidationRecord struct {
	ID          uuid.UUID
	UID         string
	EventID     string
	TicketID    *uuid.UUID
	Result      ValidationResult
	Reason      string
	ScannedBy   string
	ScannerRole Role
	CreatedAt   time.Time
}

// Caller is the authenticated identity attached to a request.
type Caller struct {
	UID  string
	Role Role
}
