// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
	"time"
)

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNoActiveKey indicates the keys collection has no key flagged active.
	// Signing cannot proceed; verification of existing passes is unaffected.
	ErrNoActiveKey = errors.New("no active signing key")

	// ErrUnauthenticated indicates the caller presented no valid identity.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrPermissionDenied indicates the caller's role does not allow the operation.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidArgument indicates a missing or malformed required field.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrSoldOut indicates the event has no remaining ticket capacity.
	ErrSoldOut = errors.New("sold out")
)

// AlreadyRedeemedError aborts a redemption whose ticket was redeemed by a
// concurrent scan. It carries the prior redemption so the rejection can
// surface who scanned first and when.
type AlreadyRedeemedError struct {
	RedeemedAt time.Time
	ScannedBy  string
}

func (e *AlreadyRedeemedError) Error() string {
	return fmt.Sprintf("already redeemed at %s by %s", e.RedeemedAt.Format(time.RFC3339), e.ScannedBy)
}
