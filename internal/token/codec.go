package token

import (
	"context"
	"crypto/ed25519"

	"github.com/onepass-app/onepass-server/internal/model"
)

// KeyResolver looks up signing keys by id. Resolution must succeed for keys
// that are no longer active; only revocation removes a key from verification.
type KeyResolver interface {
	GetByID(ctx context.Context, keyID string) (*model.SigningKey, error)
}

// Codec verifies detached signatures against keys resolved by id.
type Codec struct {
	keys KeyResolver
}

// NewCodec constructs a Codec over a key resolver.
func NewCodec(keys KeyResolver) *Codec {
	return &Codec{keys: keys}
}

// Verify reports whether sigB64 is a valid signature over payload under the
// key identified by keyID. It returns false, never an error, when the key is
// unknown or revoked, the signature fails to decode, or the byte-level check
// fails. The key's active flag is deliberately not consulted: rotation must
// not invalidate previously issued passes.
func (c *Codec) Verify(ctx context.Context, payload []byte, sigB64, keyID string) bool {
	key, err := c.keys.GetByID(ctx, keyID)
	if err != nil || key.Revoked() {
		return false
	}
	if len(key.PublicKey) != ed25519.PublicKeySize {
		return false
	}
	sig, err := DecodeSegment(sigB64)
	if err != nil {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(key.PublicKey), payload, sig)
}
