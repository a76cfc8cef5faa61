// Package token implements the signed pass credential: canonical payload
// encoding, Ed25519 detached signatures, and the QR wire format.
package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/onepass-app/onepass-server/internal/model"
)

// Prefix is the fixed literal every credential starts with.
const Prefix = "onepass:user:v1."

// ErrMalformed indicates the credential string does not match the wire format.
var ErrMalformed = errors.New("malformed credential")

// Payload is the canonical signing payload. Field order is part of the wire
// contract: the signature covers the JSON of exactly these four fields in
// this order, and encoding/json preserves struct declaration order.
type Payload struct {
	UID string `json:"uid"`
	KID string `json:"kid"`
	IAT int64  `json:"iat"`
	Ver int    `json:"ver"`
}

// EncodePayload serializes the payload in canonical field order. Signing and
// verification must both go through this function; re-serialization from any
// other representation is not guaranteed byte-identical.
func EncodePayload(p Payload) ([]byte, error) {
	return json.Marshal(p)
}

// EncodeSegment encodes bytes as unpadded URL-safe base64.
func EncodeSegment(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeSegment decodes URL-safe base64, tolerating padded input.
func DecodeSegment(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

// Sign produces a detached base64url signature over payload bytes.
func Sign(payload []byte, priv ed25519.PrivateKey) string {
	return EncodeSegment(ed25519.Sign(priv, payload))
}

// BuildCredential assembles the QR string from encoded payload and signature.
func BuildCredential(payload []byte, sigB64 string) string {
	return Prefix + EncodeSegment(payload) + "." + sigB64
}

// Parsed holds the decoded parts of a credential.
type Parsed struct {
	PayloadBytes []byte // exact bytes the signature covers
	Payload      Payload
	Signature    string // base64url, still encoded
}

// ParseCredential splits and decodes a scanned credential. Any structural
// deviation (prefix, segment count, base64, JSON, missing uid/kid) returns
// ErrMalformed.
func ParseCredential(raw string) (*Parsed, error) {
	if !strings.HasPrefix(raw, Prefix) {
		return nil, fmt.Errorf("%w: bad prefix", ErrMalformed)
	}
	parts := strings.Split(raw[len(Prefix):], ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("%w: want 2 segments", ErrMalformed)
	}
	payloadBytes, err := DecodeSegment(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: payload base64: %v", ErrMalformed, err)
	}
	var p Payload
	if err := json.Unmarshal(payloadBytes, &p); err != nil {
		return nil, fmt.Errorf("%w: payload json: %v", ErrMalformed, err)
	}
	if p.UID == "" || p.KID == "" {
		return nil, fmt.Errorf("%w: missing uid/kid", ErrMalformed)
	}
	return &Parsed{PayloadBytes: payloadBytes, Payload: p, Signature: parts[1]}, nil
}

// NewSigningKey generates a fresh Ed25519 key pair for the keys table.
func NewSigningKey(keyID string) (*model.SigningKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &model.SigningKey{
		KeyID:      keyID,
		PublicKey:  pub,
		PrivateKey: priv,
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}, nil
}
