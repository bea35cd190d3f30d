// Package signing verifies order and just-in-time authorizations.
// Keys are base58-encoded ed25519 public keys; signatures cover the
// canonical order digest from internal/idhash.
package signing

import (
	"bytes"
	"crypto/ed25519"
	"errors"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"auction-engine/internal/domain"
	"auction-engine/internal/idhash"
)

var (
	// ErrBadPublicKey means the key did not decode to a canonical curve
	// point.
	ErrBadPublicKey = errors.New("malformed public key")
	// ErrBadSignature means the proof did not verify against the digest.
	ErrBadSignature = errors.New("signature verification failed")
	// ErrUnsupportedScheme means the authorization names a scheme the
	// engine does not know.
	ErrUnsupportedScheme = errors.New("unsupported signing scheme")
	// ErrOwnerMismatch means the proof verifies but against a key other
	// than the order owner.
	ErrOwnerMismatch = errors.New("authorization signer is not the order owner")
)

// DecodePublicKey decodes a base58 address into an ed25519 public key,
// rejecting values that are not canonical curve points.
func DecodePublicKey(addr domain.Address) (ed25519.PublicKey, error) {
	raw, err := base58.Decode(string(addr))
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return nil, ErrBadPublicKey
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return nil, ErrBadPublicKey
	}
	return ed25519.PublicKey(raw), nil
}

// Sign signs digest with the given private key. Used by tests and the
// stub solver to mint authorizations.
func Sign(priv ed25519.PrivateKey, digest [32]byte) []byte {
	return ed25519.Sign(priv, digest[:])
}

// VerifyOrder checks a pool order's authorization against its digest.
func VerifyOrder(o *domain.Order) error {
	return verify(o.Authorization, o.Owner, idhash.OrderDigest(o))
}

// VerifyJITOrder checks a just-in-time order's self-contained proof.
// The order is trusted only because it proves itself: an ed25519
// signature by the embedded owner, or a commitment whose payload equals
// the order digest (the matching commit pre-interaction is checked by
// the validator, not here).
func VerifyJITOrder(j *domain.JITOrder) error {
	return verify(j.Authorization, j.Owner, idhash.JITOrderDigest(j))
}

func verify(auth domain.Authorization, owner domain.Address, digest [32]byte) error {
	switch auth.Scheme {
	case domain.SchemeEd25519:
		if auth.PublicKey != owner {
			return ErrOwnerMismatch
		}
		pub, err := DecodePublicKey(auth.PublicKey)
		if err != nil {
			return err
		}
		if !ed25519.Verify(pub, digest[:], auth.Payload) {
			return ErrBadSignature
		}
		return nil
	case domain.SchemeCommitment:
		if auth.PublicKey != owner {
			return ErrOwnerMismatch
		}
		if !bytes.Equal(auth.Payload, digest[:]) {
			return ErrBadSignature
		}
		return nil
	default:
		return ErrUnsupportedScheme
	}
}
