// Package idhash computes the deterministic identifiers and digests used
// across the engine: order uids and the signable order digest.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"auction-engine/internal/domain"
)

// OrderDigest computes the canonical sha256 digest an order owner signs.
// Formula: SHA256(owner|sell_token|buy_token|sell_amount|buy_amount|kind|
// partial|valid_to|sell_balance|buy_balance).
// Amounts are rendered in canonical decimal form so the digest is stable
// across representations of the same value.
func OrderDigest(o *domain.Order) [32]byte {
	return digest(
		string(o.Owner),
		string(o.SellToken), string(o.BuyToken),
		o.SellAmount.String(), o.BuyAmount.String(),
		string(o.Kind), o.PartiallyFillable, o.ValidTo,
		string(o.SellBalance), string(o.BuyBalance),
	)
}

// JITOrderDigest computes the signable digest of a just-in-time order.
// The formula matches OrderDigest so a JIT order commits to the same
// fields a pool order would.
func JITOrderDigest(j *domain.JITOrder) [32]byte {
	return digest(
		string(j.Owner),
		string(j.SellToken), string(j.BuyToken),
		j.SellAmount.String(), j.BuyAmount.String(),
		string(j.Kind), j.PartiallyFillable, j.ValidTo,
		string(j.SellBalance), string(j.BuyBalance),
	)
}

// ComputeOrderUID derives the hex order uid from the order digest.
// Returns 64 hex characters.
func ComputeOrderUID(o *domain.Order) domain.OrderUID {
	d := OrderDigest(o)
	return domain.OrderUID(hex.EncodeToString(d[:]))
}

func digest(parts ...interface{}) [32]byte {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{'|'})
		}
		fmt.Fprintf(h, "%v", p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
