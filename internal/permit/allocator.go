package permit

import (
	"errors"

	"github.com/holiman/uint256"
)

// ErrNonceSpaceExhausted reports that every bit of the scanned bitmap word is
// consumed. Callers must escalate to a new word index, not retry the same
// word.
var ErrNonceSpaceExhausted = errors.New("no free authorization nonce in bitmap word")

// BitmapWordBits is the number of nonces held by one on-chain bitmap word.
const BitmapWordBits = 256

// NextFreeNonce scans bit positions 0..255 of a per-owner nonce bitmap word
// in ascending order and returns the first clear position.
//
// The bitmap is a snapshot: two allocators reading the same stale word can
// pick the same bit, and the contract rejects the loser at execution time.
// The selection is advisory; the on-chain bitmap is authoritative.
func NextFreeNonce(bitmap *uint256.Int) (uint64, error) {
	one := uint256.NewInt(1)
	for i := uint(0); i < BitmapWordBits; i++ {
		mask := new(uint256.Int).Lsh(one, i)
		if new(uint256.Int).And(bitmap, mask).IsZero() {
			return uint64(i), nil
		}
	}
	return 0, ErrNonceSpaceExhausted
}
