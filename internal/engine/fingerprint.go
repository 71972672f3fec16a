package engine

import (
	"encoding/hex"
	"fmt"
	"hash"

	"github.com/vadiminshakov/monte/internal/domain"
	"golang.org/x/crypto/blake2b"
)

// Fingerprint is a running BLAKE2b-256 digest over settled orders in settlement order.
// Two runs over the same history with the same order sequence produce the same sum.
type Fingerprint struct {
	h hash.Hash
}

// NewFingerprint creates an empty fingerprint.
func NewFingerprint() *Fingerprint {
	h, err := blake2b.New256(nil)
	if err != nil {
		// only fails for keys longer than 64 bytes
		panic(err)
	}
	return &Fingerprint{h: h}
}

// Add folds a processed order into the digest.
func (f *Fingerprint) Add(p domain.ProcessedOrder) {
	reason := ""
	if p.Reason != nil {
		reason = p.Reason.Error()
	}
	fmt.Fprintf(f.h, "%d|%s|%s|%d|%s|%s|%s|%s|%d|%d\n",
		p.Handle, p.Symbol, p.Type.String(), p.Quantity,
		p.SubmittedPrice.String(), p.Status.String(), p.FillPrice.String(), reason,
		p.SubmittedAt.UnixNano(), p.SettledAt.UnixNano())
}

// Sum returns the hex digest of everything added so far.
func (f *Fingerprint) Sum() string {
	return hex.EncodeToString(f.h.Sum(nil))
}
