// Package ecsig converts card-produced ECDSA signatures from their DER
// wire form into the fixed-width (r, s) representation consumed
// downstream, and derives the account address bound to a public key.
//
// CANONICAL FORM:
// For every valid ECDSA signature (r, s), the pair (r, n-s) verifies as
// well, where n is the curve order. Verifiers that enforce a unique
// encoding accept only the smaller of the two s values ("low-S"). The
// card returns whichever s its RNG produced, so ParseDER always
// normalizes: if s > n/2 the signature becomes (r, n-s).
package ecsig

import (
	"crypto/elliptic"
	"fmt"
	"math/big"

	"golang.org/x/crypto/sha3"

	"github.com/pivkey/pivsign/pkg/der"
)

var (
	p256Order     = elliptic.P256().Params().N
	p256HalfOrder = new(big.Int).Rsh(p256Order, 1)
)

// Signature is a P-256 ECDSA signature with both scalars left-padded to
// the full 32-byte field width. S is always in low-S form.
type Signature struct {
	R [32]byte
	S [32]byte
}

// Bytes returns the 64-byte r||s concatenation.
func (s *Signature) Bytes() []byte {
	out := make([]byte, 64)
	copy(out[:32], s.R[:])
	copy(out[32:], s.S[:])
	return out
}

// ParseDER decodes a DER SEQUENCE of two INTEGERs into a normalized
// Signature. DER integers are signed, so a 32-byte scalar with its top
// bit set arrives as 33 bytes with a leading zero; that padding is
// stripped before the scalar is re-padded to fixed width.
//
// Normalization is idempotent: parsing an already low-S signature
// returns it unchanged.
func ParseDER(raw []byte) (*Signature, error) {
	seq, _, err := der.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("signature envelope: %w", err)
	}
	if seq.Tag != 0x30 {
		return nil, fmt.Errorf("%w: signature is not a SEQUENCE (tag %02X)", der.ErrSyntax, seq.Tag)
	}

	rInt, rest, err := parseIntegerScalar(seq.Value)
	if err != nil {
		return nil, fmt.Errorf("signature r: %w", err)
	}
	sInt, rest, err := parseIntegerScalar(rest)
	if err != nil {
		return nil, fmt.Errorf("signature s: %w", err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after signature", der.ErrSyntax, len(rest))
	}

	if sInt.Cmp(p256HalfOrder) > 0 {
		sInt = new(big.Int).Sub(p256Order, sInt)
	}

	var sig Signature
	rInt.FillBytes(sig.R[:])
	sInt.FillBytes(sig.S[:])
	return &sig, nil
}

// parseIntegerScalar reads one INTEGER and rejects anything that cannot
// be a P-256 scalar.
func parseIntegerScalar(b []byte) (*big.Int, []byte, error) {
	el, rest, err := der.Parse(b)
	if err != nil {
		return nil, nil, err
	}
	if el.Tag != 0x02 {
		return nil, nil, fmt.Errorf("%w: expected INTEGER, got tag %02X", der.ErrSyntax, el.Tag)
	}
	if len(el.Value) == 0 {
		return nil, nil, fmt.Errorf("%w: empty INTEGER", der.ErrSyntax)
	}

	v := el.Value
	// A single leading zero is the DER sign pad for high-bit scalars.
	if v[0] == 0x00 && len(v) > 1 {
		v = v[1:]
	}
	if len(v) > 32 {
		return nil, nil, fmt.Errorf("%w: scalar of %d bytes exceeds field width", der.ErrSyntax, len(v))
	}

	return new(big.Int).SetBytes(v), rest, nil
}

// DeriveAddress computes the 20-byte account identity for an
// uncompressed public key: the last 20 bytes of Keccak-256(x || y).
// Downstream contract systems reproduce this bit for bit, so the hash
// input is the raw coordinates without the 0x04 point tag.
func DeriveAddress(x, y [32]byte) [20]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(x[:])
	h.Write(y[:])
	sum := h.Sum(nil)

	var addr [20]byte
	copy(addr[:], sum[len(sum)-20:])
	return addr
}
