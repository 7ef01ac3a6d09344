// Package cert locates EC public keys inside the X.509-like blobs a PIV
// token returns, and builds the minimal certificate objects required to
// store a freshly generated key back onto it.
//
// EXTRACTION STRATEGY:
// Tokens and provisioning tools differ in how strictly they encode the
// certificate object, so extraction runs in two passes:
//
//  1. Structured: find the id-ecPublicKey algorithm OID, then the BIT
//     STRING that carries the subjectPublicKey right after it. A P-256
//     uncompressed point is always 65 bytes, so the BIT STRING content
//     is exactly 66 bytes (one unused-bits byte plus the point).
//  2. Pattern: if the OID is absent or mangled, fall back to scanning
//     the whole blob for the literal BIT STRING header followed by the
//     0x04 point tag.
//
// A pattern hit can in principle match coincidental bytes in corrupt
// data, so the result carries a Confidence level and callers decide how
// much to trust it.
package cert

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrNoPublicKey is returned when neither extraction strategy finds a
// valid uncompressed P-256 point.
var ErrNoPublicKey = errors.New("cert: no EC public key found")

// id-ecPublicKey (1.2.840.10045.2.1) as it appears on the wire.
var oidECPublicKey = []byte{0x06, 0x07, 0x2A, 0x86, 0x48, 0xCE, 0x3D, 0x02, 0x01}

// BIT STRING of 66 content bytes: unused-bits 0x00 plus a 65-byte
// uncompressed point starting with 0x04. The long-length variant is
// emitted by encoders that always use a length prefix byte.
var (
	bitStringShort = []byte{0x03, 0x42, 0x00, 0x04}
	bitStringLong  = []byte{0x03, 0x81, 0x42, 0x00, 0x04}
)

// PublicKey is an uncompressed P-256 point, big-endian coordinates.
type PublicKey struct {
	X [32]byte
	Y [32]byte
}

// Point returns the 65-byte uncompressed encoding (0x04 || X || Y).
func (p *PublicKey) Point() []byte {
	out := make([]byte, 0, 65)
	out = append(out, 0x04)
	out = append(out, p.X[:]...)
	return append(out, p.Y[:]...)
}

// Confidence states which strategy produced an extracted key.
type Confidence int

const (
	// ByStructure means the key was found behind the EC algorithm OID.
	ByStructure Confidence = iota
	// ByPattern means only the tolerant byte-pattern scan matched.
	ByPattern
)

func (c Confidence) String() string {
	if c == ByStructure {
		return "structured"
	}
	return "pattern"
}

// FindPublicKey extracts the EC public key from a certificate or raw
// TLV blob returned by the card.
func FindPublicKey(blob []byte) (*PublicKey, Confidence, error) {
	if idx := bytes.Index(blob, oidECPublicKey); idx >= 0 {
		if pub := scanBitString(blob[idx+len(oidECPublicKey):]); pub != nil {
			return pub, ByStructure, nil
		}
	}

	if pub := scanBitString(blob); pub != nil {
		return pub, ByPattern, nil
	}

	return nil, 0, fmt.Errorf("%w in %d-byte blob", ErrNoPublicKey, len(blob))
}

// scanBitString finds the first subjectPublicKey BIT STRING in b and
// returns the point it carries, or nil.
func scanBitString(b []byte) *PublicKey {
	for i := 0; i < len(b); i++ {
		if b[i] != 0x03 {
			continue
		}

		var start int
		switch {
		case bytes.HasPrefix(b[i:], bitStringShort):
			start = i + len(bitStringShort)
		case bytes.HasPrefix(b[i:], bitStringLong):
			start = i + len(bitStringLong)
		default:
			continue
		}

		if start+64 > len(b) {
			continue
		}

		pub := &PublicKey{}
		copy(pub.X[:], b[start:start+32])
		copy(pub.Y[:], b[start+32:start+64])
		return pub
	}
	return nil
}
