// Package der implements the minimal ASN.1 tag-length-value primitives
// used to build and walk DER structures byte by byte.
//
// The PIV applet and the X.509 objects stored on it exchange everything
// as TLV: certificates, key-generation responses, and ECDSA signatures.
// The standard library's encoding/asn1 is too strict for some of the
// blobs real tokens emit (and cannot emit the fixed-field structures we
// write back), so this package provides the raw building blocks instead:
//
//   - Parse: split one element (tag, length, value) off a buffer, with
//     full bounds checking so malformed input returns an error rather
//     than reading past the end.
//   - Marshal: encode tag + definite shortest-form length + value.
//
// Tags are carried as their raw big-endian byte representation packed
// into a uint32, so multi-byte tags read naturally in hex: the PIV
// public-key template is Tag 0x7F49, its point element is Tag 0x86.
package der

import (
	"errors"
	"fmt"
)

// ErrSyntax is wrapped by every parse failure in this package.
var ErrSyntax = errors.New("der: bad encoding")

// Element is one decoded TLV element. Value aliases the input buffer.
type Element struct {
	Tag         uint32
	Constructed bool
	Value       []byte
}

// Parse splits the first TLV element off b and returns it together with
// the unconsumed remainder.
func Parse(b []byte) (Element, []byte, error) {
	tag, constructed, rest, err := parseTag(b)
	if err != nil {
		return Element{}, nil, err
	}

	length, rest, err := parseLength(rest)
	if err != nil {
		return Element{}, nil, err
	}

	if length > len(rest) {
		return Element{}, nil, fmt.Errorf("%w: value of %d bytes exceeds remaining %d", ErrSyntax, length, len(rest))
	}

	el := Element{
		Tag:         tag,
		Constructed: constructed,
		Value:       rest[:length],
	}
	return el, rest[length:], nil
}

// parseTag reads a one-byte or high-tag-number-form tag and packs its
// raw bytes big-endian into a uint32.
func parseTag(b []byte) (tag uint32, constructed bool, rest []byte, err error) {
	if len(b) == 0 {
		return 0, false, nil, fmt.Errorf("%w: missing tag", ErrSyntax)
	}

	first := b[0]
	constructed = first&0x20 != 0
	tag = uint32(first)
	rest = b[1:]

	// Low tag numbers fit in the first byte. 0x1F in the low five bits
	// announces subsequent tag bytes, each with bit 8 as continuation.
	if first&0x1F != 0x1F {
		return tag, constructed, rest, nil
	}

	for i := 0; ; i++ {
		if len(rest) == 0 {
			return 0, false, nil, fmt.Errorf("%w: truncated multi-byte tag", ErrSyntax)
		}
		if i >= 3 {
			return 0, false, nil, fmt.Errorf("%w: tag longer than 4 bytes", ErrSyntax)
		}
		next := rest[0]
		tag = tag<<8 | uint32(next)
		rest = rest[1:]
		if next&0x80 == 0 {
			return tag, constructed, rest, nil
		}
	}
}

// parseLength reads a short-form or definite long-form length.
// Indefinite lengths (0x80) are rejected: DER forbids them.
func parseLength(b []byte) (int, []byte, error) {
	if len(b) == 0 {
		return 0, nil, fmt.Errorf("%w: missing length", ErrSyntax)
	}

	first := b[0]
	rest := b[1:]

	if first < 0x80 {
		return int(first), rest, nil
	}
	if first == 0x80 {
		return 0, nil, fmt.Errorf("%w: indefinite length", ErrSyntax)
	}

	n := int(first & 0x7F)
	if n > 3 {
		return 0, nil, fmt.Errorf("%w: length field of %d bytes", ErrSyntax, n)
	}
	if len(rest) < n {
		return 0, nil, fmt.Errorf("%w: truncated length field", ErrSyntax)
	}

	length := 0
	for _, c := range rest[:n] {
		length = length<<8 | int(c)
	}
	return length, rest[n:], nil
}

// Marshal encodes one TLV element with shortest-form definite length.
// Multi-byte tags are passed through as their packed representation.
func Marshal(tag uint32, value []byte) []byte {
	out := appendTag(nil, tag)
	out = appendLength(out, len(value))
	return append(out, value...)
}

func appendTag(dst []byte, tag uint32) []byte {
	switch {
	case tag > 0xFFFFFF:
		dst = append(dst, byte(tag>>24))
		fallthrough
	case tag > 0xFFFF:
		dst = append(dst, byte(tag>>16))
		fallthrough
	case tag > 0xFF:
		dst = append(dst, byte(tag>>8))
		fallthrough
	default:
		dst = append(dst, byte(tag))
	}
	return dst
}

func appendLength(dst []byte, n int) []byte {
	switch {
	case n < 0x80:
		return append(dst, byte(n))
	case n < 0x100:
		return append(dst, 0x81, byte(n))
	default:
		return append(dst, 0x82, byte(n>>8), byte(n))
	}
}
