package iso7816

import (
	"bytes"
	"fmt"
)

// APDU encoding according to ISO/IEC 7816-3 and 7816-4.
//
// COMMAND APDU (C-APDU):
// A command consists of a mandatory 4-byte header (CLA, INS, P1, P2)
// and an optional body (Lc + Data, Le).
//
// ENCODING CASES:
// - Case 1: No Data, No Response (Header only).
// - Case 2: No Data, Response Expected (Header + Le).
// - Case 3: Data Present, No Response (Header + Lc + Data).
// - Case 4: Data Present, Response Expected (Header + Lc + Data + Le).
//
// LENGTH MODES:
// Lc/Le fit in one byte (Short Length, max 255/256) unless the data or
// expectation exceed that, in which case Extended Length encodes them
// on multiple bytes. PIV commands all fit the short form; the extended
// form is kept for completeness of the encoder.

// APDU limits according to ISO 7816-3.
const (
	// MaxShortLc is the maximum data length encodable in Short mode.
	MaxShortLc = 255

	// MaxShortLe is the maximum expected response length in Short
	// mode. 0x00 encodes 256.
	MaxShortLe = 256

	// MaxExtendedLe is the maximum expected response length in
	// Extended mode. 0x0000 encodes 65536.
	MaxExtendedLe = 65536
)

// InsCode is a typed instruction byte. Only the instructions the PIV
// applet understands are named here.
type InsCode byte

const (
	InsVerify                      InsCode = 0x20
	InsGenerateAsymmetricKeyPair   InsCode = 0x47
	InsGeneralAuthenticate         InsCode = 0x87
	InsSelect                      InsCode = 0xA4
	InsGetResponse                 InsCode = 0xC0
	InsGetData                     InsCode = 0xCB
	InsPutData                     InsCode = 0xDB
)

// CommandAPDU represents a command sent to the card.
type CommandAPDU struct {
	Cla    byte
	Ins    InsCode
	P1, P2 byte
	Data   []byte
	Ne     int // Expected response length (0 means none)
}

// NewCommandAPDU creates a command with the interindustry class byte
// 0x00 used for every PIV exchange.
func NewCommandAPDU(ins InsCode, p1, p2 byte, data []byte, ne int) *CommandAPDU {
	return &CommandAPDU{
		Ins:  ins,
		P1:   p1,
		P2:   p2,
		Data: data,
		Ne:   ne,
	}
}

// Bytes encodes the CommandAPDU into its wire representation, choosing
// Short or Extended encoding from the data and expectation lengths.
func (c *CommandAPDU) Bytes() ([]byte, error) {
	nc := len(c.Data)
	ne := c.Ne

	if nc > 0xFFFF {
		return nil, fmt.Errorf("command data of %d bytes exceeds extended Lc", nc)
	}
	if ne > MaxExtendedLe {
		return nil, fmt.Errorf("expected length %d exceeds extended Le", ne)
	}

	buf := new(bytes.Buffer)
	buf.WriteByte(c.Cla)
	buf.WriteByte(byte(c.Ins))
	buf.WriteByte(c.P1)
	buf.WriteByte(c.P2)

	isExtended := nc > MaxShortLc || ne > MaxShortLe

	if nc > 0 {
		if !isExtended {
			buf.WriteByte(byte(nc))
		} else {
			// Extended Lc: flag byte plus 2-byte big-endian length.
			buf.WriteByte(0x00)
			buf.WriteByte(byte(nc >> 8))
			buf.WriteByte(byte(nc))
		}
		buf.Write(c.Data)
	}

	if ne > 0 {
		if !isExtended {
			if ne == MaxShortLe {
				buf.WriteByte(0x00) // 0x00 represents 256
			} else {
				buf.WriteByte(byte(ne))
			}
		} else {
			// Case 2 Extended needs a leading 00 to mark Le when Lc
			// is absent.
			if nc == 0 {
				buf.WriteByte(0x00)
			}
			if ne == MaxExtendedLe {
				buf.WriteByte(0x00)
				buf.WriteByte(0x00)
			} else {
				buf.WriteByte(byte(ne >> 8))
				buf.WriteByte(byte(ne))
			}
		}
	}

	return buf.Bytes(), nil
}

// String returns a readable representation of the command meta-data.
func (c *CommandAPDU) String() string {
	return fmt.Sprintf("INS %02X | P1: %02X, P2: %02X | Lc: %d | Le: %d",
		byte(c.Ins), c.P1, c.P2, len(c.Data), c.Ne)
}

// ResponseAPDU represents the reply from the card (R-APDU).
type ResponseAPDU struct {
	Data   []byte
	Status StatusWord
}

// ParseResponseAPDU parses raw bytes received from the card. The input
// must contain at least the 2-byte status word.
func ParseResponseAPDU(raw []byte) (*ResponseAPDU, error) {
	if len(raw) < 2 {
		return nil, fmt.Errorf("response too short: length %d", len(raw))
	}

	indexSW1 := len(raw) - 2
	return &ResponseAPDU{
		Data:   raw[:indexSW1],
		Status: NewStatusWord(raw[indexSW1], raw[indexSW1+1]),
	}, nil
}

// String returns a readable representation of the response.
func (r *ResponseAPDU) String() string {
	return fmt.Sprintf("Data (%d bytes) | Status: %s", len(r.Data), r.Status.Verbose())
}
