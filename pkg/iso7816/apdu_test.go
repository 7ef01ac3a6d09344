package iso7816

import (
	"encoding/hex"
	"strings"
	"testing"
)

func TestCommandAPDU_Encoding(t *testing.T) {
	hash := strings.Repeat("AB", 32)
	hashBytes, _ := hex.DecodeString(hash)

	tests := []struct {
		name     string
		cmd      *CommandAPDU
		expected string
	}{
		{
			name:     "Case 1: Header only",
			cmd:      NewCommandAPDU(InsSelect, 0x01, 0x02, nil, 0),
			expected: "00A40102",
		},
		{
			name: "Case 3: PIV applet selection",
			cmd:  NewCommandAPDU(InsSelect, 0x04, 0x00, []byte{0xA0, 0x00, 0x00, 0x03, 0x08}, 0),
			// Lc=05, AID, no Le
			expected: "00A4040005A000000308",
		},
		{
			name: "Case 2: Le=256 encodes as 00",
			cmd:  NewCommandAPDU(InsGetResponse, 0x00, 0x00, nil, MaxShortLe),
			expected: "00C0000000",
		},
		{
			name: "Case 4: Data and explicit Le",
			cmd:  NewCommandAPDU(InsGetData, 0x3F, 0xFF, []byte{0x5C, 0x03, 0x5F, 0xC1, 0x05}, MaxShortLe),
			// Lc=05, tag list, Le=00
			expected: "00CB3FFF055C035FC10500",
		},
		{
			name: "sign command carries the full digest",
			cmd: NewCommandAPDU(InsGeneralAuthenticate, 0x11, 0x9A,
				append([]byte{0x7C, 0x24, 0x82, 0x00, 0x81, 0x20}, hashBytes...), 0),
			expected: "0087119A267C24820081" + "20" + hash,
		},
		{
			name: "Extended: data above 255 bytes",
			cmd: func() *CommandAPDU {
				longData := make([]byte, 260)
				return NewCommandAPDU(InsPutData, 0x3F, 0xFF, longData, 0)
			}(),
			// Extended Lc: 00 flag + 0104 (260) + data
			expected: "00DB3FFF000104" + hex.EncodeToString(make([]byte, 260)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotBytes, err := tt.cmd.Bytes()
			if err != nil {
				t.Fatalf("Encoding failed: %v", err)
			}
			gotHex := strings.ToUpper(hex.EncodeToString(gotBytes))
			expectedHex := strings.ToUpper(tt.expected)

			if gotHex != expectedHex {
				t.Errorf("Mismatch\nExpected: %s\nGot:      %s", expectedHex, gotHex)
			}
		})
	}
}

func TestParseResponseAPDU(t *testing.T) {
	raw, _ := hex.DecodeString("0102039000")
	resp, err := ParseResponseAPDU(raw)

	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(resp.Data) != 3 {
		t.Errorf("Wrong data length: got %d, want 3", len(resp.Data))
	}
	if resp.Status != SWNoError {
		t.Errorf("Wrong status: got %04X, want %04X", uint16(resp.Status), uint16(SWNoError))
	}
}

func TestParseResponseAPDU_TooShort(t *testing.T) {
	if _, err := ParseResponseAPDU([]byte{0x90}); err == nil {
		t.Error("Expected error for short response, got nil")
	}
	if _, err := ParseResponseAPDU(nil); err == nil {
		t.Error("Expected error for empty response, got nil")
	}
}
