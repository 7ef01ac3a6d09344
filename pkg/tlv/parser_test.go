package tlv

import (
	"encoding/hex"
	"testing"
)

type pointTemplate struct {
	Point []byte `tlv:"86"`
}

type generateResponse struct {
	Key pointTemplate `tlv:"7F49"`
}

type authTemplate struct {
	Witness   []byte `tlv:"80"`
	Challenge []byte `tlv:"81"`
	Response  []byte `tlv:"82"`
}

type authResponse struct {
	Template authTemplate `tlv:"7C"`
}

func TestUnmarshal_NestedTemplate(t *testing.T) {
	raw := Hex(
		"7F49", "05", // key template
		"86", "03", "0401AA", // point element
	)

	var result generateResponse
	if err := Unmarshal(raw, &result); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if got := hex.EncodeToString(result.Key.Point); got != "0401aa" {
		t.Errorf("Point = %s, want 0401aa", got)
	}
}

func TestUnmarshal_DynamicAuthTemplate(t *testing.T) {
	raw := Hex(
		"7C", "08",
		"80", "02", "A1A2", // witness
		"82", "02", "B1B2", // response
	)

	var result authResponse
	if err := Unmarshal(raw, &result); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if got := hex.EncodeToString(result.Template.Witness); got != "a1a2" {
		t.Errorf("Witness = %s, want a1a2", got)
	}
	if got := hex.EncodeToString(result.Template.Response); got != "b1b2" {
		t.Errorf("Response = %s, want b1b2", got)
	}
	if len(result.Template.Challenge) != 0 {
		t.Errorf("Challenge = %x, want empty", result.Template.Challenge)
	}
}

func TestUnmarshal_TargetMustBePointer(t *testing.T) {
	var result authResponse
	if err := Unmarshal(Hex("7C00"), result); err == nil {
		t.Error("expected error for non-pointer target")
	}
}

func TestGetValue(t *testing.T) {
	raw := Hex(
		"7C", "06",
		"82", "04", "DEADBEEF",
	)

	inner, err := GetValue(raw, 0x7C)
	if err != nil {
		t.Fatalf("GetValue(7C) failed: %v", err)
	}

	sig, err := GetValue(inner, 0x82)
	if err != nil {
		t.Fatalf("GetValue(82) failed: %v", err)
	}
	if got := hex.EncodeToString(sig); got != "deadbeef" {
		t.Errorf("value = %s, want deadbeef", got)
	}

	if _, err := GetValue(raw, 0x7F49); err == nil {
		t.Error("expected error for absent tag")
	}
}

func TestHex(t *testing.T) {
	got := Hex("00 A4", "0400")
	want := []byte{0x00, 0xA4, 0x04, 0x00}
	if len(got) != len(want) {
		t.Fatalf("length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("byte %d = %02X, want %02X", i, got[i], want[i])
		}
	}
}
