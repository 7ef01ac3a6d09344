package cert

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pivkey/pivsign/pkg/tlv"
)

func testKey() *PublicKey {
	pub := &PublicKey{}
	for i := range pub.X {
		pub.X[i] = byte(i + 1)
		pub.Y[i] = byte(0xE0 - i)
	}
	return pub
}

func TestFindPublicKey_RoundTripSPKI(t *testing.T) {
	pub := testKey()

	got, confidence, err := FindPublicKey(SubjectPublicKeyInfo(pub))
	if err != nil {
		t.Fatalf("FindPublicKey failed: %v", err)
	}
	if confidence != ByStructure {
		t.Errorf("confidence = %v, want ByStructure", confidence)
	}
	if diff := cmp.Diff(pub, got); diff != "" {
		t.Errorf("recovered key mismatch (-want +got):\n%s", diff)
	}
}

func TestFindPublicKey_RoundTripCertificate(t *testing.T) {
	pub := testKey()

	got, confidence, err := FindPublicKey(SelfSignedCertificate(pub))
	if err != nil {
		t.Fatalf("FindPublicKey failed: %v", err)
	}
	if confidence != ByStructure {
		t.Errorf("confidence = %v, want ByStructure", confidence)
	}
	if diff := cmp.Diff(pub, got); diff != "" {
		t.Errorf("recovered key mismatch (-want +got):\n%s", diff)
	}
}

func TestFindPublicKey_FallbackPattern(t *testing.T) {
	pub := testKey()

	tests := []struct {
		name string
		blob []byte
	}{
		{
			name: "short length header without OID",
			blob: tlv.Hex("DEADBEEF", "034200", "04"),
		},
		{
			name: "long length header without OID",
			blob: tlv.Hex("DEADBEEF", "03814200", "04"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob := append(tt.blob, pub.X[:]...)
			blob = append(blob, pub.Y[:]...)
			blob = append(blob, 0xFF) // trailing garbage

			got, confidence, err := FindPublicKey(blob)
			if err != nil {
				t.Fatalf("FindPublicKey failed: %v", err)
			}
			if confidence != ByPattern {
				t.Errorf("confidence = %v, want ByPattern", confidence)
			}
			if diff := cmp.Diff(pub, got); diff != "" {
				t.Errorf("recovered key mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFindPublicKey_BrokenOIDStillRecovers(t *testing.T) {
	// Corrupt the OID in an otherwise valid SPKI. The structured pass
	// must fail and the pattern pass must still locate the point.
	pub := testKey()
	blob := SubjectPublicKeyInfo(pub)
	idx := bytes.Index(blob, oidECPublicKey)
	if idx < 0 {
		t.Fatal("fixture has no OID")
	}
	blob[idx+2] ^= 0xFF

	got, confidence, err := FindPublicKey(blob)
	if err != nil {
		t.Fatalf("FindPublicKey failed: %v", err)
	}
	if confidence != ByPattern {
		t.Errorf("confidence = %v, want ByPattern", confidence)
	}
	if diff := cmp.Diff(pub, got); diff != "" {
		t.Errorf("recovered key mismatch (-want +got):\n%s", diff)
	}
}

func TestFindPublicKey_NoMatch(t *testing.T) {
	tests := []struct {
		name string
		blob []byte
	}{
		{"empty blob", nil},
		{"random bytes", tlv.Hex("3082016A300D06092A")},
		{"bit string header with truncated point", tlv.Hex("03420004", "AABBCC")},
		{"oid present but no bit string", append(append([]byte{}, oidECPublicKey...), 0x05, 0x00)},
		{"compressed point tag", tlv.Hex("03420002")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := FindPublicKey(tt.blob)
			if !errors.Is(err, ErrNoPublicKey) {
				t.Errorf("err = %v, want ErrNoPublicKey", err)
			}
		})
	}
}

func TestPoint_Encoding(t *testing.T) {
	pub := testKey()
	point := pub.Point()

	if len(point) != 65 {
		t.Fatalf("point length = %d, want 65", len(point))
	}
	if point[0] != 0x04 {
		t.Errorf("point tag = %02X, want 04", point[0])
	}
	if !bytes.Equal(point[1:33], pub.X[:]) || !bytes.Equal(point[33:], pub.Y[:]) {
		t.Error("point coordinates do not match X||Y")
	}
}
