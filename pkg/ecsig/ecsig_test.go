package ecsig

import (
	"crypto/elliptic"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pivkey/pivsign/pkg/der"
)

// encodeDERSig builds SEQUENCE { INTEGER r, INTEGER s } the way the
// card does, including the sign-pad byte for high-bit scalars.
func encodeDERSig(r, s *big.Int) []byte {
	intBytes := func(v *big.Int) []byte {
		b := v.Bytes()
		if len(b) == 0 {
			b = []byte{0x00}
		}
		if b[0]&0x80 != 0 {
			b = append([]byte{0x00}, b...)
		}
		return b
	}
	body := der.Marshal(0x02, intBytes(r))
	body = append(body, der.Marshal(0x02, intBytes(s))...)
	return der.Marshal(0x30, body)
}

func TestParseDER_LowSNormalization(t *testing.T) {
	order := elliptic.P256().Params().N
	half := new(big.Int).Rsh(order, 1)

	tests := []struct {
		name      string
		s         *big.Int
		expectedS *big.Int
	}{
		{
			name:      "high s folds to order minus s",
			s:         new(big.Int).Sub(order, big.NewInt(1)),
			expectedS: big.NewInt(1),
		},
		{
			name:      "low s unchanged",
			s:         big.NewInt(2),
			expectedS: big.NewInt(2),
		},
		{
			name:      "exactly half order unchanged",
			s:         new(big.Int).Set(half),
			expectedS: new(big.Int).Set(half),
		},
		{
			name:      "one above half order folds",
			s:         new(big.Int).Add(half, big.NewInt(1)),
			expectedS: new(big.Int).Set(half), // order is odd: n - (n-1)/2 - 1 = (n-1)/2
		},
	}

	r := big.NewInt(7)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := ParseDER(encodeDERSig(r, tt.s))
			require.NoError(t, err)

			gotS := new(big.Int).SetBytes(sig.S[:])
			assert.Zero(t, gotS.Cmp(tt.expectedS), "s = %x, want %x", gotS, tt.expectedS)
			assert.LessOrEqual(t, gotS.Cmp(half), 0, "normalized s must not exceed order/2")
			assert.Equal(t, r, new(big.Int).SetBytes(sig.R[:]))
		})
	}
}

func TestParseDER_Idempotent(t *testing.T) {
	order := elliptic.P256().Params().N
	first, err := ParseDER(encodeDERSig(big.NewInt(9), new(big.Int).Sub(order, big.NewInt(5))))
	require.NoError(t, err)

	again, err := ParseDER(encodeDERSig(
		new(big.Int).SetBytes(first.R[:]),
		new(big.Int).SetBytes(first.S[:]),
	))
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestParseDER_FixedWidth(t *testing.T) {
	sig, err := ParseDER(encodeDERSig(big.NewInt(1), big.NewInt(1)))
	require.NoError(t, err)

	assert.Len(t, sig.Bytes(), 64)
	assert.Equal(t, byte(0x01), sig.R[31])
	assert.Equal(t, byte(0x01), sig.S[31])
	for i := 0; i < 31; i++ {
		assert.Zero(t, sig.R[i])
		assert.Zero(t, sig.S[i])
	}
}

func TestParseDER_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"not a sequence", "0203010203"},
		{"single integer", "3003020101"},
		{"truncated second integer", "30060201010202"},
		{"trailing bytes inside sequence", "30080201010201 01FF"},
		{"second integer missing length", "300402010102"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := hex.DecodeString(stripSpaces(tt.raw))
			require.NoError(t, err)
			_, perr := ParseDER(raw)
			assert.Error(t, perr)
		})
	}

	t.Run("scalar wider than field", func(t *testing.T) {
		// 33 bytes with a non-zero lead cannot be a sign-padded P-256 scalar.
		wide := make([]byte, 33)
		wide[0] = 0x01
		body := der.Marshal(0x02, []byte{0x01})
		body = append(body, der.Marshal(0x02, wide)...)
		_, err := ParseDER(der.Marshal(0x30, body))
		assert.Error(t, err)
	})
}

func stripSpaces(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != ' ' {
			out = append(out, s[i])
		}
	}
	return string(out)
}

func TestDeriveAddress_KnownVector(t *testing.T) {
	// Generator point of secp256k1, i.e. the public key of private key 1.
	// Its account address is a fixture every EVM toolchain reproduces.
	var x, y [32]byte
	xb, _ := hex.DecodeString("79BE667EF9DCBBAC55A06295CE870B07029BFCDB2DCE28D959F2815B16F81798")
	yb, _ := hex.DecodeString("483ADA7726A3C4655DA4FBFC0E1108A8FD17B448A68554199C47D08FFB10D4B8")
	copy(x[:], xb)
	copy(y[:], yb)

	addr := DeriveAddress(x, y)
	assert.Equal(t, "7e5f4552091a69125d5dfcb7b8c2659029395bdf", hex.EncodeToString(addr[:]))
}

func TestDeriveAddress_Deterministic(t *testing.T) {
	var x, y [32]byte
	x[0], y[31] = 0xAB, 0xCD

	first := DeriveAddress(x, y)
	second := DeriveAddress(x, y)
	assert.Equal(t, first, second)

	y[31] = 0xCE
	assert.NotEqual(t, first, DeriveAddress(x, y))
}
