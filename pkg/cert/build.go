package cert

import (
	"github.com/pivkey/pivsign/pkg/der"
)

// CERTIFICATE CONSTRUCTION:
// The token will only persist a generated key if a certificate object is
// written alongside it, so we synthesize the smallest structure the
// applet accepts: fixed serial, fixed validity window, single-letter
// subject, and a placeholder signature. Nothing ever validates this
// certificate; it exists purely so the public key survives on the card
// and can be read back by FindPublicKey.

var (
	oidPrime256v1      = []byte{0x06, 0x08, 0x2A, 0x86, 0x48, 0xCE, 0x3D, 0x03, 0x01, 0x07}
	oidECDSAWithSHA256 = []byte{0x06, 0x08, 0x2A, 0x86, 0x48, 0xCE, 0x3D, 0x04, 0x03, 0x02}
	oidCommonName      = []byte{0x06, 0x03, 0x55, 0x04, 0x03}
)

// SubjectPublicKeyInfo encodes the point as a standard X.509
// SubjectPublicKeyInfo: the EC algorithm identifier followed by the
// uncompressed point in a BIT STRING with zero unused bits.
func SubjectPublicKeyInfo(pub *PublicKey) []byte {
	algorithm := der.Marshal(0x30, append(append([]byte{}, oidECPublicKey...), oidPrime256v1...))

	bitString := der.Marshal(0x03, append([]byte{0x00}, pub.Point()...))

	return der.Marshal(0x30, append(algorithm, bitString...))
}

// SelfSignedCertificate wraps the key in a minimal fixed-field X.509
// certificate for round-trip storage on the token.
func SelfSignedCertificate(pub *PublicKey) []byte {
	version := der.Marshal(0xA0, der.Marshal(0x02, []byte{0x02})) // [0] EXPLICIT v3
	serial := der.Marshal(0x02, []byte{0x01})
	sigAlg := der.Marshal(0x30, oidECDSAWithSHA256)
	name := singleLetterName()
	validity := fixedValidity()
	spki := SubjectPublicKeyInfo(pub)

	tbs := append([]byte{}, version...)
	tbs = append(tbs, serial...)
	tbs = append(tbs, sigAlg...)
	tbs = append(tbs, name...) // issuer
	tbs = append(tbs, validity...)
	tbs = append(tbs, name...) // subject, self-signed
	tbs = append(tbs, spki...)
	tbsCert := der.Marshal(0x30, tbs)

	// Placeholder signature value. The applet stores the certificate
	// opaquely and nothing verifies it.
	sigBody := append(der.Marshal(0x02, []byte{0x01}), der.Marshal(0x02, []byte{0x01})...)
	signature := der.Marshal(0x03, append([]byte{0x00}, der.Marshal(0x30, sigBody)...))

	body := append(tbsCert, sigAlg...)
	body = append(body, signature...)
	return der.Marshal(0x30, body)
}

// singleLetterName builds the RDN sequence for CN=P.
func singleLetterName() []byte {
	attr := der.Marshal(0x30, append(append([]byte{}, oidCommonName...), der.Marshal(0x13, []byte{'P'})...))
	return der.Marshal(0x30, der.Marshal(0x31, attr))
}

// fixedValidity returns a constant twenty-year window. The card does
// not check it and clock-less tokens could not anyway.
func fixedValidity() []byte {
	notBefore := der.Marshal(0x17, []byte("200101000000Z"))
	notAfter := der.Marshal(0x17, []byte("400101000000Z"))
	return der.Marshal(0x30, append(notBefore, notAfter...))
}
