// Package piv drives the PIV applet (NIST SP 800-73) over an APDU
// transport: applet selection, PIN and management-key authentication,
// ECC P-256 key generation, public-key retrieval and raw-digest
// signing.
package piv

import (
	"bytes"
	"crypto/aes"
	"crypto/rand"
	"fmt"
	"io"
	"sync"

	"github.com/moov-io/bertlv"

	"github.com/pivkey/pivsign/pkg/cert"
	"github.com/pivkey/pivsign/pkg/ecsig"
	"github.com/pivkey/pivsign/pkg/iso7816"
	"github.com/pivkey/pivsign/pkg/tlv"
)

// aidPIV is the registered application identifier of the PIV applet.
var aidPIV = []byte{0xA0, 0x00, 0x00, 0x03, 0x08}

const (
	// algECCP256 identifies ECC P-256 in PIV algorithm fields.
	algECCP256 = 0x11

	// algAES192 identifies AES-192 for management-key authentication.
	algAES192 = 0x0A

	// keyCardManagement is the key reference of the management key.
	keyCardManagement = 0x9B

	// challengeLen is the AES block size used for witness and
	// challenge values in mutual authentication.
	challengeLen = 16
)

// DefaultManagementKey is the factory-default 24-byte management key.
var DefaultManagementKey = [24]byte{
	0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
	0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
	0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
}

// KeyInfo is a public key recovered from a slot's certificate object,
// along with how it was located inside the blob.
type KeyInfo struct {
	Public     cert.PublicKey
	Confidence cert.Confidence
}

// Session tracks the authentication state of one logical connection to
// the PIV applet. The card holds the real state; the booleans here
// mirror it so operations can fail fast with a precise error instead
// of a raw 6982 from the card.
//
// All operations are serialized. A Session must be discarded (or
// Reset) whenever the underlying connection is re-established, since
// card-side state does not survive a reconnect.
type Session struct {
	mu sync.Mutex

	client *iso7816.Client
	rand   io.Reader

	selected         bool
	pinVerified      bool
	keyAuthenticated bool
}

// NewSession creates a Session over a card transport. No command is
// sent until Select.
func NewSession(card iso7816.Transmitter) *Session {
	return &Session{
		client: iso7816.NewClient(card),
		rand:   rand.Reader,
	}
}

// Select selects the PIV applet. It must succeed before any other
// operation.
func (s *Session) Select() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	trace, err := s.client.Send(iso7816.NewCommandAPDU(
		iso7816.InsSelect, 0x04, 0x00, aidPIV, 0))
	if err != nil {
		return fmt.Errorf("selecting PIV applet: %w", err)
	}
	if err := statusError("select applet", trace.Status()); err != nil {
		return err
	}

	s.selected = true
	return nil
}

// VerifyPIN presents the PIN to the card. A wrong PIN returns an
// *AuthError carrying the remaining retries; an exhausted counter
// returns ErrPINBlocked.
func (s *Session) VerifyPIN(pin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.selected {
		return ErrNotSelected
	}

	encoded, err := encodePIN(pin)
	if err != nil {
		return err
	}

	trace, err := s.client.Send(iso7816.NewCommandAPDU(
		iso7816.InsVerify, 0x00, 0x80, encoded, 0))
	if err != nil {
		return fmt.Errorf("verifying PIN: %w", err)
	}

	sw := trace.Status()
	switch {
	case sw == iso7816.SWNoError:
		s.pinVerified = true
		return nil
	case sw.IsCounter():
		return &AuthError{Retries: sw.Counter()}
	case sw == iso7816.SWErrAuthMethodBlocked:
		return ErrPINBlocked
	}
	return statusError("verify PIN", sw)
}

// PINRetries queries the remaining PIN attempts without consuming one,
// by sending VERIFY with an empty body.
func (s *Session) PINRetries() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.selected {
		return 0, ErrNotSelected
	}

	trace, err := s.client.Send(iso7816.NewCommandAPDU(
		iso7816.InsVerify, 0x00, 0x80, nil, 0))
	if err != nil {
		return 0, fmt.Errorf("querying PIN retries: %w", err)
	}

	sw := trace.Status()
	switch {
	case sw == iso7816.SWNoError:
		// Already verified in this session; the card reports success
		// instead of a counter.
		return -1, nil
	case sw.IsCounter():
		return sw.Counter(), nil
	case sw == iso7816.SWErrAuthMethodBlocked:
		return 0, ErrPINBlocked
	}
	return 0, statusError("query PIN retries", sw)
}

// encodePIN validates a 6-8 character PIN and pads it with 0xFF to the
// fixed 8-byte reference-data length.
func encodePIN(pin string) ([]byte, error) {
	if len(pin) < 6 || len(pin) > 8 {
		return nil, fmt.Errorf("piv: PIN must be 6 to 8 characters, got %d", len(pin))
	}

	encoded := make([]byte, 8)
	copy(encoded, pin)
	for i := len(pin); i < 8; i++ {
		encoded[i] = 0xFF
	}
	return encoded, nil
}

// AuthenticateManagement performs AES-192 mutual authentication with
// the card management key. The card proves knowledge of the key by
// sending an encrypted witness we must decrypt; we prove ours by
// checking the card's encryption of a random challenge locally, so the
// key itself never crosses the wire.
func (s *Session) AuthenticateManagement(key [24]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.selected {
		return ErrNotSelected
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return fmt.Errorf("loading management key: %w", err)
	}

	// Step 1: request a witness.
	request, err := bertlv.Encode([]bertlv.TLV{{
		Tag:  "7C",
		TLVs: []bertlv.TLV{{Tag: "80"}},
	}})
	if err != nil {
		return fmt.Errorf("encoding witness request: %w", err)
	}

	trace, err := s.client.Send(iso7816.NewCommandAPDU(
		iso7816.InsGeneralAuthenticate, algAES192, keyCardManagement,
		request, 0))
	if err != nil {
		return fmt.Errorf("requesting witness: %w", err)
	}
	if err := statusError("request witness", trace.Status()); err != nil {
		return err
	}

	var witnessResp struct {
		Template struct {
			Witness []byte `tlv:"80"`
		} `tlv:"7C"`
	}
	if err := tlv.Unmarshal(trace.Payload(), &witnessResp); err != nil {
		return fmt.Errorf("parsing witness response: %w", err)
	}
	encWitness := witnessResp.Template.Witness
	if len(encWitness) != challengeLen {
		return fmt.Errorf("piv: witness length %d, want %d", len(encWitness), challengeLen)
	}

	witness := make([]byte, challengeLen)
	block.Decrypt(witness, encWitness)

	// Step 2: return the decrypted witness with our own challenge.
	challenge := make([]byte, challengeLen)
	if _, err := io.ReadFull(s.rand, challenge); err != nil {
		return fmt.Errorf("generating challenge: %w", err)
	}

	response, err := bertlv.Encode([]bertlv.TLV{{
		Tag: "7C",
		TLVs: []bertlv.TLV{
			{Tag: "80", Value: witness},
			{Tag: "81", Value: challenge},
		},
	}})
	if err != nil {
		return fmt.Errorf("encoding challenge: %w", err)
	}

	trace, err = s.client.Send(iso7816.NewCommandAPDU(
		iso7816.InsGeneralAuthenticate, algAES192, keyCardManagement,
		response, 0))
	if err != nil {
		return fmt.Errorf("sending challenge: %w", err)
	}
	if trace.Status() == iso7816.SWErrSecurityStatus {
		// The card rejected our witness: we hold the wrong key.
		return ErrAuthFailed
	}
	if err := statusError("mutual authentication", trace.Status()); err != nil {
		return err
	}

	var challengeResp struct {
		Template struct {
			Response []byte `tlv:"82"`
		} `tlv:"7C"`
	}
	if err := tlv.Unmarshal(trace.Payload(), &challengeResp); err != nil {
		return fmt.Errorf("parsing challenge response: %w", err)
	}
	cardProof := challengeResp.Template.Response
	if len(cardProof) != challengeLen {
		return fmt.Errorf("piv: challenge response length %d, want %d", len(cardProof), challengeLen)
	}

	// Step 3: the card must have encrypted our challenge with the same
	// key. Compare locally.
	expected := make([]byte, challengeLen)
	block.Encrypt(expected, challenge)
	if !bytes.Equal(expected, cardProof) {
		return ErrAuthFailed
	}

	s.keyAuthenticated = true
	return nil
}

// GenerateKey generates a fresh ECC P-256 key pair in the slot,
// replacing any existing key. Requires prior management-key
// authentication.
func (s *Session) GenerateKey(slot Slot) (*cert.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.selected {
		return nil, ErrNotSelected
	}
	if !s.keyAuthenticated {
		return nil, ErrManagementRequired
	}
	if !slot.Valid() {
		return nil, fmt.Errorf("piv: invalid slot %02X", byte(slot))
	}

	// Control template: AC holds one parameter, 80 = algorithm.
	template := []byte{0xAC, 0x03, 0x80, 0x01, algECCP256}

	trace, err := s.client.Send(iso7816.NewCommandAPDU(
		iso7816.InsGenerateAsymmetricKeyPair, 0x00, byte(slot),
		template, 0))
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	if err := statusError("generate key", trace.Status()); err != nil {
		return nil, err
	}

	var resp struct {
		Key struct {
			Point []byte `tlv:"86"`
		} `tlv:"7F49"`
	}
	if err := tlv.Unmarshal(trace.Payload(), &resp); err != nil {
		return nil, fmt.Errorf("parsing key template: %w", err)
	}

	return pointToPublicKey(resp.Key.Point)
}

// pointToPublicKey validates a 65-byte uncompressed P-256 point and
// splits it into coordinates.
func pointToPublicKey(point []byte) (*cert.PublicKey, error) {
	if len(point) != 65 || point[0] != 0x04 {
		return nil, fmt.Errorf("piv: malformed EC point (%d bytes)", len(point))
	}

	var pub cert.PublicKey
	copy(pub.X[:], point[1:33])
	copy(pub.Y[:], point[33:65])
	return &pub, nil
}

// ReadPublicKey retrieves the certificate object of the slot and
// extracts the public key from it. A slot with no stored certificate
// returns found = false with a nil error.
func (s *Session) ReadPublicKey(slot Slot) (info *KeyInfo, found bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.selected {
		return nil, false, ErrNotSelected
	}
	if !slot.Valid() {
		return nil, false, fmt.Errorf("piv: invalid slot %02X", byte(slot))
	}

	// GET DATA takes a 5C tag list naming the data object.
	obj := slot.Object()
	data := append([]byte{0x5C, byte(len(obj))}, obj...)

	trace, err := s.client.Send(iso7816.NewCommandAPDU(
		iso7816.InsGetData, 0x3F, 0xFF, data, iso7816.MaxShortLe))
	if err != nil {
		return nil, false, fmt.Errorf("reading certificate object: %w", err)
	}

	sw := trace.Status()
	if sw == iso7816.SWErrFileNotFound {
		return nil, false, nil
	}
	if err := statusError("read certificate object", sw); err != nil {
		return nil, false, err
	}

	pub, confidence, err := cert.FindPublicKey(trace.Payload())
	if err != nil {
		return nil, false, fmt.Errorf("slot %s: %w", slot, err)
	}
	return &KeyInfo{Public: *pub, Confidence: confidence}, true, nil
}

// SignHash signs a 32-byte digest with the slot's private key and
// returns the normalized signature. Requires a verified PIN.
//
// The digest is passed to the card as-is; no hashing happens here.
func (s *Session) SignHash(slot Slot, hash []byte) (*ecsig.Signature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.selected {
		return nil, ErrNotSelected
	}
	if !s.pinVerified {
		return nil, ErrPINRequired
	}
	if !slot.Valid() {
		return nil, fmt.Errorf("piv: invalid slot %02X", byte(slot))
	}
	if len(hash) != 32 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidDigest, len(hash))
	}

	// Dynamic authentication template: empty 82 marks the response
	// slot, 81 carries the challenge (the digest).
	request, err := bertlv.Encode([]bertlv.TLV{{
		Tag: "7C",
		TLVs: []bertlv.TLV{
			{Tag: "82"},
			{Tag: "81", Value: hash},
		},
	}})
	if err != nil {
		return nil, fmt.Errorf("encoding sign request: %w", err)
	}

	trace, err := s.client.Send(iso7816.NewCommandAPDU(
		iso7816.InsGeneralAuthenticate, algECCP256, byte(slot), request, 0))
	if err != nil {
		return nil, fmt.Errorf("signing digest: %w", err)
	}
	if trace.Status() == iso7816.SWErrSecurityStatus {
		return nil, ErrPINRequired
	}
	if err := statusError("sign digest", trace.Status()); err != nil {
		return nil, err
	}

	var resp struct {
		Template struct {
			Signature []byte `tlv:"82"`
		} `tlv:"7C"`
	}
	if err := tlv.Unmarshal(trace.Payload(), &resp); err != nil {
		return nil, fmt.Errorf("parsing sign response: %w", err)
	}

	sig, err := ecsig.ParseDER(resp.Template.Signature)
	if err != nil {
		return nil, fmt.Errorf("decoding signature: %w", err)
	}
	return sig, nil
}

// Reset forgets all session state. It must be called whenever the
// underlying card connection is re-established, since applet selection
// and authentications do not survive a reconnect.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selected = false
	s.pinVerified = false
	s.keyAuthenticated = false
}
