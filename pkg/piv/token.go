package piv

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/pivkey/pivsign/pkg/cert"
	"github.com/pivkey/pivsign/pkg/ecsig"
	"github.com/pivkey/pivsign/pkg/reader"
)

// externalToolPause gives the PC/SC daemon time to drop our handle
// before the external tool claims exclusive access.
const externalToolPause = 2 * time.Second

// Token couples a physical reader connection with a PIV session and
// keeps the two consistent: any operation that cycles the connection
// also resets the session state.
type Token struct {
	manager *reader.Manager
	session *Session
	logf    func(format string, args ...any)
}

// NewToken creates a disconnected Token.
func NewToken() *Token {
	return &Token{manager: reader.New()}
}

// SetLogf installs a diagnostic sink that receives every raw APDU
// exchange. Must be called before Connect.
func (t *Token) SetLogf(logf func(format string, args ...any)) {
	t.logf = logf
}

// Connect establishes the card connection and selects the PIV applet.
func (t *Token) Connect() error {
	if err := t.manager.Connect(); err != nil {
		return err
	}

	t.session = NewSession(t.manager)
	t.session.client.Logf = t.logf
	if err := t.session.Select(); err != nil {
		t.manager.Disconnect()
		t.session = nil
		return err
	}
	return nil
}

// Disconnect releases the card and forgets all session state.
func (t *Token) Disconnect() error {
	if t.session != nil {
		t.session.Reset()
		t.session = nil
	}
	return t.manager.Disconnect()
}

// Reader returns the name of the connected reader, or "".
func (t *Token) Reader() string {
	return t.manager.Reader()
}

func (t *Token) ready() (*Session, error) {
	if t.session == nil {
		return nil, ErrNotSelected
	}
	return t.session, nil
}

// VerifyPIN presents the PIN for subsequent signing operations.
func (t *Token) VerifyPIN(pin string) error {
	s, err := t.ready()
	if err != nil {
		return err
	}
	return s.VerifyPIN(pin)
}

// PINRetries reports the remaining PIN attempts, or -1 if the PIN is
// already verified in this session.
func (t *Token) PINRetries() (int, error) {
	s, err := t.ready()
	if err != nil {
		return 0, err
	}
	return s.PINRetries()
}

// GenerateKey authenticates with the management key, generates a fresh
// P-256 key pair in the slot, and stores a minimal certificate so the
// public key can be read back later.
func (t *Token) GenerateKey(slot Slot, managementKey [24]byte) (*cert.PublicKey, error) {
	s, err := t.ready()
	if err != nil {
		return nil, err
	}

	if err := s.AuthenticateManagement(managementKey); err != nil {
		return nil, err
	}
	pub, err := s.GenerateKey(slot)
	if err != nil {
		return nil, err
	}

	if err := t.StoreCertificate(slot, cert.SelfSignedCertificate(pub)); err != nil {
		return nil, fmt.Errorf("storing certificate for new key: %w", err)
	}
	return pub, nil
}

// ReadPublicKey extracts the public key from the slot's certificate
// object. found is false when the slot holds no certificate.
func (t *Token) ReadPublicKey(slot Slot) (*KeyInfo, bool, error) {
	s, err := t.ready()
	if err != nil {
		return nil, false, err
	}
	return s.ReadPublicKey(slot)
}

// SignHash signs a 32-byte digest with the slot's key. The PIN must
// have been verified first.
func (t *Token) SignHash(slot Slot, hash []byte) (*ecsig.Signature, error) {
	s, err := t.ready()
	if err != nil {
		return nil, err
	}
	return s.SignHash(slot, hash)
}

// Address derives the 20-byte Keccak address of the slot's public key.
func (t *Token) Address(slot Slot) ([20]byte, bool, error) {
	info, found, err := t.ReadPublicKey(slot)
	if err != nil || !found {
		return [20]byte{}, found, err
	}
	return ecsig.DeriveAddress(info.Public.X, info.Public.Y), true, nil
}

// StoreCertificate writes a DER certificate into the slot's data
// object using the yubico-piv-tool binary, which needs exclusive
// access to the device. The connection is released for the duration
// and reacquired afterwards; the applet is re-selected because card
// state does not survive the cycle.
func (t *Token) StoreCertificate(slot Slot, der []byte) error {
	s, err := t.ready()
	if err != nil {
		return err
	}

	f, err := os.CreateTemp("", "pivsign-cert-*.der")
	if err != nil {
		return fmt.Errorf("creating certificate file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(der); err != nil {
		f.Close()
		return fmt.Errorf("writing certificate file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing certificate file: %w", err)
	}

	importErr := t.manager.Released(externalToolPause, func() error {
		cmd := exec.Command("yubico-piv-tool",
			"-a", "import-certificate",
			"-s", fmt.Sprintf("%02x", byte(slot)),
			"-K", "DER",
			"-i", f.Name())
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("yubico-piv-tool: %w: %s", err, out)
		}
		return nil
	})

	// The cycle invalidated applet selection and authentications
	// regardless of the import outcome.
	s.Reset()
	if err := s.Select(); err != nil {
		return fmt.Errorf("re-selecting applet after import: %w", err)
	}
	return importErr
}
