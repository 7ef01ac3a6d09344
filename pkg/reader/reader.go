// Package reader owns the PC/SC side of the system: finding a
// compatible smart-card reader, waiting for a card, and holding the
// single card connection every APDU exchange goes through.
//
// PC/SC access is exclusive per consumer, so the Manager also provides
// the scoped release/reacquire cycle an external provisioning tool
// needs to briefly own the same device.
package reader

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ebfe/scard"
)

// vendorPrefix identifies compatible readers by name. YubiKeys enumerate
// as "Yubico YubiKey ..." on every platform.
const vendorPrefix = "Yubico"

const (
	// discoveryTimeout bounds the wait for a compatible reader with a
	// present card.
	discoveryTimeout = 10 * time.Second

	// discoveryPollInterval paces ListReaders retries while no
	// compatible reader is attached at all.
	discoveryPollInterval = 500 * time.Millisecond
)

var (
	// ErrReaderNotFound means no compatible reader presented a card
	// within the discovery timeout.
	ErrReaderNotFound = errors.New("reader: no compatible reader found")

	// ErrNotConnected means an exchange was attempted without an
	// established card connection.
	ErrNotConnected = errors.New("reader: not connected")
)

// Manager owns the PC/SC context and the card connection. All methods
// are serialized; the card channel supports one exchange at a time.
type Manager struct {
	mu   sync.Mutex
	ctx  *scard.Context
	card *scard.Card
	name string
}

// New creates a disconnected Manager.
func New() *Manager {
	return &Manager{}
}

// Connect discovers the first compatible reader, waits for a card to be
// present, and connects with shared access over T=1. Calling Connect on
// an already connected Manager is a no-op.
func (m *Manager) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectLocked()
}

func (m *Manager) connectLocked() error {
	if m.card != nil {
		return nil
	}

	ctx, err := scard.EstablishContext()
	if err != nil {
		return fmt.Errorf("establishing PC/SC context: %w", err)
	}

	name, err := waitForCard(ctx, discoveryTimeout)
	if err != nil {
		ctx.Release()
		return err
	}

	card, err := ctx.Connect(name, scard.ShareShared, scard.ProtocolT1)
	if err != nil {
		ctx.Release()
		return fmt.Errorf("connecting to %q: %w", name, err)
	}

	m.ctx = ctx
	m.card = card
	m.name = name
	return nil
}

// waitForCard blocks until a compatible reader reports a present card,
// or the timeout elapses.
func waitForCard(ctx *scard.Context, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", ErrReaderNotFound
		}

		readers, err := ctx.ListReaders()
		if err != nil && !errors.Is(err, scard.ErrNoReadersAvailable) {
			return "", fmt.Errorf("listing readers: %w", err)
		}

		compatible := filterReaders(readers)
		if len(compatible) == 0 {
			time.Sleep(discoveryPollInterval)
			continue
		}

		states := make([]scard.ReaderState, len(compatible))
		for i, r := range compatible {
			states[i].Reader = r
			states[i].CurrentState = scard.StateUnaware
		}

		if err := ctx.GetStatusChange(states, remaining); err != nil && !errors.Is(err, scard.ErrTimeout) {
			return "", fmt.Errorf("waiting for card presence: %w", err)
		}
		for i := range states {
			if states[i].EventState&scard.StatePresent != 0 {
				return states[i].Reader, nil
			}
		}
	}
}

func filterReaders(readers []string) []string {
	var out []string
	for _, r := range readers {
		if strings.Contains(r, vendorPrefix) {
			out = append(out, r)
		}
	}
	return out
}

// Disconnect tears down the card connection and the PC/SC context.
// Redundant calls are allowed and succeed.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disconnectLocked()
}

func (m *Manager) disconnectLocked() error {
	var errs []error
	if m.card != nil {
		if err := m.card.Disconnect(scard.LeaveCard); err != nil {
			errs = append(errs, fmt.Errorf("disconnecting card: %w", err))
		}
		m.card = nil
	}
	if m.ctx != nil {
		if err := m.ctx.Release(); err != nil {
			errs = append(errs, fmt.Errorf("releasing context: %w", err))
		}
		m.ctx = nil
	}
	m.name = ""
	return errors.Join(errs...)
}

// Transmit sends one raw command APDU and returns the raw response.
// It implements the transport interface the APDU client drives.
func (m *Manager) Transmit(cmd []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.card == nil {
		return nil, ErrNotConnected
	}
	return m.card.Transmit(cmd)
}

// Connected reports whether a card connection is currently held.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.card != nil
}

// Reader returns the name of the connected reader, or "".
func (m *Manager) Reader() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name
}

// Released runs fn with the device fully released so an external tool
// can take exclusive PC/SC access, then reacquires the connection on
// every exit path. The pause gives the OS daemon time to drop the old
// handle before the external tool grabs it.
//
// Must not be called while an APDU exchange is pending; the mutex is
// deliberately not held across fn.
func (m *Manager) Released(pause time.Duration, fn func() error) error {
	if err := m.Disconnect(); err != nil {
		return fmt.Errorf("releasing device: %w", err)
	}
	time.Sleep(pause)

	fnErr := fn()

	if err := m.Connect(); err != nil {
		return errors.Join(fnErr, fmt.Errorf("reacquiring device: %w", err))
	}
	return fnErr
}
