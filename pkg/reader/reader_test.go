package reader

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterReaders(t *testing.T) {
	readers := []string{
		"Generic EMV Smartcard Reader 0",
		"Yubico YubiKey OTP+FIDO+CCID 00 00",
		"Alcor Micro AU9540 01 00",
		"Yubico YubiKey CCID 01 00",
	}

	got := filterReaders(readers)
	assert.Equal(t, []string{
		"Yubico YubiKey OTP+FIDO+CCID 00 00",
		"Yubico YubiKey CCID 01 00",
	}, got)

	assert.Nil(t, filterReaders(nil))
	assert.Nil(t, filterReaders([]string{"Generic Reader"}))
}

func TestManager_TransmitRequiresConnection(t *testing.T) {
	m := New()

	_, err := m.Transmit([]byte{0x00, 0xA4, 0x04, 0x00})
	assert.True(t, errors.Is(err, ErrNotConnected))
	assert.False(t, m.Connected())
	assert.Empty(t, m.Reader())
}

func TestManager_DisconnectIsRedundantSafe(t *testing.T) {
	m := New()

	assert.NoError(t, m.Disconnect())
	assert.NoError(t, m.Disconnect())
}
