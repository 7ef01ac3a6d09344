package piv

import (
	"errors"
	"fmt"

	"github.com/pivkey/pivsign/pkg/iso7816"
)

var (
	// ErrNotSelected means an operation was attempted before the PIV
	// applet was selected on the card.
	ErrNotSelected = errors.New("piv: applet not selected")

	// ErrPINRequired means a private-key operation was attempted
	// without a verified PIN in the current session.
	ErrPINRequired = errors.New("piv: PIN verification required")

	// ErrManagementRequired means an administrative operation was
	// attempted without management-key authentication.
	ErrManagementRequired = errors.New("piv: management key authentication required")

	// ErrPINBlocked means the retry counter is exhausted and the card
	// refuses further PIN attempts.
	ErrPINBlocked = errors.New("piv: PIN blocked")

	// ErrAuthFailed means the card failed the mutual-authentication
	// challenge: it does not hold the expected management key.
	ErrAuthFailed = errors.New("piv: card failed mutual authentication")

	// ErrInvalidDigest means the input to a sign operation is not a
	// 32-byte digest.
	ErrInvalidDigest = errors.New("piv: digest must be 32 bytes")
)

// AuthError reports a rejected PIN along with the retry counter the
// card returned in the 63CX status word.
type AuthError struct {
	Retries int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("piv: wrong PIN, %d retries remaining", e.Retries)
}

// StatusError surfaces a card status word the session has no specific
// mapping for, preserving the raw value for the caller.
type StatusError struct {
	Op string
	SW iso7816.StatusWord
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("piv: %s: %s", e.Op, e.SW.Verbose())
}

// statusError maps a terminal status word to an error, or nil on
// success.
func statusError(op string, sw iso7816.StatusWord) error {
	if sw.IsSuccess() {
		return nil
	}
	return &StatusError{Op: op, SW: sw}
}
