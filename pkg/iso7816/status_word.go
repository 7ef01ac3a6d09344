package iso7816

import (
	"fmt"
)

// Dynamic Status Word logic:
//
// Most Status Words are static 2-byte values (e.g. 0x9000), but ISO
// 7816-4 defines ranges where the value carries context:
//
// 1. '61XX' (SW1=0x61): process completed, XX more bytes available
//    for retrieval with GET RESPONSE.
// 2. '6CXX' (SW1=0x6C): wrong length, XX is the correct Le.
// 3. '63CX': warning with a counter in the low nibble. The PIV applet
//    uses this on VERIFY to report remaining PIN attempts.

// StatusWord represents the two-byte status (SW1-SW2) terminating every
// card response.
type StatusWord uint16

// NewStatusWord creates a StatusWord from the two trailer bytes.
func NewStatusWord(sw1, sw2 byte) StatusWord {
	return StatusWord(uint16(sw1)<<8 | uint16(sw2))
}

// SW1 returns the first byte (high byte) of the status word.
func (sw StatusWord) SW1() byte {
	return byte(sw >> 8)
}

// SW2 returns the second byte (low byte) of the status word.
func (sw StatusWord) SW2() byte {
	return byte(sw)
}

// IsSuccess returns true for 9000 and for 61XX, which is a success
// with pending response data.
func (sw StatusWord) IsSuccess() bool {
	return sw == SWNoError || sw.SW1() == 0x61
}

// HasMoreData reports the 61XX continuation case.
func (sw StatusWord) HasMoreData() bool {
	return sw.SW1() == 0x61
}

// IsWrongLength reports the 6CXX retry case.
func (sw StatusWord) IsWrongLength() bool {
	return sw.SW1() == 0x6C
}

// IsCounter checks whether SW2 carries a retry counter (63CX).
func (sw StatusWord) IsCounter() bool {
	return sw.SW1() == 0x63 && sw.SW2()&0xF0 == 0xC0
}

// Counter returns the retry counter from a 63CX status word.
func (sw StatusWord) Counter() int {
	return int(sw.SW2() & 0x0F)
}

// Standard status word codes relevant to the PIV exchanges.
const (
	SWNoError StatusWord = 0x9000

	SWWarnCounter0 StatusWord = 0x63C0

	SWErrMemoryFailure       StatusWord = 0x6581
	SWErrWrongLength         StatusWord = 0x6700
	SWErrSecurityStatus      StatusWord = 0x6982
	SWErrAuthMethodBlocked   StatusWord = 0x6983
	SWErrConditionsNotMet    StatusWord = 0x6985
	SWErrIncorrectParamsData StatusWord = 0x6A80
	SWErrFuncNotSupported    StatusWord = 0x6A81
	SWErrFileNotFound        StatusWord = 0x6A82
	SWErrNotEnoughMemory     StatusWord = 0x6A84
	SWErrIncorrectParamsP1P2 StatusWord = 0x6A86
	SWErrRefDataNotFound     StatusWord = 0x6A88
	SWErrWrongP1P2           StatusWord = 0x6B00
	SWErrInsInvalid          StatusWord = 0x6D00
	SWErrClaNotSupported     StatusWord = 0x6E00
	SWErrUnknown             StatusWord = 0x6F00
)

var statusDescriptions = map[StatusWord]string{
	SWNoError:                "No error",
	SWErrMemoryFailure:       "Memory failure",
	SWErrWrongLength:         "Wrong length",
	SWErrSecurityStatus:      "Security status not satisfied",
	SWErrAuthMethodBlocked:   "Authentication method blocked",
	SWErrConditionsNotMet:    "Conditions of use not satisfied",
	SWErrIncorrectParamsData: "Incorrect parameters in data field",
	SWErrFuncNotSupported:    "Function not supported",
	SWErrFileNotFound:        "File or referenced data not found",
	SWErrNotEnoughMemory:     "Not enough memory space",
	SWErrIncorrectParamsP1P2: "Incorrect parameters P1-P2",
	SWErrRefDataNotFound:     "Referenced data not found",
	SWErrWrongP1P2:           "Wrong parameters P1-P2",
	SWErrInsInvalid:          "Instruction not supported or invalid",
	SWErrClaNotSupported:     "Class not supported",
	SWErrUnknown:             "No precise diagnosis",
}

// Verbose returns a human-readable description of the status word,
// resolving the dynamic ranges before the static table.
func (sw StatusWord) Verbose() string {
	switch {
	case sw.HasMoreData():
		return fmt.Sprintf("Process completed, %d bytes available", sw.SW2())
	case sw.IsWrongLength():
		return fmt.Sprintf("Wrong length, correct Le is %d", sw.SW2())
	case sw.IsCounter():
		return fmt.Sprintf("Warning: counter = %d", sw.Counter())
	}

	if desc, ok := statusDescriptions[sw]; ok {
		return fmt.Sprintf("[%04X] %s", uint16(sw), desc)
	}
	return fmt.Sprintf("[%04X] %s", uint16(sw), sw.genericCategoryDescription())
}

// genericCategoryDescription provides a fallback description based on SW1.
func (sw StatusWord) genericCategoryDescription() string {
	switch sw.SW1() {
	case 0x62:
		return "Warning: NV memory unchanged"
	case 0x63:
		return "Warning: NV memory changed"
	case 0x64:
		return "Execution error: NV memory unchanged"
	case 0x65:
		return "Execution error: NV memory changed"
	case 0x66:
		return "Execution error: security issue"
	case 0x68:
		return "Checking error: function not supported"
	case 0x69:
		return "Checking error: command not allowed"
	case 0x6A:
		return "Checking error: wrong parameters"
	default:
		return "Unknown status"
	}
}
