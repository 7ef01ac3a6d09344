package piv

import "fmt"

// Slot identifies a PIV key slot. The slot byte doubles as the key
// reference in GENERATE ASYMMETRIC and GENERAL AUTHENTICATE commands;
// the associated certificate lives in a separate data object addressed
// by a 3-byte identifier.
type Slot byte

const (
	// SlotAuthentication (9A) holds the PIV Authentication key. Its
	// private-key operations require a verified PIN.
	SlotAuthentication Slot = 0x9A

	// SlotSignature (9C) holds the Digital Signature key.
	SlotSignature Slot = 0x9C

	// SlotKeyManagement (9D) holds the Key Management key.
	SlotKeyManagement Slot = 0x9D

	// SlotCardAuthentication (9E) holds the Card Authentication key,
	// usable without PIN.
	SlotCardAuthentication Slot = 0x9E
)

// certificateObjects maps each slot to the data-object identifier of
// its X.509 certificate, per SP 800-73-4 part 1.
var certificateObjects = map[Slot][]byte{
	SlotAuthentication:     {0x5F, 0xC1, 0x05},
	SlotSignature:          {0x5F, 0xC1, 0x0A},
	SlotKeyManagement:      {0x5F, 0xC1, 0x0B},
	SlotCardAuthentication: {0x5F, 0xC1, 0x01},
}

// Valid reports whether the slot is one of the four standard PIV key
// slots.
func (s Slot) Valid() bool {
	_, ok := certificateObjects[s]
	return ok
}

// Object returns the 3-byte data-object identifier of the slot's
// certificate.
func (s Slot) Object() []byte {
	obj, ok := certificateObjects[s]
	if !ok {
		return nil
	}
	return obj
}

func (s Slot) String() string {
	switch s {
	case SlotAuthentication:
		return "9A (authentication)"
	case SlotSignature:
		return "9C (signature)"
	case SlotKeyManagement:
		return "9D (key management)"
	case SlotCardAuthentication:
		return "9E (card authentication)"
	}
	return fmt.Sprintf("%02X (unknown)", byte(s))
}

// ParseSlot resolves a user-supplied slot name ("9a", "9C", ...) to a
// Slot.
func ParseSlot(name string) (Slot, error) {
	switch name {
	case "9a", "9A":
		return SlotAuthentication, nil
	case "9c", "9C":
		return SlotSignature, nil
	case "9d", "9D":
		return SlotKeyManagement, nil
	case "9e", "9E":
		return SlotCardAuthentication, nil
	}
	return 0, fmt.Errorf("piv: unknown slot %q", name)
}
