package insteon

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Address is a 3-byte Insteon device address.
//
// Format: "AA.BB.CC" (hex, case-insensitive on input, upper-case on output).
type Address [3]byte

// addressLen is the number of bytes in an Insteon address.
const addressLen = 3

// ParseAddress parses a device address string.
//
// Accepts formats:
//   - "1A.2B.3C" (dotted, canonical)
//   - "1A2B3C"   (compact)
//   - "1a:2b:3c" (colon-separated)
//
// Parameters:
//   - s: Address string
//
// Returns:
//   - Address: Parsed address
//   - error: ErrInvalidAddress if parsing fails
func ParseAddress(s string) (Address, error) {
	compact := strings.NewReplacer(".", "", ":", "", " ", "").Replace(strings.TrimSpace(s))
	if len(compact) != addressLen*2 {
		return Address{}, fmt.Errorf("%w: expected 6 hex digits, got %q", ErrInvalidAddress, s)
	}

	raw, err := hex.DecodeString(compact)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q is not hex", ErrInvalidAddress, s)
	}

	var a Address
	copy(a[:], raw)
	return a, nil
}

// MustParseAddress is like ParseAddress but panics on error.
// Intended for constants in tests and examples.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String returns the dotted form, e.g. "1A.2B.3C".
func (a Address) String() string {
	return fmt.Sprintf("%02X.%02X.%02X", a[0], a[1], a[2])
}

// IsZero reports whether the address is 00.00.00.
func (a Address) IsZero() bool {
	return a == Address{}
}
