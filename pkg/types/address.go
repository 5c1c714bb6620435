package types

import (
	"fmt"
	"strings"
)

// AddressSize is the length in bytes of a key-derived address before hex encoding.
const AddressSize = 20

// Address identifies the owner of an output.
//
// Key-derived addresses are the 40-character hex form of a truncated public
// key hash, but any non-empty string is accepted and compared byte for byte.
type Address string

// IsZero returns true if the address is empty.
func (a Address) IsZero() bool {
	return a == ""
}

// String returns the address as-is.
func (a Address) String() string {
	return string(a)
}

// Short returns a display form truncated to 12 characters.
func (a Address) Short() string {
	if len(a) <= 12 {
		return string(a)
	}
	return string(a[:12])
}

// IsKeyDerived reports whether the address has the shape of a public key hash.
func (a Address) IsKeyDerived() bool {
	return isHex40(string(a))
}

// ParseAddress trims surrounding whitespace and rejects empty input.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty address")
	}
	return Address(s), nil
}

// isHex40 returns true if s is exactly 40 lowercase hex characters.
func isHex40(s string) bool {
	if len(s) != 2*AddressSize {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}
