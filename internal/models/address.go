package models

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLength is the length of a ledger account identifier in bytes.
const AddressLength = 20

// Address is a fixed-width ledger account identifier, compared by value.
type Address [AddressLength]byte

// ParseAddress decodes a hex-encoded address, with or without the 0x prefix.
func ParseAddress(s string) (Address, error) {
	var addr Address

	normalized := strings.TrimPrefix(s, "0x")
	normalized = strings.TrimPrefix(normalized, "0X")

	if len(normalized) != AddressLength*2 {
		return addr, fmt.Errorf("invalid address length: expected %d characters (without 0x), got %d", AddressLength*2, len(normalized))
	}

	raw, err := hex.DecodeString(normalized)
	if err != nil {
		return addr, fmt.Errorf("invalid hex address: %w", err)
	}

	copy(addr[:], raw)
	return addr, nil
}

// MustParseAddress is ParseAddress panicking on invalid input.
// Intended for constants and tests only.
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// Hex returns the 0x-prefixed lowercase hex encoding of the address.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) String() string {
	return a.Hex()
}

// IsZero reports whether the address is the all-zero address.
func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	addr, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = addr
	return nil
}

// Value implements driver.Valuer so addresses are stored as hex strings.
func (a Address) Value() (driver.Value, error) {
	return a.Hex(), nil
}

// Scan implements sql.Scanner for the hex string representation.
func (a *Address) Scan(value interface{}) error {
	switch v := value.(type) {
	case string:
		return a.UnmarshalText([]byte(v))
	case []byte:
		return a.UnmarshalText(v)
	default:
		return fmt.Errorf("cannot scan %T into Address", value)
	}
}
