// Package address provides the identity primitive shared by every component
// of the pool: users, reserve assets, the backstop actor, and the pool
// contract itself are all addressed the same way.
package address

import (
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
)

// Prefix distinguishes the human-readable namespace an address belongs to.
// The pool core never branches on prefix for authorization; it is purely a
// display/debugging aid, same role it plays in the teacher's crypto package.
type Prefix string

const (
	// UserPrefix identifies a lender/borrower/filler account.
	UserPrefix Prefix = "pool"
	// AssetPrefix identifies a reserve's underlying token.
	AssetPrefix Prefix = "asset"
	// ContractPrefix identifies the pool or backstop contract itself.
	ContractPrefix Prefix = "ctr"
)

// Address is a 20-byte identifier carrying a human-readable prefix.
type Address struct {
	prefix Prefix
	bytes  [20]byte
}

// New constructs an Address, rejecting any input that isn't exactly 20 bytes.
func New(prefix Prefix, b []byte) (Address, error) {
	if len(b) != 20 {
		return Address{}, fmt.Errorf("address: must be 20 bytes, got %d", len(b))
	}
	var a Address
	a.prefix = prefix
	copy(a.bytes[:], b)
	return a, nil
}

// MustNew constructs an Address and panics on invalid input. Reserved for
// fixture/test construction where the input is a compile-time constant.
func MustNew(prefix Prefix, b []byte) Address {
	a, err := New(prefix, b)
	if err != nil {
		panic(err)
	}
	return a
}

// IsZero reports whether the address has never been assigned a value.
func (a Address) IsZero() bool {
	return a.prefix == "" && a.bytes == [20]byte{}
}

// Bytes returns a defensive copy of the raw identifier.
func (a Address) Bytes() []byte {
	out := make([]byte, 20)
	copy(out, a.bytes[:])
	return out
}

// Prefix returns the address's human-readable namespace.
func (a Address) Prefix() Prefix {
	return a.prefix
}

// Key returns a comparable, map-key-safe representation (prefix-scoped so the
// same 20 bytes under different prefixes never collide).
func (a Address) Key() string {
	return string(a.prefix) + ":" + string(a.bytes[:])
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// MarshalJSON encodes an Address as its bech32 string form, so it can sit
// directly in persisted config/state records (spec.md §9's storage layout).
func (a Address) MarshalJSON() ([]byte, error) {
	if a.IsZero() {
		return json.Marshal("")
	}
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes an Address from its bech32 string form.
func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*a = Address{}
		return nil
	}
	decoded, err := Decode(s)
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}

// Decode parses a bech32-encoded address string back into an Address.
func Decode(s string) (Address, error) {
	prefix, decoded, err := bech32.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("address: invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("address: error converting bits: %w", err)
	}
	return New(Prefix(prefix), conv)
}
