package valueobject

import (
	"crypto/ed25519"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/presale/backend/internal/domain/shared"
)

// IdentitySize is the fixed width of every identity on the wire and in signed messages
const IdentitySize = 32

// Identity is a 32-byte account key: a wallet public key, a token mint or a
// derived record address. Its text form is base58.
type Identity [IdentitySize]byte

// ZeroIdentity is the all-zero identity, never a valid caller
var ZeroIdentity Identity

// ParseIdentity decodes a base58 string into an Identity
func ParseIdentity(s string) (Identity, error) {
	var id Identity
	raw, err := base58.Decode(s)
	if err != nil || len(raw) != IdentitySize {
		return id, shared.ErrInvalidIdentity
	}
	copy(id[:], raw)
	return id, nil
}

// MustParseIdentity is ParseIdentity for constants and tests
func MustParseIdentity(s string) Identity {
	id, err := ParseIdentity(s)
	if err != nil {
		panic(fmt.Sprintf("invalid identity %q: %v", s, err))
	}
	return id
}

// IdentityFromBytes copies a 32-byte slice into an Identity
func IdentityFromBytes(b []byte) (Identity, error) {
	var id Identity
	if len(b) != IdentitySize {
		return id, shared.ErrInvalidIdentity
	}
	copy(id[:], b)
	return id, nil
}

// IdentityFromPublicKey converts an ed25519 public key
func IdentityFromPublicKey(pub ed25519.PublicKey) (Identity, error) {
	return IdentityFromBytes(pub)
}

// String returns the base58 form
func (id Identity) String() string {
	return base58.Encode(id[:])
}

// Bytes returns a copy of the raw bytes
func (id Identity) Bytes() []byte {
	b := make([]byte, IdentitySize)
	copy(b, id[:])
	return b
}

// PublicKey views the identity as an ed25519 public key
func (id Identity) PublicKey() ed25519.PublicKey {
	return ed25519.PublicKey(id.Bytes())
}

// IsZero reports whether the identity is unset
func (id Identity) IsZero() bool {
	return id == ZeroIdentity
}

// Equals compares two identities
func (id Identity) Equals(other Identity) bool {
	return id == other
}

// MarshalJSON encodes the identity as a base58 string
func (id Identity) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON decodes a base58 string
func (id *Identity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseIdentity(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Value implements driver.Valuer; identities are stored as base58 text
func (id Identity) Value() (driver.Value, error) {
	return id.String(), nil
}

// Scan implements sql.Scanner
func (id *Identity) Scan(value any) error {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case nil:
		*id = ZeroIdentity
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Identity", value)
	}
	parsed, err := ParseIdentity(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
