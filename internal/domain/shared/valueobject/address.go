package valueobject

import (
	"crypto/sha256"
	"errors"

	"filippo.io/edwards25519"
)

// Seed tags for record addresses
var (
	SaleSeed         = []byte("sale_config")
	EscrowSeed       = []byte("buyer_escrow")
	VestingSeed      = []byte("vesting")
	VestingVaultSeed = []byte("vesting_vault")
)

const (
	maxSeeds     = 16
	maxSeedBytes = 32
	pdaMarker    = "ProgramDerivedAddress"
)

var (
	ErrMaxSeedLengthExceeded = errors.New("address: seed longer than 32 bytes")
	ErrTooManySeeds          = errors.New("address: more than 16 seeds")
	ErrNoViableBump          = errors.New("address: no off-curve address for seeds")
)

// Deriver maps tags plus stable identities to record addresses. Addresses
// are program-derived: sha256(seeds || bump || program || marker), searching
// bump downward from 255 until the hash is not a valid curve point, so no
// private key can exist for a record address.
type Deriver struct {
	program Identity
}

// NewDeriver creates a deriver scoped to a program identity
func NewDeriver(program Identity) *Deriver {
	return &Deriver{program: program}
}

// Program returns the program identity the deriver is scoped to
func (d *Deriver) Program() Identity {
	return d.program
}

// FindAddress returns the derived address and the bump that produced it
func (d *Deriver) FindAddress(seeds ...[]byte) (Identity, uint8, error) {
	if len(seeds) >= maxSeeds {
		return ZeroIdentity, 0, ErrTooManySeeds
	}
	for _, s := range seeds {
		if len(s) > maxSeedBytes {
			return ZeroIdentity, 0, ErrMaxSeedLengthExceeded
		}
	}
	for bump := 255; bump >= 0; bump-- {
		h := sha256.New()
		for _, s := range seeds {
			h.Write(s)
		}
		h.Write([]byte{byte(bump)})
		h.Write(d.program[:])
		h.Write([]byte(pdaMarker))

		var candidate Identity
		copy(candidate[:], h.Sum(nil))
		if !isOnCurve(candidate) {
			return candidate, uint8(bump), nil
		}
	}
	return ZeroIdentity, 0, ErrNoViableBump
}

// SaleAddress derives the sale record address from its owner
func (d *Deriver) SaleAddress(owner Identity) (Identity, error) {
	addr, _, err := d.FindAddress(SaleSeed, owner[:])
	return addr, err
}

// EscrowAddress derives the escrow record address from (sale, buyer)
func (d *Deriver) EscrowAddress(sale, buyer Identity) (Identity, error) {
	addr, _, err := d.FindAddress(EscrowSeed, sale[:], buyer[:])
	return addr, err
}

// VestingAddress derives the vesting record address from its beneficiary
func (d *Deriver) VestingAddress(beneficiary Identity) (Identity, error) {
	addr, _, err := d.FindAddress(VestingSeed, beneficiary[:])
	return addr, err
}

// VestingVaultAddress derives the token vault that funds a vesting schedule
func (d *Deriver) VestingVaultAddress(vesting Identity) (Identity, error) {
	addr, _, err := d.FindAddress(VestingVaultSeed, vesting[:])
	return addr, err
}

func isOnCurve(b Identity) bool {
	_, err := new(edwards25519.Point).SetBytes(b[:])
	return err == nil
}
