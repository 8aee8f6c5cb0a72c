package vesting

import (
	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/shared/safemath"
	"github.com/presale/backend/internal/domain/shared/valueobject"
)

// AggregateType is the aggregate name carried by vesting events
const AggregateType = "VestingSchedule"

// Schedule is a beneficiary's linear grant. Released only grows, never
// past TotalAmount, and is frozen once the schedule is revoked.
type Schedule struct {
	shared.BaseAggregateRoot
	Address       valueobject.Identity
	Beneficiary   valueobject.Identity
	Owner         valueobject.Identity // administrator allowed to revoke
	Asset         valueobject.Identity // token mint being vested
	Vault         valueobject.Identity // funds claims
	Treasury      valueobject.Identity // receives unvested tokens on revoke
	TotalAmount   uint64
	Released      uint64
	StartTime     int64
	CliffDuration uint64
	Duration      uint64
	Revocable     bool
	Revoked       bool
}

// CreateParams carries the fields of a new schedule
type CreateParams struct {
	Address       valueobject.Identity
	Beneficiary   valueobject.Identity
	Owner         valueobject.Identity
	Asset         valueobject.Identity
	Vault         valueobject.Identity
	Treasury      valueobject.Identity
	TotalAmount   uint64
	StartTime     int64
	CliffDuration uint64
	Duration      uint64
	Revocable     bool
}

// Create validates the terms and returns a schedule with nothing released
func Create(p CreateParams) (*Schedule, error) {
	if p.TotalAmount == 0 {
		return nil, shared.ErrInvalidAllocation
	}
	if p.Duration == 0 {
		return nil, shared.ErrInvalidDuration
	}
	if p.CliffDuration > p.Duration {
		return nil, shared.ErrInvalidCliff
	}
	if p.Beneficiary.IsZero() || p.Owner.IsZero() {
		return nil, shared.ErrInvalidIdentity
	}

	s := &Schedule{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Address:           p.Address,
		Beneficiary:       p.Beneficiary,
		Owner:             p.Owner,
		Asset:             p.Asset,
		Vault:             p.Vault,
		Treasury:          p.Treasury,
		TotalAmount:       p.TotalAmount,
		StartTime:         p.StartTime,
		CliffDuration:     p.CliffDuration,
		Duration:          p.Duration,
		Revocable:         p.Revocable,
	}
	s.RecordEvent(NewVestingCreatedEvent(s))
	return s, nil
}

// Terms returns the release-curve inputs
func (s *Schedule) Terms() Terms {
	return Terms{
		TotalAmount:   s.TotalAmount,
		StartTime:     s.StartTime,
		CliffDuration: s.CliffDuration,
		Duration:      s.Duration,
	}
}

// VestedAt returns the vested amount at now
func (s *Schedule) VestedAt(now int64) (uint64, error) {
	return VestedAmount(s.Terms(), now)
}

// ClaimableAt returns vested minus released, zero once revoked
func (s *Schedule) ClaimableAt(now int64) (uint64, error) {
	if s.Revoked {
		return 0, nil
	}
	vested, err := s.VestedAt(now)
	if err != nil {
		return 0, err
	}
	return safemath.Sub(vested, s.Released)
}

// PrepareClaim validates a claim and returns the amount to transfer. It does
// not mutate the schedule; call CommitClaim once the transfer succeeded.
func (s *Schedule) PrepareClaim(caller valueobject.Identity, now int64) (uint64, error) {
	if s.Revoked {
		return 0, shared.ErrVestingRevoked
	}
	if err := shared.RequireCapability(caller, s.Beneficiary); err != nil {
		return 0, err
	}
	vested, err := s.VestedAt(now)
	if err != nil {
		return 0, err
	}
	claimable, err := safemath.Sub(vested, s.Released)
	if err != nil {
		return 0, err
	}
	if claimable == 0 {
		return 0, shared.ErrNothingToClaim
	}
	return claimable, nil
}

// CommitClaim records a transferred claim
func (s *Schedule) CommitClaim(amount uint64, now int64) error {
	if s.Revoked {
		return shared.ErrVestingRevoked
	}
	released, err := safemath.Add(s.Released, amount)
	if err != nil {
		return err
	}
	if released > s.TotalAmount {
		return shared.ErrOverflow
	}
	s.Released = released
	s.Apply(NewVestingClaimedEvent(s, amount, now))
	return nil
}

// PrepareRevoke validates a revocation and returns the unvested amount to
// send back to the treasury. It does not mutate the schedule.
func (s *Schedule) PrepareRevoke(caller valueobject.Identity, now int64) (uint64, error) {
	if err := shared.RequireCapability(caller, s.Owner); err != nil {
		return 0, err
	}
	if !s.Revocable {
		return 0, shared.ErrNotRevocable
	}
	if s.Revoked {
		return 0, shared.ErrAlreadyRevoked
	}
	vested, err := s.VestedAt(now)
	if err != nil {
		return 0, err
	}
	return safemath.Sub(s.TotalAmount, vested)
}

// CommitRevoke marks the schedule revoked after the unvested tokens moved
func (s *Schedule) CommitRevoke(unvested uint64, now int64) error {
	if s.Revoked {
		return shared.ErrAlreadyRevoked
	}
	s.Revoked = true
	s.Apply(NewVestingRevokedEvent(s, unvested, now))
	return nil
}
