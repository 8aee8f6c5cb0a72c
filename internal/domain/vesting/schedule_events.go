package vesting

import (
	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/shared/valueobject"
)

// Event types
const (
	EventTypeVestingCreated = "VestingCreated"
	EventTypeVestingClaimed = "VestingClaimed"
	EventTypeVestingRevoked = "VestingRevoked"
)

// VestingCreatedEvent is raised when an administrator grants a schedule
type VestingCreatedEvent struct {
	shared.BaseDomainEvent
	Beneficiary   valueobject.Identity `json:"beneficiary"`
	Owner         valueobject.Identity `json:"owner"`
	TotalAmount   uint64               `json:"total_amount"`
	StartTime     int64                `json:"start_time"`
	CliffDuration uint64               `json:"cliff_duration"`
	Duration      uint64               `json:"duration"`
	Revocable     bool                 `json:"revocable"`
}

// EventType returns the event type name
func (e *VestingCreatedEvent) EventType() string {
	return EventTypeVestingCreated
}

// NewVestingCreatedEvent creates a new VestingCreatedEvent
func NewVestingCreatedEvent(s *Schedule) *VestingCreatedEvent {
	return &VestingCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeVestingCreated, AggregateType, s.Address.String()),
		Beneficiary:     s.Beneficiary,
		Owner:           s.Owner,
		TotalAmount:     s.TotalAmount,
		StartTime:       s.StartTime,
		CliffDuration:   s.CliffDuration,
		Duration:        s.Duration,
		Revocable:       s.Revocable,
	}
}

// VestingClaimedEvent is raised after a successful claim
type VestingClaimedEvent struct {
	shared.BaseDomainEvent
	Beneficiary valueobject.Identity `json:"beneficiary"`
	Amount      uint64               `json:"amount"`
	Released    uint64               `json:"released"`
	ClaimedAt   int64                `json:"claimed_at"`
}

// EventType returns the event type name
func (e *VestingClaimedEvent) EventType() string {
	return EventTypeVestingClaimed
}

// NewVestingClaimedEvent creates a new VestingClaimedEvent
func NewVestingClaimedEvent(s *Schedule, amount uint64, now int64) *VestingClaimedEvent {
	return &VestingClaimedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeVestingClaimed, AggregateType, s.Address.String()),
		Beneficiary:     s.Beneficiary,
		Amount:          amount,
		Released:        s.Released,
		ClaimedAt:       now,
	}
}

// VestingRevokedEvent is raised after a revocation
type VestingRevokedEvent struct {
	shared.BaseDomainEvent
	Beneficiary valueobject.Identity `json:"beneficiary"`
	Unvested    uint64               `json:"unvested"`
	Released    uint64               `json:"released"`
	RevokedAt   int64                `json:"revoked_at"`
}

// EventType returns the event type name
func (e *VestingRevokedEvent) EventType() string {
	return EventTypeVestingRevoked
}

// NewVestingRevokedEvent creates a new VestingRevokedEvent
func NewVestingRevokedEvent(s *Schedule, unvested uint64, now int64) *VestingRevokedEvent {
	return &VestingRevokedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeVestingRevoked, AggregateType, s.Address.String()),
		Beneficiary:     s.Beneficiary,
		Unvested:        unvested,
		Released:        s.Released,
		RevokedAt:       now,
	}
}
