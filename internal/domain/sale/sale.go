package sale

import (
	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/shared/safemath"
	"github.com/presale/backend/internal/domain/shared/valueobject"
)

// AggregateType is the aggregate name carried by sale events
const AggregateType = "Sale"

// Sale is a fixed-supply token sale. Everything except Sold is immutable
// after Open; Sold only grows and never exceeds TotalAllocated.
type Sale struct {
	shared.BaseAggregateRoot
	Address        valueobject.Identity
	Owner          valueobject.Identity
	Asset          valueobject.Identity // token mint being sold
	Treasury       valueobject.Identity // receives native payment
	Price          uint64               // native base units per token base unit
	StartTime      int64
	EndTime        int64
	TotalAllocated uint64
	Sold           uint64
}

// OpenParams carries the configuration of a new sale
type OpenParams struct {
	Address        valueobject.Identity
	Owner          valueobject.Identity
	Asset          valueobject.Identity
	Treasury       valueobject.Identity
	Price          uint64
	StartTime      int64
	EndTime        int64
	TotalAllocated uint64
}

// Open validates the configuration and creates a sale with nothing sold
func Open(p OpenParams) (*Sale, error) {
	if p.StartTime >= p.EndTime {
		return nil, shared.ErrInvalidTimeRange
	}
	if p.TotalAllocated == 0 {
		return nil, shared.ErrInvalidAllocation
	}
	if p.Address.IsZero() || p.Owner.IsZero() || p.Asset.IsZero() || p.Treasury.IsZero() {
		return nil, shared.ErrInvalidIdentity
	}

	s := &Sale{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Address:           p.Address,
		Owner:             p.Owner,
		Asset:             p.Asset,
		Treasury:          p.Treasury,
		Price:             p.Price,
		StartTime:         p.StartTime,
		EndTime:           p.EndTime,
		TotalAllocated:    p.TotalAllocated,
	}
	s.RecordEvent(NewSaleOpenedEvent(s))
	return s, nil
}

// CheckWindow reports whether now lies inside [StartTime, EndTime]
func (s *Sale) CheckWindow(now int64) error {
	if now < s.StartTime {
		return shared.ErrSaleNotStarted
	}
	if now > s.EndTime {
		return shared.ErrSaleEnded
	}
	return nil
}

// Reserve checks the window and remaining supply and commits sold += amount
// in the same step. Persisting the result belongs to the purchase transaction.
func (s *Sale) Reserve(amount uint64, now int64) error {
	if err := s.CheckWindow(now); err != nil {
		return err
	}
	if amount == 0 {
		return shared.ErrInvalidAllocation
	}
	newSold, err := safemath.Add(s.Sold, amount)
	if err != nil {
		return err
	}
	if newSold > s.TotalAllocated {
		return shared.ErrInsufficientSupply
	}

	s.Sold = newSold
	s.Apply(NewSupplyReservedEvent(s, amount))
	return nil
}

// PaymentFor returns the native amount owed for an allocation
func (s *Sale) PaymentFor(allocation uint64) (uint64, error) {
	return safemath.Mul(allocation, s.Price)
}

// Remaining returns the unsold supply
func (s *Sale) Remaining() uint64 {
	return s.TotalAllocated - s.Sold
}

// IsOwnedBy is the owner capability check
func (s *Sale) IsOwnedBy(caller valueobject.Identity) error {
	return shared.RequireCapability(caller, s.Owner)
}
