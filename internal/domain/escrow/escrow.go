package escrow

import (
	"context"

	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/shared/valueobject"
)

// AggregateType is the aggregate name carried by escrow events
const AggregateType = "PurchaseEscrow"

// PurchaseEscrow records the allocation a buyer obtained in a sale. It is
// created once per (sale, buyer) and its existence is the replay guard for
// vouchers. Allocation never changes after creation.
type PurchaseEscrow struct {
	shared.BaseAggregateRoot
	Address    valueobject.Identity
	Sale       valueobject.Identity
	Buyer      valueobject.Identity
	Allocation uint64
	Claimed    uint64
	Payment    uint64 // native amount paid, kept for audit
	Nonce      uint64 // nonce of the voucher that created it
}

// CreateParams carries the fields of a new escrow
type CreateParams struct {
	Address    valueobject.Identity
	Sale       valueobject.Identity
	Buyer      valueobject.Identity
	Allocation uint64
	Payment    uint64
	Nonce      uint64
}

// Create builds the escrow. existing is whatever is stored at the escrow
// address (nil when nothing is); an entry with a nonzero allocation can never
// be initialized again.
func Create(p CreateParams, existing *PurchaseEscrow) (*PurchaseEscrow, error) {
	if existing != nil && existing.Allocation > 0 {
		return nil, shared.ErrVoucherAlreadyUsed
	}
	if p.Allocation == 0 {
		return nil, shared.ErrInvalidAllocation
	}

	e := &PurchaseEscrow{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Address:           p.Address,
		Sale:              p.Sale,
		Buyer:             p.Buyer,
		Allocation:        p.Allocation,
		Payment:           p.Payment,
		Nonce:             p.Nonce,
	}
	e.RecordEvent(NewAllocationPurchasedEvent(e))
	return e, nil
}

// Unclaimed returns the allocation not yet delivered to the buyer
func (e *PurchaseEscrow) Unclaimed() uint64 {
	return e.Allocation - e.Claimed
}

// EscrowRepository persists escrows keyed by their derived address
type EscrowRepository interface {
	// FindByAddress returns nil, nil when no escrow exists
	FindByAddress(ctx context.Context, address valueobject.Identity) (*PurchaseEscrow, error)
	// FindBySaleAndBuyer returns nil, nil when no escrow exists
	FindBySaleAndBuyer(ctx context.Context, sale, buyer valueobject.Identity) (*PurchaseEscrow, error)
	// Create inserts the escrow; a second insert for the same pair fails
	Create(ctx context.Context, e *PurchaseEscrow) error
	// ListBySale returns all escrows of a sale
	ListBySale(ctx context.Context, sale valueobject.Identity) ([]PurchaseEscrow, error)
}
