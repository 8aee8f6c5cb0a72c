package escrow

import (
	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/shared/valueobject"
)

// EventTypeAllocationPurchased is raised when a purchase creates an escrow
const EventTypeAllocationPurchased = "AllocationPurchased"

// AllocationPurchasedEvent is raised when a purchase creates an escrow
type AllocationPurchasedEvent struct {
	shared.BaseDomainEvent
	Sale       valueobject.Identity `json:"sale"`
	Buyer      valueobject.Identity `json:"buyer"`
	Allocation uint64               `json:"allocation"`
	Payment    uint64               `json:"payment"`
	Nonce      uint64               `json:"nonce"`
}

// EventType returns the event type name
func (e *AllocationPurchasedEvent) EventType() string {
	return EventTypeAllocationPurchased
}

// NewAllocationPurchasedEvent creates a new AllocationPurchasedEvent
func NewAllocationPurchasedEvent(e *PurchaseEscrow) *AllocationPurchasedEvent {
	return &AllocationPurchasedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAllocationPurchased, AggregateType, e.Address.String()),
		Sale:            e.Sale,
		Buyer:           e.Buyer,
		Allocation:      e.Allocation,
		Payment:         e.Payment,
		Nonce:           e.Nonce,
	}
}
