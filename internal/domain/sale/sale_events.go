package sale

import (
	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/shared/valueobject"
)

// Event types
const (
	EventTypeSaleOpened     = "SaleOpened"
	EventTypeSupplyReserved = "SaleSupplyReserved"
)

// SaleOpenedEvent is raised when an owner opens a sale
type SaleOpenedEvent struct {
	shared.BaseDomainEvent
	Sale           valueobject.Identity `json:"sale"`
	Owner          valueobject.Identity `json:"owner"`
	Asset          valueobject.Identity `json:"asset"`
	Price          uint64               `json:"price"`
	StartTime      int64                `json:"start_time"`
	EndTime        int64                `json:"end_time"`
	TotalAllocated uint64               `json:"total_allocated"`
}

// EventType returns the event type name
func (e *SaleOpenedEvent) EventType() string {
	return EventTypeSaleOpened
}

// NewSaleOpenedEvent creates a new SaleOpenedEvent
func NewSaleOpenedEvent(s *Sale) *SaleOpenedEvent {
	return &SaleOpenedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSaleOpened, AggregateType, s.Address.String()),
		Sale:            s.Address,
		Owner:           s.Owner,
		Asset:           s.Asset,
		Price:           s.Price,
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		TotalAllocated:  s.TotalAllocated,
	}
}

// SupplyReservedEvent is raised when a purchase reserves supply
type SupplyReservedEvent struct {
	shared.BaseDomainEvent
	Sale      valueobject.Identity `json:"sale"`
	Amount    uint64               `json:"amount"`
	Sold      uint64               `json:"sold"`
	Remaining uint64               `json:"remaining"`
}

// EventType returns the event type name
func (e *SupplyReservedEvent) EventType() string {
	return EventTypeSupplyReserved
}

// NewSupplyReservedEvent creates a new SupplyReservedEvent
func NewSupplyReservedEvent(s *Sale, amount uint64) *SupplyReservedEvent {
	return &SupplyReservedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSupplyReserved, AggregateType, s.Address.String()),
		Sale:            s.Address,
		Amount:          amount,
		Sold:            s.Sold,
		Remaining:       s.Remaining(),
	}
}
