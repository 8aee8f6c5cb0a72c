package event

import (
	"github.com/presale/backend/internal/domain/escrow"
	"github.com/presale/backend/internal/domain/sale"
	"github.com/presale/backend/internal/domain/vesting"
	"github.com/presale/backend/internal/domain/voucher"
)

// RegisterPresaleEvents registers every settlement event so the outbox
// processor can decode stored payloads.
func RegisterPresaleEvents(s *EventSerializer) {
	s.Register(sale.EventTypeSaleOpened, &sale.SaleOpenedEvent{})
	s.Register(sale.EventTypeSupplyReserved, &sale.SupplyReservedEvent{})
	s.Register(escrow.EventTypeAllocationPurchased, &escrow.AllocationPurchasedEvent{})
	s.Register(vesting.EventTypeVestingCreated, &vesting.VestingCreatedEvent{})
	s.Register(vesting.EventTypeVestingClaimed, &vesting.VestingClaimedEvent{})
	s.Register(vesting.EventTypeVestingRevoked, &vesting.VestingRevokedEvent{})
	s.Register(voucher.EventTypeVoucherIssued, &voucher.VoucherIssuedEvent{})
}
