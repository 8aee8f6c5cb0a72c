package voucher

import (
	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/shared/valueobject"
)

// EventTypeVoucherIssued is raised when the issuer signs a voucher
const EventTypeVoucherIssued = "VoucherIssued"

// VoucherIssuedEvent is raised when the issuer signs a voucher
type VoucherIssuedEvent struct {
	shared.BaseDomainEvent
	Sale          valueobject.Identity `json:"sale"`
	Buyer         valueobject.Identity `json:"buyer"`
	MaxAllocation uint64               `json:"max_allocation"`
	Nonce         uint64               `json:"nonce"`
	Expiry        int64                `json:"expiry_ts"`
	IssuedBy      valueobject.Identity `json:"issued_by"`
}

// EventType returns the event type name
func (e *VoucherIssuedEvent) EventType() string {
	return EventTypeVoucherIssued
}

// NewVoucherIssuedEvent creates a new VoucherIssuedEvent
func NewVoucherIssuedEvent(iv *IssuedVoucher) *VoucherIssuedEvent {
	return &VoucherIssuedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeVoucherIssued, "IssuedVoucher", iv.Buyer.String()),
		Sale:            iv.Sale,
		Buyer:           iv.Buyer,
		MaxAllocation:   iv.MaxAllocation,
		Nonce:           iv.Nonce,
		Expiry:          iv.Expiry,
		IssuedBy:        iv.IssuedBy,
	}
}
