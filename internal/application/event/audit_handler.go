package event

import (
	"context"
	"fmt"

	"github.com/presale/backend/internal/domain/escrow"
	"github.com/presale/backend/internal/domain/sale"
	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/vesting"
	"github.com/presale/backend/internal/domain/voucher"
	"go.uber.org/zap"
)

// AuditHandler writes one structured log line per settlement event. It is
// the durable trail of every state change delivered through the outbox.
type AuditHandler struct {
	logger *zap.Logger
}

// NewAuditHandler creates an audit handler logging under the "audit" name
func NewAuditHandler(logger *zap.Logger) *AuditHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditHandler{logger: logger.Named("audit")}
}

// EventTypes returns the event types this handler is interested in
func (h *AuditHandler) EventTypes() []string {
	return []string{
		sale.EventTypeSaleOpened,
		sale.EventTypeSupplyReserved,
		escrow.EventTypeAllocationPurchased,
		vesting.EventTypeVestingCreated,
		vesting.EventTypeVestingClaimed,
		vesting.EventTypeVestingRevoked,
		voucher.EventTypeVoucherIssued,
	}
}

// Handle logs the event's payload fields
func (h *AuditHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_type", event.EventType()),
		zap.Stringer("event_id", event.EventID()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID()),
		zap.Time("occurred_at", event.OccurredAt()),
	}

	switch e := event.(type) {
	case *sale.SaleOpenedEvent:
		h.logger.Info("sale opened", append(fields,
			zap.Stringer("owner", e.Owner),
			zap.Stringer("asset", e.Asset),
			zap.Uint64("price", e.Price),
			zap.Int64("start_time", e.StartTime),
			zap.Int64("end_time", e.EndTime),
			zap.Uint64("total_allocated", e.TotalAllocated),
		)...)
	case *sale.SupplyReservedEvent:
		fields = append(fields,
			zap.Uint64("amount", e.Amount),
			zap.Uint64("sold", e.Sold),
			zap.Uint64("remaining", e.Remaining),
		)
		if e.Remaining == 0 {
			h.logger.Warn("sale supply exhausted", fields...)
			return nil
		}
		h.logger.Info("sale supply reserved", fields...)
	case *escrow.AllocationPurchasedEvent:
		h.logger.Info("allocation purchased", append(fields,
			zap.Stringer("sale", e.Sale),
			zap.Stringer("buyer", e.Buyer),
			zap.Uint64("allocation", e.Allocation),
			zap.Uint64("payment", e.Payment),
			zap.Uint64("nonce", e.Nonce),
		)...)
	case *vesting.VestingCreatedEvent:
		h.logger.Info("vesting created", append(fields,
			zap.Stringer("beneficiary", e.Beneficiary),
			zap.Stringer("owner", e.Owner),
			zap.Uint64("total_amount", e.TotalAmount),
			zap.Int64("start_time", e.StartTime),
			zap.Uint64("cliff_duration", e.CliffDuration),
			zap.Uint64("duration", e.Duration),
			zap.Bool("revocable", e.Revocable),
		)...)
	case *vesting.VestingClaimedEvent:
		h.logger.Info("vesting claimed", append(fields,
			zap.Stringer("beneficiary", e.Beneficiary),
			zap.Uint64("amount", e.Amount),
			zap.Uint64("released", e.Released),
			zap.Int64("claimed_at", e.ClaimedAt),
		)...)
	case *vesting.VestingRevokedEvent:
		h.logger.Warn("vesting revoked", append(fields,
			zap.Stringer("beneficiary", e.Beneficiary),
			zap.Uint64("unvested", e.Unvested),
			zap.Uint64("released", e.Released),
			zap.Int64("revoked_at", e.RevokedAt),
		)...)
	case *voucher.VoucherIssuedEvent:
		h.logger.Info("voucher issued", append(fields,
			zap.Stringer("sale", e.Sale),
			zap.Stringer("buyer", e.Buyer),
			zap.Uint64("max_allocation", e.MaxAllocation),
			zap.Uint64("nonce", e.Nonce),
			zap.Int64("expiry_ts", e.Expiry),
			zap.Stringer("issued_by", e.IssuedBy),
		)...)
	default:
		h.logger.Error("unexpected event type", fields...)
		return fmt.Errorf("audit: unexpected event type %s", event.EventType())
	}
	return nil
}
