package presale

import (
	"context"
	"fmt"
	"time"

	"github.com/presale/backend/internal/domain/escrow"
	"github.com/presale/backend/internal/domain/ledger"
	"github.com/presale/backend/internal/domain/sale"
	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/shared/valueobject"
	"github.com/presale/backend/internal/domain/voucher"
	"github.com/presale/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// PurchaseService settles voucher-gated purchases
type PurchaseService struct {
	scope      TransactionScope
	gate       *voucher.Gate
	deriver    *valueobject.Deriver
	transferer Transferer
	locks      *KeyedLocks
	clock      shared.Clock
	instrumentation
}

// NewPurchaseService creates a new PurchaseService
func NewPurchaseService(
	scope TransactionScope,
	gate *voucher.Gate,
	deriver *valueobject.Deriver,
	transferer Transferer,
	clock shared.Clock,
) *PurchaseService {
	return &PurchaseService{
		scope:           scope,
		gate:            gate,
		deriver:         deriver,
		transferer:      transferer,
		locks:           NewKeyedLocks(),
		clock:           clock,
		instrumentation: newInstrumentation(),
	}
}

// SetEventPublisher sets the publisher for purchase events
func (s *PurchaseService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// SetLogger sets the service logger
func (s *PurchaseService) SetLogger(logger *zap.Logger) {
	s.setLogger(logger)
}

// SetMetrics sets the metrics recorder
func (s *PurchaseService) SetMetrics(m MetricsRecorder) {
	s.setMetrics(m)
}

// PurchaseRequest is a buyer's purchase attempt
type PurchaseRequest struct {
	Caller    valueobject.Identity
	Sale      valueobject.Identity
	Requested uint64
	Voucher   voucher.Voucher
	Signature []byte
}

// escrowChecker exposes granted allocations to the voucher gate
type escrowChecker struct {
	repo escrow.EscrowRepository
}

func (c escrowChecker) GrantedAllocation(ctx context.Context, saleAddress, buyer valueobject.Identity) (uint64, error) {
	found, err := c.repo.FindBySaleAndBuyer(ctx, saleAddress, buyer)
	if err != nil {
		return 0, fmt.Errorf("failed to load escrow: %w", err)
	}
	if found == nil {
		return 0, nil
	}
	return found.Allocation, nil
}

// Purchase redeems the voucher, reserves supply, moves payment from the
// buyer to the sale treasury and records the escrow, all in one
// transaction. Any failure leaves sale, escrow and balances unchanged.
func (s *PurchaseService) Purchase(ctx context.Context, req PurchaseRequest) (result *PurchaseResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "purchase", "execute")
	defer span.End()
	start := time.Now()
	defer func() { s.finish(ctx, span, "purchase", start, err) }()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrSale, req.Sale.String(),
		telemetry.SpanAttrBuyer, req.Caller.String(),
		telemetry.SpanAttrAmount, req.Requested,
		telemetry.SpanAttrNonce, req.Voucher.Nonce,
	)

	escrowAddress, err := s.deriver.EscrowAddress(req.Sale, req.Caller)
	if err != nil {
		return nil, fmt.Errorf("failed to derive escrow address: %w", err)
	}

	unlock := s.locks.Lock(req.Sale)
	defer unlock()

	now := s.clock.Now().Unix()

	var (
		target  *sale.Sale
		created *escrow.PurchaseEscrow
		payment uint64
		events  []shared.DomainEvent
	)
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		target, err = repos.SaleRepo().FindByAddressForUpdate(ctx, req.Sale)
		if err != nil {
			return fmt.Errorf("failed to load sale: %w", err)
		}
		if target == nil {
			return shared.ErrNotFound
		}

		auth, err := s.gate.Redeem(ctx, voucher.RedeemRequest{
			Voucher:    req.Voucher,
			Signature:  req.Signature,
			Requested:  req.Requested,
			Caller:     req.Caller,
			TargetSale: req.Sale,
			Now:        now,
		}, escrowChecker{repo: repos.EscrowRepo()})
		if err != nil {
			return err
		}

		if err := target.Reserve(auth.Allocation, now); err != nil {
			return err
		}

		payment, err = target.PaymentFor(auth.Allocation)
		if err != nil {
			return err
		}
		if err := s.transferer.Transfer(ctx, repos, ledger.Transfer{
			Asset:     ledger.NativeAsset,
			From:      auth.Buyer,
			To:        target.Treasury,
			Amount:    payment,
			Reference: "purchase:" + escrowAddress.String(),
		}); err != nil {
			return err
		}

		existing, err := repos.EscrowRepo().FindByAddress(ctx, escrowAddress)
		if err != nil {
			return fmt.Errorf("failed to load escrow: %w", err)
		}
		created, err = escrow.Create(escrow.CreateParams{
			Address:    escrowAddress,
			Sale:       auth.Sale,
			Buyer:      auth.Buyer,
			Allocation: auth.Allocation,
			Payment:    payment,
			Nonce:      auth.Nonce,
		}, existing)
		if err != nil {
			return err
		}

		if err := repos.SaleRepo().Save(ctx, target); err != nil {
			return fmt.Errorf("failed to save sale: %w", err)
		}
		if err := repos.EscrowRepo().Create(ctx, created); err != nil {
			return fmt.Errorf("failed to save escrow: %w", err)
		}
		events, err = recordEvents(ctx, repos, target, created)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Allocation purchased",
		zap.String("sale", req.Sale.String()),
		zap.String("buyer", req.Caller.String()),
		zap.Uint64("allocation", created.Allocation),
		zap.Uint64("payment", payment),
		zap.Uint64("sold", target.Sold),
	)
	s.metrics.RecordPurchase(ctx, req.Sale.String(), created.Allocation)
	s.publish(ctx, events)

	return &PurchaseResult{
		Escrow:        ToEscrowResponse(created),
		Payment:       payment,
		PaymentNative: valueobject.FormatUnits(payment, valueobject.NativeDecimals),
		Sold:          target.Sold,
		Remaining:     target.Remaining(),
	}, nil
}
