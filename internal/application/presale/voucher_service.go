package presale

import (
	"context"
	"fmt"
	"time"

	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/shared/valueobject"
	"github.com/presale/backend/internal/domain/voucher"
	"github.com/presale/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// VoucherService signs vouchers for buyers and keeps the issuance log.
// The issuer may be nil on deployments that only redeem; issuing then
// fails with ErrIssuerKeyNotAvailable.
type VoucherService struct {
	scope       TransactionScope
	issuer      *voucher.Issuer
	voucherRepo voucher.IssuedVoucherRepository
	admins      Administrators
	clock       shared.Clock
	instrumentation
}

// NewVoucherService creates a new VoucherService
func NewVoucherService(
	scope TransactionScope,
	issuer *voucher.Issuer,
	voucherRepo voucher.IssuedVoucherRepository,
	admins Administrators,
	clock shared.Clock,
) *VoucherService {
	return &VoucherService{
		scope:           scope,
		issuer:          issuer,
		voucherRepo:     voucherRepo,
		admins:          admins,
		clock:           clock,
		instrumentation: newInstrumentation(),
	}
}

// SetEventPublisher sets the publisher for VoucherIssued events
func (s *VoucherService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// SetLogger sets the service logger
func (s *VoucherService) SetLogger(logger *zap.Logger) {
	s.setLogger(logger)
}

// SetMetrics sets the metrics recorder
func (s *VoucherService) SetMetrics(m MetricsRecorder) {
	s.setMetrics(m)
}

// IssueVoucherRequest asks for a voucher for one buyer in one sale
type IssueVoucherRequest struct {
	Caller        valueobject.Identity
	Buyer         valueobject.Identity
	Sale          valueobject.Identity
	MaxAllocation uint64
	Expiry        int64
}

// Issue signs a voucher and records it. Only administrators may issue.
func (s *VoucherService) Issue(ctx context.Context, req IssueVoucherRequest) (resp *VoucherResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "voucher", "issue")
	defer span.End()
	start := time.Now()
	defer func() { s.finish(ctx, span, "issue_voucher", start, err) }()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrCaller, req.Caller.String(),
		telemetry.SpanAttrBuyer, req.Buyer.String(),
		telemetry.SpanAttrSale, req.Sale.String(),
	)

	if err := s.admins.Require(req.Caller); err != nil {
		return nil, err
	}
	if s.issuer == nil {
		return nil, shared.ErrIssuerKeyNotAvailable
	}

	now := s.clock.Now()
	signed, err := s.issuer.Issue(voucher.IssueParams{
		Buyer:         req.Buyer,
		Sale:          req.Sale,
		MaxAllocation: req.MaxAllocation,
		Expiry:        req.Expiry,
	}, now)
	if err != nil {
		return nil, err
	}

	issued := voucher.NewIssuedVoucher(signed, req.Caller, now)
	var events []shared.DomainEvent
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := repos.VoucherRepo().Create(ctx, issued); err != nil {
			return fmt.Errorf("failed to save issued voucher: %w", err)
		}
		var err error
		events, err = recordEvents(ctx, repos, issued)
		return err
	})
	if err != nil {
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrNonce, issued.Nonce)

	s.logger.Info("Voucher issued",
		zap.String("sale", req.Sale.String()),
		zap.String("buyer", req.Buyer.String()),
		zap.Uint64("max_allocation", req.MaxAllocation),
		zap.Uint64("nonce", issued.Nonce),
		zap.Int64("expiry", req.Expiry),
	)
	s.publish(ctx, events)

	result := ToVoucherResponse(issued)
	return &result, nil
}

// ListByBuyer returns the buyer's vouchers, newest first
func (s *VoucherService) ListByBuyer(ctx context.Context, buyer valueobject.Identity) ([]VoucherResponse, error) {
	issued, err := s.voucherRepo.ListByBuyer(ctx, buyer)
	if err != nil {
		return nil, fmt.Errorf("failed to list vouchers: %w", err)
	}
	result := make([]VoucherResponse, len(issued))
	for i := range issued {
		result[i] = ToVoucherResponse(&issued[i])
	}
	return result, nil
}

// Signer returns the issuer identity, or the zero identity when issuing is disabled
func (s *VoucherService) Signer() valueobject.Identity {
	if s.issuer == nil {
		return valueobject.ZeroIdentity
	}
	return s.issuer.Signer()
}
