package presale

import (
	"context"
	"fmt"
	"time"

	"github.com/presale/backend/internal/domain/escrow"
	"github.com/presale/backend/internal/domain/sale"
	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/shared/valueobject"
	"github.com/presale/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// SaleService opens sales and serves sale and escrow reads
type SaleService struct {
	scope      TransactionScope
	saleRepo   sale.SaleRepository
	escrowRepo escrow.EscrowRepository
	deriver    *valueobject.Deriver
	admins     Administrators
	instrumentation
}

// NewSaleService creates a new SaleService
func NewSaleService(
	scope TransactionScope,
	saleRepo sale.SaleRepository,
	escrowRepo escrow.EscrowRepository,
	deriver *valueobject.Deriver,
	admins Administrators,
) *SaleService {
	return &SaleService{
		scope:           scope,
		saleRepo:        saleRepo,
		escrowRepo:      escrowRepo,
		deriver:         deriver,
		admins:          admins,
		instrumentation: newInstrumentation(),
	}
}

// SetEventPublisher sets the publisher for SaleOpened events
func (s *SaleService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// SetLogger sets the service logger
func (s *SaleService) SetLogger(logger *zap.Logger) {
	s.setLogger(logger)
}

// SetMetrics sets the metrics recorder
func (s *SaleService) SetMetrics(m MetricsRecorder) {
	s.setMetrics(m)
}

// OpenSaleRequest carries the configuration of a new sale
type OpenSaleRequest struct {
	Caller         valueobject.Identity
	Asset          valueobject.Identity
	Treasury       valueobject.Identity
	Price          uint64
	StartTime      int64
	EndTime        int64
	TotalAllocated uint64
}

// OpenSale creates the caller's sale at its derived address. Each owner has
// at most one sale.
func (s *SaleService) OpenSale(ctx context.Context, req OpenSaleRequest) (resp *SaleResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sale", "open")
	defer span.End()
	start := time.Now()
	defer func() { s.finish(ctx, span, "open_sale", start, err) }()

	telemetry.SetAttributes(span, telemetry.SpanAttrCaller, req.Caller.String())

	if err := s.admins.Require(req.Caller); err != nil {
		return nil, err
	}
	address, err := s.deriver.SaleAddress(req.Caller)
	if err != nil {
		return nil, fmt.Errorf("failed to derive sale address: %w", err)
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrSale, address.String())

	var (
		opened *sale.Sale
		events []shared.DomainEvent
	)
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		existing, err := repos.SaleRepo().FindByAddress(ctx, address)
		if err != nil {
			return fmt.Errorf("failed to load sale: %w", err)
		}
		if existing != nil {
			return shared.ErrSaleAlreadyExists
		}

		opened, err = sale.Open(sale.OpenParams{
			Address:        address,
			Owner:          req.Caller,
			Asset:          req.Asset,
			Treasury:       req.Treasury,
			Price:          req.Price,
			StartTime:      req.StartTime,
			EndTime:        req.EndTime,
			TotalAllocated: req.TotalAllocated,
		})
		if err != nil {
			return err
		}
		if err := repos.SaleRepo().Create(ctx, opened); err != nil {
			return fmt.Errorf("failed to save sale: %w", err)
		}
		events, err = recordEvents(ctx, repos, opened)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Sale opened",
		zap.String("sale", address.String()),
		zap.String("owner", req.Caller.String()),
		zap.Uint64("total_allocated", req.TotalAllocated),
		zap.Uint64("price", req.Price),
		zap.Int64("start_time", req.StartTime),
		zap.Int64("end_time", req.EndTime),
	)
	s.publish(ctx, events)

	result := ToSaleResponse(opened)
	return &result, nil
}

// GetSale returns the sale at address
func (s *SaleService) GetSale(ctx context.Context, address valueobject.Identity) (*SaleResponse, error) {
	found, err := s.saleRepo.FindByAddress(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to load sale: %w", err)
	}
	if found == nil {
		return nil, shared.ErrNotFound
	}
	result := ToSaleResponse(found)
	return &result, nil
}

// GetSaleByOwner returns the sale derived from owner
func (s *SaleService) GetSaleByOwner(ctx context.Context, owner valueobject.Identity) (*SaleResponse, error) {
	address, err := s.deriver.SaleAddress(owner)
	if err != nil {
		return nil, fmt.Errorf("failed to derive sale address: %w", err)
	}
	return s.GetSale(ctx, address)
}

// GetEscrow returns the buyer's escrow in a sale
func (s *SaleService) GetEscrow(ctx context.Context, saleAddress, buyer valueobject.Identity) (*EscrowResponse, error) {
	found, err := s.escrowRepo.FindBySaleAndBuyer(ctx, saleAddress, buyer)
	if err != nil {
		return nil, fmt.Errorf("failed to load escrow: %w", err)
	}
	if found == nil {
		return nil, shared.ErrNotFound
	}
	result := ToEscrowResponse(found)
	return &result, nil
}

// ListEscrows returns every escrow of a sale
func (s *SaleService) ListEscrows(ctx context.Context, saleAddress valueobject.Identity) ([]EscrowResponse, error) {
	escrows, err := s.escrowRepo.ListBySale(ctx, saleAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to list escrows: %w", err)
	}
	result := make([]EscrowResponse, len(escrows))
	for i := range escrows {
		result[i] = ToEscrowResponse(&escrows[i])
	}
	return result, nil
}
