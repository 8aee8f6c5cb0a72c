package presale

import (
	"context"

	"github.com/presale/backend/internal/domain/escrow"
	"github.com/presale/backend/internal/domain/ledger"
	"github.com/presale/backend/internal/domain/sale"
	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/vesting"
	"github.com/presale/backend/internal/domain/voucher"
)

// TransactionScope runs a settlement transition as one atomic unit.
// If fn returns an error every write made through repos is rolled back.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories hands out repositories bound to one transaction.
//
// The ledger repository shares the transaction, so a value transfer and the
// record update that depends on it commit or roll back together.
type TransactionalRepositories interface {
	SaleRepo() sale.SaleRepository
	EscrowRepo() escrow.EscrowRepository
	ScheduleRepo() vesting.ScheduleRepository
	LedgerRepo() ledger.Repository
	VoucherRepo() voucher.IssuedVoucherRepository
	// RecordEvents writes events to the outbox in the same transaction.
	// It is a no-op when the scope has no outbox.
	RecordEvents(ctx context.Context, events ...shared.DomainEvent) error
}

// NoOpTransactionScope calls fn with plain repositories and no transaction.
// Tests use it with in-memory or mocked repositories.
type NoOpTransactionScope struct {
	saleRepo     sale.SaleRepository
	escrowRepo   escrow.EscrowRepository
	scheduleRepo vesting.ScheduleRepository
	ledgerRepo   ledger.Repository
	voucherRepo  voucher.IssuedVoucherRepository
	outbox       shared.EventPublisher
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	saleRepo sale.SaleRepository,
	escrowRepo escrow.EscrowRepository,
	scheduleRepo vesting.ScheduleRepository,
	ledgerRepo ledger.Repository,
	voucherRepo voucher.IssuedVoucherRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		saleRepo:     saleRepo,
		escrowRepo:   escrowRepo,
		scheduleRepo: scheduleRepo,
		ledgerRepo:   ledgerRepo,
		voucherRepo:  voucherRepo,
	}
}

// SetOutbox makes RecordEvents hand events to outbox
func (s *NoOpTransactionScope) SetOutbox(outbox shared.EventPublisher) {
	s.outbox = outbox
}

// Execute runs fn without a transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// SaleRepo returns the sale repository.
func (s *NoOpTransactionScope) SaleRepo() sale.SaleRepository {
	return s.saleRepo
}

// EscrowRepo returns the escrow repository.
func (s *NoOpTransactionScope) EscrowRepo() escrow.EscrowRepository {
	return s.escrowRepo
}

// ScheduleRepo returns the vesting schedule repository.
func (s *NoOpTransactionScope) ScheduleRepo() vesting.ScheduleRepository {
	return s.scheduleRepo
}

// LedgerRepo returns the ledger repository.
func (s *NoOpTransactionScope) LedgerRepo() ledger.Repository {
	return s.ledgerRepo
}

// VoucherRepo returns the issued voucher repository.
func (s *NoOpTransactionScope) VoucherRepo() voucher.IssuedVoucherRepository {
	return s.voucherRepo
}

// RecordEvents publishes events to the configured outbox, if any.
func (s *NoOpTransactionScope) RecordEvents(ctx context.Context, events ...shared.DomainEvent) error {
	if s.outbox == nil || len(events) == 0 {
		return nil
	}
	return s.outbox.Publish(ctx, events...)
}

var (
	_ TransactionScope          = (*NoOpTransactionScope)(nil)
	_ TransactionalRepositories = (*NoOpTransactionScope)(nil)
)
