package persistence

import (
	"context"

	"github.com/presale/backend/internal/application/presale"
	"github.com/presale/backend/internal/domain/escrow"
	"github.com/presale/backend/internal/domain/ledger"
	"github.com/presale/backend/internal/domain/sale"
	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/vesting"
	"github.com/presale/backend/internal/domain/voucher"
	"github.com/presale/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormTransactionScope implements presale.TransactionScope using GORM
// transactions. Every repository handed to fn shares the transaction, and
// so do outbox entries when an outbox is set.
type GormTransactionScope struct {
	db     *gorm.DB
	outbox shared.OutboxEventSaver
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// SetOutbox makes RecordEvents store events as outbox entries in the
// running transaction
func (s *GormTransactionScope) SetOutbox(outbox shared.OutboxEventSaver) {
	s.outbox = outbox
}

// Execute runs fn within a database transaction. An error from fn, or a
// panic, rolls back every write.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos presale.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx, outbox: s.outbox})
	})
}

type gormTransactionalRepositories struct {
	tx     *gorm.DB
	outbox shared.OutboxEventSaver
}

func (r *gormTransactionalRepositories) SaleRepo() sale.SaleRepository {
	return NewGormSaleRepository(r.tx)
}

func (r *gormTransactionalRepositories) EscrowRepo() escrow.EscrowRepository {
	return NewGormEscrowRepository(r.tx)
}

func (r *gormTransactionalRepositories) ScheduleRepo() vesting.ScheduleRepository {
	return NewGormScheduleRepository(r.tx)
}

func (r *gormTransactionalRepositories) LedgerRepo() ledger.Repository {
	return NewGormLedgerRepository(r.tx)
}

func (r *gormTransactionalRepositories) VoucherRepo() voucher.IssuedVoucherRepository {
	return NewGormIssuedVoucherRepository(r.tx)
}

func (r *gormTransactionalRepositories) RecordEvents(ctx context.Context, events ...shared.DomainEvent) error {
	if r.outbox == nil || len(events) == 0 {
		return nil
	}
	return r.outbox.SaveEvents(ctx, r.tx, events...)
}

// AllModels lists every table the service owns, outbox included
func AllModels() []any {
	return []any{
		&models.SaleModel{},
		&models.EscrowModel{},
		&models.VestingScheduleModel{},
		&models.BalanceModel{},
		&models.LedgerEntryModel{},
		&models.IssuedVoucherModel{},
		&shared.OutboxEntry{},
	}
}

var (
	_ presale.TransactionScope          = (*GormTransactionScope)(nil)
	_ presale.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
)
