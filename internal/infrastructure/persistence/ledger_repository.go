package persistence

import (
	"context"
	"errors"

	"github.com/presale/backend/internal/domain/ledger"
	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/shared/valueobject"
	"github.com/presale/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// defaultEntryLimit caps ListEntries when the caller passes no limit
const defaultEntryLimit = 100

// GormLedgerRepository implements ledger.Repository using GORM
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// FindBalance returns the balance, or nil, nil when none exists
func (r *GormLedgerRepository) FindBalance(ctx context.Context, account, asset valueobject.Identity) (*ledger.Balance, error) {
	return r.findBalance(r.db.WithContext(ctx), account, asset)
}

// FindBalanceForUpdate returns the balance with its row locked
func (r *GormLedgerRepository) FindBalanceForUpdate(ctx context.Context, account, asset valueobject.Identity) (*ledger.Balance, error) {
	return r.findBalance(forUpdate(r.db.WithContext(ctx)), account, asset)
}

func (r *GormLedgerRepository) findBalance(db *gorm.DB, account, asset valueobject.Identity) (*ledger.Balance, error) {
	var model models.BalanceModel
	err := db.Where("account = ? AND asset = ?", account.String(), asset.String()).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// SaveBalance inserts a first-time balance or updates an existing one
// under an optimistic version check. Every credit or debit bumps Version
// by one, so Version 1 means the balance was never stored.
func (r *GormLedgerRepository) SaveBalance(ctx context.Context, b *ledger.Balance) error {
	var model models.BalanceModel
	model.FromDomain(b)

	if b.Version <= 1 {
		if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return shared.ErrConcurrencyConflict
			}
			return err
		}
		return nil
	}

	result := r.db.WithContext(ctx).Model(&models.BalanceModel{}).
		Where("account = ? AND asset = ? AND version = ?", b.Account.String(), b.Asset.String(), b.Version-1).
		Updates(map[string]any{
			"amount":     model.Amount,
			"version":    b.Version,
			"updated_at": b.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// AppendEntry writes a journal entry
func (r *GormLedgerRepository) AppendEntry(ctx context.Context, e *ledger.Entry) error {
	var model models.LedgerEntryModel
	model.FromDomain(e)
	return r.db.WithContext(ctx).Create(&model).Error
}

// ListEntries returns the account's journal entries, newest first
func (r *GormLedgerRepository) ListEntries(ctx context.Context, account valueobject.Identity, limit int) ([]ledger.Entry, error) {
	if limit <= 0 {
		limit = defaultEntryLimit
	}
	var rows []models.LedgerEntryModel
	if err := r.db.WithContext(ctx).
		Where("from_account = ? OR to_account = ?", account.String(), account.String()).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ledger.Entry, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain())
	}
	return out, nil
}

// ListBalances returns every balance the account holds
func (r *GormLedgerRepository) ListBalances(ctx context.Context, account valueobject.Identity) ([]ledger.Balance, error) {
	var rows []models.BalanceModel
	if err := r.db.WithContext(ctx).
		Where("account = ?", account.String()).
		Order("asset ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ledger.Balance, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain())
	}
	return out, nil
}

var _ ledger.Repository = (*GormLedgerRepository)(nil)
