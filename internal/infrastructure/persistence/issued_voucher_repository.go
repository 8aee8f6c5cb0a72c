package persistence

import (
	"context"
	"errors"

	"github.com/presale/backend/internal/domain/shared/valueobject"
	"github.com/presale/backend/internal/domain/voucher"
	"github.com/presale/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormIssuedVoucherRepository implements voucher.IssuedVoucherRepository using GORM
type GormIssuedVoucherRepository struct {
	db *gorm.DB
}

// NewGormIssuedVoucherRepository creates a new GormIssuedVoucherRepository
func NewGormIssuedVoucherRepository(db *gorm.DB) *GormIssuedVoucherRepository {
	return &GormIssuedVoucherRepository{db: db}
}

// Create records an issued voucher
func (r *GormIssuedVoucherRepository) Create(ctx context.Context, iv *voucher.IssuedVoucher) error {
	var model models.IssuedVoucherModel
	model.FromDomain(iv)
	return r.db.WithContext(ctx).Create(&model).Error
}

// ListByBuyer returns the buyer's vouchers, newest first
func (r *GormIssuedVoucherRepository) ListByBuyer(ctx context.Context, buyer valueobject.Identity) ([]voucher.IssuedVoucher, error) {
	var rows []models.IssuedVoucherModel
	if err := r.db.WithContext(ctx).
		Where("buyer = ?", buyer.String()).
		Order("issued_at DESC").
		Order("nonce DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]voucher.IssuedVoucher, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain())
	}
	return out, nil
}

// FindByNonce returns nil, nil when no voucher carries nonce
func (r *GormIssuedVoucherRepository) FindByNonce(ctx context.Context, nonce uint64) (*voucher.IssuedVoucher, error) {
	var model models.IssuedVoucherModel
	if err := r.db.WithContext(ctx).Where("nonce = ?", models.Units(nonce)).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

var _ voucher.IssuedVoucherRepository = (*GormIssuedVoucherRepository)(nil)
