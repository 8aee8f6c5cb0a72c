package persistence

import (
	"context"
	"errors"

	"github.com/presale/backend/internal/domain/escrow"
	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/shared/valueobject"
	"github.com/presale/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormEscrowRepository implements escrow.EscrowRepository using GORM
type GormEscrowRepository struct {
	db *gorm.DB
}

// NewGormEscrowRepository creates a new GormEscrowRepository
func NewGormEscrowRepository(db *gorm.DB) *GormEscrowRepository {
	return &GormEscrowRepository{db: db}
}

// FindByAddress finds an escrow by its derived address
func (r *GormEscrowRepository) FindByAddress(ctx context.Context, address valueobject.Identity) (*escrow.PurchaseEscrow, error) {
	return r.first(r.db.WithContext(ctx).Where("address = ?", address.String()))
}

// FindBySaleAndBuyer finds the escrow for a (sale, buyer) pair
func (r *GormEscrowRepository) FindBySaleAndBuyer(ctx context.Context, saleAddress, buyer valueobject.Identity) (*escrow.PurchaseEscrow, error) {
	return r.first(r.db.WithContext(ctx).Where("sale = ? AND buyer = ?", saleAddress.String(), buyer.String()))
}

func (r *GormEscrowRepository) first(query *gorm.DB) (*escrow.PurchaseEscrow, error) {
	var model models.EscrowModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts the escrow. The primary key and the (sale, buyer) unique
// index both reject a second escrow for the same pair.
func (r *GormEscrowRepository) Create(ctx context.Context, e *escrow.PurchaseEscrow) error {
	var model models.EscrowModel
	model.FromDomain(e)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrVoucherAlreadyUsed
		}
		return err
	}
	return nil
}

// ListBySale returns the sale's escrows, oldest first
func (r *GormEscrowRepository) ListBySale(ctx context.Context, saleAddress valueobject.Identity) ([]escrow.PurchaseEscrow, error) {
	var rows []models.EscrowModel
	if err := r.db.WithContext(ctx).
		Where("sale = ?", saleAddress.String()).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]escrow.PurchaseEscrow, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain())
	}
	return out, nil
}

var _ escrow.EscrowRepository = (*GormEscrowRepository)(nil)
