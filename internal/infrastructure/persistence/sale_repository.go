package persistence

import (
	"context"
	"errors"

	"github.com/presale/backend/internal/domain/sale"
	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/shared/valueobject"
	"github.com/presale/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormSaleRepository implements sale.SaleRepository using GORM
type GormSaleRepository struct {
	db *gorm.DB
}

// NewGormSaleRepository creates a new GormSaleRepository
func NewGormSaleRepository(db *gorm.DB) *GormSaleRepository {
	return &GormSaleRepository{db: db}
}

// FindByAddress finds a sale by its derived address
func (r *GormSaleRepository) FindByAddress(ctx context.Context, address valueobject.Identity) (*sale.Sale, error) {
	return r.find(r.db.WithContext(ctx), address)
}

// FindByAddressForUpdate finds a sale and locks its row for the transaction
func (r *GormSaleRepository) FindByAddressForUpdate(ctx context.Context, address valueobject.Identity) (*sale.Sale, error) {
	return r.find(forUpdate(r.db.WithContext(ctx)), address)
}

func (r *GormSaleRepository) find(db *gorm.DB, address valueobject.Identity) (*sale.Sale, error) {
	var model models.SaleModel
	if err := db.Where("address = ?", address.String()).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new sale
func (r *GormSaleRepository) Create(ctx context.Context, s *sale.Sale) error {
	var model models.SaleModel
	model.FromDomain(s)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrSaleAlreadyExists
		}
		return err
	}
	return nil
}

// Save writes Sold if the stored version is the one the sale was loaded at
func (r *GormSaleRepository) Save(ctx context.Context, s *sale.Sale) error {
	result := r.db.WithContext(ctx).Model(&models.SaleModel{}).
		Where("address = ? AND version = ?", s.Address.String(), s.Version-1).
		Updates(map[string]any{
			"sold":       models.Units(s.Sold),
			"version":    s.Version,
			"updated_at": s.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

var _ sale.SaleRepository = (*GormSaleRepository)(nil)
