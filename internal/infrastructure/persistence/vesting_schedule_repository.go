package persistence

import (
	"context"
	"errors"

	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/shared/valueobject"
	"github.com/presale/backend/internal/domain/vesting"
	"github.com/presale/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormScheduleRepository implements vesting.ScheduleRepository using GORM
type GormScheduleRepository struct {
	db *gorm.DB
}

// NewGormScheduleRepository creates a new GormScheduleRepository
func NewGormScheduleRepository(db *gorm.DB) *GormScheduleRepository {
	return &GormScheduleRepository{db: db}
}

// FindByAddress finds a schedule by its derived address
func (r *GormScheduleRepository) FindByAddress(ctx context.Context, address valueobject.Identity) (*vesting.Schedule, error) {
	return r.find(r.db.WithContext(ctx), address)
}

// FindByAddressForUpdate finds a schedule and locks its row
func (r *GormScheduleRepository) FindByAddressForUpdate(ctx context.Context, address valueobject.Identity) (*vesting.Schedule, error) {
	return r.find(forUpdate(r.db.WithContext(ctx)), address)
}

func (r *GormScheduleRepository) find(db *gorm.DB, address valueobject.Identity) (*vesting.Schedule, error) {
	var model models.VestingScheduleModel
	if err := db.Where("address = ?", address.String()).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a schedule; one per beneficiary
func (r *GormScheduleRepository) Create(ctx context.Context, s *vesting.Schedule) error {
	var model models.VestingScheduleModel
	model.FromDomain(s)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrVestingAlreadyExists
		}
		return err
	}
	return nil
}

// Save writes Released and Revoked under an optimistic version check
func (r *GormScheduleRepository) Save(ctx context.Context, s *vesting.Schedule) error {
	result := r.db.WithContext(ctx).Model(&models.VestingScheduleModel{}).
		Where("address = ? AND version = ?", s.Address.String(), s.Version-1).
		Updates(map[string]any{
			"released":   models.Units(s.Released),
			"revoked":    s.Revoked,
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

var _ vesting.ScheduleRepository = (*GormScheduleRepository)(nil)
