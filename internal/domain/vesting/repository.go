package vesting

import (
	"context"

	"github.com/presale/backend/internal/domain/shared/valueobject"
)

// ScheduleRepository persists schedules keyed by their derived address
type ScheduleRepository interface {
	// FindByAddress returns nil, nil when no schedule exists
	FindByAddress(ctx context.Context, address valueobject.Identity) (*Schedule, error)
	// FindByAddressForUpdate loads the schedule with a row lock
	FindByAddressForUpdate(ctx context.Context, address valueobject.Identity) (*Schedule, error)
	// Create inserts a schedule; it fails if the address is taken
	Create(ctx context.Context, s *Schedule) error
	// Save persists Released and Revoked with an optimistic version check
	Save(ctx context.Context, s *Schedule) error
}
