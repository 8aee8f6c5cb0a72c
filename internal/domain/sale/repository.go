package sale

import (
	"context"

	"github.com/presale/backend/internal/domain/shared/valueobject"
)

// SaleRepository persists Sale aggregates keyed by their derived address
type SaleRepository interface {
	// FindByAddress returns nil, nil when no sale exists
	FindByAddress(ctx context.Context, address valueobject.Identity) (*Sale, error)
	// FindByAddressForUpdate loads the sale with a row lock held until the
	// surrounding transaction ends
	FindByAddressForUpdate(ctx context.Context, address valueobject.Identity) (*Sale, error)
	// Create inserts a new sale; it fails if the address is taken
	Create(ctx context.Context, s *Sale) error
	// Save persists Sold with an optimistic version check
	Save(ctx context.Context, s *Sale) error
}
