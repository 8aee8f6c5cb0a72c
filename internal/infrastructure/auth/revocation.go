package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/presale/backend/internal/domain/shared"
)

const revokedKeyPrefix = "auth:revoked:"

// RevocationList remembers revoked token ids until the token would have
// expired anyway. It keeps its keys in the same TTL store as request
// idempotency keys, under a separate prefix.
type RevocationList struct {
	store shared.IdempotencyStore
}

// NewRevocationList creates a revocation list on store
func NewRevocationList(store shared.IdempotencyStore) *RevocationList {
	return &RevocationList{store: store}
}

// Revoke records jti as revoked for ttl. A non-positive ttl is a no-op
// since the token has already expired.
func (r *RevocationList) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if _, err := r.store.MarkProcessed(ctx, revokedKeyPrefix+jti, ttl); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether jti was revoked
func (r *RevocationList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	revoked, err := r.store.IsProcessed(ctx, revokedKeyPrefix+jti)
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return revoked, nil
}
