package voucher

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/shared/valueobject"
)

// IssuedVoucher is the issuer's log entry for a voucher it handed out.
// Redemption never consults it; it exists for audit and for buyers to
// fetch their vouchers.
type IssuedVoucher struct {
	shared.BaseAggregateRoot
	ID            uuid.UUID
	Sale          valueobject.Identity
	Buyer         valueobject.Identity
	MaxAllocation uint64
	Nonce         uint64
	Expiry        int64
	Signature     string // base64
	Signer        valueobject.Identity
	IssuedBy      valueobject.Identity
	IssuedAt      time.Time
}

// NewIssuedVoucher records a signed voucher
func NewIssuedVoucher(sv *SignedVoucher, issuedBy valueobject.Identity, issuedAt time.Time) *IssuedVoucher {
	iv := &IssuedVoucher{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ID:                uuid.New(),
		Sale:              sv.Voucher.Sale,
		Buyer:             sv.Voucher.Buyer,
		MaxAllocation:     sv.Voucher.MaxAllocation,
		Nonce:             sv.Voucher.Nonce,
		Expiry:            sv.Voucher.Expiry,
		Signature:         EncodeSignature(sv.Signature),
		Signer:            sv.Signer,
		IssuedBy:          issuedBy,
		IssuedAt:          issuedAt,
	}
	iv.RecordEvent(NewVoucherIssuedEvent(iv))
	return iv
}

// Voucher rebuilds the signed voucher fields
func (iv *IssuedVoucher) Voucher() Voucher {
	return Voucher{
		Buyer:         iv.Buyer,
		Sale:          iv.Sale,
		MaxAllocation: iv.MaxAllocation,
		Nonce:         iv.Nonce,
		Expiry:        iv.Expiry,
	}
}

// IssuedVoucherRepository stores the issuance log
type IssuedVoucherRepository interface {
	Create(ctx context.Context, iv *IssuedVoucher) error
	// ListByBuyer returns the buyer's vouchers, newest first
	ListByBuyer(ctx context.Context, buyer valueobject.Identity) ([]IssuedVoucher, error)
	FindByNonce(ctx context.Context, nonce uint64) (*IssuedVoucher, error)
}
