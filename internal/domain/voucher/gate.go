package voucher

import (
	"context"
	"crypto/ed25519"

	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/shared/valueobject"
)

// EscrowChecker reports the allocation already granted to buyer in sale,
// zero when no escrow exists.
type EscrowChecker interface {
	GrantedAllocation(ctx context.Context, sale, buyer valueobject.Identity) (uint64, error)
}

// RedeemRequest is everything the gate needs to judge a purchase attempt
type RedeemRequest struct {
	Voucher    Voucher
	Signature  []byte
	Requested  uint64
	Caller     valueobject.Identity
	TargetSale valueobject.Identity
	Now        int64
}

// Authorization is the gate's permission to proceed with a purchase. The
// caller must create the escrow and reserve supply in one transaction,
// because the escrow is what stops the voucher being replayed.
type Authorization struct {
	Buyer      valueobject.Identity
	Sale       valueobject.Identity
	Allocation uint64
	Nonce      uint64
}

// Gate validates vouchers against a fixed issuer key
type Gate struct {
	verifier  Verifier
	issuerKey ed25519.PublicKey
}

// NewGate creates a Gate. The issuer key is copied and never changes afterwards.
func NewGate(verifier Verifier, issuerKey ed25519.PublicKey) *Gate {
	key := make(ed25519.PublicKey, len(issuerKey))
	copy(key, issuerKey)
	return &Gate{verifier: verifier, issuerKey: key}
}

// IssuerKey returns a copy of the configured issuer public key
func (g *Gate) IssuerKey() ed25519.PublicKey {
	key := make(ed25519.PublicKey, len(g.issuerKey))
	copy(key, g.issuerKey)
	return key
}

// Redeem runs the checks in order: signature, binding to caller and sale,
// expiry, requested amount, then prior use.
func (g *Gate) Redeem(ctx context.Context, req RedeemRequest, escrows EscrowChecker) (*Authorization, error) {
	if len(g.issuerKey) != ed25519.PublicKeySize {
		return nil, shared.ErrIssuerKeyNotAvailable
	}
	if !g.verifier.Verify(req.Voucher.Message(), req.Signature, g.issuerKey) {
		return nil, shared.ErrInvalidVoucher
	}

	if req.Voucher.Buyer != req.Caller || req.Voucher.Sale != req.TargetSale {
		return nil, shared.ErrInvalidVoucher
	}
	if req.Now > req.Voucher.Expiry {
		return nil, shared.ErrVoucherExpired
	}
	if req.Requested > req.Voucher.MaxAllocation {
		return nil, shared.ErrExceedsAllocation
	}
	if req.Requested == 0 {
		return nil, shared.ErrInvalidAllocation
	}

	granted, err := escrows.GrantedAllocation(ctx, req.TargetSale, req.Caller)
	if err != nil {
		return nil, err
	}
	if granted > 0 {
		return nil, shared.ErrVoucherAlreadyUsed
	}

	return &Authorization{
		Buyer:      req.Caller,
		Sale:       req.TargetSale,
		Allocation: req.Requested,
		Nonce:      req.Voucher.Nonce,
	}, nil
}
