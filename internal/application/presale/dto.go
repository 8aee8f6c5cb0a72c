package presale

import (
	"time"

	"github.com/presale/backend/internal/domain/escrow"
	"github.com/presale/backend/internal/domain/ledger"
	"github.com/presale/backend/internal/domain/sale"
	"github.com/presale/backend/internal/domain/shared/valueobject"
	"github.com/presale/backend/internal/domain/vesting"
	"github.com/presale/backend/internal/domain/voucher"
)

// SaleResponse is the read model of a sale
type SaleResponse struct {
	Address        valueobject.Identity `json:"address"`
	Owner          valueobject.Identity `json:"owner"`
	Asset          valueobject.Identity `json:"asset"`
	Treasury       valueobject.Identity `json:"treasury"`
	Price          uint64               `json:"price"`
	PriceNative    string               `json:"price_native"`
	StartTime      int64                `json:"start_time"`
	EndTime        int64                `json:"end_time"`
	TotalAllocated uint64               `json:"total_allocated"`
	Sold           uint64               `json:"sold"`
	Remaining      uint64               `json:"remaining"`
	Version        int                  `json:"version"`
}

// ToSaleResponse converts a sale to its read model
func ToSaleResponse(s *sale.Sale) SaleResponse {
	return SaleResponse{
		Address:        s.Address,
		Owner:          s.Owner,
		Asset:          s.Asset,
		Treasury:       s.Treasury,
		Price:          s.Price,
		PriceNative:    valueobject.FormatUnits(s.Price, valueobject.NativeDecimals),
		StartTime:      s.StartTime,
		EndTime:        s.EndTime,
		TotalAllocated: s.TotalAllocated,
		Sold:           s.Sold,
		Remaining:      s.Remaining(),
		Version:        s.Version,
	}
}

// EscrowResponse is the read model of a purchase escrow
type EscrowResponse struct {
	Address    valueobject.Identity `json:"address"`
	Sale       valueobject.Identity `json:"sale"`
	Buyer      valueobject.Identity `json:"buyer"`
	Allocation uint64               `json:"allocation"`
	Claimed    uint64               `json:"claimed"`
	Payment    uint64               `json:"payment"`
	Nonce      uint64               `json:"nonce"`
	CreatedAt  time.Time            `json:"created_at"`
}

// ToEscrowResponse converts an escrow to its read model
func ToEscrowResponse(e *escrow.PurchaseEscrow) EscrowResponse {
	return EscrowResponse{
		Address:    e.Address,
		Sale:       e.Sale,
		Buyer:      e.Buyer,
		Allocation: e.Allocation,
		Claimed:    e.Claimed,
		Payment:    e.Payment,
		Nonce:      e.Nonce,
		CreatedAt:  e.CreatedAt,
	}
}

// PurchaseResult reports a completed purchase
type PurchaseResult struct {
	Escrow        EscrowResponse `json:"escrow"`
	Payment       uint64         `json:"payment"`
	PaymentNative string         `json:"payment_native"`
	Sold          uint64         `json:"sold"`
	Remaining     uint64         `json:"remaining"`
}

// ScheduleResponse is the read model of a vesting schedule evaluated at AsOf
type ScheduleResponse struct {
	Address       valueobject.Identity `json:"address"`
	Beneficiary   valueobject.Identity `json:"beneficiary"`
	Owner         valueobject.Identity `json:"owner"`
	Asset         valueobject.Identity `json:"asset"`
	Vault         valueobject.Identity `json:"vault"`
	Treasury      valueobject.Identity `json:"treasury"`
	TotalAmount   uint64               `json:"total_amount"`
	Released      uint64               `json:"released"`
	StartTime     int64                `json:"start_time"`
	CliffDuration uint64               `json:"cliff_duration"`
	Duration      uint64               `json:"duration"`
	Revocable     bool                 `json:"revocable"`
	Revoked       bool                 `json:"revoked"`
	Vested        uint64               `json:"vested"`
	Claimable     uint64               `json:"claimable"`
	AsOf          int64                `json:"as_of"`
}

// ToScheduleResponse converts a schedule and evaluates it at now. A revoked
// schedule reports nothing claimable.
func ToScheduleResponse(s *vesting.Schedule, now int64) (ScheduleResponse, error) {
	vested, err := s.VestedAt(now)
	if err != nil {
		return ScheduleResponse{}, err
	}
	var claimable uint64
	if !s.Revoked {
		if claimable, err = s.ClaimableAt(now); err != nil {
			return ScheduleResponse{}, err
		}
	}
	return ScheduleResponse{
		Address:       s.Address,
		Beneficiary:   s.Beneficiary,
		Owner:         s.Owner,
		Asset:         s.Asset,
		Vault:         s.Vault,
		Treasury:      s.Treasury,
		TotalAmount:   s.TotalAmount,
		Released:      s.Released,
		StartTime:     s.StartTime,
		CliffDuration: s.CliffDuration,
		Duration:      s.Duration,
		Revocable:     s.Revocable,
		Revoked:       s.Revoked,
		Vested:        vested,
		Claimable:     claimable,
		AsOf:          now,
	}, nil
}

// ClaimResult reports a completed claim
type ClaimResult struct {
	Vesting  valueobject.Identity `json:"vesting"`
	Amount   uint64               `json:"amount"`
	Released uint64               `json:"released"`
}

// RevokeResult reports a completed revocation
type RevokeResult struct {
	Vesting  valueobject.Identity `json:"vesting"`
	Unvested uint64               `json:"unvested"`
	Released uint64               `json:"released"`
}

// VoucherResponse is an issued voucher as handed to the buyer
type VoucherResponse struct {
	Sale          valueobject.Identity `json:"sale"`
	Buyer         valueobject.Identity `json:"buyer"`
	MaxAllocation uint64               `json:"max_allocation"`
	Nonce         uint64               `json:"nonce"`
	Expiry        int64                `json:"expiry_ts"`
	Signature     string               `json:"signature"`
	Signer        valueobject.Identity `json:"signer"`
	IssuedBy      valueobject.Identity `json:"issued_by"`
	IssuedAt      time.Time            `json:"issued_at"`
}

// ToVoucherResponse converts an issuance log entry
func ToVoucherResponse(iv *voucher.IssuedVoucher) VoucherResponse {
	return VoucherResponse{
		Sale:          iv.Sale,
		Buyer:         iv.Buyer,
		MaxAllocation: iv.MaxAllocation,
		Nonce:         iv.Nonce,
		Expiry:        iv.Expiry,
		Signature:     iv.Signature,
		Signer:        iv.Signer,
		IssuedBy:      iv.IssuedBy,
		IssuedAt:      iv.IssuedAt,
	}
}

// BalanceResponse is one (account, asset) holding
type BalanceResponse struct {
	Account   valueobject.Identity `json:"account"`
	Asset     valueobject.Identity `json:"asset"`
	Amount    uint64               `json:"amount"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// ToBalanceResponse converts a ledger balance
func ToBalanceResponse(b *ledger.Balance) BalanceResponse {
	return BalanceResponse{
		Account:   b.Account,
		Asset:     b.Asset,
		Amount:    b.Amount,
		UpdatedAt: b.UpdatedAt,
	}
}
