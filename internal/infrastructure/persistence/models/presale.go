package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/presale/backend/internal/domain/escrow"
	"github.com/presale/backend/internal/domain/ledger"
	"github.com/presale/backend/internal/domain/sale"
	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/shared/valueobject"
	"github.com/presale/backend/internal/domain/vesting"
	"github.com/presale/backend/internal/domain/voucher"
)

// AggregateModel carries the bookkeeping columns shared by aggregates
type AggregateModel struct {
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
	Version   int       `gorm:"not null;default:1"`
}

func (m *AggregateModel) fromDomain(a shared.BaseAggregateRoot) {
	m.CreatedAt = a.CreatedAt
	m.UpdatedAt = a.UpdatedAt
	m.Version = a.Version
}

func (m *AggregateModel) toDomain() shared.BaseAggregateRoot {
	return shared.RestoreAggregateRoot(m.CreatedAt, m.UpdatedAt, m.Version)
}

// ====================================================================
// Sale
// ====================================================================

// SaleModel is the persistence model for sale.Sale
type SaleModel struct {
	AggregateModel
	Address        valueobject.Identity `gorm:"type:varchar(44);primaryKey"`
	Owner          valueobject.Identity `gorm:"type:varchar(44);not null;uniqueIndex"`
	Asset          valueobject.Identity `gorm:"type:varchar(44);not null"`
	Treasury       valueobject.Identity `gorm:"type:varchar(44);not null"`
	Price          Units                `gorm:"not null"`
	StartTime      int64                `gorm:"not null"`
	EndTime        int64                `gorm:"not null"`
	TotalAllocated Units                `gorm:"not null"`
	Sold           Units                `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SaleModel) TableName() string {
	return "sales"
}

// FromDomain populates the model from a sale
func (m *SaleModel) FromDomain(s *sale.Sale) {
	m.fromDomain(s.BaseAggregateRoot)
	m.Address = s.Address
	m.Owner = s.Owner
	m.Asset = s.Asset
	m.Treasury = s.Treasury
	m.Price = Units(s.Price)
	m.StartTime = s.StartTime
	m.EndTime = s.EndTime
	m.TotalAllocated = Units(s.TotalAllocated)
	m.Sold = Units(s.Sold)
}

// ToDomain converts the model to a sale
func (m *SaleModel) ToDomain() *sale.Sale {
	return &sale.Sale{
		BaseAggregateRoot: m.toDomain(),
		Address:           m.Address,
		Owner:             m.Owner,
		Asset:             m.Asset,
		Treasury:          m.Treasury,
		Price:             uint64(m.Price),
		StartTime:         m.StartTime,
		EndTime:           m.EndTime,
		TotalAllocated:    uint64(m.TotalAllocated),
		Sold:              uint64(m.Sold),
	}
}

// ====================================================================
// Escrow
// ====================================================================

// EscrowModel is the persistence model for escrow.PurchaseEscrow
type EscrowModel struct {
	AggregateModel
	Address    valueobject.Identity `gorm:"type:varchar(44);primaryKey"`
	Sale       valueobject.Identity `gorm:"type:varchar(44);not null;uniqueIndex:idx_escrow_sale_buyer,priority:1"`
	Buyer      valueobject.Identity `gorm:"type:varchar(44);not null;uniqueIndex:idx_escrow_sale_buyer,priority:2"`
	Allocation Units                `gorm:"not null"`
	Claimed    Units                `gorm:"not null"`
	Payment    Units                `gorm:"not null"`
	Nonce      Units                `gorm:"not null"`
}

// TableName returns the table name for GORM
func (EscrowModel) TableName() string {
	return "purchase_escrows"
}

// FromDomain populates the model from an escrow
func (m *EscrowModel) FromDomain(e *escrow.PurchaseEscrow) {
	m.fromDomain(e.BaseAggregateRoot)
	m.Address = e.Address
	m.Sale = e.Sale
	m.Buyer = e.Buyer
	m.Allocation = Units(e.Allocation)
	m.Claimed = Units(e.Claimed)
	m.Payment = Units(e.Payment)
	m.Nonce = Units(e.Nonce)
}

// ToDomain converts the model to an escrow
func (m *EscrowModel) ToDomain() *escrow.PurchaseEscrow {
	return &escrow.PurchaseEscrow{
		BaseAggregateRoot: m.toDomain(),
		Address:           m.Address,
		Sale:              m.Sale,
		Buyer:             m.Buyer,
		Allocation:        uint64(m.Allocation),
		Claimed:           uint64(m.Claimed),
		Payment:           uint64(m.Payment),
		Nonce:             uint64(m.Nonce),
	}
}

// ====================================================================
// Vesting schedule
// ====================================================================

// VestingScheduleModel is the persistence model for vesting.Schedule
type VestingScheduleModel struct {
	AggregateModel
	Address       valueobject.Identity `gorm:"type:varchar(44);primaryKey"`
	Beneficiary   valueobject.Identity `gorm:"type:varchar(44);not null;uniqueIndex"`
	Owner         valueobject.Identity `gorm:"type:varchar(44);not null;index"`
	Asset         valueobject.Identity `gorm:"type:varchar(44);not null"`
	Vault         valueobject.Identity `gorm:"type:varchar(44);not null"`
	Treasury      valueobject.Identity `gorm:"type:varchar(44);not null"`
	TotalAmount   Units                `gorm:"not null"`
	Released      Units                `gorm:"not null"`
	StartTime     int64                `gorm:"not null"`
	CliffDuration Units                `gorm:"not null"`
	Duration      Units                `gorm:"not null"`
	Revocable     bool                 `gorm:"not null"`
	Revoked       bool                 `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (VestingScheduleModel) TableName() string {
	return "vesting_schedules"
}

// FromDomain populates the model from a schedule
func (m *VestingScheduleModel) FromDomain(s *vesting.Schedule) {
	m.fromDomain(s.BaseAggregateRoot)
	m.Address = s.Address
	m.Beneficiary = s.Beneficiary
	m.Owner = s.Owner
	m.Asset = s.Asset
	m.Vault = s.Vault
	m.Treasury = s.Treasury
	m.TotalAmount = Units(s.TotalAmount)
	m.Released = Units(s.Released)
	m.StartTime = s.StartTime
	m.CliffDuration = Units(s.CliffDuration)
	m.Duration = Units(s.Duration)
	m.Revocable = s.Revocable
	m.Revoked = s.Revoked
}

// ToDomain converts the model to a schedule
func (m *VestingScheduleModel) ToDomain() *vesting.Schedule {
	return &vesting.Schedule{
		BaseAggregateRoot: m.toDomain(),
		Address:           m.Address,
		Beneficiary:       m.Beneficiary,
		Owner:             m.Owner,
		Asset:             m.Asset,
		Vault:             m.Vault,
		Treasury:          m.Treasury,
		TotalAmount:       uint64(m.TotalAmount),
		Released:          uint64(m.Released),
		StartTime:         m.StartTime,
		CliffDuration:     uint64(m.CliffDuration),
		Duration:          uint64(m.Duration),
		Revocable:         m.Revocable,
		Revoked:           m.Revoked,
	}
}

// ====================================================================
// Ledger
// ====================================================================

// BalanceModel is the persistence model for ledger.Balance
type BalanceModel struct {
	Account   valueobject.Identity `gorm:"type:varchar(44);primaryKey"`
	Asset     valueobject.Identity `gorm:"type:varchar(44);primaryKey"`
	Amount    Units                `gorm:"not null"`
	Version   int                  `gorm:"not null;default:1"`
	UpdatedAt time.Time            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BalanceModel) TableName() string {
	return "ledger_balances"
}

// FromDomain populates the model from a balance
func (m *BalanceModel) FromDomain(b *ledger.Balance) {
	m.Account = b.Account
	m.Asset = b.Asset
	m.Amount = Units(b.Amount)
	m.Version = b.Version
	m.UpdatedAt = b.UpdatedAt
}

// ToDomain converts the model to a balance
func (m *BalanceModel) ToDomain() *ledger.Balance {
	return &ledger.Balance{
		Account:   m.Account,
		Asset:     m.Asset,
		Amount:    uint64(m.Amount),
		Version:   m.Version,
		UpdatedAt: m.UpdatedAt,
	}
}

// LedgerEntryModel is the persistence model for ledger.Entry
type LedgerEntryModel struct {
	ID        uuid.UUID            `gorm:"type:uuid;primaryKey"`
	Kind      string               `gorm:"type:varchar(20);not null"`
	Asset     valueobject.Identity `gorm:"type:varchar(44);not null"`
	From      valueobject.Identity `gorm:"column:from_account;type:varchar(44);not null;index"`
	To        valueobject.Identity `gorm:"column:to_account;type:varchar(44);not null;index"`
	Amount    Units                `gorm:"not null"`
	Reference string               `gorm:"type:varchar(255)"`
	CreatedAt time.Time            `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (LedgerEntryModel) TableName() string {
	return "ledger_entries"
}

// FromDomain populates the model from a journal entry
func (m *LedgerEntryModel) FromDomain(e *ledger.Entry) {
	m.ID = e.ID
	m.Kind = string(e.Kind)
	m.Asset = e.Asset
	m.From = e.From
	m.To = e.To
	m.Amount = Units(e.Amount)
	m.Reference = e.Reference
	m.CreatedAt = e.CreatedAt
}

// ToDomain converts the model to a journal entry
func (m *LedgerEntryModel) ToDomain() *ledger.Entry {
	return &ledger.Entry{
		ID:        m.ID,
		Kind:      ledger.EntryKind(m.Kind),
		Asset:     m.Asset,
		From:      m.From,
		To:        m.To,
		Amount:    uint64(m.Amount),
		Reference: m.Reference,
		CreatedAt: m.CreatedAt,
	}
}

// ====================================================================
// Issued vouchers
// ====================================================================

// IssuedVoucherModel is the persistence model for voucher.IssuedVoucher
type IssuedVoucherModel struct {
	AggregateModel
	ID            uuid.UUID            `gorm:"type:uuid;primaryKey"`
	Sale          valueobject.Identity `gorm:"type:varchar(44);not null;index"`
	Buyer         valueobject.Identity `gorm:"type:varchar(44);not null;index"`
	MaxAllocation Units                `gorm:"not null"`
	Nonce         Units                `gorm:"not null;uniqueIndex"`
	Expiry        int64                `gorm:"not null"`
	Signature     string               `gorm:"type:varchar(128);not null"`
	Signer        valueobject.Identity `gorm:"type:varchar(44);not null"`
	IssuedBy      valueobject.Identity `gorm:"type:varchar(44);not null"`
	IssuedAt      time.Time            `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (IssuedVoucherModel) TableName() string {
	return "issued_vouchers"
}

// FromDomain populates the model from an issued voucher
func (m *IssuedVoucherModel) FromDomain(iv *voucher.IssuedVoucher) {
	m.fromDomain(iv.BaseAggregateRoot)
	m.ID = iv.ID
	m.Sale = iv.Sale
	m.Buyer = iv.Buyer
	m.MaxAllocation = Units(iv.MaxAllocation)
	m.Nonce = Units(iv.Nonce)
	m.Expiry = iv.Expiry
	m.Signature = iv.Signature
	m.Signer = iv.Signer
	m.IssuedBy = iv.IssuedBy
	m.IssuedAt = iv.IssuedAt
}

// ToDomain converts the model to an issued voucher
func (m *IssuedVoucherModel) ToDomain() *voucher.IssuedVoucher {
	return &voucher.IssuedVoucher{
		BaseAggregateRoot: m.toDomain(),
		ID:                m.ID,
		Sale:              m.Sale,
		Buyer:             m.Buyer,
		MaxAllocation:     uint64(m.MaxAllocation),
		Nonce:             uint64(m.Nonce),
		Expiry:            m.Expiry,
		Signature:         m.Signature,
		Signer:            m.Signer,
		IssuedBy:          m.IssuedBy,
		IssuedAt:          m.IssuedAt,
	}
}
