// Package ledger is the value-transfer primitive: per-(account, asset)
// balances and an append-only journal of movements.
package ledger

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/shared/safemath"
	"github.com/presale/backend/internal/domain/shared/valueobject"
)

// NativeAsset identifies the native currency used for sale payments
var NativeAsset = valueobject.ZeroIdentity

// EntryKind classifies a journal entry
type EntryKind string

const (
	EntryKindDeposit  EntryKind = "DEPOSIT"
	EntryKindTransfer EntryKind = "TRANSFER"
)

// Balance is the holding of one asset by one account
type Balance struct {
	Account   valueobject.Identity
	Asset     valueobject.Identity
	Amount    uint64
	Version   int
	UpdatedAt time.Time
}

// NewBalance returns an empty balance
func NewBalance(account, asset valueobject.Identity) *Balance {
	return &Balance{Account: account, Asset: asset}
}

// Credit adds amount
func (b *Balance) Credit(amount uint64) error {
	next, err := safemath.Add(b.Amount, amount)
	if err != nil {
		return err
	}
	b.Amount = next
	b.Version++
	b.UpdatedAt = time.Now()
	return nil
}

// Debit removes amount or fails with ErrInsufficientFunds
func (b *Balance) Debit(amount uint64) error {
	if amount > b.Amount {
		return shared.ErrInsufficientFunds
	}
	b.Amount -= amount
	b.Version++
	b.UpdatedAt = time.Now()
	return nil
}

// Entry is an immutable journal record. From is zero for deposits.
type Entry struct {
	ID        uuid.UUID
	Kind      EntryKind
	Asset     valueobject.Identity
	From      valueobject.Identity
	To        valueobject.Identity
	Amount    uint64
	Reference string
	CreatedAt time.Time
}

// Transfer is a request to move Amount of Asset from one account to another
type Transfer struct {
	Asset     valueobject.Identity
	From      valueobject.Identity
	To        valueobject.Identity
	Amount    uint64
	Reference string
}

// Repository stores balances and journal entries
type Repository interface {
	// FindBalanceForUpdate returns the locked balance, or nil, nil when the
	// account never held the asset
	FindBalanceForUpdate(ctx context.Context, account, asset valueobject.Identity) (*Balance, error)
	FindBalance(ctx context.Context, account, asset valueobject.Identity) (*Balance, error)
	SaveBalance(ctx context.Context, b *Balance) error
	AppendEntry(ctx context.Context, e *Entry) error
	ListEntries(ctx context.Context, account valueobject.Identity, limit int) ([]Entry, error)
	ListBalances(ctx context.Context, account valueobject.Identity) ([]Balance, error)
}

// Apply performs a transfer against repo. The repository must be scoped to
// the caller's transaction so a failure later in the same unit undoes it.
// A zero amount moves nothing and writes nothing.
func Apply(ctx context.Context, repo Repository, t Transfer) error {
	if t.Amount == 0 {
		return nil
	}
	if t.From == t.To {
		return shared.ErrInvalidInput
	}

	from, to, err := lockPair(ctx, repo, t.From, t.To, t.Asset)
	if err != nil {
		return err
	}

	if err := from.Debit(t.Amount); err != nil {
		return err
	}
	if err := to.Credit(t.Amount); err != nil {
		return err
	}
	if err := repo.SaveBalance(ctx, from); err != nil {
		return err
	}
	if err := repo.SaveBalance(ctx, to); err != nil {
		return err
	}
	return repo.AppendEntry(ctx, &Entry{
		ID:        uuid.New(),
		Kind:      EntryKindTransfer,
		Asset:     t.Asset,
		From:      t.From,
		To:        t.To,
		Amount:    t.Amount,
		Reference: t.Reference,
		CreatedAt: time.Now(),
	})
}

// Deposit credits an account from outside the ledger
func Deposit(ctx context.Context, repo Repository, account, asset valueobject.Identity, amount uint64, reference string) (*Balance, error) {
	if amount == 0 {
		return nil, shared.ErrInvalidAllocation
	}
	b, err := loadOrEmpty(ctx, repo, account, asset)
	if err != nil {
		return nil, err
	}
	if err := b.Credit(amount); err != nil {
		return nil, err
	}
	if err := repo.SaveBalance(ctx, b); err != nil {
		return nil, err
	}
	if err := repo.AppendEntry(ctx, &Entry{
		ID:        uuid.New(),
		Kind:      EntryKindDeposit,
		Asset:     asset,
		To:        account,
		Amount:    amount,
		Reference: reference,
		CreatedAt: time.Now(),
	}); err != nil {
		return nil, err
	}
	return b, nil
}

// lockPair loads both balances for update, always locking the lower account
// first so opposite transfers between the same pair cannot deadlock.
func lockPair(ctx context.Context, repo Repository, from, to, asset valueobject.Identity) (*Balance, *Balance, error) {
	first, second := from, to
	if bytes.Compare(to.Bytes(), from.Bytes()) < 0 {
		first, second = to, from
	}
	a, err := loadOrEmpty(ctx, repo, first, asset)
	if err != nil {
		return nil, nil, err
	}
	b, err := loadOrEmpty(ctx, repo, second, asset)
	if err != nil {
		return nil, nil, err
	}
	if first == from {
		return a, b, nil
	}
	return b, a, nil
}

func loadOrEmpty(ctx context.Context, repo Repository, account, asset valueobject.Identity) (*Balance, error) {
	b, err := repo.FindBalanceForUpdate(ctx, account, asset)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return NewBalance(account, asset), nil
	}
	return b, nil
}
