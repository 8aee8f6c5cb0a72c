package persistence

import (
	"context"
	"crypto/ed25519"
	"math"
	"testing"
	"time"

	"github.com/presale/backend/internal/domain/escrow"
	"github.com/presale/backend/internal/domain/ledger"
	"github.com/presale/backend/internal/domain/sale"
	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/vesting"
	"github.com/presale/backend/internal/domain/voucher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ====================================================================
// Sales
// ====================================================================

func newTestSale(t *testing.T) *sale.Sale {
	t.Helper()
	s, err := sale.Open(sale.OpenParams{
		Address:        identity(1),
		Owner:          identity(2),
		Asset:          identity(3),
		Treasury:       identity(4),
		Price:          5,
		StartTime:      1000,
		EndTime:        2000,
		TotalAllocated: math.MaxUint64,
	})
	require.NoError(t, err)
	return s
}

func TestGormSaleRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("missing sale is nil without error", func(t *testing.T) {
		repo := NewGormSaleRepository(setupTestDB(t))
		found, err := repo.FindByAddress(ctx, identity(1))
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("create and load keeps full uint64 range", func(t *testing.T) {
		repo := NewGormSaleRepository(setupTestDB(t))
		require.NoError(t, repo.Create(ctx, newTestSale(t)))

		found, err := repo.FindByAddressForUpdate(ctx, identity(1))
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, uint64(math.MaxUint64), found.TotalAllocated)
		assert.Equal(t, identity(4), found.Treasury)
		assert.Equal(t, 1, found.Version)
	})

	t.Run("amounts above max int64 are stored exactly", func(t *testing.T) {
		repo := NewGormSaleRepository(setupTestDB(t))
		s := newTestSale(t)
		s.TotalAllocated = 1<<63 + 1
		s.Price = math.MaxUint64 - 1
		require.NoError(t, repo.Create(ctx, s))

		found, err := repo.FindByAddress(ctx, identity(1))
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, uint64(1<<63+1), found.TotalAllocated)
		assert.Equal(t, uint64(math.MaxUint64-1), found.Price)

		require.NoError(t, found.Reserve(1<<63, 1500))
		require.NoError(t, repo.Save(ctx, found))
		reloaded, err := repo.FindByAddress(ctx, identity(1))
		require.NoError(t, err)
		require.NotNil(t, reloaded)
		assert.Equal(t, uint64(1<<63), reloaded.Sold)
		assert.Equal(t, uint64(1), reloaded.Remaining())
	})

	t.Run("second sale at the same address is rejected", func(t *testing.T) {
		repo := NewGormSaleRepository(setupTestDB(t))
		require.NoError(t, repo.Create(ctx, newTestSale(t)))
		assert.ErrorIs(t, repo.Create(ctx, newTestSale(t)), shared.ErrSaleAlreadyExists)
	})

	t.Run("save persists sold", func(t *testing.T) {
		repo := NewGormSaleRepository(setupTestDB(t))
		require.NoError(t, repo.Create(ctx, newTestSale(t)))

		loaded, err := repo.FindByAddress(ctx, identity(1))
		require.NoError(t, err)
		require.NoError(t, loaded.Reserve(60, 1500))
		require.NoError(t, repo.Save(ctx, loaded))

		reloaded, err := repo.FindByAddress(ctx, identity(1))
		require.NoError(t, err)
		assert.Equal(t, uint64(60), reloaded.Sold)
		assert.Equal(t, 2, reloaded.Version)
	})

	t.Run("stale save is a concurrency conflict", func(t *testing.T) {
		repo := NewGormSaleRepository(setupTestDB(t))
		require.NoError(t, repo.Create(ctx, newTestSale(t)))

		first, err := repo.FindByAddress(ctx, identity(1))
		require.NoError(t, err)
		require.NotNil(t, first)
		second, err := repo.FindByAddress(ctx, identity(1))
		require.NoError(t, err)
		require.NotNil(t, second)
		require.NoError(t, first.Reserve(10, 1500))
		require.NoError(t, second.Reserve(20, 1500))

		require.NoError(t, repo.Save(ctx, first))
		assert.ErrorIs(t, repo.Save(ctx, second), shared.ErrConcurrencyConflict)

		stored, err := repo.FindByAddress(ctx, identity(1))
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, uint64(10), stored.Sold)
	})
}

// ====================================================================
// Escrows
// ====================================================================

func TestGormEscrowRepository(t *testing.T) {
	ctx := context.Background()
	params := escrow.CreateParams{Address: identity(9), Sale: identity(1), Buyer: identity(6), Allocation: 30, Payment: 150, Nonce: 42}

	t.Run("create and find by pair", func(t *testing.T) {
		repo := NewGormEscrowRepository(setupTestDB(t))
		e, err := escrow.Create(params, nil)
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, e))

		found, err := repo.FindBySaleAndBuyer(ctx, identity(1), identity(6))
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, uint64(30), found.Allocation)
		assert.Equal(t, uint64(42), found.Nonce)

		none, err := repo.FindBySaleAndBuyer(ctx, identity(1), identity(7))
		require.NoError(t, err)
		assert.Nil(t, none)
	})

	t.Run("duplicate pair reports voucher already used", func(t *testing.T) {
		repo := NewGormEscrowRepository(setupTestDB(t))
		e, _ := escrow.Create(params, nil)
		require.NoError(t, repo.Create(ctx, e))

		again := params
		again.Address = identity(10)
		dup, _ := escrow.Create(again, nil)
		assert.ErrorIs(t, repo.Create(ctx, dup), shared.ErrVoucherAlreadyUsed)
	})

	t.Run("list by sale", func(t *testing.T) {
		repo := NewGormEscrowRepository(setupTestDB(t))
		for i, buyer := range []byte{6, 7, 8} {
			p := params
			p.Address = identity(20 + byte(i))
			p.Buyer = identity(buyer)
			e, _ := escrow.Create(p, nil)
			require.NoError(t, repo.Create(ctx, e))
		}

		list, err := repo.ListBySale(ctx, identity(1))
		require.NoError(t, err)
		assert.Len(t, list, 3)

		other, err := repo.ListBySale(ctx, identity(2))
		require.NoError(t, err)
		assert.Empty(t, other)
	})
}

// ====================================================================
// Vesting schedules
// ====================================================================

func newTestSchedule(t *testing.T) *vesting.Schedule {
	t.Helper()
	s, err := vesting.Create(vesting.CreateParams{
		Address: identity(30), Beneficiary: identity(31), Owner: identity(2),
		Asset: identity(3), Vault: identity(32), Treasury: identity(4),
		TotalAmount: 1000, StartTime: 0, CliffDuration: 100, Duration: 1000, Revocable: true,
	})
	require.NoError(t, err)
	return s
}

func TestGormScheduleRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("one schedule per address", func(t *testing.T) {
		repo := NewGormScheduleRepository(setupTestDB(t))
		require.NoError(t, repo.Create(ctx, newTestSchedule(t)))
		assert.ErrorIs(t, repo.Create(ctx, newTestSchedule(t)), shared.ErrVestingAlreadyExists)
	})

	t.Run("claim then revoke persists", func(t *testing.T) {
		repo := NewGormScheduleRepository(setupTestDB(t))
		require.NoError(t, repo.Create(ctx, newTestSchedule(t)))

		s, err := repo.FindByAddressForUpdate(ctx, identity(30))
		require.NoError(t, err)
		amount, err := s.PrepareClaim(identity(31), 550)
		require.NoError(t, err)
		require.NoError(t, s.CommitClaim(amount, 550))
		require.NoError(t, repo.Save(ctx, s))

		s, err = repo.FindByAddress(ctx, identity(30))
		require.NoError(t, err)
		assert.Equal(t, uint64(550), s.Released)

		unvested, err := s.PrepareRevoke(identity(2), 550)
		require.NoError(t, err)
		assert.Equal(t, uint64(450), unvested)
		require.NoError(t, s.CommitRevoke(unvested, 550))
		require.NoError(t, repo.Save(ctx, s))

		s, err = repo.FindByAddress(ctx, identity(30))
		require.NoError(t, err)
		assert.True(t, s.Revoked)
		assert.Equal(t, uint64(550), s.Released)
		assert.Equal(t, 3, s.Version)
	})
}

// ====================================================================
// Ledger
// ====================================================================

func TestGormLedgerRepository(t *testing.T) {
	ctx := context.Background()
	alice, bob := identity(40), identity(41)

	t.Run("deposit then transfer", func(t *testing.T) {
		repo := NewGormLedgerRepository(setupTestDB(t))

		_, err := ledger.Deposit(ctx, repo, alice, ledger.NativeAsset, 500, "seed")
		require.NoError(t, err)
		require.NoError(t, ledger.Apply(ctx, repo, ledger.Transfer{
			Asset: ledger.NativeAsset, From: alice, To: bob, Amount: 200, Reference: "t1",
		}))

		a, err := repo.FindBalance(ctx, alice, ledger.NativeAsset)
		require.NoError(t, err)
		b, err := repo.FindBalance(ctx, bob, ledger.NativeAsset)
		require.NoError(t, err)
		assert.Equal(t, uint64(300), a.Amount)
		assert.Equal(t, uint64(200), b.Amount)

		entries, err := repo.ListEntries(ctx, alice, 0)
		require.NoError(t, err)
		assert.Len(t, entries, 2)

		balances, err := repo.ListBalances(ctx, bob)
		require.NoError(t, err)
		assert.Len(t, balances, 1)
	})

	t.Run("insufficient funds writes nothing", func(t *testing.T) {
		repo := NewGormLedgerRepository(setupTestDB(t))
		err := ledger.Apply(ctx, repo, ledger.Transfer{Asset: ledger.NativeAsset, From: alice, To: bob, Amount: 1})
		assert.ErrorIs(t, err, shared.ErrInsufficientFunds)

		b, err := repo.FindBalance(ctx, bob, ledger.NativeAsset)
		require.NoError(t, err)
		assert.Nil(t, b)
	})

	t.Run("stale balance is a concurrency conflict", func(t *testing.T) {
		repo := NewGormLedgerRepository(setupTestDB(t))
		_, err := ledger.Deposit(ctx, repo, alice, ledger.NativeAsset, 10, "")
		require.NoError(t, err)

		stale, err := repo.FindBalance(ctx, alice, ledger.NativeAsset)
		require.NoError(t, err)
		require.NotNil(t, stale)
		fresh, err := repo.FindBalance(ctx, alice, ledger.NativeAsset)
		require.NoError(t, err)
		require.NotNil(t, fresh)
		require.NoError(t, fresh.Credit(1))
		require.NoError(t, repo.SaveBalance(ctx, fresh))

		require.NoError(t, stale.Credit(5))
		assert.ErrorIs(t, repo.SaveBalance(ctx, stale), shared.ErrConcurrencyConflict)
	})
}

// ====================================================================
// Issued vouchers
// ====================================================================

func TestGormIssuedVoucherRepository(t *testing.T) {
	ctx := context.Background()
	_, key, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	issuer, err := voucher.NewIssuer(key)
	require.NoError(t, err)
	repo := NewGormIssuedVoucherRepository(setupTestDB(t))

	base := time.Unix(1_700_000_000, 0)
	var nonces []uint64
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		sv, err := issuer.Issue(voucher.IssueParams{
			Buyer: identity(50), Sale: identity(1), MaxAllocation: 30, Expiry: at.Unix() + 3600,
		}, at)
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, voucher.NewIssuedVoucher(sv, identity(2), at)))
		nonces = append(nonces, sv.Voucher.Nonce)
	}

	t.Run("newest first", func(t *testing.T) {
		list, err := repo.ListByBuyer(ctx, identity(50))
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, nonces[2], list[0].Nonce)
		assert.Equal(t, nonces[0], list[2].Nonce)
	})

	t.Run("find by nonce", func(t *testing.T) {
		found, err := repo.FindByNonce(ctx, nonces[1])
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, identity(50), found.Buyer)

		missing, err := repo.FindByNonce(ctx, 1)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})
}
