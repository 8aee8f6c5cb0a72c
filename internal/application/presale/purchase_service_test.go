package presale

import (
	"context"
	"crypto/ed25519"
	"errors"
	"sync"
	"testing"

	"github.com/presale/backend/internal/domain/escrow"
	"github.com/presale/backend/internal/domain/ledger"
	"github.com/presale/backend/internal/domain/sale"
	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/shared/valueobject"
	"github.com/presale/backend/internal/domain/voucher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPurchaseService_SupplyScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	address := f.openSale(t)

	b1, b2, b3 := identity(0x01), identity(0x02), identity(0x03)
	for _, b := range []valueobject.Identity{b1, b2, b3} {
		f.fund(t, b, ledger.NativeAsset, 1_000)
	}

	f.at(1500)
	res, err := f.purchases.Purchase(ctx, f.purchaseRequest(address, b1, 60, 60, 3000, 1))
	require.NoError(t, err)
	assert.Equal(t, uint64(60), res.Sold)
	assert.Equal(t, uint64(300), res.Payment)
	assert.Equal(t, "0.0000003", res.PaymentNative)
	assert.Equal(t, uint64(60), res.Escrow.Allocation)

	f.at(1600)
	_, err = f.purchases.Purchase(ctx, f.purchaseRequest(address, b2, 50, 50, 3000, 2))
	assert.ErrorIs(t, err, shared.ErrInsufficientSupply)
	assert.Equal(t, uint64(1_000), f.native(b2), "failed purchase must not charge the buyer")

	res, err = f.purchases.Purchase(ctx, f.purchaseRequest(address, b2, 50, 40, 3000, 3))
	require.NoError(t, err)
	assert.Equal(t, uint64(100), res.Sold)
	assert.Equal(t, uint64(0), res.Remaining)

	_, err = f.purchases.Purchase(ctx, f.purchaseRequest(address, b3, 10, 1, 3000, 4))
	assert.ErrorIs(t, err, shared.ErrInsufficientSupply)

	assert.Equal(t, uint64(500), f.native(f.treasury))
	assert.Equal(t, uint64(700), f.native(b1))
	assert.Equal(t, uint64(800), f.native(b2))

	stored, err := f.sales.GetSale(ctx, address)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), stored.Sold)

	escrows, err := f.sales.ListEscrows(ctx, address)
	require.NoError(t, err)
	assert.Len(t, escrows, 2)
}

func TestPurchaseService_VoucherChecks(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*fixture, valueobject.Identity, valueobject.Identity) {
		f := newFixture(t)
		address := f.openSale(t)
		buyer := identity(0x01)
		f.fund(t, buyer, ledger.NativeAsset, 1_000)
		f.at(1500)
		return f, address, buyer
	}

	t.Run("request above max allocation", func(t *testing.T) {
		f, address, buyer := setup(t)
		_, err := f.purchases.Purchase(ctx, f.purchaseRequest(address, buyer, 30, 31, 2000, 1))
		assert.ErrorIs(t, err, shared.ErrExceedsAllocation)
	})

	t.Run("voucher past expiry", func(t *testing.T) {
		f, address, buyer := setup(t)
		f.at(2001)
		_, err := f.purchases.Purchase(ctx, f.purchaseRequest(address, buyer, 30, 30, 2000, 1))
		assert.ErrorIs(t, err, shared.ErrVoucherExpired)
	})

	t.Run("expiry is inclusive", func(t *testing.T) {
		f, address, buyer := setup(t)
		f.at(1800)
		_, err := f.purchases.Purchase(ctx, f.purchaseRequest(address, buyer, 30, 30, 1800, 1))
		assert.NoError(t, err)
	})

	t.Run("voucher presented by someone else", func(t *testing.T) {
		f, address, buyer := setup(t)
		req := f.purchaseRequest(address, buyer, 30, 10, 2000, 1)
		req.Caller = identity(0x09)
		_, err := f.purchases.Purchase(ctx, req)
		assert.ErrorIs(t, err, shared.ErrInvalidVoucher)
	})

	t.Run("tampered voucher", func(t *testing.T) {
		f, address, buyer := setup(t)
		req := f.purchaseRequest(address, buyer, 30, 10, 2000, 1)
		req.Voucher.MaxAllocation = 100
		_, err := f.purchases.Purchase(ctx, req)
		assert.ErrorIs(t, err, shared.ErrInvalidVoucher)
	})

	t.Run("signature from another key", func(t *testing.T) {
		f, address, buyer := setup(t)
		f.issuerKey = testKey(99)
		_, err := f.purchases.Purchase(ctx, f.purchaseRequest(address, buyer, 30, 10, 2000, 1))
		assert.ErrorIs(t, err, shared.ErrInvalidVoucher)
	})

	t.Run("second voucher with a new nonce is still a replay", func(t *testing.T) {
		f, address, buyer := setup(t)
		_, err := f.purchases.Purchase(ctx, f.purchaseRequest(address, buyer, 30, 10, 2000, 1))
		require.NoError(t, err)

		_, err = f.purchases.Purchase(ctx, f.purchaseRequest(address, buyer, 30, 10, 2000, 2))
		assert.ErrorIs(t, err, shared.ErrVoucherAlreadyUsed)
		assert.Equal(t, uint64(950), f.native(buyer))
	})

	t.Run("outside the sale window", func(t *testing.T) {
		f, address, buyer := setup(t)
		f.at(999)
		_, err := f.purchases.Purchase(ctx, f.purchaseRequest(address, buyer, 30, 10, 5000, 1))
		assert.ErrorIs(t, err, shared.ErrSaleNotStarted)

		f.at(2001)
		_, err = f.purchases.Purchase(ctx, f.purchaseRequest(address, buyer, 30, 10, 5000, 1))
		assert.ErrorIs(t, err, shared.ErrSaleEnded)
	})

	t.Run("unknown sale", func(t *testing.T) {
		f, _, buyer := setup(t)
		_, err := f.purchases.Purchase(ctx, f.purchaseRequest(identity(0x42), buyer, 30, 10, 2000, 1))
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("buyer cannot pay", func(t *testing.T) {
		f, address, _ := setup(t)
		poor := identity(0x0F)
		_, err := f.purchases.Purchase(ctx, f.purchaseRequest(address, poor, 30, 10, 2000, 1))
		assert.ErrorIs(t, err, shared.ErrInsufficientFunds)

		stored, err := f.sales.GetSale(ctx, address)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), stored.Sold)
		_, err = f.sales.GetEscrow(ctx, address, poor)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestPurchaseService_TransferFailureLeavesNoState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	address := f.openSale(t)
	buyer := identity(0x01)
	f.at(1500)

	transferer := new(MockTransferer)
	transferer.On("Transfer", mock.Anything, mock.Anything, mock.MatchedBy(func(tr ledger.Transfer) bool {
		return tr.From == buyer && tr.To == f.treasury && tr.Amount == 50 && tr.Asset == ledger.NativeAsset
	})).Return(errors.New("transfer rejected"))

	gate := voucher.NewGate(voucher.NewEd25519Verifier(), f.issuerKey.Public().(ed25519.PublicKey))
	svc := NewPurchaseService(f.store.scope(), gate, f.deriver, transferer, shared.FixedUnixClock(1500))

	_, err := svc.Purchase(ctx, f.purchaseRequest(address, buyer, 30, 10, 2000, 1))
	assert.EqualError(t, err, "transfer rejected")
	transferer.AssertExpectations(t)

	stored, err := f.sales.GetSale(ctx, address)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), stored.Sold)
	assert.Empty(t, f.store.escrows)
}

func TestPurchaseService_PublishesEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	address := f.openSale(t)
	buyer := identity(0x01)
	f.fund(t, buyer, ledger.NativeAsset, 100)
	f.at(1500)

	_, err := f.purchases.Purchase(ctx, f.purchaseRequest(address, buyer, 10, 10, 2000, 1))
	require.NoError(t, err)
	assert.Equal(t, []string{
		sale.EventTypeSaleOpened,
		sale.EventTypeSupplyReserved,
		escrow.EventTypeAllocationPurchased,
	}, f.publisher.types())
}

func TestPurchaseService_ConcurrentBuyersNeverOversell(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	address := f.openSale(t)
	f.at(1500)

	const buyers = 40
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded uint64
	)
	for i := 0; i < buyers; i++ {
		buyer := identity(byte(0x10 + i))
		f.fund(t, buyer, ledger.NativeAsset, 100)
		req := f.purchaseRequest(address, buyer, 7, 7, 2000, uint64(i))

		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.purchases.Purchase(ctx, req)
			if err != nil {
				assert.ErrorIs(t, err, shared.ErrInsufficientSupply)
				return
			}
			mu.Lock()
			succeeded += res.Escrow.Allocation
			mu.Unlock()
		}()
	}
	wg.Wait()

	stored, err := f.sales.GetSale(ctx, address)
	require.NoError(t, err)
	assert.Equal(t, uint64(98), stored.Sold, "14 purchases of 7 fit in a supply of 100")
	assert.Equal(t, stored.Sold, succeeded)
	assert.Equal(t, stored.Sold*5, f.native(f.treasury))
	assert.Equal(t, 0, f.purchases.locks.Len())
}
