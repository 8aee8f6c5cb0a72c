package presale

import (
	"context"
	"crypto/ed25519"
	"sync/atomic"
	"testing"
	"time"

	"github.com/presale/backend/internal/domain/ledger"
	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/shared/valueobject"
	"github.com/presale/backend/internal/domain/voucher"
	"github.com/stretchr/testify/require"
)

// fixture wires every service over one in-memory store and a settable clock
type fixture struct {
	store     *memStore
	deriver   *valueobject.Deriver
	admin     valueobject.Identity
	token     valueobject.Identity
	treasury  valueobject.Identity
	issuerKey ed25519.PrivateKey
	now       atomic.Int64
	publisher *MockEventPublisher

	sales     *SaleService
	purchases *PurchaseService
	vestings  *VestingService
	vouchers  *VoucherService
	ledger    *LedgerService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:     newMemStore(),
		deriver:   valueobject.NewDeriver(identity(0xEE)),
		admin:     identity(0xA1),
		token:     identity(0x70),
		treasury:  identity(0x7E),
		issuerKey: testKey(7),
		publisher: &MockEventPublisher{},
	}
	clock := shared.ClockFunc(func() time.Time { return time.Unix(f.now.Load(), 0) })
	admins := NewAdministrators(f.admin)
	scope := f.store.scope()
	transferer := NewLedgerTransferer()

	gate := voucher.NewGate(voucher.NewEd25519Verifier(), f.issuerKey.Public().(ed25519.PublicKey))
	issuer, err := voucher.NewIssuer(f.issuerKey)
	require.NoError(t, err)

	f.sales = NewSaleService(scope, scope.SaleRepo(), scope.EscrowRepo(), f.deriver, admins)
	f.purchases = NewPurchaseService(scope, gate, f.deriver, transferer, clock)
	f.vestings = NewVestingService(scope, scope.ScheduleRepo(), f.deriver, transferer, clock)
	f.vouchers = NewVoucherService(scope, issuer, scope.VoucherRepo(), admins, clock)
	f.ledger = NewLedgerService(scope, scope.LedgerRepo(), admins)

	f.sales.SetEventPublisher(f.publisher)
	f.purchases.SetEventPublisher(f.publisher)
	f.vestings.SetEventPublisher(f.publisher)
	f.vouchers.SetEventPublisher(f.publisher)
	return f
}

func (f *fixture) at(unix int64) {
	f.now.Store(unix)
}

// openSale opens {total 100, price 5, [1000, 2000]} owned by the admin
func (f *fixture) openSale(t *testing.T) valueobject.Identity {
	t.Helper()
	resp, err := f.sales.OpenSale(context.Background(), OpenSaleRequest{
		Caller:         f.admin,
		Asset:          f.token,
		Treasury:       f.treasury,
		Price:          5,
		StartTime:      1000,
		EndTime:        2000,
		TotalAllocated: 100,
	})
	require.NoError(t, err)
	return resp.Address
}

func (f *fixture) fund(t *testing.T, account, asset valueobject.Identity, amount uint64) {
	t.Helper()
	_, err := f.ledger.Deposit(context.Background(), DepositRequest{
		Caller:  f.admin,
		Account: account,
		Asset:   asset,
		Amount:  amount,
	})
	require.NoError(t, err)
}

func (f *fixture) sign(v voucher.Voucher) []byte {
	return ed25519.Sign(f.issuerKey, v.Message())
}

func (f *fixture) purchaseRequest(saleAddress, buyer valueobject.Identity, max, requested uint64, expiry int64, nonce uint64) PurchaseRequest {
	v := voucher.Voucher{Buyer: buyer, Sale: saleAddress, MaxAllocation: max, Nonce: nonce, Expiry: expiry}
	return PurchaseRequest{
		Caller:    buyer,
		Sale:      saleAddress,
		Requested: requested,
		Voucher:   v,
		Signature: f.sign(v),
	}
}

func (f *fixture) native(account valueobject.Identity) uint64 {
	return f.store.balance(account, ledger.NativeAsset)
}
