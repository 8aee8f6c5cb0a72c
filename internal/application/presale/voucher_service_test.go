package presale

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/presale/backend/internal/domain/ledger"
	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/voucher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoucherService_Issue(t *testing.T) {
	ctx := context.Background()
	buyer := identity(0x01)

	t.Run("issued voucher verifies against the issuer key", func(t *testing.T) {
		f := newFixture(t)
		f.at(1000)
		address := f.openSale(t)

		resp, err := f.vouchers.Issue(ctx, IssueVoucherRequest{
			Caller: f.admin, Buyer: buyer, Sale: address, MaxAllocation: 30, Expiry: 2000,
		})
		require.NoError(t, err)
		assert.Equal(t, f.vouchers.Signer(), resp.Signer)
		assert.Equal(t, f.admin, resp.IssuedBy)

		sig, err := voucher.DecodeSignature(resp.Signature)
		require.NoError(t, err)
		v := voucher.Voucher{Buyer: buyer, Sale: address, MaxAllocation: 30, Nonce: resp.Nonce, Expiry: 2000}
		assert.True(t, ed25519.Verify(f.issuerKey.Public().(ed25519.PublicKey), v.Message(), sig))
		assert.Contains(t, f.publisher.types(), voucher.EventTypeVoucherIssued)
	})

	t.Run("issued voucher can be redeemed", func(t *testing.T) {
		f := newFixture(t)
		address := f.openSale(t)
		f.fund(t, buyer, ledger.NativeAsset, 500)
		f.at(1500)

		resp, err := f.vouchers.Issue(ctx, IssueVoucherRequest{
			Caller: f.admin, Buyer: buyer, Sale: address, MaxAllocation: 30, Expiry: 2000,
		})
		require.NoError(t, err)
		sig, err := voucher.DecodeSignature(resp.Signature)
		require.NoError(t, err)

		res, err := f.purchases.Purchase(ctx, PurchaseRequest{
			Caller:    buyer,
			Sale:      address,
			Requested: 30,
			Voucher:   voucher.Voucher{Buyer: buyer, Sale: address, MaxAllocation: 30, Nonce: resp.Nonce, Expiry: 2000},
			Signature: sig,
		})
		require.NoError(t, err)
		assert.Equal(t, resp.Nonce, res.Escrow.Nonce)
	})

	t.Run("only administrators issue", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.vouchers.Issue(ctx, IssueVoucherRequest{
			Caller: buyer, Buyer: buyer, Sale: identity(0x02), MaxAllocation: 1, Expiry: 10,
		})
		assert.ErrorIs(t, err, shared.ErrUnauthorized)
	})

	t.Run("parameters are validated", func(t *testing.T) {
		f := newFixture(t)
		f.at(100)
		_, err := f.vouchers.Issue(ctx, IssueVoucherRequest{Caller: f.admin, Buyer: buyer, Sale: identity(0x02), Expiry: 200})
		assert.ErrorIs(t, err, shared.ErrInvalidAllocation)
		_, err = f.vouchers.Issue(ctx, IssueVoucherRequest{Caller: f.admin, Buyer: buyer, Sale: identity(0x02), MaxAllocation: 1, Expiry: 99})
		assert.ErrorIs(t, err, shared.ErrVoucherExpired)
		assert.Empty(t, f.store.vouchers)
	})

	t.Run("without an issuer key", func(t *testing.T) {
		f := newFixture(t)
		svc := NewVoucherService(f.store.scope(), nil, f.store.scope().VoucherRepo(), NewAdministrators(f.admin), shared.FixedUnixClock(0))
		_, err := svc.Issue(ctx, IssueVoucherRequest{Caller: f.admin, Buyer: buyer, Sale: identity(0x02), MaxAllocation: 1, Expiry: 10})
		assert.ErrorIs(t, err, shared.ErrIssuerKeyNotAvailable)
		assert.True(t, svc.Signer().IsZero())
	})
}

func TestVoucherService_ListByBuyer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	buyer := identity(0x01)

	for i := 0; i < 3; i++ {
		_, err := f.vouchers.Issue(ctx, IssueVoucherRequest{
			Caller: f.admin, Buyer: buyer, Sale: identity(0x02), MaxAllocation: uint64(i + 1), Expiry: 10,
		})
		require.NoError(t, err)
	}
	_, err := f.vouchers.Issue(ctx, IssueVoucherRequest{
		Caller: f.admin, Buyer: identity(0x03), Sale: identity(0x02), MaxAllocation: 1, Expiry: 10,
	})
	require.NoError(t, err)

	list, err := f.vouchers.ListByBuyer(ctx, buyer)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Greater(t, list[0].Nonce, list[1].Nonce)
	assert.Greater(t, list[1].Nonce, list[2].Nonce)
	assert.Equal(t, uint64(3), list[0].MaxAllocation)
}
