package persistence

import (
	"context"
	"crypto/ed25519"
	"errors"
	"testing"

	"github.com/presale/backend/internal/application/presale"
	"github.com/presale/backend/internal/domain/escrow"
	"github.com/presale/backend/internal/domain/ledger"
	"github.com/presale/backend/internal/domain/sale"
	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/shared/valueobject"
	"github.com/presale/backend/internal/domain/voucher"
	"github.com/presale/backend/internal/infrastructure/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type settlement struct {
	db        *gorm.DB
	scope     *GormTransactionScope
	admin     valueobject.Identity
	buyer     valueobject.Identity
	treasury  valueobject.Identity
	sales     *presale.SaleService
	purchases *presale.PurchaseService
	ledger    *presale.LedgerService
	vouchers  *presale.VoucherService
}

func newSettlement(t *testing.T) *settlement {
	t.Helper()
	return newSettlementOn(t, setupTestDB(t))
}

func newSettlementOn(t *testing.T, db *gorm.DB) *settlement {
	t.Helper()
	_, issuerKey, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	issuer, err := voucher.NewIssuer(issuerKey)
	require.NoError(t, err)

	s := &settlement{db: db, admin: identity(0xA1), buyer: identity(0xB1), treasury: identity(0x7E)}
	s.scope = NewGormTransactionScope(db)
	clock := shared.FixedUnixClock(1500)
	deriver := valueobject.NewDeriver(identity(0xEE))
	admins := presale.NewAdministrators(s.admin)
	scope := s.scope
	gate := voucher.NewGate(voucher.NewEd25519Verifier(), issuerKey.Public().(ed25519.PublicKey))

	s.sales = presale.NewSaleService(scope, NewGormSaleRepository(db), NewGormEscrowRepository(db), deriver, admins)
	s.purchases = presale.NewPurchaseService(scope, gate, deriver, presale.NewLedgerTransferer(), clock)
	s.ledger = presale.NewLedgerService(scope, NewGormLedgerRepository(db), admins)
	s.vouchers = presale.NewVoucherService(scope, issuer, NewGormIssuedVoucherRepository(db), admins, clock)
	return s
}

func (s *settlement) voucher(t *testing.T, saleAddress valueobject.Identity, max uint64) presale.PurchaseRequest {
	t.Helper()
	return s.voucherFor(t, s.buyer, saleAddress, max)
}

func (s *settlement) voucherFor(t *testing.T, buyer, saleAddress valueobject.Identity, max uint64) presale.PurchaseRequest {
	t.Helper()
	issued, err := s.vouchers.Issue(context.Background(), presale.IssueVoucherRequest{
		Caller: s.admin, Buyer: buyer, Sale: saleAddress, MaxAllocation: max, Expiry: 2000,
	})
	require.NoError(t, err)
	sig, err := voucher.DecodeSignature(issued.Signature)
	require.NoError(t, err)
	return presale.PurchaseRequest{
		Caller: buyer,
		Sale:   saleAddress,
		Voucher: voucher.Voucher{
			Buyer: issued.Buyer, Sale: issued.Sale, MaxAllocation: issued.MaxAllocation,
			Nonce: issued.Nonce, Expiry: issued.Expiry,
		},
		Signature: sig,
	}
}

func TestGormTransactionScope_Purchase(t *testing.T) {
	ctx := context.Background()

	open := func(t *testing.T, s *settlement) valueobject.Identity {
		t.Helper()
		resp, err := s.sales.OpenSale(ctx, presale.OpenSaleRequest{
			Caller: s.admin, Asset: identity(0x70), Treasury: s.treasury,
			Price: 5, StartTime: 1000, EndTime: 2000, TotalAllocated: 100,
		})
		require.NoError(t, err)
		return resp.Address
	}

	t.Run("commits sale, escrow and payment together", func(t *testing.T) {
		s := newSettlement(t)
		saleAddress := open(t, s)
		_, err := s.ledger.Deposit(ctx, presale.DepositRequest{Caller: s.admin, Account: s.buyer, Asset: ledger.NativeAsset, Amount: 1000})
		require.NoError(t, err)

		req := s.voucher(t, saleAddress, 30)
		req.Requested = 30
		result, err := s.purchases.Purchase(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, uint64(150), result.Payment)
		assert.Equal(t, uint64(30), result.Sold)

		treasury, err := s.ledger.Balance(ctx, s.treasury, ledger.NativeAsset)
		require.NoError(t, err)
		assert.Equal(t, uint64(150), treasury.Amount)

		stored, err := s.sales.GetEscrow(ctx, saleAddress, s.buyer)
		require.NoError(t, err)
		assert.Equal(t, uint64(30), stored.Allocation)
	})

	t.Run("replay with a fresh voucher is rejected", func(t *testing.T) {
		s := newSettlement(t)
		saleAddress := open(t, s)
		_, err := s.ledger.Deposit(ctx, presale.DepositRequest{Caller: s.admin, Account: s.buyer, Asset: ledger.NativeAsset, Amount: 1000})
		require.NoError(t, err)

		first := s.voucher(t, saleAddress, 30)
		first.Requested = 10
		_, err = s.purchases.Purchase(ctx, first)
		require.NoError(t, err)

		second := s.voucher(t, saleAddress, 30)
		second.Requested = 10
		_, err = s.purchases.Purchase(ctx, second)
		assert.ErrorIs(t, err, shared.ErrVoucherAlreadyUsed)

		current, err := s.sales.GetSale(ctx, saleAddress)
		require.NoError(t, err)
		assert.Equal(t, uint64(10), current.Sold)
	})

	t.Run("failed payment rolls back the reservation", func(t *testing.T) {
		s := newSettlement(t)
		saleAddress := open(t, s)

		req := s.voucher(t, saleAddress, 30)
		req.Requested = 30
		_, err := s.purchases.Purchase(ctx, req)
		assert.ErrorIs(t, err, shared.ErrInsufficientFunds)

		current, err := s.sales.GetSale(ctx, saleAddress)
		require.NoError(t, err)
		assert.Zero(t, current.Sold)
		assert.Equal(t, 1, current.Version)

		_, err = s.sales.GetEscrow(ctx, saleAddress, s.buyer)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormTransactionScope_RollsBackOnError(t *testing.T) {
	db := setupTestDB(t)
	scope := NewGormTransactionScope(db)
	ctx := context.Background()

	err := scope.Execute(ctx, func(repos presale.TransactionalRepositories) error {
		if _, err := ledger.Deposit(ctx, repos.LedgerRepo(), identity(1), ledger.NativeAsset, 10, ""); err != nil {
			return err
		}
		return shared.ErrInvalidInput
	})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	b, err := NewGormLedgerRepository(db).FindBalance(ctx, identity(1), ledger.NativeAsset)
	require.NoError(t, err)
	assert.Nil(t, b)
}

// failingOutbox rejects any batch that contains the given event type
type failingOutbox struct {
	eventType string
}

var errOutboxUnavailable = errors.New("outbox unavailable")

func (f failingOutbox) SaveEvents(_ context.Context, _ any, events ...shared.DomainEvent) error {
	for _, ev := range events {
		if ev.EventType() == f.eventType {
			return errOutboxUnavailable
		}
	}
	return nil
}

func TestGormTransactionScope_Outbox(t *testing.T) {
	ctx := context.Background()

	openAndFund := func(t *testing.T, s *settlement) valueobject.Identity {
		t.Helper()
		resp, err := s.sales.OpenSale(ctx, presale.OpenSaleRequest{
			Caller: s.admin, Asset: identity(0x70), Treasury: s.treasury,
			Price: 5, StartTime: 1000, EndTime: 2000, TotalAllocated: 100,
		})
		require.NoError(t, err)
		_, err = s.ledger.Deposit(ctx, presale.DepositRequest{Caller: s.admin, Account: s.buyer, Asset: ledger.NativeAsset, Amount: 1000})
		require.NoError(t, err)
		return resp.Address
	}

	t.Run("purchase events are stored in the purchase transaction", func(t *testing.T) {
		s := newSettlement(t)
		serializer := event.NewEventSerializer()
		event.RegisterPresaleEvents(serializer)
		outboxRepo := event.NewGormOutboxRepository(s.db)
		s.scope.SetOutbox(event.NewOutboxPublisher(outboxRepo, serializer))

		saleAddress := openAndFund(t, s)
		req := s.voucher(t, saleAddress, 30)
		req.Requested = 30
		_, err := s.purchases.Purchase(ctx, req)
		require.NoError(t, err)

		pending, err := outboxRepo.FindPending(ctx, 10)
		require.NoError(t, err)
		var types []string
		for _, entry := range pending {
			types = append(types, entry.EventType)
		}
		assert.ElementsMatch(t, []string{
			sale.EventTypeSaleOpened,
			voucher.EventTypeVoucherIssued,
			sale.EventTypeSupplyReserved,
			escrow.EventTypeAllocationPurchased,
		}, types)
	})

	t.Run("failed outbox write rolls back the whole purchase", func(t *testing.T) {
		s := newSettlement(t)
		s.scope.SetOutbox(failingOutbox{eventType: escrow.EventTypeAllocationPurchased})

		saleAddress := openAndFund(t, s)
		req := s.voucher(t, saleAddress, 30)
		req.Requested = 30
		_, err := s.purchases.Purchase(ctx, req)
		assert.ErrorIs(t, err, errOutboxUnavailable)

		stored, err := s.sales.GetSale(ctx, saleAddress)
		require.NoError(t, err)
		assert.Zero(t, stored.Sold)
		assert.Equal(t, 1, stored.Version)

		_, err = s.sales.GetEscrow(ctx, saleAddress, s.buyer)
		assert.ErrorIs(t, err, shared.ErrNotFound)

		buyer, err := s.ledger.Balance(ctx, s.buyer, ledger.NativeAsset)
		require.NoError(t, err)
		assert.Equal(t, uint64(1000), buyer.Amount)
		treasury, err := s.ledger.Balance(ctx, s.treasury, ledger.NativeAsset)
		require.NoError(t, err)
		assert.Zero(t, treasury.Amount)
	})

	t.Run("no outbox records nothing", func(t *testing.T) {
		s := newSettlement(t)
		saleAddress := openAndFund(t, s)
		req := s.voucher(t, saleAddress, 30)
		req.Requested = 30
		_, err := s.purchases.Purchase(ctx, req)
		require.NoError(t, err)

		var count int64
		require.NoError(t, s.db.Model(&shared.OutboxEntry{}).Count(&count).Error)
		assert.Zero(t, count)
	})
}
