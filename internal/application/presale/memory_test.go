package presale

import (
	"context"
	"crypto/ed25519"
	"sort"
	"sync"

	"github.com/presale/backend/internal/domain/escrow"
	"github.com/presale/backend/internal/domain/ledger"
	"github.com/presale/backend/internal/domain/sale"
	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/shared/valueobject"
	"github.com/presale/backend/internal/domain/vesting"
	"github.com/presale/backend/internal/domain/voucher"
	"github.com/stretchr/testify/mock"
)

// memStore holds copies of every record so that a failed transition,
// which never reaches Save, leaves stored state untouched.
type memStore struct {
	mu        sync.Mutex
	sales     map[valueobject.Identity]sale.Sale
	escrows   map[valueobject.Identity]escrow.PurchaseEscrow
	schedules map[valueobject.Identity]vesting.Schedule
	balances  map[[2]valueobject.Identity]ledger.Balance
	entries   []ledger.Entry
	vouchers  []voucher.IssuedVoucher
}

func newMemStore() *memStore {
	return &memStore{
		sales:     make(map[valueobject.Identity]sale.Sale),
		escrows:   make(map[valueobject.Identity]escrow.PurchaseEscrow),
		schedules: make(map[valueobject.Identity]vesting.Schedule),
		balances:  make(map[[2]valueobject.Identity]ledger.Balance),
	}
}

func (m *memStore) scope() *NoOpTransactionScope {
	return NewNoOpTransactionScope(memSales{m}, memEscrows{m}, memSchedules{m}, memLedger{m}, memVouchers{m})
}

func (m *memStore) balance(account, asset valueobject.Identity) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[[2]valueobject.Identity{account, asset}].Amount
}

type memSales struct{ m *memStore }

func (r memSales) FindByAddress(_ context.Context, address valueobject.Identity) (*sale.Sale, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.sales[address]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r memSales) FindByAddressForUpdate(ctx context.Context, address valueobject.Identity) (*sale.Sale, error) {
	return r.FindByAddress(ctx, address)
}

func (r memSales) Create(_ context.Context, s *sale.Sale) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.sales[s.Address]; ok {
		return shared.ErrSaleAlreadyExists
	}
	stored := *s
	stored.PullDomainEvents()
	r.m.sales[s.Address] = stored
	return nil
}

func (r memSales) Save(_ context.Context, s *sale.Sale) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored := *s
	stored.PullDomainEvents()
	r.m.sales[s.Address] = stored
	return nil
}

type memEscrows struct{ m *memStore }

func (r memEscrows) FindByAddress(_ context.Context, address valueobject.Identity) (*escrow.PurchaseEscrow, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e, ok := r.m.escrows[address]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (r memEscrows) FindBySaleAndBuyer(_ context.Context, saleAddress, buyer valueobject.Identity) (*escrow.PurchaseEscrow, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, e := range r.m.escrows {
		if e.Sale == saleAddress && e.Buyer == buyer {
			found := e
			return &found, nil
		}
	}
	return nil, nil
}

func (r memEscrows) Create(_ context.Context, e *escrow.PurchaseEscrow) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.escrows[e.Address]; ok {
		return shared.ErrVoucherAlreadyUsed
	}
	stored := *e
	stored.PullDomainEvents()
	r.m.escrows[e.Address] = stored
	return nil
}

func (r memEscrows) ListBySale(_ context.Context, saleAddress valueobject.Identity) ([]escrow.PurchaseEscrow, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []escrow.PurchaseEscrow
	for _, e := range r.m.escrows {
		if e.Sale == saleAddress {
			out = append(out, e)
		}
	}
	return out, nil
}

type memSchedules struct{ m *memStore }

func (r memSchedules) FindByAddress(_ context.Context, address valueobject.Identity) (*vesting.Schedule, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.schedules[address]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (r memSchedules) FindByAddressForUpdate(ctx context.Context, address valueobject.Identity) (*vesting.Schedule, error) {
	return r.FindByAddress(ctx, address)
}

func (r memSchedules) Create(_ context.Context, s *vesting.Schedule) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.schedules[s.Address]; ok {
		return shared.ErrVestingAlreadyExists
	}
	stored := *s
	stored.PullDomainEvents()
	r.m.schedules[s.Address] = stored
	return nil
}

func (r memSchedules) Save(_ context.Context, s *vesting.Schedule) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored := *s
	stored.PullDomainEvents()
	r.m.schedules[s.Address] = stored
	return nil
}

type memLedger struct{ m *memStore }

func (r memLedger) FindBalanceForUpdate(ctx context.Context, account, asset valueobject.Identity) (*ledger.Balance, error) {
	return r.FindBalance(ctx, account, asset)
}

func (r memLedger) FindBalance(_ context.Context, account, asset valueobject.Identity) (*ledger.Balance, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	b, ok := r.m.balances[[2]valueobject.Identity{account, asset}]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r memLedger) SaveBalance(_ context.Context, b *ledger.Balance) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.balances[[2]valueobject.Identity{b.Account, b.Asset}] = *b
	return nil
}

func (r memLedger) AppendEntry(_ context.Context, e *ledger.Entry) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.entries = append(r.m.entries, *e)
	return nil
}

func (r memLedger) ListEntries(_ context.Context, account valueobject.Identity, limit int) ([]ledger.Entry, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []ledger.Entry
	for i := len(r.m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if e := r.m.entries[i]; e.From == account || e.To == account {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r memLedger) ListBalances(_ context.Context, account valueobject.Identity) ([]ledger.Balance, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []ledger.Balance
	for k, b := range r.m.balances {
		if k[0] == account {
			out = append(out, b)
		}
	}
	return out, nil
}

type memVouchers struct{ m *memStore }

func (r memVouchers) Create(_ context.Context, iv *voucher.IssuedVoucher) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored := *iv
	stored.PullDomainEvents()
	r.m.vouchers = append(r.m.vouchers, stored)
	return nil
}

func (r memVouchers) ListByBuyer(_ context.Context, buyer valueobject.Identity) ([]voucher.IssuedVoucher, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []voucher.IssuedVoucher
	for _, v := range r.m.vouchers {
		if v.Buyer == buyer {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nonce > out[j].Nonce })
	return out, nil
}

func (r memVouchers) FindByNonce(_ context.Context, nonce uint64) (*voucher.IssuedVoucher, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, v := range r.m.vouchers {
		if v.Nonce == nonce {
			found := v
			return &found, nil
		}
	}
	return nil, nil
}

// MockTransferer is a mock implementation of Transferer
type MockTransferer struct {
	mock.Mock
}

func (m *MockTransferer) Transfer(ctx context.Context, repos TransactionalRepositories, t ledger.Transfer) error {
	args := m.Called(ctx, repos, t)
	return args.Error(0)
}

// MockEventPublisher records published events
type MockEventPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (m *MockEventPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return nil
}

func (m *MockEventPublisher) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.EventType()
	}
	return out
}

func identity(b byte) valueobject.Identity {
	var id valueobject.Identity
	for i := range id {
		id[i] = b
	}
	return id
}

func testKey(seed byte) ed25519.PrivateKey {
	s := make([]byte, ed25519.SeedSize)
	for i := range s {
		s[i] = seed
	}
	return ed25519.NewKeyFromSeed(s)
}
