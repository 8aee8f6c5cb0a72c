package presale

import (
	"context"

	"github.com/presale/backend/internal/domain/ledger"
)

// Transferer moves value between accounts inside the caller's transaction.
// A returned error must leave balances untouched once the transaction rolls back.
type Transferer interface {
	Transfer(ctx context.Context, repos TransactionalRepositories, t ledger.Transfer) error
}

// LedgerTransferer applies transfers to the ledger tables through the
// transaction's ledger repository.
type LedgerTransferer struct{}

// NewLedgerTransferer creates a LedgerTransferer
func NewLedgerTransferer() *LedgerTransferer {
	return &LedgerTransferer{}
}

// Transfer debits From and credits To. Zero amounts are a no-op.
func (LedgerTransferer) Transfer(ctx context.Context, repos TransactionalRepositories, t ledger.Transfer) error {
	return ledger.Apply(ctx, repos.LedgerRepo(), t)
}

var _ Transferer = LedgerTransferer{}
