package presale

import (
	"context"
	"fmt"
	"time"

	"github.com/presale/backend/internal/domain/ledger"
	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/shared/valueobject"
	"github.com/presale/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// LedgerService credits deposits and answers balance queries
type LedgerService struct {
	scope      TransactionScope
	ledgerRepo ledger.Repository
	admins     Administrators
	instrumentation
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(scope TransactionScope, ledgerRepo ledger.Repository, admins Administrators) *LedgerService {
	return &LedgerService{
		scope:           scope,
		ledgerRepo:      ledgerRepo,
		admins:          admins,
		instrumentation: newInstrumentation(),
	}
}

// SetLogger sets the service logger
func (s *LedgerService) SetLogger(logger *zap.Logger) {
	s.setLogger(logger)
}

// SetMetrics sets the metrics recorder
func (s *LedgerService) SetMetrics(m MetricsRecorder) {
	s.setMetrics(m)
}

// DepositRequest credits Amount of Asset to Account
type DepositRequest struct {
	Caller    valueobject.Identity
	Account   valueobject.Identity
	Asset     valueobject.Identity
	Amount    uint64
	Reference string
}

// Deposit credits an account from outside the ledger. Only administrators
// may mint balances.
func (s *LedgerService) Deposit(ctx context.Context, req DepositRequest) (resp *BalanceResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "deposit")
	defer span.End()
	start := time.Now()
	defer func() { s.finish(ctx, span, "deposit", start, err) }()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrAccount, req.Account.String(),
		telemetry.SpanAttrAsset, req.Asset.String(),
		telemetry.SpanAttrAmount, req.Amount,
	)

	if err := s.admins.Require(req.Caller); err != nil {
		return nil, err
	}
	if req.Account.IsZero() {
		return nil, shared.ErrInvalidIdentity
	}

	var balance *ledger.Balance
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		balance, err = ledger.Deposit(ctx, repos.LedgerRepo(), req.Account, req.Asset, req.Amount, req.Reference)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Deposit credited",
		zap.String("account", req.Account.String()),
		zap.String("asset", req.Asset.String()),
		zap.Uint64("amount", req.Amount),
	)
	result := ToBalanceResponse(balance)
	return &result, nil
}

// Balance returns the account's holding of asset, zero when it never held any
func (s *LedgerService) Balance(ctx context.Context, account, asset valueobject.Identity) (*BalanceResponse, error) {
	b, err := s.ledgerRepo.FindBalance(ctx, account, asset)
	if err != nil {
		return nil, fmt.Errorf("failed to load balance: %w", err)
	}
	if b == nil {
		b = ledger.NewBalance(account, asset)
	}
	result := ToBalanceResponse(b)
	return &result, nil
}

// Balances returns every asset the account holds
func (s *LedgerService) Balances(ctx context.Context, account valueobject.Identity) ([]BalanceResponse, error) {
	balances, err := s.ledgerRepo.ListBalances(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	result := make([]BalanceResponse, len(balances))
	for i := range balances {
		result[i] = ToBalanceResponse(&balances[i])
	}
	return result, nil
}

// Entries returns the newest journal entries touching the account
func (s *LedgerService) Entries(ctx context.Context, account valueobject.Identity, limit int) ([]ledger.Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	entries, err := s.ledgerRepo.ListEntries(ctx, account, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return entries, nil
}
