package presale

import (
	"context"
	"fmt"
	"time"

	"github.com/presale/backend/internal/domain/ledger"
	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/shared/valueobject"
	"github.com/presale/backend/internal/domain/vesting"
	"github.com/presale/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// VestingService manages vesting schedules: create, claim and revoke
type VestingService struct {
	scope        TransactionScope
	scheduleRepo vesting.ScheduleRepository
	deriver      *valueobject.Deriver
	transferer   Transferer
	locks        *KeyedLocks
	clock        shared.Clock
	instrumentation
}

// NewVestingService creates a new VestingService
func NewVestingService(
	scope TransactionScope,
	scheduleRepo vesting.ScheduleRepository,
	deriver *valueobject.Deriver,
	transferer Transferer,
	clock shared.Clock,
) *VestingService {
	return &VestingService{
		scope:           scope,
		scheduleRepo:    scheduleRepo,
		deriver:         deriver,
		transferer:      transferer,
		locks:           NewKeyedLocks(),
		clock:           clock,
		instrumentation: newInstrumentation(),
	}
}

// SetEventPublisher sets the publisher for vesting events
func (s *VestingService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// SetLogger sets the service logger
func (s *VestingService) SetLogger(logger *zap.Logger) {
	s.setLogger(logger)
}

// SetMetrics sets the metrics recorder
func (s *VestingService) SetMetrics(m MetricsRecorder) {
	s.setMetrics(m)
}

// CreateVestingRequest carries the terms of a new grant
type CreateVestingRequest struct {
	Caller        valueobject.Identity
	Beneficiary   valueobject.Identity
	TotalAmount   uint64
	StartTime     int64
	CliffDuration uint64
	Duration      uint64
	Revocable     bool
	// FundFromOwner moves TotalAmount of the sale token from the caller to
	// the vesting vault in the same transaction. When false the vault is
	// expected to be funded separately.
	FundFromOwner bool
}

// CreateVesting grants a schedule. The caller must own an opened sale; the
// schedule vests that sale's token and returns revoked tokens to its
// treasury. One schedule exists per beneficiary.
func (s *VestingService) CreateVesting(ctx context.Context, req CreateVestingRequest) (resp *ScheduleResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "vesting", "create")
	defer span.End()
	start := time.Now()
	defer func() { s.finish(ctx, span, "create_vesting", start, err) }()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrCaller, req.Caller.String(),
		telemetry.SpanAttrBeneficiary, req.Beneficiary.String(),
		telemetry.SpanAttrAmount, req.TotalAmount,
	)

	saleAddress, err := s.deriver.SaleAddress(req.Caller)
	if err != nil {
		return nil, fmt.Errorf("failed to derive sale address: %w", err)
	}
	address, err := s.deriver.VestingAddress(req.Beneficiary)
	if err != nil {
		return nil, fmt.Errorf("failed to derive vesting address: %w", err)
	}
	vault, err := s.deriver.VestingVaultAddress(address)
	if err != nil {
		return nil, fmt.Errorf("failed to derive vault address: %w", err)
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrVesting, address.String())

	unlock := s.locks.Lock(address)
	defer unlock()

	var (
		created *vesting.Schedule
		events  []shared.DomainEvent
	)
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		owned, err := repos.SaleRepo().FindByAddress(ctx, saleAddress)
		if err != nil {
			return fmt.Errorf("failed to load sale: %w", err)
		}
		if owned == nil {
			return shared.ErrUnauthorized
		}
		if err := owned.IsOwnedBy(req.Caller); err != nil {
			return err
		}

		existing, err := repos.ScheduleRepo().FindByAddress(ctx, address)
		if err != nil {
			return fmt.Errorf("failed to load vesting schedule: %w", err)
		}
		if existing != nil {
			return shared.ErrVestingAlreadyExists
		}

		created, err = vesting.Create(vesting.CreateParams{
			Address:       address,
			Beneficiary:   req.Beneficiary,
			Owner:         req.Caller,
			Asset:         owned.Asset,
			Vault:         vault,
			Treasury:      owned.Treasury,
			TotalAmount:   req.TotalAmount,
			StartTime:     req.StartTime,
			CliffDuration: req.CliffDuration,
			Duration:      req.Duration,
			Revocable:     req.Revocable,
		})
		if err != nil {
			return err
		}

		if req.FundFromOwner {
			if err := s.transferer.Transfer(ctx, repos, ledger.Transfer{
				Asset:     owned.Asset,
				From:      req.Caller,
				To:        vault,
				Amount:    req.TotalAmount,
				Reference: "vesting_fund:" + address.String(),
			}); err != nil {
				return err
			}
		}

		if err := repos.ScheduleRepo().Create(ctx, created); err != nil {
			return fmt.Errorf("failed to save vesting schedule: %w", err)
		}
		events, err = recordEvents(ctx, repos, created)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Vesting schedule created",
		zap.String("vesting", address.String()),
		zap.String("beneficiary", req.Beneficiary.String()),
		zap.Uint64("total_amount", req.TotalAmount),
		zap.Uint64("duration", req.Duration),
		zap.Bool("revocable", req.Revocable),
	)
	s.publish(ctx, events)

	result, err := ToScheduleResponse(created, s.clock.Now().Unix())
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Claim releases everything vested and not yet released to the
// beneficiary. The schedule is updated only after the vault transfer.
func (s *VestingService) Claim(ctx context.Context, caller, address valueobject.Identity) (result *ClaimResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "vesting", "claim")
	defer span.End()
	start := time.Now()
	defer func() { s.finish(ctx, span, "claim_vested", start, err) }()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrCaller, caller.String(),
		telemetry.SpanAttrVesting, address.String(),
	)

	unlock := s.locks.Lock(address)
	defer unlock()

	now := s.clock.Now().Unix()

	var (
		schedule *vesting.Schedule
		amount   uint64
		events   []shared.DomainEvent
	)
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		schedule, err = repos.ScheduleRepo().FindByAddressForUpdate(ctx, address)
		if err != nil {
			return fmt.Errorf("failed to load vesting schedule: %w", err)
		}
		if schedule == nil {
			return shared.ErrNotFound
		}

		amount, err = schedule.PrepareClaim(caller, now)
		if err != nil {
			return err
		}
		if err := s.transferer.Transfer(ctx, repos, ledger.Transfer{
			Asset:     schedule.Asset,
			From:      schedule.Vault,
			To:        schedule.Beneficiary,
			Amount:    amount,
			Reference: "vesting_claim:" + address.String(),
		}); err != nil {
			return err
		}
		if err := schedule.CommitClaim(amount, now); err != nil {
			return err
		}
		if err := repos.ScheduleRepo().Save(ctx, schedule); err != nil {
			return fmt.Errorf("failed to save vesting schedule: %w", err)
		}
		events, err = recordEvents(ctx, repos, schedule)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Vested tokens claimed",
		zap.String("vesting", address.String()),
		zap.String("beneficiary", schedule.Beneficiary.String()),
		zap.Uint64("amount", amount),
		zap.Uint64("released", schedule.Released),
	)
	s.metrics.RecordClaim(ctx, amount)
	s.publish(ctx, events)

	return &ClaimResult{Vesting: address, Amount: amount, Released: schedule.Released}, nil
}

// Revoke ends a revocable schedule and returns the unvested remainder from
// the vault to the treasury. Released is frozen and later claims fail.
func (s *VestingService) Revoke(ctx context.Context, caller, address valueobject.Identity) (result *RevokeResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "vesting", "revoke")
	defer span.End()
	start := time.Now()
	defer func() { s.finish(ctx, span, "revoke_vesting", start, err) }()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrCaller, caller.String(),
		telemetry.SpanAttrVesting, address.String(),
	)

	unlock := s.locks.Lock(address)
	defer unlock()

	now := s.clock.Now().Unix()

	var (
		schedule *vesting.Schedule
		unvested uint64
		events   []shared.DomainEvent
	)
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		schedule, err = repos.ScheduleRepo().FindByAddressForUpdate(ctx, address)
		if err != nil {
			return fmt.Errorf("failed to load vesting schedule: %w", err)
		}
		if schedule == nil {
			return shared.ErrNotFound
		}

		unvested, err = schedule.PrepareRevoke(caller, now)
		if err != nil {
			return err
		}
		if err := s.transferer.Transfer(ctx, repos, ledger.Transfer{
			Asset:     schedule.Asset,
			From:      schedule.Vault,
			To:        schedule.Treasury,
			Amount:    unvested,
			Reference: "vesting_revoke:" + address.String(),
		}); err != nil {
			return err
		}
		if err := schedule.CommitRevoke(unvested, now); err != nil {
			return err
		}
		if err := repos.ScheduleRepo().Save(ctx, schedule); err != nil {
			return fmt.Errorf("failed to save vesting schedule: %w", err)
		}
		events, err = recordEvents(ctx, repos, schedule)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Vesting schedule revoked",
		zap.String("vesting", address.String()),
		zap.Uint64("unvested", unvested),
		zap.Uint64("released", schedule.Released),
	)
	s.metrics.RecordRevoke(ctx)
	s.publish(ctx, events)

	return &RevokeResult{Vesting: address, Unvested: unvested, Released: schedule.Released}, nil
}

// GetSchedule returns the schedule at address evaluated at the current time
func (s *VestingService) GetSchedule(ctx context.Context, address valueobject.Identity) (*ScheduleResponse, error) {
	found, err := s.scheduleRepo.FindByAddress(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to load vesting schedule: %w", err)
	}
	if found == nil {
		return nil, shared.ErrNotFound
	}
	result, err := ToScheduleResponse(found, s.clock.Now().Unix())
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetScheduleByBeneficiary returns the beneficiary's schedule
func (s *VestingService) GetScheduleByBeneficiary(ctx context.Context, beneficiary valueobject.Identity) (*ScheduleResponse, error) {
	address, err := s.deriver.VestingAddress(beneficiary)
	if err != nil {
		return nil, fmt.Errorf("failed to derive vesting address: %w", err)
	}
	return s.GetSchedule(ctx, address)
}
