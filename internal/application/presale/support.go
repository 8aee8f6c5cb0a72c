package presale

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/shared/valueobject"
	"github.com/presale/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// MetricsRecorder receives settlement counters. telemetry.PresaleMetrics
// implements it.
type MetricsRecorder interface {
	RecordPurchase(ctx context.Context, sale string, allocation uint64)
	RecordClaim(ctx context.Context, amount uint64)
	RecordRevoke(ctx context.Context)
	RecordRejection(ctx context.Context, operation, code string)
	RecordDuration(ctx context.Context, operation string, d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) RecordPurchase(context.Context, string, uint64) {}
func (noopMetrics) RecordClaim(context.Context, uint64) {}
func (noopMetrics) RecordRevoke(context.Context) {}
func (noopMetrics) RecordRejection(context.Context, string, string) {}
func (noopMetrics) RecordDuration(context.Context, string, time.Duration) {}

var _ MetricsRecorder = (*telemetry.PresaleMetrics)(nil)

// Administrators is the configured set of identities allowed to open sales
// and credit ledger deposits. An empty set admits nobody.
type Administrators struct {
	ids map[valueobject.Identity]struct{}
}

// NewAdministrators builds the set, skipping zero identities
func NewAdministrators(ids ...valueobject.Identity) Administrators {
	set := make(map[valueobject.Identity]struct{}, len(ids))
	for _, id := range ids {
		if !id.IsZero() {
			set[id] = struct{}{}
		}
	}
	return Administrators{ids: set}
}

// Contains reports whether caller is an administrator
func (a Administrators) Contains(caller valueobject.Identity) bool {
	_, ok := a.ids[caller]
	return ok
}

// Require returns ErrUnauthorized unless caller is an administrator
func (a Administrators) Require(caller valueobject.Identity) error {
	if !a.Contains(caller) {
		return shared.ErrUnauthorized
	}
	return nil
}

// Len returns the number of administrators
func (a Administrators) Len() int {
	return len(a.ids)
}

// instrumentation is the logging, tracing and metrics shared by the services
type instrumentation struct {
	logger    *zap.Logger
	metrics   MetricsRecorder
	publisher shared.EventPublisher
}

func newInstrumentation() instrumentation {
	return instrumentation{logger: zap.NewNop(), metrics: noopMetrics{}}
}

func (in *instrumentation) setLogger(logger *zap.Logger) {
	if logger != nil {
		in.logger = logger
	}
}

func (in *instrumentation) setMetrics(m MetricsRecorder) {
	if m != nil {
		in.metrics = m
	}
}

// finish closes out one operation: duration, span status and, for domain
// errors, the rejection counter.
func (in *instrumentation) finish(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	in.metrics.RecordDuration(ctx, operation, time.Since(start))
	if err == nil {
		telemetry.SetOK(span)
		return
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		telemetry.RecordRejection(span, de.Code, de.Message)
		in.metrics.RecordRejection(ctx, operation, de.Code)
		in.logger.Info("Transition rejected",
			zap.String("operation", operation),
			zap.String("code", de.Code),
		)
		return
	}
	telemetry.RecordError(span, err)
	in.logger.Error("Transition failed", zap.String("operation", operation), zap.Error(err))
}

// recordEvents drains the aggregates and writes their events through
// repos, inside the caller's transaction. A failure rolls the transition
// back.
func recordEvents(ctx context.Context, repos TransactionalRepositories, aggregates ...shared.AggregateRoot) ([]shared.DomainEvent, error) {
	events := drainEvents(aggregates...)
	if err := repos.RecordEvents(ctx, events...); err != nil {
		return nil, fmt.Errorf("failed to record events: %w", err)
	}
	return events, nil
}

// publish sends events of a committed transaction straight to the bus.
// It is unset when the outbox is enabled. Bus errors are logged and never
// fail the already-committed transition.
func (in *instrumentation) publish(ctx context.Context, events []shared.DomainEvent) {
	if in.publisher == nil || len(events) == 0 {
		return
	}
	if err := in.publisher.Publish(ctx, events...); err != nil {
		in.logger.Warn("Failed to publish domain events", zap.Error(err), zap.Int("count", len(events)))
	}
}

// drainEvents takes the pending events off each aggregate
func drainEvents(aggregates ...shared.AggregateRoot) []shared.DomainEvent {
	var events []shared.DomainEvent
	for _, a := range aggregates {
		events = append(events, a.PullDomainEvents()...)
	}
	return events
}
