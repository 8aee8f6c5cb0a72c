package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when metrics are built without a meter
var ErrMeterNil = errors.New("telemetry: meter is nil")

// Metric attribute keys
var (
	AttrOperation = attribute.Key("operation")
	AttrErrorCode = attribute.Key("error_code")
	AttrSale      = attribute.Key("sale")
)

// PresaleMetrics counts settlement activity: purchases, tokens sold,
// vesting claims and revocations, and rejected transitions by error code.
type PresaleMetrics struct {
	purchases   *Counter
	tokensSold  *Counter
	claims      *Counter
	tokensClaim *Counter
	revocations *Counter
	rejections  *Counter
	duration    *Histogram
}

// NewPresaleMetrics registers the presale instruments on meter
func NewPresaleMetrics(meter metric.Meter) (*PresaleMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &PresaleMetrics{}
	var err error
	counters := []struct {
		dst               **Counter
		name, desc, units string
	}{
		{&m.purchases, "presale_purchases_total", "Completed purchases", "{purchases}"},
		{&m.tokensSold, "presale_tokens_sold_total", "Token base units sold", "{units}"},
		{&m.claims, "presale_vesting_claims_total", "Completed vesting claims", "{claims}"},
		{&m.tokensClaim, "presale_tokens_claimed_total", "Token base units released by claims", "{units}"},
		{&m.revocations, "presale_vesting_revocations_total", "Revoked vesting schedules", "{schedules}"},
		{&m.rejections, "presale_rejections_total", "Transitions rejected with a domain error", "{errors}"},
	}
	for _, c := range counters {
		if *c.dst, err = NewCounter(meter, c.name, c.desc, c.units); err != nil {
			return nil, err
		}
	}

	m.duration, err = NewHistogram(meter, HistogramOpts{
		Name:        "presale_operation_duration_seconds",
		Description: "Duration of settlement operations",
		Unit:        "s",
		Boundaries:  DurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordPurchase counts a completed purchase
func (m *PresaleMetrics) RecordPurchase(ctx context.Context, sale string, allocation uint64) {
	m.purchases.Inc(ctx, AttrSale.String(sale))
	m.tokensSold.AddAmount(ctx, allocation, AttrSale.String(sale))
}

// RecordClaim counts a completed vesting claim
func (m *PresaleMetrics) RecordClaim(ctx context.Context, amount uint64) {
	m.claims.Inc(ctx)
	m.tokensClaim.AddAmount(ctx, amount)
}

// RecordRevoke counts a revoked schedule
func (m *PresaleMetrics) RecordRevoke(ctx context.Context) {
	m.revocations.Inc(ctx)
}

// RecordRejection counts an operation that failed with a domain error code
func (m *PresaleMetrics) RecordRejection(ctx context.Context, operation, code string) {
	m.rejections.Inc(ctx, AttrOperation.String(operation), AttrErrorCode.String(code))
}

// RecordDuration observes how long an operation took
func (m *PresaleMetrics) RecordDuration(ctx context.Context, operation string, d time.Duration) {
	m.duration.RecordDuration(ctx, d, AttrOperation.String(operation))
}
