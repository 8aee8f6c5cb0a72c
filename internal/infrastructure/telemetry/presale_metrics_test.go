package telemetry_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/presale/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	data, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range data.DataPoints {
		total += dp.Value
	}
	return total
}

func TestPresaleMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	m, err := telemetry.NewPresaleMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordPurchase(ctx, "sale-a", 60)
	m.RecordPurchase(ctx, "sale-a", 40)
	m.RecordClaim(ctx, 550)
	m.RecordRevoke(ctx)
	m.RecordRejection(ctx, "purchase", "INSUFFICIENT_SUPPLY")
	m.RecordDuration(ctx, "purchase", 3*time.Millisecond)

	got := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, got["presale_purchases_total"]))
	assert.Equal(t, int64(100), sumOf(t, got["presale_tokens_sold_total"]))
	assert.Equal(t, int64(1), sumOf(t, got["presale_vesting_claims_total"]))
	assert.Equal(t, int64(550), sumOf(t, got["presale_tokens_claimed_total"]))
	assert.Equal(t, int64(1), sumOf(t, got["presale_vesting_revocations_total"]))
	assert.Equal(t, int64(1), sumOf(t, got["presale_rejections_total"]))
	assert.Contains(t, got, "presale_operation_duration_seconds")
}

func TestPresaleMetrics_SaturatesLargeAmounts(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	m, err := telemetry.NewPresaleMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()

	t.Run("single amount above max int64", func(t *testing.T) {
		m.RecordClaim(ctx, math.MaxUint64)
		got := collect(t, reader)
		assert.Equal(t, int64(math.MaxInt64), sumOf(t, got["presale_tokens_claimed_total"]))
	})

	t.Run("cumulative sum stays at max int64", func(t *testing.T) {
		m.RecordClaim(ctx, 5)
		m.RecordClaim(ctx, math.MaxInt64)
		got := collect(t, reader)
		assert.Equal(t, int64(math.MaxInt64), sumOf(t, got["presale_tokens_claimed_total"]))
		assert.Equal(t, int64(3), sumOf(t, got["presale_vesting_claims_total"]))
	})

	t.Run("each sale saturates on its own", func(t *testing.T) {
		m.RecordPurchase(ctx, "sale-a", math.MaxInt64-1)
		m.RecordPurchase(ctx, "sale-a", 10)
		m.RecordPurchase(ctx, "sale-b", 7)

		got := collect(t, reader)
		data, ok := got["presale_tokens_sold_total"].Data.(metricdata.Sum[int64])
		require.True(t, ok)
		bySale := make(map[string]int64)
		for _, dp := range data.DataPoints {
			v, _ := dp.Attributes.Value(telemetry.AttrSale)
			bySale[v.AsString()] = dp.Value
		}
		assert.Equal(t, int64(math.MaxInt64), bySale["sale-a"])
		assert.Equal(t, int64(7), bySale["sale-b"])
	})
}

func TestNewPresaleMetrics_NilMeter(t *testing.T) {
	_, err := telemetry.NewPresaleMetrics(nil)
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	mp, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.Shutdown(context.Background()))
}

func TestNewMeterProvider_WithReader(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:     true,
		ServiceName: "presale-test",
		Reader:      reader,
	}, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = mp.Shutdown(context.Background()) }()
	assert.True(t, mp.IsEnabled())

	h, err := telemetry.NewHistogram(mp.Meter("test"), telemetry.HistogramOpts{
		Name: "settle_duration_seconds",
		Unit: "s",
	})
	require.NoError(t, err)
	h.RecordDuration(context.Background(), 4*time.Second)

	got := collect(t, reader)
	data, ok := got["settle_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, data.DataPoints, 1)
	assert.Equal(t, telemetry.DurationBuckets, data.DataPoints[0].Bounds)
	assert.Equal(t, uint64(1), data.DataPoints[0].Count)
}
