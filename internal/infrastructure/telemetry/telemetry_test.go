package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/feerecon/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestSetup_Disabled(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	cfg := telemetry.Config{
		Enabled:           false,
		CollectorEndpoint: "localhost:4317",
		SamplingRatio:     1.0,
		ServiceName:       "feerecon-test",
	}

	p, err := telemetry.Setup(ctx, cfg, logger)
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.False(t, p.IsEnabled())
	assert.Equal(t, "feerecon-test", p.Config().ServiceName)
	assert.NotNil(t, p.Meter("test"))
	assert.NoError(t, p.Shutdown(ctx))
}

func TestBridgeLogger_DisabledReturnsBase(t *testing.T) {
	p, err := telemetry.Setup(context.Background(), telemetry.Config{}, nil)
	require.NoError(t, err)

	base := zap.NewNop()
	assert.Same(t, base, p.BridgeLogger(base))
}

func TestStartSpan_NoopProvider(t *testing.T) {
	ctx, span := telemetry.StartSpan(context.Background(), "reconciliation.confirm",
		telemetry.SpanAttrPendingCount, 3,
		telemetry.SpanAttrTolerance, "5%",
	)
	defer span.End()

	telemetry.SetAttributes(span, telemetry.SpanAttrMatchID, "m-1", 42, "ignored")
	telemetry.AddEvent(span, "staged", "count", 2)
	telemetry.RecordError(span, errors.New("boom"))
	telemetry.RecordError(nil, errors.New("ignored"))

	assert.Equal(t, "", telemetry.GetTraceID(ctx))
}

func TestNewReconciliationMetrics_NilMeter(t *testing.T) {
	m, err := telemetry.NewReconciliationMetrics(nil)
	assert.Nil(t, m)
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)
}

func collectSums(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					out[m.Name] += dp.Value
				}
			}
		}
	}
	return out
}

func TestReconciliationMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := telemetry.NewReconciliationMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordMatchConfirmed(ctx, "manual", "perfect", 3)
	m.RecordMatchConfirmed(ctx, "auto", "good", 1)
	m.RecordAutoStaged(ctx, "auto", 4)
	m.RecordAutoStaged(ctx, "auto", 0)
	m.RecordSyncRun(ctx, "RATE_LIMITED", 100, 0, 150, 3*time.Second)
	m.RecordPropagation(ctx, "line_item", 98, 2)

	sums := collectSums(t, reader)
	assert.Equal(t, int64(2), sums["feerecon_matches_confirmed_total"])
	assert.Equal(t, int64(4), sums["feerecon_pairings_confirmed_total"])
	assert.Equal(t, int64(4), sums["feerecon_auto_staged_total"])
	assert.Equal(t, int64(250), sums["feerecon_sync_records_total"])
	assert.Equal(t, int64(1), sums["feerecon_sync_rate_limited_total"])
	assert.Equal(t, int64(100), sums["feerecon_status_propagation_total"])
}
