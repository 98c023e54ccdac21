package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when metrics are constructed without a meter.
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// Metric attribute keys.
var (
	AttrMethod  = attribute.Key("method")
	AttrQuality = attribute.Key("quality")
	AttrOutcome = attribute.Key("outcome")
	AttrStatus  = attribute.Key("status")
	AttrTarget  = attribute.Key("target")
)

// Counter wraps an Int64Counter.
type Counter struct {
	counter metric.Int64Counter
}

// NewCounter creates a new Counter metric.
func NewCounter(meter metric.Meter, name, description, unit string) (*Counter, error) {
	c, err := meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return &Counter{counter: c}, nil
}

// Add increments the counter by value.
func (c *Counter) Add(ctx context.Context, value int64, attrs ...attribute.KeyValue) {
	c.counter.Add(ctx, value, metric.WithAttributes(attrs...))
}

// Histogram wraps a Float64Histogram.
type Histogram struct {
	histogram metric.Float64Histogram
}

// NewHistogram creates a new Histogram metric with optional bucket boundaries.
func NewHistogram(meter metric.Meter, name, description, unit string, boundaries ...float64) (*Histogram, error) {
	opts := []metric.Float64HistogramOption{
		metric.WithDescription(description),
		metric.WithUnit(unit),
	}
	if len(boundaries) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(boundaries...))
	}
	h, err := meter.Float64Histogram(name, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram %s: %w", name, err)
	}
	return &Histogram{histogram: h}, nil
}

// RecordDuration records d in seconds.
func (h *Histogram) RecordDuration(ctx context.Context, d time.Duration, attrs ...attribute.KeyValue) {
	h.histogram.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
}

// ReconciliationMetrics tracks confirmed matches and CRM sync outcomes.
type ReconciliationMetrics struct {
	matchesConfirmed   *Counter
	pairingsConfirmed  *Counter
	autoStaged         *Counter
	syncRecords        *Counter
	syncRateLimited    *Counter
	propagationResults *Counter
	syncDuration       *Histogram
}

// NewReconciliationMetrics registers the reconciliation instruments on meter.
func NewReconciliationMetrics(meter metric.Meter) (*ReconciliationMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &ReconciliationMetrics{}
	var err error

	if m.matchesConfirmed, err = NewCounter(meter,
		"feerecon_matches_confirmed_total", "Confirmed matches", "{matches}"); err != nil {
		return nil, err
	}
	if m.pairingsConfirmed, err = NewCounter(meter,
		"feerecon_pairings_confirmed_total", "Line item to expectation pairings confirmed", "{pairings}"); err != nil {
		return nil, err
	}
	if m.autoStaged, err = NewCounter(meter,
		"feerecon_auto_staged_total", "Pending matches staged by auto-match or prescreening", "{pairings}"); err != nil {
		return nil, err
	}
	if m.syncRecords, err = NewCounter(meter,
		"feerecon_sync_records_total", "Match records sent to the CRM by outcome", "{records}"); err != nil {
		return nil, err
	}
	if m.syncRateLimited, err = NewCounter(meter,
		"feerecon_sync_rate_limited_total", "Sync runs halted by a CRM rate limit", "{runs}"); err != nil {
		return nil, err
	}
	if m.propagationResults, err = NewCounter(meter,
		"feerecon_status_propagation_total", "Status propagation updates by target and outcome", "{records}"); err != nil {
		return nil, err
	}
	if m.syncDuration, err = NewHistogram(meter,
		"feerecon_sync_duration_seconds", "Duration of a batch sync run", "s",
		0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordMatchConfirmed counts one confirmed match and its pairings.
func (m *ReconciliationMetrics) RecordMatchConfirmed(ctx context.Context, method, quality string, pairings int) {
	attrs := []attribute.KeyValue{AttrMethod.String(method), AttrQuality.String(quality)}
	m.matchesConfirmed.Add(ctx, 1, attrs...)
	m.pairingsConfirmed.Add(ctx, int64(pairings), attrs...)
}

// RecordAutoStaged counts pairings staged without manual selection.
func (m *ReconciliationMetrics) RecordAutoStaged(ctx context.Context, method string, n int) {
	if n <= 0 {
		return
	}
	m.autoStaged.Add(ctx, int64(n), AttrMethod.String(method))
}

// RecordSyncRun records per-outcome record counts and the run duration.
func (m *ReconciliationMetrics) RecordSyncRun(ctx context.Context, status string, confirmed, failed, notSubmitted int, d time.Duration) {
	if confirmed > 0 {
		m.syncRecords.Add(ctx, int64(confirmed), AttrOutcome.String("confirmed"))
	}
	if failed > 0 {
		m.syncRecords.Add(ctx, int64(failed), AttrOutcome.String("failed"))
	}
	if notSubmitted > 0 {
		m.syncRecords.Add(ctx, int64(notSubmitted), AttrOutcome.String("not_submitted"))
	}
	if status == "RATE_LIMITED" {
		m.syncRateLimited.Add(ctx, 1)
	}
	m.syncDuration.RecordDuration(ctx, d, AttrStatus.String(status))
}

// RecordPropagation counts status updates for one target.
func (m *ReconciliationMetrics) RecordPropagation(ctx context.Context, target string, updated, failed int) {
	if updated > 0 {
		m.propagationResults.Add(ctx, int64(updated), AttrTarget.String(target), AttrOutcome.String("updated"))
	}
	if failed > 0 {
		m.propagationResults.Add(ctx, int64(failed), AttrTarget.String(target), AttrOutcome.String("degraded"))
	}
}
