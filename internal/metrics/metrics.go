// Package metrics records analysis counters and latencies as OpenTelemetry instruments.
package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// MeterName is the instrumentation scope used for every instrument.
const MeterName = "github.com/dwsmith1983/enginehealth"

// Recorder holds the instruments for one process.
type Recorder struct {
	analyses         metric.Int64Counter
	analysisErrors   metric.Int64Counter
	alertsRaised     metric.Int64Counter
	rulesSkipped     metric.Int64Counter
	cacheLookups     metric.Int64Counter
	dispatchFailures metric.Int64Counter
	duration         metric.Float64Histogram
}

// New creates every instrument on meter.
func New(meter metric.Meter) (*Recorder, error) {
	var (
		r   Recorder
		err error
	)
	if r.analyses, err = meter.Int64Counter("enginehealth_analyses_total",
		metric.WithDescription("Recordings analyzed"),
		metric.WithUnit("{analysis}"),
	); err != nil {
		return nil, fmt.Errorf("creating analyses counter: %w", err)
	}
	if r.analysisErrors, err = meter.Int64Counter("enginehealth_analysis_errors_total",
		metric.WithDescription("Analyses aborted by a resolution or input error"),
	); err != nil {
		return nil, fmt.Errorf("creating analysis errors counter: %w", err)
	}
	if r.alertsRaised, err = meter.Int64Counter("enginehealth_alerts_total",
		metric.WithDescription("Alert episodes raised"),
		metric.WithUnit("{alert}"),
	); err != nil {
		return nil, fmt.Errorf("creating alerts counter: %w", err)
	}
	if r.rulesSkipped, err = meter.Int64Counter("enginehealth_rules_skipped_total",
		metric.WithDescription("Rules skipped as malformed for a recording"),
	); err != nil {
		return nil, fmt.Errorf("creating skipped rules counter: %w", err)
	}
	if r.cacheLookups, err = meter.Int64Counter("enginehealth_profile_cache_lookups_total",
		metric.WithDescription("Resolved-profile cache lookups by outcome"),
	); err != nil {
		return nil, fmt.Errorf("creating cache lookups counter: %w", err)
	}
	if r.dispatchFailures, err = meter.Int64Counter("enginehealth_alert_dispatch_failures_total",
		metric.WithDescription("Analyses whose alert delivery failed for at least one sink"),
	); err != nil {
		return nil, fmt.Errorf("creating dispatch failures counter: %w", err)
	}
	if r.duration, err = meter.Float64Histogram("enginehealth_analysis_duration_ms",
		metric.WithDescription("Wall time of one recording analysis"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000),
	); err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}
	return &r, nil
}

// NewNoop returns a recorder whose instruments discard everything.
func NewNoop() *Recorder {
	r, _ := New(noop.NewMeterProvider().Meter(MeterName))
	return r
}

// AnalysisCompleted records one finished analysis.
func (r *Recorder) AnalysisCompleted(ctx context.Context, profileID string, alerts, skipped int, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("profile", profileID))
	r.analyses.Add(ctx, 1, attrs)
	r.alertsRaised.Add(ctx, int64(alerts), attrs)
	if skipped > 0 {
		r.rulesSkipped.Add(ctx, int64(skipped), attrs)
	}
	r.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
}

// AnalysisFailed records an aborted analysis. reason is a short error class.
func (r *Recorder) AnalysisFailed(ctx context.Context, profileID, reason string) {
	r.analysisErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("profile", profileID),
		attribute.String("reason", reason),
	))
}

// CacheLookup records a resolved-profile cache hit or miss.
func (r *Recorder) CacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	r.cacheLookups.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// DispatchFailed records an analysis whose alerts did not reach every sink.
func (r *Recorder) DispatchFailed(ctx context.Context, profileID string) {
	r.dispatchFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("profile", profileID)))
}
