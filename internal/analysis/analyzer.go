// Package analysis runs one or more recordings through the full pipeline:
// resolve the profile, classify engine state, evaluate rules, summarize
// statistics, format and dispatch alerts.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/dwsmith1983/enginehealth/internal/alert"
	"github.com/dwsmith1983/enginehealth/internal/metrics"
	"github.com/dwsmith1983/enginehealth/internal/recording"
	"github.com/dwsmith1983/enginehealth/internal/rules"
	"github.com/dwsmith1983/enginehealth/internal/stats"
	"github.com/dwsmith1983/enginehealth/internal/validity"
	"github.com/dwsmith1983/enginehealth/pkg/types"
)

// DefaultConcurrency bounds how many recordings AnalyzeAll runs at once.
const DefaultConcurrency = 4

// ProfileSource returns resolved profiles, typically a *profile.Cache.
type ProfileSource interface {
	Get(ctx context.Context, id string) (*types.ResolvedProfile, error)
}

// AlertDispatcher delivers formatted alerts, typically an *alert.Dispatcher.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, alerts ...types.AlertEvent) error
}

// Analyzer wires the analysis pipeline together. It holds no per-run state
// and is safe for concurrent use.
type Analyzer struct {
	profiles    ProfileSource
	dispatcher  AlertDispatcher
	recorder    *metrics.Recorder
	tracer      trace.Tracer
	logger      *slog.Logger
	classifier  types.ClassifierConfig
	stats       types.StatsConfig
	concurrency int
	newID       func() string
	now         func() time.Time
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithDispatcher delivers every report's alerts through d.
func WithDispatcher(d AlertDispatcher) Option {
	return func(a *Analyzer) { a.dispatcher = d }
}

// WithMetrics records analysis counters on r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(a *Analyzer) { a.recorder = r }
}

// WithTracer replaces the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(a *Analyzer) { a.tracer = t }
}

// WithClassifierConfig sets classifier defaults that a profile's engineState
// branch may override.
func WithClassifierConfig(cfg types.ClassifierConfig) Option {
	return func(a *Analyzer) { a.classifier = cfg }
}

// WithStatsConfig tunes the statistics aggregator.
func WithStatsConfig(cfg types.StatsConfig) Option {
	return func(a *Analyzer) { a.stats = cfg }
}

// WithConcurrency bounds AnalyzeAll parallelism. Non-positive values keep the default.
func WithConcurrency(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithIDGenerator replaces the ULID generator for run and alert ids.
func WithIDGenerator(fn func() string) Option {
	return func(a *Analyzer) { a.newID = fn }
}

// WithClock replaces the wall clock used for AnalyzedAt and durations.
func WithClock(fn func() time.Time) Option {
	return func(a *Analyzer) { a.now = fn }
}

// New creates an Analyzer reading resolved profiles from profiles.
func New(profiles ProfileSource, logger *slog.Logger, opts ...Option) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Analyzer{
		profiles:    profiles,
		logger:      logger,
		concurrency: DefaultConcurrency,
		newID:       func() string { return ulid.Make().String() },
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.recorder == nil {
		a.recorder = metrics.NewNoop()
	}
	if a.tracer == nil {
		a.tracer = otel.Tracer(metrics.MeterName)
	}
	return a
}

// Analyze evaluates one recording against profileID. Resolution errors abort
// and are returned; per-rule and per-channel problems are reported in
// Report.Issues. A dispatch failure is logged and counted but does not fail
// the analysis.
func (a *Analyzer) Analyze(ctx context.Context, profileID string, rec *recording.Recording) (*types.Report, error) {
	ctx, span := a.tracer.Start(ctx, "analysis.Analyze", trace.WithAttributes(
		attribute.String("profile", profileID),
		attribute.String("recording", rec.Name),
		attribute.Int("samples", len(rec.Samples)),
	))
	defer span.End()
	start := a.now()

	resolved, err := a.profiles.Get(ctx, profileID)
	if err != nil {
		a.recorder.AnalysisFailed(ctx, profileID, failureReason(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "profile resolution failed")
		return nil, fmt.Errorf("resolving profile %q: %w", profileID, err)
	}

	report := &types.Report{
		RunID:            a.newID(),
		Recording:        rec.Name,
		ProfileID:        resolved.ProfileID,
		InheritanceChain: resolved.InheritanceChain,
		Samples:          len(rec.Samples),
	}
	report.Issues = append(report.Issues, resolved.Issues...)

	clsCfg := validity.ConfigFromThresholds(a.classifier, resolved.Thresholds)
	cls := validity.NewClassifier(clsCfg, a.logger).Classify(rec.Samples)
	report.Transitions = cls.Transitions
	report.Issues = append(report.Issues, cls.Issues...)

	masker := validity.NewMasker(validity.PoliciesFromThresholds(resolved.Thresholds))
	res := rules.NewEngine(a.logger, rules.WithIDGenerator(a.newID)).
		Evaluate(resolved.Rules, rec.Samples, cls, masker)
	report.Issues = append(report.Issues, res.Issues...)
	report.Alerts = alert.FormatAll(res.Alerts, resolved.Rules)

	sum := stats.NewAggregator(a.stats, masker).Summarize(rec.Samples, cls.States)
	report.Channels = sum.Channels
	report.StateDwell = sum.StateDwell
	report.CategoricalDwell = sum.Categorical

	if rec.SkippedRows > 0 {
		a.logger.Warn("recording rows skipped", "recording", rec.Name, "rows", rec.SkippedRows)
	}

	if a.dispatcher != nil && len(report.Alerts) > 0 {
		if err := a.dispatcher.Dispatch(ctx, report.Alerts...); err != nil {
			a.logger.Error("alert dispatch failed", "recording", rec.Name, "profile", profileID, "error", err)
			a.recorder.DispatchFailed(ctx, profileID)
			span.RecordError(err)
		}
	}

	report.AnalyzedAt = a.now()
	a.recorder.AnalysisCompleted(ctx, profileID, len(report.Alerts), res.Skipped, report.AnalyzedAt.Sub(start))
	span.SetAttributes(
		attribute.Int("alerts", len(report.Alerts)),
		attribute.Int("rulesSkipped", res.Skipped),
	)
	a.logger.Info("recording analyzed",
		"recording", rec.Name,
		"profile", profileID,
		"runId", report.RunID,
		"alerts", len(report.Alerts),
		"issues", len(report.Issues),
	)
	return report, nil
}

// AnalyzeAll analyzes recordings in parallel against the same profile.
// Reports are returned in input order. The first error cancels the rest.
func (a *Analyzer) AnalyzeAll(ctx context.Context, profileID string, recs []*recording.Recording) ([]*types.Report, error) {
	reports := make([]*types.Report, len(recs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, rec := range recs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := a.Analyze(gctx, profileID, rec)
			if err != nil {
				return fmt.Errorf("analyzing %s: %w", rec.Name, err)
			}
			reports[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// AnalyzeFiles reads each CSV path and analyzes it against profileID.
func (a *Analyzer) AnalyzeFiles(ctx context.Context, profileID string, paths []string) ([]*types.Report, error) {
	reports := make([]*types.Report, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := recording.ReadFile(path)
			if err != nil {
				return err
			}
			r, err := a.Analyze(gctx, profileID, rec)
			if err != nil {
				return fmt.Errorf("analyzing %s: %w", path, err)
			}
			reports[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, types.ErrProfileNotFound):
		return "profile_not_found"
	case errors.Is(err, types.ErrCircularInheritance):
		return "circular_inheritance"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "store_error"
	}
}
