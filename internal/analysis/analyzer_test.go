package analysis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/goleak"

	"github.com/dwsmith1983/enginehealth/internal/metrics"
	"github.com/dwsmith1983/enginehealth/internal/profile"
	"github.com/dwsmith1983/enginehealth/internal/recording"
	"github.com/dwsmith1983/enginehealth/internal/testutil"
	"github.com/dwsmith1983/enginehealth/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type captureDispatcher struct {
	mu     sync.Mutex
	alerts []types.AlertEvent
	err    error
}

func (d *captureDispatcher) Dispatch(_ context.Context, alerts ...types.AlertEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alerts = append(d.alerts, alerts...)
	return d.err
}

func lowOilProfile() types.Profile {
	return types.Profile{
		ID: "bench",
		Thresholds: types.Tree{
			"oilPressure": types.Branch(types.Tree{
				"warning": types.Branch(types.Tree{"min": types.Leaf(20.0)}),
			}),
		},
		Rules: []types.Rule{
			{
				ID:                    "low-oil",
				Name:                  "Low oil pressure",
				Severity:              types.SeverityCritical,
				Conditions:            []types.Condition{{Param: "OILP", Operator: types.OpLess, Value: 10}},
				TriggerPersistenceSec: 2,
			},
			{
				ID:         "fuel",
				Name:       "Low fuel pressure",
				Severity:   types.SeverityWarning,
				Conditions: []types.Condition{{Param: "FUELP", Operator: types.OpLess, Value: 30}},
			},
		},
	}
}

// startRecording is key-on at t=0 with the engine catching at 0.5s and
// running at 1500 rpm with low oil pressure until t=20.
func startRecording(name string) *recording.Recording {
	return &recording.Recording{
		Name:     name,
		Channels: []string{"RPM", "Vsw", "OILP"},
		Samples:  testutil.EngineStart(41, 0.5, 1500, map[string]float64{"OILP": 5}),
	}
}

func newAnalyzer(t *testing.T, store *testutil.MockStore, opts ...Option) *Analyzer {
	t.Helper()
	cache := profile.NewCache(profile.NewResolver(store, nil), time.Minute)
	return New(cache, nil, opts...)
}

func TestAnalyze_EndToEnd(t *testing.T) {
	store := testutil.NewMockStore(lowOilProfile())
	disp := &captureDispatcher{}
	var n int
	a := newAnalyzer(t, store,
		WithDispatcher(disp),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("id-%d", n) }),
	)

	report, err := a.Analyze(context.Background(), "bench", startRecording("run1.csv"))
	require.NoError(t, err)

	assert.Equal(t, "id-1", report.RunID)
	assert.Equal(t, "run1.csv", report.Recording)
	assert.Equal(t, []string{"bench"}, report.InheritanceChain)
	assert.Equal(t, 41, report.Samples)
	assert.NotEmpty(t, report.Transitions)
	assert.False(t, report.AnalyzedAt.IsZero())

	require.Len(t, report.Alerts, 1)
	got := report.Alerts[0]
	assert.Equal(t, "low-oil", got.RuleID)
	assert.InDelta(t, 6.5, got.OnsetTime, 1e-9)
	assert.NotEmpty(t, got.Message)

	require.Len(t, report.Issues, 1)
	assert.Equal(t, types.IssueMalformedRule, report.Issues[0].Kind)
	assert.Equal(t, "fuel", report.Issues[0].Subject)

	var oil *types.ChannelStats
	for i := range report.Channels {
		if report.Channels[i].Channel == "OILP" {
			oil = &report.Channels[i]
		}
	}
	require.NotNil(t, oil)
	assert.InDelta(t, 5.0, oil.Mean, 1e-9)

	assert.Len(t, disp.alerts, 1)
}

func TestAnalyze_ProfileErrors(t *testing.T) {
	loop := types.Profile{ID: "loop", ParentID: "loop"}
	tests := []struct {
		name    string
		id      string
		want    error
		wantTag string
	}{
		{"not found", "missing", types.ErrProfileNotFound, "profile_not_found"},
		{"cycle", "loop", types.ErrCircularInheritance, "circular_inheritance"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := sdkmetric.NewManualReader()
			provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
			t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
			rec, err := metrics.New(provider.Meter(metrics.MeterName))
			require.NoError(t, err)

			a := newAnalyzer(t, testutil.NewMockStore(loop), WithMetrics(rec))
			_, err = a.Analyze(context.Background(), tt.id, startRecording("r.csv"))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var rm metricdata.ResourceMetrics
			require.NoError(t, reader.Collect(context.Background(), &rm))
			var reason string
			for _, sm := range rm.ScopeMetrics {
				for _, m := range sm.Metrics {
					if m.Name != "enginehealth_analysis_errors_total" {
						continue
					}
					sum := m.Data.(metricdata.Sum[int64])
					require.Len(t, sum.DataPoints, 1)
					v, _ := sum.DataPoints[0].Attributes.Value("reason")
					reason = v.AsString()
				}
			}
			assert.Equal(t, tt.wantTag, reason)
		})
	}
}

func TestAnalyze_DispatchFailureIsNotFatal(t *testing.T) {
	disp := &captureDispatcher{err: errors.New("sink down")}
	a := newAnalyzer(t, testutil.NewMockStore(lowOilProfile()), WithDispatcher(disp))

	report, err := a.Analyze(context.Background(), "bench", startRecording("r.csv"))
	require.NoError(t, err)
	assert.Len(t, report.Alerts, 1)
}

func TestAnalyze_ProfileClassifierOverride(t *testing.T) {
	p := lowOilProfile()
	p.Thresholds["engineState"] = types.Branch(types.Tree{"runningRpm": types.Leaf(2000.0)})
	a := newAnalyzer(t, testutil.NewMockStore(p))

	report, err := a.Analyze(context.Background(), "bench", startRecording("r.csv"))
	require.NoError(t, err)
	assert.Empty(t, report.Alerts, "engine never counts as running below 2000 rpm")
	for _, tr := range report.Transitions {
		assert.NotEqual(t, types.EngineStable, tr.To)
	}
}

func TestAnalyzeAll_PreservesOrder(t *testing.T) {
	store := testutil.NewMockStore(lowOilProfile())
	a := newAnalyzer(t, store, WithConcurrency(2))

	recs := []*recording.Recording{startRecording("a.csv"), startRecording("b.csv"), startRecording("c.csv")}
	reports, err := a.AnalyzeAll(context.Background(), "bench", recs)
	require.NoError(t, err)
	require.Len(t, reports, 3)
	for i, r := range reports {
		assert.Equal(t, recs[i].Name, r.Recording)
	}
}

func TestAnalyzeAll_FirstErrorWins(t *testing.T) {
	a := newAnalyzer(t, testutil.NewMockStore())
	_, err := a.AnalyzeAll(context.Background(), "missing", []*recording.Recording{startRecording("a.csv")})
	assert.ErrorIs(t, err, types.ErrProfileNotFound)
}

func TestAnalyzeFiles(t *testing.T) {
	dir := t.TempDir()
	var b strings.Builder
	b.WriteString("Time,RPM,Vsw,OILP\n")
	for i := 0; i <= 40; i++ {
		rpm := 1500
		if i == 0 {
			rpm = 0
		}
		fmt.Fprintf(&b, "%g,%d,12,5\n", float64(i)*0.5, rpm)
	}
	path := filepath.Join(dir, "bench.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))

	a := newAnalyzer(t, testutil.NewMockStore(lowOilProfile()))
	reports, err := a.AnalyzeFiles(context.Background(), "bench", []string{path})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "bench.csv", reports[0].Recording)
	assert.Len(t, reports[0].Alerts, 1)

	_, err = a.AnalyzeFiles(context.Background(), "bench", []string{filepath.Join(dir, "nope.csv")})
	assert.ErrorContains(t, err, "opening recording")
}
