package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/enginehealth/internal/validity"
	"github.com/dwsmith1983/enginehealth/pkg/types"
)

func sample(t float64, kv ...any) types.Sample {
	s := types.Sample{Time: t, Values: map[string]float64{}}
	for i := 0; i+1 < len(kv); i += 2 {
		s.Values[kv[i].(string)] = kv[i+1].(float64)
	}
	return s
}

func TestTimeInState_ExcludesStaleGap(t *testing.T) {
	times := []float64{0, 1, 1.5, 3, 15}
	keys := []string{"A", "A", "B", "B", "B"}

	got := TimeInState(times, DefaultStalenessSec, func(i int) (string, bool) { return keys[i], true })

	assert.InDelta(t, 1.5, got["A"], 1e-9)
	assert.InDelta(t, 1.5, got["B"], 1e-9)
	assert.InDelta(t, (15.0-0)-12, got["A"]+got["B"], 1e-9)
}

func TestTimeInState_SkipsNonPositiveDt(t *testing.T) {
	times := []float64{0, 2, 2, 1, 3}
	got := TimeInState(times, DefaultStalenessSec, func(i int) (int, bool) { return i, true })

	assert.Equal(t, map[int]float64{0: 2, 1: 1}, got)
}

func TestSummarize_SkipsOutOfOrderSamples(t *testing.T) {
	samples := []types.Sample{
		sample(0, "Vbat", 12.0),
		sample(1, "Vbat", 12.0),
		sample(2, "Vbat", 12.0),
		sample(1.5, "Vbat", 40.0),
		sample(2, "Vbat", 40.0),
		sample(3, "Vbat", 12.0),
	}
	states := make([]types.EngineState, len(samples))

	sum := NewAggregator(types.StatsConfig{}, nil).Summarize(samples, states)

	require.Len(t, sum.Channels, 1)
	vbat := sum.Channels[0]
	assert.Equal(t, 4, vbat.Count)
	assert.Equal(t, 12.0, vbat.Max)
	assert.InDelta(t, 12.0, vbat.Mean, 1e-9)

	require.Len(t, sum.StateDwell, 1)
	assert.Equal(t, types.EngineOff.String(), sum.StateDwell[0].Value)
	assert.InDelta(t, 3.0, sum.StateDwell[0].Seconds, 1e-9, "dwell never exceeds elapsed time")
}

func TestTimeInState_KeylessIntervals(t *testing.T) {
	times := []float64{0, 1, 2, 3}
	got := TimeInState(times, DefaultStalenessSec, func(i int) (string, bool) { return "x", i != 1 })

	assert.Equal(t, map[string]float64{"x": 2}, got)
}

func recording() ([]types.Sample, []types.EngineState) {
	samples := []types.Sample{
		sample(0, "Vbat", 12.0, "OILP", 0.0, "gear", 0.0),
		sample(1, "Vbat", 11.0, "OILP", 5.0, "gear", 0.0),
		sample(2, "Vbat", 14.0, "OILP", 40.0, "gear", 1.0),
		sample(3, "Vbat", 14.2, "OILP", 50.0, "gear", 1.0),
	}
	states := []types.EngineState{types.EngineOff, types.EngineCranking, types.EngineStable, types.EngineStable}
	return samples, states
}

func TestChannelStats(t *testing.T) {
	samples, states := recording()
	samples[2].Values[types.TimeChannel] = 2

	got := ChannelStats(samples, states, validity.NewMasker(nil))
	require.Len(t, got, 3)

	byName := make(map[string]types.ChannelStats)
	for _, cs := range got {
		byName[cs.Channel] = cs
	}
	assert.Equal(t, []string{"OILP", "Vbat", "gear"}, []string{got[0].Channel, got[1].Channel, got[2].Channel})

	oil := byName["OILP"]
	assert.Equal(t, 2, oil.Count)
	assert.Equal(t, 40.0, oil.Min)
	assert.Equal(t, 50.0, oil.Max)
	assert.InDelta(t, 45.0, oil.Mean, 1e-9)

	vbat := byName["Vbat"]
	assert.Equal(t, 4, vbat.Count)
	assert.Equal(t, 11.0, vbat.Min)
	assert.Equal(t, 14.2, vbat.Max)
	assert.InDelta(t, 12.8, vbat.Mean, 1e-9)

	assert.Equal(t, 3, byName["gear"].Count)
}

func TestChannelStats_ValueFilters(t *testing.T) {
	samples := []types.Sample{
		sample(0, "FT", 0.0),
		sample(1, "FT", -3.0),
		sample(2, "FT", 30.0),
	}
	states := []types.EngineState{types.EngineStable, types.EngineStable, types.EngineStable}
	masker := validity.NewMasker(map[string]validity.Policy{
		"FT": {Stats: types.AlwaysValid, Alert: types.AlwaysValid, ExcludeZero: true, ExcludeNegative: true},
	})

	got := ChannelStats(samples, states, masker)
	require.Len(t, got, 1)
	assert.Equal(t, types.ChannelStats{Channel: "FT", Count: 1, Min: 30, Max: 30, Mean: 30}, got[0])
}

func TestChannelStats_NoValidSamples(t *testing.T) {
	samples := []types.Sample{sample(0, "OILP", 30.0)}
	got := ChannelStats(samples, []types.EngineState{types.EngineOff}, nil)
	assert.Empty(t, got)
}

func TestRunningMeanIsStable(t *testing.T) {
	var r running
	for i := 0; i < 1000; i++ {
		r.add(1e9 + float64(i%2))
	}
	assert.InDelta(t, 1e9+0.5, r.mean, 1e-6)
}

func TestEngineStateDwell(t *testing.T) {
	samples, states := recording()
	got := EngineStateDwell(samples, states, DefaultStalenessSec)

	require.Len(t, got, 3)
	assert.Equal(t, "off", got[0].Value)
	assert.Equal(t, "cranking", got[1].Value)
	assert.Equal(t, "stable", got[2].Value)
	for _, d := range got {
		assert.InDelta(t, 1.0, d.Seconds, 1e-9)
		assert.InDelta(t, 100.0/3, d.Percent, 1e-9)
	}
}

func TestAggregator_Summarize(t *testing.T) {
	samples, states := recording()
	agg := NewAggregator(types.StatsConfig{Categorical: []string{"gear", "missing"}}, nil)

	sum := agg.Summarize(samples, states)
	assert.Len(t, sum.Channels, 3)
	assert.Len(t, sum.StateDwell, 3)
	require.Contains(t, sum.Categorical, "gear")
	assert.NotContains(t, sum.Categorical, "missing")
	assert.Equal(t, []types.Dwell{
		{Value: "0", Seconds: 1, Percent: 50},
		{Value: "1", Seconds: 1, Percent: 50},
	}, sum.Categorical["gear"])
}

func TestAggregator_Staleness(t *testing.T) {
	samples := []types.Sample{sample(0), sample(4), sample(8)}
	states := []types.EngineState{types.EngineOff, types.EngineStable, types.EngineStable}

	sum := NewAggregator(types.StatsConfig{StalenessSec: 3}, nil).Summarize(samples, states)
	assert.Empty(t, sum.StateDwell)

	sum = NewAggregator(types.StatsConfig{}, nil).Summarize(samples, states)
	require.Len(t, sum.StateDwell, 2)
	assert.Equal(t, types.Dwell{Value: "off", Seconds: 4, Percent: 50}, sum.StateDwell[0])
}
