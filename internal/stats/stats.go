// Package stats summarizes a classified recording: per-channel min/max/mean
// over validity-masked samples and dt-weighted dwell time per discrete value.
package stats

import (
	"math"
	"sort"
	"strconv"

	"github.com/dwsmith1983/enginehealth/internal/validity"
	"github.com/dwsmith1983/enginehealth/pkg/types"
)

// DefaultStalenessSec is the largest inter-sample gap counted toward dwell time.
const DefaultStalenessSec = 10.0

// running is a Welford accumulator.
type running struct {
	n    int
	mean float64
	min  float64
	max  float64
}

func (r *running) add(v float64) {
	r.n++
	if r.n == 1 {
		r.mean, r.min, r.max = v, v, v
		return
	}
	r.mean += (v - r.mean) / float64(r.n)
	r.min = math.Min(r.min, v)
	r.max = math.Max(r.max, v)
}

// Summary is the aggregated view of one recording.
type Summary struct {
	Channels    []types.ChannelStats
	StateDwell  []types.Dwell
	Categorical map[string][]types.Dwell
}

// Aggregator computes channel statistics and dwell histograms.
type Aggregator struct {
	masker       *validity.Masker
	stalenessSec float64
	categorical  []string
}

// NewAggregator creates an aggregator. A nil masker admits samples by the
// built-in default policies.
func NewAggregator(cfg types.StatsConfig, masker *validity.Masker) *Aggregator {
	if masker == nil {
		masker = validity.NewMasker(nil)
	}
	staleness := cfg.StalenessSec
	if staleness <= 0 {
		staleness = DefaultStalenessSec
	}
	return &Aggregator{masker: masker, stalenessSec: staleness, categorical: cfg.Categorical}
}

// Summarize aggregates samples against their classified engine states.
// states must be index-aligned with samples.
func (a *Aggregator) Summarize(samples []types.Sample, states []types.EngineState) Summary {
	sum := Summary{
		Channels:   ChannelStats(samples, states, a.masker),
		StateDwell: EngineStateDwell(samples, states, a.stalenessSec),
	}
	for _, ch := range a.categorical {
		d := CategoricalDwell(samples, states, ch, a.masker, a.stalenessSec)
		if len(d) == 0 {
			continue
		}
		if sum.Categorical == nil {
			sum.Categorical = make(map[string][]types.Dwell)
		}
		sum.Categorical[ch] = d
	}
	return sum
}

// ChannelStats computes min/max/mean for every channel over the samples its
// stats policy admits. Samples whose time does not advance past the last
// admitted sample are skipped. Channels with no admitted sample are omitted.
func ChannelStats(samples []types.Sample, states []types.EngineState, masker *validity.Masker) []types.ChannelStats {
	acc := make(map[string]*running)
	last := math.Inf(-1)
	for i, s := range samples {
		if s.Time <= last {
			continue
		}
		last = s.Time
		state := stateAt(states, i)
		for ch := range s.Values {
			if ch == types.TimeChannel {
				continue
			}
			v, ok := s.Value(ch)
			if !ok || !masker.StatsValid(ch, v, state) {
				continue
			}
			r := acc[ch]
			if r == nil {
				r = &running{}
				acc[ch] = r
			}
			r.add(v)
		}
	}

	out := make([]types.ChannelStats, 0, len(acc))
	for ch, r := range acc {
		out = append(out, types.ChannelStats{Channel: ch, Count: r.n, Min: r.min, Max: r.max, Mean: r.mean})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out
}

func stateAt(states []types.EngineState, i int) types.EngineState {
	if i < len(states) {
		return states[i]
	}
	return types.EngineOff
}

// TimeInState accumulates wall-clock seconds per key. Only samples whose time
// is strictly greater than the last admitted one take part; the interval
// between consecutive admitted samples i and j is credited to keyAt(i).
// Intervals with dt > stalenessSec are dropped, as are intervals whose start
// has no key.
func TimeInState[K comparable](times []float64, stalenessSec float64, keyAt func(i int) (K, bool)) map[K]float64 {
	out := make(map[K]float64)
	if len(times) == 0 {
		return out
	}
	prev := 0
	for j := 1; j < len(times); j++ {
		dt := times[j] - times[prev]
		if dt <= 0 {
			continue
		}
		i := prev
		prev = j
		if dt > stalenessSec {
			continue
		}
		if k, ok := keyAt(i); ok {
			out[k] += dt
		}
	}
	return out
}

// EngineStateDwell reports time spent in each engine state, in cycle order.
func EngineStateDwell(samples []types.Sample, states []types.EngineState, stalenessSec float64) []types.Dwell {
	acc := TimeInState(sampleTimes(samples), stalenessSec, func(i int) (types.EngineState, bool) {
		return stateAt(states, i), true
	})
	total := 0.0
	for _, sec := range acc {
		total += sec
	}

	var out []types.Dwell
	for _, st := range types.AllEngineStates {
		sec, ok := acc[st]
		if !ok {
			continue
		}
		out = append(out, types.Dwell{Value: st.String(), Seconds: sec, Percent: percent(sec, total)})
	}
	return out
}

// CategoricalDwell reports time spent at each discrete value of channel,
// counting only samples its stats policy admits. Values are sorted numerically.
func CategoricalDwell(samples []types.Sample, states []types.EngineState, channel string, masker *validity.Masker, stalenessSec float64) []types.Dwell {
	acc := TimeInState(sampleTimes(samples), stalenessSec, func(i int) (float64, bool) {
		v, ok := samples[i].Value(channel)
		if !ok || !masker.StatsValid(channel, v, stateAt(states, i)) {
			return 0, false
		}
		return v, true
	})
	total := 0.0
	values := make([]float64, 0, len(acc))
	for v, sec := range acc {
		values = append(values, v)
		total += sec
	}
	sort.Float64s(values)

	out := make([]types.Dwell, 0, len(values))
	for _, v := range values {
		out = append(out, types.Dwell{
			Value:   strconv.FormatFloat(v, 'g', -1, 64),
			Seconds: acc[v],
			Percent: percent(acc[v], total),
		})
	}
	return out
}

func sampleTimes(samples []types.Sample) []float64 {
	times := make([]float64, len(samples))
	for i, s := range samples {
		times[i] = s.Time
	}
	return times
}

func percent(part, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return part / total * 100
}
