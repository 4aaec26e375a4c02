package testutil

import (
	"maps"

	"github.com/dwsmith1983/enginehealth/pkg/types"
)

// KeyOnVoltage is the Vsw value used by the sample builders for key-on.
const KeyOnVoltage = 12.0

// EngineStart returns n samples dt apart from t=0. The key is on throughout;
// RPM is 0 in the first sample and rpm afterwards. extra channels are held
// constant on every sample.
func EngineStart(n int, dt, rpm float64, extra map[string]float64) []types.Sample {
	out := make([]types.Sample, n)
	for i := range out {
		v := map[string]float64{"RPM": rpm, "Vsw": KeyOnVoltage}
		if i == 0 {
			v["RPM"] = 0
		}
		maps.Copy(v, extra)
		out[i] = types.Sample{Time: float64(i) * dt, Values: v}
	}
	return out
}

// Series builds samples from parallel time and channel columns. A NaN value
// leaves the channel absent from that sample.
func Series(times []float64, channels map[string][]float64) []types.Sample {
	out := make([]types.Sample, len(times))
	for i, t := range times {
		v := make(map[string]float64, len(channels))
		for ch, col := range channels {
			if i < len(col) && col[i] == col[i] {
				v[ch] = col[i]
			}
		}
		out[i] = types.Sample{Time: t, Values: v}
	}
	return out
}
