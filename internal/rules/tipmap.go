package rules

import (
	"github.com/dwsmith1983/enginehealth/internal/condition"
	"github.com/dwsmith1983/enginehealth/pkg/types"
)

// ExpectedMap interpolates manifold pressure between the no-load and
// full-load values for an engine load in percent, clamped to [0, 100].
func ExpectedMap(cfg types.TipMapDeltaConfig, loadPct float64) float64 {
	frac := min(max(loadPct/100, 0), 1)
	return cfg.NoLoadMapPsi + (cfg.FullLoadMapPsi-cfg.NoLoadMapPsi)*frac
}

// MapDeviation is the measured TIP-MAP delta minus the delta expected at this load.
func MapDeviation(cfg types.TipMapDeltaConfig, tip, mapPsi, loadPct float64) float64 {
	actualDelta := tip - mapPsi
	idealDelta := tip - ExpectedMap(cfg, loadPct)
	return actualDelta - idealDelta
}

// tipMapDelta is the base condition of a tip_map_delta rule. It only
// evaluates once the load gate has held for its debounce; a zero threshold
// disables that side.
func tipMapDelta(cfg types.TipMapDeltaConfig, st *State, in condition.Input) bool {
	if g := cfg.LoadGate; g.Param != "" {
		if !condition.Evaluate(g.Condition, in) {
			st.gateSince.reset()
			return false
		}
		st.gateSince.start(in.Sample.Time)
		if !st.gateSince.held(in.Sample.Time, g.DebounceSec) {
			return false
		}
	}

	tipCh, mapCh, loadCh := cfg.Channels()
	tip, ok := condition.Value(tipCh, in)
	if !ok {
		return false
	}
	mapPsi, ok := condition.Value(mapCh, in)
	if !ok {
		return false
	}
	load, ok := condition.Value(loadCh, in)
	if !ok {
		return false
	}

	dev := MapDeviation(cfg, tip, mapPsi, load)
	return (cfg.HighThreshold > 0 && dev > cfg.HighThreshold) ||
		(cfg.LowThreshold > 0 && dev < -cfg.LowThreshold)
}
