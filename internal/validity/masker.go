package validity

import (
	"github.com/dwsmith1983/enginehealth/pkg/types"
)

// Policy decides when one channel's samples count as valid.
type Policy struct {
	Stats           types.ValidityPolicy `json:"stats"`
	Alert           types.ValidityPolicy `json:"alert"`
	ExcludeZero     bool                 `json:"excludeZero,omitempty"`
	ExcludeNegative bool                 `json:"excludeNegative,omitempty"`
}

// admitsValue applies the literal-value filters.
func (p Policy) admitsValue(v float64) bool {
	if p.ExcludeZero && v == 0 {
		return false
	}
	if p.ExcludeNegative && v < 0 {
		return false
	}
	return true
}

// FallbackPolicy applies to channels with neither a built-in nor a profile policy.
var FallbackPolicy = Policy{Stats: types.ValidWhenKeyOn, Alert: types.ValidWhenRunning}

// DefaultPolicies is the built-in per-channel table. Supply voltages are
// monitored even with the key off; pressures only mean something once the
// engine has caught.
var DefaultPolicies = map[string]Policy{
	"Vbat":     {Stats: types.AlwaysValid, Alert: types.AlwaysValid},
	"Vsw":      {Stats: types.AlwaysValid, Alert: types.AlwaysValid},
	"OILP":     {Stats: types.ValidWhenRunning, Alert: types.ValidWhenStable},
	"ECT":      {Stats: types.ValidWhenKeyOn, Alert: types.ValidWhenRunning},
	"OILT":     {Stats: types.ValidWhenKeyOn, Alert: types.ValidWhenRunning},
	"IAT":      {Stats: types.ValidWhenKeyOn, Alert: types.ValidWhenRunning},
	"FT":       {Stats: types.ValidWhenKeyOn, Alert: types.ValidWhenRunning},
	"MAP":      {Stats: types.ValidWhenRunning, Alert: types.ValidWhenStable},
	"TIP":      {Stats: types.ValidWhenRunning, Alert: types.ValidWhenStable},
	"BP":       {Stats: types.ValidWhenRunning, Alert: types.ValidWhenStable},
	"TPS_pct":  {Stats: types.ValidWhenRunning, Alert: types.ValidWhenRunning},
	"eng_load": {Stats: types.ValidWhenRunning, Alert: types.ValidWhenRunning},
}

// PoliciesFromThresholds extracts `<channel>.validity` overrides from a
// resolved threshold tree. Unknown policy names are ignored so the built-in
// entry still applies.
func PoliciesFromThresholds(tree types.Tree) map[string]Policy {
	out := make(map[string]Policy)
	for _, ch := range tree.Keys() {
		v := tree.Sub(ch, "validity")
		if v == nil {
			continue
		}
		p := lookupDefault(ch)
		if s, ok := v.Text("stats"); ok && types.ValidityPolicy(s).Valid() {
			p.Stats = types.ValidityPolicy(s)
		}
		if s, ok := v.Text("alert"); ok && types.ValidityPolicy(s).Valid() {
			p.Alert = types.ValidityPolicy(s)
		}
		if b, ok := v.Bool("excludeZero"); ok {
			p.ExcludeZero = b
		}
		if b, ok := v.Bool("excludeNegative"); ok {
			p.ExcludeNegative = b
		}
		out[ch] = p
	}
	return out
}

func lookupDefault(ch string) Policy {
	if p, ok := DefaultPolicies[ch]; ok {
		return p
	}
	return FallbackPolicy
}

// Masker answers per-sample validity questions for one analysis.
type Masker struct {
	overrides map[string]Policy
}

// NewMasker creates a masker. overrides win over the built-in table.
func NewMasker(overrides map[string]Policy) *Masker {
	return &Masker{overrides: overrides}
}

// Policy returns the effective policy for channel.
func (m *Masker) Policy(channel string) Policy {
	if m != nil {
		if p, ok := m.overrides[channel]; ok {
			return p
		}
	}
	return lookupDefault(channel)
}

// StatsValid reports whether value, sampled in state, counts toward statistics.
func (m *Masker) StatsValid(channel string, value float64, state types.EngineState) bool {
	p := m.Policy(channel)
	return p.Stats.Admits(state) && p.admitsValue(value)
}

// AlertValid reports whether value, sampled in state, may drive a rule. Inside
// the startup grace window only AlwaysValid channels are admitted.
func (m *Masker) AlertValid(channel string, value float64, state types.EngineState, grace bool) bool {
	p := m.Policy(channel)
	if grace && p.Alert != types.AlwaysValid {
		return false
	}
	return p.Alert.Admits(state) && p.admitsValue(value)
}
