package types

import (
	"math"
	"sort"
)

// TimeChannel is the reserved channel name carrying the sample timestamp.
const TimeChannel = "Time"

// Sample is one timestamped row of a recording. Time is in seconds and need not start at zero.
type Sample struct {
	Time   float64            `json:"time"`
	Values map[string]float64 `json:"values"`
}

// Value returns the channel value, or false when it is absent or NaN.
func (s Sample) Value(channel string) (float64, bool) {
	v, ok := s.Values[channel]
	if !ok || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Channels returns the sorted union of channel names present in samples.
func Channels(samples []Sample) []string {
	seen := make(map[string]struct{})
	for _, s := range samples {
		for k := range s.Values {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Condition compares one parameter against a numeric constant. Param is a raw
// channel name or an engine-state predicate name such as EngineRunning.
type Condition struct {
	Param    string   `yaml:"param" json:"param" validate:"required"`
	Operator Operator `yaml:"operator" json:"operator" validate:"required,oneof=> < >= <= == !="`
	Value    float64  `yaml:"value" json:"value"`
}

// LoadGate is the sub-condition that must hold continuously for DebounceSec
// before a tip_map_delta rule evaluates.
type LoadGate struct {
	Condition   `yaml:",inline"`
	DebounceSec float64 `yaml:"debounceSec,omitempty" json:"debounceSec,omitempty" validate:"gte=0"`
}

// TipMapDeltaConfig parameterizes the tip_map_delta rule variant: the measured
// throttle-inlet minus manifold pressure delta is compared against the delta
// expected from linear interpolation between the no-load and full-load MAP.
type TipMapDeltaConfig struct {
	FullLoadMapPsi float64  `yaml:"fullLoadMapPsi" json:"fullLoadMapPsi"`
	NoLoadMapPsi   float64  `yaml:"noLoadMapPsi" json:"noLoadMapPsi"`
	HighThreshold  float64  `yaml:"highThreshold" json:"highThreshold" validate:"gte=0"`
	LowThreshold   float64  `yaml:"lowThreshold" json:"lowThreshold" validate:"gte=0"`
	TipParam       string   `yaml:"tipParam,omitempty" json:"tipParam,omitempty"`
	MapParam       string   `yaml:"mapParam,omitempty" json:"mapParam,omitempty"`
	LoadParam      string   `yaml:"loadParam,omitempty" json:"loadParam,omitempty"`
	LoadGate       LoadGate `yaml:"loadGate" json:"loadGate" validate:"-"`
}

// Default channel names used by tip_map_delta when the config leaves them empty.
const (
	DefaultTipParam  = "TIP"
	DefaultMapParam  = "MAP"
	DefaultLoadParam = "eng_load"
)

// Channels returns the tip, map and load channel names with defaults applied.
func (c TipMapDeltaConfig) Channels() (tip, mapp, load string) {
	tip, mapp, load = c.TipParam, c.MapParam, c.LoadParam
	if tip == "" {
		tip = DefaultTipParam
	}
	if mapp == "" {
		mapp = DefaultMapParam
	}
	if load == "" {
		load = DefaultLoadParam
	}
	return tip, mapp, load
}

// Rule is a named set of conditions with timing and severity metadata.
// Type selects the variant; TipMapDelta is the payload of RuleTipMapDelta and
// must be nil for generic rules.
type Rule struct {
	ID                    string             `yaml:"id" json:"id" validate:"required"`
	Name                  string             `yaml:"name" json:"name" validate:"required"`
	Description           string             `yaml:"description,omitempty" json:"description,omitempty"`
	Category              string             `yaml:"category,omitempty" json:"category,omitempty"`
	Severity              Severity           `yaml:"severity" json:"severity" validate:"required,oneof=warning critical"`
	Logic                 Logic              `yaml:"logic,omitempty" json:"logic,omitempty" validate:"omitempty,oneof=AND OR"`
	Conditions            []Condition        `yaml:"conditions,omitempty" json:"conditions,omitempty" validate:"omitempty,dive"`
	RequireWhen           []Condition        `yaml:"requireWhen,omitempty" json:"requireWhen,omitempty" validate:"omitempty,dive"`
	IgnoreWhen            []Condition        `yaml:"ignoreWhen,omitempty" json:"ignoreWhen,omitempty" validate:"omitempty,dive"`
	TriggerPersistenceSec float64            `yaml:"triggerPersistenceSec,omitempty" json:"triggerPersistenceSec,omitempty" validate:"gte=0"`
	ClearPersistenceSec   float64            `yaml:"clearPersistenceSec,omitempty" json:"clearPersistenceSec,omitempty" validate:"gte=0"`
	StartDelaySec         float64            `yaml:"startDelaySec,omitempty" json:"startDelaySec,omitempty" validate:"gte=0"`
	StopDelaySec          float64            `yaml:"stopDelaySec,omitempty" json:"stopDelaySec,omitempty" validate:"gte=0"`
	WindowSec             *float64           `yaml:"windowSec,omitempty" json:"windowSec,omitempty" validate:"omitempty,gt=0"`
	Type                  RuleType           `yaml:"type,omitempty" json:"type,omitempty" validate:"omitempty,oneof=generic tip_map_delta"`
	TipMapDelta           *TipMapDeltaConfig `yaml:"config,omitempty" json:"config,omitempty"`
}

// Kind returns the rule type, treating an empty type as generic.
func (r Rule) Kind() RuleType {
	if r.Type == "" {
		return RuleGeneric
	}
	return r.Type
}

// CombineLogic returns the rule logic, treating an empty value as AND.
func (r Rule) CombineLogic() Logic {
	if r.Logic == "" {
		return LogicAnd
	}
	return r.Logic
}

// Params returns every parameter referenced by the rule, in declaration order, without duplicates.
func (r Rule) Params() []string {
	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		if p != "" && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, group := range [][]Condition{r.Conditions, r.RequireWhen, r.IgnoreWhen} {
		for _, c := range group {
			add(c.Param)
		}
	}
	if r.TipMapDelta != nil {
		tip, mapp, load := r.TipMapDelta.Channels()
		add(tip)
		add(mapp)
		add(load)
		add(r.TipMapDelta.LoadGate.Param)
	}
	return out
}

// Profile is a named, inheritable bundle of thresholds and rules.
// An empty ParentID marks a root profile.
type Profile struct {
	ID          string `yaml:"id" json:"id" validate:"required"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	ParentID    string `yaml:"parentId,omitempty" json:"parentId,omitempty"`
	Version     int    `yaml:"version,omitempty" json:"version,omitempty"`
	Thresholds  Tree   `yaml:"thresholds,omitempty" json:"thresholds,omitempty"`
	Rules       []Rule `yaml:"rules,omitempty" json:"rules,omitempty" validate:"omitempty,dive"`
}

// IsRoot reports whether the profile has no parent.
func (p Profile) IsRoot() bool {
	return p.ParentID == ""
}

// ResolvedProfile is a self-contained configuration produced by merging a
// profile with all of its ancestors.
type ResolvedProfile struct {
	ProfileID        string   `json:"profileId"`
	Name             string   `json:"name"`
	Thresholds       Tree     `json:"thresholds"`
	Rules            []Rule   `json:"rules"`
	InheritanceChain []string `json:"inheritanceChain"`
	Hash             string   `json:"hash"`
	Issues           []Issue  `json:"issues,omitempty"`
}

// Rule returns the rule with the given id.
func (r *ResolvedProfile) Rule(id string) (Rule, bool) {
	for _, rule := range r.Rules {
		if rule.ID == id {
			return rule, true
		}
	}
	return Rule{}, false
}

// AlertEvent is one alert episode. ClearTime is nil while the alert is still open.
type AlertEvent struct {
	ID        string   `json:"id"`
	RuleID    string   `json:"ruleId"`
	RuleName  string   `json:"ruleName"`
	Category  string   `json:"category,omitempty"`
	Severity  Severity `json:"severity"`
	OnsetTime float64  `json:"onsetTime"`
	ClearTime *float64 `json:"clearTime"`
	Message   string   `json:"message,omitempty"`
}

// Open reports whether the alert has not cleared.
func (a AlertEvent) Open() bool {
	return a.ClearTime == nil
}

// Issue is a non-fatal problem isolated to one rule, channel or threshold.
type Issue struct {
	Kind    IssueKind `json:"kind"`
	Subject string    `json:"subject"`
	Message string    `json:"message"`
}
