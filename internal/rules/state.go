// Package rules runs per-rule timed state machines over a classified sample
// stream and emits alert episodes.
package rules

import (
	"github.com/dwsmith1983/enginehealth/internal/condition"
	"github.com/dwsmith1983/enginehealth/pkg/types"
)

// since is an optional timestamp marking when a condition started holding.
type since struct {
	at  float64
	set bool
}

func (s *since) start(t float64) {
	if !s.set {
		s.at, s.set = t, true
	}
}

func (s *since) reset() { *s = since{} }

func (s since) held(t, d float64) bool { return s.set && t-s.at >= d }

type windowPoint struct {
	t      float64
	active bool
}

// State is one rule's memory between samples.
type State struct {
	Firing bool
	Onset  float64

	trueSince  since
	falseSince since
	gateSince  since
	window     []windowPoint
}

// EventKind distinguishes the two alert edges.
type EventKind int

const (
	EventFire EventKind = iota
	EventClear
)

// Event is one emitted edge. Time is the reported boundary: onset for fire,
// first false moment for clear.
type Event struct {
	Kind EventKind
	Time float64
}

// Input is everything a rule sees for one sample.
type Input struct {
	condition.Input
	// Suppressed is set inside a start or stop delay window.
	Suppressed bool
}

// Step advances rule by one sample. Gating and delay suppression count as a
// false sample, so they reset trigger persistence and start clear persistence.
func Step(rule types.Rule, st State, in Input) (State, []Event) {
	t := in.Sample.Time
	active := false
	if in.Suppressed || !gatesOpen(rule, in.Input) {
		st.gateSince.reset()
	} else {
		active = baseCondition(rule, &st, in.Input)
	}

	if rule.WindowSec != nil {
		return stepWindow(rule, st, t, active)
	}
	return stepContinuous(rule, st, t, active)
}

// gatesOpen reads gate channels unmasked: a gate states when the rule applies,
// so alert validity never hides its value.
func gatesOpen(rule types.Rule, in condition.Input) bool {
	in.Valid = nil
	if condition.Any(rule.IgnoreWhen, in) {
		return false
	}
	return condition.All(rule.RequireWhen, in)
}

func baseCondition(rule types.Rule, st *State, in condition.Input) bool {
	switch rule.Kind() {
	case types.RuleTipMapDelta:
		return tipMapDelta(*rule.TipMapDelta, st, in)
	default:
		return condition.Combine(rule.CombineLogic(), rule.Conditions, in)
	}
}

func stepContinuous(rule types.Rule, st State, t float64, active bool) (State, []Event) {
	if active {
		st.falseSince.reset()
		st.trueSince.start(t)
		if !st.Firing && st.trueSince.held(t, rule.TriggerPersistenceSec) {
			return fire(st, st.trueSince.at+rule.TriggerPersistenceSec)
		}
		return st, nil
	}
	st.trueSince.reset()
	return checkClear(rule, st, t)
}

// stepWindow fires once the true time inside the trailing window reaches the
// trigger persistence. Each sample's value holds until the next sample.
func stepWindow(rule types.Rule, st State, t float64, active bool) (State, []Event) {
	w := *rule.WindowSec
	lo := t - w

	trueTime := 0.0
	for i, p := range st.window {
		end := t
		if i+1 < len(st.window) {
			end = st.window[i+1].t
		}
		start := max(p.t, lo)
		if p.active && end > start {
			trueTime += end - start
		}
	}
	n := len(st.window)
	st.window = append(st.window[:n:n], windowPoint{t: t, active: active})
	for len(st.window) > 1 && st.window[1].t <= lo {
		st.window = st.window[1:]
	}

	if active {
		st.falseSince.reset()
	}
	if !st.Firing {
		trigger := rule.TriggerPersistenceSec
		if (trigger <= 0 && active) || (trigger > 0 && trueTime >= trigger) {
			return fire(st, t)
		}
		return st, nil
	}
	if active {
		return st, nil
	}
	st, events := checkClear(rule, st, t)
	if !st.Firing {
		st.window = nil
	}
	return st, events
}

func fire(st State, onset float64) (State, []Event) {
	st.Firing = true
	st.Onset = onset
	st.falseSince.reset()
	return st, []Event{{Kind: EventFire, Time: onset}}
}

func checkClear(rule types.Rule, st State, t float64) (State, []Event) {
	if !st.Firing {
		return st, nil
	}
	st.falseSince.start(t)
	if !st.falseSince.held(t, rule.ClearPersistenceSec) {
		return st, nil
	}
	clearAt := st.falseSince.at
	st.Firing = false
	st.falseSince.reset()
	return st, []Event{{Kind: EventClear, Time: clearAt}}
}
