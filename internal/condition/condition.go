// Package condition evaluates (parameter, operator, value) conditions against telemetry samples.
package condition

import (
	"math"

	"github.com/dwsmith1983/enginehealth/pkg/types"
)

// Engine-state predicate names. Their values are synthesized from the
// classified engine state as 0 or 1 rather than read from the sample.
const (
	EngineOff      = "EngineOff"
	EngineCranking = "EngineCranking"
	EngineRunning  = "EngineRunning"
	EngineUnstable = "EngineUnstable"
	EngineStable   = "EngineStable"
	EngineStopping = "EngineStopping"
	StartupGrace   = "StartupGrace"
)

var predicates = map[string]func(types.EngineState, bool) bool{
	EngineOff:      func(s types.EngineState, _ bool) bool { return s == types.EngineOff },
	EngineCranking: func(s types.EngineState, _ bool) bool { return s == types.EngineCranking },
	EngineRunning:  func(s types.EngineState, _ bool) bool { return s.Running() },
	EngineUnstable: func(s types.EngineState, _ bool) bool { return s == types.EngineUnstable },
	EngineStable:   func(s types.EngineState, _ bool) bool { return s == types.EngineStable },
	EngineStopping: func(s types.EngineState, _ bool) bool { return s == types.EngineStopping },
	StartupGrace:   func(_ types.EngineState, grace bool) bool { return grace },
}

// IsPredicate reports whether name is an engine-state predicate.
func IsPredicate(name string) bool {
	_, ok := predicates[name]
	return ok
}

// Input is the per-sample context a condition is evaluated against.
type Input struct {
	Sample types.Sample
	State  types.EngineState
	Grace  bool
	// Valid masks raw channel values for alerting; nil admits every present value.
	Valid func(channel string, value float64) bool
}

// Value resolves param for the input. Predicates yield 0 or 1; channels yield
// the sample value when present, not NaN and admitted by Valid.
func Value(param string, in Input) (float64, bool) {
	if pred, ok := predicates[param]; ok {
		if pred(in.State, in.Grace) {
			return 1, true
		}
		return 0, true
	}
	v, ok := in.Sample.Value(param)
	if !ok {
		return 0, false
	}
	if in.Valid != nil && !in.Valid(param, v) {
		return 0, false
	}
	return v, true
}

// Evaluate returns the truth of c for the input. Conditions on missing data are false.
func Evaluate(c types.Condition, in Input) bool {
	v, ok := Value(c.Param, in)
	if !ok {
		return false
	}
	target := c.Value
	if IsPredicate(c.Param) && (c.Operator == types.OpEqual || c.Operator == types.OpNotEqual) {
		target = math.Round(target)
	}
	return Compare(v, c.Operator, target)
}

// Compare applies op with standard numeric semantics. Unknown operators are false.
func Compare(v float64, op types.Operator, target float64) bool {
	if math.IsNaN(v) || math.IsNaN(target) {
		return false
	}
	switch op {
	case types.OpGreater:
		return v > target
	case types.OpLess:
		return v < target
	case types.OpGreaterOrEqual:
		return v >= target
	case types.OpLessOrEqual:
		return v <= target
	case types.OpEqual:
		return v == target
	case types.OpNotEqual:
		return v != target
	default:
		return false
	}
}

// Combine joins conds with logic. An empty list is false.
func Combine(logic types.Logic, conds []types.Condition, in Input) bool {
	if len(conds) == 0 {
		return false
	}
	if logic == types.LogicOr {
		return Any(conds, in)
	}
	for _, c := range conds {
		if !Evaluate(c, in) {
			return false
		}
	}
	return true
}

// Any reports whether at least one condition holds.
func Any(conds []types.Condition, in Input) bool {
	for _, c := range conds {
		if Evaluate(c, in) {
			return true
		}
	}
	return false
}

// All reports whether every condition holds. An empty list is true.
func All(conds []types.Condition, in Input) bool {
	for _, c := range conds {
		if !Evaluate(c, in) {
			return false
		}
	}
	return true
}
