package validity

import (
	"fmt"
	"slices"

	"github.com/dwsmith1983/enginehealth/pkg/types"
)

// Transition table: from -> allowed tos
var validTransitions = map[types.EngineState][]types.EngineState{
	types.EngineOff:      {types.EngineCranking},
	types.EngineCranking: {types.EngineUnstable, types.EngineStopping},
	types.EngineUnstable: {types.EngineStable, types.EngineStopping},
	types.EngineStable:   {types.EngineStopping},
	types.EngineStopping: {types.EngineOff, types.EngineUnstable},
}

// CanTransition reports whether the classifier may move from one engine state to another.
func CanTransition(from, to types.EngineState) bool {
	return slices.Contains(validTransitions[from], to)
}

// CheckTransitions returns an error naming the first transition the table does not allow.
func CheckTransitions(trs []types.StateTransition) error {
	for _, tr := range trs {
		if !CanTransition(tr.From, tr.To) {
			return fmt.Errorf("invalid engine state transition from %s to %s at t=%g", tr.From, tr.To, tr.Time)
		}
	}
	return nil
}

// IsRunning reports whether the engine has caught and not begun stopping.
func IsRunning(s types.EngineState) bool {
	return s == types.EngineUnstable || s == types.EngineStable
}
