package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/enginehealth/internal/condition"
	"github.com/dwsmith1983/enginehealth/pkg/types"
)

type point struct {
	t      float64
	x      float64
	g      float64
	supp   bool
	values map[string]float64
}

func xRule() types.Rule {
	return types.Rule{
		ID:         "x-high",
		Name:       "X high",
		Severity:   types.SeverityWarning,
		Conditions: []types.Condition{{Param: "x", Operator: types.OpGreater, Value: 0}},
	}
}

func run(rule types.Rule, pts []point) []Event {
	var (
		st  State
		out []Event
	)
	for _, p := range pts {
		values := p.values
		if values == nil {
			values = map[string]float64{"x": p.x, "g": p.g}
		}
		in := Input{
			Input:      condition.Input{Sample: types.Sample{Time: p.t, Values: values}},
			Suppressed: p.supp,
		}
		var evs []Event
		st, evs = Step(rule, st, in)
		out = append(out, evs...)
	}
	return out
}

func truthy(times []float64, on func(t float64) bool) []point {
	pts := make([]point, len(times))
	for i, t := range times {
		pts[i] = point{t: t, g: 1}
		if on(t) {
			pts[i].x = 1
		}
	}
	return pts
}

func TestStep_OnsetIsTrueSincePlusPersistence(t *testing.T) {
	var times []float64
	for k := 0; k <= 36; k++ {
		times = append(times, 10+0.3*float64(k))
	}
	rule := xRule()
	rule.TriggerPersistenceSec = 2

	events := run(rule, truthy(times, func(t float64) bool { return t <= 20 }))
	require.Len(t, events, 2)
	assert.Equal(t, Event{Kind: EventFire, Time: 12.0}, events[0])
	assert.Equal(t, EventClear, events[1].Kind)
	assert.InDelta(t, 20.2, events[1].Time, 1e-9)
}

func TestStep_BlipDoesNotClear(t *testing.T) {
	rule := xRule()
	rule.ClearPersistenceSec = 1

	pts := []point{
		{t: 4}, {t: 5, x: 1}, {t: 5.5}, {t: 6, x: 1}, {t: 7, x: 1},
		{t: 8}, {t: 8.5}, {t: 9}, {t: 9.5},
	}
	events := run(rule, pts)
	assert.Equal(t, []Event{
		{Kind: EventFire, Time: 5},
		{Kind: EventClear, Time: 8},
	}, events)
}

func TestStep_BlipRestartsTriggerPersistence(t *testing.T) {
	rule := xRule()
	rule.TriggerPersistenceSec = 2
	rule.ClearPersistenceSec = 1

	pts := []point{{t: 5, x: 1}, {t: 5.5}, {t: 6, x: 1}, {t: 7, x: 1}, {t: 8, x: 1}}
	assert.Equal(t, []Event{{Kind: EventFire, Time: 8}}, run(rule, pts))
}

func TestStep_Gating(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*types.Rule)
		pts    []point
		want   []Event
	}{
		{
			name: "require when resets persistence",
			modify: func(r *types.Rule) {
				r.RequireWhen = []types.Condition{{Param: "g", Operator: types.OpEqual, Value: 1}}
			},
			pts:  []point{{t: 0, x: 1, g: 1}, {t: 0.5, x: 1, g: 0}, {t: 1, x: 1, g: 1}, {t: 2, x: 1, g: 1}},
			want: []Event{{Kind: EventFire, Time: 2}},
		},
		{
			name: "ignore when blocks trigger",
			modify: func(r *types.Rule) {
				r.IgnoreWhen = []types.Condition{{Param: "g", Operator: types.OpGreater, Value: 0}}
			},
			pts: []point{{t: 0, x: 1, g: 1}, {t: 1, x: 1, g: 1}, {t: 2, x: 1, g: 1}},
		},
		{
			name:   "suppression counts as false for clearing",
			modify: func(r *types.Rule) { r.TriggerPersistenceSec = 0 },
			pts:    []point{{t: 0, x: 1}, {t: 1, x: 1, supp: true}, {t: 2, x: 1}},
			want:   []Event{{Kind: EventFire, Time: 0}, {Kind: EventClear, Time: 1}, {Kind: EventFire, Time: 2}},
		},
		{
			name: "require when on missing channel is closed",
			modify: func(r *types.Rule) {
				r.RequireWhen = []types.Condition{{Param: "g", Operator: types.OpEqual, Value: 1}}
			},
			pts: []point{{t: 0, values: map[string]float64{"x": 1}}, {t: 5, values: map[string]float64{"x": 1}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := xRule()
			rule.TriggerPersistenceSec = 1
			tt.modify(&rule)
			assert.Equal(t, tt.want, run(rule, tt.pts))
		})
	}
}

func TestStep_GatesIgnoreAlertValidity(t *testing.T) {
	maskGate := func(ch string, _ float64) bool { return ch != "g" }
	tests := []struct {
		name   string
		modify func(*types.Rule)
		g      float64
		want   []Event
	}{
		{
			name: "ignore when on masked channel suppresses",
			modify: func(r *types.Rule) {
				r.IgnoreWhen = []types.Condition{{Param: "g", Operator: types.OpLess, Value: 400}}
			},
			g: 0,
		},
		{
			name: "require when on masked channel opens",
			modify: func(r *types.Rule) {
				r.RequireWhen = []types.Condition{{Param: "g", Operator: types.OpGreater, Value: 400}}
			},
			g:    1500,
			want: []Event{{Kind: EventFire, Time: 0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := xRule()
			tt.modify(&rule)
			var (
				st  State
				out []Event
			)
			for _, ts := range []float64{0, 1, 2} {
				in := Input{Input: condition.Input{
					Sample: types.Sample{Time: ts, Values: map[string]float64{"x": 1, "g": tt.g}},
					State:  types.EngineOff,
					Grace:  true,
					Valid:  maskGate,
				}}
				var evs []Event
				st, evs = Step(rule, st, in)
				out = append(out, evs...)
			}
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestStep_WindowMode(t *testing.T) {
	window := 10.0
	rule := xRule()
	rule.WindowSec = &window
	rule.TriggerPersistenceSec = 3

	var times []float64
	for k := 0; k <= 12; k++ {
		times = append(times, float64(k))
	}
	alternating := truthy(times, func(t float64) bool { return int(t)%2 == 0 && t < 7 })

	assert.Equal(t, []Event{
		{Kind: EventFire, Time: 5},
		{Kind: EventClear, Time: 7},
	}, run(rule, alternating))

	continuous := rule
	continuous.WindowSec = nil
	assert.Empty(t, run(continuous, alternating), "1s bursts never satisfy continuous persistence")
}

func TestStep_WindowExpiresOldTrueTime(t *testing.T) {
	window := 2.0
	rule := xRule()
	rule.WindowSec = &window
	rule.TriggerPersistenceSec = 1.5

	pts := []point{{t: 0, x: 1}, {t: 1}, {t: 2}, {t: 3, x: 1}, {t: 4}, {t: 5}, {t: 6, x: 1}, {t: 7}}
	assert.Empty(t, run(rule, pts))
}

func TestStep_WindowGatedTimeCountsFalse(t *testing.T) {
	window := 10.0
	rule := xRule()
	rule.WindowSec = &window
	rule.TriggerPersistenceSec = 2.5

	pts := []point{{t: 0, x: 1}, {t: 1, x: 1, supp: true}, {t: 2, x: 1, supp: true}, {t: 3, x: 1}, {t: 4}}
	assert.Empty(t, run(rule, pts))

	pts[1].supp = false
	assert.Equal(t, []Event{{Kind: EventFire, Time: 4}}, run(rule, pts))
}

func TestStep_OpenAtEnd(t *testing.T) {
	rule := xRule()
	rule.TriggerPersistenceSec = 1
	rule.ClearPersistenceSec = 5

	events := run(rule, []point{{t: 0, x: 1}, {t: 1, x: 1}, {t: 2}, {t: 3}})
	assert.Equal(t, []Event{{Kind: EventFire, Time: 1}}, events)
}

func TestStep_DoesNotMutateInputState(t *testing.T) {
	window := 5.0
	rule := xRule()
	rule.WindowSec = &window
	rule.TriggerPersistenceSec = 10

	in := func(t, x float64) Input {
		return Input{Input: condition.Input{Sample: types.Sample{Time: t, Values: map[string]float64{"x": x}}}}
	}
	st, _ := Step(rule, State{}, in(0, 1))
	st, _ = Step(rule, st, in(1, 1))

	a, _ := Step(rule, st, in(2, 0))
	b, _ := Step(rule, st, in(2, 1))
	require.Len(t, a.window, 3)
	require.Len(t, b.window, 3)
	assert.False(t, a.window[2].active)
	assert.True(t, b.window[2].active)
}
