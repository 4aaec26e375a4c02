package validity

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dwsmith1983/enginehealth/pkg/types"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from  types.EngineState
		to    types.EngineState
		valid bool
	}{
		{types.EngineOff, types.EngineCranking, true},
		{types.EngineOff, types.EngineStable, false},
		{types.EngineCranking, types.EngineUnstable, true},
		{types.EngineCranking, types.EngineStopping, true},
		{types.EngineCranking, types.EngineStable, false},
		{types.EngineUnstable, types.EngineStable, true},
		{types.EngineUnstable, types.EngineStopping, true},
		{types.EngineStable, types.EngineStopping, true},
		{types.EngineStable, types.EngineUnstable, false},
		{types.EngineStopping, types.EngineOff, true},
		{types.EngineStopping, types.EngineUnstable, true},
		{types.EngineStopping, types.EngineCranking, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.valid, CanTransition(tt.from, tt.to))
		})
	}
}

func TestIsRunning(t *testing.T) {
	assert.True(t, IsRunning(types.EngineUnstable))
	assert.True(t, IsRunning(types.EngineStable))
	assert.False(t, IsRunning(types.EngineOff))
	assert.False(t, IsRunning(types.EngineCranking))
	assert.False(t, IsRunning(types.EngineStopping))
}

func TestClassify_OnlyAllowedTransitions(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	levels := []float64{0, 300, 600, 1200}
	for run := 0; run < 50; run++ {
		var samples []types.Sample
		rpm, vsw := 0.0, 0.0
		for i := 0; i < 400; i++ {
			if rng.Intn(10) == 0 {
				rpm = levels[rng.Intn(len(levels))]
			}
			if rng.Intn(40) == 0 {
				vsw = 12 - vsw
			}
			samples = append(samples, engineSample(float64(i)*0.25, rpm, vsw))
		}
		c := NewClassifier(types.ClassifierConfig{}, nil).Classify(samples)
		assert.NoError(t, CheckTransitions(c.Transitions), "run %d", run)
	}
}

func TestCheckTransitions(t *testing.T) {
	err := CheckTransitions([]types.StateTransition{
		{Time: 1, From: types.EngineOff, To: types.EngineCranking},
		{Time: 2, From: types.EngineCranking, To: types.EngineStable},
	})
	assert.EqualError(t, err, "invalid engine state transition from cranking to stable at t=2")
}
