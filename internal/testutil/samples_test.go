package testutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineStart(t *testing.T) {
	s := EngineStart(3, 0.5, 1500, map[string]float64{"OILP": 40})
	require.Len(t, s, 3)
	assert.Equal(t, 0.0, s[0].Values["RPM"])
	assert.Equal(t, 1500.0, s[2].Values["RPM"])
	assert.Equal(t, 1.0, s[2].Time)
	assert.Equal(t, 40.0, s[1].Values["OILP"])
	assert.Equal(t, KeyOnVoltage, s[1].Values["Vsw"])
}

func TestSeries(t *testing.T) {
	s := Series([]float64{0, 1}, map[string][]float64{"ECT": {80, math.NaN()}, "gear": {1}})
	require.Len(t, s, 2)
	assert.Equal(t, 80.0, s[0].Values["ECT"])
	_, ok := s[1].Values["ECT"]
	assert.False(t, ok)
	_, ok = s[1].Values["gear"]
	assert.False(t, ok)
}
