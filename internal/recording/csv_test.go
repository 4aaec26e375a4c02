package recording

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/enginehealth/pkg/types"
)

func TestRead(t *testing.T) {
	data := "\uFEFFTime,rpm,OILP,Mode\n" +
		"0,0,,idle\n" +
		"0.5,850,42.5,run\n" +
		"bad,900,40,run\n" +
		"1.0,NaN,41\n"

	rec, err := Read(strings.NewReader(data), "run-1.csv")
	require.NoError(t, err)

	assert.Equal(t, "run-1.csv", rec.Name)
	assert.Equal(t, []string{"rpm", "OILP", "Mode"}, rec.Channels)
	assert.Equal(t, 1, rec.SkippedRows)
	require.Len(t, rec.Samples, 3)

	assert.Equal(t, types.Sample{Time: 0, Values: map[string]float64{"rpm": 0}}, rec.Samples[0])
	assert.Equal(t, types.Sample{Time: 0.5, Values: map[string]float64{"rpm": 850, "OILP": 42.5}}, rec.Samples[1])
	assert.Equal(t, types.Sample{Time: 1, Values: map[string]float64{"OILP": 41}}, rec.Samples[2])
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"no time column", "rpm,OILP\n1,2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.data), "x.csv")
			assert.ErrorIs(t, err, ErrNoTimeColumn)
		})
	}
}

func TestRead_LowercaseTime(t *testing.T) {
	rec, err := Read(strings.NewReader("time,Vbat\n3,12.6\n"), "x.csv")
	require.NoError(t, err)
	require.Len(t, rec.Samples, 1)
	assert.Equal(t, 3.0, rec.Samples[0].Time)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trip.csv")
	require.NoError(t, os.WriteFile(path, []byte("Time,Vbat\n0,12.1\n1,12.2\n"), 0o600))

	rec, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "trip.csv", rec.Name)
	assert.Len(t, rec.Samples, 2)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
