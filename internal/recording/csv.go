// Package recording reads engine telemetry recordings into sample sequences.
package recording

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dwsmith1983/enginehealth/pkg/types"
)

// ErrNoTimeColumn is returned when the header has no Time column.
var ErrNoTimeColumn = errors.New("recording has no Time column")

// Recording is one decoded telemetry file.
type Recording struct {
	Name        string
	Channels    []string
	Samples     []types.Sample
	SkippedRows int
}

// ReadFile opens and decodes a CSV recording. The recording is named after
// the file's base name.
func ReadFile(path string) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening recording: %w", err)
	}
	defer func() { _ = f.Close() }()

	rec, err := Read(f, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return rec, nil
}

// Read decodes a CSV recording whose header names a Time column and any
// number of channels. Empty or non-numeric cells are left out of the sample;
// rows whose Time cell does not parse are skipped and counted.
func Read(r io.Reader, name string) (*Recording, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoTimeColumn
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	cols := make([]string, len(header))
	timeCol := -1
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
		cols[i] = h
		if timeCol < 0 && strings.EqualFold(h, types.TimeChannel) {
			timeCol = i
		}
	}
	if timeCol < 0 {
		return nil, ErrNoTimeColumn
	}

	rec := &Recording{Name: name}
	for i, c := range cols {
		if i != timeCol && c != "" {
			rec.Channels = append(rec.Channels, c)
		}
	}

	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if timeCol >= len(row) {
			rec.SkippedRows++
			continue
		}
		t, ok := parseCell(row[timeCol])
		if !ok {
			rec.SkippedRows++
			continue
		}

		s := types.Sample{Time: t, Values: make(map[string]float64, len(cols)-1)}
		for i, cell := range row {
			if i == timeCol || i >= len(cols) || cols[i] == "" {
				continue
			}
			if v, ok := parseCell(cell); ok {
				s.Values[cols[i]] = v
			}
		}
		rec.Samples = append(rec.Samples, s)
	}
	return rec, nil
}

func parseCell(cell string) (float64, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
