package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dwsmith1983/enginehealth/pkg/types"
)

// alertLine is one JSON line of the alert log.
type alertLine struct {
	LoggedAt time.Time `json:"loggedAt"`
	Status   string    `json:"status"`
	Duration *float64  `json:"durationSec,omitempty"`
	types.AlertEvent
}

func newAlertLine(a types.AlertEvent, now time.Time) alertLine {
	line := alertLine{LoggedAt: now.UTC(), Status: "open", AlertEvent: a}
	if a.ClearTime != nil {
		d := *a.ClearTime - a.OnsetTime
		line.Status = "cleared"
		line.Duration = &d
	}
	return line
}

// FileSink appends alerts to a JSON-lines log, one line per alert tagged with
// its open/cleared status and, once cleared, how long the fault lasted.
type FileSink struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// NewFileSink creates a file sink. The log is created up front so a bad path
// fails at startup rather than on the first alert.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating alert log %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("creating alert log %s: %w", path, err)
	}
	return &FileSink{path: path, now: time.Now}, nil
}

// Name returns the sink identifier.
func (s *FileSink) Name() string { return "file" }

// Send appends one line for a.
func (s *FileSink) Send(_ context.Context, a types.AlertEvent) error {
	data, err := json.Marshal(newAlertLine(a, s.now()))
	if err != nil {
		return fmt.Errorf("encoding alert %s: %w", a.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening alert log: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing alert %s: %w", a.ID, err)
	}
	return f.Close()
}
