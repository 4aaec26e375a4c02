package alert

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/dwsmith1983/enginehealth/pkg/types"
)

// ConsoleSink writes alerts to the terminal with color.
type ConsoleSink struct {
	out io.Writer
}

// NewConsoleSink creates a console sink writing to color.Output.
func NewConsoleSink() *ConsoleSink {
	return &ConsoleSink{out: color.Output}
}

// NewConsoleSinkTo creates a console sink writing to w.
func NewConsoleSinkTo(w io.Writer) *ConsoleSink {
	return &ConsoleSink{out: w}
}

// Name returns the sink identifier.
func (s *ConsoleSink) Name() string { return "console" }

// Send writes one line with a color-coded severity prefix.
func (s *ConsoleSink) Send(_ context.Context, a types.AlertEvent) error {
	var prefix string
	switch a.Severity {
	case types.SeverityCritical:
		prefix = color.RedString("[CRIT]")
	case types.SeverityWarning:
		prefix = color.YellowString("[WARN]")
	default:
		prefix = color.CyanString("[INFO]")
	}

	msg := a.Message
	if msg == "" {
		msg = Format(a, types.Rule{})
	}
	_, err := fmt.Fprintf(s.out, "%s [%s] %s\n", prefix, a.RuleID, msg)
	return err
}
