// Package alert formats alert episodes and delivers them to configured sinks.
package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dwsmith1983/enginehealth/pkg/types"
)

// Sink is an alert destination.
type Sink interface {
	Send(ctx context.Context, alert types.AlertEvent) error
	Name() string
}

// Dispatcher routes alerts to configured sinks.
type Dispatcher struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher from alert configs.
func NewDispatcher(configs []types.AlertConfig, logger *slog.Logger) (*Dispatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{logger: logger}
	for _, cfg := range configs {
		sink, err := newSink(cfg)
		if err != nil {
			return nil, fmt.Errorf("creating %s sink: %w", cfg.Type, err)
		}
		d.sinks = append(d.sinks, sink)
	}
	return d, nil
}

// NewDispatcherWithSinks creates a dispatcher over already-built sinks.
func NewDispatcherWithSinks(logger *slog.Logger, sinks ...Sink) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{sinks: sinks, logger: logger}
}

// Sinks returns the configured sink names.
func (d *Dispatcher) Sinks() []string {
	names := make([]string, len(d.sinks))
	for i, s := range d.sinks {
		names[i] = s.Name()
	}
	return names
}

// Dispatch sends every alert to every sink. A failing sink does not stop
// delivery to the others; all failures are returned joined.
func (d *Dispatcher) Dispatch(ctx context.Context, alerts ...types.AlertEvent) error {
	var errs []error
	for _, a := range alerts {
		for _, sink := range d.sinks {
			if err := sink.Send(ctx, a); err != nil {
				d.logger.Error("alert delivery failed", "sink", sink.Name(), "alert", a.ID, "error", err)
				errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

func newSink(cfg types.AlertConfig) (Sink, error) {
	switch cfg.Type {
	case types.AlertConsole:
		return NewConsoleSink(), nil
	case types.AlertWebhook:
		if cfg.URL == "" {
			return nil, fmt.Errorf("webhook URL required")
		}
		return NewWebhookSink(cfg.URL), nil
	case types.AlertFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("file path required")
		}
		return NewFileSink(cfg.Path)
	case types.AlertEventBridge:
		return NewEventBridgeSink(cfg.BusName, cfg.Region)
	case types.AlertSQS:
		return NewSQSSink(cfg.QueueURL, cfg.Region)
	default:
		return nil, fmt.Errorf("unknown alert type %q", cfg.Type)
	}
}
