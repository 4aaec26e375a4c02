package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/enginehealth/internal/alert"
	"github.com/dwsmith1983/enginehealth/internal/analysis"
	"github.com/dwsmith1983/enginehealth/internal/config"
	"github.com/dwsmith1983/enginehealth/internal/metrics"
	"github.com/dwsmith1983/enginehealth/internal/profile"
	"github.com/dwsmith1983/enginehealth/internal/telemetry"
	"github.com/dwsmith1983/enginehealth/pkg/types"
)

// NewAnalyzeCmd creates the analyze command.
func NewAnalyzeCmd() *cobra.Command {
	var (
		profileID string
		asJSON    bool
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "analyze --profile [id] [recording.csv...]",
		Short: "Analyze recordings against a resolved profile",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			tel, err := telemetry.Setup(ctx, cfg.Telemetry, logger)
			if err != nil {
				return fmt.Errorf("starting telemetry: %w", err)
			}
			defer func() { _ = tel.Shutdown(context.Background()) }()

			rec, err := metrics.New(tel.Meter(metrics.MeterName))
			if err != nil {
				return err
			}

			store, stop, err := openStore(ctx, &cfg.Store, logger)
			if err != nil {
				return err
			}
			defer stop()

			dispatcher, err := alert.NewDispatcher(cfg.Alerts, logger)
			if err != nil {
				return fmt.Errorf("creating alert dispatcher: %w", err)
			}

			cache := profile.NewCache(profile.NewResolver(store, logger), config.CacheTTL(cfg),
				profile.WithLookupObserver(rec.CacheLookup))
			a := analysis.New(cache, logger,
				analysis.WithDispatcher(dispatcher),
				analysis.WithMetrics(rec),
				analysis.WithTracer(tel.Tracer(metrics.MeterName)),
				analysis.WithClassifierConfig(cfg.Classifier),
				analysis.WithStatsConfig(cfg.Stats),
				analysis.WithConcurrency(cfg.Concurrency),
			)

			reports, err := a.AnalyzeFiles(ctx, profileID, args)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(reports)
			}
			for _, r := range reports {
				printReport(cmd.OutOrStdout(), r)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&profileID, "profile", "p", "", "profile id to analyze against")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print reports as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall analysis timeout")
	_ = cmd.MarkFlagRequired("profile")
	return cmd
}

func printReport(w io.Writer, r *types.Report) {
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	green := color.New(color.FgGreen)

	_, _ = bold.Fprintf(w, "\nRecording: %s\n", r.Recording)
	_, _ = fmt.Fprintf(w, "Profile:   %s (%d samples, run %s)\n", joinChain(r.InheritanceChain), r.Samples, r.RunID)

	if len(r.StateDwell) > 0 {
		_, _ = fmt.Fprintln(w, "\nEngine state:")
		for _, d := range r.StateDwell {
			_, _ = fmt.Fprintf(w, "  %-9s %8.1fs %5.1f%%\n", d.Value, d.Seconds, d.Percent)
		}
	}

	if len(r.Alerts) == 0 {
		_, _ = green.Fprintln(w, "\nNo alerts ✓")
	} else {
		_, _ = fmt.Fprintf(w, "\nAlerts (%d):\n", len(r.Alerts))
		for _, a := range r.Alerts {
			c := yellow
			if a.Severity == types.SeverityCritical {
				c = red
			}
			_, _ = c.Fprintf(w, "  ✗ %s\n", a.Message)
		}
	}

	if len(r.Issues) > 0 {
		_, _ = fmt.Fprintf(w, "\nIssues (%d):\n", len(r.Issues))
		for _, is := range r.Issues {
			_, _ = yellow.Fprintf(w, "  ○ %s: %s\n", is.Kind, is.Message)
		}
	}

	if len(r.Channels) > 0 {
		_, _ = fmt.Fprintln(w, "\nChannels:")
		for _, c := range r.Channels {
			_, _ = fmt.Fprintf(w, "  %-10s n=%-6d min=%-10.3g max=%-10.3g mean=%.3g\n", c.Channel, c.Count, c.Min, c.Max, c.Mean)
		}
	}
}

func joinChain(chain []string) string {
	out := ""
	for i := len(chain) - 1; i >= 0; i-- {
		if out != "" {
			out += " ← "
		}
		out += chain[i]
	}
	return out
}
