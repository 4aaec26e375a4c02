package commands

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/enginehealth/internal/baseline"
)

// NewBaselineCmd creates the baseline command. It does not need a project
// config; only the global log level applies.
func NewBaselineCmd() *cobra.Command {
	var (
		out         string
		concurrency int
		minPadding  map[string]string
	)

	cmd := &cobra.Command{
		Use:   "baseline [recordings-dir]",
		Short: "Generate p05/p95 channel baselines from quality-tagged recordings",
		Long: `Walks recordings-dir for *_metadata.json files. Every recording tagged
quality "good" contributes to the baseline of its parent directory's
group and size and its application.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, _ := cmd.Flags().GetString(flagLogLevel)
			logger, err := newLogger(level, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			tol, err := toleranceWith(minPadding)
			if err != nil {
				return err
			}
			gen := baseline.NewGenerator(logger,
				baseline.WithTolerance(tol),
				baseline.WithConcurrency(concurrency),
			)
			b, err := gen.Generate(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("generating baseline: %w", err)
			}
			if err := baseline.WriteFile(out, b); err != nil {
				return err
			}
			summarizeBaseline(cmd, b, out, logger)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "baseline.json", "output file")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "recordings read in parallel (0 uses the default)")
	cmd.Flags().StringToStringVar(&minPadding, "min-padding", nil, "per-channel minimum padding, e.g. ECT=5,OILP=3")
	return cmd
}

func toleranceWith(minPadding map[string]string) (baseline.Tolerance, error) {
	tol := baseline.DefaultTolerance()
	for ch, raw := range minPadding {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			return tol, fmt.Errorf("invalid --min-padding value for %s: %q", ch, raw)
		}
		tol.MinPadding[ch] = v
	}
	return tol, nil
}

func summarizeBaseline(cmd *cobra.Command, b *baseline.Baseline, out string, logger *slog.Logger) {
	w := cmd.OutOrStdout()
	groups := make([]string, 0, len(b.Groups))
	for g := range b.Groups {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	keys := 0
	for _, g := range groups {
		for size, apps := range b.Groups[g] {
			for app, channels := range apps {
				keys++
				logger.Debug("baseline key", "group", g, "size", size, "application", app, "channels", len(channels))
			}
		}
	}
	_, _ = color.New(color.FgGreen).Fprintf(w, "✓ Wrote %s: %d groups, %d group/size/application keys\n", out, len(groups), keys)
}
