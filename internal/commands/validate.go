package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/enginehealth/internal/profile"
	"github.com/dwsmith1983/enginehealth/internal/provider"
)

// NewValidateCmd creates the validate command.
func NewValidateCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Resolve every stored profile and report inheritance and threshold problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			store, stop, err := openStore(ctx, &cfg.Store, logger)
			if err != nil {
				return err
			}
			defer stop()

			return runValidate(ctx, cmd.OutOrStdout(), store, profile.NewResolver(store, logger), strict)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "treat threshold and rule issues as failures")
	return cmd
}

// validateSummary counts the outcome of a validate run.
type validateSummary struct {
	ok, warned, failed int
}

func runValidate(ctx context.Context, w io.Writer, store provider.ProfileStore, resolver *profile.Resolver, strict bool) error {
	profiles, err := store.ListProfiles(ctx)
	if err != nil {
		return fmt.Errorf("listing profiles: %w", err)
	}
	if len(profiles) == 0 {
		_, _ = fmt.Fprintln(w, "No profiles found.")
		return nil
	}

	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	green := color.New(color.FgGreen)

	var sum validateSummary
	for _, p := range profiles {
		res, err := resolver.Resolve(ctx, p.ID)
		switch {
		case err != nil:
			sum.failed++
			_, _ = red.Fprintf(w, "  ✗ %s: %v\n", p.ID, err)
		case len(res.Issues) > 0:
			sum.warned++
			_, _ = yellow.Fprintf(w, "  ○ %s: %d issue(s)\n", p.ID, len(res.Issues))
			for _, is := range res.Issues {
				_, _ = fmt.Fprintf(w, "      %s %s: %s\n", is.Kind, is.Subject, is.Message)
			}
		default:
			sum.ok++
			_, _ = green.Fprintf(w, "  ✓ %s (%d rules, chain %s)\n", p.ID, len(res.Rules), joinChain(res.InheritanceChain))
		}
	}

	_, _ = fmt.Fprintf(w, "\n%d ok, %d with issues, %d failed\n", sum.ok, sum.warned, sum.failed)
	if sum.failed > 0 || (strict && sum.warned > 0) {
		return fmt.Errorf("%d profile(s) failed validation", sum.failed+boolInt(strict)*sum.warned)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
