package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dwsmith1983/enginehealth/internal/profile"
	"github.com/dwsmith1983/enginehealth/pkg/types"
)

// NewResolveCmd creates the resolve command.
func NewResolveCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "resolve [profile-id]",
		Short: "Print a profile merged with all of its ancestors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			store, stop, err := openStore(ctx, &cfg.Store, logger)
			if err != nil {
				return err
			}
			defer stop()

			resolved, err := profile.NewResolver(store, logger).Resolve(ctx, args[0])
			if err != nil {
				return fmt.Errorf("resolving %q: %w", args[0], err)
			}
			return writeResolved(cmd.OutOrStdout(), resolved, format)
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", "json", "output format: json or yaml")
	return cmd
}

// resolvedDoc is the plain nested-map rendering of a resolved profile.
type resolvedDoc struct {
	ProfileID        string         `json:"profileId" yaml:"profileId"`
	Name             string         `json:"name" yaml:"name"`
	InheritanceChain []string       `json:"inheritanceChain" yaml:"inheritanceChain"`
	Hash             string         `json:"hash" yaml:"hash"`
	Thresholds       map[string]any `json:"thresholds" yaml:"thresholds"`
	Rules            []types.Rule   `json:"rules" yaml:"rules"`
	Issues           []types.Issue  `json:"issues,omitempty" yaml:"issues,omitempty"`
}

func writeResolved(w io.Writer, r *types.ResolvedProfile, format string) error {
	doc := resolvedDoc{
		ProfileID:        r.ProfileID,
		Name:             r.Name,
		InheritanceChain: r.InheritanceChain,
		Hash:             r.Hash,
		Thresholds:       r.Thresholds.ToMap(),
		Rules:            r.Rules,
		Issues:           r.Issues,
	}
	switch format {
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
