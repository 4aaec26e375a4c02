package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/enginehealth/internal/commands"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "enginehealth",
		Short: "Engine telemetry health analysis against inheritable threshold profiles",
		Long: `enginehealth classifies engine state from RPM and ignition voltage, evaluates
persistence-gated anomaly rules from a resolved profile hierarchy and
summarizes channel statistics over the samples each channel's validity
policy admits.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	commands.AddGlobalFlags(root)

	root.AddCommand(
		commands.NewInitCmd(),
		commands.NewResolveCmd(),
		commands.NewAnalyzeCmd(),
		commands.NewBaselineCmd(),
		commands.NewValidateCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
