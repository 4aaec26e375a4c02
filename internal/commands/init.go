package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const redisStartTimeout = 60 * time.Second

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	var withRedis bool

	cmd := &cobra.Command{
		Use:   "init [project-dir]",
		Short: "Initialize a new enginehealth project",
		Long:  "Creates a config file, a starter profile hierarchy and a recordings directory. Optionally starts a local Valkey container for the redis store.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd.OutOrStdout(), args[0], withRedis)
		},
	}

	cmd.Flags().BoolVar(&withRedis, "with-redis", false, "start a Valkey container and configure the redis store")
	return cmd
}

func runInit(w io.Writer, dir string, withRedis bool) error {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	_, _ = bold.Fprintf(w, "Initializing enginehealth project: %s\n", dir)

	for _, sub := range []string{"profiles", "recordings"} {
		path := filepath.Join(dir, sub)
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", path, err)
		}
	}

	cfg := fileStoreConfig
	if withRedis {
		cfg = redisStoreConfig
	}
	if err := os.WriteFile(filepath.Join(dir, "enginehealth.yaml"), []byte(cfg), 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	for name, content := range starterProfiles {
		if err := os.WriteFile(filepath.Join(dir, "profiles", name), []byte(content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}
	_, _ = green.Fprintln(w, "  ✓ Project scaffolded")

	if withRedis {
		if err := startRedis(); err != nil {
			_, _ = yellow.Fprintf(w, "  ⚠ Valkey setup skipped: %v\n", err)
			_, _ = yellow.Fprintln(w, "    Run manually: docker run -d --name enginehealth-valkey -p 6379:6379 valkey/valkey:8")
		} else {
			_, _ = green.Fprintln(w, "  ✓ Valkey container started")
		}
	}

	_, _ = fmt.Fprintln(w)
	_, _ = bold.Fprintln(w, "Next steps:")
	_, _ = fmt.Fprintf(w, "  cd %s\n", dir)
	_, _ = fmt.Fprintln(w, "  enginehealth validate")
	_, _ = fmt.Fprintln(w, "  enginehealth resolve bench-engine")
	_, _ = fmt.Fprintln(w, "  enginehealth analyze --profile bench-engine recordings/*.csv")
	return nil
}

func startRedis() error {
	if _, err := exec.LookPath("docker"); err != nil {
		return fmt.Errorf("docker not found in PATH")
	}

	if exec.Command("docker", "inspect", "enginehealth-valkey").Run() == nil {
		if err := exec.Command("docker", "start", "enginehealth-valkey").Run(); err != nil {
			return fmt.Errorf("starting existing container: %w", err)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisStartTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "docker", "run", "-d",
		"--name", "enginehealth-valkey",
		"-p", "6379:6379",
		"valkey/valkey:8",
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

const fileStoreConfig = `store:
  type: file
  dirs:
    - ./profiles
cache:
  ttl: 5m
stats:
  stalenessSec: 10
alerts:
  - type: console
`

const redisStoreConfig = `store:
  type: redis
  redis:
    addr: localhost:6379
    keyPrefix: "enginehealth:"
cache:
  ttl: 5m
alerts:
  - type: console
`

var starterProfiles = map[string]string{
	"global-defaults.yaml": `id: global-defaults
name: Global defaults
version: 1
thresholds:
  oilPressure:
    warning:
      min: 20
    critical:
      min: 10
  coolantTemp:
    warning:
      max: 105
    critical:
      max: 110
rules:
  - id: low-oil-pressure
    name: Low oil pressure
    severity: critical
    conditions:
      - param: OILP
        operator: "<"
        value: 10
    requireWhen:
      - param: EngineStable
        operator: "=="
        value: 1
    triggerPersistenceSec: 2
    clearPersistenceSec: 1
  - id: high-coolant
    name: High coolant temperature
    severity: warning
    conditions:
      - param: ECT
        operator: ">"
        value: 105
    triggerPersistenceSec: 5
`,
	"bench-engine.yaml": `id: bench-engine
parentId: global-defaults
name: Bench engine
version: 1
thresholds:
  engineState:
    runningRpm: 450
`,
}
