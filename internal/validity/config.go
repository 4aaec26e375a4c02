package validity

import (
	"github.com/dwsmith1983/enginehealth/pkg/types"
)

// Classifier defaults.
const (
	DefaultVswChannel        = "Vsw"
	DefaultOnVoltage         = 6.0
	DefaultRunningRPM        = 500.0
	DefaultStableRPM         = 800.0
	DefaultDebounceSamples   = 3
	DefaultStableHoldoffSec  = 2.0
	DefaultStopHoldoffSec    = 2.0
	DefaultKeyOffDebounceSec = 0.5
	DefaultStartupGraceSec   = 3.0
)

// rpmCandidates are tried in order when no RPM channel is configured.
var rpmCandidates = []string{"rpm", "RPM"}

// engineStateKey is the threshold branch holding per-profile classifier overrides.
const engineStateKey = "engineState"

// WithDefaults fills zero-valued fields of cfg.
func WithDefaults(cfg types.ClassifierConfig) types.ClassifierConfig {
	if cfg.VswChannel == "" {
		cfg.VswChannel = DefaultVswChannel
	}
	if cfg.OnVoltage <= 0 {
		cfg.OnVoltage = DefaultOnVoltage
	}
	if cfg.RunningRPM <= 0 {
		cfg.RunningRPM = DefaultRunningRPM
	}
	if cfg.StableRPM <= 0 {
		cfg.StableRPM = DefaultStableRPM
	}
	if cfg.DebounceSamples <= 0 {
		cfg.DebounceSamples = DefaultDebounceSamples
	}
	if cfg.StableHoldoffSec <= 0 {
		cfg.StableHoldoffSec = DefaultStableHoldoffSec
	}
	if cfg.StopHoldoffSec <= 0 {
		cfg.StopHoldoffSec = DefaultStopHoldoffSec
	}
	if cfg.KeyOffDebounceSec <= 0 {
		cfg.KeyOffDebounceSec = DefaultKeyOffDebounceSec
	}
	if cfg.StartupGraceSec <= 0 {
		cfg.StartupGraceSec = DefaultStartupGraceSec
	}
	return cfg
}

// ConfigFromThresholds overlays the engineState branch of a resolved
// threshold tree onto base.
func ConfigFromThresholds(base types.ClassifierConfig, tree types.Tree) types.ClassifierConfig {
	branch := tree.Sub(engineStateKey)
	if branch == nil {
		return base
	}
	cfg := base
	if s, ok := branch.Text("rpmChannel"); ok && s != "" {
		cfg.RPMChannel = s
	}
	if s, ok := branch.Text("vswChannel"); ok && s != "" {
		cfg.VswChannel = s
	}
	floats := map[string]*float64{
		"onVoltage":         &cfg.OnVoltage,
		"runningRpm":        &cfg.RunningRPM,
		"stableRpm":         &cfg.StableRPM,
		"stableHoldoffSec":  &cfg.StableHoldoffSec,
		"stopHoldoffSec":    &cfg.StopHoldoffSec,
		"keyOffDebounceSec": &cfg.KeyOffDebounceSec,
		"startupGraceSec":   &cfg.StartupGraceSec,
	}
	for key, dst := range floats {
		if v, ok := branch.Float(key); ok {
			*dst = v
		}
	}
	if v, ok := branch.Float("debounceSamples"); ok {
		cfg.DebounceSamples = int(v)
	}
	return cfg
}
