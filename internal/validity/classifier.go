// Package validity classifies engine operating state per sample and decides
// which channel samples count for statistics and for alerting.
package validity

import (
	"fmt"
	"log/slog"

	"github.com/dwsmith1983/enginehealth/pkg/types"
)

// mark is a started-at timestamp that may be unset.
type mark struct {
	at  float64
	set bool
}

func (m *mark) start(t float64) {
	if !m.set {
		m.at, m.set = t, true
	}
}

func (m *mark) reset() { *m = mark{} }

func (m mark) held(t, d float64) bool {
	return m.set && t-m.at >= d
}

// State is the classifier's complete memory between samples.
type State struct {
	Phase      types.EngineState
	LastTime   float64
	Started    bool
	KeyOn      bool
	AboveCount int
	GraceUntil float64

	stableSince mark
	lowSince    mark
	keyOffSince mark
}

// InGrace reports whether the state is inside the post-start grace window at t.
func (s State) InGrace(t float64) bool {
	return IsRunning(s.Phase) && t < s.GraceUntil
}

// Step advances the classifier by one sample and returns the new state plus
// the transition it made, if any. Samples whose time does not advance, or that
// lack an RPM or Vsw value, leave the state untouched. cfg must already have
// defaults applied and an RPM channel chosen.
func Step(cfg types.ClassifierConfig, st State, s types.Sample) (State, *types.StateTransition) {
	if st.Started && s.Time <= st.LastTime {
		return st, nil
	}
	rpm, rpmOK := s.Value(cfg.RPMChannel)
	vsw, vswOK := s.Value(cfg.VswChannel)
	st.Started = true
	st.LastTime = s.Time
	if !rpmOK || !vswOK {
		return st, nil
	}

	t := s.Time
	keyOn := vsw > cfg.OnVoltage
	rising := keyOn && !st.KeyOn
	st.KeyOn = keyOn
	from := st.Phase

	switch st.Phase {
	case types.EngineOff:
		if rising || (keyOn && rpm > cfg.RunningRPM) {
			st.Phase = types.EngineCranking
			st.AboveCount = 0
			if rpm > cfg.RunningRPM {
				st.AboveCount = 1
			}
		}

	case types.EngineCranking:
		if !keyOn {
			st.Phase = types.EngineStopping
			st.keyOffSince.reset()
			st.keyOffSince.start(t)
			break
		}
		if rpm > cfg.RunningRPM {
			st.AboveCount++
		} else {
			st.AboveCount = 0
		}
		if st.AboveCount >= cfg.DebounceSamples {
			st.Phase = types.EngineUnstable
			st.GraceUntil = t + cfg.StartupGraceSec
			st.stableSince.reset()
			st.lowSince.reset()
			if rpm > cfg.StableRPM {
				st.stableSince.start(t)
			}
		}

	case types.EngineUnstable, types.EngineStable:
		if !keyOn {
			st.Phase = types.EngineStopping
			st.keyOffSince.reset()
			st.keyOffSince.start(t)
			break
		}
		if rpm < cfg.RunningRPM {
			st.lowSince.start(t)
			if st.lowSince.held(t, cfg.StopHoldoffSec) {
				st.Phase = types.EngineStopping
				st.keyOffSince.reset()
				st.keyOffSince.start(t)
				break
			}
		} else {
			st.lowSince.reset()
		}
		if st.Phase == types.EngineUnstable {
			if rpm > cfg.StableRPM {
				st.stableSince.start(t)
				if st.stableSince.held(t, cfg.StableHoldoffSec) {
					st.Phase = types.EngineStable
				}
			} else {
				st.stableSince.reset()
			}
		}

	case types.EngineStopping:
		if !keyOn || rpm < cfg.RunningRPM {
			st.keyOffSince.start(t)
			if st.keyOffSince.held(t, cfg.KeyOffDebounceSec) {
				st.Phase = types.EngineOff
				st.AboveCount = 0
			}
		} else {
			st.Phase = types.EngineUnstable
			st.keyOffSince.reset()
			st.stableSince.reset()
			st.lowSince.reset()
		}
	}

	if st.Phase == from {
		return st, nil
	}
	return st, &types.StateTransition{Time: t, From: from, To: st.Phase}
}

// Classification is the per-sample engine-state sequence of one recording.
type Classification struct {
	States      []types.EngineState
	Grace       []bool
	Transitions []types.StateTransition
	Issues      []types.Issue
}

// CrankStarts returns the times of every Off→Cranking transition.
func (c *Classification) CrankStarts() []float64 {
	var out []float64
	for _, tr := range c.Transitions {
		if tr.From == types.EngineOff && tr.To == types.EngineCranking {
			out = append(out, tr.Time)
		}
	}
	return out
}

// StopStarts returns the times of every transition into Stopping.
func (c *Classification) StopStarts() []float64 {
	var out []float64
	for _, tr := range c.Transitions {
		if tr.To == types.EngineStopping {
			out = append(out, tr.Time)
		}
	}
	return out
}

// Classifier runs Step across a whole recording.
type Classifier struct {
	cfg    types.ClassifierConfig
	logger *slog.Logger
}

// NewClassifier creates a classifier; zero config fields take the defaults.
func NewClassifier(cfg types.ClassifierConfig, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{cfg: WithDefaults(cfg), logger: logger}
}

// Config returns the effective configuration.
func (c *Classifier) Config() types.ClassifierConfig { return c.cfg }

// Classify assigns an engine state to every sample. It never fails: when the
// RPM or Vsw channel is absent from the whole recording every sample is Off
// and a MissingRequiredChannel issue is reported.
func (c *Classifier) Classify(samples []types.Sample) Classification {
	out := Classification{
		States: make([]types.EngineState, len(samples)),
		Grace:  make([]bool, len(samples)),
	}
	if len(samples) == 0 {
		return out
	}

	cfg := c.cfg
	if cfg.RPMChannel == "" {
		cfg.RPMChannel = pickChannel(samples, rpmCandidates)
	}
	for _, ch := range []string{cfg.RPMChannel, cfg.VswChannel} {
		if ch != "" && hasChannel(samples, ch) {
			continue
		}
		name := ch
		if name == "" {
			name = rpmCandidates[0]
		}
		err := &types.MissingRequiredChannelError{Channel: name, Impact: "engine state defaults to off"}
		c.logger.Warn("signal quality: engine state unavailable", "channel", name, "error", err)
		out.Issues = append(out.Issues, types.IssueFromError(err))
	}
	if len(out.Issues) > 0 {
		return out
	}

	var (
		st      State
		skipped int
	)
	for i, s := range samples {
		if st.Started && s.Time <= st.LastTime {
			skipped++
		}
		next, tr := Step(cfg, st, s)
		st = next
		out.States[i] = st.Phase
		out.Grace[i] = st.InGrace(s.Time)
		if tr != nil {
			tr.Index = i
			out.Transitions = append(out.Transitions, *tr)
		}
	}
	if skipped > 0 {
		c.logger.Warn("non-increasing timestamps skipped", "count", skipped)
		out.Issues = append(out.Issues, types.Issue{
			Kind:    types.IssueTimestampOrder,
			Subject: types.TimeChannel,
			Message: fmt.Sprintf("%d samples with duplicate or decreasing timestamps held the previous engine state", skipped),
		})
	}
	return out
}

func hasChannel(samples []types.Sample, ch string) bool {
	for _, s := range samples {
		if _, ok := s.Value(ch); ok {
			return true
		}
	}
	return false
}

func pickChannel(samples []types.Sample, candidates []string) string {
	for _, ch := range candidates {
		if hasChannel(samples, ch) {
			return ch
		}
	}
	return ""
}
