package rules

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/oklog/ulid/v2"

	"github.com/dwsmith1983/enginehealth/internal/condition"
	"github.com/dwsmith1983/enginehealth/internal/validity"
	"github.com/dwsmith1983/enginehealth/pkg/types"
)

// Result is the outcome of evaluating a rule set over one recording.
type Result struct {
	Alerts    []types.AlertEvent
	Issues    []types.Issue
	Evaluated int
	Skipped   int
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDGenerator replaces the ULID generator used for alert ids.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// Engine folds every rule's state machine over a sample stream.
type Engine struct {
	logger *slog.Logger
	newID  func() string
}

// NewEngine creates a rule engine.
func NewEngine(logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		logger: logger,
		newID:  func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type ruleRun struct {
	rule  types.Rule
	state State
}

// Evaluate runs rules over samples. cls must come from classifying the same
// samples. A rule referencing a parameter that is neither a predicate nor a
// channel of the recording is skipped with a MalformedRule issue; the other
// rules still run. Alerts are ordered by onset time.
func (e *Engine) Evaluate(rules []types.Rule, samples []types.Sample, cls validity.Classification, masker *validity.Masker) Result {
	var res Result

	present := make(map[string]bool)
	for _, ch := range types.Channels(samples) {
		present[ch] = true
	}

	runs := make([]*ruleRun, 0, len(rules))
	for _, rule := range rules {
		if err := checkRule(rule, present); err != nil {
			e.logger.Warn("skipping rule", "rule", rule.ID, "error", err)
			res.Issues = append(res.Issues, types.IssueFromError(err))
			res.Skipped++
			continue
		}
		runs = append(runs, &ruleRun{rule: rule})
	}
	res.Evaluated = len(runs)
	if len(runs) == 0 || len(samples) == 0 {
		return res
	}

	var (
		lastCrank, lastStop since
		lastTime            float64
		transition          int
	)
	for i, s := range samples {
		for transition < len(cls.Transitions) && cls.Transitions[transition].Index <= i {
			tr := cls.Transitions[transition]
			if tr.From == types.EngineOff && tr.To == types.EngineCranking {
				lastCrank = since{at: tr.Time, set: true}
			}
			if tr.To == types.EngineStopping {
				lastStop = since{at: tr.Time, set: true}
			}
			transition++
		}
		if i > 0 && s.Time <= lastTime {
			continue
		}
		lastTime = s.Time

		state, grace := stateAt(cls, i)
		in := condition.Input{
			Sample: s,
			State:  state,
			Grace:  grace,
			Valid: func(ch string, v float64) bool {
				return masker.AlertValid(ch, v, state, grace)
			},
		}

		for _, run := range runs {
			suppressed := (lastCrank.set && run.rule.StartDelaySec > 0 && !lastCrank.held(s.Time, run.rule.StartDelaySec)) ||
				(lastStop.set && run.rule.StopDelaySec > 0 && !lastStop.held(s.Time, run.rule.StopDelaySec))

			next, events := Step(run.rule, run.state, Input{Input: in, Suppressed: suppressed})
			run.state = next
			for _, ev := range events {
				res.Alerts = e.apply(run, ev, res.Alerts)
			}
		}
	}

	sort.SliceStable(res.Alerts, func(i, j int) bool {
		return res.Alerts[i].OnsetTime < res.Alerts[j].OnsetTime
	})
	return res
}

func (e *Engine) apply(run *ruleRun, ev Event, alerts []types.AlertEvent) []types.AlertEvent {
	switch ev.Kind {
	case EventFire:
		alerts = append(alerts, types.AlertEvent{
			ID:        e.newID(),
			RuleID:    run.rule.ID,
			RuleName:  run.rule.Name,
			Category:  category(run.rule),
			Severity:  run.rule.Severity,
			OnsetTime: ev.Time,
		})
		e.logger.Debug("alert onset", "rule", run.rule.ID, "onset", ev.Time)
	case EventClear:
		for i := len(alerts) - 1; i >= 0; i-- {
			if alerts[i].RuleID == run.rule.ID && alerts[i].Open() {
				t := ev.Time
				alerts[i].ClearTime = &t
				break
			}
		}
		e.logger.Debug("alert cleared", "rule", run.rule.ID, "clear", ev.Time)
	}
	return alerts
}

func stateAt(cls validity.Classification, i int) (types.EngineState, bool) {
	var (
		st    types.EngineState
		grace bool
	)
	if i < len(cls.States) {
		st = cls.States[i]
	}
	if i < len(cls.Grace) {
		grace = cls.Grace[i]
	}
	return st, grace
}

// checkRule rejects rules the engine cannot evaluate against this recording.
func checkRule(rule types.Rule, present map[string]bool) error {
	switch rule.Kind() {
	case types.RuleGeneric:
		if len(rule.Conditions) == 0 {
			return &types.MalformedRuleError{RuleID: rule.ID, Reason: "no conditions"}
		}
	case types.RuleTipMapDelta:
		if rule.TipMapDelta == nil {
			return &types.MalformedRuleError{RuleID: rule.ID, Reason: "tip_map_delta rule has no config"}
		}
	default:
		return &types.MalformedRuleError{RuleID: rule.ID, Reason: fmt.Sprintf("unknown rule type %q", rule.Type)}
	}
	if rule.WindowSec != nil && *rule.WindowSec <= 0 {
		return &types.MalformedRuleError{RuleID: rule.ID, Reason: "windowSec must be positive"}
	}
	for _, p := range rule.Params() {
		if !condition.IsPredicate(p) && !present[p] {
			return &types.MalformedRuleError{RuleID: rule.ID, Reason: fmt.Sprintf("unknown parameter %q", p)}
		}
	}
	return nil
}

// category is the rule category, falling back to the first channel it reads.
func category(rule types.Rule) string {
	if rule.Category != "" {
		return rule.Category
	}
	for _, p := range rule.Params() {
		if !condition.IsPredicate(p) {
			return p
		}
	}
	return ""
}
