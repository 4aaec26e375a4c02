package alert

import (
	"fmt"

	"github.com/dwsmith1983/enginehealth/pkg/types"
)

// Format renders an alert episode for operators, e.g.
// "Critical: Low oil pressure — OILP below 10 psi, 12.0s→20.5s".
// An alert without a clear time is shown as ongoing.
func Format(a types.AlertEvent, rule types.Rule) string {
	name := rule.Name
	if name == "" {
		name = a.RuleName
	}
	end := "ongoing"
	if a.ClearTime != nil {
		end = fmt.Sprintf("%.1fs", *a.ClearTime)
	}
	if rule.Description == "" {
		return fmt.Sprintf("%s: %s, %.1fs→%s", a.Severity.Title(), name, a.OnsetTime, end)
	}
	return fmt.Sprintf("%s: %s — %s, %.1fs→%s", a.Severity.Title(), name, rule.Description, a.OnsetTime, end)
}

// FormatAll fills Message on every alert using the matching rule by id.
// The input slice is not modified.
func FormatAll(alerts []types.AlertEvent, rules []types.Rule) []types.AlertEvent {
	byID := make(map[string]types.Rule, len(rules))
	for _, r := range rules {
		byID[r.ID] = r
	}
	out := make([]types.AlertEvent, len(alerts))
	for i, a := range alerts {
		a.Message = Format(a, byID[a.RuleID])
		out[i] = a
	}
	return out
}
