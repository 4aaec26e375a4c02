package profile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dwsmith1983/enginehealth/pkg/types"
)

var validate = validator.New()

// ValidateRule checks a rule's structure and variant payload. The returned
// error, if any, is a *types.MalformedRuleError.
func ValidateRule(r types.Rule) error {
	if err := validate.Struct(r); err != nil {
		return &types.MalformedRuleError{RuleID: r.ID, Reason: describe(err)}
	}

	switch r.Kind() {
	case types.RuleGeneric:
		if r.TipMapDelta != nil {
			return &types.MalformedRuleError{RuleID: r.ID, Reason: "config is only valid for tip_map_delta rules"}
		}
		if len(r.Conditions) == 0 {
			return &types.MalformedRuleError{RuleID: r.ID, Reason: "generic rule has no conditions"}
		}
	case types.RuleTipMapDelta:
		cfg := r.TipMapDelta
		if cfg == nil {
			return &types.MalformedRuleError{RuleID: r.ID, Reason: "tip_map_delta rule has no config"}
		}
		if err := validate.Struct(cfg); err != nil {
			return &types.MalformedRuleError{RuleID: r.ID, Reason: describe(err)}
		}
		if cfg.HighThreshold == 0 && cfg.LowThreshold == 0 {
			return &types.MalformedRuleError{RuleID: r.ID, Reason: "tip_map_delta needs a high or low threshold"}
		}
		if g := cfg.LoadGate; g.Param != "" && !g.Operator.Valid() {
			return &types.MalformedRuleError{RuleID: r.ID, Reason: fmt.Sprintf("load gate operator %q", g.Operator)}
		}
	default:
		return &types.MalformedRuleError{RuleID: r.ID, Reason: fmt.Sprintf("unknown rule type %q", r.Type)}
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// ValidateThresholds runs the sanity checks on every channel branch carrying
// warning/critical bands: min <= max inside a band, critical.min below
// warning.min and critical.max above warning.max. Each failure is a
// *types.InvalidThresholdValueError.
func ValidateThresholds(tree types.Tree) []error {
	var errs []error
	for _, ch := range tree.Keys() {
		branch := tree.Sub(ch)
		if branch == nil {
			continue
		}
		band := func(level string) (lo, hi float64, hasLo, hasHi bool) {
			lo, hasLo = branch.Float(level, "min")
			hi, hasHi = branch.Float(level, "max")
			return
		}
		wMin, wMax, hasWMin, hasWMax := band("warning")
		cMin, cMax, hasCMin, hasCMax := band("critical")

		if hasWMin && hasWMax && wMin > wMax {
			errs = append(errs, &types.InvalidThresholdValueError{
				Path:   ch + ".warning",
				Reason: fmt.Sprintf("min %g exceeds max %g", wMin, wMax),
			})
		}
		if hasCMin && hasCMax && cMin > cMax {
			errs = append(errs, &types.InvalidThresholdValueError{
				Path:   ch + ".critical",
				Reason: fmt.Sprintf("min %g exceeds max %g", cMin, cMax),
			})
		}
		if hasCMin && hasWMin && cMin >= wMin {
			errs = append(errs, &types.InvalidThresholdValueError{
				Path:   ch + ".critical.min",
				Reason: fmt.Sprintf("%g is not below warning.min %g", cMin, wMin),
			})
		}
		if hasCMax && hasWMax && cMax <= wMax {
			errs = append(errs, &types.InvalidThresholdValueError{
				Path:   ch + ".critical.max",
				Reason: fmt.Sprintf("%g is not above warning.max %g", cMax, wMax),
			})
		}
	}
	return errs
}
