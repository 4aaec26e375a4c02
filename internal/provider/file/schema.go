package file

import (
	"fmt"

	"github.com/dwsmith1983/enginehealth/pkg/types"
)

// ValidateProfile checks that a profile definition is well-formed enough to
// store. Inheritance cycles and rule-level problems are left to the
// resolver, which reports them.
func ValidateProfile(p *types.Profile) error {
	if p.ID == "" {
		return fmt.Errorf("profile id is required")
	}

	seen := make(map[string]bool)
	for _, r := range p.Rules {
		if r.ID == "" {
			return fmt.Errorf("rule id is required")
		}
		if seen[r.ID] {
			return fmt.Errorf("duplicate rule id %q", r.ID)
		}
		seen[r.ID] = true
	}
	return nil
}
