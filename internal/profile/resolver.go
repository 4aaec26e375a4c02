// Package profile resolves inheritable health-monitoring profiles into
// self-contained configurations.
package profile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dwsmith1983/enginehealth/pkg/types"
)

// Getter fetches a single profile definition. Implementations return an error
// matching types.ErrProfileNotFound for unknown ids.
type Getter interface {
	GetProfile(ctx context.Context, id string) (*types.Profile, error)
}

// Resolver walks parent chains and merges profiles root first.
type Resolver struct {
	store  Getter
	logger *slog.Logger
}

// NewResolver creates a resolver reading from store.
func NewResolver(store Getter, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, logger: logger}
}

// Chain returns the profiles from id up to its root, leaf first. It fails
// with a *types.CircularInheritanceError when an id repeats, and with a
// *types.ProfileNotFoundError when any id in the chain is missing.
func (r *Resolver) Chain(ctx context.Context, id string) ([]*types.Profile, error) {
	var (
		chain []*types.Profile
		order []string
	)
	seen := make(map[string]int)
	next := id
	for next != "" {
		if at, ok := seen[next]; ok {
			cycle := append(append([]string{}, order[at:]...), next)
			return nil, &types.CircularInheritanceError{Cycle: cycle}
		}
		seen[next] = len(order)
		order = append(order, next)

		p, err := r.store.GetProfile(ctx, next)
		if err != nil {
			if errors.Is(err, types.ErrProfileNotFound) {
				return nil, &types.ProfileNotFoundError{ID: next}
			}
			return nil, fmt.Errorf("fetching profile %q: %w", next, err)
		}
		if p == nil {
			return nil, &types.ProfileNotFoundError{ID: next}
		}
		chain = append(chain, p)
		next = p.ParentID
	}
	return chain, nil
}

// Resolve produces the fully merged configuration for id. Thresholds are
// deep-merged root to leaf; rules are replaced whole by id, keeping the
// position of their first appearance. Structurally invalid rules and
// threshold sanity failures are dropped or flagged on Issues, never fatal.
func (r *Resolver) Resolve(ctx context.Context, id string) (*types.ResolvedProfile, error) {
	chain, err := r.Chain(ctx, id)
	if err != nil {
		return nil, err
	}

	res := &types.ResolvedProfile{
		ProfileID:        id,
		Name:             chain[0].Name,
		Thresholds:       types.Tree{},
		InheritanceChain: make([]string, 0, len(chain)),
	}

	byID := make(map[string]int)
	var rules []types.Rule
	for i := len(chain) - 1; i >= 0; i-- {
		p := chain[i]
		res.InheritanceChain = append(res.InheritanceChain, p.ID)
		res.Thresholds = types.Merge(res.Thresholds, p.Thresholds)
		for _, rule := range p.Rules {
			if at, ok := byID[rule.ID]; ok {
				rules[at] = cloneRule(rule)
				continue
			}
			byID[rule.ID] = len(rules)
			rules = append(rules, cloneRule(rule))
		}
	}
	if res.Name == "" {
		res.Name = id
	}

	for _, rule := range rules {
		if err := ValidateRule(rule); err != nil {
			r.logger.Warn("skipping malformed rule", "profile", id, "rule", rule.ID, "error", err)
			res.Issues = append(res.Issues, types.IssueFromError(err))
			continue
		}
		res.Rules = append(res.Rules, rule)
	}
	for _, err := range ValidateThresholds(res.Thresholds) {
		r.logger.Warn("threshold sanity check failed", "profile", id, "error", err)
		res.Issues = append(res.Issues, types.IssueFromError(err))
	}

	res.Hash, err = contentHash(res)
	if err != nil {
		return nil, fmt.Errorf("hashing resolved profile %q: %w", id, err)
	}
	return res, nil
}

// contentHash is a sha256 over the canonical JSON of the resolved content.
// encoding/json sorts map keys, so equal content hashes equally.
func contentHash(res *types.ResolvedProfile) (string, error) {
	data, err := json.Marshal(struct {
		Thresholds types.Tree   `json:"thresholds"`
		Rules      []types.Rule `json:"rules"`
		Chain      []string     `json:"chain"`
	}{res.Thresholds, res.Rules, res.InheritanceChain})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func cloneRule(r types.Rule) types.Rule {
	out := r
	out.Conditions = append([]types.Condition(nil), r.Conditions...)
	out.RequireWhen = append([]types.Condition(nil), r.RequireWhen...)
	out.IgnoreWhen = append([]types.Condition(nil), r.IgnoreWhen...)
	if r.WindowSec != nil {
		w := *r.WindowSec
		out.WindowSec = &w
	}
	if r.TipMapDelta != nil {
		cfg := *r.TipMapDelta
		out.TipMapDelta = &cfg
	}
	return out
}
