// Package providertest provides shared conformance tests for
// provider.ProfileStore implementations. Call RunAll from a test function to
// verify a store satisfies the full behavioral contract.
package providertest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/enginehealth/internal/provider"
	"github.com/dwsmith1983/enginehealth/pkg/types"
)

// RunAll runs the complete store conformance suite as subtests.
func RunAll(t *testing.T, store provider.ProfileStore) {
	t.Helper()

	t.Run("ProfileCRUD", func(t *testing.T) { TestProfileCRUD(t, store) })
	t.Run("NotFound", func(t *testing.T) { TestNotFound(t, store) })
	t.Run("RoundTrip", func(t *testing.T) { TestRoundTrip(t, store) })
	t.Run("ListOrder", func(t *testing.T) { TestListOrder(t, store) })
	t.Run("Ping", func(t *testing.T) { require.NoError(t, store.Ping(context.Background())) })
}

// SampleProfile returns a profile exercising nested thresholds and both rule variants.
func SampleProfile(id, parent string) types.Profile {
	window := 30.0
	return types.Profile{
		ID:       id,
		Name:     "Profile " + id,
		ParentID: parent,
		Version:  3,
		Thresholds: types.Tree{
			"oilPressure": types.Branch(types.Tree{
				"warning":  types.Branch(types.Tree{"min": types.Leaf(20.0)}),
				"critical": types.Branch(types.Tree{"min": types.Leaf(10.0)}),
				"validity": types.Branch(types.Tree{"stats": types.Leaf("ValidWhenRunning")}),
			}),
			"enabled": types.Leaf(true),
		},
		Rules: []types.Rule{
			{
				ID:                    "low-oil",
				Name:                  "Low oil pressure",
				Severity:              types.SeverityCritical,
				Conditions:            []types.Condition{{Param: "OILP", Operator: types.OpLess, Value: 10}},
				RequireWhen:           []types.Condition{{Param: "EngineRunning", Operator: types.OpEqual, Value: 1}},
				TriggerPersistenceSec: 2,
				ClearPersistenceSec:   1,
				WindowSec:             &window,
			},
			{
				ID:       "tip-map",
				Name:     "Throttle inlet delta",
				Severity: types.SeverityWarning,
				Type:     types.RuleTipMapDelta,
				TipMapDelta: &types.TipMapDeltaConfig{
					FullLoadMapPsi: 30,
					NoLoadMapPsi:   5,
					HighThreshold:  4,
					LoadGate: types.LoadGate{
						Condition:   types.Condition{Param: "eng_load", Operator: types.OpGreater, Value: 20},
						DebounceSec: 2,
					},
				},
			},
		},
	}
}

// TestProfileCRUD verifies put, get, list and delete.
func TestProfileCRUD(t *testing.T, store provider.ProfileStore) {
	ctx := context.Background()

	require.NoError(t, store.PutProfile(ctx, SampleProfile("ct-root", "")))
	require.NoError(t, store.PutProfile(ctx, SampleProfile("ct-child", "ct-root")))

	got, err := store.GetProfile(ctx, "ct-child")
	require.NoError(t, err)
	assert.Equal(t, "ct-child", got.ID)
	assert.Equal(t, "ct-root", got.ParentID)
	assert.Equal(t, 3, got.Version)

	list, err := store.ListProfiles(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(list), 2)

	updated := SampleProfile("ct-child", "ct-root")
	updated.Name = "renamed"
	require.NoError(t, store.PutProfile(ctx, updated))
	got, err = store.GetProfile(ctx, "ct-child")
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)

	require.NoError(t, store.DeleteProfile(ctx, "ct-child"))
	_, err = store.GetProfile(ctx, "ct-child")
	assert.ErrorIs(t, err, types.ErrProfileNotFound)

	require.NoError(t, store.DeleteProfile(ctx, "ct-child"), "deleting twice is not an error")
	require.NoError(t, store.DeleteProfile(ctx, "ct-root"))
}

// TestNotFound verifies unknown ids match types.ErrProfileNotFound.
func TestNotFound(t *testing.T, store provider.ProfileStore) {
	_, err := store.GetProfile(context.Background(), "ct-does-not-exist")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrProfileNotFound)
}

// TestRoundTrip verifies nested thresholds and rule payloads survive storage.
func TestRoundTrip(t *testing.T, store provider.ProfileStore) {
	ctx := context.Background()
	want := SampleProfile("ct-roundtrip", "")
	require.NoError(t, store.PutProfile(ctx, want))
	t.Cleanup(func() { _ = store.DeleteProfile(ctx, want.ID) })

	got, err := store.GetProfile(ctx, want.ID)
	require.NoError(t, err)

	v, ok := got.Thresholds.Float("oilPressure", "critical", "min")
	require.True(t, ok)
	assert.Equal(t, 10.0, v)
	s, ok := got.Thresholds.Text("oilPressure", "validity", "stats")
	require.True(t, ok)
	assert.Equal(t, "ValidWhenRunning", s)
	b, ok := got.Thresholds.Bool("enabled")
	require.True(t, ok)
	assert.True(t, b)

	assert.Equal(t, want.Rules, got.Rules)
}

// TestListOrder verifies ListProfiles returns profiles ordered by id.
func TestListOrder(t *testing.T, store provider.ProfileStore) {
	ctx := context.Background()
	for _, id := range []string{"ct-order-b", "ct-order-c", "ct-order-a"} {
		require.NoError(t, store.PutProfile(ctx, SampleProfile(id, "")))
		t.Cleanup(func() { _ = store.DeleteProfile(ctx, id) })
	}

	list, err := store.ListProfiles(ctx)
	require.NoError(t, err)

	var ids []string
	for _, p := range list {
		if strings.HasPrefix(p.ID, "ct-order-") {
			ids = append(ids, p.ID)
		}
	}
	assert.Equal(t, []string{"ct-order-a", "ct-order-b", "ct-order-c"}, ids)
}
