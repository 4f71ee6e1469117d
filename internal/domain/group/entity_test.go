package group

import (
	"testing"

	"github.com/classmark/classmark-hub/internal/domain/attendance"
	"github.com/classmark/classmark-hub/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestNewToleranceMinutes(t *testing.T) {
	for _, ok := range []int{0, 1, 10, 59, 60} {
		tol, err := NewToleranceMinutes(ok)
		require.NoError(t, err, ok)
		assert.Equal(t, ok, tol.Int())
	}
	for _, bad := range []int{-1, 61, 1000} {
		_, err := NewToleranceMinutes(bad)
		assert.ErrorIs(t, err, shared.ErrInvalidToleranceRange, bad)
		assert.ErrorIs(t, err, shared.ErrValueOutOfRange, bad)
	}
}

func TestResolveStrategy(t *testing.T) {
	kind, err := ResolveStrategy("")
	require.NoError(t, err)
	assert.Equal(t, attendance.StrategyLateWindow, kind)

	kind, err = ResolveStrategy("  STANDARD_PRESENT ")
	require.NoError(t, err)
	assert.Equal(t, attendance.StrategyPresent, kind)

	kind, err = ResolveStrategy("standard_absent_only")
	require.NoError(t, err)
	assert.Equal(t, attendance.StrategyAbsentOnly, kind)

	_, err = ResolveStrategy("lenient")
	assert.ErrorIs(t, err, shared.ErrUnrecognizedStrategyKind)
}

func TestGroup_SettingsDefaults(t *testing.T) {
	g, err := NewGroup(NewGroupParams{ID: "g1", Name: "Algebra I", SubjectCode: "mat-101"})
	require.NoError(t, err)
	assert.Nil(t, g.Tolerance)
	assert.Equal(t, shared.SubjectCode("MAT-101"), g.SubjectCode)

	s, err := g.Settings()
	require.NoError(t, err)
	assert.Equal(t, DefaultTolerance, s.Tolerance)
	assert.Equal(t, attendance.StrategyLateWindow, s.Strategy)
}

func TestGroup_ZeroToleranceIsNotUnset(t *testing.T) {
	g, err := NewGroup(NewGroupParams{ID: "g1", Name: "Lab", Tolerance: intPtr(0)})
	require.NoError(t, err)

	s, err := g.Settings()
	require.NoError(t, err)
	assert.Equal(t, ToleranceMinutes(0), s.Tolerance)
}

func TestGroup_StoredUnknownLabelFails(t *testing.T) {
	g := &Group{ID: "g1", Name: "Old", StrategyLabel: "legacy_mode"}
	_, err := g.Settings()
	assert.ErrorIs(t, err, shared.ErrUnrecognizedStrategyKind)
}

func TestNewGroup_Validation(t *testing.T) {
	_, err := NewGroup(NewGroupParams{ID: "g1", Name: "  "})
	assert.ErrorIs(t, err, shared.ErrInvalidGroupName)

	_, err = NewGroup(NewGroupParams{ID: "g1", Name: "Chem", Tolerance: intPtr(90)})
	assert.ErrorIs(t, err, shared.ErrInvalidToleranceRange)

	_, err = NewGroup(NewGroupParams{ID: "g1", Name: "Chem", Strategy: "whatever"})
	assert.ErrorIs(t, err, shared.ErrUnrecognizedStrategyKind)
}

func TestGroup_Configure(t *testing.T) {
	g, err := NewGroup(NewGroupParams{ID: "g1", Name: "Physics"})
	require.NoError(t, err)

	settings, err := NewSettings(intPtr(15), "standard_absent_only")
	require.NoError(t, err)
	g.Configure(settings)

	require.NotNil(t, g.Tolerance)
	assert.Equal(t, 15, *g.Tolerance)
	assert.Equal(t, "standard_absent_only", g.StrategyLabel)

	resolved, err := g.Settings()
	require.NoError(t, err)
	assert.Equal(t, settings, resolved)
	assert.Equal(t, attendance.StrategyAbsentOnly, resolved.Classifier().Kind())
}
