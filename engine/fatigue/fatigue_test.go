package fatigue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathoo/qicore/engine/tables"
	"github.com/nathoo/qicore/types"
)

func char(level int, physical, mental float64) types.Character {
	return types.Character{CultivationLevel: level, Fatigue: physical, MentalFatigue: mental}
}

func TestApplyAction_Accumulates(t *testing.T) {
	res := ApplyAction(char(1, 10, 10), tables.ActionWalk, 60, 0)
	require.True(t, res.CanPerform)
	assert.InDelta(t, 16, res.NewPhysical, 1e-9)
	assert.InDelta(t, 10, res.NewMental, 1e-9)
	assert.Empty(t, res.Warnings)
}

func TestApplyAction_LevelScaling(t *testing.T) {
	low := ApplyAction(char(1, 10, 10), tables.ActionCombat, 10, 0)
	high := ApplyAction(char(5, 10, 10), tables.ActionCombat, 10, 0)
	assert.Less(t, high.DeltaPhysical, low.DeltaPhysical)

	lowRest := ApplyAction(char(1, 50, 50), tables.ActionRest, 10, 0)
	highRest := ApplyAction(char(5, 50, 50), tables.ActionRest, 10, 0)
	assert.Less(t, highRest.DeltaPhysical, lowRest.DeltaPhysical, "higher level recovers more")
}

func TestApplyAction_QiSpentAddsMental(t *testing.T) {
	res := ApplyAction(char(1, 0, 0), tables.ActionWalk, 0, 100)
	assert.InDelta(t, 2, res.NewMental, 1e-9)
}

func TestApplyAction_Clamps(t *testing.T) {
	res := ApplyAction(char(1, 85, 0), tables.ActionCombat, 60, 0)
	assert.Equal(t, 100.0, res.NewPhysical)

	res = ApplyAction(char(1, 5, 5), tables.ActionSleep, 600, 0)
	assert.Equal(t, 0.0, res.NewPhysical)
	assert.Equal(t, 0.0, res.NewMental)
}

func TestApplyAction_Gating(t *testing.T) {
	res := ApplyAction(char(1, 95, 0), tables.ActionRun, 10, 0)
	assert.False(t, res.CanPerform)
	assert.Equal(t, 95.0, res.NewPhysical)
	assert.NotEmpty(t, res.Reason)

	res = ApplyAction(char(1, 95, 0), tables.ActionStudy, 10, 0)
	assert.True(t, res.CanPerform, "mental action not gated by physical fatigue")

	res = ApplyAction(char(1, 0, 92), tables.ActionMeditate, 10, 0)
	assert.False(t, res.CanPerform)

	res = ApplyAction(char(1, 100, 100), tables.ActionRest, 10, 0)
	assert.True(t, res.CanPerform, "rest is always permitted")
	assert.Less(t, res.NewPhysical, 100.0)
}

func TestApplyAction_Unknown(t *testing.T) {
	res := ApplyAction(char(1, 0, 0), "juggle", 10, 0)
	assert.False(t, res.CanPerform)
}

func TestApplyAction_Warnings(t *testing.T) {
	res := ApplyAction(char(1, 65, 89), tables.ActionWalk, 60, 100)
	require.Len(t, res.Warnings, 2)
	assert.Equal(t, "physical", res.Warnings[0].Axis)
	assert.Equal(t, SeverityHigh, res.Warnings[0].Severity)
	assert.Equal(t, SeverityCritical, res.Warnings[1].Severity)
}

func TestPassiveRecovery(t *testing.T) {
	r := PassiveRecovery(char(1, 50, 50), 100)
	assert.InDelta(t, 5, r.Physical, 1e-9)
	assert.InDelta(t, 3, r.Mental, 1e-9)

	r = PassiveRecovery(char(1, 1, 0), 100)
	assert.InDelta(t, 1, r.Physical, 1e-9)
	assert.Zero(t, r.Mental)
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		action   tables.ActionType
		recovery tables.ActionType
		level    int
		minutes  float64
	}{
		{tables.ActionWalk, tables.ActionRest, 1, 60},
		{tables.ActionCombat, tables.ActionSleep, 3, 20},
		{tables.ActionStudy, tables.ActionRest, 6, 45},
	}
	for _, tc := range cases {
		start := char(tc.level, 20, 20)
		gained := ApplyAction(start, tc.action, tc.minutes, 0)
		require.True(t, gained.CanPerform)

		after := start
		after.Fatigue, after.MentalFatigue = gained.NewPhysical, gained.NewMental
		minutes, ok := RecoveryMinutes(after, tc.recovery, gained.DeltaPhysical, gained.DeltaMental)
		require.True(t, ok)

		// Recover each axis separately so the longer one does not overshoot.
		rate, _ := tables.Rate(tc.recovery)
		pMin := gained.DeltaPhysical / (-rate.Physical * tables.RecoveryMultiplier(tc.level))
		mMin := gained.DeltaMental / (-rate.Mental * tables.RecoveryMultiplier(tc.level))
		assert.InDelta(t, minutes, max(pMin, mMin), 1e-9)

		p := ApplyAction(after, tc.recovery, pMin, 0)
		m := ApplyAction(after, tc.recovery, mMin, 0)
		assert.InDelta(t, start.Fatigue, p.NewPhysical, 1e-6, "%s physical", tc.action)
		assert.InDelta(t, start.MentalFatigue, m.NewMental, 1e-6, "%s mental", tc.action)
	}
}

func TestRecoveryMinutes_NonRecovering(t *testing.T) {
	_, ok := RecoveryMinutes(char(1, 50, 50), tables.ActionWalk, 10, 0)
	assert.False(t, ok)

	m, ok := RecoveryMinutes(char(1, 50, 50), tables.ActionRest, 0, 0)
	assert.True(t, ok)
	assert.Zero(t, m)
}

func TestWarnings(t *testing.T) {
	assert.Empty(t, Warnings(char(1, 10, 69.9)))

	ws := Warnings(char(1, 75, 95))
	require.Len(t, ws, 2)
	assert.Equal(t, Warning{Axis: "physical", Severity: SeverityHigh, Value: 75}, ws[0])
	assert.Equal(t, Warning{Axis: "mental", Severity: SeverityCritical, Value: 95}, ws[1])
}
