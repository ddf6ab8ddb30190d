// Package tables holds the read-only calculation tables shared by the
// numeric engines. Everything here is initialised at package load and never
// mutated afterwards, so concurrent readers need no locking.
//
// The action fatigue table is the single source of truth for fatigue rates;
// the meditation path reads its "meditate" row rather than carrying its own.
package tables

import "math"

// ActionType identifies an activity that costs or restores fatigue.
type ActionType string

const (
	ActionMeditate  ActionType = "meditate"
	ActionRest      ActionType = "rest"
	ActionSleep     ActionType = "sleep"
	ActionWalk      ActionType = "walk"
	ActionRun       ActionType = "run"
	ActionTravel    ActionType = "travel"
	ActionCombat    ActionType = "combat"
	ActionTechnique ActionType = "technique"
	ActionTrain     ActionType = "train"
	ActionStudy     ActionType = "study"
)

// Axis says which fatigue meter gates an action.
type Axis int

const (
	AxisPhysical Axis = iota + 1
	AxisMental
	AxisRest
)

// ActionRate is the per-minute fatigue change of an action. Positive values
// accumulate fatigue, negative values recover it.
type ActionRate struct {
	Physical float64
	Mental   float64
	Axis     Axis
}

var actionRates = map[ActionType]ActionRate{
	ActionMeditate:  {Physical: -0.2, Mental: 0.15, Axis: AxisMental},
	ActionRest:      {Physical: -0.5, Mental: -0.3, Axis: AxisRest},
	ActionSleep:     {Physical: -1.0, Mental: -0.8, Axis: AxisRest},
	ActionWalk:      {Physical: 0.1, Mental: 0, Axis: AxisPhysical},
	ActionRun:       {Physical: 0.5, Mental: 0.05, Axis: AxisPhysical},
	ActionTravel:    {Physical: 0.2, Mental: 0.02, Axis: AxisPhysical},
	ActionCombat:    {Physical: 1.0, Mental: 0.3, Axis: AxisPhysical},
	ActionTechnique: {Physical: 0.2, Mental: 0.6, Axis: AxisMental},
	ActionTrain:     {Physical: 0.8, Mental: 0.1, Axis: AxisPhysical},
	ActionStudy:     {Physical: 0.05, Mental: 0.5, Axis: AxisMental},
}

// Rate returns the fatigue rate for an action.
func Rate(a ActionType) (ActionRate, bool) {
	r, ok := actionRates[a]
	return r, ok
}

// Actions returns every known action type.
func Actions() []ActionType {
	return []ActionType{
		ActionMeditate, ActionRest, ActionSleep, ActionWalk, ActionRun,
		ActionTravel, ActionCombat, ActionTechnique, ActionTrain, ActionStudy,
	}
}

// AccumulationMultiplier scales fatigue buildup; higher cultivation tires
// more slowly.
func AccumulationMultiplier(level int) float64 {
	if level < 1 {
		level = 1
	}
	return 1 / (1 + 0.1*float64(level-1))
}

// RecoveryMultiplier scales fatigue recovery; higher cultivation recovers
// faster.
func RecoveryMultiplier(level int) float64 {
	if level < 1 {
		level = 1
	}
	return 1 + 0.15*float64(level-1)
}

// ScaledDelta returns the signed fatigue change of one axis over minutes at
// the given cultivation level.
func ScaledDelta(ratePerMinute float64, minutes float64, level int) float64 {
	d := ratePerMinute * minutes
	if d > 0 {
		return d * AccumulationMultiplier(level)
	}
	return d * RecoveryMultiplier(level)
}

// Fatigue thresholds.
const (
	HighFatigue     = 70.0
	CriticalFatigue = 90.0
)

// Passive background recovery per minute at level 1.
const (
	PassivePhysicalRecovery = 0.05
	PassiveMentalRecovery   = 0.03
)

// CapacityGrowth returns the multiplier applied to core capacity when a
// breakthrough lands on (level, subLevel). Crossing into a new major level
// grows the core far more than a sub-level step.
func CapacityGrowth(newLevel, newSubLevel int) float64 {
	if newSubLevel == 0 {
		return 1.5 + 0.1*float64(newLevel)
	}
	return 1.05 + 0.01*float64(newLevel)
}

// TerrainDanger is the base danger of each terrain before distance is added.
var TerrainDanger = map[string]float64{
	"sect":     0,
	"city":     1,
	"plains":   2,
	"forest":   3,
	"desert":   4,
	"swamp":    4,
	"mountain": 5,
	"ruins":    6,
	"cave":     6,
}

// Round2 rounds to two decimals for presentation payloads.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
