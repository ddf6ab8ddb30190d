// Package fatigue tracks physical and mental exhaustion. Rates come from the
// shared action table in engine/tables and scale with cultivation level.
package fatigue

import (
	"fmt"
	"math"

	"github.com/nathoo/qicore/engine/tables"
	"github.com/nathoo/qicore/types"
)

// QiMentalCost is the mental fatigue added per point of Qi spent, before
// level scaling.
const QiMentalCost = 0.02

// Severity grades a fatigue warning.
type Severity string

const (
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Warning flags one fatigue meter that has crossed a threshold.
type Warning struct {
	Axis     string   `json:"axis"`
	Severity Severity `json:"severity"`
	Value    float64  `json:"value"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s fatigue %s (%.0f)", w.Axis, w.Severity, w.Value)
}

// Result is the outcome of applying an action.
type Result struct {
	NewPhysical   float64
	NewMental     float64
	DeltaPhysical float64
	DeltaMental   float64
	Warnings      []Warning
	CanPerform    bool
	Reason        string
}

// Delta converts the result to a character delta.
func (r Result) Delta() types.CharacterDelta {
	return types.CharacterDelta{AddFatigue: r.DeltaPhysical, AddMentalFatigue: r.DeltaMental}
}

// ApplyAction computes fatigue after performing action for minutes while
// spending qiSpent Qi. An action gated by a meter at or above the critical
// threshold is refused and leaves fatigue unchanged; rest is always allowed.
func ApplyAction(ch types.Character, action tables.ActionType, minutes, qiSpent float64) Result {
	res := Result{NewPhysical: ch.Fatigue, NewMental: ch.MentalFatigue}
	rate, ok := tables.Rate(action)
	if !ok {
		res.Reason = fmt.Sprintf("unknown action %q", action)
		return res
	}
	if reason := blocked(ch, rate.Axis); reason != "" {
		res.Reason = reason
		res.Warnings = warnings(ch.Fatigue, ch.MentalFatigue)
		return res
	}
	if minutes < 0 {
		minutes = 0
	}
	if qiSpent < 0 {
		qiSpent = 0
	}

	dp := tables.ScaledDelta(rate.Physical, minutes, ch.CultivationLevel)
	dm := tables.ScaledDelta(rate.Mental, minutes, ch.CultivationLevel) +
		qiSpent*QiMentalCost*tables.AccumulationMultiplier(ch.CultivationLevel)

	res.CanPerform = true
	res.NewPhysical = clamp(ch.Fatigue + dp)
	res.NewMental = clamp(ch.MentalFatigue + dm)
	res.DeltaPhysical = res.NewPhysical - ch.Fatigue
	res.DeltaMental = res.NewMental - ch.MentalFatigue
	res.Warnings = warnings(res.NewPhysical, res.NewMental)
	return res
}

// CanPerform reports whether the character's current fatigue allows action.
func CanPerform(ch types.Character, action tables.ActionType) (bool, string) {
	rate, ok := tables.Rate(action)
	if !ok {
		return false, fmt.Sprintf("unknown action %q", action)
	}
	if reason := blocked(ch, rate.Axis); reason != "" {
		return false, reason
	}
	return true, ""
}

func blocked(ch types.Character, axis tables.Axis) string {
	switch axis {
	case tables.AxisPhysical:
		if ch.Fatigue >= tables.CriticalFatigue {
			return "too physically exhausted"
		}
	case tables.AxisMental:
		if ch.MentalFatigue >= tables.CriticalFatigue {
			return "too mentally exhausted"
		}
	}
	return ""
}

// Warnings returns the threshold warnings for the character's current
// fatigue.
func Warnings(ch types.Character) []Warning {
	return warnings(ch.Fatigue, ch.MentalFatigue)
}

func warnings(physical, mental float64) []Warning {
	var out []Warning
	if w, ok := warn("physical", physical); ok {
		out = append(out, w)
	}
	if w, ok := warn("mental", mental); ok {
		out = append(out, w)
	}
	return out
}

func warn(axis string, v float64) (Warning, bool) {
	switch {
	case v >= tables.CriticalFatigue:
		return Warning{Axis: axis, Severity: SeverityCritical, Value: v}, true
	case v >= tables.HighFatigue:
		return Warning{Axis: axis, Severity: SeverityHigh, Value: v}, true
	}
	return Warning{}, false
}

// Recovery is the amount of fatigue shed, as positive numbers.
type Recovery struct {
	Physical float64
	Mental   float64
}

// Delta converts recovery into a character delta.
func (r Recovery) Delta() types.CharacterDelta {
	return types.CharacterDelta{AddFatigue: -r.Physical, AddMentalFatigue: -r.Mental}
}

// PassiveRecovery is the background recovery over minutes of ordinary time.
// It never takes a meter below zero.
func PassiveRecovery(ch types.Character, minutes float64) Recovery {
	if minutes <= 0 {
		return Recovery{}
	}
	m := tables.RecoveryMultiplier(ch.CultivationLevel)
	return Recovery{
		Physical: math.Min(math.Max(ch.Fatigue, 0), tables.PassivePhysicalRecovery*minutes*m),
		Mental:   math.Min(math.Max(ch.MentalFatigue, 0), tables.PassiveMentalRecovery*minutes*m),
	}
}

// RecoveryMinutes returns how long the recovery action must run to shed the
// given physical and mental fatigue. It reports false when the action does
// not recover an axis that needs shedding.
func RecoveryMinutes(ch types.Character, action tables.ActionType, physical, mental float64) (float64, bool) {
	rate, ok := tables.Rate(action)
	if !ok {
		return 0, false
	}
	m := tables.RecoveryMultiplier(ch.CultivationLevel)
	var minutes float64
	for _, axis := range []struct{ need, rate float64 }{{physical, rate.Physical}, {mental, rate.Mental}} {
		if axis.need <= 0 {
			continue
		}
		if axis.rate >= 0 {
			return 0, false
		}
		minutes = math.Max(minutes, axis.need/(-axis.rate*m))
	}
	return minutes, true
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(types.MaxFatigue, v))
}
