// Package cultivation computes Qi generation, meditation and breakthroughs.
// All functions are pure: they read a Character snapshot and return results
// or deltas; the caller applies them through the session authority.
package cultivation

import (
	"fmt"
	"math"

	"github.com/nathoo/qicore/engine/tables"
	"github.com/nathoo/qicore/types"
)

const (
	// PassiveRatePerCapacity is the per-minute core generation per unit of
	// core capacity.
	PassiveRatePerCapacity = 0.0001

	// PassiveCapFraction bounds passive generation: the core alone never
	// fills beyond this fraction of capacity.
	PassiveCapFraction = 0.9

	// EnvironmentalFactor converts qi density × conductivity into Qi per
	// minute of meditation.
	EnvironmentalFactor = 0.1

	// InsightRate is the QiUnderstanding gained per minute of insight
	// meditation.
	InsightRate = 0.05
)

// MeditationKind selects a meditation style.
type MeditationKind string

const (
	MeditationStandard MeditationKind = "standard"
	MeditationDeep     MeditationKind = "deep"
	MeditationInsight  MeditationKind = "insight"
)

type kindProfile struct {
	environmental float64
	mental        float64
	insight       bool
}

var kindProfiles = map[MeditationKind]kindProfile{
	MeditationStandard: {environmental: 1.0, mental: 1.0},
	MeditationDeep:     {environmental: 1.5, mental: 1.5},
	MeditationInsight:  {environmental: 0.5, mental: 1.0, insight: true},
}

// ValidKind reports whether k is a known meditation kind. The empty kind is
// treated as standard.
func ValidKind(k MeditationKind) bool {
	if k == "" {
		return true
	}
	_, ok := kindProfiles[k]
	return ok
}

// Rates is the per-minute Qi generation breakdown.
type Rates struct {
	Passive       float64
	Environmental float64
	Total         float64
}

// QiRates returns the character's current generation rates. Environmental
// absorption only applies while meditating.
func QiRates(ch types.Character, loc types.Location, meditating bool) Rates {
	var r Rates
	if passiveActive(ch) {
		r.Passive = PassiveRatePerCapacity * ch.CoreCapacity
	}
	if meditating {
		r.Environmental = math.Max(0, loc.QiDensity) * math.Max(0, ch.Conductivity) * EnvironmentalFactor
	}
	r.Total = r.Passive + r.Environmental
	return r
}

// passiveActive reports whether the core generates on its own: not while a
// core-fill is pending and not above the passive ceiling.
func passiveActive(ch types.Character) bool {
	return !ch.CoreFilled && ch.CurrentQi < PassiveCapFraction*ch.CoreCapacity
}

// passiveGain integrates passive generation over minutes without crossing
// the passive ceiling.
func passiveGain(ch types.Character, minutes float64) float64 {
	if !passiveActive(ch) || minutes <= 0 {
		return 0
	}
	room := PassiveCapFraction*ch.CoreCapacity - ch.CurrentQi
	return math.Min(PassiveRatePerCapacity*ch.CoreCapacity*minutes, room)
}

// PassiveRegen returns the Qi the core generates over minutes of ordinary
// time (no meditation).
func PassiveRegen(ch types.Character, minutes float64) float64 {
	return passiveGain(ch, minutes)
}

// FatigueDelta is a signed change to the two fatigue meters.
type FatigueDelta struct {
	Physical float64
	Mental   float64
}

// MeditationResult is the outcome of a meditation session.
type MeditationResult struct {
	Minutes             float64
	QiGained            float64
	AccumulatedQiGained float64
	CoreFilled          bool
	FatigueGained       FatigueDelta
	UnderstandingGained float64
	Rates               Rates
}

// Meditate integrates generation over the duration. Gain beyond core
// capacity is credited to AccumulatedQi and marks the core filled.
func Meditate(ch types.Character, loc types.Location, minutes float64, kind MeditationKind) MeditationResult {
	if kind == "" {
		kind = MeditationStandard
	}
	profile, ok := kindProfiles[kind]
	if !ok {
		profile = kindProfiles[MeditationStandard]
	}
	res := MeditationResult{Minutes: minutes, Rates: QiRates(ch, loc, true)}
	if minutes <= 0 {
		res.CoreFilled = ch.CoreFilled
		return res
	}

	gain := passiveGain(ch, minutes) + res.Rates.Environmental*profile.environmental*minutes
	room := math.Max(0, ch.CoreCapacity-ch.CurrentQi)
	if gain > room {
		res.QiGained = room
		res.AccumulatedQiGained = gain - room
		res.CoreFilled = true
	} else {
		res.QiGained = gain
		res.CoreFilled = ch.CoreFilled
	}

	rate, _ := tables.Rate(tables.ActionMeditate)
	res.FatigueGained = FatigueDelta{
		Physical: tables.ScaledDelta(rate.Physical, minutes, ch.CultivationLevel),
		Mental:   tables.ScaledDelta(rate.Mental*profile.mental, minutes, ch.CultivationLevel),
	}

	if profile.insight {
		room := math.Max(0, ch.QiUnderstandingCap-ch.QiUnderstanding)
		res.UnderstandingGained = math.Min(InsightRate*minutes, room)
	}
	return res
}

// Delta converts a meditation result into a character delta.
func (r MeditationResult) Delta() types.CharacterDelta {
	filled := r.CoreFilled
	return types.CharacterDelta{
		AddQi:            r.QiGained,
		AddAccumulatedQi: r.AccumulatedQiGained,
		AddFatigue:       r.FatigueGained.Physical,
		AddMentalFatigue: r.FatigueGained.Mental,
		AddUnderstanding: r.UnderstandingGained,
		SetCoreFilled:    &filled,
	}
}

// Scale returns the result prorated to elapsed of its minutes. Used when an
// interruption cuts a session short.
func (r MeditationResult) Scale(elapsed float64) MeditationResult {
	if r.Minutes <= 0 || elapsed >= r.Minutes {
		return r
	}
	if elapsed < 0 {
		elapsed = 0
	}
	f := elapsed / r.Minutes
	out := r
	out.Minutes = elapsed
	out.FatigueGained = FatigueDelta{Physical: r.FatigueGained.Physical * f, Mental: r.FatigueGained.Mental * f}
	out.UnderstandingGained = r.UnderstandingGained * f
	total := (r.QiGained + r.AccumulatedQiGained) * f
	if total > r.QiGained {
		out.AccumulatedQiGained = total - r.QiGained
	} else {
		out.QiGained = total
		out.AccumulatedQiGained = 0
		out.CoreFilled = false
	}
	return out
}

// RequiredFills is the number of full cores of accumulated Qi needed to
// break through from (level, subLevel).
func RequiredFills(level, subLevel int) int {
	return level*10 + subLevel
}

// BreakthroughResult reports a breakthrough attempt. Failure is a value,
// not an error, and consumes nothing.
type BreakthroughResult struct {
	Success         bool
	NewLevel        int
	NewSubLevel     int
	NewCoreCapacity float64
	QiConsumed      float64
	Required        float64
	Reason          string
}

// AttemptBreakthrough advances one sub-level when enough Qi has been
// accumulated.
func AttemptBreakthrough(ch types.Character) BreakthroughResult {
	res := BreakthroughResult{
		NewLevel:        ch.CultivationLevel,
		NewSubLevel:     ch.CultivationSubLevel,
		NewCoreCapacity: ch.CoreCapacity,
	}
	required := ch.CoreCapacity * float64(RequiredFills(ch.CultivationLevel, ch.CultivationSubLevel))
	res.Required = required

	if ch.CultivationLevel >= types.MaxLevel && ch.CultivationSubLevel >= types.MaxSubLevel {
		res.Reason = "already at the peak of cultivation"
		return res
	}
	if ch.AccumulatedQi < required {
		res.Reason = fmt.Sprintf("accumulated qi %.1f below required %.1f", ch.AccumulatedQi, required)
		return res
	}

	level, sub := ch.CultivationLevel, ch.CultivationSubLevel+1
	if sub > types.MaxSubLevel {
		sub = 0
		level++
	}
	res.Success = true
	res.NewLevel = level
	res.NewSubLevel = sub
	res.NewCoreCapacity = math.Round(ch.CoreCapacity*tables.CapacityGrowth(level, sub)*100) / 100
	res.QiConsumed = required
	return res
}

// Delta converts a successful breakthrough into a character delta. A
// failed attempt yields the zero delta.
func (r BreakthroughResult) Delta() types.CharacterDelta {
	if !r.Success {
		return types.CharacterDelta{}
	}
	level, sub, capacity := r.NewLevel, r.NewSubLevel, r.NewCoreCapacity
	filled := false
	return types.CharacterDelta{
		SetLevel:         &level,
		SetSubLevel:      &sub,
		SetCoreCapacity:  &capacity,
		SetCoreFilled:    &filled,
		AddAccumulatedQi: -r.QiConsumed,
		Breakthrough:     true,
		Critical:         true,
	}
}

// SpendResult reports an attempt to spend Qi.
type SpendResult struct {
	OK         bool
	NewQi      float64
	CoreFilled bool
}

// Spend deducts amount from CurrentQi. Any expenditure that drops the core
// below capacity clears the core-filled halt, letting passive generation
// resume (still bounded by the passive ceiling).
func Spend(ch types.Character, amount float64) SpendResult {
	if amount < 0 || amount > ch.CurrentQi {
		return SpendResult{NewQi: ch.CurrentQi, CoreFilled: ch.CoreFilled}
	}
	newQi := ch.CurrentQi - amount
	filled := ch.CoreFilled && newQi >= ch.CoreCapacity
	return SpendResult{OK: true, NewQi: newQi, CoreFilled: filled}
}

// LevelLabel renders "level.sub" for display.
func LevelLabel(level, subLevel int) string {
	return fmt.Sprintf("%d.%d", level, subLevel)
}
