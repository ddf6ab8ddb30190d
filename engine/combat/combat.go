// Package combat computes technique damage, range falloff and mastery.
package combat

import (
	"math"

	"github.com/nathoo/qicore/engine/rng"
	"github.com/nathoo/qicore/types"
)

// Damage tuning.
const (
	VarianceLow      = 0.9
	VarianceHigh     = 1.1
	CritPerAgility   = 0.005
	CritChanceCap    = 0.5
	CritMultiplier   = 1.5
	DefenseConstant  = 100.0
	MinimumDamage    = 1.0
	MaxMastery       = 100.0
	baseMasteryGain  = 0.5
	masteryPerDamage = 0.01
)

// statWeight is a stat's share of the damage bonus for a subtype.
type statWeight struct {
	Strength, Agility, Intelligence, Conductivity float64
}

var scaling = map[types.TechniqueSubtype]statWeight{
	types.SubtypeBodyStrike:   {Strength: 0.8, Agility: 0.2},
	types.SubtypeWeaponStrike: {Agility: 0.7, Strength: 0.3},
	types.SubtypeProjectile:   {Intelligence: 0.6, Agility: 0.4},
	types.SubtypeBeam:         {Intelligence: 0.8, Conductivity: 0.2},
	types.SubtypeAOE:          {Intelligence: 0.7, Conductivity: 0.3},
}

// Target is the receiving end of an attack. Targets are supplied by the
// caller; the kernel does not own enemy state.
type Target struct {
	ID      string  `json:"id"`
	Name    string  `json:"name,omitempty"`
	Defense float64 `json:"defense"`
	Health  float64 `json:"health"`
}

// AttackResult breaks down one attack.
type AttackResult struct {
	Raw        float64
	StatBonus  float64
	Variance   float64
	Critical   bool
	Mitigation float64
	Final      float64
}

// StatBonus is the percentage bonus the attacker's stats give a subtype.
func StatBonus(subtype types.TechniqueSubtype, attacker types.Character) float64 {
	w, ok := scaling[subtype]
	if !ok {
		return 0
	}
	return w.Strength*attacker.Strength +
		w.Agility*attacker.Agility +
		w.Intelligence*attacker.Intelligence +
		w.Conductivity*attacker.Conductivity
}

// CritChance is the attacker's chance to land a critical hit.
func CritChance(attacker types.Character) float64 {
	return math.Min(CritChanceCap, math.Max(0, attacker.Agility*CritPerAgility))
}

// AttackDamage resolves a technique against a target. It draws two values
// from src: the variance roll then the critical roll.
func AttackDamage(tech types.Technique, attacker types.Character, target Target, src rng.Source) AttackResult {
	base := tech.BaseDamage
	if tech.Effects.Damage != nil {
		base += *tech.Effects.Damage
	}
	res := AttackResult{StatBonus: StatBonus(tech.Subtype, attacker)}
	res.Raw = base * (1 + res.StatBonus/100)
	res.Variance = VarianceLow + (VarianceHigh-VarianceLow)*src.Float64()
	res.Critical = src.Float64() < CritChance(attacker)

	dmg := res.Raw * res.Variance
	if res.Critical {
		dmg *= CritMultiplier
	}

	pen := math.Max(0, math.Min(1, tech.Penetration))
	def := math.Max(0, target.Defense) * (1 - pen)
	res.Mitigation = def / (def + DefenseConstant)
	res.Final = math.Max(MinimumDamage, dmg*(1-res.Mitigation))
	return res
}

// Falloff describes how damage degrades with distance. Without falloff the
// full damage applies up to Max and nothing beyond.
type Falloff struct {
	Enabled bool
	Full    float64
	Half    float64
	Max     float64
	Floor   float64
}

// DamageAtDistance scales base by the falloff curve: linear from 100% at
// Full to 50% at Half, then linear to Floor at Max, zero beyond Max.
func DamageAtDistance(base, distance float64, f Falloff) float64 {
	if distance < 0 {
		distance = 0
	}
	if distance > f.Max {
		return 0
	}
	if !f.Enabled || distance <= f.Full {
		return base
	}
	if distance <= f.Half {
		span := f.Half - f.Full
		if span <= 0 {
			return base * 0.5
		}
		return base * (1 - 0.5*(distance-f.Full)/span)
	}
	span := f.Max - f.Half
	if span <= 0 {
		return base * f.Floor
	}
	return base * (0.5 - (0.5-f.Floor)*(distance-f.Half)/span)
}

// IsMelee reports whether a subtype strikes at arm's or weapon's length.
func IsMelee(subtype types.TechniqueSubtype) bool {
	return subtype == types.SubtypeBodyStrike || subtype == types.SubtypeWeaponStrike
}

// Weapon is the wielded weapon, if any. Reach only matters for weapon
// strikes.
type Weapon struct {
	Name  string
	Reach float64
}

var ranges = map[types.TechniqueSubtype]Falloff{
	types.SubtypeNone:         {Max: 1},
	types.SubtypeBodyStrike:   {Max: 2},
	types.SubtypeWeaponStrike: {Max: 3},
	types.SubtypeProjectile:   {Full: 10, Half: 30, Max: 50, Floor: 0.25},
	types.SubtypeBeam:         {Full: 20, Half: 40, Max: 60, Floor: 0.3},
	types.SubtypeAOE:          {Max: 15},
}

// ResolveRange returns the effective falloff profile of a technique. A
// technique's own Range overrides the subtype default and stretches the
// falloff band proportionally.
func ResolveRange(tech types.Technique, weapon Weapon) Falloff {
	f, ok := ranges[tech.Subtype]
	if !ok {
		f = ranges[types.SubtypeNone]
	}
	if tech.Subtype == types.SubtypeWeaponStrike && weapon.Reach > 0 {
		f.Max = weapon.Reach
	}
	if tech.Range > 0 && f.Max > 0 {
		k := tech.Range / f.Max
		f.Full *= k
		f.Half *= k
		f.Max = tech.Range
	}
	f.Enabled = tech.Falloff && !IsMelee(tech.Subtype) && f.Half > 0
	return f
}

// MasteryGain returns the learned technique after a use that dealt
// damageDealt. Gains shrink as mastery approaches the cap.
func MasteryGain(learned types.LearnedTechnique, damageDealt float64) types.LearnedTechnique {
	gain := baseMasteryGain + math.Max(0, damageDealt)*masteryPerDamage
	gain *= 1 - learned.MasteryProgress/MaxMastery
	learned.MasteryProgress = math.Min(MaxMastery, learned.MasteryProgress+math.Max(0, gain))
	return learned
}

// MasteryBonus is the damage multiplier mastery grants: up to +25% at full
// mastery.
func MasteryBonus(progress float64) float64 {
	return 1 + 0.25*math.Max(0, math.Min(MaxMastery, progress))/MaxMastery
}
