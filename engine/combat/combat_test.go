package combat

import (
	"math"
	"testing"

	"github.com/nathoo/qicore/engine/rng"
	"github.com/nathoo/qicore/types"
)

func palm() types.Technique {
	return types.Technique{
		ID:         "iron_palm",
		Type:       types.TechniqueAttack,
		Subtype:    types.SubtypeBodyStrike,
		BaseDamage: 20,
	}
}

func fighter() types.Character {
	return types.Character{Strength: 50, Agility: 10, Intelligence: 5, Conductivity: 1}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestStatBonus(t *testing.T) {
	got := StatBonus(types.SubtypeBodyStrike, fighter())
	if !near(got, 0.8*50+0.2*10) {
		t.Errorf("body strike bonus = %f", got)
	}
	got = StatBonus(types.SubtypeBeam, fighter())
	if !near(got, 0.8*5+0.2*1) {
		t.Errorf("beam bonus = %f", got)
	}
	if StatBonus(types.SubtypeNone, fighter()) != 0 {
		t.Error("subtype none should have no bonus")
	}
}

func TestAttackDamage_Deterministic(t *testing.T) {
	// Variance roll 0.5 → 1.0; crit roll 0.99 → no crit.
	src := &rng.Fixed{Floats: []float64{0.5, 0.99}}
	res := AttackDamage(palm(), fighter(), Target{Defense: 100}, src)

	if !near(res.Raw, 20*1.42) {
		t.Errorf("raw = %f, want %f", res.Raw, 20*1.42)
	}
	if !near(res.Variance, 1.0) {
		t.Errorf("variance = %f", res.Variance)
	}
	if res.Critical {
		t.Error("unexpected critical")
	}
	if !near(res.Mitigation, 0.5) {
		t.Errorf("mitigation = %f", res.Mitigation)
	}
	if !near(res.Final, 20*1.42*0.5) {
		t.Errorf("final = %f", res.Final)
	}
}

func TestAttackDamage_Critical(t *testing.T) {
	src := &rng.Fixed{Floats: []float64{0.5, 0.0}}
	res := AttackDamage(palm(), fighter(), Target{}, src)
	if !res.Critical {
		t.Fatal("expected critical")
	}
	if !near(res.Final, 20*1.42*CritMultiplier) {
		t.Errorf("final = %f", res.Final)
	}
}

func TestAttackDamage_Penetration(t *testing.T) {
	tech := palm()
	tech.Penetration = 0.5
	src := &rng.Fixed{Floats: []float64{0.5, 0.99}}
	res := AttackDamage(tech, fighter(), Target{Defense: 200}, src)
	if !near(res.Mitigation, 0.5) {
		t.Errorf("mitigation with penetration = %f, want 0.5", res.Mitigation)
	}
}

func TestAttackDamage_Minimum(t *testing.T) {
	tech := palm()
	tech.BaseDamage = 0.1
	g := rng.New(3)
	for i := 0; i < 100; i++ {
		res := AttackDamage(tech, types.Character{}, Target{Defense: 10000}, g)
		if res.Final < MinimumDamage {
			t.Fatalf("damage below minimum: %f", res.Final)
		}
	}
}

func TestAttackDamage_VarianceWindow(t *testing.T) {
	g := rng.New(11)
	for i := 0; i < 500; i++ {
		res := AttackDamage(palm(), types.Character{}, Target{}, g)
		if res.Variance < VarianceLow || res.Variance > VarianceHigh {
			t.Fatalf("variance out of window: %f", res.Variance)
		}
	}
}

func TestCritChance_Capped(t *testing.T) {
	if got := CritChance(types.Character{Agility: 1000}); got != CritChanceCap {
		t.Errorf("crit chance = %f, want cap", got)
	}
}

func TestDamageAtDistance_Falloff(t *testing.T) {
	f := Falloff{Enabled: true, Full: 10, Half: 30, Max: 50, Floor: 0.25}
	tests := []struct {
		distance float64
		want     float64
	}{
		{0, 100},
		{10, 100},
		{20, 75},
		{30, 50},
		{40, 37.5},
		{50, 25},
		{51, 0},
	}
	for _, tt := range tests {
		if got := DamageAtDistance(100, tt.distance, f); !near(got, tt.want) {
			t.Errorf("distance %.0f: got %f, want %f", tt.distance, got, tt.want)
		}
	}
}

func TestDamageAtDistance_NoFalloff(t *testing.T) {
	f := Falloff{Max: 15}
	if got := DamageAtDistance(100, 15, f); got != 100 {
		t.Errorf("within range = %f", got)
	}
	if got := DamageAtDistance(100, 16, f); got != 0 {
		t.Errorf("beyond range = %f", got)
	}
}

func TestIsMelee(t *testing.T) {
	if !IsMelee(types.SubtypeBodyStrike) || !IsMelee(types.SubtypeWeaponStrike) {
		t.Error("strikes are melee")
	}
	if IsMelee(types.SubtypeBeam) || IsMelee(types.SubtypeAOE) {
		t.Error("beam and aoe are ranged")
	}
}

func TestResolveRange(t *testing.T) {
	bolt := types.Technique{Subtype: types.SubtypeProjectile, Falloff: true}
	f := ResolveRange(bolt, Weapon{})
	if !f.Enabled || f.Max != 50 {
		t.Errorf("projectile profile = %+v", f)
	}

	bolt.Range = 100
	f = ResolveRange(bolt, Weapon{})
	if f.Max != 100 || f.Full != 20 || f.Half != 60 {
		t.Errorf("stretched profile = %+v", f)
	}

	sword := types.Technique{Subtype: types.SubtypeWeaponStrike, Falloff: true}
	f = ResolveRange(sword, Weapon{Name: "spear", Reach: 4})
	if f.Enabled || f.Max != 4 {
		t.Errorf("weapon profile = %+v", f)
	}
}

func TestMasteryGain(t *testing.T) {
	l := types.LearnedTechnique{TechniqueID: "iron_palm"}
	l = MasteryGain(l, 50)
	if !near(l.MasteryProgress, 1.0) {
		t.Errorf("first gain = %f, want 1.0", l.MasteryProgress)
	}
	for i := 0; i < 10000; i++ {
		l = MasteryGain(l, 1000)
	}
	if l.MasteryProgress > MaxMastery {
		t.Errorf("mastery exceeded cap: %f", l.MasteryProgress)
	}
	if MasteryBonus(100) != 1.25 || MasteryBonus(0) != 1 {
		t.Error("mastery bonus bounds")
	}
}
