// Package interrupt rolls for events that cut long activities short.
package interrupt

import (
	"math"

	"github.com/nathoo/qicore/engine/rng"
	"github.com/nathoo/qicore/engine/tables"
	"github.com/nathoo/qicore/types"
)

// Tuning.
const (
	MaxDanger         = 10
	ChancePerDanger   = 0.05
	MaxChance         = 0.95
	DistancePerDanger = 100.0
	NightFactor       = 1.5
	TwilightFactor    = 1.2
	DayFactor         = 1.0

	// InterruptionStat is the technique stat modifier that lowers the
	// interruption chance while it is known.
	InterruptionStat    = "interruption"
	MaxPassiveReduction = 0.75
	fullMastery         = 100.0
)

// LocationDanger derives a 0..10 danger level from terrain and distance from
// the world centre.
func LocationDanger(loc types.Location) int {
	base := tables.TerrainDanger[string(loc.TerrainType)]
	d := base + math.Floor(math.Max(0, loc.DistanceFromCenter)/DistancePerDanger)
	return int(math.Min(MaxDanger, d))
}

// TimeFactor scales the chance by hour of day: night is most dangerous,
// dawn and dusk less so.
func TimeFactor(hour int) float64 {
	hour = ((hour % 24) + 24) % 24
	switch {
	case hour >= 22 || hour < 5:
		return NightFactor
	case hour < 7 || hour >= 18:
		return TwilightFactor
	default:
		return DayFactor
	}
}

// Chance is the probability of an interruption in one hourly check. It is
// non-decreasing in danger − level.
func Chance(danger, level int, passive, formation float64, hour int) float64 {
	base := math.Max(0, float64(danger-level)) * ChancePerDanger
	c := base * (1 - clamp01(passive)) * (1 - clamp01(formation)) * TimeFactor(hour)
	return math.Min(MaxChance, c)
}

// PassiveReduction combines the interruption modifiers of the character's
// learned defense, support and cultivation techniques. A technique counts
// half at no mastery and fully at full mastery; several stack
// multiplicatively, capped at MaxPassiveReduction.
func PassiveReduction(learned []types.LearnedTechnique, techniques map[string]types.Technique) float64 {
	keep := 1.0
	for _, lt := range learned {
		tech, ok := techniques[lt.TechniqueID]
		if !ok {
			continue
		}
		switch tech.Type {
		case types.TechniqueDefense, types.TechniqueSupport, types.TechniqueCultivation:
		default:
			continue
		}
		r := clamp01(tech.Effects.StatModifiers[InterruptionStat])
		if r == 0 {
			continue
		}
		mastery := math.Max(0, math.Min(fullMastery, lt.MasteryProgress)) / fullMastery
		keep *= 1 - r*(0.5+0.5*mastery)
	}
	return math.Min(MaxPassiveReduction, 1-keep)
}

// Request describes an activity to check.
type Request struct {
	Character          types.Character
	Location           types.Location
	Time               types.WorldTime
	Minutes            int
	PassiveReduction   float64
	FormationReduction float64
	QiPerMinute        float64
	Pool               []types.CreatureTemplate
}

// Result reports whether and when the activity was interrupted.
type Result struct {
	Interrupted    bool
	Event          *types.InterruptionEvent
	CheckHour      int
	FinalChance    float64
	ElapsedMinutes int
	PartialQi      float64
}

var order = []types.InterruptionType{
	types.InterruptCreature,
	types.InterruptPerson,
	types.InterruptSpirit,
	types.InterruptPhenomenon,
	types.InterruptRare,
}

var terrainWeights = map[types.TerrainType][]int{
	types.TerrainPlains:   {40, 35, 5, 15, 5},
	types.TerrainForest:   {55, 15, 10, 15, 5},
	types.TerrainMountain: {45, 10, 15, 25, 5},
	types.TerrainSwamp:    {50, 5, 25, 15, 5},
	types.TerrainDesert:   {35, 20, 10, 30, 5},
	types.TerrainCave:     {55, 5, 20, 15, 5},
	types.TerrainRuins:    {30, 10, 35, 15, 10},
	types.TerrainCity:     {5, 80, 2, 10, 3},
	types.TerrainSect:     {5, 75, 5, 10, 5},
}

var defaults = map[types.InterruptionType]types.InterruptionEvent{
	types.InterruptCreature:   {Name: "Prowling beast", Description: "Something hungry has caught your scent.", CanHide: true},
	types.InterruptPerson:     {Name: "Wandering cultivator", Description: "A stranger approaches.", CanIgnore: true, CanHide: true},
	types.InterruptSpirit:     {Name: "Restless spirit", Description: "The air turns cold around you."},
	types.InterruptPhenomenon: {Name: "Qi storm", Description: "The ambient Qi churns violently.", CanIgnore: true},
	types.InterruptRare:       {Name: "Strange omen", Description: "Something extraordinary stirs nearby.", CanIgnore: true},
}

// CheckInterruption checks once per started hour of the activity. The first
// successful roll interrupts; elapsed time and partial Qi cover only the
// part of the activity that actually happened.
func CheckInterruption(req Request, src rng.Source) Result {
	res := Result{ElapsedMinutes: max(0, req.Minutes)}
	if req.Minutes <= 0 {
		return res
	}
	danger := LocationDanger(req.Location)
	startMinute := req.Time.Hour*60 + req.Time.Minute
	hours := (req.Minutes + 59) / 60

	for i := 0; i < hours; i++ {
		hour := (startMinute + i*60) / 60
		res.CheckHour = i + 1
		res.FinalChance = Chance(danger, req.Character.CultivationLevel,
			req.PassiveReduction, req.FormationReduction, hour)
		if res.FinalChance <= 0 || src.Float64() >= res.FinalChance {
			continue
		}
		span := min(60, req.Minutes-i*60)
		res.Interrupted = true
		res.ElapsedMinutes = i*60 + 1 + src.Intn(span)
		ev := pickEvent(req, danger, src)
		res.Event = &ev
		break
	}
	res.PartialQi = req.QiPerMinute * float64(res.ElapsedMinutes)
	return res
}

func pickEvent(req Request, danger int, src rng.Source) types.InterruptionEvent {
	weights, ok := terrainWeights[req.Location.TerrainType]
	if !ok {
		weights = terrainWeights[types.TerrainPlains]
	}
	kind := order[src.WeightedSelect(weights)]
	ev := defaults[kind]
	ev.Type = kind
	ev.DangerLevel = danger

	var matches []types.CreatureTemplate
	for _, c := range req.Pool {
		if c.Type == kind && c.MinDanger <= danger && livesIn(c, req.Location.TerrainType) {
			matches = append(matches, c)
		}
	}
	if len(matches) > 0 {
		c := matches[src.Intn(len(matches))]
		ev.Name = c.Name
		if c.Description != "" {
			ev.Description = c.Description
		}
	}
	return ev
}

func livesIn(c types.CreatureTemplate, t types.TerrainType) bool {
	if len(c.Terrains) == 0 {
		return true
	}
	for _, ct := range c.Terrains {
		if ct == t {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
