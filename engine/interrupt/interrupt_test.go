package interrupt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathoo/qicore/engine/rng"
	"github.com/nathoo/qicore/types"
)

func TestLocationDanger(t *testing.T) {
	assert.Equal(t, 0, LocationDanger(types.Location{TerrainType: types.TerrainSect}))
	assert.Equal(t, 3, LocationDanger(types.Location{TerrainType: types.TerrainForest, DistanceFromCenter: 50}))
	assert.Equal(t, 5, LocationDanger(types.Location{TerrainType: types.TerrainForest, DistanceFromCenter: 250}))
	assert.Equal(t, MaxDanger, LocationDanger(types.Location{TerrainType: types.TerrainCave, DistanceFromCenter: 5000}))
}

func TestTimeFactor(t *testing.T) {
	assert.Equal(t, NightFactor, TimeFactor(23))
	assert.Equal(t, NightFactor, TimeFactor(2))
	assert.Equal(t, TwilightFactor, TimeFactor(6))
	assert.Equal(t, TwilightFactor, TimeFactor(19))
	assert.Equal(t, DayFactor, TimeFactor(12))
	assert.Equal(t, NightFactor, TimeFactor(26), "wraps past midnight")
}

func TestChance(t *testing.T) {
	assert.Zero(t, Chance(3, 5, 0, 0, 12), "outclassed danger is safe")
	assert.InDelta(t, 0.25, Chance(6, 1, 0, 0, 12), 1e-9)
	assert.InDelta(t, 0.125, Chance(6, 1, 0.5, 0, 12), 1e-9)
	assert.InDelta(t, 0.0625, Chance(6, 1, 0.5, 0.5, 12), 1e-9)
	assert.InDelta(t, 0.375, Chance(6, 1, 0, 0, 0), 1e-9)
	assert.Equal(t, MaxChance, Chance(30, 1, 0, 0, 0))
}

func TestChance_Monotonic(t *testing.T) {
	for _, hour := range []int{0, 6, 12} {
		for _, passive := range []float64{0, 0.3, 0.9} {
			prev := -1.0
			for gap := -5; gap <= 12; gap++ {
				c := Chance(gap+3, 3, passive, 0.2, hour)
				assert.GreaterOrEqual(t, c, prev, "gap %d hour %d passive %.1f", gap, hour, passive)
				prev = c
			}
		}
	}
}

func request(minutes int) Request {
	return Request{
		Character:   types.Character{CultivationLevel: 1},
		Location:    types.Location{TerrainType: types.TerrainCave, DistanceFromCenter: 200},
		Time:        types.WorldTime{Hour: 12},
		Minutes:     minutes,
		QiPerMinute: 2,
	}
}

func TestCheckInterruption_NoRoll(t *testing.T) {
	src := &rng.Fixed{Floats: []float64{0.99}}
	res := CheckInterruption(request(150), src)
	assert.False(t, res.Interrupted)
	assert.Equal(t, 3, res.CheckHour)
	assert.Equal(t, 150, res.ElapsedMinutes)
	assert.InDelta(t, 300, res.PartialQi, 1e-9)
}

func TestCheckInterruption_SecondHour(t *testing.T) {
	src := &rng.Fixed{Floats: []float64{0.99, 0.0}, Indices: []int{29, 0}}
	res := CheckInterruption(request(150), src)
	require.True(t, res.Interrupted)
	assert.Equal(t, 2, res.CheckHour)
	assert.Equal(t, 90, res.ElapsedMinutes)
	assert.InDelta(t, 180, res.PartialQi, 1e-9)
	require.NotNil(t, res.Event)
	assert.Equal(t, types.InterruptCreature, res.Event.Type)
	assert.Equal(t, 8, res.Event.DangerLevel)
}

func TestCheckInterruption_SafeLocation(t *testing.T) {
	req := request(600)
	req.Location = types.Location{TerrainType: types.TerrainSect}
	res := CheckInterruption(req, rng.New(1))
	assert.False(t, res.Interrupted)
	assert.Zero(t, res.FinalChance)
}

func TestCheckInterruption_Pool(t *testing.T) {
	req := request(60)
	req.Pool = []types.CreatureTemplate{
		{ID: "wolf", Name: "Shadow Wolf", Type: types.InterruptCreature, Terrains: []types.TerrainType{types.TerrainForest}},
		{ID: "bat", Name: "Cave Bat Swarm", Type: types.InterruptCreature, Terrains: []types.TerrainType{types.TerrainCave}, Description: "Wings fill the dark."},
		{ID: "wyrm", Name: "Stone Wyrm", Type: types.InterruptCreature, MinDanger: 10},
	}
	src := &rng.Fixed{Floats: []float64{0.0}, Indices: []int{0}}
	res := CheckInterruption(req, src)
	require.True(t, res.Interrupted)
	assert.Equal(t, "Cave Bat Swarm", res.Event.Name)
	assert.Equal(t, "Wings fill the dark.", res.Event.Description)
}

func TestCheckInterruption_Deterministic(t *testing.T) {
	a := CheckInterruption(request(600), rng.New(77))
	b := CheckInterruption(request(600), rng.New(77))
	assert.Equal(t, a, b)
}

func TestPassiveReduction(t *testing.T) {
	techs := map[string]types.Technique{
		"stance": {ID: "stance", Type: types.TechniqueDefense,
			Effects: types.TechniqueEffects{StatModifiers: map[string]float64{InterruptionStat: 0.4}}},
		"ward": {ID: "ward", Type: types.TechniqueSupport,
			Effects: types.TechniqueEffects{StatModifiers: map[string]float64{InterruptionStat: 0.5}}},
		"fist": {ID: "fist", Type: types.TechniqueAttack,
			Effects: types.TechniqueEffects{StatModifiers: map[string]float64{InterruptionStat: 0.9}}},
		"step": {ID: "step", Type: types.TechniqueMovement},
	}

	assert.Zero(t, PassiveReduction(nil, techs))
	assert.Zero(t, PassiveReduction([]types.LearnedTechnique{{TechniqueID: "fist", MasteryProgress: 100}}, techs),
		"attack techniques do not calm the surroundings")
	assert.Zero(t, PassiveReduction([]types.LearnedTechnique{{TechniqueID: "step"}, {TechniqueID: "unknown"}}, techs))

	assert.InDelta(t, 0.2, PassiveReduction([]types.LearnedTechnique{{TechniqueID: "stance"}}, techs), 1e-9)
	assert.InDelta(t, 0.4, PassiveReduction([]types.LearnedTechnique{{TechniqueID: "stance", MasteryProgress: 100}}, techs), 1e-9)

	both := PassiveReduction([]types.LearnedTechnique{
		{TechniqueID: "stance", MasteryProgress: 100},
		{TechniqueID: "ward", MasteryProgress: 100},
	}, techs)
	assert.InDelta(t, 1-0.6*0.5, both, 1e-9)

	strong := map[string]types.Technique{
		"a": {ID: "a", Type: types.TechniqueDefense, Effects: types.TechniqueEffects{StatModifiers: map[string]float64{InterruptionStat: 1}}},
	}
	assert.Equal(t, MaxPassiveReduction, PassiveReduction([]types.LearnedTechnique{{TechniqueID: "a", MasteryProgress: 100}}, strong))
}

func TestPassiveReductionLowersChance(t *testing.T) {
	loc := types.Location{TerrainType: types.TerrainCave, DistanceFromCenter: 400}
	req := Request{Character: types.Character{CultivationLevel: 1}, Location: loc, Time: types.WorldTime{Hour: 12}, Minutes: 60}
	plain := CheckInterruption(req, &rng.Fixed{Floats: []float64{0.99}})
	req.PassiveReduction = 0.5
	calmed := CheckInterruption(req, &rng.Fixed{Floats: []float64{0.99}})
	require.Positive(t, plain.FinalChance)
	assert.InDelta(t, plain.FinalChance*0.5, calmed.FinalChance, 1e-9)
}
