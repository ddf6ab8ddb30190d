package loader

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nathoo/qicore/engine/state"
	"github.com/nathoo/qicore/engine/story"
	"github.com/nathoo/qicore/engine/tables"
	"github.com/nathoo/qicore/types"
)

// ValidationError collects all validation errors and warnings.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed with %d error(s):\n  %s",
		len(e.Errors), strings.Join(e.Errors, "\n  "))
}

func (e *ValidationError) errorf(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

func (e *ValidationError) warnf(format string, args ...any) {
	e.Warnings = append(e.Warnings, fmt.Sprintf(format, args...))
}

// Known condition types.
var validConditionTypes = map[string]bool{
	"min_level":         true,
	"min_stat":          true,
	"has_item":          true,
	"knows":             true,
	"at_location":       true,
	"in_terrain":        true,
	"max_danger":        true,
	"min_understanding": true,
	"not":               true,
}

var validTechniqueTypes = map[types.TechniqueType]bool{
	types.TechniqueAttack: true, types.TechniqueDefense: true, types.TechniqueMovement: true,
	types.TechniqueCultivation: true, types.TechniqueHealing: true, types.TechniqueSupport: true,
}

var validSubtypes = map[types.TechniqueSubtype]bool{
	types.SubtypeNone: true, types.SubtypeBodyStrike: true, types.SubtypeWeaponStrike: true,
	types.SubtypeProjectile: true, types.SubtypeBeam: true, types.SubtypeAOE: true,
}

var validElements = map[types.Element]bool{
	types.ElementNone: true, types.ElementFire: true, types.ElementWater: true, types.ElementWood: true,
	types.ElementMetal: true, types.ElementEarth: true, types.ElementLightning: true, types.ElementWind: true,
}

var validRarities = map[types.Rarity]bool{
	types.RarityCommon: true, types.RarityUncommon: true, types.RarityRare: true,
	types.RarityEpic: true, types.RarityLegendary: true,
}

var validItemKinds = map[types.ItemKind]bool{
	types.ItemConsumable: true, types.ItemMaterial: true, types.ItemManual: true,
}

var validInterruptions = map[types.InterruptionType]bool{
	types.InterruptCreature: true, types.InterruptPerson: true, types.InterruptSpirit: true,
	types.InterruptPhenomenon: true, types.InterruptRare: true,
}

func validTerrain(t types.TerrainType) bool {
	_, ok := tables.TerrainDanger[string(t)]
	return ok
}

// validate checks the compiled defs for referential integrity and
// consistency. Warnings are returned even when validation fails.
func validate(defs *state.Defs) ([]string, error) {
	ve := &ValidationError{}

	if defs.World.Title == "" {
		ve.errorf("World.title is required")
	}
	if defs.World.Start == "" {
		ve.errorf("World.start is required")
	} else if _, ok := defs.Locations[defs.World.Start]; !ok {
		ve.errorf("start location %q not found in defined locations", defs.World.Start)
	}
	if h := defs.World.Homeland; h != "" {
		if _, ok := defs.Locations[h]; !ok {
			ve.errorf("homeland %q not found in defined locations", h)
		}
	}

	for _, id := range sortedKeys(defs.Locations) {
		loc := defs.Locations[id]
		if !validTerrain(loc.TerrainType) {
			ve.errorf("location %q has unknown terrain %q", id, loc.TerrainType)
		}
		if loc.QiDensity < 0 || loc.DistanceFromCenter < 0 {
			ve.errorf("location %q has negative qi density or distance", id)
		}
	}

	for _, id := range sortedKeys(defs.Techniques) {
		validateTechnique(defs, defs.Techniques[id], ve)
	}

	for _, id := range sortedKeys(defs.Items) {
		it := defs.Items[id]
		if !validItemKinds[it.Kind] {
			ve.errorf("item %q has unknown kind %q", id, it.Kind)
		}
		if !validRarities[it.Rarity] {
			ve.errorf("item %q has unknown rarity %q", id, it.Rarity)
		}
		switch it.Kind {
		case types.ItemManual:
			if _, ok := defs.Techniques[it.Teaches]; !ok {
				ve.errorf("manual %q teaches undefined technique %q", id, it.Teaches)
			}
		case types.ItemConsumable:
			if it.Effects == (types.ItemEffects{}) {
				ve.warnf("consumable %q has no effects", id)
			}
		}
	}

	for _, c := range defs.Creatures {
		if !validInterruptions[c.Type] {
			ve.errorf("creature %q has unknown type %q", c.ID, c.Type)
		}
		for _, t := range c.Terrains {
			if !validTerrain(t) {
				ve.errorf("creature %q lists unknown terrain %q", c.ID, t)
			}
		}
	}

	for _, id := range sortedKeys(defs.Characters) {
		tpl := defs.Characters[id]
		if loc := tpl.Base.LocationID; loc != "" {
			if _, ok := defs.Locations[loc]; !ok {
				ve.errorf("character %q starts at undefined location %q", id, loc)
			}
		}
		for _, inv := range tpl.Inventory {
			if _, ok := defs.Items[inv.ItemID]; !ok {
				ve.errorf("character %q carries undefined item %q", id, inv.ItemID)
			}
			if inv.Quantity <= 0 {
				ve.errorf("character %q carries %d of %q", id, inv.Quantity, inv.ItemID)
			}
		}
		for _, lt := range tpl.Techniques {
			if _, ok := defs.Techniques[lt.TechniqueID]; !ok {
				ve.errorf("character %q knows undefined technique %q", id, lt.TechniqueID)
			}
		}
	}

	for _, id := range sortedKeys(defs.Scenes) {
		sc := defs.Scenes[id]
		if strings.TrimSpace(sc.Text) == "" {
			ve.errorf("scene %q has no text", id)
		} else if _, err := story.ParseScene(sc); err != nil {
			ve.errorf("scene %q: %v", id, err)
		}
		if sc.TimeAdvance < 0 {
			ve.errorf("scene %q advances time by %d minutes", id, sc.TimeAdvance)
		}
		validateConditions("scene "+id, sc.Requires, defs, ve)
	}

	if len(defs.Characters) == 0 {
		ve.warnf("no Character templates; new characters use defaults")
	}

	if len(ve.Errors) > 0 {
		return ve.Warnings, ve
	}
	return ve.Warnings, nil
}

func validateTechnique(defs *state.Defs, t types.Technique, ve *ValidationError) {
	if t.Name == "" {
		ve.errorf("technique %q has no name", t.ID)
	}
	if !validTechniqueTypes[t.Type] {
		ve.errorf("technique %q has unknown type %q", t.ID, t.Type)
	}
	if !validSubtypes[t.Subtype] {
		ve.errorf("technique %q has unknown subtype %q", t.ID, t.Subtype)
	}
	if !validElements[t.Element] {
		ve.errorf("technique %q has unknown element %q", t.ID, t.Element)
	}
	if !validRarities[t.Rarity] {
		ve.errorf("technique %q has unknown rarity %q", t.ID, t.Rarity)
	}
	if t.QiCost < 0 || t.BaseDamage < 0 || t.Range < 0 {
		ve.errorf("technique %q has a negative cost, damage or range", t.ID)
	}
	if t.Penetration < 0 || t.Penetration > 1 {
		ve.errorf("technique %q penetration %v is outside [0, 1]", t.ID, t.Penetration)
	}
	if t.Type == types.TechniqueAttack && t.BaseDamage == 0 {
		ve.warnf("attack technique %q deals no base damage", t.ID)
	}
	validateConditions("technique "+t.ID, t.Requirements, defs, ve)
}

func validateConditions(owner string, conditions []types.Condition, defs *state.Defs, ve *ValidationError) {
	for _, cond := range conditions {
		if !validConditionTypes[cond.Type] {
			ve.errorf("%s: unknown condition type %q", owner, cond.Type)
			continue
		}

		switch cond.Type {
		case "has_item":
			if item, _ := cond.Params["item"].(string); !has(defs.Items, item) {
				ve.errorf("%s: condition has_item references undefined item %q", owner, item)
			}
		case "knows":
			if tech, _ := cond.Params["technique"].(string); !has(defs.Techniques, tech) {
				ve.errorf("%s: condition knows references undefined technique %q", owner, tech)
			}
		case "at_location":
			if loc, _ := cond.Params["location"].(string); !has(defs.Locations, loc) {
				ve.errorf("%s: condition at_location references undefined location %q", owner, loc)
			}
		case "in_terrain":
			if t, _ := cond.Params["terrain"].(string); !validTerrain(types.TerrainType(t)) {
				ve.errorf("%s: condition in_terrain references unknown terrain %q", owner, t)
			}
		case "min_stat":
			name, _ := cond.Params["stat"].(string)
			if _, ok := state.Stat(types.Character{}, name); !ok {
				ve.errorf("%s: condition min_stat references unknown stat %q", owner, name)
			}
		case "not":
			if cond.Inner == nil {
				ve.errorf("%s: Not() without a condition", owner)
			} else {
				validateConditions(owner, []types.Condition{*cond.Inner}, defs, ve)
			}
		}
	}
}

func has[V any](m map[string]V, key string) bool {
	_, ok := m[key]
	return ok
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
