// Package loader loads Lua content packs into Go structs at startup.
// The Lua VM is discarded after loading; nothing runs Lua at play time.
package loader

import (
	"fmt"
	"sort"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/qicore/engine/state"
	"github.com/nathoo/qicore/types"
)

// getString returns a string field from a Lua table, or "" if missing.
func getString(tbl *lua.LTable, key string) string {
	v := tbl.RawGetString(key)
	if s, ok := v.(lua.LString); ok {
		return string(s)
	}
	return ""
}

// getBool returns a bool field from a Lua table, or the default if missing.
func getBool(tbl *lua.LTable, key string, def bool) bool {
	v := tbl.RawGetString(key)
	if b, ok := v.(lua.LBool); ok {
		return bool(b)
	}
	return def
}

// getNumber returns a numeric field from a Lua table, or 0 if missing.
func getNumber(tbl *lua.LTable, key string) float64 {
	v := tbl.RawGetString(key)
	if n, ok := v.(lua.LNumber); ok {
		return float64(n)
	}
	return 0
}

// getInt returns an int field from a Lua table, or 0 if missing.
func getInt(tbl *lua.LTable, key string) int {
	return int(getNumber(tbl, key))
}

// getOptNumber returns a pointer to a numeric field, or nil if missing.
func getOptNumber(tbl *lua.LTable, key string) *float64 {
	v := tbl.RawGetString(key)
	if n, ok := v.(lua.LNumber); ok {
		f := float64(n)
		return &f
	}
	return nil
}

// getTable returns a table field from a Lua table, or nil if missing.
func getTable(tbl *lua.LTable, key string) *lua.LTable {
	v := tbl.RawGetString(key)
	if t, ok := v.(*lua.LTable); ok {
		return t
	}
	return nil
}

// getStrings returns the string elements of an array field.
func getStrings(tbl *lua.LTable, key string) []string {
	arr := getTable(tbl, key)
	if arr == nil {
		return nil
	}
	var out []string
	for i := 1; i <= arr.MaxN(); i++ {
		if s, ok := arr.RawGetInt(i).(lua.LString); ok {
			out = append(out, string(s))
		}
	}
	return out
}

// toGoValue converts a Lua value to a Go value recursively.
func toGoValue(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		f := float64(val)
		if f == float64(int(f)) {
			return int(f)
		}
		return f
	case *lua.LNilType:
		return nil
	case lua.LString:
		return string(val)
	case *lua.LTable:
		// Check if it's an array (sequential integer keys starting at 1).
		maxN := val.MaxN()
		if maxN > 0 {
			arr := make([]any, 0, maxN)
			for i := 1; i <= maxN; i++ {
				arr = append(arr, toGoValue(val.RawGetInt(i)))
			}
			return arr
		}
		m := map[string]any{}
		val.ForEach(func(k, v lua.LValue) {
			if ks, ok := k.(lua.LString); ok {
				m[string(ks)] = toGoValue(v)
			}
		})
		return m
	default:
		return nil
	}
}

// tableToFloatMap converts a Lua table to a map[string]float64.
func tableToFloatMap(tbl *lua.LTable) map[string]float64 {
	if tbl == nil {
		return nil
	}
	m := map[string]float64{}
	tbl.ForEach(func(k, v lua.LValue) {
		if ks, ok := k.(lua.LString); ok {
			if n, ok := v.(lua.LNumber); ok {
				m[string(ks)] = float64(n)
			}
		}
	})
	return m
}

// compile converts all collected Lua data into a Defs struct.
func compile(coll *collector) (*state.Defs, error) {
	defs := state.NewDefs()

	if coll.world == nil {
		return nil, fmt.Errorf("no World{} definition found")
	}
	defs.World = compileWorld(coll.world)

	seen := map[string]string{}
	for _, raw := range coll.defs {
		key := string(raw.kind) + ":" + raw.id
		if prev, dup := seen[key]; dup {
			return nil, fmt.Errorf("%s %q defined in both %s and %s", raw.kind, raw.id, prev, raw.file)
		}
		seen[key] = raw.file

		switch raw.kind {
		case kindLocation:
			defs.Locations[raw.id] = compileLocation(raw)
		case kindTechnique:
			defs.Techniques[raw.id] = compileTechnique(raw)
		case kindItem:
			defs.Items[raw.id] = compileItem(raw)
		case kindCreature:
			defs.Creatures = append(defs.Creatures, compileCreature(raw))
		case kindCharacter:
			defs.Characters[raw.id] = compileCharacter(raw)
		case kindScene:
			sc, err := compileScene(raw)
			if err != nil {
				return nil, fmt.Errorf("compiling scene %s: %w", raw.id, err)
			}
			defs.Scenes[raw.id] = sc
		}
	}

	// Creatures keep a stable order regardless of file layout.
	sort.Slice(defs.Creatures, func(i, j int) bool { return defs.Creatures[i].ID < defs.Creatures[j].ID })
	return defs, nil
}

func compileWorld(tbl *lua.LTable) types.WorldDef {
	return types.WorldDef{
		Title:    getString(tbl, "title"),
		Author:   getString(tbl, "author"),
		Version:  getString(tbl, "version"),
		Start:    getString(tbl, "start"),
		Homeland: getString(tbl, "homeland"),
	}
}

func compileLocation(raw rawDef) types.Location {
	tbl := raw.table
	loc := types.Location{
		ID:                 raw.id,
		Name:               getString(tbl, "name"),
		Description:        getString(tbl, "description"),
		TerrainType:        types.TerrainType(getString(tbl, "terrain")),
		QiDensity:          getNumber(tbl, "qi_density"),
		DistanceFromCenter: getNumber(tbl, "distance"),
	}
	if loc.Name == "" {
		loc.Name = raw.id
	}
	if loc.QiDensity == 0 {
		loc.QiDensity = 1
	}
	// Coordinates are optional: either both of x and y or neither.
	x, y := getOptNumber(tbl, "x"), getOptNumber(tbl, "y")
	if x != nil && y != nil {
		loc.Coordinates = &types.Coordinates{X: *x, Y: *y}
	}
	return loc
}

func compileTechnique(raw rawDef) types.Technique {
	tbl := raw.table
	t := types.Technique{
		ID:          raw.id,
		Name:        getString(tbl, "name"),
		Description: getString(tbl, "description"),
		Type:        types.TechniqueType(getString(tbl, "type")),
		Subtype:     types.TechniqueSubtype(getString(tbl, "subtype")),
		Element:     types.Element(getString(tbl, "element")),
		Rarity:      types.Rarity(getString(tbl, "rarity")),
		QiCost:      getNumber(tbl, "qi_cost"),
		BaseDamage:  getNumber(tbl, "base_damage"),
		Penetration: getNumber(tbl, "penetration"),
		Falloff:     getBool(tbl, "falloff", false),
		Range:       getNumber(tbl, "range"),
	}
	if t.Subtype == "" {
		t.Subtype = types.SubtypeNone
	}
	if t.Element == "" {
		t.Element = types.ElementNone
	}
	if t.Rarity == "" {
		t.Rarity = types.RarityCommon
	}
	if fc := getTable(tbl, "fatigue"); fc != nil {
		t.FatigueCost = types.FatigueCost{Physical: getNumber(fc, "physical"), Mental: getNumber(fc, "mental")}
	}
	if eff := getTable(tbl, "effects"); eff != nil {
		t.Effects = types.TechniqueEffects{
			Damage:        getOptNumber(eff, "damage"),
			Healing:       getOptNumber(eff, "healing"),
			QiRegen:       getOptNumber(eff, "qi_regen"),
			StatModifiers: tableToFloatMap(getTable(eff, "stats")),
		}
		if d := getOptNumber(eff, "duration"); d != nil {
			n := int(*d)
			t.Effects.Duration = &n
		}
	}
	if req := getTable(tbl, "requires"); req != nil {
		t.Requirements = compileConditions(req)
	}
	return t
}

func compileItem(raw rawDef) types.Item {
	tbl := raw.table
	it := types.Item{
		ID:          raw.id,
		Name:        getString(tbl, "name"),
		Description: getString(tbl, "description"),
		Kind:        types.ItemKind(getString(tbl, "kind")),
		Rarity:      types.Rarity(getString(tbl, "rarity")),
		Teaches:     getString(tbl, "teaches"),
	}
	if it.Rarity == "" {
		it.Rarity = types.RarityCommon
	}
	if eff := getTable(tbl, "effects"); eff != nil {
		it.Effects = types.ItemEffects{
			QiRestore:     getNumber(eff, "qi"),
			Heal:          getNumber(eff, "heal"),
			FatigueRelief: getNumber(eff, "fatigue"),
			MentalRelief:  getNumber(eff, "mental"),
		}
	}
	return it
}

func compileCreature(raw rawDef) types.CreatureTemplate {
	tbl := raw.table
	c := types.CreatureTemplate{
		ID:          raw.id,
		Name:        getString(tbl, "name"),
		Type:        types.InterruptionType(getString(tbl, "type")),
		MinDanger:   getInt(tbl, "min_danger"),
		Description: getString(tbl, "description"),
	}
	if c.Type == "" {
		c.Type = types.InterruptCreature
	}
	for _, t := range getStrings(tbl, "terrains") {
		c.Terrains = append(c.Terrains, types.TerrainType(t))
	}
	return c
}

func compileCharacter(raw rawDef) types.CharacterTemplate {
	tbl := raw.table
	tpl := types.CharacterTemplate{
		ID:   raw.id,
		Name: getString(tbl, "name"),
		Base: types.Character{
			Name:                getString(tbl, "name"),
			CultivationLevel:    getInt(tbl, "level"),
			CultivationSubLevel: getInt(tbl, "sub_level"),
			CoreCapacity:        getNumber(tbl, "core_capacity"),
			CurrentQi:           getNumber(tbl, "qi"),
			Strength:            getNumber(tbl, "strength"),
			Agility:             getNumber(tbl, "agility"),
			Intelligence:        getNumber(tbl, "intelligence"),
			Conductivity:        getNumber(tbl, "conductivity"),
			QiUnderstandingCap:  getNumber(tbl, "understanding_cap"),
			LocationID:          getString(tbl, "location"),
		},
	}
	// inventory = { qi_pill = 2 } in id order, for stable starting state.
	if inv := getTable(tbl, "inventory"); inv != nil {
		qty := tableToFloatMap(inv)
		ids := make([]string, 0, len(qty))
		for id := range qty {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			tpl.Inventory = append(tpl.Inventory, types.InventoryItem{ItemID: id, Quantity: int(qty[id])})
		}
	}
	for _, id := range getStrings(tbl, "techniques") {
		tpl.Techniques = append(tpl.Techniques, types.LearnedTechnique{TechniqueID: id})
	}
	return tpl
}

func compileScene(raw rawDef) (types.Scene, error) {
	tbl := raw.table
	sc := types.Scene{
		ID:          raw.id,
		Text:        getString(tbl, "text"),
		TimeAdvance: getInt(tbl, "time"),
	}
	if req := getTable(tbl, "requires"); req != nil {
		sc.Requires = compileConditions(req)
	}
	if upd := getTable(tbl, "update"); upd != nil {
		d, err := compileDelta(upd)
		if err != nil {
			return sc, err
		}
		sc.StateUpdate = &d
	}
	return sc, nil
}

// deltaFields maps scene update keys onto additive delta fields.
var deltaFields = map[string]func(*types.CharacterDelta, float64){
	"qi":            func(d *types.CharacterDelta, v float64) { d.AddQi = v },
	"fatigue":       func(d *types.CharacterDelta, v float64) { d.AddFatigue = v },
	"mental":        func(d *types.CharacterDelta, v float64) { d.AddMentalFatigue = v },
	"health":        func(d *types.CharacterDelta, v float64) { d.AddHealth = v },
	"understanding": func(d *types.CharacterDelta, v float64) { d.AddUnderstanding = v },
	"strength":      func(d *types.CharacterDelta, v float64) { d.AddStrength = v },
	"agility":       func(d *types.CharacterDelta, v float64) { d.AddAgility = v },
	"intelligence":  func(d *types.CharacterDelta, v float64) { d.AddIntelligence = v },
	"conductivity":  func(d *types.CharacterDelta, v float64) { d.AddConductivity = v },
}

func compileDelta(tbl *lua.LTable) (types.CharacterDelta, error) {
	var d types.CharacterDelta
	var err error
	tbl.ForEach(func(k, v lua.LValue) {
		key, ok := k.(lua.LString)
		if !ok || err != nil {
			return
		}
		set, known := deltaFields[string(key)]
		n, isNum := v.(lua.LNumber)
		switch {
		case !known:
			err = fmt.Errorf("unknown update field %q", string(key))
		case !isNum:
			err = fmt.Errorf("update field %q must be a number", string(key))
		default:
			set(&d, float64(n))
		}
	})
	return d, err
}

func compileConditions(tbl *lua.LTable) []types.Condition {
	var conditions []types.Condition
	for i := 1; i <= tbl.MaxN(); i++ {
		if condTbl, ok := tbl.RawGetInt(i).(*lua.LTable); ok {
			conditions = append(conditions, compileCondition(condTbl))
		}
	}
	return conditions
}

func compileCondition(tbl *lua.LTable) types.Condition {
	condType := getString(tbl, "type")

	if condType == "not" {
		if innerTbl := getTable(tbl, "inner"); innerTbl != nil {
			inner := compileCondition(innerTbl)
			return types.Condition{Type: "not", Inner: &inner}
		}
	}

	params := map[string]any{}
	tbl.ForEach(func(k, v lua.LValue) {
		if ks, ok := k.(lua.LString); ok {
			key := string(ks)
			if key != "type" {
				params[key] = toGoValue(v)
			}
		}
	})

	return types.Condition{
		Type:   condType,
		Params: params,
	}
}

// sortedLuaFiles returns .lua files with world.lua first and the rest
// sorted alphabetically.
func sortedLuaFiles(files []string) []string {
	var worldFile string
	var others []string
	for _, f := range files {
		if f == "world.lua" {
			worldFile = f
		} else {
			others = append(others, f)
		}
	}
	sort.Strings(others)
	if worldFile != "" {
		return append([]string{worldFile}, others...)
	}
	return others
}
