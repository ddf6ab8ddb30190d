package loader

import (
	lua "github.com/yuin/gopher-lua"
)

// registerAPI registers all Lua constructors and helpers as globals.
func registerAPI(L *lua.LState, coll *collector) {
	registerConstructors(L, coll)
	registerConditionHelpers(L)
}

// curried registers Kind "id" { ... }: Kind("id") returns a function that
// takes the definition table.
func curried(L *lua.LState, name string, add func(id string, tbl *lua.LTable)) {
	L.SetGlobal(name, L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			add(id, L.CheckTable(1))
			return 0
		}))
		return 1
	}))
}

func registerConstructors(L *lua.LState, coll *collector) {
	// World { title = "...", start = "...", ... }
	L.SetGlobal("World", L.NewFunction(func(L *lua.LState) int {
		coll.world = L.CheckTable(1)
		return 0
	}))

	curried(L, "Location", func(id string, tbl *lua.LTable) {
		coll.add(kindLocation, id, tbl)
	})
	curried(L, "Technique", func(id string, tbl *lua.LTable) {
		coll.add(kindTechnique, id, tbl)
	})
	curried(L, "Item", func(id string, tbl *lua.LTable) {
		coll.add(kindItem, id, tbl)
	})
	curried(L, "Creature", func(id string, tbl *lua.LTable) {
		coll.add(kindCreature, id, tbl)
	})
	curried(L, "Character", func(id string, tbl *lua.LTable) {
		coll.add(kindCharacter, id, tbl)
	})
	curried(L, "Scene", func(id string, tbl *lua.LTable) {
		coll.add(kindScene, id, tbl)
	})
}

// condition builds a condition table from a type and named arguments.
func condition(L *lua.LState, typ string, kv ...any) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetString("type", lua.LString(typ))
	for i := 0; i+1 < len(kv); i += 2 {
		tbl.RawSetString(kv[i].(string), kv[i+1].(lua.LValue))
	}
	return tbl
}

func registerConditionHelpers(L *lua.LState) {
	// MinLevel(level, sub)
	L.SetGlobal("MinLevel", L.NewFunction(func(L *lua.LState) int {
		level := L.CheckNumber(1)
		sub := L.OptNumber(2, 0)
		L.Push(condition(L, "min_level", "level", level, "sub", sub))
		return 1
	}))

	// MinStat("strength", 20)
	L.SetGlobal("MinStat", L.NewFunction(func(L *lua.LState) int {
		stat := L.CheckString(1)
		value := L.CheckNumber(2)
		L.Push(condition(L, "min_stat", "stat", lua.LString(stat), "value", value))
		return 1
	}))

	// HasItem("spirit_herb", 3)
	L.SetGlobal("HasItem", L.NewFunction(func(L *lua.LState) int {
		item := L.CheckString(1)
		qty := L.OptNumber(2, 1)
		L.Push(condition(L, "has_item", "item", lua.LString(item), "quantity", qty))
		return 1
	}))

	// Knows("iron_palm")
	L.SetGlobal("Knows", L.NewFunction(func(L *lua.LState) int {
		tech := L.CheckString(1)
		L.Push(condition(L, "knows", "technique", lua.LString(tech)))
		return 1
	}))

	// AtLocation("outer_court")
	L.SetGlobal("AtLocation", L.NewFunction(func(L *lua.LState) int {
		loc := L.CheckString(1)
		L.Push(condition(L, "at_location", "location", lua.LString(loc)))
		return 1
	}))

	// InTerrain("forest")
	L.SetGlobal("InTerrain", L.NewFunction(func(L *lua.LState) int {
		terrain := L.CheckString(1)
		L.Push(condition(L, "in_terrain", "terrain", lua.LString(terrain)))
		return 1
	}))

	// MaxDanger(3)
	L.SetGlobal("MaxDanger", L.NewFunction(func(L *lua.LState) int {
		L.Push(condition(L, "max_danger", "value", L.CheckNumber(1)))
		return 1
	}))

	// MinUnderstanding(5)
	L.SetGlobal("MinUnderstanding", L.NewFunction(func(L *lua.LState) int {
		L.Push(condition(L, "min_understanding", "value", L.CheckNumber(1)))
		return 1
	}))

	// Not(condition)
	L.SetGlobal("Not", L.NewFunction(func(L *lua.LState) int {
		inner := L.CheckTable(1)
		L.Push(condition(L, "not", "inner", inner))
		return 1
	}))
}
