package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/qicore/engine/state"
)

type defKind string

const (
	kindLocation  defKind = "location"
	kindTechnique defKind = "technique"
	kindItem      defKind = "item"
	kindCreature  defKind = "creature"
	kindCharacter defKind = "character"
	kindScene     defKind = "scene"
)

// rawDef holds one definition table before compilation.
type rawDef struct {
	kind  defKind
	id    string
	table *lua.LTable
	file  string
}

// collector accumulates Lua definitions during file execution.
type collector struct {
	world *lua.LTable
	defs  []rawDef
	file  string
}

func (c *collector) add(kind defKind, id string, tbl *lua.LTable) {
	c.defs = append(c.defs, rawDef{kind: kind, id: id, table: tbl, file: c.file})
}

// Load reads all .lua files from dir, compiles them into content
// definitions, validates references, and returns the immutable Defs. The
// Lua VM is discarded after loading.
func Load(dir string) (*state.Defs, error) {
	defs, _, err := LoadWithWarnings(dir)
	return defs, err
}

// LoadWithWarnings is Load that also returns non-fatal findings.
func LoadWithWarnings(dir string) (*state.Defs, []string, error) {
	// Discover .lua files.
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading content directory %s: %w", dir, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".lua") {
			luaFiles = append(luaFiles, e.Name())
		}
	}
	if len(luaFiles) == 0 {
		return nil, nil, fmt.Errorf("no .lua files found in %s", dir)
	}

	// Sort: world.lua first, rest alphabetical.
	luaFiles = sortedLuaFiles(luaFiles)

	// Create sandboxed VM.
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	openSafeLibs(L)
	sandbox(L)

	coll := &collector{}
	registerAPI(L, coll)

	for _, f := range luaFiles {
		coll.file = f
		if err := L.DoFile(filepath.Join(dir, f)); err != nil {
			return nil, nil, fmt.Errorf("executing %s: %w", f, err)
		}
	}

	defs, err := compile(coll)
	if err != nil {
		return nil, nil, fmt.Errorf("compiling content: %w", err)
	}

	warnings, err := validate(defs)
	if err != nil {
		return nil, warnings, err
	}
	return defs, warnings, nil
}

// openSafeLibs opens only the safe subset of Lua standard libraries.
func openSafeLibs(L *lua.LState) {
	// Base library (print, type, tostring, tonumber, pairs, ipairs, etc.)
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// sandbox removes dangerous globals and functions.
func sandbox(L *lua.LState) {
	dangerous := []string{
		"dofile", "loadfile", "load", "loadstring",
		"rawset", "rawget", "rawequal",
		"collectgarbage", "require",
	}
	for _, name := range dangerous {
		L.SetGlobal(name, lua.LNil)
	}

	// Content may use math.random for variety, but never reseed it.
	if mathTbl := L.GetGlobal("math"); mathTbl != lua.LNil {
		if tbl, ok := mathTbl.(*lua.LTable); ok {
			tbl.RawSetString("randomseed", lua.LNil)
		}
	}
}
