// Package state holds the immutable content definitions and the helpers
// that build, copy and query session state.
package state

import (
	"sort"

	"github.com/nathoo/qicore/engine/body"
	"github.com/nathoo/qicore/types"
)

// Defs holds the immutable content loaded from a content pack.
type Defs struct {
	World      types.WorldDef
	Locations  map[string]types.Location
	Techniques map[string]types.Technique
	Items      map[string]types.Item
	Creatures  []types.CreatureTemplate
	Characters map[string]types.CharacterTemplate
	Scenes     map[string]types.Scene
}

// NewDefs returns empty definitions with all maps allocated.
func NewDefs() *Defs {
	return &Defs{
		Locations:  map[string]types.Location{},
		Techniques: map[string]types.Technique{},
		Items:      map[string]types.Item{},
		Characters: map[string]types.CharacterTemplate{},
		Scenes:     map[string]types.Scene{},
	}
}

// DefaultStartTime is the world time a session begins at when storage has
// no time record for it: the first day of the first year, 06:00.
func DefaultStartTime() types.WorldTime {
	return types.WorldTime{Year: 1, Month: 1, Day: 1, Hour: 6, TotalMinutes: 6 * 60}
}

// DefaultCharacter returns a fresh level 1.0 cultivator.
func DefaultCharacter(id, name string) types.Character {
	return types.Character{
		ID:                 id,
		Name:               name,
		CultivationLevel:   types.MinLevel,
		CoreCapacity:       1000,
		Health:             types.MaxHealth,
		Strength:           10,
		Agility:            10,
		Intelligence:       10,
		Conductivity:       1,
		QiUnderstandingCap: 10,
		Body:               body.NewHumanoid(),
	}
}

// NewCharacter builds a character from a content template. Zero-valued
// template fields fall back to DefaultCharacter. The second and third
// return values are the starting inventory and techniques.
func NewCharacter(defs *Defs, templateID, id, name string) (types.Character, []types.InventoryItem, []types.LearnedTechnique) {
	ch := DefaultCharacter(id, name)
	if defs == nil {
		return ch, nil, nil
	}
	ch.LocationID = defs.World.Start
	tpl, ok := defs.Characters[templateID]
	if !ok {
		return ch, nil, nil
	}
	b := tpl.Base
	if b.CultivationLevel > 0 {
		ch.CultivationLevel = b.CultivationLevel
		ch.CultivationSubLevel = b.CultivationSubLevel
	}
	if b.CoreCapacity > 0 {
		ch.CoreCapacity = b.CoreCapacity
	}
	ch.CurrentQi = min(b.CurrentQi, ch.CoreCapacity)
	setIfPositive(&ch.Strength, b.Strength)
	setIfPositive(&ch.Agility, b.Agility)
	setIfPositive(&ch.Intelligence, b.Intelligence)
	setIfPositive(&ch.Conductivity, b.Conductivity)
	setIfPositive(&ch.QiUnderstandingCap, b.QiUnderstandingCap)
	if b.LocationID != "" {
		ch.LocationID = b.LocationID
	}
	if name == "" {
		ch.Name = tpl.Name
	}
	inv := append([]types.InventoryItem(nil), tpl.Inventory...)
	techs := append([]types.LearnedTechnique(nil), tpl.Techniques...)
	return ch, inv, techs
}

func setIfPositive(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}

// NewSessionState assembles a session aggregate. The session id is the
// character id.
func NewSessionState(ch types.Character, loc types.Location, t types.WorldTime, inv []types.InventoryItem, techs []types.LearnedTechnique) types.SessionState {
	if inv == nil {
		inv = []types.InventoryItem{}
	}
	if techs == nil {
		techs = []types.LearnedTechnique{}
	}
	return types.SessionState{
		SessionID:  ch.ID,
		Character:  ch,
		Location:   loc,
		Time:       t,
		Inventory:  inv,
		Techniques: techs,
	}
}

// Clone deep-copies a session state so the copy can be mutated freely.
func Clone(s types.SessionState) types.SessionState {
	out := s
	out.Character.Body = body.Clone(s.Character.Body)
	out.Inventory = append([]types.InventoryItem{}, s.Inventory...)
	out.Techniques = append([]types.LearnedTechnique{}, s.Techniques...)
	if s.Location.Coordinates != nil {
		c := *s.Location.Coordinates
		out.Location.Coordinates = &c
	}
	return out
}

// ItemQuantity returns how many of itemID the session holds.
func ItemQuantity(s types.SessionState, itemID string) int {
	for _, it := range s.Inventory {
		if it.ItemID == itemID {
			return it.Quantity
		}
	}
	return 0
}

// HasItem reports whether the session holds at least one of itemID.
func HasItem(s types.SessionState, itemID string) bool {
	return ItemQuantity(s, itemID) > 0
}

// LearnedIndex returns the index of techniqueID in s.Techniques, or -1.
func LearnedIndex(s types.SessionState, techniqueID string) int {
	for i, t := range s.Techniques {
		if t.TechniqueID == techniqueID {
			return i
		}
	}
	return -1
}

// Knows reports whether the session has learned techniqueID.
func Knows(s types.SessionState, techniqueID string) bool {
	return LearnedIndex(s, techniqueID) >= 0
}

// Stat returns a named character attribute, for conditions and display.
func Stat(ch types.Character, name string) (float64, bool) {
	switch name {
	case "strength":
		return ch.Strength, true
	case "agility":
		return ch.Agility, true
	case "intelligence":
		return ch.Intelligence, true
	case "conductivity":
		return ch.Conductivity, true
	case "health":
		return ch.Health, true
	case "qi", "current_qi":
		return ch.CurrentQi, true
	case "fatigue":
		return ch.Fatigue, true
	case "mental_fatigue":
		return ch.MentalFatigue, true
	case "understanding":
		return ch.QiUnderstanding, true
	case "level":
		return float64(ch.CultivationLevel), true
	}
	return 0, false
}

// LocationIDs returns every location id in sorted order.
func LocationIDs(defs *Defs) []string {
	ids := make([]string, 0, len(defs.Locations))
	for id := range defs.Locations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
