package state

import (
	"testing"

	"github.com/nathoo/qicore/types"
)

func testDefs() *Defs {
	defs := NewDefs()
	defs.World = types.WorldDef{Title: "Test World", Version: "0.1.0", Start: "village"}
	defs.Locations["village"] = types.Location{ID: "village", Name: "Village", TerrainType: types.TerrainCity, QiDensity: 1}
	defs.Locations["peak"] = types.Location{ID: "peak", Name: "Peak", TerrainType: types.TerrainMountain, QiDensity: 8}
	defs.Characters["disciple"] = types.CharacterTemplate{
		ID:   "disciple",
		Name: "Outer Disciple",
		Base: types.Character{CoreCapacity: 1200, CurrentQi: 5000, Strength: 14},
		Inventory: []types.InventoryItem{
			{ItemID: "qi_pill", Quantity: 2},
		},
		Techniques: []types.LearnedTechnique{{TechniqueID: "iron_palm"}},
	}
	return defs
}

func TestDefaultStartTime(t *testing.T) {
	st := DefaultStartTime()
	if st.Year != 1 || st.Month != 1 || st.Day != 1 || st.Hour != 6 || st.Minute != 0 {
		t.Errorf("unexpected start time %+v", st)
	}
	if st.TotalMinutes != 360 {
		t.Errorf("expected 360 total minutes, got %d", st.TotalMinutes)
	}
}

func TestNewCharacter_FromTemplate(t *testing.T) {
	ch, inv, techs := NewCharacter(testDefs(), "disciple", "c1", "")
	if ch.Name != "Outer Disciple" {
		t.Errorf("expected template name, got %q", ch.Name)
	}
	if ch.CoreCapacity != 1200 {
		t.Errorf("expected capacity 1200, got %f", ch.CoreCapacity)
	}
	if ch.CurrentQi != 1200 {
		t.Errorf("expected qi clamped to capacity, got %f", ch.CurrentQi)
	}
	if ch.Strength != 14 || ch.Agility != 10 {
		t.Errorf("unexpected stats str=%f agi=%f", ch.Strength, ch.Agility)
	}
	if ch.LocationID != "village" {
		t.Errorf("expected start location, got %q", ch.LocationID)
	}
	if len(inv) != 1 || len(techs) != 1 {
		t.Errorf("expected starting kit, got %v %v", inv, techs)
	}
	if len(ch.Body.Parts) != 6 {
		t.Errorf("expected humanoid body, got %d parts", len(ch.Body.Parts))
	}
}

func TestNewCharacter_UnknownTemplate(t *testing.T) {
	ch, inv, _ := NewCharacter(testDefs(), "nobody", "c2", "Lin")
	if ch.Name != "Lin" || ch.CultivationLevel != 1 {
		t.Errorf("expected defaults, got %+v", ch)
	}
	if inv != nil {
		t.Errorf("expected no inventory, got %v", inv)
	}
}

func TestClone_Independent(t *testing.T) {
	ch := DefaultCharacter("c1", "Lin")
	s := NewSessionState(ch, types.Location{ID: "village", Coordinates: &types.Coordinates{X: 1}}, DefaultStartTime(),
		[]types.InventoryItem{{ItemID: "qi_pill", Quantity: 1}}, nil)

	c := Clone(s)
	c.Inventory[0].Quantity = 9
	c.Character.Body.Parts[0].HP = 1
	c.Location.Coordinates.X = 5
	c.Techniques = append(c.Techniques, types.LearnedTechnique{TechniqueID: "x"})

	if s.Inventory[0].Quantity != 1 {
		t.Error("inventory shared with clone")
	}
	if s.Character.Body.Parts[0].HP == 1 {
		t.Error("body shared with clone")
	}
	if s.Location.Coordinates.X != 1 {
		t.Error("coordinates shared with clone")
	}
	if len(s.Techniques) != 0 {
		t.Error("techniques shared with clone")
	}
}

func TestSessionQueries(t *testing.T) {
	s := NewSessionState(DefaultCharacter("c1", "Lin"), types.Location{}, DefaultStartTime(),
		[]types.InventoryItem{{ItemID: "qi_pill", Quantity: 3}},
		[]types.LearnedTechnique{{TechniqueID: "iron_palm"}})

	if ItemQuantity(s, "qi_pill") != 3 || !HasItem(s, "qi_pill") {
		t.Error("expected 3 qi pills")
	}
	if HasItem(s, "sword") {
		t.Error("unexpected sword")
	}
	if !Knows(s, "iron_palm") || Knows(s, "beam") {
		t.Error("technique lookup wrong")
	}
	if s.SessionID != "c1" {
		t.Errorf("session id should be character id, got %q", s.SessionID)
	}
}

func TestStat(t *testing.T) {
	ch := DefaultCharacter("c1", "Lin")
	if v, ok := Stat(ch, "strength"); !ok || v != 10 {
		t.Errorf("strength = %f, %v", v, ok)
	}
	if v, ok := Stat(ch, "level"); !ok || v != 1 {
		t.Errorf("level = %f, %v", v, ok)
	}
	if _, ok := Stat(ch, "charisma"); ok {
		t.Error("unknown stat should not resolve")
	}
}

func TestLocationIDs_Sorted(t *testing.T) {
	ids := LocationIDs(testDefs())
	if len(ids) != 2 || ids[0] != "peak" || ids[1] != "village" {
		t.Errorf("unexpected ids %v", ids)
	}
}
