package effects

import (
	"testing"

	"github.com/nathoo/qicore/engine/body"
	"github.com/nathoo/qicore/engine/fault"
	"github.com/nathoo/qicore/engine/state"
	"github.com/nathoo/qicore/types"
)

func testSession() types.SessionState {
	ch := state.DefaultCharacter("c1", "Lin")
	ch.CurrentQi = 500
	ch.Fatigue = 20
	ch.MentalFatigue = 20
	return state.NewSessionState(ch, types.Location{ID: "village"}, state.DefaultStartTime(),
		[]types.InventoryItem{{ItemID: "qi_pill", Quantity: 2}}, nil)
}

func ptr[T any](v T) *T { return &v }

func TestApply_Offsets(t *testing.T) {
	s := Apply(testSession(), types.CharacterDelta{AddQi: 100, AddFatigue: -5, AddStrength: 1})
	if s.Character.CurrentQi != 600 {
		t.Errorf("qi = %f, want 600", s.Character.CurrentQi)
	}
	if s.Character.Fatigue != 15 {
		t.Errorf("fatigue = %f, want 15", s.Character.Fatigue)
	}
	if s.Character.Strength != 11 {
		t.Errorf("strength = %f, want 11", s.Character.Strength)
	}
}

func TestApply_Clamps(t *testing.T) {
	s := Apply(testSession(), types.CharacterDelta{
		AddQi:            5000,
		AddFatigue:       500,
		AddMentalFatigue: -500,
		AddHealth:        50,
		AddUnderstanding: 99,
		AddAgility:       -99,
	})
	ch := s.Character
	if ch.CurrentQi != ch.CoreCapacity {
		t.Errorf("qi not clamped: %f", ch.CurrentQi)
	}
	if ch.Fatigue != 100 || ch.MentalFatigue != 0 {
		t.Errorf("fatigue not clamped: %f %f", ch.Fatigue, ch.MentalFatigue)
	}
	if ch.Health != 100 {
		t.Errorf("health not clamped: %f", ch.Health)
	}
	if ch.QiUnderstanding != ch.QiUnderstandingCap {
		t.Errorf("understanding not clamped: %f", ch.QiUnderstanding)
	}
	if ch.Agility != 0 {
		t.Errorf("agility not clamped: %f", ch.Agility)
	}
}

func TestApply_CoreFilled(t *testing.T) {
	s := Apply(testSession(), types.CharacterDelta{AddQi: 499.9999, SetCoreFilled: ptr(true)})
	if !s.Character.CoreFilled || s.Character.CurrentQi != 1000 {
		t.Errorf("expected filled core at capacity, got %+v", s.Character)
	}

	s = Apply(s, types.CharacterDelta{AddQi: -10})
	if s.Character.CoreFilled {
		t.Error("spending below capacity should clear the filled flag")
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	in := testSession()
	_ = Apply(in, types.CharacterDelta{
		AddQi:           1,
		SetInventory:    []types.InventoryItem{{ItemID: "sword", Quantity: 1}},
		LearnTechniques: []types.LearnedTechnique{{TechniqueID: "iron_palm"}},
	})
	if in.Character.CurrentQi != 500 || in.Inventory[0].ItemID != "qi_pill" || len(in.Techniques) != 0 {
		t.Errorf("input mutated: %+v", in)
	}
}

func TestApply_LearnUpserts(t *testing.T) {
	s := Apply(testSession(), types.CharacterDelta{LearnTechniques: []types.LearnedTechnique{{TechniqueID: "iron_palm"}}})
	s = Apply(s, types.CharacterDelta{LearnTechniques: []types.LearnedTechnique{{TechniqueID: "iron_palm", MasteryProgress: 5}}})
	if len(s.Techniques) != 1 || s.Techniques[0].MasteryProgress != 5 {
		t.Errorf("unexpected techniques %+v", s.Techniques)
	}
}

func TestCheckTransition(t *testing.T) {
	ch := state.DefaultCharacter("c1", "Lin")

	if err := CheckTransition(ch, types.CharacterDelta{AddQi: 5}); err != nil {
		t.Errorf("plain delta rejected: %v", err)
	}
	if err := CheckTransition(ch, types.CharacterDelta{SetSubLevel: ptr(1), Breakthrough: true}); err != nil {
		t.Errorf("one step rejected: %v", err)
	}
	err := CheckTransition(ch, types.CharacterDelta{SetSubLevel: ptr(1)})
	if !fault.Is(err, fault.CodeInvalidTransition) {
		t.Errorf("level change without breakthrough: %v", err)
	}
	err = CheckTransition(ch, types.CharacterDelta{SetLevel: ptr(3), Breakthrough: true})
	if !fault.Is(err, fault.CodeInvalidTransition) {
		t.Errorf("skipping levels: %v", err)
	}

	ch.CultivationSubLevel = 9
	if err := CheckTransition(ch, types.CharacterDelta{SetLevel: ptr(2), SetSubLevel: ptr(0), Breakthrough: true}); err != nil {
		t.Errorf("wrap to next level rejected: %v", err)
	}

	ch.CultivationLevel = 9
	err = CheckTransition(ch, types.CharacterDelta{SetLevel: ptr(10), SetSubLevel: ptr(0), Breakthrough: true})
	if !fault.Is(err, fault.CodeInvalidTransition) {
		t.Errorf("past the peak: %v", err)
	}
}

func TestMerge(t *testing.T) {
	a := types.CharacterDelta{AddQi: 10, SetLocationID: ptr("a"), LearnTechniques: []types.LearnedTechnique{{TechniqueID: "x"}}}
	b := types.CharacterDelta{AddQi: -3, SetLocationID: ptr("b"), Critical: true,
		LearnTechniques: []types.LearnedTechnique{{TechniqueID: "x", MasteryProgress: 2}, {TechniqueID: "y"}}}
	m := Merge(a, b)
	if m.AddQi != 7 || *m.SetLocationID != "b" || !m.Critical {
		t.Errorf("unexpected merge %+v", m)
	}
	if len(m.LearnTechniques) != 2 || m.LearnTechniques[0].MasteryProgress != 2 {
		t.Errorf("unexpected learned %+v", m.LearnTechniques)
	}
}

func TestDiff_RoundTrip(t *testing.T) {
	from := testSession()
	to := state.Clone(from)
	to.Character.CurrentQi = 750
	to.Character.Fatigue = 3
	to.Character.CultivationSubLevel = 1
	to.Character.CoreCapacity = 1060
	to.Character.LocationID = "peak"
	b, _, _ := body.ApplyDamage(to.Character.Body, "left_arm", 5, body.DamageSlash, 0)
	to.Character.Body = b
	to.Inventory = []types.InventoryItem{{ItemID: "qi_pill", Quantity: 1}}
	to.Techniques = []types.LearnedTechnique{{TechniqueID: "iron_palm", MasteryProgress: 1}}

	d := Diff(from, to)
	got := Apply(from, d)
	if got.Character.CurrentQi != 750 || got.Character.Fatigue != 3 || got.Character.CultivationSubLevel != 1 {
		t.Errorf("character not reproduced: %+v", got.Character)
	}
	if got.Character.LocationID != "peak" || got.Character.CoreCapacity != 1060 {
		t.Errorf("set fields not reproduced: %+v", got.Character)
	}
	if got.Character.Body.Parts[2].HP != to.Character.Body.Parts[2].HP {
		t.Error("body not reproduced")
	}
	if len(got.Inventory) != 1 || got.Inventory[0].Quantity != 1 {
		t.Errorf("inventory not reproduced: %+v", got.Inventory)
	}
	if len(got.Techniques) != 1 || got.Techniques[0].MasteryProgress != 1 {
		t.Errorf("techniques not reproduced: %+v", got.Techniques)
	}

	if !IsZero(Diff(from, from)) {
		t.Errorf("self diff should be zero: %+v", Diff(from, from))
	}
}

func TestInventory(t *testing.T) {
	inv := AddItem(nil, "qi_pill", 2)
	inv = AddItem(inv, "qi_pill", 1)
	inv = AddItem(inv, "salve", 1)
	if len(inv) != 2 || inv[0].Quantity != 3 {
		t.Fatalf("unexpected inventory %+v", inv)
	}

	inv, err := RemoveItem(inv, "salve", 1)
	if err != nil || len(inv) != 1 {
		t.Fatalf("remove salve: %v %+v", err, inv)
	}
	_, err = RemoveItem(inv, "qi_pill", 4)
	if !fault.Is(err, fault.CodeInsufficientResource) {
		t.Errorf("expected insufficient resource, got %v", err)
	}
	_, err = RemoveItem(inv, "sword", 1)
	if !fault.Is(err, fault.CodeInsufficientResource) {
		t.Errorf("expected insufficient resource, got %v", err)
	}
}
