package engine

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nathoo/qicore/engine/state"
	"github.com/nathoo/qicore/store"
	"github.com/nathoo/qicore/types"
)

func TestMain(m *testing.M) {
	if os.Getenv("DEBUG_TESTS") == "" {
		logrus.SetLevel(logrus.WarnLevel)
	}
	os.Exit(m.Run())
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// testDefs builds a small world: a sect hall and a forest five units away,
// two techniques, two items, a starting template and two scenes.
func testDefs() *state.Defs {
	defs := state.NewDefs()
	defs.World = types.WorldDef{Title: "Test World", Version: "1.0", Start: "hall"}
	defs.Locations["hall"] = types.Location{
		ID: "hall", Name: "Sect Hall", Description: "Incense hangs in the air.",
		TerrainType: types.TerrainSect, QiDensity: 1, Coordinates: &types.Coordinates{X: 0, Y: 0},
	}
	defs.Locations["wilds"] = types.Location{
		ID: "wilds", Name: "Dark Wilds", TerrainType: types.TerrainForest,
		QiDensity: 1.5, DistanceFromCenter: 200, Coordinates: &types.Coordinates{X: 3, Y: 4},
	}
	defs.Techniques["palm"] = types.Technique{
		ID: "palm", Name: "Iron Palm", Type: types.TechniqueAttack, Subtype: types.SubtypeBodyStrike,
		QiCost: 10, BaseDamage: 20,
	}
	defs.Techniques["breath"] = types.Technique{ID: "breath", Name: "Turtle Breath", Type: types.TechniqueCultivation}
	defs.Items["pill"] = types.Item{
		ID: "pill", Name: "Qi Pill", Kind: types.ItemConsumable,
		Effects: types.ItemEffects{QiRestore: 50},
	}
	defs.Items["ore"] = types.Item{ID: "ore", Name: "Iron Ore", Kind: types.ItemMaterial}
	defs.Characters["disciple"] = types.CharacterTemplate{
		ID:         "disciple",
		Name:       "Outer Disciple",
		Base:       types.Character{CurrentQi: 100},
		Inventory:  []types.InventoryItem{{ItemID: "pill", Quantity: 2}, {ItemID: "ore", Quantity: 1}},
		Techniques: []types.LearnedTechnique{{TechniqueID: "palm"}},
	}
	defs.Scenes["shrine"] = types.Scene{
		ID:          "shrine",
		Text:        "You kneel at the shrine{{if .Detail}} and {{.Detail}}{{end}}.",
		Requires:    []types.Condition{{Type: "at_location", Params: map[string]any{"location": "hall"}}},
		TimeAdvance: 30,
	}
	defs.Scenes["summit"] = types.Scene{
		ID:       "summit",
		Text:     "Wind howls across the summit.",
		Requires: []types.Condition{{Type: "at_location", Params: map[string]any{"location": "peak"}}},
	}
	return defs
}

func newTestKernel(t *testing.T) (*Kernel, *store.Memory) {
	t.Helper()
	repo := store.NewMemory()
	k := New(repo, testDefs(), Options{Seed: 7, Now: func() time.Time { return fixedNow }})
	t.Cleanup(func() { _ = k.Close(context.Background()) })
	return k, repo
}

// newLoaded creates and loads the character "lin".
func newLoaded(t *testing.T) *Kernel {
	t.Helper()
	k, _ := newTestKernel(t)
	ctx := context.Background()
	if _, err := k.NewCharacter(ctx, "lin", "disciple", "Lin"); err != nil {
		t.Fatalf("NewCharacter: %v", err)
	}
	if _, err := k.Load(ctx, "lin"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return k
}

func mustState(t *testing.T, k *Kernel) types.SessionState {
	t.Helper()
	s, err := k.State("lin")
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	return s
}

func hasCommand(res types.EventResult, typ string) bool {
	for _, c := range res.Commands {
		if c.Type == typ {
			return true
		}
	}
	return false
}

func errCode(res types.EventResult) string {
	if res.Error == nil {
		return ""
	}
	return res.Error.Code
}

func TestNewCharacter(t *testing.T) {
	k := newLoaded(t)
	s := mustState(t, k)

	if s.Character.Name != "Lin" {
		t.Errorf("name = %q, want Lin", s.Character.Name)
	}
	if s.Location.ID != "hall" {
		t.Errorf("location = %q, want hall", s.Location.ID)
	}
	if s.Character.CurrentQi != 100 {
		t.Errorf("qi = %v, want 100", s.Character.CurrentQi)
	}
	if len(s.Inventory) != 2 || !state.Knows(s, "palm") {
		t.Errorf("inventory = %v, techniques = %v", s.Inventory, s.Techniques)
	}

	ids, err := k.Characters(context.Background())
	if err != nil || len(ids) != 1 || ids[0] != "lin" {
		t.Errorf("Characters() = %v, %v", ids, err)
	}
}

func TestNewCharacterRequiresStart(t *testing.T) {
	k, _ := newTestKernel(t)
	k.Defs.World.Start = "nowhere"
	if _, err := k.NewCharacter(context.Background(), "lin", "", "Lin"); err == nil {
		t.Fatal("expected error for undefined start location")
	}
}

func TestStepRawEvent(t *testing.T) {
	k := newLoaded(t)
	res := k.Step(context.Background(), "", []byte(`{"type":"environment:time_passed","sessionId":"lin","minutes":30}`))

	if !res.Success {
		t.Fatalf("expected success, got %+v", res.Error)
	}
	if res.EventID == "" {
		t.Error("expected an assigned event id")
	}
	if got := mustState(t, k).Time.TotalMinutes; got != state.DefaultStartTime().TotalMinutes+30 {
		t.Errorf("total minutes = %d", got)
	}
}

func TestStepSessionOverride(t *testing.T) {
	k := newLoaded(t)
	res := k.Step(context.Background(), "lin", []byte(`{"type":"environment:time_passed","sessionId":"other","minutes":5}`))
	if !res.Success {
		t.Fatalf("expected success, got %+v", res.Error)
	}
}

func TestStepRejections(t *testing.T) {
	k := newLoaded(t)
	tests := []struct {
		name string
		raw  string
		code string
	}{
		{"malformed", `[1,2]`, "VALIDATION_ERROR"},
		{"unknown type", `{"type":"weather:rain","sessionId":"lin"}`, "VALIDATION_ERROR"},
		{"bad payload", `{"type":"environment:time_passed","sessionId":"lin","minutes":-3}`, "VALIDATION_ERROR"},
		{"not loaded", `{"type":"environment:time_passed","sessionId":"ghost","minutes":3}`, "SESSION_NOT_LOADED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := k.Step(context.Background(), "", []byte(tt.raw))
			if res.Success {
				t.Fatal("expected failure")
			}
			if errCode(res) != tt.code {
				t.Errorf("code = %q, want %q", errCode(res), tt.code)
			}
			if res.Commands == nil || len(res.Commands) != 0 {
				t.Errorf("commands = %v, want empty", res.Commands)
			}
		})
	}
}

func TestCommandViews(t *testing.T) {
	k := newLoaded(t)
	tests := []struct {
		input string
		want  []string
	}{
		{"look", []string{"Sect Hall", "Incense", "Dark Wilds (50 min)", "shrine"}},
		{"status", []string{"Lin, cultivation 1.0", "Qi 100/1000"}},
		{"i", []string{"Qi Pill x2", "Iron Ore"}},
		{"techniques", []string{"Iron Palm"}},
		{"help", []string{"breakthrough"}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			res := k.Command(context.Background(), "lin", tt.input)
			if !res.Success {
				t.Fatalf("expected success, got %+v", res.Error)
			}
			for _, w := range tt.want {
				if !strings.Contains(res.Message, w) {
					t.Errorf("message %q missing %q", res.Message, w)
				}
			}
		})
	}
	if strings.Contains(k.Command(context.Background(), "lin", "look").Message, "summit") {
		t.Error("locked scene listed")
	}
}

func TestCommandTravel(t *testing.T) {
	k := newLoaded(t)
	res := k.Command(context.Background(), "lin", "go to dark wilds")
	if !res.Success {
		t.Fatalf("expected success, got %+v", res.Error)
	}
	if res.Changes == nil || res.Changes.Location != "wilds" {
		t.Fatalf("changes = %+v", res.Changes)
	}
	if !hasCommand(res, "location_changed") {
		t.Error("missing location_changed command")
	}
	s := mustState(t, k)
	if s.Location.ID != "wilds" {
		t.Errorf("location = %q", s.Location.ID)
	}
	if got := s.Time.TotalMinutes - state.DefaultStartTime().TotalMinutes; got != 50 {
		t.Errorf("travel took %d minutes, want 50", got)
	}
}

func TestCommandTravelOverride(t *testing.T) {
	k := newLoaded(t)
	res := k.Command(context.Background(), "lin", "travel wilds 5 minutes")
	if !res.Success {
		t.Fatalf("expected success, got %+v", res.Error)
	}
	if got := mustState(t, k).Time.TotalMinutes - state.DefaultStartTime().TotalMinutes; got != 5 {
		t.Errorf("travel took %d minutes, want 5", got)
	}
}

func TestCommandUseItem(t *testing.T) {
	k := newLoaded(t)
	res := k.Command(context.Background(), "lin", "eat qi pill")
	if !res.Success {
		t.Fatalf("expected success, got %+v", res.Error)
	}
	s := mustState(t, k)
	if q := state.ItemQuantity(s, "pill"); q != 1 {
		t.Errorf("pills = %d, want 1", q)
	}
	if s.Character.CurrentQi != 150 {
		t.Errorf("qi = %v, want 150", s.Character.CurrentQi)
	}
}

func TestCommandDrop(t *testing.T) {
	k := newLoaded(t)
	res := k.Command(context.Background(), "lin", "drop ore")
	if !res.Success {
		t.Fatalf("expected success, got %+v", res.Error)
	}
	if state.HasItem(mustState(t, k), "ore") {
		t.Error("ore still carried")
	}
}

func TestCommandAttack(t *testing.T) {
	k := newLoaded(t)
	res := k.Command(context.Background(), "lin", "attack wolf with palm")
	if !res.Success {
		t.Fatalf("expected success, got %+v", res.Error)
	}
	if !hasCommand(res, "attack_resolved") {
		t.Errorf("commands = %v", res.Commands)
	}
	if got := mustState(t, k).Character.CurrentQi; got != 90 {
		t.Errorf("qi = %v, want 90", got)
	}
}

func TestCommandLearn(t *testing.T) {
	k := newLoaded(t)
	res := k.Command(context.Background(), "lin", "learn turtle breath")
	if !res.Success {
		t.Fatalf("expected success, got %+v", res.Error)
	}
	if !state.Knows(mustState(t, k), "breath") {
		t.Error("breath not learned")
	}
}

func TestCommandRejections(t *testing.T) {
	k := newLoaded(t)
	tests := []struct {
		input string
		code  string
	}{
		{"", "VALIDATION_ERROR"},
		{"dance wildly", "VALIDATION_ERROR"},
		{"use sword", "NOT_FOUND"},
		{"go to the moon", "NOT_FOUND"},
		{"attack wolf", "VALIDATION_ERROR"},
		{"attack wolf with turtle breath", "NOT_FOUND"},
		{"regenerate tail", "NOT_FOUND"},
		{"regenerate left arm", "INVALID_TRANSITION"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			res := k.Command(context.Background(), "lin", tt.input)
			if res.Success {
				t.Fatal("expected failure")
			}
			if errCode(res) != tt.code {
				t.Errorf("code = %q (%s), want %q", errCode(res), res.Error.Message, tt.code)
			}
		})
	}
}

func TestCommandNotLoaded(t *testing.T) {
	k, _ := newTestKernel(t)
	res := k.Command(context.Background(), "ghost", "look")
	if errCode(res) != "SESSION_NOT_LOADED" {
		t.Errorf("code = %q", errCode(res))
	}
}

func TestCommandNarrate(t *testing.T) {
	k := newLoaded(t)
	res := k.Command(context.Background(), "lin", "narrate shrine: offer incense")
	if !res.Success {
		t.Fatalf("expected success, got %+v", res.Error)
	}
	if !strings.Contains(res.Message, "You kneel at the shrine and offer incense.") {
		t.Errorf("message = %q", res.Message)
	}
	if got := mustState(t, k).Time.TotalMinutes - state.DefaultStartTime().TotalMinutes; got != 30 {
		t.Errorf("scene advanced %d minutes, want 30", got)
	}
	if h := k.History("lin"); len(h) != 1 {
		t.Errorf("history = %v", h)
	}

	locked := k.Command(context.Background(), "lin", "narrate summit")
	if errCode(locked) != "INVALID_TRANSITION" {
		t.Errorf("locked scene code = %q", errCode(locked))
	}
}

func TestCommandLogAndUnload(t *testing.T) {
	k := newLoaded(t)
	ctx := context.Background()
	k.Command(ctx, "lin", "look")
	k.Command(ctx, "lin", "wait 10")
	if got := k.CommandLog("lin"); len(got) != 2 || got[1] != "wait 10" {
		t.Errorf("log = %v", got)
	}
	if err := k.Unload(ctx, "lin"); err != nil {
		t.Fatalf("Unload: %v", err)
	}
	if len(k.CommandLog("lin")) != 0 {
		t.Error("log survived unload")
	}
}

func TestExportRestore(t *testing.T) {
	k := newLoaded(t)
	ctx := context.Background()
	k.Command(ctx, "lin", "eat pill")
	k.Command(ctx, "lin", "wait 45")

	data, err := k.Export("lin")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	want := mustState(t, k)

	other, _ := newTestKernel(t)
	id, err := other.Restore(ctx, data)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if id != "lin" {
		t.Fatalf("restored id = %q", id)
	}
	got, err := other.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Character.CurrentQi != want.Character.CurrentQi {
		t.Errorf("qi = %v, want %v", got.Character.CurrentQi, want.Character.CurrentQi)
	}
	if got.Time != want.Time {
		t.Errorf("time = %+v, want %+v", got.Time, want.Time)
	}
	if log := other.CommandLog(id); len(log) != 2 {
		t.Errorf("command log = %v", log)
	}

	if _, err := other.Restore(ctx, data); err == nil {
		t.Error("expected restore over a loaded session to fail")
	}
}

func TestFlushPersists(t *testing.T) {
	k, repo := newTestKernel(t)
	ctx := context.Background()
	if _, err := k.NewCharacter(ctx, "lin", "disciple", "Lin"); err != nil {
		t.Fatal(err)
	}
	if _, err := k.Load(ctx, "lin"); err != nil {
		t.Fatal(err)
	}
	k.Command(ctx, "lin", "eat pill")
	if err := k.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	rec, err := repo.LoadCharacter(ctx, "lin")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Character.CurrentQi != 150 {
		t.Errorf("stored qi = %v, want 150", rec.Character.CurrentQi)
	}
}
