package save

import (
	"encoding/json"
	"testing"

	"github.com/nathoo/qicore/engine/body"
	"github.com/nathoo/qicore/types"
)

func TestEffects_RoundTrip(t *testing.T) {
	dmg, dur := 12.0, 3
	in := types.TechniqueEffects{Damage: &dmg, Duration: &dur, StatModifiers: map[string]float64{"agility": 2}}

	b, err := EncodeEffects(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var env map[string]any
	if err := json.Unmarshal(b, &env); err != nil {
		t.Fatalf("envelope: %v", err)
	}
	if env["v"] != float64(CodecVersion) || env["kind"] != KindEffects {
		t.Errorf("unexpected envelope %v", env)
	}

	out, err := DecodeEffects(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Damage == nil || *out.Damage != 12 || out.Duration == nil || *out.Duration != 3 {
		t.Errorf("effects mismatch: %+v", out)
	}
	if out.Healing != nil {
		t.Error("healing should stay unset")
	}
	if out.StatModifiers["agility"] != 2 {
		t.Errorf("modifiers mismatch: %v", out.StatModifiers)
	}
}

func TestEffects_MigratesV1(t *testing.T) {
	out, err := DecodeEffects([]byte(`{"damage": 5, "heal": 7}`))
	if err != nil {
		t.Fatalf("decode v1: %v", err)
	}
	if out.Healing == nil || *out.Healing != 7 {
		t.Errorf("heal not migrated: %+v", out)
	}

	out, err = DecodeEffects([]byte(`{"v":1,"kind":"effects","data":{"heal":2}}`))
	if err != nil {
		t.Fatalf("decode enveloped v1: %v", err)
	}
	if out.Healing == nil || *out.Healing != 2 {
		t.Errorf("enveloped heal not migrated: %+v", out)
	}
}

func TestDecode_Errors(t *testing.T) {
	if _, err := DecodeEffects([]byte(`{"v":9,"kind":"effects","data":{}}`)); err == nil {
		t.Error("expected error for future version")
	}
	b, _ := EncodeInventory(nil)
	if _, err := DecodeBody(b); err == nil {
		t.Error("expected kind mismatch error")
	}
	if _, err := DecodeTechniques([]byte(`{"v":2,"kind":"techniques","data":"nope"}`)); err == nil {
		t.Error("expected decode error")
	}
}

func TestDecode_Empty(t *testing.T) {
	inv, err := DecodeInventory(nil)
	if err != nil || inv == nil || len(inv) != 0 {
		t.Errorf("empty inventory: %v %v", inv, err)
	}
	ts, err := DecodeTechniques([]byte("null"))
	if err != nil || ts == nil {
		t.Errorf("null techniques: %v %v", ts, err)
	}
}

func TestBodyAndLists_RoundTrip(t *testing.T) {
	bs, _, _ := body.ApplyDamage(body.NewHumanoid(), "left_leg", 500, body.DamageSlash, 77)
	b, err := EncodeBody(bs)
	if err != nil {
		t.Fatalf("encode body: %v", err)
	}
	got, err := DecodeBody(b)
	if err != nil {
		t.Fatalf("decode body: %v", err)
	}
	leg := got.Parts[body.PartIndex(got, "left_leg")]
	if leg.Status != types.PartSevered || leg.SeveredAt != 77 || leg.Attached {
		t.Errorf("leg mismatch: %+v", leg)
	}

	ib, _ := EncodeInventory([]types.InventoryItem{{ItemID: "salve", Quantity: 4}})
	inv, err := DecodeInventory(ib)
	if err != nil || len(inv) != 1 || inv[0].Quantity != 4 {
		t.Errorf("inventory mismatch: %v %v", inv, err)
	}

	tb, _ := EncodeTechniques([]types.LearnedTechnique{{TechniqueID: "x", MasteryProgress: 3}})
	ts, err := DecodeTechniques(tb)
	if err != nil || len(ts) != 1 || ts[0].MasteryProgress != 3 {
		t.Errorf("techniques mismatch: %v %v", ts, err)
	}

	// Bare v1 lists still decode.
	inv, err = DecodeInventory([]byte(`[{"itemId":"qi_pill","quantity":1}]`))
	if err != nil || len(inv) != 1 {
		t.Errorf("bare inventory: %v %v", inv, err)
	}
}
