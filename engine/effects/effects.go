// Package effects implements centralized state mutation. Every change to a
// session's character, inventory or techniques goes through Apply, which
// enforces the aggregate's invariants by clamping.
package effects

import (
	"math"
	"reflect"

	"github.com/nathoo/qicore/engine/fault"
	"github.com/nathoo/qicore/types"
)

// Apply applies a field-level delta to a session and returns the result.
// Set fields replace, Add fields offset; everything is clamped afterwards.
// Level transitions are not checked here; see CheckTransition.
func Apply(s types.SessionState, d types.CharacterDelta) types.SessionState {
	ch := &s.Character

	if d.SetLevel != nil {
		ch.CultivationLevel = *d.SetLevel
	}
	if d.SetSubLevel != nil {
		ch.CultivationSubLevel = *d.SetSubLevel
	}
	if d.SetCoreCapacity != nil {
		ch.CoreCapacity = *d.SetCoreCapacity
	}
	if d.SetLocationID != nil {
		ch.LocationID = *d.SetLocationID
	}
	if d.SetBody != nil {
		ch.Body = cloneBody(*d.SetBody)
	}

	ch.CurrentQi += d.AddQi
	ch.AccumulatedQi += d.AddAccumulatedQi
	ch.Fatigue += d.AddFatigue
	ch.MentalFatigue += d.AddMentalFatigue
	ch.Health += d.AddHealth
	ch.QiUnderstanding += d.AddUnderstanding
	ch.Strength += d.AddStrength
	ch.Agility += d.AddAgility
	ch.Intelligence += d.AddIntelligence
	ch.Conductivity += d.AddConductivity

	if d.SetCoreFilled != nil {
		ch.CoreFilled = *d.SetCoreFilled
		if ch.CoreFilled {
			ch.CurrentQi = ch.CoreCapacity
		}
	}

	if d.SetInventory != nil {
		s.Inventory = compact(d.SetInventory)
	}
	for _, lt := range d.LearnTechniques {
		s.Techniques = upsertTechnique(s.Techniques, lt)
	}

	clamp(ch)
	return s
}

// clamp enforces the character invariants.
func clamp(ch *types.Character) {
	ch.CultivationLevel = max(types.MinLevel, min(types.MaxLevel, ch.CultivationLevel))
	ch.CultivationSubLevel = max(0, min(types.MaxSubLevel, ch.CultivationSubLevel))
	ch.CoreCapacity = math.Max(0, ch.CoreCapacity)
	ch.CurrentQi = bound(ch.CurrentQi, 0, ch.CoreCapacity)
	ch.AccumulatedQi = math.Max(0, ch.AccumulatedQi)
	ch.Fatigue = bound(ch.Fatigue, 0, types.MaxFatigue)
	ch.MentalFatigue = bound(ch.MentalFatigue, 0, types.MaxFatigue)
	ch.Health = bound(ch.Health, 0, types.MaxHealth)
	ch.QiUnderstandingCap = math.Max(0, ch.QiUnderstandingCap)
	ch.QiUnderstanding = bound(ch.QiUnderstanding, 0, ch.QiUnderstandingCap)
	ch.Strength = math.Max(0, ch.Strength)
	ch.Agility = math.Max(0, ch.Agility)
	ch.Intelligence = math.Max(0, ch.Intelligence)
	ch.Conductivity = math.Max(0, ch.Conductivity)
	if ch.CurrentQi < ch.CoreCapacity {
		ch.CoreFilled = false
	}
}

func bound(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// CheckTransition rejects deltas that move cultivation other than by one
// breakthrough step. A delta that touches level or sub-level must carry the
// Breakthrough flag and land exactly on the next step.
func CheckTransition(ch types.Character, d types.CharacterDelta) error {
	const op = "effects.CheckTransition"
	if d.SetLevel == nil && d.SetSubLevel == nil {
		if d.Breakthrough {
			return fault.New(fault.CodeInvalidTransition, op, "breakthrough without a level change")
		}
		return nil
	}
	level, sub := ch.CultivationLevel, ch.CultivationSubLevel
	if d.SetLevel != nil {
		level = *d.SetLevel
	}
	if d.SetSubLevel != nil {
		sub = *d.SetSubLevel
	}
	nextLevel, nextSub := ch.CultivationLevel, ch.CultivationSubLevel+1
	if nextSub > types.MaxSubLevel {
		nextLevel, nextSub = nextLevel+1, 0
	}
	if !d.Breakthrough {
		return fault.New(fault.CodeInvalidTransition, op, "cultivation changes only through breakthrough")
	}
	if level != nextLevel || sub != nextSub || nextLevel > types.MaxLevel {
		return fault.New(fault.CodeInvalidTransition, op,
			"cannot move from %d.%d to %d.%d", ch.CultivationLevel, ch.CultivationSubLevel, level, sub)
	}
	return nil
}

// Merge combines two deltas so that applying the result is equivalent to
// applying a then b, ignoring clamping. Later Set fields win.
func Merge(a, b types.CharacterDelta) types.CharacterDelta {
	out := a
	if b.SetLevel != nil {
		out.SetLevel = b.SetLevel
	}
	if b.SetSubLevel != nil {
		out.SetSubLevel = b.SetSubLevel
	}
	if b.SetCoreCapacity != nil {
		out.SetCoreCapacity = b.SetCoreCapacity
	}
	if b.SetCoreFilled != nil {
		out.SetCoreFilled = b.SetCoreFilled
	}
	if b.SetLocationID != nil {
		out.SetLocationID = b.SetLocationID
	}
	if b.SetBody != nil {
		out.SetBody = b.SetBody
	}
	if b.SetInventory != nil {
		out.SetInventory = b.SetInventory
	}
	out.AddQi += b.AddQi
	out.AddAccumulatedQi += b.AddAccumulatedQi
	out.AddFatigue += b.AddFatigue
	out.AddMentalFatigue += b.AddMentalFatigue
	out.AddHealth += b.AddHealth
	out.AddUnderstanding += b.AddUnderstanding
	out.AddStrength += b.AddStrength
	out.AddAgility += b.AddAgility
	out.AddIntelligence += b.AddIntelligence
	out.AddConductivity += b.AddConductivity
	out.LearnTechniques = nil
	for _, lt := range a.LearnTechniques {
		out.LearnTechniques = upsertTechnique(out.LearnTechniques, lt)
	}
	for _, lt := range b.LearnTechniques {
		out.LearnTechniques = upsertTechnique(out.LearnTechniques, lt)
	}
	out.Breakthrough = a.Breakthrough || b.Breakthrough
	out.Critical = a.Critical || b.Critical
	return out
}

// Diff returns the delta that turns from into to. Applying it to from
// reproduces to's character, inventory and techniques.
func Diff(from, to types.SessionState) types.CharacterDelta {
	a, b := from.Character, to.Character
	var d types.CharacterDelta
	if a.CultivationLevel != b.CultivationLevel {
		v := b.CultivationLevel
		d.SetLevel = &v
		d.Breakthrough = true
	}
	if a.CultivationSubLevel != b.CultivationSubLevel {
		v := b.CultivationSubLevel
		d.SetSubLevel = &v
		d.Breakthrough = true
	}
	if a.CoreCapacity != b.CoreCapacity {
		v := b.CoreCapacity
		d.SetCoreCapacity = &v
	}
	if a.CoreFilled != b.CoreFilled {
		v := b.CoreFilled
		d.SetCoreFilled = &v
	}
	if a.LocationID != b.LocationID {
		v := b.LocationID
		d.SetLocationID = &v
	}
	if !reflect.DeepEqual(a.Body, b.Body) {
		v := cloneBody(b.Body)
		d.SetBody = &v
	}
	d.AddQi = b.CurrentQi - a.CurrentQi
	d.AddAccumulatedQi = b.AccumulatedQi - a.AccumulatedQi
	d.AddFatigue = b.Fatigue - a.Fatigue
	d.AddMentalFatigue = b.MentalFatigue - a.MentalFatigue
	d.AddHealth = b.Health - a.Health
	d.AddUnderstanding = b.QiUnderstanding - a.QiUnderstanding
	d.AddStrength = b.Strength - a.Strength
	d.AddAgility = b.Agility - a.Agility
	d.AddIntelligence = b.Intelligence - a.Intelligence
	d.AddConductivity = b.Conductivity - a.Conductivity

	if !sameInventory(from.Inventory, to.Inventory) {
		d.SetInventory = append([]types.InventoryItem{}, to.Inventory...)
	}
	for _, lt := range to.Techniques {
		i := indexTechnique(from.Techniques, lt.TechniqueID)
		if i < 0 || from.Techniques[i].MasteryProgress != lt.MasteryProgress {
			d.LearnTechniques = append(d.LearnTechniques, lt)
		}
	}
	return d
}

// IsZero reports whether a delta changes nothing.
func IsZero(d types.CharacterDelta) bool {
	return reflect.DeepEqual(d, types.CharacterDelta{})
}

// AddItem adds quantity of itemID to the inventory and returns a new slice.
func AddItem(inv []types.InventoryItem, itemID string, quantity int) []types.InventoryItem {
	out := append([]types.InventoryItem{}, inv...)
	if quantity <= 0 {
		return out
	}
	for i := range out {
		if out[i].ItemID == itemID {
			out[i].Quantity += quantity
			return out
		}
	}
	return append(out, types.InventoryItem{ItemID: itemID, Quantity: quantity})
}

// RemoveItem removes quantity of itemID. Removing more than is held fails
// and leaves the inventory untouched.
func RemoveItem(inv []types.InventoryItem, itemID string, quantity int) ([]types.InventoryItem, error) {
	const op = "effects.RemoveItem"
	for i := range inv {
		if inv[i].ItemID != itemID {
			continue
		}
		if inv[i].Quantity < quantity {
			return inv, fault.New(fault.CodeInsufficientResource, op,
				"have %d %s, need %d", inv[i].Quantity, itemID, quantity)
		}
		out := append([]types.InventoryItem{}, inv...)
		out[i].Quantity -= quantity
		return compact(out), nil
	}
	return inv, fault.New(fault.CodeInsufficientResource, op, "no %s in inventory", itemID)
}

// compact drops empty stacks.
func compact(inv []types.InventoryItem) []types.InventoryItem {
	out := make([]types.InventoryItem, 0, len(inv))
	for _, it := range inv {
		if it.Quantity > 0 {
			out = append(out, it)
		}
	}
	return out
}

func sameInventory(a, b []types.InventoryItem) bool {
	return reflect.DeepEqual(compact(a), compact(b))
}

func indexTechnique(ts []types.LearnedTechnique, id string) int {
	for i, t := range ts {
		if t.TechniqueID == id {
			return i
		}
	}
	return -1
}

func upsertTechnique(ts []types.LearnedTechnique, lt types.LearnedTechnique) []types.LearnedTechnique {
	out := append([]types.LearnedTechnique{}, ts...)
	if i := indexTechnique(out, lt.TechniqueID); i >= 0 {
		out[i] = lt
		return out
	}
	return append(out, lt)
}

func cloneBody(b types.BodyStructure) types.BodyStructure {
	out := types.BodyStructure{}
	if b.Parts != nil {
		out.Parts = append([]types.BodyPart(nil), b.Parts...)
	}
	if b.Attachments != nil {
		out.Attachments = append([]types.LimbAttachment(nil), b.Attachments...)
	}
	return out
}
