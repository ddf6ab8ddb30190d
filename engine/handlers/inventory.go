package handlers

import (
	"context"

	"github.com/nathoo/qicore/engine/authority"
	"github.com/nathoo/qicore/engine/body"
	"github.com/nathoo/qicore/engine/effects"
	"github.com/nathoo/qicore/engine/events"
	"github.com/nathoo/qicore/engine/fault"
	"github.com/nathoo/qicore/engine/rules"
	"github.com/nathoo/qicore/engine/state"
	"github.com/nathoo/qicore/engine/tables"
	"github.com/nathoo/qicore/types"
)

// Inventory handles items and learning techniques.
func Inventory(ctx context.Context, env *Env, req Request) (Outcome, error) {
	switch req.Event.Type {
	case events.InventoryItemAdded:
		return itemAdded(ctx, env, req)
	case events.InventoryItemRemoved:
		return itemRemoved(ctx, env, req)
	case events.InventoryItemUsed:
		return itemUsed(ctx, env, req)
	case events.InventoryTechniqueLearned:
		return techniqueLearned(ctx, env, req)
	default:
		return Outcome{}, unsupported(req)
	}
}

func (e *Env) item(op, id string) (types.Item, error) {
	it, ok := e.Defs.Items[id]
	if !ok {
		return types.Item{}, fault.NotFound(op, "item", id)
	}
	return it, nil
}

func itemAdded(ctx context.Context, env *Env, req Request) (Outcome, error) {
	const op = "handlers.itemAdded"
	p, err := events.Decode[*events.ItemAdded](req.Event)
	if err != nil {
		return Outcome{}, err
	}
	it, err := env.item(op, p.ItemID)
	if err != nil {
		return Outcome{}, err
	}
	return env.update(ctx, req, func(t *authority.Txn, b *builder) error {
		inv := effects.AddItem(t.State.Inventory, it.ID, p.Quantity)
		if err := t.Apply(types.CharacterDelta{SetInventory: inv}); err != nil {
			return err
		}
		b.emit("item_added", map[string]any{
			"itemId":   it.ID,
			"name":     it.Name,
			"quantity": p.Quantity,
			"total":    state.ItemQuantity(t.State, it.ID),
		})
		b.say("You obtain %s x%d.", it.Name, p.Quantity)
		return nil
	})
}

func itemRemoved(ctx context.Context, env *Env, req Request) (Outcome, error) {
	p, err := events.Decode[*events.ItemRemoved](req.Event)
	if err != nil {
		return Outcome{}, err
	}
	return env.update(ctx, req, func(t *authority.Txn, b *builder) error {
		inv, err := effects.RemoveItem(t.State.Inventory, p.ItemID, p.Quantity)
		if err != nil {
			return err
		}
		if err := t.Apply(types.CharacterDelta{SetInventory: inv}); err != nil {
			return err
		}
		b.emit("item_removed", map[string]any{
			"itemId":   p.ItemID,
			"quantity": p.Quantity,
			"total":    state.ItemQuantity(t.State, p.ItemID),
		})
		return nil
	})
}

// itemUsed consumes one item. Consumables apply their effects; manuals
// teach their technique and are consumed only when learning succeeds.
func itemUsed(ctx context.Context, env *Env, req Request) (Outcome, error) {
	const op = "handlers.itemUsed"
	p, err := events.Decode[*events.ItemUsed](req.Event)
	if err != nil {
		return Outcome{}, err
	}
	it, err := env.item(op, p.ItemID)
	if err != nil {
		return Outcome{}, err
	}
	return env.update(ctx, req, func(t *authority.Txn, b *builder) error {
		inv, err := effects.RemoveItem(t.State.Inventory, it.ID, 1)
		if err != nil {
			return err
		}
		switch it.Kind {
		case types.ItemConsumable:
			return consume(t, b, it, inv)
		case types.ItemManual:
			tech, ok := env.Defs.Techniques[it.Teaches]
			if !ok {
				return fault.NotFound(op, "technique", it.Teaches)
			}
			if err := learn(op, t, b, tech); err != nil {
				return err
			}
			return t.Apply(types.CharacterDelta{SetInventory: inv})
		default:
			return fault.New(fault.CodeInvalidTransition, op, "%s cannot be used", it.Name)
		}
	})
}

func consume(t *authority.Txn, b *builder, it types.Item, inv []types.InventoryItem) error {
	ch := t.State.Character
	fx := it.Effects
	d := types.CharacterDelta{
		SetInventory:     inv,
		AddQi:            fx.QiRestore,
		AddFatigue:       -fx.FatigueRelief,
		AddMentalFatigue: -fx.MentalRelief,
	}
	var healed float64
	if fx.Heal > 0 {
		nb, restored := body.Heal(ch.Body, fx.Heal)
		healed = restored
		d.SetBody = &nb
		d.AddHealth = body.OverallHealth(nb) - ch.Health
	}
	if err := t.Apply(d); err != nil {
		return err
	}
	b.emit("item_used", map[string]any{
		"itemId":        it.ID,
		"name":          it.Name,
		"qiRestored":    tables.Round2(t.State.Character.CurrentQi - ch.CurrentQi),
		"healed":        tables.Round2(healed),
		"fatigueRelief": tables.Round2(ch.Fatigue - t.State.Character.Fatigue),
		"mentalRelief":  tables.Round2(ch.MentalFatigue - t.State.Character.MentalFatigue),
	})
	if fx.QiRestore > 0 {
		b.qi(t.State.Character)
	}
	b.say("You use %s.", it.Name)
	return nil
}

// learn records a new technique after checking its requirements.
func learn(op string, t *authority.Txn, b *builder, tech types.Technique) error {
	if state.Knows(t.State, tech.ID) {
		return fault.New(fault.CodeInvalidTransition, op, "%s is already known", tech.Name)
	}
	if ok, reason := rules.CanLearn(tech, t.State); !ok {
		return fault.New(fault.CodeInvalidTransition, op, "cannot learn %s: %s", tech.Name, reason)
	}
	lt := types.LearnedTechnique{TechniqueID: tech.ID}
	if err := t.Apply(types.CharacterDelta{LearnTechniques: []types.LearnedTechnique{lt}}); err != nil {
		return err
	}
	b.emit("technique_learned", map[string]any{
		"techniqueId": tech.ID,
		"name":        tech.Name,
		"type":        string(tech.Type),
		"element":     string(tech.Element),
	})
	b.say("You have learned %s.", tech.Name)
	return nil
}

func techniqueLearned(ctx context.Context, env *Env, req Request) (Outcome, error) {
	const op = "handlers.techniqueLearned"
	p, err := events.Decode[*events.TechniqueLearned](req.Event)
	if err != nil {
		return Outcome{}, err
	}
	tech, ok := env.Defs.Techniques[p.TechniqueID]
	if !ok {
		return Outcome{}, fault.NotFound(op, "technique", p.TechniqueID)
	}
	return env.update(ctx, req, func(t *authority.Txn, b *builder) error {
		return learn(op, t, b, tech)
	})
}
