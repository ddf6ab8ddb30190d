package handlers

import (
	"context"
	"math"

	"github.com/nathoo/qicore/engine/authority"
	"github.com/nathoo/qicore/engine/body"
	"github.com/nathoo/qicore/engine/combat"
	"github.com/nathoo/qicore/engine/cultivation"
	"github.com/nathoo/qicore/engine/events"
	"github.com/nathoo/qicore/engine/fatigue"
	"github.com/nathoo/qicore/engine/fault"
	"github.com/nathoo/qicore/engine/state"
	"github.com/nathoo/qicore/engine/tables"
	"github.com/nathoo/qicore/types"
)

// DefaultHitPart takes damage that names no body part.
const DefaultHitPart = "torso"

// Combat handles attacks and damage in both directions.
func Combat(ctx context.Context, env *Env, req Request) (Outcome, error) {
	switch req.Event.Type {
	case events.CombatAttack:
		return attack(ctx, env, req)
	case events.CombatDamageTaken:
		return damageTaken(ctx, env, req)
	case events.CombatDamageDealt:
		return damageDealt(ctx, env, req)
	default:
		return Outcome{}, unsupported(req)
	}
}

// knownTechnique returns the definition and learned record of a technique
// the character knows.
func knownTechnique(op string, env *Env, s types.SessionState, id string) (types.Technique, types.LearnedTechnique, error) {
	tech, ok := env.Defs.Techniques[id]
	if !ok {
		return types.Technique{}, types.LearnedTechnique{}, fault.NotFound(op, "technique", id)
	}
	i := state.LearnedIndex(s, id)
	if i < 0 {
		return types.Technique{}, types.LearnedTechnique{}, fault.New(fault.CodeInvalidTransition, op,
			"%s has not been learned", tech.Name)
	}
	return tech, s.Techniques[i], nil
}

func attack(ctx context.Context, env *Env, req Request) (Outcome, error) {
	const op = "handlers.attack"
	p, err := events.Decode[*events.Attack](req.Event)
	if err != nil {
		return Outcome{}, err
	}
	return env.update(ctx, req, func(t *authority.Txn, b *builder) error {
		ch := t.State.Character
		tech, learned, err := knownTechnique(op, env, t.State, p.TechniqueID)
		if err != nil {
			return err
		}
		if ok, reason := fatigue.CanPerform(ch, tables.ActionTechnique); !ok {
			return fault.New(fault.CodeInsufficientResource, op, "cannot use %s: %s", tech.Name, reason)
		}
		spend := cultivation.Spend(ch, tech.QiCost)
		if !spend.OK {
			return fault.New(fault.CodeInsufficientResource, op,
				"%s needs %.1f Qi, have %.1f", tech.Name, tech.QiCost, ch.CurrentQi)
		}
		reach := combat.ResolveRange(tech, combat.Weapon{})
		if p.Distance > reach.Max {
			return fault.New(fault.CodeInvalidTransition, op,
				"target is %.1f away; %s reaches %.1f", p.Distance, tech.Name, reach.Max)
		}

		ar := combat.AttackDamage(tech, ch, p.Target, t.RNG())
		dealt := combat.DamageAtDistance(ar.Final, p.Distance, reach) * combat.MasteryBonus(learned.MasteryProgress)
		dealt = tables.Round2(dealt)

		fr := fatigue.ApplyAction(ch, tables.ActionTechnique, 1, tech.QiCost)
		d := types.CharacterDelta{
			AddQi:            spend.NewQi - ch.CurrentQi,
			AddFatigue:       fr.DeltaPhysical + tech.FatigueCost.Physical,
			AddMentalFatigue: fr.DeltaMental + tech.FatigueCost.Mental,
			LearnTechniques:  []types.LearnedTechnique{combat.MasteryGain(learned, dealt)},
		}
		if err := t.Apply(d); err != nil {
			return err
		}

		remaining := math.Max(0, p.Target.Health-dealt)
		b.emit("attack_resolved", map[string]any{
			"techniqueId":  tech.ID,
			"targetId":     p.Target.ID,
			"damage":       dealt,
			"critical":     ar.Critical,
			"distance":     p.Distance,
			"targetHealth": tables.Round2(remaining),
			"defeated":     remaining <= 0,
		})
		b.qi(t.State.Character)
		b.warnings(fatigue.Warnings(t.State.Character))
		target := p.Target.Name
		if target == "" {
			target = p.Target.ID
		}
		if ar.Critical {
			b.say("%s strikes %s critically for %.1f damage.", tech.Name, target, dealt)
		} else {
			b.say("%s strikes %s for %.1f damage.", tech.Name, target, dealt)
		}
		return nil
	})
}

// hurt damages one body part and keeps Health in step with the body.
// Severing and fatal wounds are critical.
func hurt(t *authority.Txn, b *builder, partID string, amount float64, dt body.DamageType) error {
	ch := t.State.Character
	nb, res, err := body.ApplyDamage(ch.Body, partID, amount, dt, t.State.Time.TotalMinutes)
	if err != nil {
		return err
	}
	d := types.CharacterDelta{
		SetBody:   &nb,
		AddHealth: res.OverallHealth - ch.Health,
		Critical:  res.Severed || res.Fatal,
	}
	if err := t.Apply(d); err != nil {
		return err
	}
	b.emit("damage_taken", map[string]any{
		"partId":        partID,
		"damageType":    string(dt),
		"applied":       tables.Round2(res.Applied),
		"hp":            tables.Round2(res.NewHP),
		"status":        string(res.NewStatus),
		"overallHealth": res.OverallHealth,
	})
	switch {
	case res.Fatal:
		b.emit("fatal_wound", map[string]any{"partId": partID})
		b.say("A fatal wound to the %s.", partID)
	case res.Severed:
		b.emit("limb_severed", map[string]any{"partId": partID, "severedAt": t.State.Time.TotalMinutes})
		b.say("Your %s is severed!", partID)
	default:
		b.say("You take %.1f damage to the %s.", res.Applied, partID)
	}
	return nil
}

func damageTaken(ctx context.Context, env *Env, req Request) (Outcome, error) {
	p, err := events.Decode[*events.DamageTaken](req.Event)
	if err != nil {
		return Outcome{}, err
	}
	part := p.PartID
	if part == "" {
		part = DefaultHitPart
	}
	return env.update(ctx, req, func(t *authority.Txn, b *builder) error {
		return hurt(t, b, part, p.Amount, body.DamageType(p.DamageType))
	})
}

func damageDealt(ctx context.Context, env *Env, req Request) (Outcome, error) {
	const op = "handlers.damageDealt"
	p, err := events.Decode[*events.DamageDealt](req.Event)
	if err != nil {
		return Outcome{}, err
	}
	return env.update(ctx, req, func(t *authority.Txn, b *builder) error {
		_, learned, err := knownTechnique(op, env, t.State, p.TechniqueID)
		if err != nil {
			return err
		}
		next := combat.MasteryGain(learned, p.Amount)
		if err := t.Apply(types.CharacterDelta{LearnTechniques: []types.LearnedTechnique{next}}); err != nil {
			return err
		}
		b.emit("mastery_progress", map[string]any{
			"techniqueId": p.TechniqueID,
			"targetId":    p.TargetID,
			"progress":    tables.Round2(next.MasteryProgress),
			"gained":      tables.Round2(next.MasteryProgress - learned.MasteryProgress),
		})
		return nil
	})
}
