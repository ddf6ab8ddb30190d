package handlers

import (
	"context"

	"github.com/nathoo/qicore/engine/authority"
	"github.com/nathoo/qicore/engine/cultivation"
	"github.com/nathoo/qicore/engine/events"
	"github.com/nathoo/qicore/engine/fatigue"
	"github.com/nathoo/qicore/engine/fault"
	"github.com/nathoo/qicore/engine/interrupt"
	"github.com/nathoo/qicore/engine/tables"
	"github.com/nathoo/qicore/types"
)

// Environment handles time, meditation, rest and breakthroughs.
func Environment(ctx context.Context, env *Env, req Request) (Outcome, error) {
	switch req.Event.Type {
	case events.EnvironmentTimePassed:
		return timePassed(ctx, env, req)
	case events.EnvironmentMeditate:
		return meditate(ctx, env, req)
	case events.EnvironmentRest:
		return rest(ctx, env, req)
	case events.EnvironmentBreakthrough:
		return breakthrough(ctx, env, req)
	case events.EnvironmentStoryUpdate:
		return storyUpdate(ctx, env, req)
	default:
		return Outcome{}, unsupported(req)
	}
}

// passTime applies passive Qi generation and fatigue recovery for ordinary
// time, then advances the clock.
func passTime(t *authority.Txn, minutes int) error {
	ch := t.State.Character
	m := float64(minutes)
	d := fatigue.PassiveRecovery(ch, m).Delta()
	d.AddQi = cultivation.PassiveRegen(ch, m)
	if err := t.Apply(d); err != nil {
		return err
	}
	t.AdvanceTime(minutes)
	return nil
}

func timePassed(ctx context.Context, env *Env, req Request) (Outcome, error) {
	p, err := events.Decode[*events.TimePassed](req.Event)
	if err != nil {
		return Outcome{}, err
	}
	return env.update(ctx, req, func(t *authority.Txn, b *builder) error {
		if err := passTime(t, p.Minutes); err != nil {
			return err
		}
		b.qi(t.State.Character)
		b.say("%d minutes pass.", p.Minutes)
		return nil
	})
}

func meditate(ctx context.Context, env *Env, req Request) (Outcome, error) {
	const op = "handlers.meditate"
	p, err := events.Decode[*events.Meditate](req.Event)
	if err != nil {
		return Outcome{}, err
	}
	return env.update(ctx, req, func(t *authority.Txn, b *builder) error {
		ch := t.State.Character
		if ok, reason := fatigue.CanPerform(ch, tables.ActionMeditate); !ok {
			return fault.New(fault.CodeInsufficientResource, op, "cannot meditate: %s", reason)
		}

		kind := cultivation.MeditationKind(p.Kind)
		res := cultivation.Meditate(ch, t.State.Location, float64(p.Minutes), kind)
		ir := interrupt.CheckInterruption(interrupt.Request{
			Character:          ch,
			Location:           t.State.Location,
			Time:               t.State.Time,
			Minutes:            p.Minutes,
			PassiveReduction:   interrupt.PassiveReduction(t.State.Techniques, env.Defs.Techniques),
			FormationReduction: p.Formation,
			QiPerMinute:        (res.QiGained + res.AccumulatedQiGained) / float64(p.Minutes),
			Pool:               env.Defs.Creatures,
		}, t.RNG())

		minutes := p.Minutes
		if ir.Interrupted {
			minutes = ir.ElapsedMinutes
			res = res.Scale(float64(minutes))
		}
		wasFilled := ch.CoreFilled
		if err := t.Apply(res.Delta()); err != nil {
			return err
		}
		t.AdvanceTime(minutes)

		after := t.State.Character
		b.qi(after)
		data := map[string]any{
			"minutes":             minutes,
			"kind":                string(kindOrStandard(kind)),
			"qiGained":            tables.Round2(res.QiGained),
			"accumulatedQiGained": tables.Round2(res.AccumulatedQiGained),
			"understandingGained": tables.Round2(res.UnderstandingGained),
			"chance":              ir.FinalChance,
		}
		if ir.Interrupted {
			data["interruption"] = ir.Event
			b.emit("meditation_interrupted", data)
			b.say("Your meditation is broken after %d minutes: %s.", minutes, ir.Event.Name)
		} else {
			b.emit("meditation_complete", data)
			b.say("You meditate for %d minutes and gather %.1f Qi.", minutes, res.QiGained+res.AccumulatedQiGained)
		}
		if after.CoreFilled && !wasFilled {
			b.emit("core_filled", map[string]any{"capacity": after.CoreCapacity})
		}
		b.warnings(fatigue.Warnings(after))
		return nil
	})
}

func kindOrStandard(k cultivation.MeditationKind) cultivation.MeditationKind {
	if k == "" {
		return cultivation.MeditationStandard
	}
	return k
}

func rest(ctx context.Context, env *Env, req Request) (Outcome, error) {
	p, err := events.Decode[*events.Rest](req.Event)
	if err != nil {
		return Outcome{}, err
	}
	action := tables.ActionRest
	if p.Sleep {
		action = tables.ActionSleep
	}
	return env.update(ctx, req, func(t *authority.Txn, b *builder) error {
		ch := t.State.Character
		m := float64(p.Minutes)
		fr := fatigue.ApplyAction(ch, action, m, 0)
		d := fr.Delta()
		d.AddQi = cultivation.PassiveRegen(ch, m)
		if err := t.Apply(d); err != nil {
			return err
		}
		t.AdvanceTime(p.Minutes)

		b.emit("rest_complete", map[string]any{
			"minutes":       p.Minutes,
			"sleep":         p.Sleep,
			"fatigue":       tables.Round2(fr.NewPhysical),
			"mentalFatigue": tables.Round2(fr.NewMental),
		})
		b.warnings(fr.Warnings)
		b.say("You %s for %d minutes.", action, p.Minutes)
		return nil
	})
}

func breakthrough(ctx context.Context, env *Env, req Request) (Outcome, error) {
	const op = "handlers.breakthrough"
	return env.update(ctx, req, func(t *authority.Txn, b *builder) error {
		ch := t.State.Character
		res := cultivation.AttemptBreakthrough(ch)
		if !res.Success {
			return fault.New(fault.CodeInvalidTransition, op, "%s", res.Reason)
		}
		if err := t.Apply(res.Delta()); err != nil {
			return err
		}
		label := cultivation.LevelLabel(res.NewLevel, res.NewSubLevel)
		b.emit("breakthrough", map[string]any{
			"from":       cultivation.LevelLabel(ch.CultivationLevel, ch.CultivationSubLevel),
			"to":         label,
			"level":      res.NewLevel,
			"subLevel":   res.NewSubLevel,
			"capacity":   res.NewCoreCapacity,
			"qiConsumed": tables.Round2(res.QiConsumed),
			"majorLevel": res.NewSubLevel == 0,
		})
		b.qi(t.State.Character)
		b.say("You break through to %s.", label)
		return nil
	})
}

// storyUpdate applies generator output. Granted items must exist and
// granted techniques are learned under their usual requirements.
func storyUpdate(ctx context.Context, env *Env, req Request) (Outcome, error) {
	const op = "handlers.storyUpdate"
	p, err := events.Decode[*events.StoryUpdate](req.Event)
	if err != nil {
		return Outcome{}, err
	}
	var (
		d     types.CharacterDelta
		techs []types.Technique
	)
	if p.StateUpdate != nil {
		d = *p.StateUpdate
		for _, lt := range d.LearnTechniques {
			tech, ok := env.Defs.Techniques[lt.TechniqueID]
			if !ok {
				return Outcome{}, fault.NotFound(op, "technique", lt.TechniqueID)
			}
			techs = append(techs, tech)
		}
		d.LearnTechniques = nil
		for _, it := range d.SetInventory {
			if _, err := env.item(op, it.ItemID); err != nil {
				return Outcome{}, err
			}
		}
	}
	return env.update(ctx, req, func(t *authority.Txn, b *builder) error {
		if p.StateUpdate != nil {
			if err := t.Apply(d); err != nil {
				return err
			}
			for _, tech := range techs {
				if err := learn(op, t, b, tech); err != nil {
					return err
				}
			}
			b.qi(t.State.Character)
		}
		if p.TimeAdvance > 0 {
			t.AdvanceTime(p.TimeAdvance)
		}
		b.emit("story_update", map[string]any{"timeAdvance": p.TimeAdvance})
		return nil
	})
}
