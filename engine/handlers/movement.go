package handlers

import (
	"context"

	"github.com/nathoo/qicore/engine/authority"
	"github.com/nathoo/qicore/engine/events"
	"github.com/nathoo/qicore/engine/fatigue"
	"github.com/nathoo/qicore/engine/fault"
	"github.com/nathoo/qicore/engine/interrupt"
	"github.com/nathoo/qicore/engine/tables"
	"github.com/nathoo/qicore/types"
)

// Movement handles travel between locations and walking within one.
func Movement(ctx context.Context, env *Env, req Request) (Outcome, error) {
	switch req.Event.Type {
	case events.MovementTravel:
		return travel(ctx, env, req)
	case events.MovementWalk:
		return walk(ctx, env, req)
	default:
		return Outcome{}, unsupported(req)
	}
}

// travel swaps the bound location and applies the journey's fatigue and
// time as one session operation.
func travel(ctx context.Context, env *Env, req Request) (Outcome, error) {
	const op = "handlers.travel"
	p, err := events.Decode[*events.Travel](req.Event)
	if err != nil {
		return Outcome{}, err
	}
	out, err := env.update(ctx, req, func(t *authority.Txn, b *builder) error {
		from := t.State.Location
		if t.State.Character.LocationID == p.LocationID {
			return fault.New(fault.CodeInvalidTransition, op, "already at %s", p.LocationID)
		}
		if ok, reason := fatigue.CanPerform(t.State.Character, tables.ActionTravel); !ok {
			return fault.New(fault.CodeInsufficientResource, op, "cannot travel: %s", reason)
		}
		to, err := t.ChangeLocation(p.LocationID)
		if err != nil {
			return err
		}
		fr := fatigue.ApplyAction(t.State.Character, tables.ActionTravel, float64(p.Minutes), 0)
		if err := t.Apply(fr.Delta()); err != nil {
			return err
		}
		if p.Minutes > 0 {
			t.AdvanceTime(p.Minutes)
		}
		b.emit("location_changed", map[string]any{
			"from":    from.ID,
			"to":      to.ID,
			"name":    to.Name,
			"terrain": string(to.TerrainType),
			"danger":  interrupt.LocationDanger(to),
			"minutes": p.Minutes,
		})
		b.warnings(fr.Warnings)
		b.say("You travel from %s to %s.", from.Name, to.Name)
		return nil
	})
	if err != nil {
		return out, err
	}
	if out.Changes == nil {
		out.Changes = &types.Changes{}
	}
	out.Changes.Location = p.LocationID
	return out, nil
}

func walk(ctx context.Context, env *Env, req Request) (Outcome, error) {
	const op = "handlers.walk"
	p, err := events.Decode[*events.Walk](req.Event)
	if err != nil {
		return Outcome{}, err
	}
	action := tables.ActionWalk
	if p.Pace == "run" {
		action = tables.ActionRun
	}
	return env.update(ctx, req, func(t *authority.Txn, b *builder) error {
		fr := fatigue.ApplyAction(t.State.Character, action, float64(p.Minutes), 0)
		if !fr.CanPerform {
			return fault.New(fault.CodeInsufficientResource, op, "cannot %s: %s", action, fr.Reason)
		}
		if err := t.Apply(fr.Delta()); err != nil {
			return err
		}
		t.AdvanceTime(p.Minutes)
		b.emit("walk_complete", map[string]any{
			"minutes": p.Minutes,
			"pace":    string(action),
			"fatigue": tables.Round2(fr.NewPhysical),
		})
		b.warnings(fr.Warnings)
		b.say("You %s for %d minutes.", action, p.Minutes)
		return nil
	})
}
