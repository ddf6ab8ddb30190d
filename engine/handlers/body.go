package handlers

import (
	"context"

	"github.com/nathoo/qicore/engine/authority"
	"github.com/nathoo/qicore/engine/body"
	"github.com/nathoo/qicore/engine/events"
	"github.com/nathoo/qicore/engine/tables"
	"github.com/nathoo/qicore/types"
)

// Body handles direct part damage, regeneration and limb attachment.
func Body(ctx context.Context, env *Env, req Request) (Outcome, error) {
	switch req.Event.Type {
	case events.BodyDamage:
		return partDamage(ctx, env, req)
	case events.BodyRegenerate:
		return regenerate(ctx, env, req)
	case events.BodyAttachStart:
		return attachStart(ctx, env, req)
	case events.BodyAttachTick:
		return attachTick(ctx, env, req)
	default:
		return Outcome{}, unsupported(req)
	}
}

func partDamage(ctx context.Context, env *Env, req Request) (Outcome, error) {
	p, err := events.Decode[*events.PartDamage](req.Event)
	if err != nil {
		return Outcome{}, err
	}
	return env.update(ctx, req, func(t *authority.Txn, b *builder) error {
		return hurt(t, b, p.PartID, p.Amount, body.DamageType(p.DamageType))
	})
}

func regenerate(ctx context.Context, env *Env, req Request) (Outcome, error) {
	p, err := events.Decode[*events.Regenerate](req.Event)
	if err != nil {
		return Outcome{}, err
	}
	return env.update(ctx, req, func(t *authority.Txn, b *builder) error {
		ch := t.State.Character
		nb, res, err := body.RegenerateLimb(ch.Body, p.PartID, 0, float64(p.Minutes), ch.CultivationLevel)
		if err != nil {
			return err
		}
		d := types.CharacterDelta{
			SetBody:   &nb,
			AddHealth: res.OverallHealth - ch.Health,
			Critical:  res.Reattached,
		}
		if err := t.Apply(d); err != nil {
			return err
		}
		t.AdvanceTime(p.Minutes)
		b.emit("limb_regenerated", map[string]any{
			"partId":     res.PartID,
			"restored":   tables.Round2(res.HPRestored),
			"hp":         tables.Round2(res.NewHP),
			"status":     string(res.Status),
			"reattached": res.Reattached,
		})
		if res.Reattached {
			b.say("Your %s has grown back.", p.PartID)
		} else {
			b.say("Your %s regenerates %.1f HP.", p.PartID, res.HPRestored)
		}
		return nil
	})
}

func attachStart(ctx context.Context, env *Env, req Request) (Outcome, error) {
	p, err := events.Decode[*events.AttachStart](req.Event)
	if err != nil {
		return Outcome{}, err
	}
	return env.update(ctx, req, func(t *authority.Txn, b *builder) error {
		ch := t.State.Character
		nb, idx, err := body.StartAttachment(ch.Body, p.PartID, p.Limb, t.State.Time.TotalMinutes)
		if err != nil {
			return err
		}
		if err := t.Apply(types.CharacterDelta{SetBody: &nb}); err != nil {
			return err
		}
		b.emit("attachment_started", map[string]any{
			"partId":     p.PartID,
			"attachment": idx,
			"score":      tables.Round2(nb.Attachments[idx].Score),
			"own":        p.Limb.Own,
		})
		b.say("You begin attaching the limb to your %s.", p.PartID)
		return nil
	})
}

// attachTick moves the clock before re-checking compatibility, so limb
// freshness is judged at the end of the tick.
func attachTick(ctx context.Context, env *Env, req Request) (Outcome, error) {
	p, err := events.Decode[*events.AttachTick](req.Event)
	if err != nil {
		return Outcome{}, err
	}
	return env.update(ctx, req, func(t *authority.Txn, b *builder) error {
		ch := t.State.Character
		t.AdvanceTime(p.Minutes)
		now := t.Advanced().To.TotalMinutes
		nb, res, err := body.TickAttachment(ch.Body, *p.Attachment, float64(p.Minutes), now)
		if err != nil {
			return err
		}
		d := types.CharacterDelta{SetBody: &nb}
		if res.State != types.AttachmentAttaching {
			d.Critical = true
			d.AddHealth = body.OverallHealth(nb) - ch.Health
		}
		if err := t.Apply(d); err != nil {
			return err
		}
		partID := nb.Parts[nb.Attachments[*p.Attachment].PartIndex].ID
		data := map[string]any{
			"attachment": *p.Attachment,
			"partId":     partID,
			"state":      string(res.State),
			"progress":   tables.Round2(res.Progress),
		}
		switch res.State {
		case types.AttachmentAttached:
			b.emit("attachment_complete", data)
			b.say("The limb takes; your %s is whole again.", partID)
		case types.AttachmentFailed:
			data["reason"] = res.Reason
			b.emit("attachment_failed", data)
			b.say("The attachment fails: %s.", res.Reason)
		default:
			b.emit("attachment_progress", data)
		}
		return nil
	})
}
