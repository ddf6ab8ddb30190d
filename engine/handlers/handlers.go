// Package handlers implements the domain handlers the dispatcher routes
// validated events to, one per namespace. Handlers never mutate state
// directly: every change goes through the session authority, computed by
// the pure numeric engines.
package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/nathoo/qicore/engine/authority"
	"github.com/nathoo/qicore/engine/effects"
	"github.com/nathoo/qicore/engine/events"
	"github.com/nathoo/qicore/engine/fatigue"
	"github.com/nathoo/qicore/engine/state"
	"github.com/nathoo/qicore/engine/tables"
	"github.com/nathoo/qicore/types"
)

// Env is what handlers share: the authority, the content definitions and a
// clock for presentation timestamps.
type Env struct {
	Auth *authority.Authority
	Defs *state.Defs
	Now  func() time.Time
}

// NewEnv returns an Env with a wall clock.
func NewEnv(auth *authority.Authority, defs *state.Defs) *Env {
	if defs == nil {
		defs = state.NewDefs()
	}
	return &Env{Auth: auth, Defs: defs, Now: time.Now}
}

// Request is one validated event addressed to a loaded session.
type Request struct {
	SessionID string
	Event     events.Event
}

// Outcome is what a handler reports back to the dispatcher.
type Outcome struct {
	Changes  *types.Changes
	Commands []types.VisualCommand
	Message  string
}

// Handler processes the events of one namespace. A handler that returns an
// error together with a non-empty Outcome committed its change but could
// not persist it.
type Handler func(ctx context.Context, env *Env, req Request) (Outcome, error)

// All returns the handler of every namespace in the default catalogue.
func All() map[events.Namespace]Handler {
	return map[events.Namespace]Handler{
		events.NamespaceCombat:      Combat,
		events.NamespaceInventory:   Inventory,
		events.NamespaceMovement:    Movement,
		events.NamespaceEnvironment: Environment,
		events.NamespaceBody:        Body,
	}
}

func unsupported(req Request) error {
	return fmt.Errorf("handlers: no handler for %s", req.Event.Type)
}

// builder accumulates the commands of one event.
type builder struct {
	now      time.Time
	commands []types.VisualCommand
	message  string
}

func (e *Env) builder() *builder {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	return &builder{now: now()}
}

func (b *builder) emit(typ string, data map[string]any) {
	b.commands = append(b.commands, types.VisualCommand{Type: typ, Timestamp: b.now, Data: data})
}

func (b *builder) say(format string, args ...any) {
	b.message = fmt.Sprintf(format, args...)
}

// warnings emits one command per fatigue warning.
func (b *builder) warnings(ws []fatigue.Warning) {
	for _, w := range ws {
		b.emit("fatigue_warning", map[string]any{
			"axis":     w.Axis,
			"severity": string(w.Severity),
			"value":    tables.Round2(w.Value),
		})
	}
}

// qi emits the resource bar update for the transaction's character.
func (b *builder) qi(ch types.Character) {
	b.emit("qi_update", map[string]any{
		"current":     tables.Round2(ch.CurrentQi),
		"capacity":    ch.CoreCapacity,
		"accumulated": tables.Round2(ch.AccumulatedQi),
		"coreFilled":  ch.CoreFilled,
	})
}

// outcome turns a committed transaction into the dispatcher's report.
func (b *builder) outcome(t *authority.Txn) Outcome {
	out := Outcome{Commands: b.commands, Message: b.message}
	if out.Commands == nil {
		out.Commands = []types.VisualCommand{}
	}
	changes := &types.Changes{}
	d := t.Applied()
	if !effects.IsZero(d) {
		changes.Character = &d
		changes.Inventory = d.SetInventory
		changes.Body = d.SetBody
		changes.Learned = d.LearnTechniques
	}
	if adv := t.Advanced(); adv != nil {
		to := adv.To
		changes.Time = &to
		b.timeCommand(adv)
		out.Commands = b.commands
	}
	if changes.Character != nil || changes.Time != nil {
		out.Changes = changes
	}
	return out
}

func (b *builder) timeCommand(adv *authority.TimeAdvance) {
	b.emit("time_advanced", map[string]any{
		"minutes":     adv.Minutes,
		"day":         adv.To.Day,
		"month":       adv.To.Month,
		"year":        adv.To.Year,
		"hour":        adv.To.Hour,
		"minute":      adv.To.Minute,
		"dayCrossed":  adv.DayCrossed,
		"daysCrossed": adv.DaysCrossed,
	})
}

// update runs fn in a transaction and builds the outcome from it. On a
// storage failure after commit the outcome is still returned.
func (e *Env) update(ctx context.Context, req Request, fn func(t *authority.Txn, b *builder) error) (Outcome, error) {
	var out Outcome
	_, err := e.Auth.Update(ctx, req.SessionID, func(t *authority.Txn) error {
		b := e.builder()
		if err := fn(t, b); err != nil {
			return err
		}
		out = b.outcome(t)
		return nil
	})
	return out, err
}
