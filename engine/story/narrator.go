package story

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nathoo/qicore/engine/events"
	"github.com/nathoo/qicore/engine/fault"
	"github.com/nathoo/qicore/engine/state"
	"github.com/nathoo/qicore/types"
)

// MaxHistory bounds the turns kept per session.
const MaxHistory = 20

// Submitter runs an event envelope through validation and dispatch.
type Submitter interface {
	Submit(ctx context.Context, env events.Envelope) types.EventResult
}

// StateReader reads a loaded session.
type StateReader interface {
	Get(sessionID string) (types.SessionState, error)
}

// Narration is the outcome of one Narrate call. Result is nil when the
// generator asked for no state change.
type Narration struct {
	Content string
	Result  *types.EventResult
}

// Narrator asks the generator for the next beat of a session's story and
// feeds any requested state change back into the kernel.
type Narrator struct {
	gen    Generator
	defs   *state.Defs
	states StateReader
	submit Submitter
	log    logrus.FieldLogger

	mu      sync.Mutex
	history map[string][]Turn
}

// NewNarrator wires a narrator. log may be nil.
func NewNarrator(gen Generator, defs *state.Defs, states StateReader, submit Submitter, log logrus.FieldLogger) *Narrator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if defs == nil {
		defs = state.NewDefs()
	}
	return &Narrator{
		gen:     gen,
		defs:    defs,
		states:  states,
		submit:  submit,
		log:     log,
		history: map[string][]Turn{},
	}
}

// Narrate plays prompt for a session. When the prompt names an authored
// scene, the session must meet its requirements. A rejected state change
// is returned as an error alongside the narration.
func (n *Narrator) Narrate(ctx context.Context, sessionID, prompt string) (Narration, error) {
	const op = "story.Narrate"
	s, err := n.states.Get(sessionID)
	if err != nil {
		return Narration{}, err
	}
	id, _ := ParsePrompt(prompt)
	if _, authored := n.defs.Scenes[id]; authored {
		if _, ok := SelectScene(n.defs, s, id); !ok {
			return Narration{}, fault.New(fault.CodeInvalidTransition, op, "scene %s is not available", id)
		}
	}

	resp, err := n.gen.Generate(ctx, prompt, n.History(sessionID))
	if err != nil {
		return Narration{}, err
	}
	out := Narration{Content: resp.Content}
	log := n.log.WithFields(logrus.Fields{"session": sessionID, "prompt": id})

	if resp.StateUpdate != nil || resp.TimeAdvance > 0 {
		payload, err := json.Marshal(events.StoryUpdate{StateUpdate: resp.StateUpdate, TimeAdvance: resp.TimeAdvance})
		if err != nil {
			return out, fault.Wrap(fault.CodeInternal, op, err, "encode story update")
		}
		res := n.submit.Submit(ctx, events.Envelope{
			Type:      events.EnvironmentStoryUpdate,
			SessionID: sessionID,
			Timestamp: time.Now().UTC(),
			Payload:   payload,
		})
		out.Result = &res
		if !res.Success {
			log.WithField("code", res.Error.Code).Debug("story update rejected")
			return out, fault.New(fault.Code(res.Error.Code), op, "%s", res.Error.Message)
		}
	}

	n.remember(sessionID, Turn{Prompt: prompt, Content: resp.Content})
	log.Debug("narrated")
	return out, nil
}

func (n *Narrator) remember(sessionID string, t Turn) {
	n.mu.Lock()
	defer n.mu.Unlock()
	h := append(n.history[sessionID], t)
	if len(h) > MaxHistory {
		h = h[len(h)-MaxHistory:]
	}
	n.history[sessionID] = h
}

// History returns a copy of a session's turns, oldest first.
func (n *Narrator) History(sessionID string) []Turn {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Turn(nil), n.history[sessionID]...)
}

// Forget drops a session's history, typically when it is unloaded.
func (n *Narrator) Forget(sessionID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.history, sessionID)
}
