// Package story connects the kernel to a story generator. The generator is
// opaque: it turns a prompt and the session's history into narrative text
// plus an optional state change, and the kernel applies that change only by
// submitting an environment:story_update event through validation.
package story

import (
	"context"
	"sort"

	"github.com/nathoo/qicore/engine/rules"
	"github.com/nathoo/qicore/engine/state"
	"github.com/nathoo/qicore/types"
)

// Turn is one exchange with the generator.
type Turn struct {
	Prompt  string `json:"prompt"`
	Content string `json:"content"`
}

// Response is what a generator returns.
type Response struct {
	Content     string                `json:"content"`
	StateUpdate *types.CharacterDelta `json:"stateUpdate,omitempty"`
	TimeAdvance int                   `json:"timeAdvance,omitempty"`
}

// Generator produces narrative. Implementations must honour ctx; timeouts
// are the caller's concern.
type Generator interface {
	Generate(ctx context.Context, prompt string, history []Turn) (Response, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string, history []Turn) (Response, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string, history []Turn) (Response, error) {
	return f(ctx, prompt, history)
}

// AvailableScenes returns the ids of scenes whose requirements the session
// meets, sorted.
func AvailableScenes(defs *state.Defs, s types.SessionState) []string {
	var out []string
	for id, sc := range defs.Scenes {
		if rules.EvalAllConditions(sc.Requires, s) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// SelectScene returns a scene if it exists and the session meets its
// requirements.
func SelectScene(defs *state.Defs, s types.SessionState, id string) (types.Scene, bool) {
	sc, ok := defs.Scenes[id]
	if !ok || !rules.EvalAllConditions(sc.Requires, s) {
		return types.Scene{}, false
	}
	return sc, true
}
