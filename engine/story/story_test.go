package story

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"
	"text/template"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathoo/qicore/cache"
	"github.com/nathoo/qicore/engine/events"
	"github.com/nathoo/qicore/engine/fault"
	"github.com/nathoo/qicore/engine/state"
	"github.com/nathoo/qicore/types"
)

func TestMain(m *testing.M) {
	if os.Getenv("DEBUG_TESTS") == "" {
		logrus.SetLevel(logrus.WarnLevel)
	}
	os.Exit(m.Run())
}

func testDefs() *state.Defs {
	defs := state.NewDefs()
	defs.Scenes["elder"] = types.Scene{
		ID:          "elder",
		Text:        "The elder nods.{{if .Detail}} \"{{.Detail}}\"{{end}} (turn {{.Turn}})",
		StateUpdate: &types.CharacterDelta{AddUnderstanding: 1},
		TimeAdvance: 15,
	}
	defs.Scenes["gate"] = types.Scene{
		ID:       "gate",
		Text:     "The inner gate opens for you.",
		Requires: []types.Condition{{Type: "min_level", Params: map[string]any{"level": 3}}},
	}
	defs.Scenes["dusk"] = types.Scene{ID: "dusk", Text: "{{title .Scene}} settles. Before: {{.Previous}}"}
	return defs
}

type fakeStates struct{ s types.SessionState }

func (f fakeStates) Get(id string) (types.SessionState, error) {
	if id != f.s.SessionID {
		return types.SessionState{}, fault.SessionNotLoaded("test", id)
	}
	return f.s, nil
}

type recorder struct {
	envs   []events.Envelope
	result types.EventResult
}

func (r *recorder) Submit(_ context.Context, env events.Envelope) types.EventResult {
	r.envs = append(r.envs, env)
	return r.result
}

func session() types.SessionState {
	ch := state.DefaultCharacter("s1", "Mei")
	return state.NewSessionState(ch, types.Location{ID: "hall"}, state.DefaultStartTime(), nil, nil)
}

func TestAvailableScenes(t *testing.T) {
	defs := testDefs()
	s := session()
	assert.Equal(t, []string{"dusk", "elder"}, AvailableScenes(defs, s))

	s.Character.CultivationLevel = 3
	assert.Equal(t, []string{"dusk", "elder", "gate"}, AvailableScenes(defs, s))

	_, ok := SelectScene(defs, session(), "gate")
	assert.False(t, ok)
	_, ok = SelectScene(defs, session(), "missing")
	assert.False(t, ok)
	sc, ok := SelectScene(defs, s, "gate")
	require.True(t, ok)
	assert.Equal(t, "gate", sc.ID)
}

func TestParsePrompt(t *testing.T) {
	id, detail := ParsePrompt(" elder :  teach me ")
	assert.Equal(t, "elder", id)
	assert.Equal(t, "teach me", detail)
	id, detail = ParsePrompt("dusk")
	assert.Equal(t, "dusk", id)
	assert.Empty(t, detail)
}

func TestTemplateGenerator(t *testing.T) {
	c := cache.New[string, *template.Template](4)
	g := NewTemplateGenerator(testDefs().Scenes, c)

	res, err := g.Generate(context.Background(), "elder: patience", nil)
	require.NoError(t, err)
	assert.Equal(t, `The elder nods. "patience" (turn 1)`, res.Content)
	require.NotNil(t, res.StateUpdate)
	assert.InDelta(t, 1, res.StateUpdate.AddUnderstanding, 1e-9)
	assert.Equal(t, 15, res.TimeAdvance)

	res, err = g.Generate(context.Background(), "dusk", []Turn{{Prompt: "elder", Content: "earlier"}})
	require.NoError(t, err)
	assert.Equal(t, "Dusk settles. Before: earlier", res.Content)

	_, err = g.Generate(context.Background(), "elder", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len(), "compiled templates are reused")
	assert.Equal(t, uint64(1), c.Stats().Hits)

	_, err = g.Generate(context.Background(), "nowhere", nil)
	assert.Equal(t, fault.CodeNotFound, fault.CodeOf(err))
}

func TestTemplateGeneratorBadTemplate(t *testing.T) {
	g := NewTemplateGenerator(map[string]types.Scene{"bad": {ID: "bad", Text: "{{.Nope"}}, nil)
	_, err := g.Generate(context.Background(), "bad", nil)
	assert.Equal(t, fault.CodeValidation, fault.CodeOf(err))
}

func TestTemplateGeneratorCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewTemplateGenerator(testDefs().Scenes, nil).Generate(ctx, "dusk", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNarrateSubmitsStoryUpdate(t *testing.T) {
	defs := testDefs()
	rec := &recorder{result: types.EventResult{Success: true, EventID: "ev1"}}
	n := NewNarrator(NewTemplateGenerator(defs.Scenes, nil), defs, fakeStates{session()}, rec, nil)

	out, err := n.Narrate(context.Background(), "s1", "elder")
	require.NoError(t, err)
	assert.Contains(t, out.Content, "The elder nods.")
	require.NotNil(t, out.Result)
	assert.Equal(t, "ev1", out.Result.EventID)

	require.Len(t, rec.envs, 1)
	env := rec.envs[0]
	assert.Equal(t, events.EnvironmentStoryUpdate, env.Type)
	assert.Equal(t, "s1", env.SessionID)
	var p events.StoryUpdate
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, 15, p.TimeAdvance)
	require.NotNil(t, p.StateUpdate)
	assert.NoError(t, p.Validate())

	assert.Len(t, n.History("s1"), 1)
}

func TestNarrateWithoutStateChange(t *testing.T) {
	defs := testDefs()
	rec := &recorder{}
	n := NewNarrator(NewTemplateGenerator(defs.Scenes, nil), defs, fakeStates{session()}, rec, nil)

	out, err := n.Narrate(context.Background(), "s1", "dusk")
	require.NoError(t, err)
	assert.Nil(t, out.Result)
	assert.Empty(t, rec.envs)
}

func TestNarrateLockedScene(t *testing.T) {
	defs := testDefs()
	rec := &recorder{}
	n := NewNarrator(NewTemplateGenerator(defs.Scenes, nil), defs, fakeStates{session()}, rec, nil)
	_, err := n.Narrate(context.Background(), "s1", "gate")
	assert.Equal(t, fault.CodeInvalidTransition, fault.CodeOf(err))
	assert.Empty(t, n.History("s1"))
}

func TestNarrateRejectedUpdate(t *testing.T) {
	defs := testDefs()
	rec := &recorder{result: types.EventResult{Error: &types.ResultError{Code: string(fault.CodeValidation), Message: "no"}}}
	n := NewNarrator(NewTemplateGenerator(defs.Scenes, nil), defs, fakeStates{session()}, rec, nil)

	out, err := n.Narrate(context.Background(), "s1", "elder")
	assert.Equal(t, fault.CodeValidation, fault.CodeOf(err))
	assert.NotEmpty(t, out.Content)
	assert.Empty(t, n.History("s1"))
}

func TestNarrateUnloadedSession(t *testing.T) {
	n := NewNarrator(NewTemplateGenerator(nil, nil), nil, fakeStates{session()}, &recorder{}, nil)
	_, err := n.Narrate(context.Background(), "ghost", "dusk")
	assert.Equal(t, fault.CodeSessionNotLoaded, fault.CodeOf(err))
}

func TestGeneratorErrorPropagates(t *testing.T) {
	boom := errors.New("model offline")
	gen := GeneratorFunc(func(context.Context, string, []Turn) (Response, error) { return Response{}, boom })
	n := NewNarrator(gen, nil, fakeStates{session()}, &recorder{}, nil)
	_, err := n.Narrate(context.Background(), "s1", "anything")
	assert.ErrorIs(t, err, boom)
}

func TestHistoryIsBounded(t *testing.T) {
	gen := GeneratorFunc(func(_ context.Context, prompt string, _ []Turn) (Response, error) {
		return Response{Content: prompt}, nil
	})
	n := NewNarrator(gen, nil, fakeStates{session()}, &recorder{}, nil)
	for i := 0; i < MaxHistory+5; i++ {
		_, err := n.Narrate(context.Background(), "s1", fmt.Sprintf("beat %d", i))
		require.NoError(t, err)
	}
	h := n.History("s1")
	require.Len(t, h, MaxHistory)
	assert.Equal(t, "beat 5", h[0].Content)

	n.Forget("s1")
	assert.Empty(t, n.History("s1"))
}
