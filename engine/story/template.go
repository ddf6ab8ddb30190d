package story

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/nathoo/qicore/cache"
	"github.com/nathoo/qicore/engine/fault"
	"github.com/nathoo/qicore/types"
)

// TemplateGenerator is an offline Generator that renders authored scenes.
// The prompt names the scene, optionally followed by ": " and free text
// exposed to the template as .Detail. Compiled templates live in an LRU
// cache owned by whoever built the generator.
type TemplateGenerator struct {
	scenes map[string]types.Scene
	cache  *cache.LRU[string, *template.Template]
}

// SceneData is what a scene template is rendered with.
type SceneData struct {
	Scene    string
	Detail   string
	Turn     int
	Previous string
}

// NewTemplateGenerator returns a generator over scenes. A nil cache gets a
// private one of the default capacity.
func NewTemplateGenerator(scenes map[string]types.Scene, c *cache.LRU[string, *template.Template]) *TemplateGenerator {
	if c == nil {
		c = cache.New[string, *template.Template](cache.DefaultCapacity)
	}
	return &TemplateGenerator{scenes: scenes, cache: c}
}

// ParsePrompt splits "scene: detail".
func ParsePrompt(prompt string) (scene, detail string) {
	scene, detail, _ = strings.Cut(prompt, ":")
	return strings.TrimSpace(scene), strings.TrimSpace(detail)
}

var funcs = template.FuncMap{
	"upper": strings.ToUpper,
	"title": func(s string) string {
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
}

// Generate renders the scene the prompt names.
func (g *TemplateGenerator) Generate(ctx context.Context, prompt string, history []Turn) (Response, error) {
	const op = "story.Generate"
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	id, detail := ParsePrompt(prompt)
	sc, ok := g.scenes[id]
	if !ok {
		return Response{}, fault.NotFound(op, "scene", id)
	}
	tmpl, err := g.cache.GetOrLoad(sc.ID+"\x00"+sc.Text, func() (*template.Template, error) {
		return ParseScene(sc)
	})
	if err != nil {
		return Response{}, fault.Wrap(fault.CodeValidation, op, err, "scene %s", sc.ID)
	}

	data := SceneData{Scene: sc.ID, Detail: detail, Turn: len(history) + 1}
	if n := len(history); n > 0 {
		data.Previous = history[n-1].Content
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return Response{}, fault.Wrap(fault.CodeInternal, op, err, "render scene %s", sc.ID)
	}

	res := Response{Content: strings.TrimSpace(buf.String()), TimeAdvance: sc.TimeAdvance}
	if sc.StateUpdate != nil {
		d := *sc.StateUpdate
		res.StateUpdate = &d
	}
	return res, nil
}

// ParseScene compiles a scene's text with the generator's functions.
func ParseScene(sc types.Scene) (*template.Template, error) {
	return template.New(sc.ID).Funcs(funcs).Option("missingkey=zero").Parse(sc.Text)
}

// Describe lists the scenes the generator knows, for diagnostics.
func (g *TemplateGenerator) Describe() string {
	return fmt.Sprintf("%d scenes, %d compiled", len(g.scenes), g.cache.Len())
}
