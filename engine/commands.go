package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/nathoo/qicore/engine/combat"
	"github.com/nathoo/qicore/engine/events"
	"github.com/nathoo/qicore/engine/fatigue"
	"github.com/nathoo/qicore/engine/fault"
	"github.com/nathoo/qicore/engine/parser"
	"github.com/nathoo/qicore/engine/resolve"
	"github.com/nathoo/qicore/engine/story"
	"github.com/nathoo/qicore/engine/tables"
	"github.com/nathoo/qicore/types"
)

// Defaults for commands that omit a duration.
const (
	DefaultWaitMinutes     = 60
	DefaultMeditateMinutes = 60
	DefaultRestMinutes     = 60
	DefaultSleepMinutes    = 480
	DefaultWalkMinutes     = 30
	DefaultTravelMinutes   = 60
	DefaultRegenMinutes    = 60
	// TravelMinutesPerUnit converts coordinate distance into travel time.
	TravelMinutesPerUnit = 10
	// DefaultTargetHealth is the health of an ad-hoc attack target.
	DefaultTargetHealth = 100
)

// HelpText lists the commands Command understands.
const HelpText = `Commands:
  look                      describe your surroundings
  status                    show your cultivation and condition
  inventory                 list what you carry
  techniques                list what you have learned
  meditate [minutes] [kind] absorb qi (standard, deep, insight)
  rest [minutes]            recover fatigue
  sleep [minutes]           recover fatigue faster
  wait [minutes]            let time pass
  breakthrough              attempt the next cultivation step
  travel <place> [minutes]  journey to another location
  walk|run [minutes]        move about nearby
  attack <target> with <technique> [distance]
  use <item>                consume a pill or study a manual
  drop <item> [quantity]    discard items
  learn <technique>         learn a technique you qualify for
  regenerate <part> [minutes]
  narrate <scene>[: detail] play a story scene`

// Command interprets one line of player text for a loaded session and runs
// the resulting event.
func (k *Kernel) Command(ctx context.Context, sessionID, input string) types.EventResult {
	const op = "engine.Command"

	// 1. Parse input.
	intent := parser.Parse(input)

	// 2. Empty input.
	if intent.Verb == "" {
		return failure(fault.New(fault.CodeValidation, op, "What do you want to do?"))
	}

	// 3. Every command reads the session, so it must be loaded.
	s, err := k.auth.Get(sessionID)
	if err != nil {
		return failure(err)
	}

	// 4. Log the command.
	k.logCommand(sessionID, input)

	// 5. Read-only views never produce an event.
	switch intent.Verb {
	case "look":
		return info(k.describeLocation(s))
	case "status":
		return info(describeStatus(s))
	case "inventory":
		return info(k.describeInventory(s))
	case "techniques":
		return info(k.describeTechniques(s))
	case "help":
		return info(HelpText)
	case "narrate":
		return k.narrateCommand(ctx, sessionID, input)
	}

	// 6. Translate the intent into an event.
	typ, payload, err := k.translate(s, intent)
	if err != nil {
		return failure(err)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return failure(fault.Wrap(fault.CodeInternal, op, err, "encode %s", typ))
	}

	// 7. Run it through validation and dispatch.
	return k.Submit(ctx, events.Envelope{
		Type:      typ,
		SessionID: sessionID,
		Timestamp: k.now().UTC(),
		Payload:   data,
	})
}

// translate maps an intent onto an event type and payload.
func (k *Kernel) translate(s types.SessionState, in parser.Intent) (events.Type, any, error) {
	const op = "engine.Command"
	minutes := func(def int) int { return int(math.Round(in.Number(0, float64(def)))) }

	switch in.Verb {
	case "wait":
		return events.EnvironmentTimePassed, events.TimePassed{Minutes: minutes(DefaultWaitMinutes)}, nil

	case "meditate":
		return events.EnvironmentMeditate, events.Meditate{Minutes: minutes(DefaultMeditateMinutes), Kind: in.Object}, nil

	case "rest":
		return events.EnvironmentRest, events.Rest{Minutes: minutes(DefaultRestMinutes)}, nil

	case "sleep":
		return events.EnvironmentRest, events.Rest{Minutes: minutes(DefaultSleepMinutes), Sleep: true}, nil

	case "breakthrough":
		return events.EnvironmentBreakthrough, events.Breakthrough{}, nil

	case "travel":
		if in.Object == "" {
			return "", nil, fault.New(fault.CodeValidation, op, "Travel where?")
		}
		id, err := resolve.Location(k.Defs, in.Object)
		if err != nil {
			return "", nil, resolveFault(op, err)
		}
		return events.MovementTravel, events.Travel{LocationID: id, Minutes: minutes(k.travelMinutes(s, id))}, nil

	case "walk", "run":
		pace := "walk"
		if in.Verb == "run" {
			pace = "run"
		}
		return events.MovementWalk, events.Walk{Minutes: minutes(DefaultWalkMinutes), Pace: pace}, nil

	case "attack":
		if in.Object == "" {
			return "", nil, fault.New(fault.CodeValidation, op, "Attack what?")
		}
		if in.Target == "" {
			return "", nil, fault.New(fault.CodeValidation, op, "Attack with which technique?")
		}
		tech, err := resolve.Technique(k.Defs, s, in.Target, true)
		if err != nil {
			return "", nil, resolveFault(op, err)
		}
		return events.CombatAttack, events.Attack{
			TechniqueID: tech,
			Target:      combat.Target{ID: slug(in.Object), Name: in.Object, Health: DefaultTargetHealth},
			Distance:    in.Number(0, 1),
		}, nil

	case "use":
		id, err := k.itemArg(op, s, in, "Use what?")
		if err != nil {
			return "", nil, err
		}
		return events.InventoryItemUsed, events.ItemUsed{ItemID: id}, nil

	case "drop":
		id, err := k.itemArg(op, s, in, "Drop what?")
		if err != nil {
			return "", nil, err
		}
		return events.InventoryItemRemoved, events.ItemRemoved{ItemID: id, Quantity: int(in.Number(0, 1))}, nil

	case "learn":
		if in.Object == "" {
			return "", nil, fault.New(fault.CodeValidation, op, "Learn what?")
		}
		id, err := resolve.Technique(k.Defs, s, in.Object, false)
		if err != nil {
			return "", nil, resolveFault(op, err)
		}
		return events.InventoryTechniqueLearned, events.TechniqueLearned{TechniqueID: id}, nil

	case "regenerate":
		if in.Object == "" {
			return "", nil, fault.New(fault.CodeValidation, op, "Regenerate which part?")
		}
		part, err := resolve.Part(s.Character.Body, in.Object)
		if err != nil {
			return "", nil, resolveFault(op, err)
		}
		return events.BodyRegenerate, events.Regenerate{PartID: part, Minutes: minutes(DefaultRegenMinutes)}, nil
	}
	return "", nil, fault.New(fault.CodeValidation, op, "I don't understand %q.", in.Verb)
}

func (k *Kernel) itemArg(op string, s types.SessionState, in parser.Intent, prompt string) (string, error) {
	if in.Object == "" {
		return "", fault.New(fault.CodeValidation, op, "%s", prompt)
	}
	id, err := resolve.Item(k.Defs, s, in.Object)
	if err != nil {
		return "", resolveFault(op, err)
	}
	return id, nil
}

// travelMinutes estimates a journey from coordinates, falling back to a
// fixed duration when either end has none.
func (k *Kernel) travelMinutes(s types.SessionState, dest string) int {
	from, to := s.Location.Coordinates, k.Defs.Locations[dest].Coordinates
	if from == nil || to == nil {
		return DefaultTravelMinutes
	}
	d := math.Hypot(to.X-from.X, to.Y-from.Y)
	return int(math.Ceil(d * TravelMinutesPerUnit))
}

// narrateCommand keeps the player's original casing, which templates may
// echo back.
func (k *Kernel) narrateCommand(ctx context.Context, sessionID, input string) types.EventResult {
	const op = "engine.Command"
	_, prompt, _ := strings.Cut(strings.TrimSpace(input), " ")
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		s, _ := k.auth.Get(sessionID)
		if avail := story.AvailableScenes(k.Defs, s); len(avail) > 0 {
			return failure(fault.New(fault.CodeValidation, op, "Narrate which scene? (%s)", strings.Join(avail, ", ")))
		}
		return failure(fault.New(fault.CodeValidation, op, "Nothing stirs."))
	}
	scene, detail := story.ParsePrompt(prompt)
	if detail != "" {
		prompt = strings.ToLower(scene) + ": " + detail
	} else {
		prompt = strings.ToLower(scene)
	}

	n, err := k.Narrate(ctx, sessionID, prompt)
	if n.Result != nil {
		res := *n.Result
		if res.Success {
			res.Message = joinLines(n.Content, res.Message)
		}
		return res
	}
	if err != nil {
		return failure(err)
	}
	return info(n.Content)
}

func failure(err error) types.EventResult {
	return types.EventResult{
		Commands: []types.VisualCommand{},
		Error:    &types.ResultError{Code: string(fault.CodeOf(err)), Message: fault.Message(err)},
	}
}

func info(msg string) types.EventResult {
	return types.EventResult{Success: true, Commands: []types.VisualCommand{}, Message: msg}
}

func resolveFault(op string, err error) error {
	var nf *resolve.NotFoundError
	if errors.As(err, &nf) {
		return fault.New(fault.CodeNotFound, op, "%s", capitalize(err.Error()))
	}
	return fault.New(fault.CodeValidation, op, "%s", capitalize(err.Error()))
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "_"), "_")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func joinLines(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n")
}

// describeLocation produces the standard surroundings output.
func (k *Kernel) describeLocation(s types.SessionState) string {
	loc := s.Location
	var out []string
	out = append(out, fmt.Sprintf("%s (%s, qi density %.1f)", loc.Name, loc.TerrainType, loc.QiDensity))
	if loc.Description != "" {
		out = append(out, loc.Description)
	}
	out = append(out, "It is "+formatTime(s.Time)+".")

	// Other places, nearest first when coordinates allow.
	var dests []string
	for id := range k.Defs.Locations {
		if id != loc.ID {
			dests = append(dests, id)
		}
	}
	sort.Slice(dests, func(i, j int) bool {
		mi, mj := k.travelMinutes(s, dests[i]), k.travelMinutes(s, dests[j])
		if mi != mj {
			return mi < mj
		}
		return dests[i] < dests[j]
	})
	if len(dests) > 0 {
		names := make([]string, len(dests))
		for i, id := range dests {
			names[i] = fmt.Sprintf("%s (%d min)", k.Defs.Locations[id].Name, k.travelMinutes(s, id))
		}
		out = append(out, "Roads lead to: "+strings.Join(names, ", ")+".")
	}

	if scenes := story.AvailableScenes(k.Defs, s); len(scenes) > 0 {
		out = append(out, "You could explore: "+strings.Join(scenes, ", ")+".")
	}
	return strings.Join(out, "\n")
}

func describeStatus(s types.SessionState) string {
	ch := s.Character
	lines := []string{
		fmt.Sprintf("%s, cultivation %d.%d", ch.Name, ch.CultivationLevel, ch.CultivationSubLevel),
		fmt.Sprintf("Qi %.0f/%.0f  accumulated %.0f", ch.CurrentQi, ch.CoreCapacity, ch.AccumulatedQi),
		fmt.Sprintf("Health %.0f  fatigue %.1f  mental %.1f", ch.Health, ch.Fatigue, ch.MentalFatigue),
		fmt.Sprintf("Understanding %.1f/%.1f", ch.QiUnderstanding, ch.QiUnderstandingCap),
		fmt.Sprintf("Str %.0f  Agi %.0f  Int %.0f  Cond %.2f", ch.Strength, ch.Agility, ch.Intelligence, ch.Conductivity),
	}
	if ch.CoreFilled {
		lines = append(lines, "Your core is full.")
	}
	var hurt []string
	for _, p := range ch.Body.Parts {
		if p.Status != types.PartHealthy {
			hurt = append(hurt, fmt.Sprintf("%s %s", strings.ReplaceAll(p.ID, "_", " "), p.Status))
		}
	}
	if len(hurt) > 0 {
		lines = append(lines, "Injuries: "+strings.Join(hurt, ", ")+".")
	}
	for _, w := range fatigue.Warnings(ch) {
		lines = append(lines, "Warning: "+w.String())
	}
	if ch.Fatigue >= tables.CriticalFatigue {
		lines = append(lines, "You can barely stand.")
	}
	return strings.Join(lines, "\n")
}

func (k *Kernel) describeInventory(s types.SessionState) string {
	if len(s.Inventory) == 0 {
		return "You are carrying nothing."
	}
	names := make([]string, 0, len(s.Inventory))
	for _, it := range s.Inventory {
		name := it.ItemID
		if def, ok := k.Defs.Items[it.ItemID]; ok {
			name = def.Name
		}
		if it.Quantity > 1 {
			name = fmt.Sprintf("%s x%d", name, it.Quantity)
		}
		names = append(names, name)
	}
	return "You are carrying: " + strings.Join(names, ", ") + "."
}

func (k *Kernel) describeTechniques(s types.SessionState) string {
	if len(s.Techniques) == 0 {
		return "You know no techniques."
	}
	lines := make([]string, 0, len(s.Techniques))
	for _, lt := range s.Techniques {
		name := lt.TechniqueID
		cost := 0.0
		if def, ok := k.Defs.Techniques[lt.TechniqueID]; ok {
			name, cost = def.Name, def.QiCost
		}
		lines = append(lines, fmt.Sprintf("%s  mastery %.0f/%.0f  qi %.0f", name, lt.MasteryProgress, combat.MaxMastery, cost))
	}
	return strings.Join(lines, "\n")
}

func formatTime(t types.WorldTime) string {
	return fmt.Sprintf("year %d, month %d, day %d, %02d:%02d", t.Year, t.Month, t.Day, t.Hour, t.Minute)
}
