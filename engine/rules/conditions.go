// Package rules evaluates content conditions, such as the requirements a
// technique places on whoever learns it.
package rules

import (
	"fmt"

	"github.com/nathoo/qicore/engine/interrupt"
	"github.com/nathoo/qicore/engine/state"
	"github.com/nathoo/qicore/types"
)

// EvalCondition evaluates a single condition against a session. Unknown
// condition types are false.
func EvalCondition(c types.Condition, s types.SessionState) bool {
	ok := eval(c, s)
	if c.Negate {
		return !ok
	}
	return ok
}

func eval(c types.Condition, s types.SessionState) bool {
	ch := s.Character
	switch c.Type {
	case "min_level":
		level := toInt(c.Params["level"])
		sub := toInt(c.Params["sub"])
		if ch.CultivationLevel != level {
			return ch.CultivationLevel > level
		}
		return ch.CultivationSubLevel >= sub

	case "min_stat":
		name, _ := c.Params["stat"].(string)
		v, ok := state.Stat(ch, name)
		return ok && v >= toFloat(c.Params["value"])

	case "has_item":
		item, _ := c.Params["item"].(string)
		qty := toInt(c.Params["quantity"])
		if qty < 1 {
			qty = 1
		}
		return state.ItemQuantity(s, item) >= qty

	case "knows":
		tech, _ := c.Params["technique"].(string)
		return state.Knows(s, tech)

	case "at_location":
		loc, _ := c.Params["location"].(string)
		return ch.LocationID == loc

	case "in_terrain":
		terrain, _ := c.Params["terrain"].(string)
		return string(s.Location.TerrainType) == terrain

	case "max_danger":
		return interrupt.LocationDanger(s.Location) <= toInt(c.Params["value"])

	case "min_understanding":
		return ch.QiUnderstanding >= toFloat(c.Params["value"])

	case "not":
		if c.Inner == nil {
			return true
		}
		return !EvalCondition(*c.Inner, s)

	default:
		return false
	}
}

// EvalAllConditions returns true if all conditions pass (AND logic).
// An empty condition list is vacuously true.
func EvalAllConditions(conditions []types.Condition, s types.SessionState) bool {
	for _, c := range conditions {
		if !EvalCondition(c, s) {
			return false
		}
	}
	return true
}

// Describe renders a condition for player-facing messages.
func Describe(c types.Condition) string {
	var text string
	switch c.Type {
	case "min_level":
		text = fmt.Sprintf("cultivation %d.%d", toInt(c.Params["level"]), toInt(c.Params["sub"]))
	case "min_stat":
		text = fmt.Sprintf("%v of at least %v", c.Params["stat"], c.Params["value"])
	case "has_item":
		text = fmt.Sprintf("carrying %v", c.Params["item"])
	case "knows":
		text = fmt.Sprintf("knowing %v", c.Params["technique"])
	case "at_location":
		text = fmt.Sprintf("being at %v", c.Params["location"])
	case "in_terrain":
		text = fmt.Sprintf("standing in %v terrain", c.Params["terrain"])
	case "max_danger":
		text = fmt.Sprintf("danger no higher than %v", c.Params["value"])
	case "min_understanding":
		text = fmt.Sprintf("qi understanding of %v", c.Params["value"])
	case "not":
		if c.Inner != nil {
			return "not " + Describe(*c.Inner)
		}
		text = "nothing"
	default:
		text = c.Type
	}
	if c.Negate {
		return "not " + text
	}
	return text
}

// toInt converts an any value to int, handling float64 from JSON/Lua.
func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	case int64:
		return int(n)
	default:
		return 0
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		return 0
	}
}
