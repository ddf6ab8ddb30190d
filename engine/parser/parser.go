// Package parser converts command strings into Intent structs.
// Intentionally dumb: no NLP, just pattern matching.
package parser

import (
	"strconv"
	"strings"
)

// Intent is a parsed player command. Numbers holds every numeric word in
// order; they are removed from Object and Target.
type Intent struct {
	Verb    string
	Object  string
	Target  string
	Numbers []float64
}

// Number returns the i-th number, or def when there are fewer.
func (in Intent) Number(i int, def float64) float64 {
	if i < len(in.Numbers) {
		return in.Numbers[i]
	}
	return def
}

var verbAliases = map[string]string{
	// Look / status
	"l":      "look",
	"where":  "look",
	"stat":   "status",
	"stats":  "status",
	"st":     "status",
	"inv":    "inventory",
	"i":      "inventory",
	"tech":   "techniques",
	"skills": "techniques",
	"?":      "help",

	// Cultivation
	"med":       "meditate",
	"cultivate": "meditate",
	"train":     "meditate",
	"nap":       "sleep",
	"z":         "wait",
	"pass":      "wait",
	"advance":   "breakthrough",
	"ascend":    "breakthrough",

	// Movement
	"go":      "travel",
	"move":    "travel",
	"head":    "travel",
	"journey": "travel",
	"stroll":  "walk",
	"jog":     "run",
	"sprint":  "run",

	// Combat
	"hit":    "attack",
	"fight":  "attack",
	"strike": "attack",
	"punch":  "attack",
	"kick":   "attack",

	// Items
	"eat":     "use",
	"drink":   "use",
	"consume": "use",
	"read":    "use",
	"swallow": "use",
	"quaff":   "use",
	"discard": "drop",
	"study":   "learn",

	// Body
	"regen": "regenerate",
	"heal":  "regenerate",

	// Story
	"talk":    "narrate",
	"ask":     "narrate",
	"speak":   "narrate",
	"story":   "narrate",
	"scene":   "narrate",
	"explore": "narrate",
}

var prepositions = map[string]bool{
	"on": true, "at": true, "to": true,
	"with": true, "in": true, "from": true,
	"about": true, "for": true, "using": true,
}

var articles = map[string]bool{
	"the": true, "a": true, "an": true,
}

// units are dropped after numbers: "meditate 2 hours" keeps the 2.
var units = map[string]bool{
	"minute": true, "minutes": true, "min": true, "mins": true,
	"hour": true, "hours": true, "hr": true, "hrs": true,
	"meters": true, "metres": true, "m": true, "paces": true,
}

// Parse converts a raw command string into an Intent.
func Parse(input string) Intent {
	input = strings.TrimSpace(input)
	if input == "" {
		return Intent{}
	}

	words := strings.Fields(strings.ToLower(input))

	// Handle multi-word verb phrases before general parsing.
	words = expandMultiWordVerbs(words)

	// Apply verb aliases.
	if alias, ok := verbAliases[words[0]]; ok {
		words[0] = alias
	}

	verb := words[0]
	rest := stripArticles(words[1:])
	rest, numbers := extractNumbers(rest)

	// Use the first preposition as a delimiter between object and target.
	object, target := splitOnPreposition(rest)

	return Intent{
		Verb:    verb,
		Object:  object,
		Target:  target,
		Numbers: numbers,
	}
}

// expandMultiWordVerbs handles "break through", "talk to" etc.
func expandMultiWordVerbs(words []string) []string {
	if len(words) < 2 {
		return words
	}

	switch words[0] {
	case "break":
		if words[1] == "through" {
			return append([]string{"breakthrough"}, words[2:]...)
		}
	case "talk", "speak":
		if words[1] == "to" || words[1] == "with" {
			return append([]string{"narrate"}, words[2:]...)
		}
	case "look":
		if words[1] == "around" {
			return []string{"look"}
		}
	case "go", "travel":
		if words[1] == "to" {
			return append([]string{"travel"}, words[2:]...)
		}
	}

	return words
}

// stripArticles removes articles ("the", "a", "an") from the word list.
func stripArticles(words []string) []string {
	result := make([]string, 0, len(words))
	for _, w := range words {
		if !articles[w] {
			result = append(result, w)
		}
	}
	return result
}

// extractNumbers pulls numeric words, and any unit word that follows one,
// out of the word list.
func extractNumbers(words []string) ([]string, []float64) {
	var nums []float64
	out := make([]string, 0, len(words))
	afterNumber := false
	for _, w := range words {
		if n, err := strconv.ParseFloat(w, 64); err == nil {
			nums = append(nums, n)
			afterNumber = true
			continue
		}
		if afterNumber && units[w] {
			if strings.HasPrefix(w, "h") && len(nums) > 0 {
				nums[len(nums)-1] *= 60
			}
			afterNumber = false
			continue
		}
		afterNumber = false
		out = append(out, w)
	}
	return out, nums
}

// splitOnPreposition splits words on the first preposition.
// Words before the preposition become the object, words after become the target.
// If no preposition is found, all words become the object. Prepositions left
// dangling by number extraction are dropped.
func splitOnPreposition(words []string) (object, target string) {
	for i, w := range words {
		if prepositions[w] {
			object = strings.Join(words[:i], " ")
			target = strings.Join(trimPrepositions(words[i+1:]), " ")
			return object, target
		}
	}
	return strings.Join(words, " "), ""
}

func trimPrepositions(words []string) []string {
	var out []string
	for _, w := range words {
		if !prepositions[w] {
			out = append(out, w)
		}
	}
	return out
}
