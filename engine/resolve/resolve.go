// Package resolve maps names typed by a player to content ids.
package resolve

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nathoo/qicore/engine/state"
	"github.com/nathoo/qicore/types"
)

// AmbiguityError indicates multiple entities matched a name.
type AmbiguityError struct {
	Name       string
	Candidates []string
}

func (e *AmbiguityError) Error() string {
	names := strings.Join(e.Candidates, ", ")
	return fmt.Sprintf("which %s? (%s)", e.Name, names)
}

// NotFoundError indicates no entity matched a name.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s called %q", e.Kind, e.Name)
}

type candidate struct {
	id   string
	name string
}

// Technique resolves a technique name. With knownOnly, only techniques the
// session has learned are considered.
func Technique(defs *state.Defs, s types.SessionState, name string, knownOnly bool) (string, error) {
	var cs []candidate
	for id, t := range defs.Techniques {
		if knownOnly && !state.Knows(s, id) {
			continue
		}
		cs = append(cs, candidate{id, t.Name})
	}
	return match("technique", name, cs)
}

// Item resolves the name of an item the session carries.
func Item(defs *state.Defs, s types.SessionState, name string) (string, error) {
	var cs []candidate
	for _, it := range s.Inventory {
		n := it.ItemID
		if def, ok := defs.Items[it.ItemID]; ok {
			n = def.Name
		}
		cs = append(cs, candidate{it.ItemID, n})
	}
	return match("item", name, cs)
}

// Location resolves a location name anywhere in the world.
func Location(defs *state.Defs, name string) (string, error) {
	var cs []candidate
	for id, l := range defs.Locations {
		cs = append(cs, candidate{id, l.Name})
	}
	return match("place", name, cs)
}

// Part resolves a body part: "left arm" finds left_arm.
func Part(b types.BodyStructure, name string) (string, error) {
	cs := make([]candidate, 0, len(b.Parts))
	for _, p := range b.Parts {
		cs = append(cs, candidate{p.ID, strings.ReplaceAll(p.ID, "_", " ")})
	}
	return match("body part", name, cs)
}

// match resolves name against candidates. An exact id or name wins
// outright; otherwise a query matching any single word of a name counts.
func match(kind, name string, cs []candidate) (string, error) {
	nameLower := strings.ToLower(strings.TrimSpace(name))
	if nameLower == "" {
		return "", &NotFoundError{Kind: kind, Name: name}
	}

	// 1. Exact id or full name.
	for _, c := range cs {
		if matchesExactly(c, nameLower) {
			return c.id, nil
		}
	}

	// 2. Word-based partial match: "palm" matches "Iron Palm".
	var matches []string
	for _, c := range cs {
		for _, word := range strings.Fields(strings.ToLower(c.name)) {
			if word == nameLower {
				matches = append(matches, c.id)
				break
			}
		}
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{Kind: kind, Name: name}
	case 1:
		return matches[0], nil
	default:
		sort.Strings(matches)
		return "", &AmbiguityError{Name: name, Candidates: matches}
	}
}

func matchesExactly(c candidate, nameLower string) bool {
	idLower := strings.ToLower(c.id)
	if idLower == nameLower || strings.ToLower(c.name) == nameLower {
		return true
	}
	// Underscore normalization: "qi pill" matches id "qi_pill".
	return strings.ReplaceAll(nameLower, " ", "_") == idLower
}
