package events

import (
	"fmt"
	"sort"
	"strings"
)

// CatalogueVersion is bumped whenever an event type or payload shape
// changes.
const CatalogueVersion = 1

// Type identifies an event, "namespace:name".
type Type string

// Namespace is the routing prefix of an event type.
type Namespace string

const (
	NamespaceCombat      Namespace = "combat"
	NamespaceInventory   Namespace = "inventory"
	NamespaceMovement    Namespace = "movement"
	NamespaceEnvironment Namespace = "environment"
	NamespaceBody        Namespace = "body"
)

// Event types.
const (
	CombatAttack      Type = "combat:attack"
	CombatDamageTaken Type = "combat:damage_taken"
	CombatDamageDealt Type = "combat:damage_dealt"

	InventoryItemAdded        Type = "inventory:item_added"
	InventoryItemRemoved      Type = "inventory:item_removed"
	InventoryItemUsed         Type = "inventory:item_used"
	InventoryTechniqueLearned Type = "inventory:technique_learned"

	MovementTravel Type = "movement:travel"
	MovementWalk   Type = "movement:walk"

	EnvironmentTimePassed   Type = "environment:time_passed"
	EnvironmentMeditate     Type = "environment:meditate"
	EnvironmentRest         Type = "environment:rest"
	EnvironmentBreakthrough Type = "environment:breakthrough"
	EnvironmentStoryUpdate  Type = "environment:story_update"

	BodyDamage      Type = "body:damage"
	BodyRegenerate  Type = "body:regenerate"
	BodyAttachStart Type = "body:attach_start"
	BodyAttachTick  Type = "body:attach_tick"
)

// NamespaceOf returns the prefix before the first colon.
func NamespaceOf(t Type) Namespace {
	ns, _, _ := strings.Cut(string(t), ":")
	return Namespace(ns)
}

// Definition registers one event type.
type Definition struct {
	Type      Type
	Namespace Namespace
	// New returns a pointer to a zero payload to decode into.
	New func() Payload
}

// Catalogue is a closed set of event definitions. It is immutable once
// built.
type Catalogue struct {
	definitions map[Type]Definition
}

// NewCatalogue builds a catalogue, rejecting duplicate or malformed types.
func NewCatalogue(defs ...Definition) (*Catalogue, error) {
	c := &Catalogue{definitions: make(map[Type]Definition, len(defs))}
	for _, d := range defs {
		d.Type = Type(strings.TrimSpace(string(d.Type)))
		if d.Type == "" {
			return nil, ErrTypeRequired
		}
		if d.New == nil {
			return nil, fmt.Errorf("event type %s has no payload constructor", d.Type)
		}
		if d.Namespace == "" {
			d.Namespace = NamespaceOf(d.Type)
		}
		if NamespaceOf(d.Type) != d.Namespace {
			return nil, fmt.Errorf("event type %s is not in namespace %s", d.Type, d.Namespace)
		}
		if _, exists := c.definitions[d.Type]; exists {
			return nil, fmt.Errorf("event type already registered: %s", d.Type)
		}
		c.definitions[d.Type] = d
	}
	return c, nil
}

// Lookup returns the definition of t.
func (c *Catalogue) Lookup(t Type) (Definition, bool) {
	d, ok := c.definitions[t]
	return d, ok
}

// Types returns every registered type in sorted order.
func (c *Catalogue) Types() []Type {
	out := make([]Type, 0, len(c.definitions))
	for t := range c.definitions {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Namespaces returns the distinct namespaces in sorted order.
func (c *Catalogue) Namespaces() []Namespace {
	seen := map[Namespace]bool{}
	var out []Namespace
	for _, d := range c.definitions {
		if !seen[d.Namespace] {
			seen[d.Namespace] = true
			out = append(out, d.Namespace)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func def[P any, PP interface {
	*P
	Payload
}](t Type) Definition {
	return Definition{Type: t, New: func() Payload { return PP(new(P)) }}
}

var defaultCatalogue = mustCatalogue(
	def[Attack](CombatAttack),
	def[DamageTaken](CombatDamageTaken),
	def[DamageDealt](CombatDamageDealt),
	def[ItemAdded](InventoryItemAdded),
	def[ItemRemoved](InventoryItemRemoved),
	def[ItemUsed](InventoryItemUsed),
	def[TechniqueLearned](InventoryTechniqueLearned),
	def[Travel](MovementTravel),
	def[Walk](MovementWalk),
	def[TimePassed](EnvironmentTimePassed),
	def[Meditate](EnvironmentMeditate),
	def[Rest](EnvironmentRest),
	def[Breakthrough](EnvironmentBreakthrough),
	def[StoryUpdate](EnvironmentStoryUpdate),
	def[PartDamage](BodyDamage),
	def[Regenerate](BodyRegenerate),
	def[AttachStart](BodyAttachStart),
	def[AttachTick](BodyAttachTick),
)

func mustCatalogue(defs ...Definition) *Catalogue {
	c, err := NewCatalogue(defs...)
	if err != nil {
		panic(err)
	}
	return c
}

// Default returns the kernel's catalogue.
func Default() *Catalogue { return defaultCatalogue }
