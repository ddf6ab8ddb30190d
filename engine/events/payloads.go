package events

import (
	"errors"
	"fmt"

	"github.com/nathoo/qicore/engine/body"
	"github.com/nathoo/qicore/engine/combat"
	"github.com/nathoo/qicore/engine/cultivation"
	"github.com/nathoo/qicore/types"
)

// MaxMinutes bounds any single duration carried by an event: one month.
const MaxMinutes = 30 * 24 * 60

// Payload is implemented by every catalogue payload. Validate performs the
// structural checks that do not need session state.
type Payload interface {
	Validate() error
}

func required(field string) error { return fmt.Errorf("%s is required", field) }

func checkMinutes(field string, v int, allowZero bool) error {
	switch {
	case v < 0 || (!allowZero && v == 0):
		return fmt.Errorf("%s must be positive", field)
	case v > MaxMinutes:
		return fmt.Errorf("%s must not exceed %d", field, MaxMinutes)
	}
	return nil
}

func checkDamageType(dt string) error {
	if dt == "" {
		return required("damageType")
	}
	if !body.ValidDamageType(body.DamageType(dt)) {
		return fmt.Errorf("damageType %q is unknown", dt)
	}
	return nil
}

// Attack uses a technique against a caller-supplied target.
type Attack struct {
	TechniqueID string        `json:"techniqueId"`
	Target      combat.Target `json:"target"`
	Distance    float64       `json:"distance"`
}

func (p *Attack) Validate() error {
	switch {
	case p.TechniqueID == "":
		return required("techniqueId")
	case p.Target.ID == "":
		return required("target.id")
	case p.Target.Defense < 0:
		return errors.New("target.defense must not be negative")
	case p.Distance < 0:
		return errors.New("distance must not be negative")
	}
	return nil
}

// DamageTaken is damage inflicted on the character by the world. Without a
// part id the torso takes it.
type DamageTaken struct {
	Amount     float64 `json:"amount"`
	PartID     string  `json:"partId,omitempty"`
	DamageType string  `json:"damageType"`
}

func (p *DamageTaken) Validate() error {
	if p.Amount <= 0 {
		return errors.New("amount must be positive")
	}
	return checkDamageType(p.DamageType)
}

// DamageDealt records damage the character dealt with a technique.
type DamageDealt struct {
	TechniqueID string  `json:"techniqueId"`
	Amount      float64 `json:"amount"`
	TargetID    string  `json:"targetId"`
}

func (p *DamageDealt) Validate() error {
	switch {
	case p.TechniqueID == "":
		return required("techniqueId")
	case p.TargetID == "":
		return required("targetId")
	case p.Amount < 0:
		return errors.New("amount must not be negative")
	}
	return nil
}

// ItemAdded puts items into the inventory.
type ItemAdded struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

func (p *ItemAdded) Validate() error { return checkStack(p.ItemID, p.Quantity) }

// ItemRemoved takes items out of the inventory.
type ItemRemoved struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

func (p *ItemRemoved) Validate() error { return checkStack(p.ItemID, p.Quantity) }

func checkStack(itemID string, quantity int) error {
	if itemID == "" {
		return required("itemId")
	}
	if quantity <= 0 {
		return errors.New("quantity must be positive")
	}
	return nil
}

// ItemUsed consumes one item for its effect.
type ItemUsed struct {
	ItemID string `json:"itemId"`
}

func (p *ItemUsed) Validate() error {
	if p.ItemID == "" {
		return required("itemId")
	}
	return nil
}

// TechniqueLearned teaches the character a technique.
type TechniqueLearned struct {
	TechniqueID string `json:"techniqueId"`
}

func (p *TechniqueLearned) Validate() error {
	if p.TechniqueID == "" {
		return required("techniqueId")
	}
	return nil
}

// Travel moves the character to another location, taking Minutes.
type Travel struct {
	LocationID string `json:"locationId"`
	Minutes    int    `json:"minutes"`
}

func (p *Travel) Validate() error {
	if p.LocationID == "" {
		return required("locationId")
	}
	return checkMinutes("minutes", p.Minutes, true)
}

// Walk spends time moving around the current location.
type Walk struct {
	Minutes int    `json:"minutes"`
	Pace    string `json:"pace,omitempty"`
}

func (p *Walk) Validate() error {
	switch p.Pace {
	case "", "walk", "run":
	default:
		return fmt.Errorf("pace %q is unknown", p.Pace)
	}
	return checkMinutes("minutes", p.Minutes, false)
}

// TimePassed advances world time without any activity.
type TimePassed struct {
	Minutes int `json:"minutes"`
}

func (p *TimePassed) Validate() error { return checkMinutes("minutes", p.Minutes, false) }

// Meditate absorbs Qi for Minutes. Formation is the fraction of
// interruption risk a protective formation removes.
type Meditate struct {
	Minutes   int     `json:"minutes"`
	Kind      string  `json:"kind,omitempty"`
	Formation float64 `json:"formation,omitempty"`
}

func (p *Meditate) Validate() error {
	if !cultivation.ValidKind(cultivation.MeditationKind(p.Kind)) {
		return fmt.Errorf("kind %q is unknown", p.Kind)
	}
	if p.Formation < 0 || p.Formation > 1 {
		return errors.New("formation must be between 0 and 1")
	}
	return checkMinutes("minutes", p.Minutes, false)
}

// Rest recovers fatigue; Sleep recovers faster.
type Rest struct {
	Minutes int  `json:"minutes"`
	Sleep   bool `json:"sleep,omitempty"`
}

func (p *Rest) Validate() error { return checkMinutes("minutes", p.Minutes, false) }

// Breakthrough attempts to advance one cultivation step.
type Breakthrough struct{}

func (p *Breakthrough) Validate() error { return nil }

// StoryUpdate carries the state changes a story generator proposed. The
// generator may not change cultivation, breakthrough progress, location or
// the body, and techniques it grants are learned under the usual
// requirements.
type StoryUpdate struct {
	StateUpdate *types.CharacterDelta `json:"stateUpdate,omitempty"`
	TimeAdvance int                   `json:"timeAdvance,omitempty"`
}

func (p *StoryUpdate) Validate() error {
	if p.StateUpdate == nil && p.TimeAdvance == 0 {
		return errors.New("stateUpdate or timeAdvance is required")
	}
	if err := checkMinutes("timeAdvance", p.TimeAdvance, true); err != nil {
		return err
	}
	if d := p.StateUpdate; d != nil {
		if d.SetLevel != nil || d.SetSubLevel != nil || d.Breakthrough || d.SetCoreCapacity != nil {
			return errors.New("stateUpdate must not change cultivation")
		}
		if d.SetLocationID != nil {
			return errors.New("stateUpdate must not move the character; use movement:travel")
		}
		if d.AddAccumulatedQi != 0 || d.SetCoreFilled != nil {
			return errors.New("stateUpdate must not change breakthrough progress")
		}
		if d.SetBody != nil {
			return errors.New("stateUpdate must not replace the body; use body events")
		}
		if d.Critical {
			return errors.New("stateUpdate must not request a flush")
		}
		for _, lt := range d.LearnTechniques {
			if lt.TechniqueID == "" {
				return errors.New("stateUpdate.learnTechniques: techniqueId is required")
			}
			if lt.MasteryProgress != 0 {
				return errors.New("stateUpdate.learnTechniques: mastery must start at zero")
			}
		}
		for _, it := range d.SetInventory {
			if err := checkStack(it.ItemID, it.Quantity); err != nil {
				return fmt.Errorf("stateUpdate.setInventory: %w", err)
			}
		}
	}
	return nil
}

// PartDamage damages one body part directly.
type PartDamage struct {
	PartID     string  `json:"partId"`
	Amount     float64 `json:"amount"`
	DamageType string  `json:"damageType"`
}

func (p *PartDamage) Validate() error {
	if p.PartID == "" {
		return required("partId")
	}
	if p.Amount <= 0 {
		return errors.New("amount must be positive")
	}
	return checkDamageType(p.DamageType)
}

// Regenerate spends Minutes regenerating one body part.
type Regenerate struct {
	PartID  string `json:"partId"`
	Minutes int    `json:"minutes"`
}

func (p *Regenerate) Validate() error {
	if p.PartID == "" {
		return required("partId")
	}
	return checkMinutes("minutes", p.Minutes, false)
}

// AttachStart begins attaching a severed limb.
type AttachStart struct {
	PartID string              `json:"partId"`
	Limb   types.LimbCandidate `json:"limb"`
}

func (p *AttachStart) Validate() error {
	if p.PartID == "" {
		return required("partId")
	}
	switch p.Limb.Kind {
	case types.PartArm, types.PartLeg, types.PartHead, types.PartTorso:
	case "":
		return required("limb.kind")
	default:
		return fmt.Errorf("limb.kind %q is unknown", p.Limb.Kind)
	}
	if p.Limb.SourceID == "" {
		return required("limb.sourceId")
	}
	return nil
}

// AttachTick advances an attachment in progress.
type AttachTick struct {
	Attachment *int `json:"attachment"`
	Minutes    int  `json:"minutes"`
}

func (p *AttachTick) Validate() error {
	if p.Attachment == nil {
		return required("attachment")
	}
	if *p.Attachment < 0 {
		return errors.New("attachment must not be negative")
	}
	return checkMinutes("minutes", p.Minutes, false)
}
