// Package types defines the shared data structures for the qicore kernel.
// This package contains only type definitions: no logic, no methods.
package types

import "time"

// Cultivation bounds.
const (
	MinLevel    = 1
	MaxLevel    = 9
	MaxSubLevel = 9
	MaxFatigue  = 100.0
	MaxHealth   = 100.0
)

// Character is the authoritative per-session player character.
type Character struct {
	ID                  string        `json:"id"`
	Name                string        `json:"name"`
	CultivationLevel    int           `json:"cultivationLevel"`
	CultivationSubLevel int           `json:"cultivationSubLevel"`
	CoreCapacity        float64       `json:"coreCapacity"`
	CurrentQi           float64       `json:"currentQi"`
	AccumulatedQi       float64       `json:"accumulatedQi"`
	CoreFilled          bool          `json:"coreFilled"`
	Fatigue             float64       `json:"fatigue"`
	MentalFatigue       float64       `json:"mentalFatigue"`
	Health              float64       `json:"health"`
	Strength            float64       `json:"strength"`
	Agility             float64       `json:"agility"`
	Intelligence        float64       `json:"intelligence"`
	Conductivity        float64       `json:"conductivity"`
	QiUnderstanding     float64       `json:"qiUnderstanding"`
	QiUnderstandingCap  float64       `json:"qiUnderstandingCap"`
	LocationID          string        `json:"locationId"`
	Body                BodyStructure `json:"body"`
}

// CharacterDelta is a field-level change to a Character. Nil fields are
// left untouched. Absolute fields (Set*) replace; Add* fields are offsets.
type CharacterDelta struct {
	SetLevel         *int               `json:"setLevel,omitempty"`
	SetSubLevel      *int               `json:"setSubLevel,omitempty"`
	SetCoreCapacity  *float64           `json:"setCoreCapacity,omitempty"`
	SetCoreFilled    *bool              `json:"setCoreFilled,omitempty"`
	SetLocationID    *string            `json:"setLocationId,omitempty"`
	AddQi            float64            `json:"addQi,omitempty"`
	AddAccumulatedQi float64            `json:"addAccumulatedQi,omitempty"`
	AddFatigue       float64            `json:"addFatigue,omitempty"`
	AddMentalFatigue float64            `json:"addMentalFatigue,omitempty"`
	AddHealth        float64            `json:"addHealth,omitempty"`
	AddUnderstanding float64            `json:"addUnderstanding,omitempty"`
	AddStrength      float64            `json:"addStrength,omitempty"`
	AddAgility       float64            `json:"addAgility,omitempty"`
	AddIntelligence  float64            `json:"addIntelligence,omitempty"`
	AddConductivity  float64            `json:"addConductivity,omitempty"`
	SetBody          *BodyStructure     `json:"setBody,omitempty"`
	LearnTechniques  []LearnedTechnique `json:"learnTechniques,omitempty"`
	SetInventory     []InventoryItem    `json:"setInventory,omitempty"`
	Breakthrough     bool               `json:"breakthrough,omitempty"`
	Critical         bool               `json:"critical,omitempty"`
}

// TerrainType is the closed set of terrain kinds.
type TerrainType string

const (
	TerrainPlains   TerrainType = "plains"
	TerrainForest   TerrainType = "forest"
	TerrainMountain TerrainType = "mountain"
	TerrainSwamp    TerrainType = "swamp"
	TerrainDesert   TerrainType = "desert"
	TerrainCave     TerrainType = "cave"
	TerrainRuins    TerrainType = "ruins"
	TerrainCity     TerrainType = "city"
	TerrainSect     TerrainType = "sect"
)

// Coordinates is an optional map position.
type Coordinates struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Location is owned by the world collaborator; the kernel only reads it.
type Location struct {
	ID                 string       `json:"id"`
	Name               string       `json:"name"`
	Description        string       `json:"description,omitempty"`
	TerrainType        TerrainType  `json:"terrainType"`
	QiDensity          float64      `json:"qiDensity"`
	DistanceFromCenter float64      `json:"distanceFromCenter"`
	Coordinates        *Coordinates `json:"coordinates,omitempty"`
}

// WorldTime is the in-game calendar. Months are a fixed 30 days and years
// 12 months. TotalMinutes is monotonic.
type WorldTime struct {
	Year         int   `json:"year"`
	Month        int   `json:"month"`
	Day          int   `json:"day"`
	Hour         int   `json:"hour"`
	Minute       int   `json:"minute"`
	TotalMinutes int64 `json:"totalMinutes"`
}

// InventoryItem is one stack in a character's inventory.
type InventoryItem struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

// LearnedTechnique records a technique the character knows.
type LearnedTechnique struct {
	TechniqueID     string  `json:"techniqueId"`
	MasteryProgress float64 `json:"masteryProgress"`
}

// SessionState is the single authoritative aggregate for an active session.
type SessionState struct {
	SessionID   string             `json:"sessionId"`
	Character   Character          `json:"character"`
	Location    Location           `json:"location"`
	Time        WorldTime          `json:"time"`
	Inventory   []InventoryItem    `json:"inventory"`
	Techniques  []LearnedTechnique `json:"techniques"`
	RNGSeed     int64              `json:"rngSeed"`
	RNGPosition int64              `json:"rngPosition"`
	Version     int64              `json:"version"`
}

// PartStatus is the integrity state of a body part.
type PartStatus string

const (
	PartHealthy  PartStatus = "healthy"
	PartWounded  PartStatus = "wounded"
	PartCrippled PartStatus = "crippled"
	PartSevered  PartStatus = "severed"
)

// PartKind identifies what a body part is; attachment compatibility
// matches on kind.
type PartKind string

const (
	PartHead  PartKind = "head"
	PartTorso PartKind = "torso"
	PartArm   PartKind = "arm"
	PartLeg   PartKind = "leg"
)

// BodyPart is one entry in a BodyStructure's part table.
type BodyPart struct {
	ID                   string     `json:"id"`
	Kind                 PartKind   `json:"kind"`
	HP                   float64    `json:"hp"`
	MaxHP                float64    `json:"maxHp"`
	StructuralMultiplier float64    `json:"structuralMultiplier"`
	Weight               float64    `json:"weight"`
	Status               PartStatus `json:"status"`
	Attached             bool       `json:"attached"`
	Vital                bool       `json:"vital,omitempty"`
	SeveredAt            int64      `json:"severedAt,omitempty"`
}

// AttachmentState is the limb attachment state machine.
type AttachmentState string

const (
	AttachmentDetached  AttachmentState = "detached"
	AttachmentAttaching AttachmentState = "attaching"
	AttachmentAttached  AttachmentState = "attached"
	AttachmentFailed    AttachmentState = "failed"
)

// LimbCandidate describes a severed limb offered for attachment.
type LimbCandidate struct {
	Kind      PartKind `json:"kind"`
	SourceID  string   `json:"sourceId"`
	SeveredAt int64    `json:"severedAt"`
	Own       bool     `json:"own"`
}

// LimbAttachment tracks one attachment process. PartIndex indexes into
// BodyStructure.Parts.
type LimbAttachment struct {
	PartIndex int             `json:"partIndex"`
	Candidate LimbCandidate   `json:"candidate"`
	State     AttachmentState `json:"state"`
	Progress  float64         `json:"progress"`
	Score     float64         `json:"score"`
	StartedAt int64           `json:"startedAt"`
}

// BodyStructure owns its parts and attachment processes as indexed tables.
type BodyStructure struct {
	Parts       []BodyPart       `json:"parts"`
	Attachments []LimbAttachment `json:"attachments,omitempty"`
}

// TechniqueType classifies what a technique is for.
type TechniqueType string

const (
	TechniqueAttack      TechniqueType = "attack"
	TechniqueDefense     TechniqueType = "defense"
	TechniqueMovement    TechniqueType = "movement"
	TechniqueCultivation TechniqueType = "cultivation"
	TechniqueHealing     TechniqueType = "healing"
	TechniqueSupport     TechniqueType = "support"
)

// TechniqueSubtype selects stat scaling and range behaviour for attacks.
type TechniqueSubtype string

const (
	SubtypeNone         TechniqueSubtype = "none"
	SubtypeBodyStrike   TechniqueSubtype = "body_strike"
	SubtypeWeaponStrike TechniqueSubtype = "weapon_strike"
	SubtypeProjectile   TechniqueSubtype = "projectile"
	SubtypeBeam         TechniqueSubtype = "beam"
	SubtypeAOE          TechniqueSubtype = "aoe"
)

// Element is a technique's elemental affinity.
type Element string

const (
	ElementNone      Element = "none"
	ElementFire      Element = "fire"
	ElementWater     Element = "water"
	ElementWood      Element = "wood"
	ElementMetal     Element = "metal"
	ElementEarth     Element = "earth"
	ElementLightning Element = "lightning"
	ElementWind      Element = "wind"
)

// Rarity grades techniques and items.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// FatigueCost is the flat fatigue a technique costs per use.
type FatigueCost struct {
	Physical float64 `json:"physical"`
	Mental   float64 `json:"mental"`
}

// TechniqueEffects is sparse: only set fields apply.
type TechniqueEffects struct {
	Damage        *float64           `json:"damage,omitempty"`
	Healing       *float64           `json:"healing,omitempty"`
	QiRegen       *float64           `json:"qiRegen,omitempty"`
	Duration      *int               `json:"duration,omitempty"`
	StatModifiers map[string]float64 `json:"statModifiers,omitempty"`
}

// Technique is a content definition.
type Technique struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description,omitempty"`
	Type         TechniqueType    `json:"type"`
	Subtype      TechniqueSubtype `json:"subtype"`
	Element      Element          `json:"element"`
	Rarity       Rarity           `json:"rarity"`
	QiCost       float64          `json:"qiCost"`
	FatigueCost  FatigueCost      `json:"fatigueCost"`
	Effects      TechniqueEffects `json:"effects"`
	BaseDamage   float64          `json:"baseDamage"`
	Penetration  float64          `json:"penetration"`
	Falloff      bool             `json:"falloff"`
	Range        float64          `json:"range,omitempty"`
	Requirements []Condition      `json:"requirements,omitempty"`
}

// ItemKind classifies items.
type ItemKind string

const (
	ItemConsumable ItemKind = "consumable"
	ItemMaterial   ItemKind = "material"
	ItemManual     ItemKind = "manual"
)

// ItemEffects applies when a consumable is used.
type ItemEffects struct {
	QiRestore     float64 `json:"qiRestore,omitempty"`
	Heal          float64 `json:"heal,omitempty"`
	FatigueRelief float64 `json:"fatigueRelief,omitempty"`
	MentalRelief  float64 `json:"mentalRelief,omitempty"`
}

// Item is a content definition.
type Item struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Kind        ItemKind    `json:"kind"`
	Rarity      Rarity      `json:"rarity"`
	Effects     ItemEffects `json:"effects"`
	Teaches     string      `json:"teaches,omitempty"`
}

// Condition is a predicate over a session, used for technique requirements.
type Condition struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params,omitempty"`
	Negate bool           `json:"negate,omitempty"`
	Inner  *Condition     `json:"inner,omitempty"`
}

// InterruptionType classifies what interrupted an activity.
type InterruptionType string

const (
	InterruptCreature   InterruptionType = "creature"
	InterruptPerson     InterruptionType = "person"
	InterruptSpirit     InterruptionType = "spirit"
	InterruptPhenomenon InterruptionType = "phenomenon"
	InterruptRare       InterruptionType = "rare"
)

// InterruptionEvent is what halted an in-progress activity.
type InterruptionEvent struct {
	Type        InterruptionType `json:"type"`
	Name        string           `json:"name,omitempty"`
	Description string           `json:"description,omitempty"`
	DangerLevel int              `json:"dangerLevel"`
	CanIgnore   bool             `json:"canIgnore"`
	CanHide     bool             `json:"canHide"`
}

// CreatureTemplate is a content-pool entry the interruption engine may pick.
type CreatureTemplate struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Type        InterruptionType `json:"type"`
	Terrains    []TerrainType    `json:"terrains,omitempty"`
	MinDanger   int              `json:"minDanger"`
	Description string           `json:"description,omitempty"`
}

// VisualCommand is an outward-bound instruction for the presentation layer.
type VisualCommand struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Changes describes the state delta an event produced.
type Changes struct {
	Character *CharacterDelta    `json:"character,omitempty"`
	Inventory []InventoryItem    `json:"inventory,omitempty"`
	Time      *WorldTime         `json:"time,omitempty"`
	Location  string             `json:"location,omitempty"`
	Body      *BodyStructure     `json:"body,omitempty"`
	Learned   []LearnedTechnique `json:"learned,omitempty"`
}

// ResultError is the structured failure reason carried by an EventResult.
type ResultError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EventResult is the outcome of processing one event.
type EventResult struct {
	Success  bool            `json:"success"`
	EventID  string          `json:"eventId"`
	Changes  *Changes        `json:"changes,omitempty"`
	Commands []VisualCommand `json:"commands"`
	Message  string          `json:"message,omitempty"`
	Error    *ResultError    `json:"error,omitempty"`
}

// WorldDef is the content pack's metadata.
type WorldDef struct {
	Title    string `json:"title"`
	Author   string `json:"author,omitempty"`
	Version  string `json:"version"`
	Start    string `json:"start"`
	Homeland string `json:"homeland,omitempty"`
}

// CharacterTemplate seeds a new character from content.
type CharacterTemplate struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Base       Character          `json:"base"`
	Inventory  []InventoryItem    `json:"inventory,omitempty"`
	Techniques []LearnedTechnique `json:"techniques,omitempty"`
}

// Scene is an authored story beat. Text is a text/template rendered by the
// offline story generator; StateUpdate and TimeAdvance are what the beat
// asks the kernel to apply.
type Scene struct {
	ID          string          `json:"id"`
	Text        string          `json:"text"`
	Requires    []Condition     `json:"requires,omitempty"`
	StateUpdate *CharacterDelta `json:"stateUpdate,omitempty"`
	TimeAdvance int             `json:"timeAdvance,omitempty"`
}
