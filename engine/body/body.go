// Package body models per-part integrity, regeneration and limb
// attachment. A BodyStructure is an arena: attachments refer to parts by
// index. Every function takes the structure by value and returns a new one;
// the input is never modified.
package body

import (
	"math"

	"github.com/nathoo/qicore/engine/fault"
	"github.com/nathoo/qicore/types"
)

// DamageType scales incoming damage.
type DamageType string

const (
	DamageBlunt  DamageType = "blunt"
	DamageSlash  DamageType = "slash"
	DamagePierce DamageType = "pierce"
	DamageQi     DamageType = "qi"
)

var damageMultipliers = map[DamageType]float64{
	DamageBlunt:  1.0,
	DamageSlash:  1.2,
	DamagePierce: 1.1,
	DamageQi:     1.3,
}

// ValidDamageType reports whether t is a known damage type.
func ValidDamageType(t DamageType) bool {
	_, ok := damageMultipliers[t]
	return ok
}

// Thresholds.
const (
	CrippledFraction    = 0.25
	MinRegenLevel       = 3
	MinRegrowLevel      = 5
	FreshnessWindow     = 7 * 24 * 60 // minutes
	ForeignLimbPenalty  = 0.7
	AttachThreshold     = 0.4
	AttachMinutes       = 360.0 // at score 1.0
	ReattachHPFraction  = 0.3
	regenPerLevelMinute = 0.1
)

type partSpec struct {
	id         string
	kind       types.PartKind
	maxHP      float64
	weight     float64
	structural float64
	vital      bool
}

var humanoid = []partSpec{
	{"head", types.PartHead, 50, 0.25, 1.5, true},
	{"torso", types.PartTorso, 100, 0.35, 1.0, true},
	{"left_arm", types.PartArm, 40, 0.1, 0.8, false},
	{"right_arm", types.PartArm, 40, 0.1, 0.8, false},
	{"left_leg", types.PartLeg, 50, 0.1, 0.8, false},
	{"right_leg", types.PartLeg, 50, 0.1, 0.8, false},
}

// NewHumanoid returns a healthy default body.
func NewHumanoid() types.BodyStructure {
	parts := make([]types.BodyPart, len(humanoid))
	for i, s := range humanoid {
		parts[i] = types.BodyPart{
			ID:                   s.id,
			Kind:                 s.kind,
			HP:                   s.maxHP,
			MaxHP:                s.maxHP,
			StructuralMultiplier: s.structural,
			Weight:               s.weight,
			Status:               types.PartHealthy,
			Attached:             true,
			Vital:                s.vital,
		}
	}
	return types.BodyStructure{Parts: parts}
}

// Clone deep-copies a body structure.
func Clone(b types.BodyStructure) types.BodyStructure {
	out := types.BodyStructure{}
	if b.Parts != nil {
		out.Parts = append([]types.BodyPart(nil), b.Parts...)
	}
	if b.Attachments != nil {
		out.Attachments = append([]types.LimbAttachment(nil), b.Attachments...)
	}
	return out
}

// PartIndex returns the arena index of partID, or -1.
func PartIndex(b types.BodyStructure, partID string) int {
	for i := range b.Parts {
		if b.Parts[i].ID == partID {
			return i
		}
	}
	return -1
}

// OverallHealth is the weighted health of attached parts, 0..100. Severed
// parts are excluded from both numerator and weights.
func OverallHealth(b types.BodyStructure) float64 {
	var sum, weights float64
	for _, p := range b.Parts {
		if !p.Attached || p.MaxHP <= 0 {
			continue
		}
		sum += p.Weight * (p.HP / p.MaxHP)
		weights += p.Weight
	}
	if weights == 0 {
		return 0
	}
	return math.Round(sum/weights*types.MaxHealth*100) / 100
}

// statusFor derives the non-severed status from HP.
func statusFor(p types.BodyPart) types.PartStatus {
	switch {
	case p.HP >= p.MaxHP:
		return types.PartHealthy
	case p.HP <= p.MaxHP*CrippledFraction:
		return types.PartCrippled
	default:
		return types.PartWounded
	}
}

// DamageResult reports the effect of damage on one part.
type DamageResult struct {
	PartID        string
	Applied       float64
	NewHP         float64
	OldStatus     types.PartStatus
	NewStatus     types.PartStatus
	Severed       bool
	Fatal         bool
	OverallHealth float64
}

// ApplyDamage damages a part. A non-vital part reduced to zero is severed
// and detached; a vital part at zero is crippled and the result is fatal.
func ApplyDamage(b types.BodyStructure, partID string, amount float64, dt DamageType, now int64) (types.BodyStructure, DamageResult, error) {
	const op = "body.ApplyDamage"
	idx := PartIndex(b, partID)
	if idx < 0 {
		return b, DamageResult{}, fault.NotFound(op, "body part", partID)
	}
	if !b.Parts[idx].Attached {
		return b, DamageResult{}, fault.New(fault.CodeInvalidTransition, op, "part %s is not attached", partID)
	}
	mult, ok := damageMultipliers[dt]
	if !ok {
		mult = 1
	}

	out := Clone(b)
	p := &out.Parts[idx]
	res := DamageResult{PartID: partID, OldStatus: p.Status}
	res.Applied = math.Max(0, amount) * mult * p.StructuralMultiplier
	p.HP = math.Max(0, p.HP-res.Applied)

	switch {
	case p.HP > 0:
		p.Status = statusFor(*p)
	case p.Vital:
		p.Status = types.PartCrippled
		res.Fatal = true
	default:
		p.Status = types.PartSevered
		p.Attached = false
		p.SeveredAt = now
		res.Severed = true
	}
	res.NewHP = p.HP
	res.NewStatus = p.Status
	res.OverallHealth = OverallHealth(out)
	if res.Fatal {
		res.OverallHealth = 0
	}
	return out, res, nil
}

// RegenRate is the HP per minute a cultivator regenerates at level.
func RegenRate(level int) float64 {
	if level < MinRegenLevel {
		return 0
	}
	return regenPerLevelMinute * float64(level-MinRegenLevel+1)
}

// RegenerationResult reports regeneration of one part.
type RegenerationResult struct {
	PartID        string
	HPRestored    float64
	NewHP         float64
	Status        types.PartStatus
	Reattached    bool
	OverallHealth float64
}

// RegenerateLimb heals a part at rate HP per minute (RegenRate when rate is
// not positive). Regeneration needs cultivation level 3; regrowing a severed
// limb needs level 5. A regrown limb reattaches healthy.
func RegenerateLimb(b types.BodyStructure, partID string, rate, minutes float64, level int) (types.BodyStructure, RegenerationResult, error) {
	const op = "body.RegenerateLimb"
	idx := PartIndex(b, partID)
	if idx < 0 {
		return b, RegenerationResult{}, fault.NotFound(op, "body part", partID)
	}
	if level < MinRegenLevel {
		return b, RegenerationResult{}, fault.New(fault.CodeInvalidTransition, op,
			"regeneration requires cultivation level %d", MinRegenLevel)
	}
	part := b.Parts[idx]
	if part.Status == types.PartSevered && level < MinRegrowLevel {
		return b, RegenerationResult{}, fault.New(fault.CodeInvalidTransition, op,
			"regrowing a severed limb requires cultivation level %d", MinRegrowLevel)
	}
	if activeAttachment(b, idx) >= 0 {
		return b, RegenerationResult{}, fault.New(fault.CodeInvalidTransition, op,
			"part %s has an attachment in progress", partID)
	}
	if rate <= 0 {
		rate = RegenRate(level)
	}

	out := Clone(b)
	p := &out.Parts[idx]
	before := p.HP
	p.HP = math.Min(p.MaxHP, p.HP+rate*math.Max(0, minutes))

	res := RegenerationResult{PartID: partID}
	if p.Status == types.PartSevered {
		if p.HP >= p.MaxHP {
			p.Attached = true
			p.SeveredAt = 0
			p.Status = types.PartHealthy
			res.Reattached = true
		}
	} else {
		p.Status = statusFor(*p)
	}
	res.HPRestored = p.HP - before
	res.NewHP = p.HP
	res.Status = p.Status
	res.OverallHealth = OverallHealth(out)
	return out, res, nil
}

// CompatibilityResult scores a limb candidate against a body slot.
type CompatibilityResult struct {
	Compatible bool
	TypeMatch  bool
	Freshness  float64
	Score      float64
	Reason     string
}

// Freshness decays linearly from 1 at severance to 0 after a week.
func Freshness(severedAt, now int64) float64 {
	age := float64(now - severedAt)
	if age < 0 {
		age = 0
	}
	return math.Max(0, 1-age/FreshnessWindow)
}

// CanAttach checks whether candidate can be attached at partID.
func CanAttach(c types.LimbCandidate, b types.BodyStructure, partID string, now int64) CompatibilityResult {
	idx := PartIndex(b, partID)
	if idx < 0 {
		return CompatibilityResult{Reason: "no such body part"}
	}
	return compatibility(c, b.Parts[idx], now)
}

func compatibility(c types.LimbCandidate, p types.BodyPart, now int64) CompatibilityResult {
	res := CompatibilityResult{
		TypeMatch: c.Kind == p.Kind,
		Freshness: Freshness(c.SeveredAt, now),
	}
	if p.Attached {
		res.Reason = "part is still attached"
		return res
	}
	if !res.TypeMatch {
		res.Reason = "limb does not match the missing part"
		return res
	}
	res.Score = res.Freshness
	if !c.Own {
		res.Score *= ForeignLimbPenalty
	}
	if res.Score < AttachThreshold {
		res.Reason = "limb is too degraded to take"
		return res
	}
	res.Compatible = true
	return res
}

func activeAttachment(b types.BodyStructure, partIndex int) int {
	for i, a := range b.Attachments {
		if a.PartIndex == partIndex && a.State == types.AttachmentAttaching {
			return i
		}
	}
	return -1
}

// StartAttachment begins attaching candidate to partID and returns the new
// attachment's index.
func StartAttachment(b types.BodyStructure, partID string, c types.LimbCandidate, now int64) (types.BodyStructure, int, error) {
	const op = "body.StartAttachment"
	idx := PartIndex(b, partID)
	if idx < 0 {
		return b, -1, fault.NotFound(op, "body part", partID)
	}
	if activeAttachment(b, idx) >= 0 {
		return b, -1, fault.New(fault.CodeInvalidTransition, op, "part %s already has an attachment in progress", partID)
	}
	compat := compatibility(c, b.Parts[idx], now)
	if !compat.Compatible {
		return b, -1, fault.New(fault.CodeInvalidTransition, op, "cannot attach to %s: %s", partID, compat.Reason)
	}
	out := Clone(b)
	out.Attachments = append(out.Attachments, types.LimbAttachment{
		PartIndex: idx,
		Candidate: c,
		State:     types.AttachmentAttaching,
		Score:     compat.Score,
		StartedAt: now,
	})
	return out, len(out.Attachments) - 1, nil
}

// TickResult reports one step of an attachment.
type TickResult struct {
	State    types.AttachmentState
	Progress float64
	Reason   string
}

// TickAttachment advances an attaching limb by minutes. Compatibility is
// re-checked every tick; a limb that degrades below the threshold fails.
// Completed and failed attachments are terminal.
func TickAttachment(b types.BodyStructure, attachment int, minutes float64, now int64) (types.BodyStructure, TickResult, error) {
	const op = "body.TickAttachment"
	if attachment < 0 || attachment >= len(b.Attachments) {
		return b, TickResult{}, fault.New(fault.CodeNotFound, op, "no attachment %d", attachment)
	}
	a := b.Attachments[attachment]
	if a.State != types.AttachmentAttaching {
		return b, TickResult{}, fault.New(fault.CodeInvalidTransition, op, "attachment %d is %s", attachment, a.State)
	}
	if a.PartIndex < 0 || a.PartIndex >= len(b.Parts) {
		return b, TickResult{}, fault.New(fault.CodeInternal, op, "attachment %d references part %d", attachment, a.PartIndex)
	}

	out := Clone(b)
	at := &out.Attachments[attachment]
	compat := compatibility(at.Candidate, out.Parts[at.PartIndex], now)
	if !compat.Compatible {
		at.State = types.AttachmentFailed
		return out, TickResult{State: at.State, Progress: at.Progress, Reason: compat.Reason}, nil
	}
	at.Score = compat.Score
	at.Progress = math.Min(100, at.Progress+100*math.Max(0, minutes)*compat.Score/AttachMinutes)
	if at.Progress >= 100 {
		at.State = types.AttachmentAttached
		p := &out.Parts[at.PartIndex]
		p.Attached = true
		p.SeveredAt = 0
		p.HP = p.MaxHP * ReattachHPFraction
		p.Status = types.PartWounded
	}
	return out, TickResult{State: at.State, Progress: at.Progress}, nil
}

// Heal restores up to amount HP across attached, damaged parts in arena
// order. Severed parts are not regrown. It returns the HP actually restored.
func Heal(b types.BodyStructure, amount float64) (types.BodyStructure, float64) {
	out := Clone(b)
	left := math.Max(0, amount)
	for i := range out.Parts {
		if left <= 0 {
			break
		}
		p := &out.Parts[i]
		if !p.Attached || p.HP >= p.MaxHP {
			continue
		}
		gain := math.Min(left, p.MaxHP-p.HP)
		p.HP += gain
		p.Status = statusFor(*p)
		left -= gain
	}
	return out, math.Max(0, amount) - left
}
