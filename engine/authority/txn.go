package authority

import (
	"context"
	"errors"

	"github.com/nathoo/qicore/engine/effects"
	"github.com/nathoo/qicore/engine/fault"
	"github.com/nathoo/qicore/engine/rng"
	"github.com/nathoo/qicore/engine/state"
	"github.com/nathoo/qicore/store"
	"github.com/nathoo/qicore/types"
)

// Txn is a read-compute-write transaction over one session. It works on a
// private copy of the committed state; nothing is visible to readers until
// the transaction function returns nil.
type Txn struct {
	// State is the working copy. Handlers may read it freely; mutations
	// should go through Apply and AdvanceTime so invariants hold.
	State    types.SessionState
	rng      *rng.RNG
	critical bool
	applied  types.CharacterDelta
	advance  *TimeAdvance

	ctx   context.Context
	auth  *Authority
	sess  *session
	moved *types.Location
}

// RNG returns the session's deterministic random source.
func (t *Txn) RNG() rng.Source { return t.rng }

// MarkCritical requests an immediate flush when the transaction commits.
func (t *Txn) MarkCritical() { t.critical = true }

// Critical reports whether the transaction will flush on commit.
func (t *Txn) Critical() bool { return t.critical }

// Apply applies a delta to the working copy. Level changes must be exactly
// one breakthrough step. Learning a new technique, a breakthrough or a
// delta flagged Critical makes the transaction critical; mastery progress
// on known techniques does not.
func (t *Txn) Apply(d types.CharacterDelta) error {
	if err := effects.CheckTransition(t.State.Character, d); err != nil {
		return err
	}
	if d.Critical || d.Breakthrough || learnsNew(t.State, d) {
		t.critical = true
	}
	t.State = effects.Apply(t.State, d)
	t.applied = effects.Merge(t.applied, d)
	return nil
}

func learnsNew(s types.SessionState, d types.CharacterDelta) bool {
	for _, lt := range d.LearnTechniques {
		if !state.Knows(s, lt.TechniqueID) {
			return true
		}
	}
	return false
}

// Applied returns the merged deltas applied so far.
func (t *Txn) Applied() types.CharacterDelta { return t.applied }

// AdvanceTime moves the working copy's clock forward.
func (t *Txn) AdvanceTime(minutes int) TimeAdvance {
	adv := Advance(t.State.Time, minutes)
	t.State.Time = adv.To
	if t.advance == nil {
		t.advance = &adv
	} else {
		t.advance.To = adv.To
		t.advance.Minutes += adv.Minutes
		t.advance.DaysCrossed += adv.DaysCrossed
		t.advance.DayCrossed = t.advance.DaysCrossed > 0
	}
	return adv
}

// Advanced returns the accumulated clock change, or nil.
func (t *Txn) Advanced() *TimeAdvance { return t.advance }

// ChangeLocation binds the working copy to another location. The committed
// state is flushed and the target loaded now; the new location id is
// persisted when the transaction commits, before the swap is published. If
// the transaction is discarded or that write fails, the prior location stays
// bound.
func (t *Txn) ChangeLocation(locationID string) (types.Location, error) {
	const op = "authority.ChangeLocation"
	if err := t.auth.flush(t.ctx, t.sess); err != nil {
		return types.Location{}, err
	}
	loc, err := t.auth.repo.LoadLocation(t.ctx, locationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Location{}, fault.NotFound(op, "location", locationID)
		}
		return types.Location{}, fault.Wrap(fault.CodeStorageFailure, op, err, "load location %s", locationID)
	}
	t.State.Character.LocationID = loc.ID
	t.State.Location = loc
	t.moved = &loc
	return loc, nil
}

// commitLocation persists a location swap made by ChangeLocation and moves
// the persisted baseline with it.
func (a *Authority) commitLocation(ctx context.Context, s *session, loc types.Location) error {
	const op = "authority.ChangeLocation"
	id := loc.ID
	if err := a.repo.SaveCharacter(ctx, s.id, types.CharacterDelta{SetLocationID: &id}); err != nil {
		return fault.Wrap(fault.CodeStorageFailure, op, err, "persist location")
	}
	s.persisted.Character.LocationID = loc.ID
	s.persisted.Location = loc
	return nil
}

// Update runs fn against a private copy of the session state. A non-nil
// error from fn discards the copy and rewinds the session RNG to where the
// transaction started. On success the copy is committed and, if the
// transaction is critical, flushed immediately. A failed critical
// flush returns a StorageFailure together with the committed state: the
// change is kept in memory but not durably confirmed.
func (a *Authority) Update(ctx context.Context, sessionID string, fn func(*Txn) error) (types.SessionState, error) {
	const op = "authority.Update"
	s := a.lookup(sessionID)
	if s == nil {
		return types.SessionState{}, fault.SessionNotLoaded(op, sessionID)
	}
	var out types.SessionState
	err := s.do(ctx, func() error {
		cur := s.current()
		if cur == nil {
			return fault.SessionNotLoaded(op, sessionID)
		}
		txn := &Txn{State: state.Clone(*cur), rng: s.rng, ctx: ctx, auth: a, sess: s}
		pos := s.rng.Position()
		if err := fn(txn); err != nil {
			s.rng.Rewind(pos)
			return err
		}
		if txn.moved != nil {
			if err := a.commitLocation(ctx, s, *txn.moved); err != nil {
				s.rng.Rewind(pos)
				return err
			}
		}
		txn.State.RNGPosition = s.rng.Position()
		txn.State.Version = cur.Version + 1
		s.publish(txn.State)
		if txn.moved == nil || pending(s, txn.State) {
			s.dirty.Store(true)
		}
		out = state.Clone(txn.State)
		if txn.critical {
			return a.flush(ctx, s)
		}
		return nil
	})
	if errors.Is(err, errStopped) {
		return types.SessionState{}, fault.SessionNotLoaded(op, sessionID)
	}
	return out, err
}

// pending reports whether st differs from what was last written.
func pending(s *session, st types.SessionState) bool {
	return !s.timeStored || st.Time != s.persisted.Time || !effects.IsZero(effects.Diff(s.persisted, st))
}

// MutationResult reports the outcome of MutateCharacter.
type MutationResult struct {
	State types.SessionState
	// Critical is true when the change was flushed immediately.
	Critical bool
	// Persisted is false when a critical flush failed; the change is kept
	// in memory and retried by the periodic flush.
	Persisted bool
}

// MutateCharacter applies a field-level delta to a session's character.
func (a *Authority) MutateCharacter(ctx context.Context, sessionID string, d types.CharacterDelta) (MutationResult, error) {
	var critical bool
	st, err := a.Update(ctx, sessionID, func(t *Txn) error {
		if err := t.Apply(d); err != nil {
			return err
		}
		critical = t.Critical()
		return nil
	})
	res := MutationResult{State: st, Critical: critical, Persisted: err == nil && critical}
	if err != nil && !fault.Is(err, fault.CodeStorageFailure) {
		return MutationResult{}, err
	}
	return res, err
}

// AdvanceTime moves a session's clock forward by minutes.
func (a *Authority) AdvanceTime(ctx context.Context, sessionID string, minutes int) (TimeAdvance, error) {
	const op = "authority.AdvanceTime"
	if minutes < 0 {
		return TimeAdvance{}, fault.New(fault.CodeValidation, op, "minutes must not be negative")
	}
	var adv TimeAdvance
	_, err := a.Update(ctx, sessionID, func(t *Txn) error {
		adv = t.AdvanceTime(minutes)
		return nil
	})
	return adv, err
}

// ChangeLocation moves a session to another location. Current state is
// flushed first, the target is loaded and the new location id persisted
// before the in-memory location is swapped; any failure leaves the prior
// location bound.
func (a *Authority) ChangeLocation(ctx context.Context, sessionID, locationID string) (types.SessionState, error) {
	const op = "authority.ChangeLocation"
	ctx, span := a.tracer.Start(ctx, op)
	defer span.End()

	out, err := a.Update(ctx, sessionID, func(t *Txn) error {
		_, err := t.ChangeLocation(locationID)
		return err
	})
	if err != nil {
		span.RecordError(err)
	}
	return out, err
}
