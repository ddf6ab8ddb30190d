// Package store provides the durable repository the session authority
// loads from and flushes to, with in-memory and SQLite implementations.
package store

import (
	"context"
	"errors"

	"github.com/nathoo/qicore/engine/effects"
	"github.com/nathoo/qicore/types"
)

// ErrNotFound is returned when a character or location does not exist.
var ErrNotFound = errors.New("not found")

// Record is a persisted character with its inventory and techniques.
type Record struct {
	Character  types.Character
	Inventory  []types.InventoryItem
	Techniques []types.LearnedTechnique
}

// Repository defines the storage interface the session authority depends on.
type Repository interface {
	// LoadCharacter returns the stored character record, or ErrNotFound.
	LoadCharacter(ctx context.Context, id string) (Record, error)

	// SaveCharacter applies a field-level delta to the stored record.
	SaveCharacter(ctx context.Context, id string, delta types.CharacterDelta) error

	// LoadLocation returns a location, or ErrNotFound.
	LoadLocation(ctx context.Context, id string) (types.Location, error)

	// LoadSessionTime returns the stored world time of a session. found is
	// false when the session has no time record yet.
	LoadSessionTime(ctx context.Context, sessionID string) (t types.WorldTime, found bool, err error)

	// SaveSessionTime stores the world time of a session.
	SaveSessionTime(ctx context.Context, sessionID string, t types.WorldTime) error

	// Close releases any resources held by the repository.
	Close() error
}

// Seeder creates the records a new game starts from. Both shipped
// repositories implement it.
type Seeder interface {
	CreateCharacter(ctx context.Context, rec Record) error
	ImportLocations(ctx context.Context, locs []types.Location) error
	CharacterIDs(ctx context.Context) ([]string, error)
}

// applyDelta folds a delta into a stored record with the same clamping the
// authority uses, so persisted and in-memory state agree.
func applyDelta(rec Record, d types.CharacterDelta) Record {
	s := effects.Apply(types.SessionState{
		Character:  rec.Character,
		Inventory:  rec.Inventory,
		Techniques: rec.Techniques,
	}, d)
	return Record{Character: s.Character, Inventory: s.Inventory, Techniques: s.Techniques}
}

var (
	_ Repository = (*Memory)(nil)
	_ Seeder     = (*Memory)(nil)
	_ Repository = (*SQLite)(nil)
	_ Seeder     = (*SQLite)(nil)
)
