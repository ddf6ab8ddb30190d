package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nathoo/qicore/engine/body"
	"github.com/nathoo/qicore/types"
)

// Memory is an in-process Repository for tests and demos.
type Memory struct {
	mu         sync.RWMutex
	characters map[string]Record
	locations  map[string]types.Location
	times      map[string]types.WorldTime
}

// NewMemory returns an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		characters: map[string]Record{},
		locations:  map[string]types.Location{},
		times:      map[string]types.WorldTime{},
	}
}

// CreateCharacter stores a new character record, replacing any existing one.
func (m *Memory) CreateCharacter(_ context.Context, rec Record) error {
	if rec.Character.ID == "" {
		return fmt.Errorf("create character: id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.characters[rec.Character.ID] = cloneRecord(rec)
	return nil
}

// ImportLocations stores locations, replacing any with the same id.
func (m *Memory) ImportLocations(_ context.Context, locs []types.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range locs {
		m.locations[l.ID] = l
	}
	return nil
}

// CharacterIDs lists stored character ids in sorted order.
func (m *Memory) CharacterIDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.characters))
	for id := range m.characters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) LoadCharacter(_ context.Context, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.characters[id]
	if !ok {
		return Record{}, fmt.Errorf("character %s: %w", id, ErrNotFound)
	}
	return cloneRecord(rec), nil
}

func (m *Memory) SaveCharacter(_ context.Context, id string, d types.CharacterDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.characters[id]
	if !ok {
		return fmt.Errorf("character %s: %w", id, ErrNotFound)
	}
	m.characters[id] = cloneRecord(applyDelta(rec, d))
	return nil
}

func (m *Memory) LoadLocation(_ context.Context, id string) (types.Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.locations[id]
	if !ok {
		return types.Location{}, fmt.Errorf("location %s: %w", id, ErrNotFound)
	}
	return l, nil
}

func (m *Memory) LoadSessionTime(_ context.Context, sessionID string) (types.WorldTime, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.times[sessionID]
	return t, ok, nil
}

func (m *Memory) SaveSessionTime(_ context.Context, sessionID string, t types.WorldTime) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.times[sessionID] = t
	return nil
}

func (m *Memory) Close() error { return nil }

func cloneRecord(rec Record) Record {
	out := rec
	out.Character.Body = body.Clone(rec.Character.Body)
	out.Inventory = append([]types.InventoryItem{}, rec.Inventory...)
	out.Techniques = append([]types.LearnedTechnique{}, rec.Techniques...)
	return out
}
