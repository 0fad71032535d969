package directory

import (
	"context"
	"sync"

	"github.com/teranos/dirsvc/errors"
)

// Memory is an in-memory directory. Find returns matches in insertion order;
// re-adding a name replaces the entity in place.
type Memory struct {
	mu       sync.RWMutex
	entities []Entity
	index    map[string]int
}

// NewMemory creates a directory holding entities.
func NewMemory(entities ...Entity) *Memory {
	m := &Memory{index: make(map[string]int)}
	m.Add(entities...)
	return m
}

// Add inserts or replaces entities by name.
func (m *Memory) Add(entities ...Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entities {
		e = cloneEntity(e)
		if i, ok := m.index[e.Name]; ok {
			m.entities[i] = e
			continue
		}
		m.index[e.Name] = len(m.entities)
		m.entities = append(m.entities, e)
	}
}

// Len returns the number of stored entities.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entities)
}

// Find returns copies of the matching entities.
func (m *Memory) Find(ctx context.Context, query string) ([]Entity, error) {
	q, err := ParseQuery(query)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Entity
	for _, e := range m.entities {
		if q.Match(e) {
			out = append(out, cloneEntity(e))
		}
	}
	return out, nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

// cloneEntity copies the slices so callers cannot mutate stored entities.
func cloneEntity(e Entity) Entity {
	if e.Properties != nil {
		e.Properties = append([]Property(nil), e.Properties...)
	}
	if e.Tags != nil {
		e.Tags = append([]string(nil), e.Tags...)
	}
	return e
}
