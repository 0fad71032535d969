// Package directory defines the entities returned by directory queries and
// the backends that produce them.
//
// A backend implements Client. Result order is part of each backend's contract
// because schema discovery and unsorted output follow it:
//   - Memory returns entities in insertion order
//   - sqlitedir.Store returns entities in insertion (rowid) order
//   - channelfinder.Client returns entities in response order
package directory

import "context"

// Property is a named string-valued attribute of an Entity.
type Property struct {
	Name  string `json:"name" yaml:"name" toml:"name"`
	Value string `json:"value" yaml:"value" toml:"value"`
}

// Entity is a named record with properties and tags.
// Owner is empty when no owner is recorded.
type Entity struct {
	Name       string     `json:"name" yaml:"name" toml:"name"`
	Owner      string     `json:"owner,omitempty" yaml:"owner,omitempty" toml:"owner,omitempty"`
	Properties []Property `json:"properties,omitempty" yaml:"properties,omitempty" toml:"properties,omitempty"`
	Tags       []string   `json:"tags,omitempty" yaml:"tags,omitempty" toml:"tags,omitempty"`
}

// Property returns the value of the named property and whether it is set.
func (e Entity) Property(name string) (string, bool) {
	for _, p := range e.Properties {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// HasTag reports whether the entity carries the named tag.
func (e Entity) HasTag(name string) bool {
	for _, t := range e.Tags {
		if t == name {
			return true
		}
	}
	return false
}

// Client executes directory queries.
type Client interface {
	// Find returns the entities matching query, or an empty slice.
	Find(ctx context.Context, query string) ([]Entity, error)
	Close() error
}
