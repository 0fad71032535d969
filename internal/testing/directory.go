package testing

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/teranos/dirsvc/directory"
)

// Channels returns a small directory used across package tests.
// Property and tag order is deliberately uneven between entities.
func Channels() []directory.Entity {
	return []directory.Entity{
		{
			Name:       "SR:C01-MG:PS1",
			Owner:      "ops",
			Properties: []directory.Property{{Name: "cell", Value: "C01"}, {Name: "device", Value: "PS"}},
			Tags:       []string{"archived"},
		},
		{
			Name:       "SR:C02-MG:PS1",
			Owner:      "physics",
			Properties: []directory.Property{{Name: "device", Value: "PS"}},
			Tags:       []string{"aligned", "archived"},
		},
		{
			Name:       "SR:C03-BI:BPM1",
			Properties: []directory.Property{{Name: "cell", Value: "C03"}, {Name: "device", Value: "BPM"}, {Name: "unit", Value: "mm"}},
		},
	}
}

// FakeClient is a directory.Client that returns canned results and records queries.
type FakeClient struct {
	Entities []directory.Entity
	Err      error

	mu      sync.Mutex
	queries []string
	closed  atomic.Bool
}

// Find records query and returns the canned entities or error.
func (f *FakeClient) Find(ctx context.Context, query string) ([]directory.Entity, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Entities, nil
}

// Close marks the client closed.
func (f *FakeClient) Close() error {
	f.closed.Store(true)
	return nil
}

// Queries returns every query seen so far.
func (f *FakeClient) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// Closed reports whether Close was called.
func (f *FakeClient) Closed() bool { return f.closed.Load() }
