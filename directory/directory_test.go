package directory

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/dirsvc/errors"
)

func sample() []Entity {
	return []Entity{
		{Name: "SR:C01-MG:Q1", Owner: "ops", Properties: []Property{{Name: "power", Value: "5"}, {Name: "cell", Value: "C01"}}, Tags: []string{"archived"}},
		{Name: "SR:C01-MG:Q2", Properties: []Property{{Name: "power", Value: "3"}}},
		{Name: "SR:C02-MG:S1", Owner: "physics", Tags: []string{"aligned", "archived"}},
		{Name: "BR/RF:Cav1", Properties: []Property{{Name: "cell", Value: "[x]"}}},
	}
}

func TestEntityAccessors(t *testing.T) {
	e := sample()[0]

	v, ok := e.Property("power")
	assert.True(t, ok)
	assert.Equal(t, "5", v)
	_, ok = e.Property("voltage")
	assert.False(t, ok)
	assert.True(t, e.HasTag("archived"))
	assert.False(t, e.HasTag("aligned"))
}

func TestMemoryFind(t *testing.T) {
	m := NewMemory(sample()...)
	ctx := context.Background()

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "match all", query: "*", want: []string{"SR:C01-MG:Q1", "SR:C01-MG:Q2", "SR:C02-MG:S1", "BR/RF:Cav1"}},
		{name: "name glob", query: "SR:C01-*", want: []string{"SR:C01-MG:Q1", "SR:C01-MG:Q2"}},
		{name: "name globs are OR-ed", query: "*S1 *Q2", want: []string{"SR:C01-MG:Q2", "SR:C02-MG:S1"}},
		{name: "tag", query: "tag=archived", want: []string{"SR:C01-MG:Q1", "SR:C02-MG:S1"}},
		{name: "tag and name", query: "SR:C02* ~tag=archived", want: []string{"SR:C02-MG:S1"}},
		{name: "property glob", query: "power=?", want: []string{"SR:C01-MG:Q1", "SR:C01-MG:Q2"}},
		{name: "property literal brackets", query: "cell=[x]", want: []string{"BR/RF:Cav1"}},
		{name: "star crosses slash", query: "BR*Cav1", want: []string{"BR/RF:Cav1"}},
		{name: "quoted value", query: `"cell=[x]" 'BR/*'`, want: []string{"BR/RF:Cav1"}},
		{name: "no match", query: "XX*", want: nil},
		{name: "empty query", query: "  ", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Find(ctx, tt.query)
			require.NoError(t, err)
			var names []string
			for _, e := range got {
				names = append(names, e.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestMemoryFind_ReturnsCopies(t *testing.T) {
	m := NewMemory(sample()...)

	got, err := m.Find(context.Background(), "SR:C01-MG:Q1")
	require.NoError(t, err)
	got[0].Properties[0].Value = "changed"

	again, err := m.Find(context.Background(), "SR:C01-MG:Q1")
	require.NoError(t, err)
	assert.Equal(t, "5", again[0].Properties[0].Value)
}

func TestMemoryAdd_ReplacesInPlace(t *testing.T) {
	m := NewMemory(sample()...)
	m.Add(Entity{Name: "SR:C01-MG:Q1", Owner: "new"})

	assert.Equal(t, 4, m.Len())
	got, err := m.Find(context.Background(), "*")
	require.NoError(t, err)
	assert.Equal(t, "new", got[0].Owner)
}

func TestParseQuery_Errors(t *testing.T) {
	for _, raw := range []string{"=x", "power=", "tag=", `"SR:*`} {
		_, err := ParseQuery(raw)
		assert.Error(t, err, raw)
	}
}

type fakeClient struct{ closed atomic.Bool }

func (f *fakeClient) Find(context.Context, string) ([]Entity, error) { return nil, nil }
func (f *fakeClient) Close() error                                   { f.closed.Store(true); return nil }

func TestHandle_CreatesOnceUnderConcurrency(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	h := NewHandle(func(ctx context.Context) (Client, error) {
		calls.Add(1)
		<-release
		return &fakeClient{}, nil
	})

	const workers = 32
	var wg sync.WaitGroup
	clients := make([]Client, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := h.Client(context.Background())
			assert.NoError(t, err)
			clients[i] = c
		}(i)
	}
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, c := range clients {
		assert.Same(t, clients[0], c)
	}
}

func TestHandle_RetriesAfterFailure(t *testing.T) {
	attempts := 0
	h := NewHandle(func(ctx context.Context) (Client, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("dial tcp: connection refused")
		}
		return &fakeClient{}, nil
	})

	_, err := h.Client(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsBackendUnavailableError(err))
	assert.Equal(t, "dial tcp: connection refused", err.Error())

	c, err := h.Client(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, c)
	assert.Equal(t, 2, attempts)
}

func TestHandle_Close(t *testing.T) {
	fc := &fakeClient{}
	h := StaticHandle(fc)

	require.NoError(t, h.Close())
	assert.True(t, fc.closed.Load())

	_, err := h.Client(context.Background())
	assert.True(t, errors.IsBackendUnavailableError(err))
}

func TestHandle_NoFactory(t *testing.T) {
	_, err := NewHandle(nil).Client(context.Background())
	assert.True(t, errors.IsBackendUnavailableError(err))
}

func TestParseFixtures(t *testing.T) {
	formats := map[string]string{
		"json": `{"channels": [
			{"name": "SR:C01-MG:Q1", "owner": "ops", "properties": [{"name": "power", "value": "5"}], "tags": ["archived"]},
			{"name": "SR:C01-MG:Q2"}
		]}`,
		"yaml": `
channels:
  - name: SR:C01-MG:Q1
    owner: ops
    properties:
      - {name: power, value: "5"}
    tags: [archived]
  - name: SR:C01-MG:Q2
`,
		"toml": `
[[channel]]
name = "SR:C01-MG:Q1"
owner = "ops"
properties = [{ name = "power", value = "5" }]
tags = ["archived"]

[[channel]]
name = "SR:C01-MG:Q2"
`,
	}

	for ext, data := range formats {
		t.Run(ext, func(t *testing.T) {
			entities, err := ParseFixtures([]byte(data), "."+ext)
			require.NoError(t, err)
			require.Len(t, entities, 2)
			assert.Equal(t, "ops", entities[0].Owner)
			assert.Equal(t, []Property{{Name: "power", Value: "5"}}, entities[0].Properties)
			assert.Equal(t, []string{"archived"}, entities[0].Tags)
			assert.Equal(t, "SR:C01-MG:Q2", entities[1].Name)
		})
	}
}

func TestParseFixtures_Invalid(t *testing.T) {
	_, err := ParseFixtures([]byte(`{"channels": [{"name": "a"}, {"name": "a"}]}`), ".json")
	assert.Error(t, err)

	_, err = ParseFixtures([]byte(`{"channels": [{"name": "a", "tags": ["t", "t"]}]}`), ".json")
	assert.Error(t, err)

	_, err = ParseFixtures([]byte(`channels: []`), ".csv")
	assert.Error(t, err)
}

func TestLoadFixtures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "channels.yaml")
	require.NoError(t, os.WriteFile(path, []byte("channels:\n  - name: a\n"), 0644))

	entities, err := LoadFixtures(path)
	require.NoError(t, err)
	assert.Equal(t, []Entity{{Name: "a"}}, entities)
}
