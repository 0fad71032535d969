// Package envelope encodes tables into versioned, self-describing
// google.protobuf.Struct payloads and decodes them back.
//
// Every wire shape is a Codec. Adding a shape means adding a Codec and
// registering it; the tabulation stages never change.
package envelope

import (
	"sort"
	"strings"
	"sync"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/teranos/dirsvc/errors"
	"github.com/teranos/dirsvc/table"
)

// Version identifies an envelope shape.
type Version string

const (
	// V1Flat places each column at the top level under its label.
	V1Flat Version = "1"
	// V2Nested places columns under "value" as c0, c1, ...
	V2Nested Version = "2"
)

// TypeName is the normative type every envelope declares.
const TypeName = "NTTable"

// LabelsField holds the ordered column labels in every envelope.
const LabelsField = "labels"

// ParseVersion accepts "1", "v1", "2", "V2" and similar spellings.
func ParseVersion(raw string) Version {
	return Version(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(raw)), "v"))
}

// Codec converts between tables and one envelope shape.
type Codec interface {
	Version() Version
	Encode(t *table.Table) (*structpb.Struct, error)
	Decode(s *structpb.Struct) (*table.Table, error)
	// Detect reports whether s has this codec's shape.
	Detect(s *structpb.Struct) bool
}

// Registry maps versions to codecs.
type Registry struct {
	mu     sync.RWMutex
	codecs map[Version]Codec
}

// NewRegistry creates a registry holding the given codecs.
func NewRegistry(codecs ...Codec) *Registry {
	r := &Registry{codecs: make(map[Version]Codec)}
	for _, c := range codecs {
		r.Register(c)
	}
	return r
}

// DefaultRegistry returns a registry with the flat and nested codecs.
func DefaultRegistry() *Registry {
	return NewRegistry(FlatCodec{}, NestedCodec{})
}

// Register adds or replaces the codec for its version.
func (r *Registry) Register(c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[c.Version()] = c
}

// Codec returns the codec registered for version.
func (r *Registry) Codec(version Version) (Codec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[version]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnknownVersion, "version %q (supported: %s)", version, strings.Join(r.versionsLocked(), ", "))
	}
	return c, nil
}

// Versions lists registered versions in ascending order.
func (r *Registry) Versions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.versionsLocked()
}

func (r *Registry) versionsLocked() []string {
	out := make([]string, 0, len(r.codecs))
	for v := range r.codecs {
		out = append(out, string(v))
	}
	sort.Strings(out)
	return out
}

// Encode encodes t with the codec for version.
func (r *Registry) Encode(version Version, t *table.Table) (*structpb.Struct, error) {
	c, err := r.Codec(version)
	if err != nil {
		return nil, err
	}
	return c.Encode(t)
}

// Decode finds the codec whose shape matches s and decodes it.
func (r *Registry) Decode(s *structpb.Struct) (*table.Table, Version, error) {
	if s == nil {
		return nil, "", errors.Wrap(errors.ErrMalformedEnvelope, "nil payload")
	}
	r.mu.RLock()
	candidates := make([]Codec, 0, len(r.codecs))
	for _, c := range r.codecs {
		candidates = append(candidates, c)
	}
	r.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Version() < candidates[j].Version() })
	for _, c := range candidates {
		if c.Detect(s) {
			t, err := c.Decode(s)
			return t, c.Version(), err
		}
	}
	return nil, "", errors.Wrap(errors.ErrMalformedEnvelope, "payload matches no known envelope")
}

// columnValue converts a column into a list of string or bool values.
func columnValue(col table.Column) (*structpb.Value, error) {
	var values []*structpb.Value
	switch col.Kind {
	case table.KindText:
		values = make([]*structpb.Value, len(col.Text))
		for i, v := range col.Text {
			values[i] = structpb.NewStringValue(v)
		}
	case table.KindBoolean:
		values = make([]*structpb.Value, len(col.Bool))
		for i, v := range col.Bool {
			values[i] = structpb.NewBoolValue(v)
		}
	default:
		return nil, errors.NewUnsupportedColumnTypeError(col.Label, col.Kind)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: values}), nil
}

// decodeColumn reads a list value back into a column. The kind comes from
// the element type; an empty list decodes as text.
func decodeColumn(label string, v *structpb.Value) (table.Column, error) {
	list := v.GetListValue()
	if list == nil {
		return table.Column{}, errors.Wrapf(errors.ErrMalformedEnvelope, "column %q is not an array", label)
	}
	items := list.GetValues()
	if len(items) == 0 {
		return table.TextColumn(label, []string{}), nil
	}

	switch items[0].GetKind().(type) {
	case *structpb.Value_StringValue:
		out := make([]string, len(items))
		for i, item := range items {
			s, ok := item.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return table.Column{}, errors.Wrapf(errors.ErrMalformedEnvelope, "column %q mixes element types at %d", label, i)
			}
			out[i] = s.StringValue
		}
		return table.TextColumn(label, out), nil
	case *structpb.Value_BoolValue:
		out := make([]bool, len(items))
		for i, item := range items {
			b, ok := item.GetKind().(*structpb.Value_BoolValue)
			if !ok {
				return table.Column{}, errors.Wrapf(errors.ErrMalformedEnvelope, "column %q mixes element types at %d", label, i)
			}
			out[i] = b.BoolValue
		}
		return table.BoolColumn(label, out), nil
	default:
		return table.Column{}, errors.Wrapf(errors.ErrUnsupportedColumnType, "column %q holds %T elements", label, items[0].GetKind())
	}
}

func labelsValue(labels []string) *structpb.Value {
	values := make([]*structpb.Value, len(labels))
	for i, l := range labels {
		values[i] = structpb.NewStringValue(l)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: values})
}

func decodeLabels(s *structpb.Struct) ([]string, error) {
	v, ok := s.GetFields()[LabelsField]
	if !ok {
		return nil, errors.Wrap(errors.ErrMalformedEnvelope, "missing labels")
	}
	col, err := decodeColumn(LabelsField, v)
	if err != nil {
		return nil, err
	}
	if col.Kind != table.KindText {
		return nil, errors.Wrap(errors.ErrMalformedEnvelope, "labels are not strings")
	}
	return col.Text, nil
}

// finish checks the decoded columns agree on row count and builds the table.
func finish(labels []string, cols []table.Column) (*table.Table, error) {
	t := &table.Table{Labels: labels, Columns: cols}
	if len(cols) > 0 {
		t.Rows = cols[0].Len()
	}
	if err := t.Validate(); err != nil {
		return nil, errors.Mark(err, errors.ErrMalformedEnvelope)
	}
	return t, nil
}
