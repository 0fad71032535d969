package envelope

import (
	"strconv"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/teranos/dirsvc/errors"
	"github.com/teranos/dirsvc/table"
)

const (
	// NestedTypeField carries the type id in the nested envelope.
	NestedTypeField = "type"
	// NestedTypeID identifies the nested shape.
	NestedTypeID = TypeName + ":2.0"
	// NestedValueField holds the positional column group.
	NestedValueField = "value"
)

// NestedCodec is the positional shape:
//
//	{"type": "NTTable:2.0", "labels": ["channel", "power"], "value": {"c0": [...], "c1": [...]}}
//
// Labels never become field names, so any label can be carried.
type NestedCodec struct{}

func (NestedCodec) Version() Version { return V2Nested }

// ColumnField is the positional field name of column i.
func ColumnField(i int) string {
	return "c" + strconv.Itoa(i)
}

func (NestedCodec) Encode(t *table.Table) (*structpb.Struct, error) {
	group := make(map[string]*structpb.Value, len(t.Columns))
	for i, col := range t.Columns {
		v, err := columnValue(col)
		if err != nil {
			return nil, err
		}
		group[ColumnField(i)] = v
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		NestedTypeField:  structpb.NewStringValue(NestedTypeID),
		LabelsField:      labelsValue(t.Labels),
		NestedValueField: structpb.NewStructValue(&structpb.Struct{Fields: group}),
	}}, nil
}

func (NestedCodec) Detect(s *structpb.Struct) bool {
	v, ok := s.GetFields()[NestedTypeField]
	return ok && v.GetStringValue() == NestedTypeID
}

func (NestedCodec) Decode(s *structpb.Struct) (*table.Table, error) {
	labels, err := decodeLabels(s)
	if err != nil {
		return nil, err
	}
	group := s.GetFields()[NestedValueField].GetStructValue()
	if group == nil {
		return nil, errors.Wrap(errors.ErrMalformedEnvelope, "missing value group")
	}
	if len(group.GetFields()) != len(labels) {
		return nil, errors.Wrapf(errors.ErrMalformedEnvelope, "%d labels for %d columns", len(labels), len(group.GetFields()))
	}

	cols := make([]table.Column, len(labels))
	for i, label := range labels {
		v, ok := group.GetFields()[ColumnField(i)]
		if !ok {
			return nil, errors.Wrapf(errors.ErrMalformedEnvelope, "missing column %s", ColumnField(i))
		}
		if cols[i], err = decodeColumn(label, v); err != nil {
			return nil, err
		}
	}
	return finish(labels, cols)
}
