package envelope

import (
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/teranos/dirsvc/errors"
	"github.com/teranos/dirsvc/table"
)

// FlatTypeField carries the type name in the flat envelope.
const FlatTypeField = "NTType"

// FlatCodec is the legacy shape:
//
//	{"NTType": "NTTable", "labels": ["channel", "power"], "channel": [...], "power": [...]}
//
// Columns sit next to the envelope's own fields, so a label equal to
// "NTType" or "labels", or a label used twice, cannot be encoded.
type FlatCodec struct{}

func (FlatCodec) Version() Version { return V1Flat }

func (FlatCodec) Encode(t *table.Table) (*structpb.Struct, error) {
	fields := make(map[string]*structpb.Value, len(t.Columns)+2)
	fields[FlatTypeField] = structpb.NewStringValue(TypeName)
	fields[LabelsField] = labelsValue(t.Labels)

	for _, col := range t.Columns {
		if _, taken := fields[col.Label]; taken {
			return nil, errors.WithHint(
				errors.Wrapf(errors.ErrLabelCollision, "label %q cannot be a top-level field", col.Label),
				"request envelope version 2, which names columns positionally")
		}
		v, err := columnValue(col)
		if err != nil {
			return nil, err
		}
		fields[col.Label] = v
	}
	return &structpb.Struct{Fields: fields}, nil
}

func (FlatCodec) Detect(s *structpb.Struct) bool {
	v, ok := s.GetFields()[FlatTypeField]
	return ok && v.GetStringValue() == TypeName
}

func (FlatCodec) Decode(s *structpb.Struct) (*table.Table, error) {
	labels, err := decodeLabels(s)
	if err != nil {
		return nil, err
	}
	cols := make([]table.Column, len(labels))
	for i, label := range labels {
		v, ok := s.GetFields()[label]
		if !ok {
			return nil, errors.Wrapf(errors.ErrMalformedEnvelope, "missing column %q", label)
		}
		if cols[i], err = decodeColumn(label, v); err != nil {
			return nil, err
		}
	}
	return finish(labels, cols)
}
