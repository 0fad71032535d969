package display

import (
	"encoding/json"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// MarshalJSON pretty-prints v. Protobuf messages go through protojson so
// well-known types such as structpb.Struct render as plain JSON.
func MarshalJSON(v interface{}) ([]byte, error) {
	if m, ok := v.(proto.Message); ok {
		return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(m)
	}
	return json.MarshalIndent(v, "", "  ")
}
