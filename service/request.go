package service

import (
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/teranos/dirsvc/envelope"
	"github.com/teranos/dirsvc/errors"
)

// Request argument names.
const (
	ArgQuery      = "query"
	ArgShow       = "show"
	ArgSort       = "sort"
	ArgOwner      = "owner"
	ArgVersion    = "version"
	ArgParameters = "parameters" // accepted from older clients, ignored
)

// Request is a parsed query request.
type Request struct {
	Query string

	// Show is the raw comma separated allow-list; ShowSet reports whether
	// the caller sent one at all.
	Show    string
	ShowSet bool

	Sort  string
	Owner bool

	// Version selects the envelope; empty means the service default.
	Version envelope.Version
}

// ParseRequest reads a Request from call arguments. A missing or non-string
// query fails with errors.ErrMissingArgument. The owner argument is a
// presence flag: any value, including false, turns the owner column on.
func ParseRequest(args *structpb.Struct) (Request, error) {
	fields := args.GetFields()

	var req Request
	q, ok := fields[ArgQuery]
	if !ok {
		return Request{}, errors.NewMissingArgumentError(ArgQuery)
	}
	sv, isString := q.GetKind().(*structpb.Value_StringValue)
	if !isString {
		return Request{}, errors.WithHint(errors.NewMissingArgumentError(ArgQuery), "query must be a string")
	}
	req.Query = sv.StringValue

	var err error
	if req.Show, req.ShowSet, err = optionalString(fields, ArgShow); err != nil {
		return Request{}, err
	}
	if req.Sort, _, err = optionalString(fields, ArgSort); err != nil {
		return Request{}, err
	}
	version, _, err := optionalString(fields, ArgVersion)
	if err != nil {
		return Request{}, err
	}
	if version != "" {
		req.Version = envelope.ParseVersion(version)
	}
	_, req.Owner = fields[ArgOwner]

	return req, nil
}

// Args renders req as call arguments. It is the inverse of ParseRequest.
func (r Request) Args() *structpb.Struct {
	fields := map[string]*structpb.Value{
		ArgQuery: structpb.NewStringValue(r.Query),
	}
	if r.ShowSet {
		fields[ArgShow] = structpb.NewStringValue(r.Show)
	}
	if r.Sort != "" {
		fields[ArgSort] = structpb.NewStringValue(r.Sort)
	}
	if r.Owner {
		fields[ArgOwner] = structpb.NewBoolValue(true)
	}
	if r.Version != "" {
		fields[ArgVersion] = structpb.NewStringValue(string(r.Version))
	}
	return &structpb.Struct{Fields: fields}
}

func optionalString(fields map[string]*structpb.Value, name string) (string, bool, error) {
	v, ok := fields[name]
	if !ok {
		return "", false, nil
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return k.StringValue, true, nil
	case *structpb.Value_NullValue:
		return "", false, nil
	default:
		return "", false, errors.Wrapf(errors.ErrInvalidArgument, "%s must be a string", name)
	}
}
