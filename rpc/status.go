package rpc

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/teranos/dirsvc/errors"
)

// errorKinds ties each sentinel to its status code and the trailer value
// clients use to restore it.
var errorKinds = []struct {
	kind     string
	sentinel error
	code     codes.Code
}{
	{"missing_argument", errors.ErrMissingArgument, codes.InvalidArgument},
	{"invalid_argument", errors.ErrInvalidArgument, codes.InvalidArgument},
	{"unknown_version", errors.ErrUnknownVersion, codes.InvalidArgument},
	{"backend_unavailable", errors.ErrBackendUnavailable, codes.Unavailable},
	{"label_collision", errors.ErrLabelCollision, codes.FailedPrecondition},
	{"unsupported_column_type", errors.ErrUnsupportedColumnType, codes.Internal},
	{"malformed_envelope", errors.ErrMalformedEnvelope, codes.Internal},
}

// toStatus converts a service error into a gRPC status and the trailer
// naming its kind. The message is passed through unchanged.
func toStatus(err error) (*status.Status, metadata.MD) {
	if st, ok := status.FromError(err); ok {
		return st, nil
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.sentinel) {
			return status.New(k.code, err.Error()), metadata.Pairs(ErrorKindTrailer, k.kind)
		}
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.New(codes.Canceled, err.Error()), nil
	case errors.Is(err, context.DeadlineExceeded):
		return status.New(codes.DeadlineExceeded, err.Error()), nil
	}
	return status.New(codes.Unknown, err.Error()), nil
}

// fromStatus turns a call error back into an error that matches the
// sentinel named in the trailer.
func fromStatus(err error, trailer metadata.MD) error {
	st, ok := status.FromError(err)
	if !ok {
		return errors.WithStack(err)
	}
	out := errors.Newf("%s", st.Message())
	if kinds := trailer.Get(ErrorKindTrailer); len(kinds) > 0 {
		for _, k := range errorKinds {
			if k.kind == kinds[0] {
				return errors.Mark(out, k.sentinel)
			}
		}
	}
	if st.Code() == codes.Unavailable {
		// transport level failure, the server never answered
		return errors.Mark(errors.Wrap(err, "directory service unreachable"), errors.ErrBackendUnavailable)
	}
	return errors.WithDetailf(out, "grpc code %s", st.Code())
}
