// Package rpc exposes the directory query service over gRPC.
//
// The service has one unary method, /dirsvc.Directory/Query, whose request
// and response are both google.protobuf.Struct: the request carries the
// query arguments and the response is the table envelope.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the gRPC service name, also used for health checks.
	ServiceName = "dirsvc.Directory"
	// QueryMethod is the full method name of Query.
	QueryMethod = "/" + ServiceName + "/Query"
)

// Metadata keys set by the server.
const (
	RequestIDHeader  = "dirsvc-request-id"
	VersionHeader    = "dirsvc-version"
	ErrorKindTrailer = "dirsvc-error-kind"
)

// Querier answers Query calls. *service.Service implements it.
type Querier interface {
	Query(ctx context.Context, args *structpb.Struct) (*structpb.Struct, error)
}

var directoryServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Querier)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Query", Handler: queryHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dirsvc/directory.proto",
}

// RegisterDirectoryServer registers q on s.
func RegisterDirectoryServer(s grpc.ServiceRegistrar, q Querier) {
	s.RegisterService(&directoryServiceDesc, q)
}

func queryHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Querier).Query(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: QueryMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Querier).Query(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
