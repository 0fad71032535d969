package rpc

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/teranos/dirsvc/envelope"
	"github.com/teranos/dirsvc/errors"
	"github.com/teranos/dirsvc/logger"
	"github.com/teranos/dirsvc/service"
	"github.com/teranos/dirsvc/table"
	"github.com/teranos/dirsvc/version"
)

// ClientOptions configures a Client.
type ClientOptions struct {
	// ServerConstraint is a semver constraint the server version must meet,
	// e.g. ">= 1.2, < 2". Development servers are always accepted.
	ServerConstraint string
	Logger           *zap.SugaredLogger
	// DialOptions are appended after the default insecure credentials.
	DialOptions []grpc.DialOption
}

// Client calls a remote directory service.
type Client struct {
	conn       *grpc.ClientConn
	codecs     *envelope.Registry
	constraint string
	logger     *zap.SugaredLogger
}

// Dial creates a client for the server at addr. The connection is
// established lazily on the first call.
func Dial(addr string, opts ClientOptions) (*Client, error) {
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts.DialOptions...)

	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create client for %s", addr)
	}
	log := opts.Logger
	if log == nil {
		log = logger.Logger
	}
	return &Client{
		conn:       conn,
		codecs:     envelope.DefaultRegistry(),
		constraint: opts.ServerConstraint,
		logger:     log,
	}, nil
}

// Query sends req and returns the raw envelope.
func (c *Client) Query(ctx context.Context, req service.Request) (*structpb.Struct, error) {
	var header, trailer metadata.MD
	out := new(structpb.Struct)

	err := c.conn.Invoke(ctx, QueryMethod, req.Args(), out, grpc.Header(&header), grpc.Trailer(&trailer))
	if err != nil {
		return nil, fromStatus(err, trailer)
	}

	if vs := header.Get(VersionHeader); len(vs) > 0 {
		if err := version.Check(vs[0], c.constraint); err != nil {
			return nil, err
		}
	}
	if ids := header.Get(RequestIDHeader); len(ids) > 0 {
		c.logger.Debugw("Query answered", logger.FieldRequestID, ids[0], logger.FieldQuery, req.Query)
	}
	return out, nil
}

// Table sends req and decodes the envelope.
func (c *Client) Table(ctx context.Context, req service.Request) (*table.Table, envelope.Version, error) {
	out, err := c.Query(ctx, req)
	if err != nil {
		return nil, "", err
	}
	return c.codecs.Decode(out)
}

// Health reports whether the server is serving the directory service.
func (c *Client) Health(ctx context.Context) error {
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return fromStatus(err, nil)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return errors.Mark(errors.Newf("directory service is %s", resp.GetStatus()), errors.ErrBackendUnavailable)
	}
	return nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
