package rpc

import (
	"context"
	"net"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/teranos/dirsvc/errors"
	"github.com/teranos/dirsvc/logger"
	"github.com/teranos/dirsvc/version"
)

// ServerOptions configures a Server.
type ServerOptions struct {
	// MaxRequestsPerSecond limits Query calls process wide. 0 disables the limit.
	MaxRequestsPerSecond float64
	Logger               *zap.SugaredLogger
	// Version is reported to clients in the dirsvc-version header.
	Version string
}

// Server serves a Querier over gRPC with health checking.
type Server struct {
	querier Querier
	logger  *zap.SugaredLogger
	limiter *rate.Limiter
	version string

	grpc   *grpc.Server
	health *health.Server
}

// NewServer creates a server for q.
func NewServer(q Querier, opts ServerOptions) *Server {
	s := &Server{
		querier: q,
		logger:  opts.Logger,
		version: opts.Version,
		health:  health.NewServer(),
	}
	if s.logger == nil {
		s.logger = logger.Logger
	}
	if s.version == "" {
		s.version = version.Version
	}
	if opts.MaxRequestsPerSecond > 0 {
		burst := int(opts.MaxRequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.MaxRequestsPerSecond), burst)
	}

	s.grpc = grpc.NewServer(grpc.UnaryInterceptor(s.intercept))
	RegisterDirectoryServer(s.grpc, q)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

// ListenAndServe listens on addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", addr)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on lis until ctx is done, then stops gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.logger.Infow("Starting directory gRPC server", logger.FieldAddress, lis.Addr().String())

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.logger.Info("Shutting down directory gRPC server")
			s.health.Shutdown()
			s.grpc.GracefulStop()
		case <-done:
		}
	}()

	if err := s.grpc.Serve(lis); err != nil {
		return errors.Wrap(err, "gRPC server error")
	}
	return nil
}

// Stop stops the server immediately.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.Stop()
}

// intercept assigns a request id, applies the rate limit, logs the call
// and maps service errors to gRPC status codes.
func (s *Server) intercept(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	requestID := incomingRequestID(ctx)
	ctx = logger.WithRequestID(ctx, requestID)
	ctx = logger.WithComponent(ctx, "rpc")
	log := logger.FromContext(ctx, s.logger)

	if err := grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, requestID, VersionHeader, s.version)); err != nil {
		log.Debugw("Failed to set response header", logger.FieldError, err)
	}

	if s.limiter != nil && info.FullMethod == QueryMethod && !s.limiter.Allow() {
		log.Warnw("Request rejected by rate limit", logger.FieldMethod, info.FullMethod)
		return nil, status.Error(codes.ResourceExhausted, "request rate limit exceeded")
	}

	start := time.Now()
	resp, err := handler(ctx, req)
	fields := []interface{}{
		logger.FieldMethod, info.FullMethod,
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		fields = append(fields, logger.FieldPeer, p.Addr.String())
	}
	if err != nil {
		st, trailer := toStatus(err)
		if trailer != nil {
			if terr := grpc.SetTrailer(ctx, trailer); terr != nil {
				log.Debugw("Failed to set response trailer", logger.FieldError, terr)
			}
		}
		code := st.Code()
		fields = append(fields, logger.FieldCode, code.String(), logger.FieldError, err)
		if code == codes.Internal || code == codes.Unknown {
			log.Errorw("Call failed", fields...)
		} else {
			log.Infow("Call failed", fields...)
		}
		return nil, st.Err()
	}
	log.Debugw("Call completed", fields...)
	return resp, nil
}

// incomingRequestID reuses a caller supplied request id or makes a new one.
func incomingRequestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get(RequestIDHeader); len(ids) > 0 && ids[0] != "" {
			return ids[0]
		}
	}
	return uuid.NewString()
}
