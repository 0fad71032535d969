// Package service runs directory queries through the tabulation pipeline:
// find, discover, filter, sort, assemble and encode.
package service

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/teranos/dirsvc/directory"
	"github.com/teranos/dirsvc/envelope"
	"github.com/teranos/dirsvc/errors"
	"github.com/teranos/dirsvc/logger"
	"github.com/teranos/dirsvc/table"
)

// Options configures a Service.
type Options struct {
	// DefaultVersion is used when a request names no version. Defaults to v2.
	DefaultVersion envelope.Version
	Logger         *zap.SugaredLogger
}

// Service answers query requests. It is safe for concurrent use.
type Service struct {
	handle *directory.Handle
	codecs *envelope.Registry
	logger *zap.SugaredLogger

	defaultVersion atomic.Value // envelope.Version
}

// New creates a Service. A nil registry means envelope.DefaultRegistry.
func New(handle *directory.Handle, codecs *envelope.Registry, opts Options) (*Service, error) {
	if handle == nil {
		return nil, errors.AssertionFailedf("service requires a directory handle")
	}
	if codecs == nil {
		codecs = envelope.DefaultRegistry()
	}
	log := opts.Logger
	if log == nil {
		log = logger.Logger
	}

	s := &Service{handle: handle, codecs: codecs, logger: log}
	v := opts.DefaultVersion
	if v == "" {
		v = envelope.V2Nested
	}
	if err := s.SetDefaultVersion(v); err != nil {
		return nil, err
	}
	return s, nil
}

// DefaultVersion returns the envelope version used when a request names none.
func (s *Service) DefaultVersion() envelope.Version {
	return s.defaultVersion.Load().(envelope.Version)
}

// SetDefaultVersion changes the default envelope version. Requests already
// running keep the version they started with.
func (s *Service) SetDefaultVersion(v envelope.Version) error {
	if _, err := s.codecs.Codec(v); err != nil {
		return err
	}
	s.defaultVersion.Store(v)
	return nil
}

// Query parses args, runs the pipeline and returns the encoded envelope.
func (s *Service) Query(ctx context.Context, args *structpb.Struct) (*structpb.Struct, error) {
	req, err := ParseRequest(args)
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, req)
}

// Execute runs req and encodes the table. Either a complete envelope or an
// error is returned, never both.
func (s *Service) Execute(ctx context.Context, req Request) (*structpb.Struct, error) {
	version := req.Version
	if version == "" {
		version = s.DefaultVersion()
	}
	codec, err := s.codecs.Codec(version)
	if err != nil {
		return nil, err
	}

	t, err := s.Tabulate(ctx, req)
	if err != nil {
		return nil, err
	}

	out, err := codec.Encode(t)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Tabulate runs req against the backend and assembles the table.
func (s *Service) Tabulate(ctx context.Context, req Request) (*table.Table, error) {
	log := logger.FromContext(ctx, s.logger)
	start := time.Now()

	client, err := s.handle.Client(ctx)
	if err != nil {
		log.Warnw("Directory backend unavailable", logger.FieldError, err)
		return nil, err
	}

	entities, err := client.Find(ctx, req.Query)
	if err != nil {
		log.Warnw("Directory query failed",
			logger.FieldQuery, req.Query,
			logger.FieldError, err,
		)
		return nil, errors.WithStack(err)
	}

	schema := table.Discover(entities)
	sel := table.Filter(schema, table.ParseShow(req.Show, req.ShowSet))
	sorted := table.SortEntities(entities, table.ParseSortKeys(req.Sort))

	t, err := table.Assemble(sorted, sel, req.Owner)
	if err != nil {
		log.Errorw("Table assembly failed", logger.FieldQuery, req.Query, logger.FieldError, err)
		return nil, err
	}

	log.Infow("Query tabulated",
		logger.FieldQuery, req.Query,
		logger.FieldShow, req.Show,
		logger.FieldSort, req.Sort,
		logger.FieldOwner, req.Owner,
		logger.FieldRows, t.Rows,
		logger.FieldColumns, len(t.Columns),
		logger.FieldProperties, len(sel.Properties),
		logger.FieldTags, len(sel.Tags),
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)
	return t, nil
}
