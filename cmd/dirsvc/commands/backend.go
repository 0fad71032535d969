package commands

import (
	"context"

	"github.com/teranos/dirsvc/am"
	"github.com/teranos/dirsvc/directory"
	"github.com/teranos/dirsvc/directory/channelfinder"
	"github.com/teranos/dirsvc/directory/sqlitedir"
	"github.com/teranos/dirsvc/errors"
	"github.com/teranos/dirsvc/logger"
)

// backendFactory returns the directory.Factory for the configured backend.
// Nothing is opened until the handle first asks for a client.
func backendFactory(cfg am.BackendConfig) (directory.Factory, error) {
	log := logger.ComponentLogger("directory").With(logger.FieldBackend, cfg.Kind)

	switch cfg.Kind {
	case am.BackendMemory:
		return func(ctx context.Context) (directory.Client, error) {
			if cfg.FixturePath == "" {
				log.Warnw("Memory backend has no fixture_path, directory is empty")
				return directory.NewMemory(), nil
			}
			entities, err := directory.LoadFixtures(cfg.FixturePath)
			if err != nil {
				return nil, err
			}
			log.Infow("Loaded fixtures", logger.FieldPath, cfg.FixturePath, "count", len(entities))
			return directory.NewMemory(entities...), nil
		}, nil

	case am.BackendSQLite:
		return func(ctx context.Context) (directory.Client, error) {
			return sqlitedir.Open(cfg.DatabasePath, log)
		}, nil

	case am.BackendChannelFinder:
		return func(ctx context.Context) (directory.Client, error) {
			return channelfinder.New(cfg.URL, channelfinder.Options{
				Timeout:             cfg.Timeout(),
				AllowPrivateNetwork: cfg.AllowPrivateNetwork,
				Logger:              log,
			})
		}, nil
	}
	return nil, errors.Newf("unknown backend kind %q", cfg.Kind)
}

// loadConfig loads and validates the active configuration.
func loadConfig() (*am.Config, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}
