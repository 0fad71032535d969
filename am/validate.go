package am

import (
	"github.com/teranos/dirsvc/envelope"
	"github.com/teranos/dirsvc/errors"
	"github.com/teranos/dirsvc/logger"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Newf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.MaxRequestsPerSecond < 0 {
		return errors.Newf("server.max_requests_per_second must be >= 0, got %f", c.Server.MaxRequestsPerSecond)
	}

	switch c.Backend.Kind {
	case BackendMemory:
		// fixture_path is optional: an empty memory directory is valid
	case BackendSQLite:
		if c.Backend.DatabasePath == "" {
			return errors.New("backend.database_path cannot be empty for the sqlite backend")
		}
	case BackendChannelFinder:
		if c.Backend.URL == "" {
			return errors.WithHint(
				errors.New("backend.url cannot be empty for the channelfinder backend"),
				"set backend.url or DIRSVC_BACKEND_URL")
		}
		if c.Backend.TimeoutSeconds <= 0 {
			return errors.Newf("backend.timeout_seconds must be > 0, got %d", c.Backend.TimeoutSeconds)
		}
	default:
		return errors.Newf("backend.kind must be one of %s, %s, %s; got %q",
			BackendMemory, BackendSQLite, BackendChannelFinder, c.Backend.Kind)
	}

	if _, err := envelope.DefaultRegistry().Codec(envelope.ParseVersion(c.Table.DefaultVersion)); err != nil {
		return errors.Wrap(err, "table.default_version")
	}

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log.level")
	}

	return nil
}
