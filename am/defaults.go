package am

import (
	"fmt"

	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", DefaultServerAddress)
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.max_requests_per_second", 0.0)

	// Backend defaults
	v.SetDefault("backend.kind", BackendSQLite)
	v.SetDefault("backend.database_path", "dirsvc.db")
	v.SetDefault("backend.fixture_path", "")
	v.SetDefault("backend.url", "")
	v.SetDefault("backend.timeout_seconds", 30)
	v.SetDefault("backend.allow_private_network", true) // directory services usually live on the facility network

	// Table defaults
	v.SetDefault("table.default_version", "2")

	// Log defaults
	v.SetDefault("log.json", false)
	v.SetDefault("log.level", "info")
}

// BindSensitiveEnvVars explicitly binds configuration that is commonly
// injected by deployment tooling.
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("backend.url", "DIRSVC_BACKEND_URL")
	v.BindEnv("backend.database_path", "DIRSVC_DATABASE_PATH")
	v.BindEnv("server.port", "DIRSVC_PORT")
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Server: %s, Backend: %s, Table: {DefaultVersion: %s}}",
		c.Server.ListenAddress(), c.Backend.Kind, c.Table.DefaultVersion)
}
