// Package am loads, validates, persists and watches dirsvc configuration.
//
// Configuration is TOML (dirsvc.toml) merged in precedence order
// system < user < project < DIRSVC_* environment variables.
package am

import (
	"net"
	"strconv"
	"time"
)

// Config represents the dirsvc configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Backend BackendConfig `mapstructure:"backend"`
	Table   TableConfig   `mapstructure:"table"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig configures the gRPC listener
type ServerConfig struct {
	Address              string  `mapstructure:"address"`
	Port                 int     `mapstructure:"port"`
	MaxRequestsPerSecond float64 `mapstructure:"max_requests_per_second"` // 0 = unlimited
}

// Backend kinds
const (
	BackendMemory        = "memory"
	BackendSQLite        = "sqlite"
	BackendChannelFinder = "channelfinder"
)

// BackendConfig selects and configures the directory backend
type BackendConfig struct {
	Kind                string `mapstructure:"kind"`                  // memory, sqlite or channelfinder
	DatabasePath        string `mapstructure:"database_path"`         // sqlite
	FixturePath         string `mapstructure:"fixture_path"`          // memory: entities loaded at startup
	URL                 string `mapstructure:"url"`                   // channelfinder base URL
	TimeoutSeconds      int    `mapstructure:"timeout_seconds"`       // channelfinder request timeout
	AllowPrivateNetwork bool   `mapstructure:"allow_private_network"` // channelfinder on a private address
}

// TableConfig configures table encoding
type TableConfig struct {
	DefaultVersion string `mapstructure:"default_version"` // envelope version used when a request names none
}

// LogConfig configures logging
type LogConfig struct {
	JSON  bool   `mapstructure:"json"`
	Level string `mapstructure:"level"`
}

// Server defaults
const (
	DefaultServerAddress = "127.0.0.1"
	DefaultServerPort    = 5075
)

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)

// ConfigFileName is the configuration file searched for at every level.
const ConfigFileName = "dirsvc.toml"

// ListenAddress returns host:port for the gRPC listener.
func (s ServerConfig) ListenAddress() string {
	return net.JoinHostPort(s.Address, strconv.Itoa(s.Port))
}

// Timeout returns the backend request timeout.
func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSeconds) * time.Second
}
