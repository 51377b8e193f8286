package config

import "fmt"

// ServerConfig contains the reference API server configuration.
type ServerConfig struct {
	Listen      string          `yaml:"listen" mapstructure:"listen"`
	CORSOrigins []string        `yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`
	RateLimit   RateLimitConfig `yaml:"rate_limit,omitempty" mapstructure:"rate_limit"`
	Database    DatabaseConfig  `yaml:"database" mapstructure:"database"`
	Storage     StorageConfig   `yaml:"storage" mapstructure:"storage"`
}

// StorageConfig configures where uploaded artifact files are kept.
type StorageConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
	// Owner is an optional "UID:GID" applied to stored files.
	Owner string `yaml:"owner,omitempty" mapstructure:"owner"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver   string               `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteDatabaseConfig `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres PostgresConfig       `yaml:"postgres,omitempty" mapstructure:"postgres"`
}

// SQLiteDatabaseConfig contains SQLite-specific settings.
type SQLiteDatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty" mapstructure:"ssl_mode"`
}

func (s *ServerConfig) applyDefaults() {
	if s.Listen == "" {
		s.Listen = DefaultListen
	}

	if s.RateLimit.RequestsPerMinute == 0 {
		s.RateLimit.RequestsPerMinute = DefaultRequestsPerMinute
	}

	if s.Database.Driver == "" {
		s.Database.Driver = DefaultDatabaseDriver
	}

	if s.Database.Driver == "sqlite" && s.Database.SQLite.Path == "" {
		s.Database.SQLite.Path = DefaultSQLitePath
	}

	if s.Storage.Path == "" {
		s.Storage.Path = DefaultStoragePath
	}
}

// ValidateServer checks the reference server configuration for errors.
func (c *Config) ValidateServer() error {
	s := &c.Server

	if s.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}

	switch s.Database.Driver {
	case "sqlite":
		if s.Database.SQLite.Path == "" {
			return fmt.Errorf("server.database.sqlite.path is required")
		}
	case "postgres":
		if s.Database.Postgres.Host == "" {
			return fmt.Errorf("server.database.postgres.host is required")
		}

		if s.Database.Postgres.Database == "" {
			return fmt.Errorf("server.database.postgres.database is required")
		}
	default:
		return fmt.Errorf("unsupported database driver: %q", s.Database.Driver)
	}

	if s.RateLimit.Enabled && s.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_minute must be positive")
	}

	if s.Storage.Path == "" {
		return fmt.Errorf("server.storage.path is required")
	}

	return nil
}
