package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix is the prefix for environment variable overrides, e.g.
	// NTVIEW_CLIENT_BASE_URL overrides client.base_url.
	EnvPrefix = "NTVIEW"

	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultBaseURL is the default address of the NT view API.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultTimeout is the default per-request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent is sent with every API request.
	DefaultUserAgent = "ntview"

	// DefaultRequestsPerMinute is the default client and server rate limit.
	DefaultRequestsPerMinute = 600

	// DefaultExportPrefix is the default S3 key prefix for artifact archives.
	DefaultExportPrefix = "ntview/artifacts"

	// DefaultListen is the default listen address of the reference server.
	DefaultListen = ":8000"

	// DefaultDatabaseDriver is the default reference server database driver.
	DefaultDatabaseDriver = "sqlite"

	// DefaultSQLitePath is the default reference server SQLite file.
	DefaultSQLitePath = "ntview.db"

	// DefaultStoragePath is the default directory for uploaded artifact files.
	DefaultStoragePath = "storage"
)

// Config is the root configuration for ntview.
type Config struct {
	Global GlobalConfig `yaml:"global" mapstructure:"global"`
	Client ClientConfig `yaml:"client" mapstructure:"client"`
	Export ExportConfig `yaml:"export" mapstructure:"export"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// ClientConfig configures the API client and the stores built on top of it.
type ClientConfig struct {
	BaseURL   string          `yaml:"base_url" mapstructure:"base_url"`
	Token     string          `yaml:"token,omitempty" mapstructure:"token"`
	Timeout   time.Duration   `yaml:"timeout" mapstructure:"timeout"`
	UserAgent string          `yaml:"user_agent,omitempty" mapstructure:"user_agent"`
	RateLimit RateLimitConfig `yaml:"rate_limit,omitempty" mapstructure:"rate_limit"`

	// DiscardStaleResponses makes stores drop list responses that resolve
	// after a newer list request was issued. Off by default: the last
	// response to arrive wins.
	DiscardStaleResponses bool `yaml:"discard_stale_responses" mapstructure:"discard_stale_responses"`
}

// RateLimitConfig configures request throttling.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// ExportConfig configures where artifact archives are exported to.
type ExportConfig struct {
	S3 S3ExportConfig `yaml:"s3,omitempty" mapstructure:"s3"`
}

// S3ExportConfig contains S3 settings for artifact archive export.
type S3ExportConfig struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	EndpointURL     string `yaml:"endpoint_url,omitempty" mapstructure:"endpoint_url"`
	Region          string `yaml:"region,omitempty" mapstructure:"region"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style" mapstructure:"force_path_style"`
	Prefix          string `yaml:"prefix,omitempty" mapstructure:"prefix"`
	StorageClass    string `yaml:"storage_class,omitempty" mapstructure:"storage_class"`
}

// Load reads the given configuration files (later files are merged over
// earlier ones) and applies NTVIEW_* environment overrides. With no paths
// only defaults and the environment are used.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	for i, path := range paths {
		v.SetConfigFile(path)

		var err error
		if i == 0 {
			err = v.ReadInConfig()
		} else {
			err = v.MergeInConfig()
		}

		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// setDefaults registers every overridable key so that environment
// variables apply even when the key is absent from the file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("global.log_level", DefaultLogLevel)

	v.SetDefault("client.base_url", DefaultBaseURL)
	v.SetDefault("client.token", "")
	v.SetDefault("client.timeout", DefaultTimeout.String())
	v.SetDefault("client.user_agent", DefaultUserAgent)
	v.SetDefault("client.rate_limit.enabled", false)
	v.SetDefault("client.rate_limit.requests_per_minute", DefaultRequestsPerMinute)
	v.SetDefault("client.discard_stale_responses", false)

	v.SetDefault("export.s3.enabled", false)
	v.SetDefault("export.s3.endpoint_url", "")
	v.SetDefault("export.s3.region", "")
	v.SetDefault("export.s3.bucket", "")
	v.SetDefault("export.s3.access_key_id", "")
	v.SetDefault("export.s3.secret_access_key", "")
	v.SetDefault("export.s3.force_path_style", false)
	v.SetDefault("export.s3.prefix", DefaultExportPrefix)
	v.SetDefault("export.s3.storage_class", "")

	v.SetDefault("server.listen", DefaultListen)
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.rate_limit.enabled", false)
	v.SetDefault("server.rate_limit.requests_per_minute", DefaultRequestsPerMinute)
	v.SetDefault("server.database.driver", DefaultDatabaseDriver)
	v.SetDefault("server.database.sqlite.path", DefaultSQLitePath)
	v.SetDefault("server.database.postgres.host", "")
	v.SetDefault("server.database.postgres.port", 5432)
	v.SetDefault("server.database.postgres.user", "")
	v.SetDefault("server.database.postgres.password", "")
	v.SetDefault("server.database.postgres.database", "")
	v.SetDefault("server.database.postgres.ssl_mode", "disable")
	v.SetDefault("server.storage.path", DefaultStoragePath)
	v.SetDefault("server.storage.owner", "")
}

// applyDefaults sets default values for unspecified configuration options.
func (c *Config) applyDefaults() {
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = DefaultLogLevel
	}

	if c.Client.BaseURL == "" {
		c.Client.BaseURL = DefaultBaseURL
	}

	if c.Client.Timeout == 0 {
		c.Client.Timeout = DefaultTimeout
	}

	if c.Client.UserAgent == "" {
		c.Client.UserAgent = DefaultUserAgent
	}

	if c.Client.RateLimit.RequestsPerMinute == 0 {
		c.Client.RateLimit.RequestsPerMinute = DefaultRequestsPerMinute
	}

	if c.Export.S3.Prefix == "" {
		c.Export.S3.Prefix = DefaultExportPrefix
	}

	c.Server.applyDefaults()
}

// Validate checks the client and export configuration for errors.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Client.BaseURL)
	if err != nil {
		return fmt.Errorf("client.base_url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("client.base_url: scheme must be http or https, got %q", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("client.base_url: host is required")
	}

	if c.Client.Timeout < 0 {
		return fmt.Errorf("client.timeout must not be negative")
	}

	if c.Client.RateLimit.Enabled && c.Client.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("client.rate_limit.requests_per_minute must be positive")
	}

	if c.Export.S3.Enabled && c.Export.S3.Bucket == "" {
		return fmt.Errorf("export.s3.bucket is required when s3 export is enabled")
	}

	return nil
}
