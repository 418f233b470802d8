// Package config provides configuration loading and management for the mirror.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/scm-mirror/internal/telemetry"
)

// EnvPrefix is the prefix of environment variables overriding configuration.
// A key such as server.address is read from SCM_MIRROR_SERVER_ADDRESS.
const EnvPrefix = "SCM_MIRROR"

const (
	// StorageMemory keeps all state in process memory
	StorageMemory = "memory"

	// StorageDatabase keeps state in PostgreSQL
	StorageDatabase = "database"
)

const (
	defaultAddress         = ":8080"
	defaultRequestTimeout  = 30 * time.Second
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 30 * time.Second
	defaultDatabasePort    = 5432
	defaultConnectTimeout  = 2 * time.Minute
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// EvalSymlinks also cleans the path.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Server    ServerConfig      `yaml:"server"`
	GitHub    GitHubConfig      `yaml:"github"`
	Storage   string            `yaml:"storage"`
	Database  *DatabaseConfig   `yaml:"database,omitempty"`
	Sync      SyncConfig        `yaml:"sync"`
	Jobs      JobsConfig        `yaml:"jobs"`
	Auth      AuthConfig        `yaml:"auth"`
	Authz     AuthzConfig       `yaml:"authz"`
	Logging   LoggingConfig     `yaml:"logging"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// ServerConfig defines the HTTP listener
type ServerConfig struct {
	Address         string        `yaml:"address,omitempty"`
	RequestTimeout  time.Duration `yaml:"requestTimeout,omitempty"`
	ReadTimeout     time.Duration `yaml:"readTimeout,omitempty"`
	WriteTimeout    time.Duration `yaml:"writeTimeout,omitempty"`
	IdleTimeout     time.Duration `yaml:"idleTimeout,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout,omitempty"`
}

// GitHubConfig defines how the upstream API is reached
type GitHubConfig struct {
	// BaseURL points at GitHub Enterprise; empty means api.github.com
	BaseURL   string        `yaml:"baseURL,omitempty"`
	Timeout   time.Duration `yaml:"timeout,omitempty"`
	UserAgent string        `yaml:"userAgent,omitempty"`
	// MaxPages caps pagination of list endpoints; 0 keeps the client default
	MaxPages int `yaml:"maxPages,omitempty"`
}

// SyncConfig defines what a sync pass fetches
type SyncConfig struct {
	// FetchCommitDetails fetches per-commit file lists. Defaults to true.
	FetchCommitDetails *bool `yaml:"fetchCommitDetails,omitempty"`

	// FetchPullRequestDetails fetches pull request details and files. Defaults to true.
	FetchPullRequestDetails *bool `yaml:"fetchPullRequestDetails,omitempty"`

	MaxPullRequests     int           `yaml:"maxPullRequests,omitempty"`
	MaxPullRequestFiles int           `yaml:"maxPullRequestFiles,omitempty"`
	MaxCommits          int           `yaml:"maxCommits,omitempty"`
	Lookback            time.Duration `yaml:"lookback,omitempty"`

	// Repositories limits which repositories get an activity pass
	Repositories RepositoryFilterConfig `yaml:"repositories,omitempty"`
}

// RepositoryFilterConfig selects repositories by name glob, primary
// language and archived state. Exclude rules take precedence.
type RepositoryFilterConfig struct {
	Include          []string `yaml:"include,omitempty"`
	Exclude          []string `yaml:"exclude,omitempty"`
	IncludeLanguages []string `yaml:"includeLanguages,omitempty"`
	ExcludeLanguages []string `yaml:"excludeLanguages,omitempty"`
	SkipArchived     bool     `yaml:"skipArchived,omitempty"`
}

// ShouldFetchCommitDetails reports the effective fetchCommitDetails setting
func (s *SyncConfig) ShouldFetchCommitDetails() bool {
	return s.FetchCommitDetails == nil || *s.FetchCommitDetails
}

// ShouldFetchPullRequestDetails reports the effective fetchPullRequestDetails setting
func (s *SyncConfig) ShouldFetchPullRequestDetails() bool {
	return s.FetchPullRequestDetails == nil || *s.FetchPullRequestDetails
}

// JobsConfig defines the background job pool
type JobsConfig struct {
	// Workers bounds concurrently running jobs; 0 keeps the default
	Workers int `yaml:"workers,omitempty"`
	// Timeout bounds a single job; 0 means no limit
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// AuthConfig defines bearer token authentication
type AuthConfig struct {
	Realm string `yaml:"realm,omitempty"`
	// CacheTTL is how long a resolved token is trusted; 0 keeps the default
	CacheTTL  time.Duration `yaml:"cacheTTL,omitempty"`
	CacheSize int           `yaml:"cacheSize,omitempty"`
	// PublicPaths are added to the built-in unauthenticated paths
	PublicPaths []string `yaml:"publicPaths,omitempty"`
}

// AuthzConfig defines the authorization policies
type AuthzConfig struct {
	// PolicyFile replaces the built-in Cedar policies
	PolicyFile string `yaml:"policyFile,omitempty"`
}

// LoggingConfig defines the process logger
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"`
	// File additionally writes logs to a rotated file
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"maxSizeMB,omitempty"`
	MaxBackups int    `yaml:"maxBackups,omitempty"`
	MaxAgeDays int    `yaml:"maxAgeDays,omitempty"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password.
	// The file should contain only the password with optional trailing whitespace.
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int32 `yaml:"maxOpenConns,omitempty"`

	// MaxIdleConns is the number of connections kept open when idle
	MaxIdleConns int32 `yaml:"maxIdleConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`

	// ConnectTimeout bounds the retries while waiting for the database at startup
	ConnectTimeout time.Duration `yaml:"connectTimeout,omitempty"`
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from SCM_MIRROR_DATABASE_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		data, err := os.ReadFile(filepath.Clean(d.PasswordFile))
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if envPassword := os.Getenv(EnvPrefix + "_DATABASE_PASSWORD"); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or %s_DATABASE_PASSWORD environment variable", EnvPrefix,
	)
}

// GetConnectionString builds a PostgreSQL connection string with proper password handling.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User),
		url.QueryEscape(password),
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	), nil
}

// GetConnectTimeout returns the startup connect budget
func (d *DatabaseConfig) GetConnectTimeout() time.Duration {
	if d.ConnectTimeout <= 0 {
		return defaultConnectTimeout
	}
	return d.ConnectTimeout
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         defaultAddress,
			RequestTimeout:  defaultRequestTimeout,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			IdleTimeout:     defaultIdleTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Storage: StorageMemory,
		Logging: LoggingConfig{Level: "info"},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// and SCM_MIRROR_* environment variables, in that order.
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	config := Default()
	if loaderCfg.path != "" {
		data, err := os.ReadFile(loaderCfg.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	applyEnv(config, newEnv())
	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func newEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// applyEnv overrides scalar settings present in the environment.
func applyEnv(c *Config, v *viper.Viper) {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	num := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v.IsSet(key) {
			*dst = v.GetDuration(key)
		}
	}
	flag := func(key string, dst **bool) {
		if v.IsSet(key) {
			b := v.GetBool(key)
			*dst = &b
		}
	}

	str("server.address", &c.Server.Address)
	dur("server.requestTimeout", &c.Server.RequestTimeout)
	dur("server.shutdownTimeout", &c.Server.ShutdownTimeout)

	str("github.baseURL", &c.GitHub.BaseURL)
	dur("github.timeout", &c.GitHub.Timeout)
	str("github.userAgent", &c.GitHub.UserAgent)
	num("github.maxPages", &c.GitHub.MaxPages)

	str("storage", &c.Storage)

	flag("sync.fetchCommitDetails", &c.Sync.FetchCommitDetails)
	flag("sync.fetchPullRequestDetails", &c.Sync.FetchPullRequestDetails)
	num("sync.maxPullRequests", &c.Sync.MaxPullRequests)
	num("sync.maxCommits", &c.Sync.MaxCommits)
	dur("sync.lookback", &c.Sync.Lookback)

	num("jobs.workers", &c.Jobs.Workers)
	dur("jobs.timeout", &c.Jobs.Timeout)

	str("authz.policyFile", &c.Authz.PolicyFile)

	str("log_level", &c.Logging.Level)
	str("logging.level", &c.Logging.Level)
	str("logging.file", &c.Logging.File)

	if v.IsSet("database.host") && c.Database == nil {
		c.Database = &DatabaseConfig{}
	}
	if c.Database != nil {
		str("database.host", &c.Database.Host)
		num("database.port", &c.Database.Port)
		str("database.user", &c.Database.User)
		str("database.database", &c.Database.Database)
		str("database.sslMode", &c.Database.SSLMode)
	}
}

func (c *Config) applyDefaults() {
	if c.Storage == "" {
		c.Storage = StorageMemory
	}
	if c.Database != nil && c.Database.Port == 0 {
		c.Database.Port = defaultDatabasePort
	}
}

// Validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	switch c.Storage {
	case StorageMemory:
	case StorageDatabase:
		if err := c.Database.validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("storage must be %q or %q, got %q", StorageMemory, StorageDatabase, c.Storage)
	}

	if c.GitHub.BaseURL != "" {
		u, err := url.Parse(c.GitHub.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("github.baseURL must be an absolute URL: %s", c.GitHub.BaseURL)
		}
	}
	if c.GitHub.Timeout < 0 || c.GitHub.MaxPages < 0 {
		return fmt.Errorf("github.timeout and github.maxPages must not be negative")
	}

	s := c.Sync
	if s.MaxPullRequests < 0 || s.MaxPullRequestFiles < 0 || s.MaxCommits < 0 || s.Lookback < 0 {
		return fmt.Errorf("sync limits must not be negative")
	}

	if c.Jobs.Workers < 0 || c.Jobs.Timeout < 0 {
		return fmt.Errorf("jobs.workers and jobs.timeout must not be negative")
	}
	if c.Auth.CacheTTL < 0 || c.Auth.CacheSize < 0 {
		return fmt.Errorf("auth.cacheTTL and auth.cacheSize must not be negative")
	}

	level := strings.ToLower(c.Logging.Level)
	if level != "" && !slices.Contains([]string{"debug", "info", "warn", "warning", "error"}, level) {
		return fmt.Errorf("logging.level must be one of debug, info, warn, error: %s", c.Logging.Level)
	}

	if c.Telemetry != nil {
		if err := c.Telemetry.Validate(); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
	}
	return nil
}

func (d *DatabaseConfig) validate() error {
	if d == nil {
		return fmt.Errorf("database configuration is required when storage is %q", StorageDatabase)
	}
	switch {
	case d.Host == "":
		return fmt.Errorf("database.host is required")
	case d.User == "":
		return fmt.Errorf("database.user is required")
	case d.Database == "":
		return fmt.Errorf("database.database is required")
	case d.Port <= 0 || d.Port > 65535:
		return fmt.Errorf("database.port must be between 1 and 65535")
	}
	if d.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(d.ConnMaxLifetime); err != nil {
			return fmt.Errorf("database.connMaxLifetime: %w", err)
		}
	}
	return nil
}
