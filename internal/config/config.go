// Package config provides configuration management for the corefacility server.
// Configuration can be loaded from YAML files and environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Media    MediaConfig    `mapstructure:"media"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Posix    PosixConfig    `mapstructure:"posix"`
	Mail     MailConfig     `mapstructure:"mail"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Sweeper  SweeperConfig  `mapstructure:"sweeper"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
}

// DatabaseConfig holds database connection settings.
// SQLite is the primary embedded backend; PostgreSQL may carry the
// append-heavy audit log.
type DatabaseConfig struct {
	// Driver specifies the database driver: "sqlite" or "postgres".
	Driver string `mapstructure:"driver"`

	// SQLite settings (used when Driver is "sqlite")
	Path            string `mapstructure:"path"`
	JournalMode     string `mapstructure:"journal_mode"`
	BusyTimeout     int    `mapstructure:"busy_timeout"`
	CacheSize       int    `mapstructure:"cache_size"`
	SynchronousMode string `mapstructure:"synchronous_mode"`

	// PostgreSQL settings (used when Driver is "postgres")
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
// Only valid when Driver is "postgres".
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// IsEmbedded returns true if using an embedded database (SQLite).
func (c DatabaseConfig) IsEmbedded() bool {
	return c.Driver == "sqlite"
}

// RedisConfig holds Redis connection settings. Redis backs the labjournal
// path cache and the posix daemon single-runner lock; when disabled the
// in-memory fallbacks are used.
type RedisConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Enabled     bool          `mapstructure:"enabled"`
}

// Addr returns the Redis address in host:port format.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MediaConfig holds public file (avatar) storage settings.
type MediaConfig struct {
	// Backend selects the media store: "filesystem" or "s3".
	Backend string `mapstructure:"backend"`

	// Root is the filesystem directory holding public files.
	Root string `mapstructure:"root"`

	// URL is the public base URL under which media files are served.
	URL string `mapstructure:"url"`

	// DefaultAvatarURL is returned when no avatar is attached.
	DefaultAvatarURL string `mapstructure:"default_avatar_url"`

	// S3 holds object storage settings (used when Backend is "s3").
	S3 S3MediaConfig `mapstructure:"s3"`
}

// S3MediaConfig holds S3 media backend settings.
type S3MediaConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	// TokenLength is the number of random symbols in issued tokens.
	TokenLength int `mapstructure:"token_length"`

	// TokenLifetime is the default bearer token lifetime.
	TokenLifetime time.Duration `mapstructure:"token_lifetime"`

	// CookieLifetime is the default cookie session lifetime.
	CookieLifetime time.Duration `mapstructure:"cookie_lifetime"`

	// ActivationCodeLifetime bounds mailed activation codes.
	ActivationCodeLifetime time.Duration `mapstructure:"activation_code_lifetime"`

	// CookieName is the session cookie binding.
	CookieName string `mapstructure:"cookie_name"`

	// CookieDomain, CookiePath, CookieSecure and CookieSameSite are the
	// features applied when the cookie is set, refreshed or deleted.
	CookieDomain   string `mapstructure:"cookie_domain"`
	CookiePath     string `mapstructure:"cookie_path"`
	CookieSecure   bool   `mapstructure:"cookie_secure"`
	CookieSameSite string `mapstructure:"cookie_same_site"`

	// CookieAuthEnabled drives the response finalizer: when false the
	// session cookie is deleted on every response.
	CookieAuthEnabled bool `mapstructure:"cookie_auth_enabled"`
}

// PosixConfig holds operating-system account management settings.
type PosixConfig struct {
	// ManageUnixUsers enables creation of OS accounts for users.
	ManageUnixUsers bool `mapstructure:"manage_unix_users"`

	// ManageUnixGroups enables creation of OS groups for projects.
	ManageUnixGroups bool `mapstructure:"manage_unix_groups"`

	// SuggestAdministration queues privileged commands for the posixd
	// daemon instead of executing them inline.
	SuggestAdministration bool `mapstructure:"suggest_administration"`

	// AllowedIPs lists the client addresses whose queued requests pass the
	// daemon security check.
	AllowedIPs []string `mapstructure:"allowed_ips"`

	// HomeBase is the directory holding user home directories.
	HomeBase string `mapstructure:"home_base"`

	// ProjectBase is the directory holding project directories.
	ProjectBase string `mapstructure:"project_base"`

	// GracePeriod is how long confirmed queue rows wait before execution.
	GracePeriod time.Duration `mapstructure:"grace_period"`

	// PollInterval is the daemon sleep between queue sweeps.
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// MailConfig holds notification mail settings.
type MailConfig struct {
	From          string   `mapstructure:"from"`
	Admins        []string `mapstructure:"admins"`
	TemplateDir   string   `mapstructure:"template_dir"`
	DefaultLocale string   `mapstructure:"default_locale"`
	SMTPHost      string   `mapstructure:"smtp_host"`
	SMTPPort      int      `mapstructure:"smtp_port"`
}

// Addr returns the SMTP address in host:port format.
func (c MailConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.SMTPHost, c.SMTPPort)
}

// AuditConfig holds audit log settings.
type AuditConfig struct {
	// BodyLimit is the number of request/response body bytes recorded.
	BodyLimit int `mapstructure:"body_limit"`
}

// SweeperConfig holds background maintenance settings.
type SweeperConfig struct {
	// Interval is the sleep between maintenance passes: expired credential
	// cleanup, queue depth refresh and administrator alerts.
	Interval time.Duration `mapstructure:"interval"`
}

// JournalConfig holds laboratory journal settings.
type JournalConfig struct {
	// HashtagReferenceCap bounds the reference set of hashtag-relative
	// datetime filters.
	HashtagReferenceCap int `mapstructure:"hashtag_reference_cap"`

	// PathCacheTTL bounds cached (project, path) resolutions.
	PathCacheTTL time.Duration `mapstructure:"path_cache_ttl"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from the specified file and environment variables.
// Environment variables take precedence over file values.
// Environment variables are prefixed with COREFACILITY_ and use _ as separator.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("COREFACILITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/corefacility")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is acceptable - use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.max_body_size", 64*1024*1024)

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/corefacility.db")
	v.SetDefault("database.journal_mode", "WAL")
	v.SetDefault("database.busy_timeout", 5000)
	v.SetDefault("database.cache_size", -2000)
	v.SetDefault("database.synchronous_mode", "NORMAL")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "corefacility")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "corefacility")
	v.SetDefault("database.ssl_mode", "prefer")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.enabled", false)

	// Media defaults
	v.SetDefault("media.backend", "filesystem")
	v.SetDefault("media.root", "./data/media")
	v.SetDefault("media.url", "/media/")
	v.SetDefault("media.default_avatar_url", "/static/default_avatar.png")
	v.SetDefault("media.s3.region", "us-east-1")
	v.SetDefault("media.s3.use_path_style", true)

	// Auth defaults
	v.SetDefault("auth.token_length", 40)
	v.SetDefault("auth.token_lifetime", 24*time.Hour)
	v.SetDefault("auth.cookie_lifetime", 14*24*time.Hour)
	v.SetDefault("auth.activation_code_lifetime", 3*24*time.Hour)
	v.SetDefault("auth.cookie_name", "corefacility_session")
	v.SetDefault("auth.cookie_path", "/")
	v.SetDefault("auth.cookie_secure", true)
	v.SetDefault("auth.cookie_same_site", "lax")
	v.SetDefault("auth.cookie_auth_enabled", true)

	// Posix defaults
	v.SetDefault("posix.manage_unix_users", false)
	v.SetDefault("posix.manage_unix_groups", false)
	v.SetDefault("posix.suggest_administration", true)
	v.SetDefault("posix.allowed_ips", []string{"127.0.0.1", "::1"})
	v.SetDefault("posix.home_base", "/home")
	v.SetDefault("posix.project_base", "/srv/projects")
	v.SetDefault("posix.grace_period", 5*time.Minute)
	v.SetDefault("posix.poll_interval", 10*time.Second)

	// Mail defaults
	v.SetDefault("mail.from", "corefacility@localhost")
	v.SetDefault("mail.admins", []string{})
	v.SetDefault("mail.template_dir", "./templates/mail")
	v.SetDefault("mail.default_locale", "en-GB")
	v.SetDefault("mail.smtp_host", "localhost")
	v.SetDefault("mail.smtp_port", 25)

	// Audit defaults
	v.SetDefault("audit.body_limit", 16384)

	// Sweeper defaults
	v.SetDefault("sweeper.interval", 10*time.Minute)

	// Journal defaults
	v.SetDefault("journal.hashtag_reference_cap", 1000)
	v.SetDefault("journal.path_cache_ttl", 10*time.Minute)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9091)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate checks the configuration for required values and valid ranges.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	validDrivers := map[string]bool{"postgres": true, "sqlite": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be 'sqlite' or 'postgres'")
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		return fmt.Errorf("database.path is required for sqlite driver")
	}
	if c.Database.Driver == "postgres" {
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required for postgres driver")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required for postgres driver")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database.database is required for postgres driver")
		}
	}

	validMedia := map[string]bool{"filesystem": true, "s3": true}
	if !validMedia[c.Media.Backend] {
		return fmt.Errorf("media.backend must be 'filesystem' or 's3'")
	}
	if c.Media.Backend == "filesystem" && c.Media.Root == "" {
		return fmt.Errorf("media.root is required for filesystem backend")
	}
	if c.Media.Backend == "s3" && c.Media.S3.Bucket == "" {
		return fmt.Errorf("media.s3.bucket is required for s3 backend")
	}

	if c.Auth.TokenLength < 16 {
		return fmt.Errorf("auth.token_length must be at least 16")
	}
	if c.Auth.CookieName == "" {
		return fmt.Errorf("auth.cookie_name is required")
	}

	if c.Posix.SuggestAdministration && len(c.Posix.AllowedIPs) == 0 {
		return fmt.Errorf("posix.allowed_ips is required in suggest mode")
	}

	if c.Audit.BodyLimit < 0 {
		return fmt.Errorf("audit.body_limit must not be negative")
	}

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error, fatal, panic")
	}

	return nil
}

// MustLoad loads configuration or panics on error.
// Useful for main function initialization.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
