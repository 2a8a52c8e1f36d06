// Package config loads the server configuration from flags, environment variables,
// an optional YAML config file, an optional .env file, and defaults.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Tag resolution modes.
const (
	TagResolutionStrict  = "strict"
	TagResolutionLenient = "lenient"
)

// envPrefix namespaces every environment variable, e.g. TRAILDIG_SERVER_PORT.
const envPrefix = "TRAILDIG"

// Config holds the application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Metadata  MetadataConfig  `mapstructure:"metadata"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Tags      TagsConfig      `mapstructure:"tags"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Search    SearchConfig    `mapstructure:"search"`
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string `mapstructure:"level"`
}

// MetadataConfig holds the data directory (auth key, search index, default database).
type MetadataConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// DatabaseConfig holds SQLite configuration.
type DatabaseConfig struct {
	// Path of the SQLite file. Defaults to {metadata}/traildig.db.
	Path string `mapstructure:"path"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Name         string        `mapstructure:"name"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	// PASETO v4 symmetric key for access tokens (32 bytes), set by auth.LoadOrGenerateKey.
	AccessTokenKey       []byte        `mapstructure:"-"`
	AccessTokenDuration  time.Duration `mapstructure:"access_token_duration"`
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration"`
}

// TagsConfig selects how unknown tag names in work session payloads are handled.
// The mode is fixed for the lifetime of the process.
type TagsConfig struct {
	Resolution string `mapstructure:"resolution"`
}

// RateLimitConfig throttles the unauthenticated auth endpoints per client IP.
type RateLimitConfig struct {
	AuthPerMinute int `mapstructure:"auth_per_minute"`
	AuthBurst     int `mapstructure:"auth_burst"`
}

// SearchConfig toggles the full-text index.
type SearchConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// StrictTags reports whether unknown tag names must be rejected.
func (c *Config) StrictTags() bool {
	return c.Tags.Resolution != TagResolutionLenient
}

// Loader reads configuration through a dedicated viper instance and can
// watch the config file for changes.
type Loader struct {
	v       *viper.Viper
	flags   *pflag.FlagSet
	mu      sync.Mutex
	watched bool
}

// NewLoader creates a loader. flags may be nil; when given, the flags
// registered by RegisterFlags take precedence over every other source.
func NewLoader(flags *pflag.FlagSet) *Loader {
	return &Loader{v: viper.New(), flags: flags}
}

// LoadConfig loads configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. Config file (YAML).
// 4. .env file.
// 5. Default values (lowest priority).
func LoadConfig(flags *pflag.FlagSet) (*Config, error) {
	return NewLoader(flags).Load()
}

// RegisterFlags adds the configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to YAML config file")
	fs.String("env-file", ".env", "Path to .env file")
	fs.String("env", "", "Environment (development, staging, production)")
	fs.String("log-level", "", "Log level (debug, info, warn, error)")
	fs.String("metadata-path", "", "Base path for data storage")
	fs.String("database-path", "", "Path to the SQLite database file")
	fs.String("port", "", "Server port (default: 8080)")
	fs.String("tag-resolution", "", "Unknown tag handling: strict or lenient (default: strict)")
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"env":            "app.environment",
	"log-level":      "logger.level",
	"metadata-path":  "metadata.base_path",
	"database-path":  "database.path",
	"port":           "server.port",
	"tag-resolution": "tags.resolution",
}

// legacyEnv lists the short environment names accepted in addition to the
// TRAILDIG_ prefixed ones.
var legacyEnv = map[string]string{
	"app.environment":    "ENV",
	"logger.level":       "LOG_LEVEL",
	"metadata.base_path": "METADATA_PATH",
	"database.path":      "DATABASE_PATH",
	"server.port":        "SERVER_PORT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")
	v.SetDefault("logger.level", "info")
	v.SetDefault("metadata.base_path", "")
	v.SetDefault("database.path", "")
	v.SetDefault("server.name", "TrailDig Server")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("auth.access_token_duration", "15m")
	v.SetDefault("auth.refresh_token_duration", "720h")
	v.SetDefault("tags.resolution", TagResolutionStrict)
	v.SetDefault("ratelimit.auth_per_minute", 20)
	v.SetDefault("ratelimit.auth_burst", 10)
	v.SetDefault("search.enabled", true)
}

// Load reads every source and returns a validated Config.
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	v := l.v
	setDefaults(v)

	// .env only fills variables that are not already set in the environment.
	_ = loadEnvFile(l.flagString("env-file", ".env"))

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, name := range legacyEnv {
		if err := v.BindEnv(key, envPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), name); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", name, err)
		}
	}

	if l.flags != nil {
		for name, key := range flagKeys {
			if f := l.flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := l.readConfigFile(); err != nil {
		return nil, err
	}

	return l.unmarshal()
}

func (l *Loader) readConfigFile() error {
	v := l.v
	path := l.flagString("config", os.Getenv(envPrefix+"_CONFIG"))
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("traildig")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/traildig")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if errors.As(err, &notFound) || (path == "" && errors.As(err, &pathErr)) {
			return nil
		}
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	return nil
}

func (l *Loader) unmarshal() (*Config, error) {
	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.App.Environment = strings.TrimSpace(cfg.App.Environment)
	cfg.Tags.Resolution = strings.ToLower(strings.TrimSpace(cfg.Tags.Resolution))

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// ConfigFileUsed returns the config file that was read, or "" if none was.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Watch re-reads the config file whenever it changes and passes the new
// configuration to onChange. Invalid edits are reported through onError and
// otherwise ignored. Watch is a no-op when no config file was loaded.
func (l *Loader) Watch(onChange func(*Config), onError func(error)) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.watched || l.v.ConfigFileUsed() == "" {
		return false
	}
	l.watched = true

	l.v.OnConfigChange(func(fsnotify.Event) {
		l.mu.Lock()
		cfg, err := l.unmarshal()
		l.mu.Unlock()
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	l.v.WatchConfig()
	return true
}

func (l *Loader) flagString(name, fallback string) string {
	if l.flags != nil {
		if f := l.flags.Lookup(name); f != nil && f.Changed {
			return f.Value.String()
		}
	}
	return fallback
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Metadata.BasePath == "" {
		return errors.New("metadata base path cannot be empty after expansion")
	}

	switch c.Tags.Resolution {
	case TagResolutionStrict, TagResolutionLenient:
	default:
		return fmt.Errorf("invalid tag resolution: %s (must be strict or lenient)", c.Tags.Resolution)
	}

	if c.Server.Port == "" {
		return errors.New("server port is required")
	}

	if c.Auth.AccessTokenDuration <= 0 || c.Auth.RefreshTokenDuration <= 0 {
		return errors.New("token durations must be positive")
	}

	return nil
}

// expandPaths resolves ~ and relative paths and fills path defaults.
func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	base, err := expandPath(c.Metadata.BasePath, filepath.Join(homeDir, "TrailDig", "data"))
	if err != nil {
		return fmt.Errorf("invalid metadata path: %w", err)
	}
	c.Metadata.BasePath = base

	dbPath, err := expandPath(c.Database.Path, filepath.Join(base, "traildig.db"))
	if err != nil {
		return fmt.Errorf("invalid database path: %w", err)
	}
	c.Database.Path = dbPath

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is returned as is.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Environment variables take precedence over the .env file.
		if _, set := os.LookupEnv(key); !set {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
