package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:      AppConfig{Environment: "development"},
		Logger:   LoggerConfig{Level: "info"},
		Metadata: MetadataConfig{BasePath: "/some/path"},
		Server:   ServerConfig{Port: "8080"},
		Auth: AuthConfig{
			AccessTokenDuration:  15 * time.Minute,
			RefreshTokenDuration: 720 * time.Hour,
		},
		Tags: TagsConfig{Resolution: TagResolutionStrict},
	}
}

// isolate points every source at a temp dir so the host environment does not leak in.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	for _, name := range []string{"ENV", "LOG_LEVEL", "METADATA_PATH", "DATABASE_PATH", "SERVER_PORT", "TRAILDIG_CONFIG"} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
	return dir
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_AllEnvironments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_AllLogLevels(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"debug", true},
		{"info", true},
		{"warn", true},
		{"error", true},
		{"INFO", true},
		{"trace", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := validConfig()
			cfg.Logger.Level = tt.level

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_TagResolution(t *testing.T) {
	for _, mode := range []string{TagResolutionStrict, TagResolutionLenient} {
		cfg := validConfig()
		cfg.Tags.Resolution = mode
		assert.NoError(t, cfg.Validate(), mode)
	}

	cfg := validConfig()
	cfg.Tags.Resolution = "sometimes"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tag resolution")
}

func TestValidate_MissingBasePath(t *testing.T) {
	cfg := validConfig()
	cfg.Metadata.BasePath = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_NonPositiveDurations(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.AccessTokenDuration = 0
	assert.Error(t, cfg.Validate())
}

func TestStrictTags(t *testing.T) {
	cfg := validConfig()
	assert.True(t, cfg.StrictTags())

	cfg.Tags.Resolution = TagResolutionLenient
	assert.False(t, cfg.StrictTags())
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenDuration)
	assert.Equal(t, 720*time.Hour, cfg.Auth.RefreshTokenDuration)
	assert.Equal(t, TagResolutionStrict, cfg.Tags.Resolution)
	assert.True(t, cfg.Search.Enabled)
	assert.Equal(t, 20, cfg.RateLimit.AuthPerMinute)

	wantBase := filepath.Join(dir, "TrailDig", "data")
	assert.Equal(t, wantBase, cfg.Metadata.BasePath)
	assert.Equal(t, filepath.Join(wantBase, "traildig.db"), cfg.Database.Path)
}

func TestLoadConfig_EnvOverridesDefaults(t *testing.T) {
	isolate(t)
	t.Setenv("TRAILDIG_TAGS_RESOLUTION", "lenient")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("TRAILDIG_SERVER_PORT", "9999")

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, TagResolutionLenient, cfg.Tags.Resolution)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "9999", cfg.Server.Port)
}

func TestLoadConfig_FlagsOverrideEnv(t *testing.T) {
	isolate(t)
	t.Setenv("SERVER_PORT", "7000")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--port", "7100", "--tag-resolution", "lenient"}))

	cfg, err := LoadConfig(fs)
	require.NoError(t, err)

	assert.Equal(t, "7100", cfg.Server.Port)
	assert.Equal(t, TagResolutionLenient, cfg.Tags.Resolution)
}

func TestLoadConfig_ConfigFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "traildig.yaml")
	yaml := `
app:
  environment: staging
server:
  port: "8181"
  cors_origins:
    - https://trails.example.org
tags:
  resolution: lenient
auth:
  access_token_duration: 5m
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	loader := NewLoader(nil)
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, filepath.Base(path), filepath.Base(loader.ConfigFileUsed()))
	assert.Equal(t, "staging", cfg.App.Environment)
	assert.Equal(t, "8181", cfg.Server.Port)
	assert.Equal(t, []string{"https://trails.example.org"}, cfg.Server.CORSOrigins)
	assert.Equal(t, TagResolutionLenient, cfg.Tags.Resolution)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTokenDuration)
}

func TestLoadConfig_EnvFile(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("# comment\nENV=production\nLOG_LEVEL='warn'\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("ENV")
		_ = os.Unsetenv("LOG_LEVEL")
	})

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.App.Environment)
	assert.Equal(t, "warn", cfg.Logger.Level)
}

func TestLoadConfig_InvalidValue(t *testing.T) {
	isolate(t)
	t.Setenv("TRAILDIG_TAGS_RESOLUTION", "maybe")

	_, err := LoadConfig(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}

func TestLoadConfig_MissingExplicitConfigFile(t *testing.T) {
	isolate(t)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config", "/nonexistent/traildig.yaml"}))

	_, err := LoadConfig(fs)
	assert.Error(t, err)
}

func TestWatch_NoConfigFile(t *testing.T) {
	isolate(t)

	loader := NewLoader(nil)
	_, err := loader.Load()
	require.NoError(t, err)

	assert.False(t, loader.Watch(func(*Config) {}, nil))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("~/trail", "/default")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "trail"), got)

	got, err = expandPath("", "/default")
	require.NoError(t, err)
	assert.Equal(t, "/default", got)

	got, err = expandPath("/abs/./path/", "/default")
	require.NoError(t, err)
	assert.Equal(t, "/abs/path", got)
}
