package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Probe/internal/domain"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "probe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultBaseURL, cfg.API())
	assert.Equal(t, DefaultBaseURL, cfg.Web())
	assert.Empty(t, cfg.APIBaseURL)
	assert.Empty(t, cfg.WebBaseURL)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.Command)
	assert.Equal(t, domain.ViewportDefault, cfg.Viewport)
	assert.Equal(t, 1, cfg.Parallel)
	assert.True(t, cfg.Headless)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, `
base_url: http://localhost:8080
api_base_url: http://localhost:8080
timeouts:
  command: 2s
  step: 30s
viewport:
  width: 375
  height: 812
features:
  - features/api
  - features/web
parallel: 4
`)

	t.Setenv("PROBE_PARALLEL", "2")
	t.Setenv("PROBE_TIMEOUT_REQUEST", "1500ms")
	t.Setenv("PROBE_TAGS", "@smoke,~@wip")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Timeouts.Command)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Step)
	assert.Equal(t, 1500*time.Millisecond, cfg.Timeouts.Request)
	// Не заданные в файле значения остаются по умолчанию
	assert.Equal(t, 10*time.Second, cfg.Timeouts.Response)
	assert.Equal(t, domain.ViewportMobile, cfg.Viewport)
	assert.Equal(t, []string{"features/api", "features/web"}, cfg.Features)
	assert.Equal(t, 2, cfg.Parallel)
	assert.Equal(t, "@smoke,~@wip", cfg.Tags)
}

func TestLoad_EnvList(t *testing.T) {
	t.Setenv("PROBE_FEATURES", "a.feature,b.feature")
	t.Setenv("PROBE_VIEWPORT_WIDTH", "1920")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.feature", "b.feature"}, cfg.Features)
	assert.Equal(t, 1920, cfg.Viewport.Width)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeFile(t, "unknown_field: 1\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Load(writeFile(t, "timeouts:\n  command: soon\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	t.Setenv("PROBE_PARALLEL", "many")
	_, err = Load("")
	assert.Error(t, err)
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeFile(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"base url", func(c *Config) { c.BaseURL = "not a url" }, "Config.BaseURL"},
		{"parallel", func(c *Config) { c.Parallel = 0 }, "Config.Parallel"},
		{"timeout", func(c *Config) { c.Timeouts.Step = 0 }, "Config.Timeouts.Step"},
		{"viewport", func(c *Config) { c.Viewport.Width = 0 }, "Config.Viewport.Width"},
		{"features", func(c *Config) { c.Features = nil }, "Config.Features"},
		{"database", func(c *Config) { c.DatabaseURL = "mysql://x" }, "Config.DatabaseURL"},
		{"metrics addr", func(c *Config) { c.MetricsAddr = "nope" }, "Config.MetricsAddr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestBaseURLFallback(t *testing.T) {
	t.Run("base url from env reaches api and web", func(t *testing.T) {
		t.Setenv("PROBE_BASE_URL", "http://staging.local")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "http://staging.local", cfg.API())
		assert.Equal(t, "http://staging.local", cfg.Web())
	})

	t.Run("explicit api and web urls win", func(t *testing.T) {
		cfg, err := Load(writeFile(t, `
base_url: http://localhost:8080
api_base_url: http://api.local
web_base_url: http://web.local
`))
		require.NoError(t, err)
		assert.Equal(t, "http://api.local", cfg.API())
		assert.Equal(t, "http://web.local", cfg.Web())
	})
}

func TestLoad_SampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "probe.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "http://localhost:3000", cfg.API())
	assert.Equal(t, "http://localhost:3000", cfg.Web())
	assert.Equal(t, 10*time.Second, cfg.Timeouts.Response)
	assert.Equal(t, 2, cfg.Parallel)
	assert.False(t, cfg.InsecureTLS)
}
