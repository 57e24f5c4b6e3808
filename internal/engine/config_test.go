package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/prm/internal/binding"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(10_000), cfg.MonitorCleanupInterval)
	assert.Equal(t, int64(10_000), cfg.BindingCleanupInterval)
	assert.True(t, cfg.AliveCheck)
	assert.Equal(t, binding.LinkArray, cfg.LinkStrategy)
}

func TestConfig_FromLookup(t *testing.T) {
	env := map[string]string{
		EnvMonitorCleanupInterval: "500",
		EnvBindingCleanupInterval: "250",
		EnvAliveCheck:             "false",
		EnvLinkStrategy:           "list",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	cfg, err := configFromLookup(DefaultConfig(), lookup)
	require.NoError(t, err)
	assert.Equal(t, Config{
		MonitorCleanupInterval: 500,
		BindingCleanupInterval: 250,
		AliveCheck:             false,
		LinkStrategy:           binding.LinkList,
	}, cfg)

	env[EnvAliveCheck] = "maybe"
	_, err = configFromLookup(DefaultConfig(), lookup)
	assert.ErrorContains(t, err, EnvAliveCheck)
}

func TestConfig_FromEnv(t *testing.T) {
	t.Setenv(EnvMonitorCleanupInterval, "42")
	cfg, err := ConfigFromEnv(DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, int64(42), cfg.MonitorCleanupInterval)
	assert.Equal(t, int64(10_000), cfg.BindingCleanupInterval)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"minimum", func(c *Config) { c.MonitorCleanupInterval, c.BindingCleanupInterval = 1, 1 }, false},
		{"maximum", func(c *Config) { c.MonitorCleanupInterval = MaxCleanupInterval }, false},
		{"zero monitor interval", func(c *Config) { c.MonitorCleanupInterval = 0 }, true},
		{"binding interval too large", func(c *Config) { c.BindingCleanupInterval = MaxCleanupInterval + 1 }, true},
		{"unknown strategy", func(c *Config) { c.LinkStrategy = binding.LinkStrategy(7) }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("binding_cleanup_interval: 64\nlink_strategy: list\n"), 0o644))

	cfg, err := LoadConfigFile(path, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, int64(64), cfg.BindingCleanupInterval)
	assert.Equal(t, binding.LinkList, cfg.LinkStrategy)
	assert.Equal(t, int64(10_000), cfg.MonitorCleanupInterval, "absent keys keep the base value")

	require.NoError(t, os.WriteFile(path, []byte("link_strategy: tree\n"), 0o644))
	_, err = LoadConfigFile(path, DefaultConfig())
	assert.Error(t, err)

	_, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"), DefaultConfig())
	assert.Error(t, err)
}
