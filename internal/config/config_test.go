package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 4, cfg.MaxConcurrency)
	assert.Equal(t, 30*time.Second, cfg.TaskTimeout)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.BackoffUnit)
	assert.Equal(t, 5*time.Second, cfg.Oracle.Timeout)
	assert.False(t, cfg.Oracle.Enabled)
	assert.NotEmpty(t, cfg.Agents, "default agent roster must not be empty")
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer func() { _ = os.Chdir(cwd) }()

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.MaxConcurrency)
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taskmesh.yaml")
	content := []byte(`
max_concurrency: 8
task_timeout: 10s
oracle:
  enabled: true
  timeout: 2s
agents:
  - type: analysis
    count: 3
    max_concurrency: 1
    work_delay: 5ms
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.MaxConcurrency)
	assert.Equal(t, 10*time.Second, cfg.TaskTimeout)
	assert.True(t, cfg.Oracle.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Oracle.Timeout)
	require.Len(t, cfg.Agents, 1)
	assert.Equal(t, "analysis", cfg.Agents[0].Type)
	assert.Equal(t, 3, cfg.Agents[0].Count)
	assert.Equal(t, 5*time.Millisecond, cfg.Agents[0].WorkDelay)
}

func TestLoad_InvalidValuesRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taskmesh.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_concurrency: -1\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults pass", func(c *Config) {}, false},
		{"zero concurrency", func(c *Config) { c.MaxConcurrency = 0 }, true},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, true},
		{"zero task timeout", func(c *Config) { c.TaskTimeout = 0 }, true},
		{"agent without type", func(c *Config) {
			c.Agents = []AgentSpec{{Count: 1}}
		}, true},
		{"negative agent count", func(c *Config) {
			c.Agents = []AgentSpec{{Type: "analysis", Count: -1}}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("TASKMESH_MAX_CONCURRENCY", "16")

	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer func() { _ = os.Chdir(cwd) }()

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.MaxConcurrency)
}
