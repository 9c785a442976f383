// Package config handles configuration loading. Defaults live in code,
// an optional taskmesh.yaml in the working directory overrides them, and
// TASKMESH_* environment variables override both.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AgentSpec declares a group of simulated agents to register at startup.
type AgentSpec struct {
	Type           string        `mapstructure:"type"`
	Count          int           `mapstructure:"count"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	MaxLoad        float64       `mapstructure:"max_load"`
	WorkDelay      time.Duration `mapstructure:"work_delay"`
}

// OracleConfig controls the optional allocation oracle.
type OracleConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Config is the full runtime configuration.
type Config struct {
	MaxConcurrency  int           `mapstructure:"max_concurrency"`
	TaskTimeout     time.Duration `mapstructure:"task_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	BackoffUnit     time.Duration `mapstructure:"backoff_unit"`
	DispatchTick    time.Duration `mapstructure:"dispatch_tick"`
	MonitorTick     time.Duration `mapstructure:"monitor_tick"`
	StepConcurrency int           `mapstructure:"step_concurrency"`
	MinStepTimeout  time.Duration `mapstructure:"min_step_timeout"`
	Oracle          OracleConfig  `mapstructure:"oracle"`
	Agents          []AgentSpec   `mapstructure:"agents"`
}

// Load reads configuration from the given file (optional), the default
// search path, and the environment. A missing file is not an error;
// malformed content is.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TASKMESH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("taskmesh")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing file on the default search path is fine; an explicitly
		// named file must exist and parse.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

// Validate checks invariants the runtime depends on.
func (c *Config) Validate() error {
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("max_concurrency must be > 0, got %d", c.MaxConcurrency)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0, got %d", c.MaxRetries)
	}
	if c.TaskTimeout <= 0 {
		return fmt.Errorf("task_timeout must be > 0, got %s", c.TaskTimeout)
	}
	for i, spec := range c.Agents {
		if spec.Type == "" {
			return fmt.Errorf("agents[%d]: type is required", i)
		}
		if spec.Count < 0 {
			return fmt.Errorf("agents[%d]: count must be >= 0", i)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("max_concurrency", 4)
	v.SetDefault("task_timeout", "30s")
	v.SetDefault("max_retries", 2)
	v.SetDefault("backoff_unit", "100ms")
	v.SetDefault("dispatch_tick", "100ms")
	v.SetDefault("monitor_tick", "1s")
	v.SetDefault("step_concurrency", 4)
	v.SetDefault("min_step_timeout", "1s")
	v.SetDefault("oracle.enabled", false)
	v.SetDefault("oracle.timeout", "5s")
	v.SetDefault("agents", []map[string]any{
		{"type": "interaction", "count": 1, "max_concurrency": 2, "work_delay": "20ms"},
		{"type": "processing", "count": 2, "max_concurrency": 3, "work_delay": "20ms"},
		{"type": "knowledge", "count": 1, "max_concurrency": 2, "work_delay": "20ms"},
		{"type": "analysis", "count": 2, "max_concurrency": 2, "work_delay": "20ms"},
		{"type": "planning", "count": 1, "max_concurrency": 2, "work_delay": "20ms"},
		{"type": "reporting", "count": 1, "max_concurrency": 2, "work_delay": "20ms"},
	})
}
