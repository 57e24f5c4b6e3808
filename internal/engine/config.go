package engine

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/roach88/prm/internal/binding"
)

// Interval bounds accepted by Config.Validate.
const (
	MinCleanupInterval = 1
	MaxCleanupInterval = 1_000_000
)

// Environment variables read by ConfigFromEnv.
const (
	EnvMonitorCleanupInterval = "PRM_MONITOR_CLEANUP_INTERVAL"
	EnvBindingCleanupInterval = "PRM_BINDING_CLEANUP_INTERVAL"
	EnvAliveCheck             = "PRM_ALIVE_CHECK"
	EnvLinkStrategy           = "PRM_LINK_STRATEGY"
)

// Config holds the engine's performance tunables. None of them changes
// which matches are reported.
type Config struct {
	// MonitorCleanupInterval is the number of events between monitor
	// cleanups, which run at phase 0 of the interval.
	MonitorCleanupInterval int64 `yaml:"monitor_cleanup_interval"`

	// BindingCleanupInterval is the number of events between binding
	// cleanups, which run at phase interval/2.
	BindingCleanupInterval int64 `yaml:"binding_cleanup_interval"`

	// AliveCheck terminates a monitor after a transition when none of its
	// state's alive parameter groups is fully reachable.
	AliveCheck bool `yaml:"alive_check"`

	// LinkStrategy selects how bindings store their backlinks.
	LinkStrategy binding.LinkStrategy `yaml:"link_strategy"`
}

// DefaultConfig returns the default tunables.
func DefaultConfig() Config {
	return Config{
		MonitorCleanupInterval: 10_000,
		BindingCleanupInterval: 10_000,
		AliveCheck:             true,
		LinkStrategy:           binding.LinkArray,
	}
}

// ConfigFromEnv overlays the PRM_* environment variables on base.
func ConfigFromEnv(base Config) (Config, error) {
	return configFromLookup(base, os.LookupEnv)
}

func configFromLookup(base Config, lookup func(string) (string, bool)) (Config, error) {
	cfg := base
	if v, ok := lookup(EnvMonitorCleanupInterval); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return base, fmt.Errorf("%s: %w", EnvMonitorCleanupInterval, err)
		}
		cfg.MonitorCleanupInterval = n
	}
	if v, ok := lookup(EnvBindingCleanupInterval); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return base, fmt.Errorf("%s: %w", EnvBindingCleanupInterval, err)
		}
		cfg.BindingCleanupInterval = n
	}
	if v, ok := lookup(EnvAliveCheck); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return base, fmt.Errorf("%s: %w", EnvAliveCheck, err)
		}
		cfg.AliveCheck = b
	}
	if v, ok := lookup(EnvLinkStrategy); ok {
		s, err := binding.ParseLinkStrategy(v)
		if err != nil {
			return base, fmt.Errorf("%s: %w", EnvLinkStrategy, err)
		}
		cfg.LinkStrategy = s
	}
	return cfg, nil
}

// LoadConfigFile overlays the YAML document at path on base. Keys absent
// from the file keep base's values.
func LoadConfigFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read config: %w", err)
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return base, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the intervals and link strategy.
func (c Config) Validate() error {
	if c.MonitorCleanupInterval < MinCleanupInterval || c.MonitorCleanupInterval > MaxCleanupInterval {
		return fmt.Errorf("monitor cleanup interval %d outside %d..%d",
			c.MonitorCleanupInterval, MinCleanupInterval, MaxCleanupInterval)
	}
	if c.BindingCleanupInterval < MinCleanupInterval || c.BindingCleanupInterval > MaxCleanupInterval {
		return fmt.Errorf("binding cleanup interval %d outside %d..%d",
			c.BindingCleanupInterval, MinCleanupInterval, MaxCleanupInterval)
	}
	switch c.LinkStrategy {
	case binding.LinkArray, binding.LinkList:
	default:
		return fmt.Errorf("unknown link strategy %s", c.LinkStrategy)
	}
	return nil
}
