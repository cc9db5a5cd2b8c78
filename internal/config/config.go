// Package config loads the service definitions of the host and the host
// settings. Values are layered: defaults, then the TOML file, then ONSET_*
// environment variables, then command line flags.
package config

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Run modes of a service.
const (
	// ModeLaunch runs the command once.
	ModeLaunch = "launch"
	// ModeInterval runs the command on a schedule.
	ModeInterval = "interval"
)

// Config holds the host configuration.
type Config struct {
	LogDir         string
	DisposeTimeout time.Duration
	DrainTimeout   time.Duration
	MetricsAddr    string
	Services       []Service
}

// Service describes one hosted service. It implements onset.StartInfo.
type Service struct {
	ServiceName string   `toml:"name"`
	LogEnabled  *bool    `toml:"enable_log"`
	Mode        string   `toml:"mode"`
	Command     string   `toml:"command"`
	Args        []string `toml:"args"`
	WorkingDir  string   `toml:"working_dir"`
	Env         []string `toml:"env"`
	UseShell    bool     `toml:"use_shell"`
	Schedule    string   `toml:"schedule"`
}

// Name returns the service name.
func (s Service) Name() string { return s.ServiceName }

// EnableLog reports whether the service logs. It defaults to true.
func (s Service) EnableLog() bool { return s.LogEnabled == nil || *s.LogEnabled }

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		DisposeTimeout: 5 * time.Second,
		DrainTimeout:   time.Second,
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.DisposeTimeout <= 0 {
		return fmt.Errorf("dispose timeout must be positive")
	}
	if c.DrainTimeout <= 0 {
		return fmt.Errorf("drain timeout must be positive")
	}
	if len(c.Services) == 0 {
		return fmt.Errorf("no service configured")
	}

	seen := make(map[string]bool, len(c.Services))
	for i := range c.Services {
		s := &c.Services[i]
		if s.ServiceName == "" {
			return fmt.Errorf("service #%d: name is required", i+1)
		}
		if seen[s.ServiceName] {
			return fmt.Errorf("service %s: duplicate name", s.ServiceName)
		}
		seen[s.ServiceName] = true

		if s.Command == "" {
			return fmt.Errorf("service %s: command is required", s.ServiceName)
		}
		if s.Mode == "" {
			s.Mode = ModeLaunch
		}
		switch s.Mode {
		case ModeLaunch:
		case ModeInterval:
			if s.Schedule == "" {
				return fmt.Errorf("service %s: schedule is required in %s mode",
					s.ServiceName, ModeInterval)
			}
			schedule, err := cron.ParseStandard(s.Schedule)
			if err != nil {
				return fmt.Errorf("service %s: parse schedule: %w", s.ServiceName, err)
			}
			if schedule.Next(time.Now()).IsZero() {
				return fmt.Errorf("service %s: schedule %q never activates",
					s.ServiceName, s.Schedule)
			}
		default:
			return fmt.Errorf("service %s: unknown mode %q", s.ServiceName, s.Mode)
		}
	}
	return nil
}

// configSetter helps apply configuration values while respecting flag
// precedence. It only applies values if the corresponding flag hasn't been
// explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration sets a duration if positive and flag not changed.
func (s *configSetter) setDuration(flag string, value time.Duration, dst *time.Duration) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDurationString parses and sets a duration from string if valid and flag
// not changed.
func (s *configSetter) setDurationString(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}
