package config

import (
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// Flag names, as used for precedence.
const (
	FlagLogDir         = "log-dir"
	FlagDisposeTimeout = "dispose-timeout"
	FlagDrainTimeout   = "drain-timeout"
	FlagMetricsAddr    = "metrics-addr"
)

// FileConfig mirrors Config but uses strings for durations to make TOML
// friendly.
type FileConfig struct {
	LogDir         string    `toml:"log_dir"`
	DisposeTimeout string    `toml:"dispose_timeout"`
	DrainTimeout   string    `toml:"drain_timeout"`
	MetricsAddr    string    `toml:"metrics_addr"`
	Services       []Service `toml:"services"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map). Services are
// only defined in the file.
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)
	s.setString(FlagLogDir, fc.LogDir, &cfg.LogDir)
	s.setString(FlagMetricsAddr, fc.MetricsAddr, &cfg.MetricsAddr)
	if err := s.setDurationString(FlagDisposeTimeout, fc.DisposeTimeout, &cfg.DisposeTimeout); err != nil {
		return err
	}
	if err := s.setDurationString(FlagDrainTimeout, fc.DrainTimeout, &cfg.DrainTimeout); err != nil {
		return err
	}
	cfg.Services = append(cfg.Services, fc.Services...)
	return nil
}
