package config

import (
	"errors"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// envConfig lists the ONSET_* environment variables.
type envConfig struct {
	LogDir         string        `env:"ONSET_LOG_DIR"`
	DisposeTimeout time.Duration `env:"ONSET_DISPOSE_TIMEOUT"`
	DrainTimeout   time.Duration `env:"ONSET_DRAIN_TIMEOUT"`
	MetricsAddr    string        `env:"ONSET_METRICS_ADDR"`
}

// LoadEnvFile loads a dotenv file into the process environment. Variables
// already set are not overridden.
func LoadEnvFile(path string) error {
	return godotenv.Load(path)
}

// ApplyEnvConfig applies ONSET_* environment variables to the Config. These
// override file config but are overridden by flags (checked via changed map).
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	var env envConfig
	if err := envdecode.Decode(&env); err != nil {
		if errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
			return nil
		}
		return err
	}

	s := newConfigSetter(changed)
	s.setString(FlagLogDir, env.LogDir, &cfg.LogDir)
	s.setString(FlagMetricsAddr, env.MetricsAddr, &cfg.MetricsAddr)
	s.setDuration(FlagDisposeTimeout, env.DisposeTimeout, &cfg.DisposeTimeout)
	s.setDuration(FlagDrainTimeout, env.DrainTimeout, &cfg.DrainTimeout)
	return nil
}
