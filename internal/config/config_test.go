package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
log_dir = "/var/log/onset"
dispose_timeout = "10s"

[[services]]
name = "backup"
command = "rsync"
args = ["-a", "/src", "/dst"]

[[services]]
name = "cleanup"
enable_log = false
mode = "interval"
command = "find /tmp -mtime +7 -delete"
use_shell = true
schedule = "@every 1h"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "onset.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFileConfig(t *testing.T) {
	fc, err := LoadFileConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	cfg := DefaultConfig()
	require.NoError(t, ApplyFileConfig(&cfg, fc, nil))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/var/log/onset", cfg.LogDir)
	assert.Equal(t, 10*time.Second, cfg.DisposeTimeout)
	assert.Equal(t, time.Second, cfg.DrainTimeout)
	require.Len(t, cfg.Services, 2)

	backup := cfg.Services[0]
	assert.Equal(t, "backup", backup.Name())
	assert.True(t, backup.EnableLog())
	assert.Equal(t, ModeLaunch, backup.Mode)
	assert.Equal(t, []string{"-a", "/src", "/dst"}, backup.Args)

	cleanup := cfg.Services[1]
	assert.False(t, cleanup.EnableLog())
	assert.True(t, cleanup.UseShell)
	assert.Equal(t, ModeInterval, cleanup.Mode)
}

func TestLoadFileConfigErrors(t *testing.T) {
	_, err := LoadFileConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = LoadFileConfig(writeConfig(t, "services = 3"))
	assert.Error(t, err)

	fc, err := LoadFileConfig(writeConfig(t, `dispose_timeout = "soon"`))
	require.NoError(t, err)
	cfg := DefaultConfig()
	assert.Error(t, ApplyFileConfig(&cfg, fc, nil))
}

func TestApplyFileConfigRespectsFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogDir = "/from/flag"
	fc := FileConfig{LogDir: "/from/file", DrainTimeout: "3s"}
	require.NoError(t, ApplyFileConfig(&cfg, fc, map[string]bool{FlagLogDir: true}))
	assert.Equal(t, "/from/flag", cfg.LogDir)
	assert.Equal(t, 3*time.Second, cfg.DrainTimeout)
}

func TestApplyEnvConfig(t *testing.T) {
	t.Setenv("ONSET_LOG_DIR", "/from/env")
	t.Setenv("ONSET_DISPOSE_TIMEOUT", "7s")
	t.Setenv("ONSET_METRICS_ADDR", ":9100")

	cfg := DefaultConfig()
	cfg.MetricsAddr = ":9200"
	require.NoError(t, ApplyEnvConfig(&cfg, map[string]bool{FlagMetricsAddr: true}))
	assert.Equal(t, "/from/env", cfg.LogDir)
	assert.Equal(t, 7*time.Second, cfg.DisposeTimeout)
	assert.Equal(t, ":9200", cfg.MetricsAddr)
}

func TestApplyEnvConfigNothingSet(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, ApplyEnvConfig(&cfg, nil))
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ONSET_DRAIN_TIMEOUT=250ms\n"), 0o644))
	t.Setenv("ONSET_DRAIN_TIMEOUT", "")
	os.Unsetenv("ONSET_DRAIN_TIMEOUT")

	require.NoError(t, LoadEnvFile(path))
	cfg := DefaultConfig()
	require.NoError(t, ApplyEnvConfig(&cfg, nil))
	assert.Equal(t, 250*time.Millisecond, cfg.DrainTimeout)
}

func TestValidate(t *testing.T) {
	svc := func(name, mode, schedule string) Service {
		return Service{ServiceName: name, Command: "true", Mode: mode, Schedule: schedule}
	}
	tests := []struct {
		name     string
		services []Service
		wantErr  bool
	}{
		{"launch", []Service{svc("a", "", "")}, false},
		{"interval", []Service{svc("a", ModeInterval, "*/5 * * * *")}, false},
		{"no services", nil, true},
		{"missing name", []Service{svc("", "", "")}, true},
		{"duplicate name", []Service{svc("a", "", ""), svc("a", "", "")}, true},
		{"missing command", []Service{{ServiceName: "a"}}, true},
		{"unknown mode", []Service{svc("a", "daemon", "")}, true},
		{"missing schedule", []Service{svc("a", ModeInterval, "")}, true},
		{"invalid schedule", []Service{svc("a", ModeInterval, "every day")}, true},
		{"schedule never activates", []Service{svc("a", ModeInterval, "0 0 30 2 *")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Services = tt.services
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
