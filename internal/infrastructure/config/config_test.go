package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
platform:
  url: "https://iot.example.com"
  token: "test-token"
  device_id: "dev-default"
  group_id: "group-1"
database:
  path: "/tmp/test.db"
api:
  host: "0.0.0.0"
  port: 9090
scheduler:
  poll_interval: 15
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Platform.URL != "https://iot.example.com" {
		t.Errorf("Platform.URL = %q, want %q", cfg.Platform.URL, "https://iot.example.com")
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
	if cfg.Scheduler.PollInterval != 15 {
		t.Errorf("Scheduler.PollInterval = %d, want 15", cfg.Scheduler.PollInterval)
	}
}

func TestLoad_Defaults(t *testing.T) {
	content := `
platform:
  token: "test-token"
  device_id: "dev-default"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Platform.Dispatch.MaxAttempts != 3 {
		t.Errorf("Dispatch.MaxAttempts = %d, want 3", cfg.Platform.Dispatch.MaxAttempts)
	}
	if cfg.Platform.ReconnectInterval != 30 {
		t.Errorf("Platform.ReconnectInterval = %d, want 30", cfg.Platform.ReconnectInterval)
	}
	if len(cfg.Platform.TelemetryKeys) != 6 {
		t.Errorf("TelemetryKeys length = %d, want 6", len(cfg.Platform.TelemetryKeys))
	}
	if !cfg.Alert.SingleTrigger {
		t.Error("Alert.SingleTrigger default should be true")
	}
	if cfg.Scheduler.DeviceDelayMS != 100 {
		t.Errorf("Scheduler.DeviceDelayMS = %d, want 100", cfg.Scheduler.DeviceDelayMS)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	// Missing platform token and device id
	content := `
platform:
  url: "https://iot.example.com"
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "platform.token") {
		t.Errorf("error %q should mention platform.token", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	content := `
platform:
  token: "file-token"
  device_id: "dev-default"
`
	t.Setenv("VOLTGUARD_PLATFORM_TOKEN", "env-token")
	t.Setenv("VOLTGUARD_DATABASE_PATH", "/tmp/env.db")

	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Platform.Token != "env-token" {
		t.Errorf("Platform.Token = %q, want env override %q", cfg.Platform.Token, "env-token")
	}
	if cfg.Database.Path != "/tmp/env.db" {
		t.Errorf("Database.Path = %q, want env override %q", cfg.Database.Path, "/tmp/env.db")
	}
}

func TestValidate_PortRange(t *testing.T) {
	content := `
platform:
  token: "t"
  device_id: "d"
api:
  port: 70000
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Error("Load() expected error for out-of-range port, got nil")
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := defaultConfig()

	if got := cfg.Platform.GetReconnectInterval().Seconds(); got != 30 {
		t.Errorf("GetReconnectInterval = %vs, want 30s", got)
	}
	if got := cfg.Scheduler.GetPollInterval().Seconds(); got != 30 {
		t.Errorf("GetPollInterval = %vs, want 30s", got)
	}
	if got := cfg.Scheduler.GetDeviceDelay().Milliseconds(); got != 100 {
		t.Errorf("GetDeviceDelay = %vms, want 100ms", got)
	}
}
