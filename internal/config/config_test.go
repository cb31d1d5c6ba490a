package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestLoad_AllFields verifies that all config fields are parsed correctly from TOML.
func TestLoad_AllFields(t *testing.T) {
	content := `
addr = "0.0.0.0:9000"
store = "/var/lib/supportdesk/desk.db"
log_file = "/var/log/supportdesk.log"
operator_name = "helpdesk"
mdns_enabled = true
auth_rate_per_sec = 2.5
auth_burst = 4
frame_rate_per_sec = 20.0
frame_burst = 40
ping_interval_sec = 15
`
	tmpFile := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(tmpFile, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}

	cfg, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Addr != "0.0.0.0:9000" {
		t.Errorf("Addr = %q, want %q", cfg.Addr, "0.0.0.0:9000")
	}
	if cfg.Store != "/var/lib/supportdesk/desk.db" {
		t.Errorf("Store = %q, want %q", cfg.Store, "/var/lib/supportdesk/desk.db")
	}
	if cfg.LogFile != "/var/log/supportdesk.log" {
		t.Errorf("LogFile = %q, want %q", cfg.LogFile, "/var/log/supportdesk.log")
	}
	if cfg.OperatorName != "helpdesk" {
		t.Errorf("OperatorName = %q, want %q", cfg.OperatorName, "helpdesk")
	}
	if !cfg.MdnsEnabled {
		t.Error("MdnsEnabled = false, want true")
	}
	if cfg.AuthRatePerSec != 2.5 {
		t.Errorf("AuthRatePerSec = %v, want 2.5", cfg.AuthRatePerSec)
	}
	if cfg.AuthBurst != 4 {
		t.Errorf("AuthBurst = %d, want 4", cfg.AuthBurst)
	}
	if cfg.FrameRatePerSec != 20 {
		t.Errorf("FrameRatePerSec = %v, want 20", cfg.FrameRatePerSec)
	}
	if cfg.FrameBurst != 40 {
		t.Errorf("FrameBurst = %d, want 40", cfg.FrameBurst)
	}
	if cfg.PingIntervalSec != 15 {
		t.Errorf("PingIntervalSec = %d, want 15", cfg.PingIntervalSec)
	}
}

// TestLoad_PartialConfig verifies that unspecified fields stay at zero values.
func TestLoad_PartialConfig(t *testing.T) {
	content := `addr = "127.0.0.1:9999"`
	tmpFile := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(tmpFile, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}

	cfg, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Addr != "127.0.0.1:9999" {
		t.Errorf("Addr = %q, want %q", cfg.Addr, "127.0.0.1:9999")
	}
	if cfg.Store != "" {
		t.Errorf("Store = %q, want empty", cfg.Store)
	}
	if cfg.MdnsEnabled {
		t.Error("MdnsEnabled = true, want false")
	}
}

// TestLoad_ExplicitPath_NotFound verifies that an error is returned when
// an explicit config path doesn't exist.
func TestLoad_ExplicitPath_NotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.toml")
	if err == nil {
		t.Error("Load() expected error for nonexistent explicit path, got nil")
	}
}

// TestLoad_EmptyPath_NoDefaultFile verifies that an empty path returns
// an empty Config without error when no default file exists.
func TestLoad_EmptyPath_NoDefaultFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}
	if cfg.Addr != "" {
		t.Errorf("Addr = %q, want empty", cfg.Addr)
	}
}

// TestLoad_EmptyPath_DefaultFileExists verifies that an empty path loads
// from the default location when the file exists.
func TestLoad_EmptyPath_DefaultFileExists(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	configDir := filepath.Join(tmpHome, ".supportdesk")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}
	content := `addr = "localhost:7777"`
	if err := os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}
	if cfg.Addr != "localhost:7777" {
		t.Errorf("Addr = %q, want %q", cfg.Addr, "localhost:7777")
	}
}

// TestLoad_InvalidTOML verifies that a parse error is returned for invalid TOML.
func TestLoad_InvalidTOML(t *testing.T) {
	content := `
addr = "missing quote
`
	tmpFile := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(tmpFile, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}

	if _, err := Load(tmpFile); err == nil {
		t.Error("Load() expected error for invalid TOML, got nil")
	}
}

// TestDefaultConfigPath verifies the default config path format.
func TestDefaultConfigPath(t *testing.T) {
	path, err := DefaultConfigPath()
	if err != nil {
		t.Fatalf("DefaultConfigPath() error: %v", err)
	}
	if filepath.Base(path) != "config.toml" {
		t.Errorf("DefaultConfigPath() = %q, want filename config.toml", path)
	}
	if filepath.Base(filepath.Dir(path)) != ".supportdesk" {
		t.Errorf("DefaultConfigPath() = %q, want parent dir .supportdesk", path)
	}
}

// TestApplyEnv_OverridesFile verifies that environment variables replace
// values loaded from the file and leave unset fields alone.
func TestApplyEnv_OverridesFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SUPPORTDESK_ADDR", "0.0.0.0:8000")
	t.Setenv("SUPPORTDESK_MDNS_ENABLED", "true")
	t.Setenv("SUPPORTDESK_FRAME_BURST", "7")

	cfg := &Config{Addr: "127.0.0.1:1111", OperatorName: "helpdesk"}
	if err := ApplyEnv(cfg); err != nil {
		t.Fatalf("ApplyEnv() error: %v", err)
	}

	if cfg.Addr != "0.0.0.0:8000" {
		t.Errorf("Addr = %q, want %q", cfg.Addr, "0.0.0.0:8000")
	}
	if !cfg.MdnsEnabled {
		t.Error("MdnsEnabled = false, want true")
	}
	if cfg.FrameBurst != 7 {
		t.Errorf("FrameBurst = %d, want 7", cfg.FrameBurst)
	}
	if cfg.OperatorName != "helpdesk" {
		t.Errorf("OperatorName = %q, want %q (unset env must not clear it)", cfg.OperatorName, "helpdesk")
	}
}

// TestApplyEnv_DotEnvFile verifies that a .env file in the working directory is read.
func TestApplyEnv_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, EnvFile), []byte("SUPPORTDESK_OPERATOR_NAME=desk\n"), 0600); err != nil {
		t.Fatalf("Failed to write .env: %v", err)
	}
	// godotenv sets process variables; make sure the test restores them.
	t.Setenv("SUPPORTDESK_OPERATOR_NAME", "")
	os.Unsetenv("SUPPORTDESK_OPERATOR_NAME")

	cfg := &Config{}
	if err := ApplyEnv(cfg); err != nil {
		t.Fatalf("ApplyEnv() error: %v", err)
	}
	if cfg.OperatorName != "desk" {
		t.Errorf("OperatorName = %q, want %q", cfg.OperatorName, "desk")
	}
}

// TestWithDefaults fills zero values and keeps explicit ones.
func TestWithDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := Config{FrameBurst: 3}.WithDefaults()

	if cfg.Addr != DefaultAddr {
		t.Errorf("Addr = %q, want %q", cfg.Addr, DefaultAddr)
	}
	if cfg.OperatorName != DefaultOperatorName {
		t.Errorf("OperatorName = %q, want %q", cfg.OperatorName, DefaultOperatorName)
	}
	if filepath.Base(cfg.Store) != "supportdesk.db" {
		t.Errorf("Store = %q, want file supportdesk.db", cfg.Store)
	}
	if cfg.FrameBurst != 3 {
		t.Errorf("FrameBurst = %d, want 3", cfg.FrameBurst)
	}
	if cfg.AuthBurst != DefaultAuthBurst {
		t.Errorf("AuthBurst = %d, want %d", cfg.AuthBurst, DefaultAuthBurst)
	}
	if cfg.PingInterval() != DefaultPingInterval {
		t.Errorf("PingInterval() = %v, want %v", cfg.PingInterval(), DefaultPingInterval)
	}
}

func TestPingInterval(t *testing.T) {
	if got := (Config{PingIntervalSec: 5}).PingInterval(); got != 5*time.Second {
		t.Errorf("PingInterval() = %v, want 5s", got)
	}
	if got := (Config{}).PingInterval(); got != DefaultPingInterval {
		t.Errorf("PingInterval() = %v, want %v", got, DefaultPingInterval)
	}
}
