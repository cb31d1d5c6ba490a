package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/supportdesk/host/internal/config"
	apperrors "github.com/supportdesk/host/internal/errors"
	"github.com/supportdesk/host/internal/storage"
)

// loadConfig reads the config file at path (or the default location) and
// overlays the environment. Defaults are not applied.
func loadConfig(path string) (config.Config, error) {
	fileCfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if err := config.ApplyEnv(fileCfg); err != nil {
		return config.Config{}, err
	}
	return *fileCfg, nil
}

// resolveStorePath returns flagValue when set, otherwise the store path from
// config, environment or the default location.
func resolveStorePath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	cfg, err := loadConfig("")
	if err != nil {
		return "", err
	}
	cfg = cfg.WithDefaults()
	if cfg.Store == "" {
		return "", fmt.Errorf("cannot determine store path; pass --store")
	}
	return cfg.Store, nil
}

// openStore opens the SQLite store, creating its directory if needed.
func openStore(path string) (*storage.SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	store, err := storage.NewSQLiteStore(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorageOpenFailed, "failed to open storage", err)
	}
	return store, nil
}

// formatDuration formats a duration in a human-readable way.
// Examples: "just now", "5m ago", "2h ago", "3d ago"
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "in the future"
	}
	if d < time.Minute {
		return "just now"
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(d.Hours()/24))
}

// formatUptime formats an uptime in seconds.
// Examples: "45s", "5m 23s", "2h 15m", "3d 4h"
func formatUptime(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	if d < time.Minute {
		return fmt.Sprintf("%ds", seconds)
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	return fmt.Sprintf("%dd %dh", int(d.Hours())/24, int(d.Hours())%24)
}
