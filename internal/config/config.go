// Package config holds the smsexport run configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config is the fully resolved run configuration. Precedence, lowest to
// highest: defaults, config file, environment, CLI flags.
type Config struct {
	BackupRoot string `yaml:"backup_root"`
	ExportBase string `yaml:"export_base"`
	Format     string `yaml:"format"`
	Verbose    bool   `yaml:"verbose"`
}

// GetAppDir returns the smsexport application directory for the current OS
func GetAppDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "smsexport")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, _ := os.UserHomeDir()
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, "smsexport")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "smsexport")
	}
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	return filepath.Join(GetAppDir(), "config.yaml")
}

// DefaultBackupRoot returns the platform's device-backup directory, or ""
// when the platform has no conventional location.
func DefaultBackupRoot() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "MobileSync", "Backup")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return ""
		}
		return filepath.Join(appData, "Apple Computer", "MobileSync", "Backup")
	default:
		return ""
	}
}

// Load resolves the configuration. path names an explicit config file;
// when empty, the default location is read if it exists. Environment
// variables override file values.
func Load(path string) (*Config, error) {
	home, _ := os.UserHomeDir()
	cfg := &Config{
		BackupRoot: DefaultBackupRoot(),
		ExportBase: home,
		Format:     "text",
	}

	explicit := path != ""
	if path == "" {
		path = DefaultConfigPath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if explicit || !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.BackupRoot = getEnv("SMSEXPORT_BACKUP", cfg.BackupRoot)
	cfg.ExportBase = getEnv("SMSEXPORT_OUT", cfg.ExportBase)
	cfg.Format = getEnv("SMSEXPORT_FORMAT", cfg.Format)

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
