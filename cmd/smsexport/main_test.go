package main

import (
	"testing"
)

func TestVersionInfo(t *testing.T) {
	// Basic sanity check that version vars are set
	if version == "" {
		t.Error("version should not be empty")
	}
}

func TestLoadConfigFlagPrecedence(t *testing.T) {
	cfg, err := loadConfig("", "/flag/backup", "/flag/out", "csv", true)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.BackupRoot != "/flag/backup" || cfg.ExportBase != "/flag/out" {
		t.Errorf("flags should win: %+v", cfg)
	}
	if cfg.Format != "csv" || !cfg.Verbose {
		t.Errorf("format/verbose flags not applied: %+v", cfg)
	}
}

func TestLoadConfigRequiresBackupRoot(t *testing.T) {
	t.Setenv("SMSEXPORT_BACKUP", "")
	t.Setenv("APPDATA", "")

	cfg, err := loadConfig("", "", "", "", false)
	if err == nil && cfg.BackupRoot == "" {
		t.Error("empty backup root should be rejected")
	}
}
