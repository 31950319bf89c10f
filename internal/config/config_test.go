package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("port = %q", cfg.Port)
	}
	if cfg.DBPath != "keepsake.db" {
		t.Errorf("db path = %q", cfg.DBPath)
	}
	if cfg.MonitorInterval != time.Hour {
		t.Errorf("monitor interval = %v", cfg.MonitorInterval)
	}
	if cfg.Backup.RetentionDays != 30 {
		t.Errorf("retention = %d", cfg.Backup.RetentionDays)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KEEPSAKE_PORT", "9999")
	t.Setenv("KEEPSAKE_MONITOR_INTERVAL", "15m")
	t.Setenv("KEEPSAKE_BACKUP_RETENTION_DAYS", "7")
	t.Setenv("KEEPSAKE_S3_BUCKET", "vault-backups")

	cfg := Load()
	if cfg.Port != "9999" {
		t.Errorf("port = %q", cfg.Port)
	}
	if cfg.MonitorInterval != 15*time.Minute {
		t.Errorf("monitor interval = %v", cfg.MonitorInterval)
	}
	if cfg.Backup.RetentionDays != 7 {
		t.Errorf("retention = %d", cfg.Backup.RetentionDays)
	}
	if cfg.Backup.S3.Bucket != "vault-backups" {
		t.Errorf("bucket = %q", cfg.Backup.S3.Bucket)
	}
}

func TestLoadBadValuesFallBack(t *testing.T) {
	t.Setenv("KEEPSAKE_MONITOR_INTERVAL", "often")
	t.Setenv("KEEPSAKE_BACKUP_RETENTION_DAYS", "forever")

	cfg := Load()
	if cfg.MonitorInterval != time.Hour {
		t.Errorf("monitor interval = %v, want default", cfg.MonitorInterval)
	}
	if cfg.Backup.RetentionDays != 30 {
		t.Errorf("retention = %d, want default", cfg.Backup.RetentionDays)
	}
}
