// Package config loads runtime configuration from KEEPSAKE_* environment
// variables, with working defaults for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/mgriffe/keepsake/internal/backup"
)

type Config struct {
	Port      string
	BaseURL   string
	DBPath    string
	LogLevel  string
	LogFormat string

	PostmarkToken string
	FromEmail     string

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string

	// MonitorInterval paces the scheduler tick; SweepInterval gates the
	// share-link expiry sweep inside it.
	MonitorInterval time.Duration
	SweepInterval   time.Duration
	// SendPause throttles multi-beneficiary grant fan-out.
	SendPause time.Duration

	Backup backup.Config
}

func Load() Config {
	cfg := Config{
		Port:            envOr("KEEPSAKE_PORT", "8080"),
		BaseURL:         envOr("KEEPSAKE_BASE_URL", "http://localhost:8080"),
		DBPath:          envOr("KEEPSAKE_DB_PATH", "keepsake.db"),
		LogLevel:        os.Getenv("KEEPSAKE_LOG_LEVEL"),
		LogFormat:       os.Getenv("KEEPSAKE_LOG_FORMAT"),
		PostmarkToken:   os.Getenv("KEEPSAKE_POSTMARK_TOKEN"),
		FromEmail:       envOr("KEEPSAKE_FROM_EMAIL", "noreply@keepsake.app"),
		VAPIDPublicKey:  os.Getenv("KEEPSAKE_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("KEEPSAKE_VAPID_PRIVATE_KEY"),
		VAPIDSubscriber: envOr("KEEPSAKE_VAPID_SUBSCRIBER", "mailto:admin@keepsake.app"),
		MonitorInterval: envDuration("KEEPSAKE_MONITOR_INTERVAL", time.Hour),
		SweepInterval:   envDuration("KEEPSAKE_SWEEP_INTERVAL", 24*time.Hour),
		SendPause:       envDuration("KEEPSAKE_SEND_PAUSE", 500*time.Millisecond),
	}

	cfg.Backup = backup.Config{
		S3: backup.S3Config{
			Endpoint:  os.Getenv("KEEPSAKE_S3_ENDPOINT"),
			Bucket:    os.Getenv("KEEPSAKE_S3_BUCKET"),
			Region:    envOr("KEEPSAKE_S3_REGION", "auto"),
			AccessKey: os.Getenv("KEEPSAKE_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("KEEPSAKE_S3_SECRET_KEY"),
		},
		DBPath:        cfg.DBPath,
		Passphrase:    os.Getenv("KEEPSAKE_BACKUP_PASSPHRASE"),
		RetentionDays: envInt("KEEPSAKE_BACKUP_RETENTION_DAYS", 30),
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
