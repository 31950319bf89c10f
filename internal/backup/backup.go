// Package backup ships encrypted snapshots of the token database to
// S3-compatible object storage. Grants and share links are bearer
// credentials, so snapshots leave the host only under passphrase-derived
// AES-256-GCM.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mgriffe/keepsake/internal/model"
	"github.com/mgriffe/keepsake/internal/store"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Config holds backup manager configuration.
type Config struct {
	S3            S3Config
	DBPath        string
	Passphrase    string
	RetentionDays int
}

// Manager runs encrypted database snapshots and retention cleanup.
type Manager struct {
	cfg     Config
	db      *sql.DB
	records *store.BackupStore
	client  s3Client
	logger  *slog.Logger
}

func NewManager(cfg Config, db *sql.DB, records *store.BackupStore, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:     cfg,
		db:      db,
		records: records,
		logger:  logger,
	}
	if cfg.S3.Bucket != "" && cfg.S3.AccessKey != "" && cfg.S3.SecretKey != "" {
		m.client = newS3Client(cfg.S3)
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Configured reports whether S3 credentials and a passphrase are present.
func (m *Manager) Configured() bool {
	return m.client != nil && m.cfg.Passphrase != ""
}

// Run checkpoints the database, encrypts a copy, and uploads it. Returns
// the object key of the uploaded snapshot.
func (m *Manager) Run(ctx context.Context) (string, error) {
	if !m.Configured() {
		return "", fmt.Errorf("backup not configured: missing S3 credentials or passphrase")
	}

	timestamp := time.Now().UTC().Format("2006-01-02T150405Z")
	objectKey := fmt.Sprintf("keepsake/backup-%s.db.enc", timestamp)

	tmpDir := os.TempDir()
	dbCopy := filepath.Join(tmpDir, fmt.Sprintf("keepsake-backup-%s.db", timestamp))
	encFile := dbCopy + ".enc"
	defer os.Remove(dbCopy)
	defer os.Remove(encFile)

	// Checkpoint WAL so the file copy is a consistent snapshot.
	if _, err := m.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return "", fmt.Errorf("wal checkpoint: %w", err)
	}
	if err := copyFile(m.cfg.DBPath, dbCopy); err != nil {
		return "", fmt.Errorf("copy database: %w", err)
	}

	salt, err := GenerateSalt()
	if err != nil {
		return "", err
	}
	if err := EncryptFile(dbCopy, encFile, m.cfg.Passphrase, salt); err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}

	encData, err := os.Open(encFile)
	if err != nil {
		return "", fmt.Errorf("open encrypted file: %w", err)
	}
	defer encData.Close()
	stat, err := encData.Stat()
	if err != nil {
		return "", fmt.Errorf("stat encrypted file: %w", err)
	}

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.S3.Bucket),
		Key:           aws.String(objectKey),
		Body:          encData,
		ContentLength: aws.Int64(stat.Size()),
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3: %w", err)
	}

	if err := m.records.Put(&model.BackupRecord{
		Key:       objectKey,
		SizeBytes: stat.Size(),
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		m.logger.Error("record backup", "key", objectKey, "error", err)
	}

	m.logger.Info("backup uploaded", "key", objectKey, "bytes", stat.Size())
	return objectKey, nil
}

// Restore downloads a snapshot and decrypts it to dstPath. It does not
// touch the live database file; the operator swaps files with the service
// stopped.
func (m *Manager) Restore(ctx context.Context, objectKey, dstPath string) error {
	if !m.Configured() {
		return fmt.Errorf("backup not configured")
	}

	encFile := filepath.Join(os.TempDir(), "keepsake-restore.db.enc")
	defer os.Remove(encFile)

	result, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.cfg.S3.Bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return fmt.Errorf("download from s3: %w", err)
	}
	defer result.Body.Close()

	outFile, err := os.Create(encFile)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(outFile, result.Body); err != nil {
		outFile.Close()
		return fmt.Errorf("write downloaded file: %w", err)
	}
	outFile.Close()

	if err := DecryptFile(encFile, dstPath, m.cfg.Passphrase); err != nil {
		return fmt.Errorf("decrypt backup: %w", err)
	}

	// Validate the restored file before handing it to the operator.
	tmpDB, err := sql.Open("sqlite", dstPath)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	var integrity string
	if err := tmpDB.QueryRow("PRAGMA integrity_check").Scan(&integrity); err != nil {
		tmpDB.Close()
		return fmt.Errorf("integrity check: %w", err)
	}
	tmpDB.Close()
	if integrity != "ok" {
		return fmt.Errorf("integrity check failed: %s", integrity)
	}
	return nil
}

// Cleanup deletes snapshots older than the retention period, both the
// records and the S3 objects.
func (m *Manager) Cleanup(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	retention := m.cfg.RetentionDays
	if retention <= 0 {
		retention = 30
	}

	before := time.Now().UTC().AddDate(0, 0, -retention)
	keys, err := m.records.DeleteOlderThan(before)
	if err != nil {
		return fmt.Errorf("delete old backup records: %w", err)
	}

	for _, key := range keys {
		if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.S3.Bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Error("delete expired backup object", "key", key, "error", err)
		}
	}
	if len(keys) > 0 {
		m.logger.Info("expired backups removed", "count", len(keys))
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
