package backup

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mgriffe/keepsake/internal/kv"
	"github.com/mgriffe/keepsake/internal/model"
	"github.com/mgriffe/keepsake/internal/store"
)

type fakeS3 struct {
	objects map[string][]byte
	deleted []string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(input.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data := f.objects[aws.ToString(input.Key)]
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(input.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func setupManager(t *testing.T) (*Manager, *fakeS3, *store.BackupStore) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "keepsake.db")
	kvStore, err := kv.Open(dbPath)
	if err != nil {
		t.Fatalf("open kv: %v", err)
	}
	t.Cleanup(func() { kvStore.Close() })

	records := store.NewBackupStore(kvStore)
	cfg := Config{
		S3:            S3Config{Bucket: "backups", Region: "auto", AccessKey: "k", SecretKey: "s"},
		DBPath:        dbPath,
		Passphrase:    "correct horse",
		RetentionDays: 30,
	}
	m := NewManager(cfg, kvStore.DB(), records, slog.New(slog.DiscardHandler))
	fake := newFakeS3()
	m.client = fake
	return m, fake, records
}

func TestRunUploadsEncryptedSnapshot(t *testing.T) {
	m, fake, _ := setupManager(t)

	key, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.HasPrefix(key, "keepsake/backup-") || !strings.HasSuffix(key, ".db.enc") {
		t.Errorf("object key = %q", key)
	}

	data, ok := fake.objects[key]
	if !ok {
		t.Fatal("snapshot not uploaded")
	}
	if len(data) <= saltSize+nonceSize {
		t.Errorf("snapshot suspiciously small: %d bytes", len(data))
	}
	// A SQLite file starts with a fixed magic; the ciphertext must not.
	if bytes.HasPrefix(data, []byte("SQLite format 3")) {
		t.Error("uploaded snapshot is not encrypted")
	}
}

func TestRunUnconfigured(t *testing.T) {
	m, _, _ := setupManager(t)
	m.cfg.Passphrase = ""
	if _, err := m.Run(context.Background()); err == nil {
		t.Fatal("expected error without passphrase")
	}
}

func TestCleanupDeletesOnlyExpired(t *testing.T) {
	m, fake, records := setupManager(t)
	now := time.Now().UTC()

	old := &model.BackupRecord{Key: "keepsake/backup-old.db.enc", SizeBytes: 10, CreatedAt: now.AddDate(0, 0, -60)}
	fresh := &model.BackupRecord{Key: "keepsake/backup-new.db.enc", SizeBytes: 10, CreatedAt: now.AddDate(0, 0, -1)}
	if err := records.Put(old); err != nil {
		t.Fatal(err)
	}
	if err := records.Put(fresh); err != nil {
		t.Fatal(err)
	}

	if err := m.Cleanup(context.Background()); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if len(fake.deleted) != 1 || fake.deleted[0] != old.Key {
		t.Errorf("deleted = %v, want only %q", fake.deleted, old.Key)
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	m, _, _ := setupManager(t)

	key, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	dst := filepath.Join(t.TempDir(), "restored.db")
	if err := m.Restore(context.Background(), key, dst); err != nil {
		t.Fatalf("restore: %v", err)
	}
}
