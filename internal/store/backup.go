package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mgriffe/keepsake/internal/kv"
	"github.com/mgriffe/keepsake/internal/model"
)

type BackupStore struct {
	kv kv.Store
}

func NewBackupStore(s kv.Store) *BackupStore {
	return &BackupStore{kv: s}
}

func (s *BackupStore) Put(r *model.BackupRecord) error {
	if r.Key == "" {
		return fmt.Errorf("put backup record: empty key")
	}
	return putJSON(s.kv, backupKey(r.CreatedAt.UTC().Format(time.RFC3339)), r)
}

// DeleteOlderThan removes records created before the cutoff and returns
// their object keys so the caller can delete the S3 objects.
func (s *BackupStore) DeleteOlderThan(before time.Time) ([]string, error) {
	entries, err := s.kv.GetByPrefix(backupPrefix)
	if err != nil {
		return nil, fmt.Errorf("scan backup records: %w", err)
	}
	var keys []string
	for _, e := range entries {
		var r model.BackupRecord
		if err := json.Unmarshal(e.Value, &r); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", e.Key, err)
		}
		if r.CreatedAt.Before(before) {
			if err := s.kv.Delete(e.Key); err != nil {
				return nil, err
			}
			keys = append(keys, r.Key)
		}
	}
	return keys, nil
}
