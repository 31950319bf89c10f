package store

import (
	"encoding/json"
	"fmt"

	"github.com/mgriffe/keepsake/internal/kv"
	"github.com/mgriffe/keepsake/internal/model"
)

type WarningStore struct {
	kv kv.Store
}

func NewWarningStore(s kv.Store) *WarningStore {
	return &WarningStore{kv: s}
}

// Get returns the warning record for (account, day), or nil if none was sent.
func (s *WarningStore) Get(accountID, day string) (*model.WarningRecord, error) {
	var w model.WarningRecord
	ok, err := getJSON(s.kv, warningKey(accountID, day), &w)
	if err != nil {
		return nil, fmt.Errorf("get warning record: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (s *WarningStore) Put(w *model.WarningRecord) error {
	if w.AccountID == "" || w.Day == "" {
		return fmt.Errorf("put warning record: missing account id or day")
	}
	return putJSON(s.kv, warningKey(w.AccountID, w.Day), w)
}

// EnsureSent runs fn only when no record exists for (account, day), then
// persists the record fn returns. The record is the per-day dedup marker:
// fn failing leaves no record, so the next run retries the send.
func (s *WarningStore) EnsureSent(accountID, day string, fn func() (*model.WarningRecord, error)) (bool, error) {
	return kv.EnsureOnce(s.kv, warningKey(accountID, day), func() ([]byte, error) {
		w, err := fn()
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(w)
		if err != nil {
			return nil, fmt.Errorf("marshal warning record: %w", err)
		}
		return data, nil
	})
}
