package store

import (
	"encoding/json"
	"fmt"

	"github.com/mgriffe/keepsake/internal/kv"
	"github.com/mgriffe/keepsake/internal/model"
)

// QueueStore holds durable retry entries for failed notification deliveries.
type QueueStore struct {
	kv kv.Store
}

func NewQueueStore(s kv.Store) *QueueStore {
	return &QueueStore{kv: s}
}

func (s *QueueStore) Put(n *model.QueuedNotification) error {
	if n.ID == "" {
		return fmt.Errorf("put queued notification: empty id")
	}
	return putJSON(s.kv, queueKey(n.ID), n)
}

func (s *QueueStore) Delete(id string) error {
	return s.kv.Delete(queueKey(id))
}

// Pending returns all entries that are not dead-lettered, in id order.
func (s *QueueStore) Pending() ([]*model.QueuedNotification, error) {
	entries, err := s.kv.GetByPrefix(queuePrefix)
	if err != nil {
		return nil, fmt.Errorf("scan notification queue: %w", err)
	}
	out := make([]*model.QueuedNotification, 0, len(entries))
	for _, e := range entries {
		var n model.QueuedNotification
		if err := json.Unmarshal(e.Value, &n); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", e.Key, err)
		}
		if n.DeadAt != nil {
			continue
		}
		out = append(out, &n)
	}
	return out, nil
}
