package store

import (
	"encoding/json"
	"fmt"

	"github.com/mgriffe/keepsake/internal/kv"
	"github.com/mgriffe/keepsake/internal/model"
)

type PushStore struct {
	kv kv.Store
}

func NewPushStore(s kv.Store) *PushStore {
	return &PushStore{kv: s}
}

func (s *PushStore) Put(sub *model.PushSubscription) error {
	if sub.AccountID == "" || sub.Endpoint == "" {
		return fmt.Errorf("put push subscription: missing account id or endpoint")
	}
	return putJSON(s.kv, pushSubKey(sub.AccountID, sub.Endpoint), sub)
}

func (s *PushStore) ListByAccount(accountID string) ([]*model.PushSubscription, error) {
	entries, err := s.kv.GetByPrefix(pushSubPrefix + accountID + ":")
	if err != nil {
		return nil, fmt.Errorf("scan push subscriptions: %w", err)
	}
	out := make([]*model.PushSubscription, 0, len(entries))
	for _, e := range entries {
		var sub model.PushSubscription
		if err := json.Unmarshal(e.Value, &sub); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", e.Key, err)
		}
		out = append(out, &sub)
	}
	return out, nil
}

// DeleteByEndpoint drops a subscription the push service reported gone.
func (s *PushStore) DeleteByEndpoint(accountID, endpoint string) error {
	return s.kv.Delete(pushSubKey(accountID, endpoint))
}
