package store

import (
	"encoding/json"
	"fmt"

	"github.com/mgriffe/keepsake/internal/kv"
	"github.com/mgriffe/keepsake/internal/model"
)

// BeneficiaryStore reads the beneficiary designations written by the account
// owner through the management UI. This core treats them as read-only; Put
// exists for tests and seeding.
type BeneficiaryStore struct {
	kv kv.Store
}

func NewBeneficiaryStore(s kv.Store) *BeneficiaryStore {
	return &BeneficiaryStore{kv: s}
}

func (s *BeneficiaryStore) Put(b *model.Beneficiary) error {
	if b.AccountID == "" || b.Email == "" {
		return fmt.Errorf("put beneficiary: missing account id or email")
	}
	return putJSON(s.kv, beneficiaryKey(b.AccountID, b.Email), b)
}

// ListByAccount returns all beneficiaries designated by the account, in
// address order.
func (s *BeneficiaryStore) ListByAccount(accountID string) ([]*model.Beneficiary, error) {
	entries, err := s.kv.GetByPrefix(beneficiaryPrefix + accountID + ":")
	if err != nil {
		return nil, fmt.Errorf("scan beneficiaries: %w", err)
	}
	out := make([]*model.Beneficiary, 0, len(entries))
	for _, e := range entries {
		var b model.Beneficiary
		if err := json.Unmarshal(e.Value, &b); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", e.Key, err)
		}
		out = append(out, &b)
	}
	return out, nil
}
