package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mgriffe/keepsake/internal/kv"
	"github.com/mgriffe/keepsake/internal/model"
)

type AccountStore struct {
	kv kv.Store
}

func NewAccountStore(s kv.Store) *AccountStore {
	return &AccountStore{kv: s}
}

// Create registers an account with the policy defaults filled in.
func (s *AccountStore) Create(id, email string, now time.Time) (*model.Account, error) {
	acct := &model.Account{
		ID:                      id,
		Email:                   email,
		Status:                  model.AccountActive,
		LastActivityAt:          now,
		LegacyAccessEnabled:     false,
		InactivityThresholdDays: model.DefaultInactivityThresholdDays,
		WarningLeadDays:         model.DefaultWarningLeadDays,
		CreatedAt:               now,
	}
	if err := s.Put(acct); err != nil {
		return nil, err
	}
	return acct, nil
}

// GetByID returns the account, or nil if not found.
func (s *AccountStore) GetByID(id string) (*model.Account, error) {
	var acct model.Account
	ok, err := getJSON(s.kv, accountKey(id), &acct)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &acct, nil
}

func (s *AccountStore) Put(acct *model.Account) error {
	if acct.ID == "" {
		return fmt.Errorf("put account: empty id")
	}
	return putJSON(s.kv, accountKey(acct.ID), acct)
}

// Page returns one page of accounts starting after cursor, with the cursor
// for the next page. The monitor iterates with this rather than holding the
// full account set in memory.
func (s *AccountStore) Page(cursor string, limit int) ([]*model.Account, string, error) {
	entries, next, err := s.kv.Scan(accountPrefix, cursor, limit)
	if err != nil {
		return nil, "", fmt.Errorf("scan accounts: %w", err)
	}
	accounts := make([]*model.Account, 0, len(entries))
	for _, e := range entries {
		var acct model.Account
		if err := json.Unmarshal(e.Value, &acct); err != nil {
			return nil, "", fmt.Errorf("unmarshal %s: %w", e.Key, err)
		}
		accounts = append(accounts, &acct)
	}
	return accounts, next, nil
}
