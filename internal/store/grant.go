package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mgriffe/keepsake/internal/kv"
	"github.com/mgriffe/keepsake/internal/model"
)

type GrantStore struct {
	kv kv.Store
}

func NewGrantStore(s kv.Store) *GrantStore {
	return &GrantStore{kv: s}
}

func (s *GrantStore) Put(g *model.LegacyAccessGrant) error {
	if g.AccountID == "" || g.BeneficiaryEmail == "" {
		return fmt.Errorf("put grant: missing account id or beneficiary")
	}
	return putJSON(s.kv, grantKey(g.AccountID, g.BeneficiaryEmail), g)
}

// Get returns the grant for (account, beneficiary), or nil if not found.
func (s *GrantStore) Get(accountID, email string) (*model.LegacyAccessGrant, error) {
	var g model.LegacyAccessGrant
	ok, err := getJSON(s.kv, grantKey(accountID, email), &g)
	if err != nil {
		return nil, fmt.Errorf("get grant: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &g, nil
}

// GetByToken resolves an access token to its grant by scanning the grant
// space. Grants are few per account and redemptions rare, so the scan is
// acceptable; the share-link path keeps its point lookup.
func (s *GrantStore) GetByToken(token string) (*model.LegacyAccessGrant, error) {
	entries, err := s.kv.GetByPrefix(grantPrefix)
	if err != nil {
		return nil, fmt.Errorf("scan grants: %w", err)
	}
	for _, e := range entries {
		// Skip processed markers (no beneficiary segment after the account id).
		if !strings.Contains(strings.TrimPrefix(e.Key, grantPrefix), ":") {
			continue
		}
		var g model.LegacyAccessGrant
		if err := json.Unmarshal(e.Value, &g); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", e.Key, err)
		}
		if g.Token == token {
			return &g, nil
		}
	}
	return nil, nil
}

// ListByAccount returns every grant issued for the account.
func (s *GrantStore) ListByAccount(accountID string) ([]*model.LegacyAccessGrant, error) {
	entries, err := s.kv.GetByPrefix(grantPrefix + accountID + ":")
	if err != nil {
		return nil, fmt.Errorf("scan grants: %w", err)
	}
	out := make([]*model.LegacyAccessGrant, 0, len(entries))
	for _, e := range entries {
		var g model.LegacyAccessGrant
		if err := json.Unmarshal(e.Value, &g); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", e.Key, err)
		}
		out = append(out, &g)
	}
	return out, nil
}

// Marker returns the account's processed marker, or nil if the account's
// inactivity episode has not been processed.
func (s *GrantStore) Marker(accountID string) (*model.GrantMarker, error) {
	var m model.GrantMarker
	ok, err := getJSON(s.kv, grantMarkerKey(accountID), &m)
	if err != nil {
		return nil, fmt.Errorf("get grant marker: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *GrantStore) PutMarker(m *model.GrantMarker) error {
	if m.AccountID == "" {
		return fmt.Errorf("put grant marker: empty account id")
	}
	return putJSON(s.kv, grantMarkerKey(m.AccountID), m)
}

// EnsureProcessed runs fn only when the account's episode has no processed
// marker yet, then persists the marker fn returns. fn failing mid-issuance
// leaves no marker, so the next pass resumes the episode.
func (s *GrantStore) EnsureProcessed(accountID string, fn func() (*model.GrantMarker, error)) (bool, error) {
	return kv.EnsureOnce(s.kv, grantMarkerKey(accountID), func() ([]byte, error) {
		m, err := fn()
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("marshal grant marker: %w", err)
		}
		return data, nil
	})
}

// ClearMarker removes the processed marker, opening a new inactivity episode.
// Called on reactivation so a future dormancy issues fresh grants.
func (s *GrantStore) ClearMarker(accountID string) error {
	return s.kv.Delete(grantMarkerKey(accountID))
}
