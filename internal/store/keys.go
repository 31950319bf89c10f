// Package store provides typed repositories over the key-value contract.
// It owns the key-naming scheme; every scheme here must stay injective so
// entities never collide on point lookups or prefix scans.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/mgriffe/keepsake/internal/kv"
)

const (
	accountPrefix     = "account:"
	beneficiaryPrefix = "beneficiaries:"
	grantPrefix       = "legacy_access_grant:"
	warningPrefix     = "inactivity_warning:"
	sharePrefix       = "share_"
	collectionIndex   = "collection_shares:"
	ownerIndex        = "user_shares:"
	pushSubPrefix     = "push_sub:"
	queuePrefix       = "notify_queue:"
	backupPrefix      = "backup:"
)

func accountKey(id string) string {
	return accountPrefix + id
}

func beneficiaryKey(accountID, email string) string {
	return beneficiaryPrefix + accountID + ":" + email
}

// The marker key is the bare account id; per-beneficiary grants append the
// beneficiary address, so a scan of "legacy_access_grant:<id>:" returns the
// grants without the marker.
func grantMarkerKey(accountID string) string {
	return grantPrefix + accountID
}

func grantKey(accountID, email string) string {
	return grantPrefix + accountID + ":" + email
}

func warningKey(accountID, day string) string {
	return warningPrefix + accountID + ":" + day
}

func shareKey(token string) string {
	return sharePrefix + token
}

func collectionIndexKey(collectionID, token string) string {
	return collectionIndex + collectionID + ":" + token
}

func ownerIndexKey(ownerID, token string) string {
	return ownerIndex + ownerID + ":" + token
}

// Push endpoints are URLs; hashing keeps the key scheme free of separators.
func pushSubKey(accountID, endpoint string) string {
	sum := sha256.Sum256([]byte(endpoint))
	return pushSubPrefix + accountID + ":" + hex.EncodeToString(sum[:8])
}

func queueKey(id string) string {
	return queuePrefix + id
}

func backupKey(ts string) string {
	return backupPrefix + ts
}

func putJSON(s kv.Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := s.Set(key, data); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// getJSON decodes the value at key into out, returning ok=false when absent.
func getJSON(s kv.Store, key string, out any) (bool, error) {
	data, ok, err := s.Get(key)
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return true, nil
}
