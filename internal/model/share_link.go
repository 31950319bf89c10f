package model

import "time"

type AccessLevel string

const (
	AccessView     AccessLevel = "view"
	AccessDownload AccessLevel = "download"
)

// Allows reports whether a link at this level permits the requested action.
// Download is strictly more permissive than view.
func (l AccessLevel) Allows(action AccessLevel) bool {
	if l == AccessDownload {
		return true
	}
	return action == AccessView
}

// ShareLink is a capability token for a shared collection. The token itself
// is the sole bearer credential.
type ShareLink struct {
	Token          string      `json:"token"`
	CollectionID   string      `json:"collection_id"`
	OwnerID        string      `json:"owner_id"`
	AccessLevel    AccessLevel `json:"access_level"`
	PasswordHash   string      `json:"password_hash,omitempty"`
	ExpiresAt      *time.Time  `json:"expires_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	RevokedAt      *time.Time  `json:"revoked_at,omitempty"`
	ViewCount      int64       `json:"view_count"`
	LastAccessedAt *time.Time  `json:"last_accessed_at,omitempty"`
}

// Revoked reports whether the link has been terminally revoked.
func (s *ShareLink) Revoked() bool {
	return s.RevokedAt != nil
}

// Expired reports whether the link's expiry has passed. Links with no expiry
// never expire passively.
func (s *ShareLink) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}
