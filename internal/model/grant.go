package model

import "time"

// GrantValidityDays is the fixed access window from grant time.
const GrantValidityDays = 90

// LegacyAccessGrant is one beneficiary's access record, created exactly once
// when the owning account crosses the inactivity threshold. Only the delivery
// sub-flag is mutated after creation; the grant expires at read time and is
// never proactively deleted.
type LegacyAccessGrant struct {
	ID               string     `json:"id"`
	AccountID        string     `json:"account_id"`
	BeneficiaryEmail string     `json:"beneficiary_email"`
	Token            string     `json:"token"`
	GrantedAt        time.Time  `json:"granted_at"`
	ExpiresAt        time.Time  `json:"expires_at"`
	EmailSent        bool       `json:"email_sent"`
	EmailSentAt      *time.Time `json:"email_sent_at,omitempty"`
}

// Expired reports whether the grant's access window has passed.
func (g *LegacyAccessGrant) Expired(now time.Time) bool {
	return !now.Before(g.ExpiresAt)
}

// GrantMarker records that an account's inactivity transition was fully
// processed. Its mere presence makes a repeated scheduler run a no-op.
type GrantMarker struct {
	AccountID   string    `json:"account_id"`
	ProcessedAt time.Time `json:"processed_at"`
	GrantCount  int       `json:"grant_count"`
}

// WarningRecord marks that a pre-inactivity warning went out to an account
// on a given calendar day (UTC, formatted 2006-01-02).
type WarningRecord struct {
	AccountID     string    `json:"account_id"`
	Day           string    `json:"day"`
	SentAt        time.Time `json:"sent_at"`
	DaysRemaining int       `json:"days_remaining"`
}
