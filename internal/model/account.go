package model

import "time"

type AccountStatus string

const (
	AccountActive   AccountStatus = "active"
	AccountInactive AccountStatus = "inactive"
)

// Defaults applied at signup when the owner has not chosen a policy.
const (
	DefaultInactivityThresholdDays = 90
	DefaultWarningLeadDays         = 14
)

// Account is the vault owner's record. Created at signup, mutated by login
// events (reactivation) and by the inactivity monitor (deactivation); never
// deleted by this core.
type Account struct {
	ID                      string        `json:"id"`
	Email                   string        `json:"email"`
	Status                  AccountStatus `json:"status"`
	LastActivityAt          time.Time     `json:"last_activity_at"`
	LegacyAccessEnabled     bool          `json:"legacy_access_enabled"`
	InactivityThresholdDays int           `json:"inactivity_threshold_days"`
	WarningLeadDays         int           `json:"warning_lead_days"`
	InactiveAt              *time.Time    `json:"inactive_at,omitempty"`
	ReactivatedAt           *time.Time    `json:"reactivated_at,omitempty"`
	CreatedAt               time.Time     `json:"created_at"`
}

// DaysSinceActivity returns whole elapsed days since the last activity,
// rounded down.
func (a *Account) DaysSinceActivity(now time.Time) int {
	d := now.Sub(a.LastActivityAt)
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}

// Beneficiary is a third party designated by the account owner to receive
// access after confirmed prolonged inactivity. Owned by the user-management
// subsystem; read-only to this core.
type Beneficiary struct {
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
