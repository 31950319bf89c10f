package model

import "time"

// PushSubscription is a browser push endpoint registered by an account owner.
type PushSubscription struct {
	AccountID string    `json:"account_id"`
	Endpoint  string    `json:"endpoint"`
	P256dhKey string    `json:"p256dh_key"`
	AuthKey   string    `json:"auth_key"`
	CreatedAt time.Time `json:"created_at"`
}

// QueuedNotification is a durable retry entry for a failed delivery. Entries
// are drained by the notification worker and dead-lettered after too many
// attempts.
type QueuedNotification struct {
	ID        string     `json:"id"`
	To        string     `json:"to"`
	Subject   string     `json:"subject"`
	TextBody  string     `json:"text_body"`
	HTMLBody  string     `json:"html_body,omitempty"`
	QueuedAt  time.Time  `json:"queued_at"`
	Attempts  int        `json:"attempts"`
	LastError string     `json:"last_error,omitempty"`
	DeadAt    *time.Time `json:"dead_at,omitempty"`
}

// BackupRecord tracks one encrypted snapshot shipped to object storage.
type BackupRecord struct {
	Key       string    `json:"key"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}
