// Package notify implements the delivery contract the core consumes:
// best-effort immediate send plus a durable queue drained by a worker.
// The core itself never retries a send inline.
package notify

import "context"

// Message is one notification to deliver.
type Message struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Notifier is the contract consumed by the monitor and grant manager.
type Notifier interface {
	// Send attempts immediate delivery and returns an error on failure.
	Send(ctx context.Context, msg Message) error
	// Queue durably records the message for later delivery by the worker.
	Queue(msg Message) error
}
