package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/mgriffe/keepsake/internal/store"
)

// Worker drains the durable notification queue. Each drain is idempotent
// with respect to the queue contents: an entry is deleted only after a
// successful delivery, and dead-lettered after too many failed drains.
type Worker struct {
	queue       *store.QueueStore
	mailer      *Mailer
	maxAttempts int
	baseDelay   time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

func NewWorker(queue *store.QueueStore, mailer *Mailer, logger *slog.Logger) *Worker {
	return &Worker{
		queue:       queue,
		mailer:      mailer,
		maxAttempts: 5,
		baseDelay:   500 * time.Millisecond,
		now:         time.Now,
		logger:      logger,
	}
}

// Drain attempts delivery of every pending entry once (with bounded inline
// backoff) and returns the number delivered.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	pending, err := w.queue.Pending()
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, entry := range pending {
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}

		msg := Message{
			To:       entry.To,
			Subject:  entry.Subject,
			TextBody: entry.TextBody,
			HTMLBody: entry.HTMLBody,
		}

		backoff := retry.WithMaxRetries(2, retry.NewExponential(w.baseDelay))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			if err := w.mailer.Send(ctx, msg); err != nil {
				return retry.RetryableError(err)
			}
			return nil
		})
		if err == nil {
			if err := w.queue.Delete(entry.ID); err != nil {
				w.logger.Error("dequeue delivered notification", "id", entry.ID, "error", err)
			}
			delivered++
			continue
		}

		entry.Attempts++
		entry.LastError = err.Error()
		if entry.Attempts >= w.maxAttempts {
			dead := w.now().UTC()
			entry.DeadAt = &dead
			w.logger.Error("notification dead-lettered", "id", entry.ID, "to", entry.To, "attempts", entry.Attempts)
		} else {
			w.logger.Warn("notification delivery failed, will retry", "id", entry.ID, "attempts", entry.Attempts, "error", err)
		}
		if err := w.queue.Put(entry); err != nil {
			w.logger.Error("update queued notification", "id", entry.ID, "error", err)
		}
	}
	return delivered, nil
}
