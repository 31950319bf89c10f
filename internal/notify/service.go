package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mgriffe/keepsake/internal/model"
	"github.com/mgriffe/keepsake/internal/store"
)

// Service is the default Notifier: immediate sends go through the mailer,
// queued messages land in the durable KV-backed queue.
type Service struct {
	mailer *Mailer
	queue  *store.QueueStore
	now    func() time.Time
	logger *slog.Logger
}

func NewService(mailer *Mailer, queue *store.QueueStore, logger *slog.Logger) *Service {
	return &Service{
		mailer: mailer,
		queue:  queue,
		now:    time.Now,
		logger: logger,
	}
}

func (s *Service) Send(ctx context.Context, msg Message) error {
	return s.mailer.Send(ctx, msg)
}

func (s *Service) Queue(msg Message) error {
	entry := &model.QueuedNotification{
		ID:       uuid.NewString(),
		To:       msg.To,
		Subject:  msg.Subject,
		TextBody: msg.TextBody,
		HTMLBody: msg.HTMLBody,
		QueuedAt: s.now().UTC(),
	}
	if err := s.queue.Put(entry); err != nil {
		return fmt.Errorf("queue notification: %w", err)
	}
	s.logger.Info("notification queued for retry", "to", msg.To, "subject", msg.Subject)
	return nil
}
