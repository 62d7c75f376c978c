package submit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/hugh/serviexpress/internal/forms"
	"github.com/hugh/serviexpress/internal/storage"
	"github.com/hugh/serviexpress/internal/tasks"
	"github.com/hugh/serviexpress/pkg/crypto"
	"github.com/hugh/serviexpress/pkg/queue"
)

// maxDeliveryAttempts bounds how long a registration keeps retrying against an
// unavailable backend.
const maxDeliveryAttempts = 10

// QueueSubmitter hands registrations to the worker. Logins need an answer
// while the user waits, so they go straight to the backend.
type QueueSubmitter struct {
	queue     tasks.Enqueuer
	documents storage.DocumentStore
	encryptor *crypto.Encryptor
	login     forms.Submitter
	logger    *slog.Logger
}

func NewQueueSubmitter(q tasks.Enqueuer, documents storage.DocumentStore, encryptor *crypto.Encryptor, login forms.Submitter, logger *slog.Logger) *QueueSubmitter {
	return &QueueSubmitter{
		queue:     q,
		documents: documents,
		encryptor: encryptor,
		login:     login,
		logger:    logger,
	}
}

func (s *QueueSubmitter) SubmitLogin(ctx context.Context, p forms.LoginPayload) error {
	return s.login.SubmitLogin(ctx, p)
}

func (s *QueueSubmitter) SubmitRegistration(ctx context.Context, p forms.RegistrationPayload) error {
	var key string
	if p.Document != nil {
		key = storage.NewDocumentKey()
		if err := s.documents.Put(ctx, key, p.Document.Data, p.Document.ContentType); err != nil {
			return fmt.Errorf("staging document: %w", err)
		}
	}

	payload, err := tasks.SealRegistration(p, s.encryptor, key)
	if err != nil {
		s.unstage(ctx, key)
		return err
	}

	task, err := tasks.NewDeliverRegistrationTask(payload)
	if err != nil {
		s.unstage(ctx, key)
		return fmt.Errorf("creating task: %w", err)
	}

	info, err := s.queue.EnqueueContext(ctx, task,
		asynq.Queue(queue.QueueRegistrations),
		asynq.MaxRetry(maxDeliveryAttempts),
	)
	if err != nil {
		s.unstage(ctx, key)
		return fmt.Errorf("enqueue registration: %w", err)
	}

	s.logger.InfoContext(ctx, "registration queued",
		"task_id", info.ID,
		"submission_id", payload.SubmissionID,
		"role", payload.Role,
	)
	return nil
}

// unstage removes a document whose task was never queued.
func (s *QueueSubmitter) unstage(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.documents.Delete(ctx, key); err != nil {
		s.logger.Error("failed to remove unqueued document", "key", key, "error", err)
	}
}
