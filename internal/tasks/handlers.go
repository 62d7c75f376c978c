package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/serviexpress/internal/forms"
	"github.com/hugh/serviexpress/internal/storage"
	"github.com/hugh/serviexpress/pkg/crypto"
)

type Handler struct {
	logger    *slog.Logger
	backend   forms.Submitter
	documents storage.DocumentStore
	encryptor *crypto.Encryptor
	retention time.Duration
	now       func() time.Time
}

// NewHandler wires the worker. documents must decrypt what the server staged,
// so it is normally a storage.SealedStore sharing encryptor's key.
func NewHandler(logger *slog.Logger, backend forms.Submitter, documents storage.DocumentStore, encryptor *crypto.Encryptor, retention time.Duration) *Handler {
	return &Handler{
		logger:    logger,
		backend:   backend,
		documents: documents,
		encryptor: encryptor,
		retention: retention,
		now:       time.Now,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeDeliverRegistration, h.HandleDeliverRegistration)
	mux.HandleFunc(TypeSweepDocuments, h.HandleSweepDocuments)
}

func (h *Handler) HandleDeliverRegistration(ctx context.Context, t *asynq.Task) error {
	var payload DeliverRegistrationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	logger := h.logger.With(
		"submission_id", payload.SubmissionID,
		"role", payload.Role,
	)
	logger.Info("delivering registration", "has_document", payload.DocumentKey != "")

	var doc []byte
	if payload.DocumentKey != "" {
		var err error
		doc, err = h.documents.Get(ctx, payload.DocumentKey)
		if errors.Is(err, storage.ErrNotFound) {
			logger.Error("staged document is gone", "key", payload.DocumentKey)
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		if err != nil {
			return fmt.Errorf("loading document: %w", err)
		}
	}

	registration, err := payload.Open(h.encryptor, doc)
	if err != nil {
		// A payload sealed with another key never opens, retrying will not help.
		logger.Error("failed to open payload", "error", err)
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	err = h.backend.SubmitRegistration(ctx, registration)

	var rejected *forms.RejectedError
	if errors.As(err, &rejected) {
		logger.Warn("backend rejected registration", "message", rejected.Message, "fields", len(rejected.Fields))
		h.discard(ctx, logger, payload.DocumentKey)
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	if err != nil {
		logger.Warn("registration delivery failed, will retry", "error", err)
		return err
	}

	h.discard(ctx, logger, payload.DocumentKey)
	logger.Info("registration delivered",
		"queued_for", h.now().Sub(payload.SubmittedAt).Round(time.Millisecond).String(),
	)
	return nil
}

func (h *Handler) HandleSweepDocuments(ctx context.Context, t *asynq.Task) error {
	objects, err := h.documents.List(ctx, storage.DocumentPrefix)
	if err != nil {
		return fmt.Errorf("listing staged documents: %w", err)
	}

	expired := storage.Expired(objects, h.now().Add(-h.retention))
	removed := 0
	for _, obj := range expired {
		if err := h.documents.Delete(ctx, obj.Key); err != nil {
			h.logger.Error("failed to remove expired document", "key", obj.Key, "error", err)
			continue
		}
		removed++
	}

	h.logger.Info("swept staged documents",
		"staged", len(objects),
		"expired", len(expired),
		"removed", removed,
	)
	return nil
}

func (h *Handler) discard(ctx context.Context, logger *slog.Logger, key string) {
	if key == "" {
		return
	}
	if err := h.documents.Delete(ctx, key); err != nil {
		logger.Error("failed to remove staged document", "key", key, "error", err)
	}
}
