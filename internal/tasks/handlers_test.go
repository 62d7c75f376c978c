package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/serviexpress/internal/forms"
	"github.com/hugh/serviexpress/internal/storage"
	"github.com/hugh/serviexpress/pkg/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	err           error
	registrations []forms.RegistrationPayload
}

func (b *fakeBackend) SubmitLogin(ctx context.Context, p forms.LoginPayload) error {
	return b.err
}

func (b *fakeBackend) SubmitRegistration(ctx context.Context, p forms.RegistrationPayload) error {
	b.registrations = append(b.registrations, p)
	return b.err
}

type testSetup struct {
	handler   *Handler
	backend   *fakeBackend
	raw       *storage.MemoryStore
	documents *storage.SealedStore
	encryptor *crypto.Encryptor
}

func newTestSetup(t *testing.T) *testSetup {
	t.Helper()
	enc, err := crypto.NewEncryptor("")
	require.NoError(t, err)

	raw := storage.NewMemoryStore()
	docs := storage.NewSealedStore(raw, enc)
	backend := &fakeBackend{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &testSetup{
		handler:   NewHandler(logger, backend, docs, enc, 72*time.Hour),
		backend:   backend,
		raw:       raw,
		documents: docs,
		encryptor: enc,
	}
}

func specialistRegistration() forms.RegistrationPayload {
	return forms.RegistrationPayload{
		Name:                 "Ana María",
		Email:                "ana@example.com",
		Phone:                "5551234",
		Password:             "secret1",
		PasswordConfirmation: "secret1",
		Role:                 forms.RoleSpecialist,
		Document: &forms.File{
			Name:        "antecedentes.pdf",
			ContentType: "application/pdf",
			Size:        8,
			Data:        []byte("%PDF-1.4"),
		},
	}
}

// stage mimics the form server: document into the store, passwords sealed.
func (s *testSetup) stage(t *testing.T, p forms.RegistrationPayload) (*asynq.Task, string) {
	t.Helper()
	var key string
	if p.Document != nil {
		key = storage.NewDocumentKey()
		require.NoError(t, s.documents.Put(context.Background(), key, p.Document.Data, p.Document.ContentType))
	}
	sealed, err := SealRegistration(p, s.encryptor, key)
	require.NoError(t, err)
	task, err := NewDeliverRegistrationTask(sealed)
	require.NoError(t, err)
	return task, key
}

func TestSealRegistration_HidesPasswords(t *testing.T) {
	enc, err := crypto.NewEncryptor("")
	require.NoError(t, err)

	sealed, err := SealRegistration(specialistRegistration(), enc, "criminal-records/x.pdf.age")
	require.NoError(t, err)

	data, err := json.Marshal(sealed)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret1")
	assert.Equal(t, "antecedentes.pdf", sealed.DocumentName)
	assert.Equal(t, "specialist", sealed.Role)

	opened, err := sealed.Open(enc, []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, specialistRegistration(), opened)
}

func TestSealRegistration_NoDocumentWithoutKey(t *testing.T) {
	enc, err := crypto.NewEncryptor("")
	require.NoError(t, err)

	p := specialistRegistration()
	p.Role = forms.RoleClient
	sealed, err := SealRegistration(p, enc, "")
	require.NoError(t, err)
	assert.Empty(t, sealed.DocumentName)

	opened, err := sealed.Open(enc, nil)
	require.NoError(t, err)
	assert.Nil(t, opened.Document)
}

func TestOpen_UnknownRole(t *testing.T) {
	enc, err := crypto.NewEncryptor("")
	require.NoError(t, err)

	_, err = DeliverRegistrationPayload{Role: "admin"}.Open(enc, nil)
	assert.ErrorIs(t, err, forms.ErrUnknownRole)
}

func TestHandleDeliverRegistration_InvalidPayload(t *testing.T) {
	s := newTestSetup(t)

	err := s.handler.HandleDeliverRegistration(context.Background(), asynq.NewTask(TypeDeliverRegistration, []byte("invalid json")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal payload")
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleDeliverRegistration_Delivers(t *testing.T) {
	s := newTestSetup(t)
	task, key := s.stage(t, specialistRegistration())

	require.NoError(t, s.handler.HandleDeliverRegistration(context.Background(), task))

	require.Len(t, s.backend.registrations, 1)
	assert.Equal(t, specialistRegistration(), s.backend.registrations[0])

	_, err := s.raw.Get(context.Background(), key)
	assert.ErrorIs(t, err, storage.ErrNotFound, "document removed after delivery")
}

func TestHandleDeliverRegistration_TransientErrorKeepsDocument(t *testing.T) {
	s := newTestSetup(t)
	task, key := s.stage(t, specialistRegistration())
	s.backend.err = errors.New("connection refused")

	err := s.handler.HandleDeliverRegistration(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)

	_, err = s.raw.Get(context.Background(), key)
	assert.NoError(t, err, "document kept for the retry")
}

func TestHandleDeliverRegistration_RejectedSkipsRetry(t *testing.T) {
	s := newTestSetup(t)
	task, key := s.stage(t, specialistRegistration())
	s.backend.err = &forms.RejectedError{
		Message: "El email ya está registrado",
		Fields:  forms.FieldErrors{forms.FieldEmail: "El email ya está registrado"},
	}

	err := s.handler.HandleDeliverRegistration(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)

	_, err = s.raw.Get(context.Background(), key)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestHandleDeliverRegistration_MissingDocument(t *testing.T) {
	s := newTestSetup(t)
	task, key := s.stage(t, specialistRegistration())
	require.NoError(t, s.raw.Delete(context.Background(), key))

	err := s.handler.HandleDeliverRegistration(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Empty(t, s.backend.registrations)
}

func TestHandleDeliverRegistration_WrongKey(t *testing.T) {
	s := newTestSetup(t)
	p := specialistRegistration()
	p.Document = nil
	p.Role = forms.RoleClient

	other, err := crypto.NewEncryptor("")
	require.NoError(t, err)
	sealed, err := SealRegistration(p, other, "")
	require.NoError(t, err)
	task, err := NewDeliverRegistrationTask(sealed)
	require.NoError(t, err)

	err = s.handler.HandleDeliverRegistration(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, s.backend.registrations)
}

// datedStore reports fixed modification times so the sweep can be tested
// without waiting.
type datedStore struct {
	*storage.MemoryStore
	modified map[string]time.Time
}

func (d *datedStore) List(ctx context.Context, prefix string) ([]storage.Object, error) {
	objs, err := d.MemoryStore.List(ctx, prefix)
	for i := range objs {
		objs[i].LastModified = d.modified[objs[i].Key]
	}
	return objs, err
}

func TestHandleSweepDocuments(t *testing.T) {
	s := newTestSetup(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 10, 3, 0, 0, 0, time.UTC)

	store := &datedStore{
		MemoryStore: storage.NewMemoryStore(),
		modified: map[string]time.Time{
			storage.DocumentPrefix + "old.pdf.age":   now.Add(-96 * time.Hour),
			storage.DocumentPrefix + "fresh.pdf.age": now.Add(-24 * time.Hour),
		},
	}
	require.NoError(t, store.Put(ctx, storage.DocumentPrefix+"old.pdf.age", []byte("a"), ""))
	require.NoError(t, store.Put(ctx, storage.DocumentPrefix+"fresh.pdf.age", []byte("b"), ""))
	require.NoError(t, store.Put(ctx, "unrelated/keep", []byte("c"), ""))

	s.handler.documents = store
	s.handler.now = func() time.Time { return now }

	require.NoError(t, s.handler.HandleSweepDocuments(ctx, NewSweepDocumentsTask()))

	remaining, err := store.MemoryStore.List(ctx, "")
	require.NoError(t, err)
	var keys []string
	for _, o := range remaining {
		keys = append(keys, o.Key)
	}
	assert.Equal(t, []string{storage.DocumentPrefix + "fresh.pdf.age", "unrelated/keep"}, keys)
}

func TestRegisterHandlers(t *testing.T) {
	s := newTestSetup(t)
	mux := asynq.NewServeMux()
	s.handler.RegisterHandlers(mux)

	task := NewSweepDocumentsTask()
	h, pattern := mux.Handler(task)
	assert.NotNil(t, h)
	assert.Equal(t, TypeSweepDocuments, pattern)
}
