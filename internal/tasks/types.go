package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/serviexpress/internal/forms"
	"github.com/hugh/serviexpress/pkg/crypto"
)

// Task type names
const (
	TypeDeliverRegistration = "registration:deliver"
	TypeSweepDocuments      = "documents:sweep"
)

// DeliverRegistrationPayload is a registration waiting for the backend.
// Passwords travel sealed; the document stays in storage under DocumentKey.
type DeliverRegistrationPayload struct {
	SubmissionID         uuid.UUID `json:"submission_id"`
	Name                 string    `json:"name"`
	Email                string    `json:"email"`
	Phone                string    `json:"phone"`
	Role                 string    `json:"role"`
	Password             string    `json:"password"`
	PasswordConfirmation string    `json:"password_confirmation"`
	DocumentKey          string    `json:"document_key,omitempty"`
	DocumentName         string    `json:"document_name,omitempty"`
	SubmittedAt          time.Time `json:"submitted_at"`
}

// SealRegistration builds a task payload from a validated registration. The
// caller has already staged the document under documentKey, if there is one.
func SealRegistration(p forms.RegistrationPayload, enc *crypto.Encryptor, documentKey string) (DeliverRegistrationPayload, error) {
	password, err := enc.EncryptString(p.Password)
	if err != nil {
		return DeliverRegistrationPayload{}, fmt.Errorf("sealing password: %w", err)
	}
	confirmation, err := enc.EncryptString(p.PasswordConfirmation)
	if err != nil {
		return DeliverRegistrationPayload{}, fmt.Errorf("sealing password confirmation: %w", err)
	}

	out := DeliverRegistrationPayload{
		SubmissionID:         uuid.New(),
		Name:                 p.Name,
		Email:                p.Email,
		Phone:                p.Phone,
		Role:                 p.Role.String(),
		Password:             password,
		PasswordConfirmation: confirmation,
		DocumentKey:          documentKey,
		SubmittedAt:          time.Now().UTC(),
	}
	if documentKey != "" && p.Document != nil {
		out.DocumentName = p.Document.Name
	}
	return out, nil
}

// Open reverses SealRegistration. doc is the staged document, nil when none
// was staged.
func (p DeliverRegistrationPayload) Open(enc *crypto.Encryptor, doc []byte) (forms.RegistrationPayload, error) {
	role, err := forms.ParseRole(p.Role)
	if err != nil {
		return forms.RegistrationPayload{}, err
	}
	password, err := enc.DecryptString(p.Password)
	if err != nil {
		return forms.RegistrationPayload{}, fmt.Errorf("opening password: %w", err)
	}
	confirmation, err := enc.DecryptString(p.PasswordConfirmation)
	if err != nil {
		return forms.RegistrationPayload{}, fmt.Errorf("opening password confirmation: %w", err)
	}

	out := forms.RegistrationPayload{
		Name:                 p.Name,
		Email:                p.Email,
		Phone:                p.Phone,
		Password:             password,
		PasswordConfirmation: confirmation,
		Role:                 role,
	}
	if doc != nil {
		out.Document = &forms.File{
			Name:        p.DocumentName,
			ContentType: "application/pdf",
			Size:        int64(len(doc)),
			Data:        doc,
		}
	}
	return out, nil
}

func NewDeliverRegistrationTask(payload DeliverRegistrationPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeDeliverRegistration, data), nil
}

// NewSweepDocumentsTask has no payload; a sweep covers every staged document.
func NewSweepDocumentsTask() *asynq.Task {
	return asynq.NewTask(TypeSweepDocuments, nil)
}
