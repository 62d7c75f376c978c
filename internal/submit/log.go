// Package submit holds the forms.Submitter implementations selected by
// SUBMIT_MODE.
package submit

import (
	"context"
	"log/slog"

	"github.com/hugh/serviexpress/internal/forms"
)

// LogSubmitter accepts every payload and only logs it. Passwords and document
// contents are never written.
type LogSubmitter struct {
	logger *slog.Logger
}

func NewLogSubmitter(logger *slog.Logger) *LogSubmitter {
	return &LogSubmitter{logger: logger}
}

func (s *LogSubmitter) SubmitLogin(ctx context.Context, p forms.LoginPayload) error {
	s.logger.InfoContext(ctx, "login submitted", "email", p.Email)
	return nil
}

func (s *LogSubmitter) SubmitRegistration(ctx context.Context, p forms.RegistrationPayload) error {
	attrs := []any{
		"role", p.Role.String(),
		"name", p.Name,
		"email", p.Email,
		"phone", p.Phone,
	}
	if p.Document != nil {
		attrs = append(attrs, "document", p.Document.Name, "document_size", p.Document.Size)
	}
	s.logger.InfoContext(ctx, "registration submitted", attrs...)
	return nil
}
