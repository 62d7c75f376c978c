package forms

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"
)

// CriminalRecordPart is the multipart field that carries the specialist document.
const CriminalRecordPart = "criminal_record_file"

// LoginPayload is handed to the Submitter after a valid login submit.
type LoginPayload struct {
	Email    string
	Password string
}

// RegistrationPayload is handed to the Submitter after a valid registration
// submit. Document is only set for specialists.
type RegistrationPayload struct {
	Name                 string
	Email                string
	Phone                string
	Password             string
	PasswordConfirmation string
	Role                 Role
	Document             *File
}

func (p LoginPayload) WriteMultipart(w *multipart.Writer) error {
	if err := w.WriteField("email", p.Email); err != nil {
		return err
	}
	return w.WriteField("password", p.Password)
}

// WriteMultipart writes the registration fields followed by the document part.
func (p RegistrationPayload) WriteMultipart(w *multipart.Writer) error {
	fields := [][2]string{
		{"name", p.Name},
		{"email", p.Email},
		{"phone", p.Phone},
		{"password", p.Password},
		{"password_confirmation", p.PasswordConfirmation},
		{"role", p.Role.String()},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return fmt.Errorf("writing %s: %w", f[0], err)
		}
	}

	if p.Role != RoleSpecialist || p.Document == nil {
		return nil
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		CriminalRecordPart, escapeQuotes(p.Document.Name)))
	h.Set("Content-Type", pdfMediaType)

	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("creating document part: %w", err)
	}
	if _, err := part.Write(p.Document.Data); err != nil {
		return fmt.Errorf("writing document: %w", err)
	}
	return nil
}

type multipartWriter interface {
	WriteMultipart(w *multipart.Writer) error
}

// EncodeMultipart renders a payload as a complete multipart/form-data body and
// returns it with its content type.
func EncodeMultipart(p multipartWriter) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := p.WriteMultipart(w); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart writer: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
