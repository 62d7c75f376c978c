package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hugh/serviexpress/internal/forms"
	"github.com/hugh/serviexpress/internal/web"
)

// SamplePDF is the smallest document mimetype recognises as a PDF.
var SamplePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// LoadRenderer parses the embedded templates or fails the test.
func LoadRenderer(t *testing.T) *web.Renderer {
	t.Helper()

	templates, err := web.LoadTemplates()
	if err != nil {
		t.Fatalf("failed to load templates: %v", err)
	}
	return web.NewRenderer(templates)
}

// FormRequest creates a urlencoded POST.
func FormRequest(t *testing.T, path string, values url.Values) *http.Request {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// Upload is a file part for MultipartRequest.
type Upload struct {
	Field       string
	Name        string
	ContentType string
	Data        []byte
}

// MultipartRequest creates a multipart POST, the way a browser submits the
// registration form.
func MultipartRequest(t *testing.T, path string, values map[string]string, uploads ...Upload) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, value := range values {
		if err := w.WriteField(name, value); err != nil {
			t.Fatalf("failed to write field %s: %v", name, err)
		}
	}
	for _, u := range uploads {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+u.Field+`"; filename="`+u.Name+`"`)
		if u.ContentType != "" {
			h.Set("Content-Type", u.ContentType)
		}
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatalf("failed to create part %s: %v", u.Field, err)
		}
		if _, err := part.Write(u.Data); err != nil {
			t.Fatalf("failed to write part %s: %v", u.Field, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

// ValidRegistration returns form values that pass validation.
func ValidRegistration() map[string]string {
	return map[string]string{
		"name":                  "Ana Pérez",
		"email":                 "ana@example.com",
		"phone":                 "5551234",
		"password":              "secreto1",
		"password_confirmation": "secreto1",
	}
}

// RecordingSubmitter records every payload it receives and returns Err.
type RecordingSubmitter struct {
	mu            sync.Mutex
	Err           error
	Logins        []forms.LoginPayload
	Registrations []forms.RegistrationPayload
}

func (s *RecordingSubmitter) SubmitLogin(ctx context.Context, p forms.LoginPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Logins = append(s.Logins, p)
	return s.Err
}

func (s *RecordingSubmitter) SubmitRegistration(ctx context.Context, p forms.RegistrationPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Registrations = append(s.Registrations, p)
	return s.Err
}

// Calls returns how many payloads of either kind were received.
func (s *RecordingSubmitter) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Logins) + len(s.Registrations)
}

// AssertStatus checks if the response has the expected status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// TestContext creates a context with a timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}
