package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/hugh/serviexpress/internal/forms"
)

// MsgInvalidCredentials is shown when the backend refuses a login.
const MsgInvalidCredentials = "Credenciales inválidas"

// maxErrorBody caps how much of a rejection body is read.
const maxErrorBody = 1 << 20

var ErrUnexpectedStatus = errors.New("unexpected backend status")

// backendFields maps backend field names onto form fields where they differ.
var backendFields = map[string]forms.Field{
	forms.CriminalRecordPart: forms.FieldCriminalFile,
}

type rejection struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

// Client posts payloads to the ServiExpress backend as multipart forms.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		logger: logger,
	}
}

func (c *Client) SubmitLogin(ctx context.Context, p forms.LoginPayload) error {
	body, contentType, err := forms.EncodeMultipart(p)
	if err != nil {
		return fmt.Errorf("encoding login: %w", err)
	}

	err = c.post(ctx, "/login", body, contentType)
	var status *statusError
	if errors.As(err, &status) && status.code == http.StatusUnauthorized {
		return &forms.RejectedError{Message: MsgInvalidCredentials}
	}
	return err
}

func (c *Client) SubmitRegistration(ctx context.Context, p forms.RegistrationPayload) error {
	body, contentType, err := forms.EncodeMultipart(p)
	if err != nil {
		return fmt.Errorf("encoding registration: %w", err)
	}
	return c.post(ctx, "/register", body, contentType)
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: %d", ErrUnexpectedStatus, e.code)
}

func (e *statusError) Unwrap() error {
	return ErrUnexpectedStatus
}

func (c *Client) post(ctx context.Context, path string, body []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting %s: %w", path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("backend responded",
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start).String(),
	)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return decodeRejection(resp.Body)
	default:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return &statusError{code: resp.StatusCode}
	}
}

// decodeRejection turns a validation response into a RejectedError. Only the
// first message per field is kept.
func decodeRejection(r io.Reader) error {
	var rej rejection
	if err := json.NewDecoder(io.LimitReader(r, maxErrorBody)).Decode(&rej); err != nil {
		return &forms.RejectedError{}
	}

	fields := make(forms.FieldErrors, len(rej.Errors))
	for name, msgs := range rej.Errors {
		if len(msgs) == 0 {
			continue
		}
		field, ok := backendFields[name]
		if !ok {
			field = forms.Field(name)
		}
		fields[field] = msgs[0]
	}
	return &forms.RejectedError{Message: rej.Message, Fields: fields}
}
