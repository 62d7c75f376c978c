package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/hugh/serviexpress/internal/api/dto"
	"github.com/hugh/serviexpress/internal/api/middleware"
	"github.com/hugh/serviexpress/internal/api/validation"
	"github.com/hugh/serviexpress/internal/forms"
	"github.com/hugh/serviexpress/internal/web"
)

// Messages returned to JSON clients and on the error page.
const (
	MsgSignedIn      = "Sesión iniciada"
	MsgValidation    = "Validation failed"
	MsgNotFound      = "Página no encontrada"
	MsgTooLarge      = "El archivo supera el tamaño permitido"
	MsgBadRequest    = "Solicitud inválida"
	MsgInternalError = "Ocurrió un error inesperado"
)

const (
	statusRegistered = "registered"
	registeredRoute  = "/?status=" + statusRegistered
	roleURLParam     = "type"
	maxFormMemory    = 32 << 20
)

// PageHandler serves the landing, login and registration pages. Every POST
// builds a fresh form, so no form state outlives its request.
type PageHandler struct {
	renderer  *web.Renderer
	submitter forms.Submitter
	csrf      *middleware.CSRFStore
	logger    *slog.Logger
}

func NewPageHandler(renderer *web.Renderer, submitter forms.Submitter, csrf *middleware.CSRFStore, logger *slog.Logger) *PageHandler {
	return &PageHandler{
		renderer:  renderer,
		submitter: submitter,
		csrf:      csrf,
		logger:    logger,
	}
}

func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	home := web.NewHomeView(r.URL.Query().Get("status") == statusRegistered)
	h.render(w, r, http.StatusOK, web.PageHome, web.Page{
		Title: "ServiExpress",
		Home:  &home,
	})
}

func (h *PageHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	view := web.LoginView(forms.LoginInput{}, nil, false)
	h.renderForm(w, r, http.StatusOK, web.PageLogin, view)
}

func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		h.formError(w, r, err)
		return
	}

	form := forms.NewLoginForm()
	if err := bindFields(r, form, forms.LoginFields()); err != nil {
		h.bindError(w, r, err)
		return
	}

	outcome, err := form.Submit(r.Context(), h.submitter)
	if outcome != forms.OutcomeSubmitted {
		view := web.LoginView(form.Values(), form.Errors(), form.Loading())
		h.rejected(w, r, web.PageLogin, outcome, err, form, view)
		return
	}

	h.logger.Info("login submitted", "request_id", requestID(r))
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: MsgSignedIn})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// RegisterRedirect sends /register to the landing page, where the role is chosen.
func (h *PageHandler) RegisterRedirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *PageHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	role, ok := h.role(w, r)
	if !ok {
		return
	}
	view := web.RegisterView(forms.RegisterInput{}, nil, false, role)
	h.renderForm(w, r, http.StatusOK, web.PageRegister, view)
}

func (h *PageHandler) Register(w http.ResponseWriter, r *http.Request) {
	role, ok := h.role(w, r)
	if !ok {
		return
	}
	if err := parseForm(r); err != nil {
		h.formError(w, r, err)
		return
	}

	form := forms.NewRegisterForm(role)
	if err := bindFields(r, form, forms.RegisterTextFields()); err != nil {
		h.bindError(w, r, err)
		return
	}

	file, err := readUpload(r, string(forms.FieldCriminalFile))
	if err != nil {
		h.formError(w, r, err)
		return
	}
	if file != nil {
		form.SelectFile(file)
	}

	outcome, err := form.Submit(r.Context(), h.submitter)
	if outcome != forms.OutcomeSubmitted {
		view := web.RegisterView(form.Values(), form.Errors(), form.Loading(), role)
		h.rejected(w, r, web.PageRegister, outcome, err, form, view)
		return
	}

	h.logger.Info("registration submitted", "role", role.String(), "request_id", requestID(r))
	if wantsJSON(r) {
		writeJSON(w, http.StatusCreated, dto.SuccessResponse{Message: web.MsgRegistered})
		return
	}
	http.Redirect(w, r, registeredRoute, http.StatusSeeOther)
}

// NotFound renders the error page for unknown routes.
func (h *PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.renderError(w, r, http.StatusNotFound, MsgNotFound)
}

func (h *PageHandler) role(w http.ResponseWriter, r *http.Request) (forms.Role, bool) {
	role, err := forms.ParseRole(chi.URLParam(r, roleURLParam))
	if err != nil {
		h.NotFound(w, r)
		return "", false
	}
	return role, true
}

// formState is the part of a submitted form needed to answer a rejected POST.
type formState interface {
	Errors() forms.FieldErrors
	Failure() string
}

// rejected answers a submit that did not go through. Invalid input and
// backend rejections are 422; any other handoff failure is 502.
func (h *PageHandler) rejected(w http.ResponseWriter, r *http.Request, page string, outcome forms.Outcome, err error, form formState, view web.FormView) {
	status := http.StatusUnprocessableEntity
	switch outcome {
	case forms.OutcomeInvalid:
		h.logger.Debug("form invalid", "page", page, "fields", len(form.Errors()))
	case forms.OutcomeFailed:
		var rejected *forms.RejectedError
		if !errors.As(err, &rejected) {
			status = http.StatusBadGateway
		}
		h.logger.Warn("submit failed",
			"page", page,
			"status", status,
			"error", err,
			"request_id", requestID(r),
		)
	default:
		h.logger.Error("submit did not run", "page", page, "error", err)
		h.renderError(w, r, http.StatusInternalServerError, MsgInternalError)
		return
	}

	if msg := form.Failure(); msg != "" {
		view.Failure = msg
	}

	if wantsJSON(r) {
		msg := view.Failure
		if msg == "" {
			msg = MsgValidation
		}
		writeJSON(w, status, dto.ErrorResponse{Error: msg, Details: details(form.Errors())})
		return
	}
	h.renderForm(w, r, status, page, view)
}

func (h *PageHandler) formError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.respondError(w, r, http.StatusRequestEntityTooLarge, MsgTooLarge)
		return
	}
	h.logger.Debug("unreadable form", "error", err)
	h.respondError(w, r, http.StatusBadRequest, MsgBadRequest)
}

func (h *PageHandler) respondError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if wantsJSON(r) {
		writeJSON(w, status, dto.ErrorResponse{Error: msg})
		return
	}
	h.renderError(w, r, status, msg)
}

func (h *PageHandler) renderForm(w http.ResponseWriter, r *http.Request, status int, page string, view web.FormView) {
	token := middleware.GetCSRFToken(r, h.csrf)
	view.CSRFToken = token
	h.render(w, r, status, page, web.Page{
		Title:     view.Title,
		CSRFToken: token,
		Form:      &view,
	})
}

func (h *PageHandler) renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.render(w, r, status, web.PageError, web.Page{
		Title:   http.StatusText(status),
		Status:  status,
		Message: msg,
	})
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, page string, data web.Page) {
	if err := h.renderer.Render(w, status, page, data); err != nil {
		h.logger.Error("render failed", "page", page, "error", err, "request_id", requestID(r))
	}
}

// parseForm accepts urlencoded and multipart bodies. The CSRF middleware may
// already have parsed the body, in which case this is a no-op.
func parseForm(r *http.Request) error {
	err := r.ParseMultipartForm(maxFormMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		return r.ParseForm()
	}
	return err
}

// fieldSetter is the update side of a form.
type fieldSetter interface {
	Update(field forms.Field, value string) error
}

// bindFields copies posted values into the form exactly as sent. Length and
// content rules belong to the form's validation.
func bindFields(r *http.Request, form fieldSetter, fields []forms.Field) error {
	for _, field := range fields {
		if err := form.Update(field, r.PostFormValue(string(field))); err != nil {
			return fmt.Errorf("binding %s: %w", field, err)
		}
	}
	return nil
}

// bindError means the handler and the form disagree on the field list.
func (h *PageHandler) bindError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("form binding failed", "error", err, "request_id", requestID(r))
	h.respondError(w, r, http.StatusInternalServerError, MsgInternalError)
}

// readUpload returns the first file posted under name, or nil when the field
// is absent or empty.
func readUpload(r *http.Request, name string) (*forms.File, error) {
	file, header, err := r.FormFile(name)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	return &forms.File{
		Name:        validation.CleanField(filepath.Base(header.Filename)),
		ContentType: validation.DetectContentType(header.Header.Get("Content-Type"), data),
		Size:        int64(len(data)),
		Data:        data,
	}, nil
}

func details(errs forms.FieldErrors) map[string]string {
	if errs.Empty() {
		return nil
	}
	return errs.Strings()
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func requestID(r *http.Request) string {
	return chimiddleware.GetReqID(r.Context())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
