package handlers_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/hugh/serviexpress/internal/api/dto"
	"github.com/hugh/serviexpress/internal/api/handlers"
	"github.com/hugh/serviexpress/internal/api/middleware"
	"github.com/hugh/serviexpress/internal/forms"
	"github.com/hugh/serviexpress/internal/testutil"
	"github.com/hugh/serviexpress/internal/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupPageRouter(t *testing.T, submitter forms.Submitter) *chi.Mux {
	t.Helper()

	csrf := middleware.NewCSRFStore()
	t.Cleanup(csrf.Stop)

	handler := handlers.NewPageHandler(testutil.LoadRenderer(t), submitter, csrf, testutil.DiscardLogger())

	r := chi.NewRouter()
	r.Use(middleware.Visitor)
	r.Use(chimiddleware.RequestSize(2 << 10))
	r.Get("/", handler.Home)
	r.Get("/login", handler.LoginPage)
	r.Post("/login", handler.Login)
	r.Get("/register", handler.RegisterRedirect)
	r.Get("/register/{type}", handler.RegisterPage)
	r.Post("/register/{type}", handler.Register)
	r.NotFound(handler.NotFound)
	return r
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestPageHandler_Home(t *testing.T) {
	router := setupPageRouter(t, &testutil.RecordingSubmitter{})

	t.Run("landing", func(t *testing.T) {
		rr := serve(router, httptest.NewRequest(http.MethodGet, "/", nil))

		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Contains(t, rr.Body.String(), "Registrarse como Cliente")
		assert.Contains(t, rr.Body.String(), `href="/register/specialist"`)
		assert.NotContains(t, rr.Body.String(), web.MsgRegistered)
	})

	t.Run("after registration", func(t *testing.T) {
		rr := serve(router, httptest.NewRequest(http.MethodGet, "/?status=registered", nil))

		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Contains(t, rr.Body.String(), web.MsgRegistered)
	})

	t.Run("unknown route", func(t *testing.T) {
		rr := serve(router, httptest.NewRequest(http.MethodGet, "/nope", nil))

		testutil.AssertStatus(t, rr, http.StatusNotFound)
		assert.Contains(t, rr.Body.String(), handlers.MsgNotFound)
	})
}

func TestPageHandler_LoginPage(t *testing.T) {
	router := setupPageRouter(t, &testutil.RecordingSubmitter{})

	rr := serve(router, httptest.NewRequest(http.MethodGet, "/login", nil))

	testutil.AssertStatus(t, rr, http.StatusOK)
	body := rr.Body.String()
	assert.Contains(t, body, web.LoginLabel)
	assert.Contains(t, body, `name="csrf_token"`)
	assert.Contains(t, body, `href="/register"`)
	assert.NotContains(t, body, "field-error")
}

func TestPageHandler_Login(t *testing.T) {
	valid := url.Values{"email": {"ana@example.com"}, "password": {"x"}}

	tests := []struct {
		name        string
		values      url.Values
		json        bool
		err         error
		status      int
		contains    string
		submissions int
	}{
		{
			name:        "success redirects",
			values:      valid,
			status:      http.StatusSeeOther,
			submissions: 1,
		},
		{
			name:        "invalid email",
			values:      url.Values{"email": {"not-an-email"}, "password": {"x"}},
			status:      http.StatusUnprocessableEntity,
			contains:    forms.MsgLoginEmail,
			submissions: 0,
		},
		{
			name:        "missing password",
			values:      url.Values{"email": {"ana@example.com"}},
			status:      http.StatusUnprocessableEntity,
			contains:    forms.MsgLoginPassword,
			submissions: 0,
		},
		{
			name:        "backend unreachable",
			values:      valid,
			err:         errors.New("connection refused"),
			status:      http.StatusBadGateway,
			contains:    forms.MsgSubmitFailed,
			submissions: 1,
		},
		{
			name:        "credentials rejected",
			values:      valid,
			err:         &forms.RejectedError{Message: "Credenciales inválidas"},
			status:      http.StatusUnprocessableEntity,
			contains:    "Credenciales inválidas",
			submissions: 1,
		},
		{
			name:        "json success",
			values:      valid,
			json:        true,
			status:      http.StatusOK,
			contains:    handlers.MsgSignedIn,
			submissions: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			submitter := &testutil.RecordingSubmitter{Err: tt.err}
			router := setupPageRouter(t, submitter)

			req := testutil.FormRequest(t, "/login", tt.values)
			if tt.json {
				req.Header.Set("Accept", "application/json")
			}
			rr := serve(router, req)

			testutil.AssertStatus(t, rr, tt.status)
			if tt.contains != "" {
				assert.Contains(t, rr.Body.String(), tt.contains)
			}
			assert.Equal(t, tt.submissions, submitter.Calls())
		})
	}
}

func TestPageHandler_Login_RedirectTarget(t *testing.T) {
	submitter := &testutil.RecordingSubmitter{}
	router := setupPageRouter(t, submitter)

	rr := serve(router, testutil.FormRequest(t, "/login", url.Values{
		"email":    {"ana@example.com"},
		"password": {" secreto "},
	}))

	testutil.AssertStatus(t, rr, http.StatusSeeOther)
	assert.Equal(t, "/", rr.Header().Get("Location"))
	require.Len(t, submitter.Logins, 1)
	assert.Equal(t, " secreto ", submitter.Logins[0].Password)
}

func TestPageHandler_Login_JSONValidation(t *testing.T) {
	router := setupPageRouter(t, &testutil.RecordingSubmitter{})

	req := testutil.FormRequest(t, "/login", url.Values{"email": {"bad"}})
	req.Header.Set("Accept", "application/json")
	rr := serve(router, req)

	testutil.AssertStatus(t, rr, http.StatusUnprocessableEntity)
	var resp dto.ErrorResponse
	testutil.ParseJSONResponse(t, rr, &resp)
	assert.Equal(t, handlers.MsgValidation, resp.Error)
	assert.Equal(t, map[string]string{
		"email":    forms.MsgLoginEmail,
		"password": forms.MsgLoginPassword,
	}, resp.Details)
}

func TestPageHandler_RegisterPage(t *testing.T) {
	router := setupPageRouter(t, &testutil.RecordingSubmitter{})

	t.Run("bare register redirects home", func(t *testing.T) {
		rr := serve(router, httptest.NewRequest(http.MethodGet, "/register", nil))

		testutil.AssertStatus(t, rr, http.StatusSeeOther)
		assert.Equal(t, "/", rr.Header().Get("Location"))
	})

	t.Run("specialist has upload", func(t *testing.T) {
		rr := serve(router, httptest.NewRequest(http.MethodGet, "/register/specialist", nil))

		testutil.AssertStatus(t, rr, http.StatusOK)
		body := rr.Body.String()
		assert.Contains(t, body, "Registro Especialista")
		assert.Contains(t, body, "Sube tu archivo PDF")
		assert.Contains(t, body, `enctype="multipart/form-data"`)
	})

	t.Run("client has no upload", func(t *testing.T) {
		rr := serve(router, httptest.NewRequest(http.MethodGet, "/register/client", nil))

		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.Contains(t, rr.Body.String(), "Registro Cliente")
		assert.NotContains(t, rr.Body.String(), "Sube tu archivo PDF")
	})

	t.Run("unknown role", func(t *testing.T) {
		rr := serve(router, httptest.NewRequest(http.MethodGet, "/register/admin", nil))

		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})
}

func TestPageHandler_Register(t *testing.T) {
	pdf := testutil.Upload{Field: "criminalFile", Name: "antecedentes.pdf", ContentType: "application/pdf", Data: testutil.SamplePDF}

	tests := []struct {
		name     string
		role     string
		values   func() map[string]string
		uploads  []testutil.Upload
		status   int
		contains string
		location string
	}{
		{
			name:     "client success",
			role:     "client",
			values:   testutil.ValidRegistration,
			status:   http.StatusSeeOther,
			location: "/?status=registered",
		},
		{
			name:     "specialist success",
			role:     "specialist",
			values:   testutil.ValidRegistration,
			uploads:  []testutil.Upload{pdf},
			status:   http.StatusSeeOther,
			location: "/?status=registered",
		},
		{
			name:   "specialist pdf sent as octet-stream",
			role:   "specialist",
			values: testutil.ValidRegistration,
			uploads: []testutil.Upload{{
				Field: "criminalFile", Name: "scan.pdf", ContentType: "application/octet-stream", Data: testutil.SamplePDF,
			}},
			status:   http.StatusSeeOther,
			location: "/?status=registered",
		},
		{
			name:     "specialist without document",
			role:     "specialist",
			values:   testutil.ValidRegistration,
			status:   http.StatusUnprocessableEntity,
			contains: forms.MsgFileRequired,
		},
		{
			name:   "specialist with text file",
			role:   "specialist",
			values: testutil.ValidRegistration,
			uploads: []testutil.Upload{{
				Field: "criminalFile", Name: "notes.txt", ContentType: "text/plain", Data: []byte("hola"),
			}},
			status:   http.StatusUnprocessableEntity,
			contains: forms.MsgPDFOnly,
		},
		{
			name: "passwords differ",
			role: "client",
			values: func() map[string]string {
				v := testutil.ValidRegistration()
				v["password_confirmation"] = "otraclave"
				return v
			},
			status:   http.StatusUnprocessableEntity,
			contains: forms.MsgPasswordMismatch,
		},
		{
			name: "short name",
			role: "client",
			values: func() map[string]string {
				v := testutil.ValidRegistration()
				v["name"] = "A"
				return v
			},
			status:   http.StatusUnprocessableEntity,
			contains: forms.MsgName,
		},
		{
			name:   "unknown role",
			role:   "admin",
			values: testutil.ValidRegistration,
			status: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			submitter := &testutil.RecordingSubmitter{}
			router := setupPageRouter(t, submitter)

			rr := serve(router, testutil.MultipartRequest(t, "/register/"+tt.role, tt.values(), tt.uploads...))

			testutil.AssertStatus(t, rr, tt.status)
			if tt.contains != "" {
				assert.Contains(t, rr.Body.String(), tt.contains)
			}
			if tt.location != "" {
				assert.Equal(t, tt.location, rr.Header().Get("Location"))
				assert.Len(t, submitter.Registrations, 1)
			} else {
				assert.Empty(t, submitter.Registrations)
			}
		})
	}
}

func TestPageHandler_Register_Payload(t *testing.T) {
	submitter := &testutil.RecordingSubmitter{}
	router := setupPageRouter(t, submitter)

	rr := serve(router, testutil.MultipartRequest(t, "/register/specialist", testutil.ValidRegistration(), testutil.Upload{
		Field: "criminalFile", Name: "antecedentes.pdf", Data: testutil.SamplePDF,
	}))

	testutil.AssertStatus(t, rr, http.StatusSeeOther)
	require.Len(t, submitter.Registrations, 1)

	p := submitter.Registrations[0]
	assert.Equal(t, forms.RoleSpecialist, p.Role)
	assert.Equal(t, "Ana Pérez", p.Name)
	assert.Equal(t, "ana@example.com", p.Email)
	require.NotNil(t, p.Document)
	assert.Equal(t, "antecedentes.pdf", p.Document.Name)
	assert.Equal(t, "application/pdf", p.Document.ContentType)
	assert.Equal(t, testutil.SamplePDF, p.Document.Data)
}

func TestPageHandler_Register_ValidatesValuesAsPosted(t *testing.T) {
	long := strings.Repeat("a", forms.MaxLength)

	tests := []struct {
		name   string
		mutate func(v map[string]string)
		field  string
		want   string
	}{
		{
			name: "passwords differing past the length limit",
			mutate: func(v map[string]string) {
				v["password"] = long + "X"
				v["password_confirmation"] = long + "Y"
			},
			field: "password_confirmation",
			want:  forms.MsgPasswordMismatch,
		},
		{
			name:   "over-long name",
			mutate: func(v map[string]string) { v["name"] = long + "b" },
			field:  "name",
			want:   forms.MsgTooLong,
		},
		{
			name:   "control character in email",
			mutate: func(v map[string]string) { v["email"] = "ana\x01@example.com" },
			field:  "email",
			want:   forms.MsgEmail,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			submitter := &testutil.RecordingSubmitter{}
			router := setupPageRouter(t, submitter)

			values := testutil.ValidRegistration()
			tt.mutate(values)
			req := testutil.MultipartRequest(t, "/register/client", values)
			req.Header.Set("Accept", "application/json")
			rr := serve(router, req)

			testutil.AssertStatus(t, rr, http.StatusUnprocessableEntity)
			var resp dto.ErrorResponse
			testutil.ParseJSONResponse(t, rr, &resp)
			assert.Equal(t, tt.want, resp.Details[tt.field])
			assert.Zero(t, submitter.Calls())
		})
	}
}

func TestPageHandler_Register_ForwardsValuesUnchanged(t *testing.T) {
	submitter := &testutil.RecordingSubmitter{}
	router := setupPageRouter(t, submitter)

	values := testutil.ValidRegistration()
	values["name"] = "  Ana Pérez  "
	values["password"] = "\tsecreto1 "
	values["password_confirmation"] = "\tsecreto1 "
	rr := serve(router, testutil.MultipartRequest(t, "/register/client", values))

	testutil.AssertStatus(t, rr, http.StatusSeeOther)
	require.Len(t, submitter.Registrations, 1)
	assert.Equal(t, "  Ana Pérez  ", submitter.Registrations[0].Name)
	assert.Equal(t, "\tsecreto1 ", submitter.Registrations[0].Password)
}

func TestPageHandler_Register_ClientDropsDocument(t *testing.T) {
	submitter := &testutil.RecordingSubmitter{}
	router := setupPageRouter(t, submitter)

	rr := serve(router, testutil.MultipartRequest(t, "/register/client", testutil.ValidRegistration(), testutil.Upload{
		Field: "criminalFile", Name: "antecedentes.pdf", ContentType: "application/pdf", Data: testutil.SamplePDF,
	}))

	testutil.AssertStatus(t, rr, http.StatusSeeOther)
	require.Len(t, submitter.Registrations, 1)
	assert.Nil(t, submitter.Registrations[0].Document)
}

func TestPageHandler_Register_Failures(t *testing.T) {
	t.Run("backend down keeps values", func(t *testing.T) {
		submitter := &testutil.RecordingSubmitter{Err: errors.New("timeout")}
		router := setupPageRouter(t, submitter)

		rr := serve(router, testutil.MultipartRequest(t, "/register/client", testutil.ValidRegistration()))

		testutil.AssertStatus(t, rr, http.StatusBadGateway)
		body := rr.Body.String()
		assert.Contains(t, body, forms.MsgSubmitFailed)
		assert.Contains(t, body, `value="ana@example.com"`)
		assert.Contains(t, body, web.RegisterLabel)
		assert.NotContains(t, body, " disabled")
	})

	t.Run("backend rejects email", func(t *testing.T) {
		submitter := &testutil.RecordingSubmitter{Err: &forms.RejectedError{
			Message: "Revisa los datos",
			Fields:  forms.FieldErrors{forms.FieldEmail: "El email ya está registrado"},
		}}
		router := setupPageRouter(t, submitter)

		req := testutil.MultipartRequest(t, "/register/client", testutil.ValidRegistration())
		req.Header.Set("Accept", "application/json")
		rr := serve(router, req)

		testutil.AssertStatus(t, rr, http.StatusUnprocessableEntity)
		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "Revisa los datos", resp.Error)
		assert.Equal(t, map[string]string{"email": "El email ya está registrado"}, resp.Details)
	})

	t.Run("json created", func(t *testing.T) {
		router := setupPageRouter(t, &testutil.RecordingSubmitter{})

		req := testutil.MultipartRequest(t, "/register/client", testutil.ValidRegistration())
		req.Header.Set("Accept", "application/json")
		rr := serve(router, req)

		testutil.AssertStatus(t, rr, http.StatusCreated)
		var resp dto.SuccessResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, web.MsgRegistered, resp.Message)
	})
}

func TestPageHandler_Register_TooLarge(t *testing.T) {
	submitter := &testutil.RecordingSubmitter{}
	router := setupPageRouter(t, submitter)

	big := testutil.Upload{
		Field: "criminalFile", Name: "big.pdf", ContentType: "application/pdf",
		Data: []byte("%PDF-1.4\n" + strings.Repeat("0", 8<<10)),
	}
	rr := serve(router, testutil.MultipartRequest(t, "/register/specialist", testutil.ValidRegistration(), big))

	testutil.AssertStatus(t, rr, http.StatusRequestEntityTooLarge)
	assert.Contains(t, rr.Body.String(), handlers.MsgTooLarge)
	assert.Zero(t, submitter.Calls())
}
