package web

import "github.com/hugh/serviexpress/internal/forms"

// Submit button labels.
const (
	LoginLabel           = "Entrar"
	LoginLoadingLabel    = "Ingresando..."
	RegisterLabel        = "Registrarse"
	RegisterLoadingLabel = "Registrando..."
)

// FieldView is one labelled input with its current value and error.
type FieldView struct {
	Name        string
	Label       string
	Type        string
	Value       string
	Error       string
	Placeholder string
}

// UploadView is the document picker shown to specialists.
type UploadView struct {
	Name     string
	Title    string
	Hint     string
	Accept   string
	FileName string
	Error    string
}

// FormView is everything a form template needs. Failure and CSRFToken are
// filled in by the handler.
type FormView struct {
	Title       string
	Subtitle    string
	Action      string
	Fields      []FieldView
	Upload      *UploadView
	SubmitLabel string
	Disabled    bool
	Failure     string
	CSRFToken   string
}

// Multipart reports whether the form must be posted as multipart/form-data.
func (v FormView) Multipart() bool {
	return v.Upload != nil
}

func LoginView(values forms.LoginInput, errs forms.FieldErrors, loading bool) FormView {
	label := LoginLabel
	if loading {
		label = LoginLoadingLabel
	}

	return FormView{
		Title:    "Iniciar sesión",
		Subtitle: "Accede a tu cuenta",
		Action:   "/login",
		Fields: []FieldView{
			{Name: string(forms.FieldEmail), Label: "Email", Type: "email", Value: values.Email, Error: errs.Get(forms.FieldEmail), Placeholder: "correo@ejemplo.com"},
			{Name: string(forms.FieldPassword), Label: "Contraseña", Type: "password", Value: values.Password, Error: errs.Get(forms.FieldPassword), Placeholder: "••••••••"},
		},
		SubmitLabel: label,
		Disabled:    loading,
	}
}

func RegisterView(values forms.RegisterInput, errs forms.FieldErrors, loading bool, role forms.Role) FormView {
	label := RegisterLabel
	if loading {
		label = RegisterLoadingLabel
	}

	v := FormView{
		Title:  "Registro " + role.Label(),
		Action: "/register/" + role.String(),
		Fields: []FieldView{
			{Name: string(forms.FieldName), Label: "Nombre", Type: "text", Value: values.Name, Error: errs.Get(forms.FieldName)},
			{Name: string(forms.FieldEmail), Label: "Email", Type: "email", Value: values.Email, Error: errs.Get(forms.FieldEmail)},
			{Name: string(forms.FieldPhone), Label: "Teléfono", Type: "text", Value: values.Phone, Error: errs.Get(forms.FieldPhone)},
			{Name: string(forms.FieldPassword), Label: "Contraseña", Type: "password", Value: values.Password, Error: errs.Get(forms.FieldPassword)},
			{Name: string(forms.FieldPasswordConfirmation), Label: "Confirmar Contraseña", Type: "password", Value: values.PasswordConfirmation, Error: errs.Get(forms.FieldPasswordConfirmation)},
		},
		SubmitLabel: label,
		Disabled:    loading,
	}

	if role.RequiresCriminalRecord() {
		v.Upload = &UploadView{
			Name:   string(forms.FieldCriminalFile),
			Title:  "Sube tu archivo PDF",
			Hint:   "Arrastra o haz click para seleccionar",
			Accept: ".pdf",
			Error:  errs.Get(forms.FieldCriminalFile),
		}
		if values.CriminalFile != nil {
			v.Upload.FileName = values.CriminalFile.Name
		}
	} else if msg := errs.Get(forms.FieldCriminalFile); msg != "" {
		// Clients have no picker to show it under.
		v.Failure = msg
	}
	return v
}

// RoleLink is a landing page button.
type RoleLink struct {
	Label string
	Href  string
	Class string
}

// HomeView is the landing page.
type HomeView struct {
	Notice string
	Roles  []RoleLink
}

// MsgRegistered is shown on the landing page after a registration went through.
const MsgRegistered = "¡Registro enviado!"

func NewHomeView(registered bool) HomeView {
	v := HomeView{}
	for _, role := range forms.Roles {
		v.Roles = append(v.Roles, RoleLink{
			Label: "Registrarse como " + role.Label(),
			Href:  "/register/" + role.String(),
			Class: "role-" + role.String(),
		})
	}
	if registered {
		v.Notice = MsgRegistered
	}
	return v
}

// Page is the data passed to every template.
type Page struct {
	Title     string
	CSRFToken string
	Form      *FormView
	Home      *HomeView
	Status    int
	Message   string
}
