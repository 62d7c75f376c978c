package forms

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Messages shown to users. The product copy is Spanish.
const (
	MsgLoginEmail           = "Email inválido"
	MsgLoginPassword        = "La contraseña es requerida"
	MsgName                 = "El nombre es requerido y debe tener al menos 2 caracteres"
	MsgEmail                = "Email inválido"
	MsgPhone                = "Teléfono es requerido"
	MsgPassword             = "La contraseña debe tener al menos 6 caracteres"
	MsgPasswordConfirmation = "La contraseña de confirmación es requerida"
	MsgPasswordMismatch     = "Las contraseñas no coinciden"
	MsgPDFOnly              = "Solo se permite PDF"
	MsgFileRequired         = "Archivo es requerido"
	MsgTooLong              = "Máximo 256 caracteres"
)

// MaxLength bounds every text field, in characters. It matches the max=256
// rules below.
const MaxLength = 256

// LoginInput is the login form content.
type LoginInput struct {
	Email    string `form:"email" validate:"required,email,max=256"`
	Password string `form:"password" validate:"required,max=256"`
}

// RegisterInput is the registration form content.
type RegisterInput struct {
	Name                 string `form:"name" validate:"min=2,max=256"`
	Email                string `form:"email" validate:"required,email,max=256"`
	Phone                string `form:"phone" validate:"min=5,max=256"`
	Password             string `form:"password" validate:"min=6,max=256"`
	PasswordConfirmation string `form:"password_confirmation" validate:"min=6,max=256"`
	CriminalFile         *File  `form:"criminalFile" validate:"-"`
}

// Issue is a single validation failure.
type Issue struct {
	Field   Field
	Message string
}

// Result is the outcome of validating an input. Issues keep the order in which
// rules were evaluated.
type Result[T any] struct {
	Value  T
	Issues []Issue
}

func (r Result[T]) OK() bool {
	return len(r.Issues) == 0
}

// Errors folds the issues into a FieldErrors map. A later issue for the same
// field replaces an earlier one.
func (r Result[T]) Errors() FieldErrors {
	out := make(FieldErrors, len(r.Issues))
	for _, issue := range r.Issues {
		out[issue.Field] = issue.Message
	}
	return out
}

var (
	validate = newValidator()

	loginMessages = map[Field]string{
		FieldEmail:    MsgLoginEmail,
		FieldPassword: MsgLoginPassword,
	}

	registerMessages = map[Field]string{
		FieldName:                 MsgName,
		FieldEmail:                MsgEmail,
		FieldPhone:                MsgPhone,
		FieldPassword:             MsgPassword,
		FieldPasswordConfirmation: MsgPasswordConfirmation,
	}
)

func newValidator() *validator.Validate {
	v := validator.New()

	// Report fields by their form input name.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	return v
}

// ValidateLogin checks a login input.
func ValidateLogin(in LoginInput) Result[LoginInput] {
	return Result[LoginInput]{
		Value:  in,
		Issues: structIssues(in, loginMessages),
	}
}

// ValidateRegister checks a registration input. The role is not known here: a
// missing document is accepted, a present one must be a PDF.
func ValidateRegister(in RegisterInput) Result[RegisterInput] {
	issues := structIssues(in, registerMessages)

	if in.CriminalFile != nil && !in.CriminalFile.IsPDF() {
		issues = append(issues, Issue{Field: FieldCriminalFile, Message: MsgPDFOnly})
	}

	// Runs even when the length rules failed, so the mismatch message wins on
	// the confirmation field.
	if in.Password != in.PasswordConfirmation {
		issues = append(issues, Issue{Field: FieldPasswordConfirmation, Message: MsgPasswordMismatch})
	}

	return Result[RegisterInput]{Value: in, Issues: issues}
}

func structIssues(s any, messages map[Field]string) []Issue {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	// Struct values only ever yield ValidationErrors.
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}

	issues := make([]Issue, 0, len(ve))
	for _, fe := range ve {
		field := Field(fe.Field())
		msg, ok := messages[field]
		switch {
		case fe.Tag() == "max":
			msg = MsgTooLong
		case !ok:
			msg = fe.Error()
		}
		issues = append(issues, Issue{Field: field, Message: msg})
	}
	return issues
}
