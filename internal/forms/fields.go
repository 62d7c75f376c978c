package forms

import (
	"errors"
	"mime"
)

// Field names a form input. Values match the HTML input names.
type Field string

const (
	FieldName                 Field = "name"
	FieldEmail                Field = "email"
	FieldPhone                Field = "phone"
	FieldPassword             Field = "password"
	FieldPasswordConfirmation Field = "password_confirmation"
	FieldCriminalFile         Field = "criminalFile"
)

var ErrUnknownField = errors.New("unknown field")

var (
	loginFields    = []Field{FieldEmail, FieldPassword}
	registerFields = []Field{FieldName, FieldEmail, FieldPhone, FieldPassword, FieldPasswordConfirmation, FieldCriminalFile}
)

// LoginFields returns the text fields of the login form in display order.
func LoginFields() []Field {
	return append([]Field(nil), loginFields...)
}

// RegisterTextFields returns the text fields of the registration form in display order.
func RegisterTextFields() []Field {
	return append([]Field(nil), registerFields[:5]...)
}

func contains(fields []Field, f Field) bool {
	for _, x := range fields {
		if x == f {
			return true
		}
	}
	return false
}

// FieldErrors maps a field to the message shown beneath it. A missing key means
// the field is currently valid.
type FieldErrors map[Field]string

func (e FieldErrors) Get(f Field) string {
	return e[f]
}

func (e FieldErrors) Has(f Field) bool {
	_, ok := e[f]
	return ok
}

func (e FieldErrors) Empty() bool {
	return len(e) == 0
}

func (e FieldErrors) clone() FieldErrors {
	out := make(FieldErrors, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Strings returns the errors keyed by plain field name, for JSON responses.
func (e FieldErrors) Strings() map[string]string {
	out := make(map[string]string, len(e))
	for k, v := range e {
		out[string(k)] = v
	}
	return out
}

// File is an uploaded document held in memory for the lifetime of one submit.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Data        []byte
}

const pdfMediaType = "application/pdf"

// IsPDF checks the declared media type only; the file name is ignored.
func (f *File) IsPDF() bool {
	if f == nil {
		return false
	}
	mt, _, err := mime.ParseMediaType(f.ContentType)
	return err == nil && mt == pdfMediaType
}
