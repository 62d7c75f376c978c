package forms

import (
	"context"
	"fmt"
)

// LoginForm tracks one login page visit.
type LoginForm struct {
	controller
	values LoginInput
}

func NewLoginForm() *LoginForm {
	f := &LoginForm{}
	f.init(loginFields)
	return f
}

// Update sets a field and clears its error. Nothing is revalidated until Submit.
func (f *LoginForm) Update(field Field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch field {
	case FieldEmail:
		f.values.Email = value
	case FieldPassword:
		f.values.Password = value
	default:
		return fmt.Errorf("%w: %q on login form", ErrUnknownField, field)
	}
	f.clearErrorLocked(field)
	return nil
}

func (f *LoginForm) Values() LoginInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values
}

// Submit validates the form and, when valid, hands the payload to s.
func (f *LoginForm) Submit(ctx context.Context, s Submitter) (Outcome, error) {
	if err := f.begin(); err != nil {
		return 0, err
	}

	res := ValidateLogin(f.Values())
	if !res.OK() {
		return f.reject(res.Errors()), nil
	}

	payload := LoginPayload{
		Email:    res.Value.Email,
		Password: res.Value.Password,
	}
	return f.handoff(ctx, func(ctx context.Context) error {
		return s.SubmitLogin(ctx, payload)
	})
}

// RegisterForm tracks one registration page visit for a fixed role.
type RegisterForm struct {
	controller
	role   Role
	values RegisterInput
}

func NewRegisterForm(role Role) *RegisterForm {
	f := &RegisterForm{role: role}
	f.init(registerFields)
	return f
}

func (f *RegisterForm) Role() Role {
	return f.role
}

// Update sets a text field and clears its error. The document is set with
// SelectFile.
func (f *RegisterForm) Update(field Field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch field {
	case FieldName:
		f.values.Name = value
	case FieldEmail:
		f.values.Email = value
	case FieldPhone:
		f.values.Phone = value
	case FieldPassword:
		f.values.Password = value
	case FieldPasswordConfirmation:
		f.values.PasswordConfirmation = value
	default:
		return fmt.Errorf("%w: %q on register form", ErrUnknownField, field)
	}
	f.clearErrorLocked(field)
	return nil
}

// SelectFile keeps the first of the selected files, replacing any earlier
// selection. An empty selection clears the document.
func (f *RegisterForm) SelectFile(files ...*File) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(files) == 0 {
		f.values.CriminalFile = nil
		return
	}
	f.values.CriminalFile = files[0]
}

func (f *RegisterForm) Values() RegisterInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values
}

// Submit validates the form, enforces the specialist document rule and, when
// both pass, hands the payload to s.
func (f *RegisterForm) Submit(ctx context.Context, s Submitter) (Outcome, error) {
	if err := f.begin(); err != nil {
		return 0, err
	}

	res := ValidateRegister(f.Values())
	if !res.OK() {
		return f.reject(res.Errors()), nil
	}

	in := res.Value
	if f.role.RequiresCriminalRecord() && in.CriminalFile == nil {
		return f.reject(FieldErrors{FieldCriminalFile: MsgFileRequired}), nil
	}

	payload := RegistrationPayload{
		Name:                 in.Name,
		Email:                in.Email,
		Phone:                in.Phone,
		Password:             in.Password,
		PasswordConfirmation: in.PasswordConfirmation,
		Role:                 f.role,
	}
	if f.role == RoleSpecialist {
		payload.Document = in.CriminalFile
	}

	return f.handoff(ctx, func(ctx context.Context) error {
		return s.SubmitRegistration(ctx, payload)
	})
}
