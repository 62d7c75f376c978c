package forms

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
)

// State is the position of a form in its submit pipeline.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateSubmitting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateSubmitting:
		return "submitting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome summarises what a Submit call did.
type Outcome int

const (
	OutcomeInvalid Outcome = iota + 1
	OutcomeSubmitted
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInvalid:
		return "invalid"
	case OutcomeSubmitted:
		return "submitted"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MsgSubmitFailed is the form-level message shown when the handoff fails.
const MsgSubmitFailed = "No pudimos completar el envío. Intenta nuevamente."

var ErrSubmitInProgress = errors.New("submit already in progress")

// Submitter receives validated payloads. It is the only point where a submit
// may block.
type Submitter interface {
	SubmitLogin(ctx context.Context, p LoginPayload) error
	SubmitRegistration(ctx context.Context, p RegistrationPayload) error
}

// RejectedError is returned by a Submitter when the receiving side refused the
// payload for reasons the user can correct.
type RejectedError struct {
	Message string
	Fields  FieldErrors
}

func (e *RejectedError) Error() string {
	if len(e.Fields) == 0 {
		return "submission rejected: " + e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		keys = append(keys, string(f))
	}
	return "submission rejected: " + e.Message + " (" + strings.Join(keys, ", ") + ")"
}

// controller holds the state shared by the login and registration forms.
type controller struct {
	mu      sync.Mutex
	fields  []Field
	errors  FieldErrors
	state   State
	failure string

	loading atomic.Bool
}

func (c *controller) init(fields []Field) {
	c.fields = fields
	c.errors = make(FieldErrors)
}

// Errors returns a copy of the current field errors.
func (c *controller) Errors() FieldErrors {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errors.clone()
}

// Loading is true only while a handoff is in flight.
func (c *controller) Loading() bool {
	return c.loading.Load()
}

func (c *controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Failure is the form-level message left by the last failed handoff.
func (c *controller) Failure() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failure
}

// clearErrorLocked drops the error for f. Callers hold c.mu.
func (c *controller) clearErrorLocked(f Field) {
	delete(c.errors, f)
}

func (c *controller) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateValidating || c.state == StateSubmitting {
		return ErrSubmitInProgress
	}
	c.state = StateValidating
	return nil
}

func (c *controller) reject(errs FieldErrors) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	// An invalid submit goes straight back to idle; the outcome carries it.
	c.errors = errs
	c.failure = ""
	c.state = StateIdle
	return OutcomeInvalid
}

// handoff runs fn with the loading flag raised. The flag is lowered after fn
// returns or panics.
func (c *controller) handoff(ctx context.Context, fn func(context.Context) error) (Outcome, error) {
	c.mu.Lock()
	c.errors = make(FieldErrors)
	c.failure = ""
	c.state = StateSubmitting
	c.mu.Unlock()

	c.loading.Store(true)
	defer c.settle()

	if err := fn(ctx); err != nil {
		c.fail(err)
		return OutcomeFailed, err
	}

	c.mu.Lock()
	c.state = StateIdle
	c.mu.Unlock()
	return OutcomeSubmitted, nil
}

func (c *controller) settle() {
	c.loading.Store(false)

	c.mu.Lock()
	if c.state == StateSubmitting {
		c.state = StateFailed
		c.failure = MsgSubmitFailed
	}
	c.mu.Unlock()
}

func (c *controller) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = StateFailed
	c.failure = MsgSubmitFailed

	var rejected *RejectedError
	if errors.As(err, &rejected) {
		if rejected.Message != "" {
			c.failure = rejected.Message
		}
		for f, msg := range rejected.Fields {
			if contains(c.fields, f) {
				c.errors[f] = msg
			}
		}
	}
}
