package gcm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Failure kinds raised by Send. Configuration and request-shape errors are
// detected before any HTTP traffic; ErrAuthentication and ErrHTTP come back
// from the gateway wrapped in a *StatusError.
var (
	ErrValidation        = errors.New("gcm: message is invalid")
	ErrIllegalAPIKey     = errors.New("gcm: api key is empty")
	ErrNoRecipients      = errors.New("gcm: at least one registration id is required")
	ErrTooManyRecipients = errors.New("gcm: recipients maximum is 1000 registration ids")
	ErrWrongRecipientID  = errors.New("gcm: recipient must be a non-empty registration id")
	ErrTooBigPayload     = errors.New("gcm: payload maximum is 4096 bytes")
	ErrAuthentication    = errors.New("gcm: http authentication error")
	ErrHTTP              = errors.New("gcm: http error")
)

// ValidationError carries the messages produced by Message.Validate.
// It is the only failure that describes the message content rather than
// the call, so callers usually surface Errors to whoever built the message.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(e.Errors, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// StatusError is returned when the gateway answers with anything but 200.
type StatusError struct {
	StatusCode int
	Body       string
	kind       error
}

func newStatusError(code int, body string) *StatusError {
	kind := ErrHTTP
	if code == http.StatusBadRequest || code == http.StatusUnauthorized {
		kind = ErrAuthentication
	}
	return &StatusError{StatusCode: code, Body: body, kind: kind}
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d", e.kind, e.StatusCode)
}

func (e *StatusError) Unwrap() error { return e.kind }

// IsRetryable reports whether resending the same message may succeed:
// transport failures and gateway 5xx answers. Validation, configuration and
// authentication failures need the caller to change something first.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500
	}
	for _, permanent := range []error{
		ErrValidation, ErrIllegalAPIKey, ErrNoRecipients, ErrTooManyRecipients,
		ErrWrongRecipientID, ErrTooBigPayload,
	} {
		if errors.Is(err, permanent) {
			return false
		}
	}
	return true
}
