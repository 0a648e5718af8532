// Package apperr defines the client error taxonomy. Every failure that reaches
// a controller is normalised into *Error, which carries the HTTP-like status,
// the server request id and field-level validation messages.
//
// Callers match classes with errors.Is against the sentinels below:
//
//	if errors.Is(err, apperr.ErrVaultLocked) { ... }
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies an Error.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuth
	KindCrypto
	KindValidation
	KindNotFound
	KindServer
	KindRateLimited
	KindRequest
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "AuthError"
	case KindCrypto:
		return "CryptoError"
	case KindValidation:
		return "ValidationError"
	case KindNotFound:
		return "NotFoundError"
	case KindServer:
		return "ServerError"
	case KindRateLimited:
		return "RateLimitError"
	case KindRequest:
		return "RequestError"
	default:
		return "AppError"
	}
}

// FieldError is a validation message bound to one input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the common shape of every client-visible failure.
type Error struct {
	Kind        Kind
	Message     string
	Status      int
	RequestID   string
	FieldErrors []FieldError
	// RetryAfter is set when the server asked the client to back off.
	RetryAfter time.Duration
	// Err is the underlying cause, if any. It is never shown to the user.
	Err error

	// code distinguishes sentinels of the same kind (vault locked, refresh failed).
	code string
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by kind, and by code when the sentinel carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.code == "" || t.code == e.code
}

var (
	ErrAuth        = &Error{Kind: KindAuth}
	ErrCrypto      = &Error{Kind: KindCrypto}
	ErrValidation  = &Error{Kind: KindValidation}
	ErrNotFound    = &Error{Kind: KindNotFound}
	ErrServer      = &Error{Kind: KindServer}
	ErrRateLimited = &Error{Kind: KindRateLimited}
	ErrRequest     = &Error{Kind: KindRequest}

	ErrVaultLocked      = &Error{Kind: KindAuth, code: codeVaultLocked}
	ErrRefreshFailed    = &Error{Kind: KindAuth, code: codeRefreshFailed}
	ErrWrongCredentials = &Error{Kind: KindAuth, code: codeWrongCredentials}
)

const (
	codeVaultLocked      = "vault_locked"
	codeRefreshFailed    = "refresh_failed"
	codeWrongCredentials = "wrong_credentials"
)

// MsgWrongCredentials is the only message shown for any login/unlock failure.
const MsgWrongCredentials = "Wrong email or password"

func NewAuth(message string, cause error) *Error {
	return &Error{Kind: KindAuth, Message: message, Status: http.StatusUnauthorized, Err: cause}
}

// WrongCredentials hides which login stage failed.
func WrongCredentials(cause error) *Error {
	return &Error{Kind: KindAuth, Message: MsgWrongCredentials, Status: http.StatusUnauthorized, Err: cause, code: codeWrongCredentials}
}

func VaultLocked() *Error {
	return &Error{Kind: KindAuth, Message: "Vault locked. Please unlock to continue.", Status: http.StatusForbidden, code: codeVaultLocked}
}

func RefreshFailed(cause error) *Error {
	return &Error{Kind: KindAuth, Message: "Token refresh failed", Status: http.StatusUnauthorized, Err: cause, code: codeRefreshFailed}
}

func NewCrypto(message string, cause error) *Error {
	return &Error{Kind: KindCrypto, Message: message, Status: http.StatusBadRequest, Err: cause}
}

func NewValidation(message string, fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: message, Status: http.StatusUnprocessableEntity, FieldErrors: fields}
}

func NewNotFound(message string) *Error {
	if message == "" {
		message = "Resource not found"
	}
	return &Error{Kind: KindNotFound, Message: message, Status: http.StatusNotFound}
}

func NewServer(message, requestID string) *Error {
	if message == "" {
		message = "Internal server error"
	}
	return &Error{Kind: KindServer, Message: message, Status: http.StatusInternalServerError, RequestID: requestID}
}

// NewRequest wraps a transport failure: no response was received.
func NewRequest(message string, cause error) *Error {
	return &Error{Kind: KindRequest, Message: message, Err: cause}
}

// KindForStatus maps an HTTP status to its error class.
func KindForStatus(status int, hasFieldErrors bool) Kind {
	switch {
	case status >= 500:
		return KindServer
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusUnprocessableEntity:
		return KindValidation
	case status == http.StatusBadRequest && hasFieldErrors:
		return KindValidation
	case status >= 400:
		return KindRequest
	default:
		return KindUnknown
	}
}

// From converts any error into *Error. Unknown errors become KindUnknown with
// status 0, keeping the original as the cause.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindUnknown, Message: err.Error(), Err: err}
}

// RetryAfter extracts the back-off hint from err, or 0.
func RetryAfter(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

// FieldMessages flattens field errors for display.
func (e *Error) FieldMessages() []string {
	out := make([]string, 0, len(e.FieldErrors))
	for _, f := range e.FieldErrors {
		out = append(out, f.Message)
	}
	return out
}
