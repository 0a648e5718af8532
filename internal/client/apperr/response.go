package apperr

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// ErrorResponse is the failure envelope of the API.
type ErrorResponse struct {
	Error     ErrorDetail `json:"error"`
	RequestID string      `json:"requestId,omitempty"`
}

type ErrorDetail struct {
	Message string        `json:"message"`
	Details *ErrorDetails `json:"details,omitempty"`
}

// ErrorDetails accepts both spellings the API has used for validation errors.
type ErrorDetails struct {
	ValidationErrors      []FieldError `json:"validationErrors,omitempty"`
	ValidationErrorsSnake []FieldError `json:"validation_errors,omitempty"`
	RetryAfter            *int64       `json:"retry_after,omitempty"`
	Locked                bool         `json:"locked,omitempty"`
}

func (d *ErrorDetails) fields() []FieldError {
	if d == nil {
		return nil
	}
	if len(d.ValidationErrors) > 0 {
		return d.ValidationErrors
	}
	return d.ValidationErrorsSnake
}

// FromResponse builds an Error from a non-2xx API response. Bodies that are
// not the JSON envelope fall back to the trimmed text or the status text.
func FromResponse(status int, body []byte) *Error {
	var env ErrorResponse
	msg := ""
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Message != "" {
		msg = env.Error.Message
	} else if text := strings.TrimSpace(string(body)); text != "" && !strings.HasPrefix(text, "{") {
		msg = text
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	if msg == "" {
		msg = "Error occurred"
	}

	fields := env.Error.Details.fields()
	e := &Error{
		Kind:        KindForStatus(status, len(fields) > 0),
		Message:     msg,
		Status:      status,
		RequestID:   env.RequestID,
		FieldErrors: fields,
	}
	if d := env.Error.Details; d != nil && d.RetryAfter != nil && *d.RetryAfter > 0 {
		e.RetryAfter = time.Duration(*d.RetryAfter) * time.Second
	}
	return e
}
