package devserver

import (
	"fmt"
	"net/http"
)

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// apiError is a failure that maps onto the error envelope.
type apiError struct {
	Status     int
	Message    string
	Fields     []fieldError
	RetryAfter int
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func errUnauthorized(msg string) *apiError {
	return &apiError{Status: http.StatusUnauthorized, Message: msg}
}

func errBadRequest(msg string) *apiError {
	return &apiError{Status: http.StatusBadRequest, Message: msg}
}

func errNotFound(msg string) *apiError {
	return &apiError{Status: http.StatusNotFound, Message: msg}
}

func errConflict(msg string) *apiError {
	return &apiError{Status: http.StatusConflict, Message: msg}
}

func errTooManyRequests(msg string, retryAfter int) *apiError {
	return &apiError{Status: http.StatusTooManyRequests, Message: msg, RetryAfter: retryAfter}
}

func errValidation(fields ...fieldError) *apiError {
	return &apiError{Status: http.StatusUnprocessableEntity, Message: "Validation failed", Fields: fields}
}

// validator collects field errors in declaration order.
type validator []fieldError

func (v *validator) check(ok bool, field, msg string) {
	if !ok {
		*v = append(*v, fieldError{Field: field, Message: msg})
	}
}

func (v validator) err() error {
	if len(v) == 0 {
		return nil
	}
	return errValidation(v...)
}
