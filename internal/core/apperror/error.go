// Package apperror defines the error type returned by the materializer and
// rendered by the HTTP layer as {code, message, details}.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeInternal      = "INTERNAL_ERROR"
	CodePersistence   = "PERSISTENCE_ERROR"
	CodeValidation    = "VALIDATION_ERROR"
	CodeConfiguration = "CONFIGURATION_ERROR"
	CodeConstruction  = "CONSTRUCTION_ERROR"
	CodeNotFound      = "NOT_FOUND"
)

// AppError carries a machine code, a message and optional details. The
// wrapped cause and the HTTP status never reach the JSON body.
type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	HTTPStatus int            `json:"-"`
	Err        error          `json:"-"`
}

func newError(code string, status int, msg string, cause error, kv ...any) *AppError {
	e := &AppError{Code: code, Message: msg, HTTPStatus: status, Err: cause}
	for i := 0; i+1 < len(kv); i += 2 {
		e.WithDetail(fmt.Sprint(kv[i]), kv[i+1])
	}
	return e
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// WithDetail sets one detail entry and returns e.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any, 2)
	}
	e.Details[key] = value
	return e
}

func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// NewConfiguration reports a caller mistake: a type without the entity marker,
// or a relationship shape that cannot be resolved automatically.
func NewConfiguration(typeName, message string) *AppError {
	return newError(CodeConfiguration, http.StatusBadRequest, message, nil, "type", typeName)
}

// NewConstruction reports that no constructor of a type could be invoked.
// It is fatal for the whole materialization run.
func NewConstruction(typeName string, cause error) *AppError {
	return newError(CodeConstruction, http.StatusUnprocessableEntity,
		"cannot construct "+typeName, cause, "type", typeName, "fatal", true)
}

// NewPersistence wraps a sink failure that aborted the persistence unit.
func NewPersistence(typeName string, cause error) *AppError {
	return newError(CodePersistence, http.StatusInternalServerError, "persist "+typeName, cause, "type", typeName)
}

func NewValidation(message string) *AppError {
	return newError(CodeValidation, http.StatusBadRequest, message, nil)
}

func NewNotFound(entity string, key any) *AppError {
	return newError(CodeNotFound, http.StatusNotFound, entity+" not found", nil, "entity", entity, "key", key)
}

// NewInternal hides err behind a generic message; the cause is only logged.
func NewInternal(err error) *AppError {
	return newError(CodeInternal, http.StatusInternalServerError, "Internal server error", err)
}

// AsAppError finds the first AppError in the chain of err.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func IsAppError(err error) bool {
	_, ok := AsAppError(err)
	return ok
}

// GetHTTPStatus maps err to a status; errors without a code are 500.
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

func IsNotFound(err error) bool      { return hasCode(err, CodeNotFound) }
func IsConfiguration(err error) bool { return hasCode(err, CodeConfiguration) }
func IsConstruction(err error) bool  { return hasCode(err, CodeConstruction) }
func IsPersistence(err error) bool   { return hasCode(err, CodePersistence) }

func hasCode(err error, code string) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}
