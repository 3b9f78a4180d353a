package common

import "net/http"

// AppError is an error that knows how it is rendered over HTTP.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// BadRequest is a 400 BAD_REQUEST carrying per-field details.
func BadRequest(message string, details any, err error) *AppError {
	appErr := NewAppError("BAD_REQUEST", message, http.StatusBadRequest, err)
	appErr.Details = details
	return appErr
}
