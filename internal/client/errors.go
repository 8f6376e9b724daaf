package client

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies failures of the import service calls.
type ErrorKind int

const (
	// KindNetwork means the request never got a response.
	KindNetwork ErrorKind = iota
	// KindValidation means the service rejected the input (400/422).
	KindValidation
	// KindNotFound means the job id is unknown or stale (404).
	KindNotFound
	// KindServer covers 5xx and any other unexpected status.
	KindServer
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "NetworkError"
	case KindValidation:
		return "ValidationError"
	case KindNotFound:
		return "NotFoundError"
	default:
		return "ServerError"
	}
}

// APIError is returned by every ImportClient method. Message is safe to show
// to the operator as is.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func newNetworkError(message string, err error) *APIError {
	return &APIError{Kind: KindNetwork, Message: message, Err: err}
}

func newStatusError(statusCode int, message string) *APIError {
	return &APIError{
		Kind:       kindFromStatus(statusCode),
		StatusCode: statusCode,
		Message:    message,
		Err:        fmt.Errorf("import service returned status %d", statusCode),
	}
}

func kindFromStatus(statusCode int) ErrorKind {
	switch statusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge:
		return KindValidation
	case http.StatusNotFound:
		return KindNotFound
	default:
		return KindServer
	}
}

// KindOf returns the kind of err, defaulting to KindServer for foreign errors.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindServer
}

func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindNotFound
}

func IsNetwork(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindNetwork
}
