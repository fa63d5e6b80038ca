package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes reported by the backend
const (
	CodeRateLimited   = "rate_limited"
	CodeAuthOrBilling = "auth_or_billing"
	CodeTimeout       = "timeout"
	CodeUnknown       = "unknown"
)

// APIError is a failed backend call
type APIError struct {
	Status  int
	Code    string
	Message string
}

// NewAPIError builds an APIError, deriving the code from the HTTP status
// when none is given
func NewAPIError(status int, code, message string) *APIError {
	if code == "" {
		code = codeForStatus(status)
	}
	return &APIError{Status: status, Code: code, Message: message}
}

func newAPIError(status int, env envelope) *APIError {
	msg := env.Message
	if msg == "" {
		msg = env.Detail
	}
	return NewAPIError(status, env.ErrorCode, msg)
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusTooManyRequests:
		return CodeRateLimited
	case http.StatusUnauthorized, http.StatusPaymentRequired, http.StatusForbidden:
		return CodeAuthOrBilling
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return CodeTimeout
	}
	return CodeUnknown
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d (%s)", e.Status, e.Code)
	}
	return fmt.Sprintf("backend returned %d (%s): %s", e.Status, e.Code, e.Message)
}

// UserMessage returns the text shown to the user. Rate limit and billing
// messages come from the backend and are passed through unchanged.
func (e *APIError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	switch e.Code {
	case CodeRateLimited:
		return "Limite de requisições atingido. Tente novamente em instantes."
	case CodeAuthOrBilling:
		return "Falha de autenticação ou cobrança no provedor."
	case CodeTimeout:
		return "O servidor demorou demais para responder."
	}
	return "Erro no servidor."
}

// Timeout reports whether the backend gave up waiting
func (e *APIError) Timeout() bool {
	return e.Code == CodeTimeout
}

// IsRateLimited reports whether err is a rate limit from the backend
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeRateLimited
}

// IsAuthOrBilling reports whether err is an authentication or billing failure
func IsAuthOrBilling(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeAuthOrBilling
}

// retryable reports whether a failed transcription may be retried with
// another provider
func retryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return true
	}
	switch apiErr.Status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
		http.StatusNotFound, http.StatusUnprocessableEntity, http.StatusNotImplemented,
		http.StatusBadGateway, http.StatusServiceUnavailable:
		return true
	}
	return false
}
