package gen

import (
	"fmt"
	"strings"
)

// ValidationError reports a parameter that failed local validation. It is
// always produced before any request leaves the process.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// CredentialError reports a missing credential environment variable.
type CredentialError struct {
	Var string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("%s environment variable is not set", e.Var)
}

// TransportError wraps a network-level failure, including abnormal stream
// termination.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProviderError captures a structured non-success response from a remote
// API.
type ProviderError struct {
	Provider   string
	StatusCode int
	Status     string
	Message    string
}

func (e *ProviderError) Error() string {
	status := e.Status
	if status == "" && e.StatusCode != 0 {
		status = fmt.Sprintf("status %d", e.StatusCode)
	}
	msg := strings.TrimSpace(e.Message)
	switch {
	case status != "" && msg != "":
		return fmt.Sprintf("%s api error: %s: %s", e.Provider, status, msg)
	case status != "":
		return fmt.Sprintf("%s api error: %s", e.Provider, status)
	default:
		return fmt.Sprintf("%s api error: %s", e.Provider, msg)
	}
}

// GenerationError reports a job that reached the failed status.
type GenerationError struct {
	JobID   string
	Message string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %s", e.Message)
}
