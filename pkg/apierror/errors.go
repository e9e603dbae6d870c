// Package apierror defines the error kinds shared by the transport, the
// pagination engine and the polling engine.
package apierror

import (
	"errors"
	"fmt"
)

// Common errors returned by connectors.
var (
	// ErrTransport is matched by every TransportError via errors.Is.
	ErrTransport = errors.New("transport error")

	// ErrConfiguration is matched by every ConfigurationError via errors.Is.
	ErrConfiguration = errors.New("configuration error")
)

// Class represents a classification of upstream failures.
type Class string

const (
	// ClassClient represents 4xx client errors.
	ClassClient Class = "client"

	// ClassServer represents 5xx server errors.
	ClassServer Class = "server"

	// ClassRateLimit represents 429 responses.
	ClassRateLimit Class = "rate_limit"

	// ClassNetwork represents network/timeout errors.
	ClassNetwork Class = "network"
)

// ClassifyStatus maps an HTTP status code to an error class.
// Returns "" for non-error statuses.
func ClassifyStatus(status int) Class {
	switch {
	case status == 429:
		return ClassRateLimit
	case status >= 400 && status < 500:
		return ClassClient
	case status >= 500:
		return ClassServer
	default:
		return ""
	}
}

// Retryable reports whether a transport may retry an error of this class.
func (c Class) Retryable() bool {
	switch c {
	case ClassServer, ClassRateLimit, ClassNetwork:
		return true
	default:
		// 4xx errors are deterministic
		return false
	}
}

// TransportError is an upstream HTTP/API failure. It carries the remote
// error's title and message and is always fatal to the current fetch or poll.
type TransportError struct {
	StatusCode int
	Class      Class
	Title      string
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	detail := e.Title
	if e.Message != "" {
		if detail != "" {
			detail += " - "
		}
		detail += e.Message
	}

	var s string
	if e.StatusCode > 0 {
		s = fmt.Sprintf("transport %s error (status %d)", e.Class, e.StatusCode)
	} else {
		s = fmt.Sprintf("transport %s error", e.Class)
	}
	if detail != "" {
		s += ": " + detail
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrTransport) match any TransportError.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// ConfigurationError is raised before any network call when a call cannot be
// built, e.g. a required identifier is missing.
type ConfigurationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Message)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrConfiguration) match any ConfigurationError.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// Configuration builds a ConfigurationError.
func Configuration(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// AsTransport returns err as a TransportError. An existing TransportError in
// the chain is returned as is; anything else is wrapped as a network error.
func AsTransport(err error) *TransportError {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	return &TransportError{
		Class: ClassNetwork,
		Err:   err,
	}
}

// IsTransport reports whether err is or wraps a TransportError.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsConfiguration reports whether err is or wraps a ConfigurationError.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
