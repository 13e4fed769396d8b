package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrNoDataForMonth  = errors.New("no data for month")
	ErrNonPositiveRate = errors.New("exchange rate must be greater than 0")
	ErrInvalidSettings = errors.New("invalid settings")
	ErrDuplicatePair   = errors.New("duplicate currency pair")
	ErrScopeUnresolved = errors.New("scope is required and no default scope is configured")
)

// TransportError is a network-level failure: timeout, refused connection or a
// non-2xx HTTP status.
type TransportError struct {
	Op  string
	Err error
	Raw json.RawMessage
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: transport: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// MalformedResponseError means the response body was not a JSON object.
type MalformedResponseError struct {
	Op  string
	Err error
	Raw json.RawMessage
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Op, e.Err)
}
func (e *MalformedResponseError) Unwrap() error { return e.Err }

type APIErrorKind string

const (
	APIErrorHard        APIErrorKind = "error"
	APIErrorRateLimit   APIErrorKind = "rate_limit"
	APIErrorInformation APIErrorKind = "information"
)

// APIError is an explicit rejection reported inside the payload. Message is
// the upstream text, verbatim.
type APIError struct {
	Kind    APIErrorKind
	Message string
	Raw     json.RawMessage
}

func (e *APIError) Error() string { return e.Message }

// RateLimited reports whether the upstream asked the caller to back off.
func (e *APIError) RateLimited() bool { return e.Kind == APIErrorRateLimit }

// ParseError is a well-formed JSON payload whose shape or values were unexpected.
type ParseError struct {
	Op    string
	Field string
	Err   error
	Raw   json.RawMessage
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: parse: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: parse %q: %v", e.Op, e.Field, e.Err)
}
func (e *ParseError) Unwrap() error { return e.Err }

// ConfigurationError aborts a whole run before any pair is processed.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string { return "configuration: " + e.Reason }

// PersistenceError is a rejected downstream write.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

// RawPayload returns the upstream payload carried by err, if any.
func RawPayload(err error) json.RawMessage {
	var (
		te *TransportError
		me *MalformedResponseError
		ae *APIError
		pe *ParseError
	)
	switch {
	case errors.As(err, &ae):
		return ae.Raw
	case errors.As(err, &pe):
		return pe.Raw
	case errors.As(err, &me):
		return me.Raw
	case errors.As(err, &te):
		return te.Raw
	}
	return nil
}

// IsConfigurationError reports whether err aborts a whole run.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
