package engine

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// ConfigurationError is returned when no backend can be constructed.
type ConfigurationError struct {
	Message string
	// Checked lists the credentials and settings that were looked for.
	Checked []string
}

func (e *ConfigurationError) Error() string {
	if len(e.Checked) == 0 {
		return "configuration error: " + e.Message
	}
	return fmt.Sprintf("configuration error: %s (checked %s)", e.Message, strings.Join(e.Checked, ", "))
}

// ErrorKind classifies backend failures.
type ErrorKind string

const (
	ErrorKindUnreachable   ErrorKind = "unreachable"
	ErrorKindMalformed     ErrorKind = "malformed"
	ErrorKindRateLimited   ErrorKind = "rate_limited"
	ErrorKindLimitExceeded ErrorKind = "limit_exceeded"
	ErrorKindAPI           ErrorKind = "api"
)

// AdapterError is the only error type adapters return for backend failures.
// Adapters never retry; a new run is the unit of retry.
type AdapterError struct {
	Provider string
	Kind     ErrorKind
	// StatusCode is the HTTP status of the backend answer, if any.
	StatusCode int
	Err        error
}

func NewAdapterError(provider string, kind ErrorKind, err error) *AdapterError {
	return &AdapterError{Provider: provider, Kind: kind, Err: err}
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an AdapterError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// KindForStatus maps an HTTP status of a backend answer to an error kind.
func KindForStatus(status int) ErrorKind {
	switch {
	case status == 429:
		return ErrorKindRateLimited
	case status == 413:
		return ErrorKindLimitExceeded
	case status >= 500:
		return ErrorKindUnreachable
	default:
		return ErrorKindAPI
	}
}

// WrapTransportError classifies an error of the HTTP client. Context
// cancellation is passed through unchanged.
func WrapTransportError(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var ae *AdapterError
	if errors.As(err, &ae) {
		return err
	}
	var ne net.Error
	var ue *url.Error
	if errors.As(err, &ne) || errors.As(err, &ue) || errors.Is(err, context.DeadlineExceeded) {
		return NewAdapterError(provider, ErrorKindUnreachable, err)
	}
	return NewAdapterError(provider, ErrorKindAPI, err)
}

func errorf(format string, args ...interface{}) error {
	return errors.Errorf(format, args...)
}
