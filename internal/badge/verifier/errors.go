package verifier

import (
	"errors"
	"fmt"
)

// ErrorKind separates failures to reach the service from failures it reported.
type ErrorKind string

const (
	// KindTransport: unreachable, timed out, or returned a body we cannot parse.
	KindTransport ErrorKind = "transport"
	// KindService: the service answered and reported a processing failure.
	KindService ErrorKind = "service"
)

// ErrorCategory narrows a failure for metrics and breaker decisions.
type ErrorCategory string

const (
	ErrorTimeout     ErrorCategory = "timeout"
	ErrorOutage      ErrorCategory = "outage"
	ErrorBadData     ErrorCategory = "bad_data"
	ErrorRejected    ErrorCategory = "rejected"
	ErrorCircuitOpen ErrorCategory = "circuit_open"
	ErrorInternal    ErrorCategory = "internal"
)

// GatewayError describes why a verification call could not produce an outcome.
type GatewayError struct {
	Kind       ErrorKind
	Category   ErrorCategory
	StatusCode int
	Message    string
	Underlying error
}

func (e *GatewayError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("verification %s error [%s]: %s: %v", e.Kind, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("verification %s error [%s]: %s", e.Kind, e.Category, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Underlying
}

func transportError(category ErrorCategory, msg string, err error) *GatewayError {
	return &GatewayError{Kind: KindTransport, Category: category, Message: msg, Underlying: err}
}

func serviceError(status int, msg string) *GatewayError {
	return &GatewayError{Kind: KindService, Category: ErrorRejected, StatusCode: status, Message: msg}
}

// IsTransport reports whether err is a transport-level gateway failure.
func IsTransport(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge) && ge.Kind == KindTransport
}

// CategoryOf returns the gateway error category, or ErrorInternal.
func CategoryOf(err error) ErrorCategory {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Category
	}
	return ErrorInternal
}
