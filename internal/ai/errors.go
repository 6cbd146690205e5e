package ai

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnavailable means the provider has no credential configured.
	ErrUnavailable = errors.New("ai provider unavailable")
	// ErrProviderFailure matches every *ProviderError.
	ErrProviderFailure = errors.New("ai provider failure")
)

type FailureKind string

const (
	KindTransport FailureKind = "transport"
	KindStatus    FailureKind = "status"
	KindDecode    FailureKind = "decode"
	KindPayload   FailureKind = "payload"
	KindShape     FailureKind = "shape"
)

// ProviderError describes a failed remote call. Status is the HTTP status
// when one was received.
type ProviderError struct {
	Provider string
	Kind     FailureKind
	Status   int
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s %s error", e.Provider, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrProviderFailure}
	}
	return []error{ErrProviderFailure, e.Err}
}

func newProviderError(provider string, kind FailureKind, status int, message string) error {
	return &ProviderError{Provider: provider, Kind: kind, Status: status, Message: message}
}

func wrapTransportError(provider string, err error) error {
	return &ProviderError{Provider: provider, Kind: KindTransport, Err: err}
}

// KindOf reports the failure kind of err, or "" when err is not a provider
// failure. Missing credentials are reported as "unavailable".
func KindOf(err error) FailureKind {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrUnavailable) {
		return "unavailable"
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTransport
	}
	return ""
}
