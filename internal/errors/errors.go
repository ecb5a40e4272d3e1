// Package errors defines the control plane's error taxonomy. Every
// component returns one of these Kinds instead of ad hoc error strings so
// internal/httpapi can map failures to HTTP status codes in one place.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a control plane error.
type Kind string

const (
	KindAlreadyExists        Kind = "already_exists"
	KindNotFound             Kind = "not_found"
	KindNotReady             Kind = "not_ready"
	KindInvalidEvent         Kind = "invalid_event"
	KindInvalidResource      Kind = "invalid_resource"
	KindDeserialization      Kind = "deserialization"
	KindListenerDisconnected Kind = "listener_disconnected"
	KindSetup                Kind = "setup"
	KindTeardown             Kind = "teardown"
	KindWebhookMalformed     Kind = "webhook_malformed"
	KindGeneric              Kind = "generic"
)

// Error is a typed control plane error carrying a Kind for central
// dispatch plus an underlying cause for logging.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error of the given Kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given Kind around cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err carries kind, unwrapping through any wrapping.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, defaulting to KindGeneric for errors
// that never passed through this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindGeneric
}

func AlreadyExists(msg string) *Error   { return New(KindAlreadyExists, msg) }
func NotFound(msg string) *Error        { return New(KindNotFound, msg) }
func NotReady(msg string) *Error        { return New(KindNotReady, msg) }
func InvalidEvent(msg string) *Error    { return New(KindInvalidEvent, msg) }
func InvalidResource(msg string) *Error { return New(KindInvalidResource, msg) }
func WebhookMalformed(msg string) *Error { return New(KindWebhookMalformed, msg) }

// ListenerDisconnected is returned by an Informer listener to signal it
// should be removed rather than retried on the next event.
func ListenerDisconnected() *Error {
	return New(KindListenerDisconnected, "listener disconnected")
}
