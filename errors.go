package sidecar

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies chat client failures.
type ErrorKind int

const (
	// ErrKindConnection means the inference server could not be reached.
	ErrKindConnection ErrorKind = iota

	// ErrKindModelNotFound means the server does not know the requested model.
	ErrKindModelNotFound

	// ErrKindStream is a transport or mid-stream failure; Message carries the
	// diagnostic text.
	ErrKindStream

	// ErrKindInvalidResponse means the server answered with a structurally
	// invalid body.
	ErrKindInvalidResponse

	// ErrKindInvalidModel means the caller supplied an unusable model
	// identifier.
	ErrKindInvalidModel
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindConnection:
		return "connection unavailable"
	case ErrKindModelNotFound:
		return "model not found"
	case ErrKindStream:
		return "stream error"
	case ErrKindInvalidResponse:
		return "invalid response"
	case ErrKindInvalidModel:
		return "invalid model identifier"
	default:
		return "unknown"
	}
}

// ChatError is the structured error returned by the chat client. All failures
// crossing the client boundary are one of these so the session can surface a
// user-facing string without inspecting transport internals.
type ChatError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ChatError) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ChatError) Unwrap() error { return e.Err }

// Is matches ChatErrors by kind so callers can use errors.Is with a bare
// &ChatError{Kind: ...} sentinel.
func (e *ChatError) Is(target error) bool {
	var ce *ChatError
	if !errors.As(target, &ce) {
		return false
	}
	return e.Kind == ce.Kind
}

// NewChatError creates a ChatError of the given kind.
func NewChatError(kind ErrorKind, message string) *ChatError {
	return &ChatError{Kind: kind, Message: message}
}

// classifyChatError folds an arbitrary provider failure into the client
// taxonomy. Server messages mentioning the model are treated as
// model-not-found; everything else is a stream error carrying the diagnostic
// text. Context cancellation passes through untouched so callers can
// distinguish their own cancels.
func classifyChatError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var ce *ChatError
	if errors.As(err, &ce) {
		return err
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "model") || strings.Contains(lower, "not found") {
		return &ChatError{Kind: ErrKindModelNotFound, Message: msg, Err: err}
	}
	return &ChatError{Kind: ErrKindStream, Message: msg, Err: err}
}
