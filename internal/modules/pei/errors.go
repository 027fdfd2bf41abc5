package pei

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDuplicateResponse   = errors.New("participant already submitted a response for this plan")
	ErrPlanNotFound        = errors.New("plan not found")
	ErrParticipantNotFound = errors.New("participant not found in plan")
	ErrNoResponses         = errors.New("plan has no responses")
	ErrInvalidTransition   = errors.New("invalid status transition")
)

// ValidationError rejects a request before any state is touched.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	msg := "validation failed"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Field != "" {
		return e.Field + ": " + msg
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return e.Err }

// PreconditionError rejects an action that is not allowed in the current state.
type PreconditionError struct {
	Reason string
	Err    error
}

func (e *PreconditionError) Error() string {
	switch {
	case e.Reason != "" && e.Err != nil:
		return e.Reason + ": " + e.Err.Error()
	case e.Reason != "":
		return e.Reason
	case e.Err != nil:
		return e.Err.Error()
	default:
		return "precondition failed"
	}
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// GenerationParseError means the backend text holds no recoverable JSON object.
type GenerationParseError struct {
	Snippet string
	Err     error
}

func (e *GenerationParseError) Error() string {
	msg := "could not parse JSON from generated text"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Snippet != "" {
		msg += fmt.Sprintf(" (got %q)", e.Snippet)
	}
	return msg
}

func (e *GenerationParseError) Unwrap() error { return e.Err }

// GenerationSchemaError names the first required field that was absent or malformed.
type GenerationSchemaError struct {
	Field  string
	Reason string
}

func (e *GenerationSchemaError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "missing"
	}
	return fmt.Sprintf("generated document field %q: %s", e.Field, reason)
}

type MissingContextError struct {
	Kind MessageKind
	Keys []string
}

func (e *MissingContextError) Error() string {
	return fmt.Sprintf("notification %s: missing context keys: %s", e.Kind, strings.Join(e.Keys, ", "))
}

// RenderingError is non-fatal: the structured document stays available.
type RenderingError struct {
	Err error
}

func (e *RenderingError) Error() string {
	if e.Err == nil {
		return "document rendering failed"
	}
	return "document rendering failed: " + e.Err.Error()
}

func (e *RenderingError) Unwrap() error { return e.Err }

// IsGenerationError reports whether err came from unusable generated output.
func IsGenerationError(err error) bool {
	var pe *GenerationParseError
	var se *GenerationSchemaError
	return errors.As(err, &pe) || errors.As(err, &se)
}

func snippet(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
