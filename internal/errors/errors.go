// Package errors provides the semantic error taxonomy shared by every
// engine operation and surfaced in tool response envelopes.
package errors

import (
	"errors"
	"fmt"
)

// Kind is the semantic class of an engine error. Kinds, not messages, drive
// retry and surfacing decisions.
type Kind string

const (
	// KindValidation covers missing or invalid arguments, empty project
	// names, unknown priorities. Never retried.
	KindValidation Kind = "validation"

	// KindProjectNotSelected means a gated tool was called while the
	// session is still bound to the pending sentinel.
	KindProjectNotSelected Kind = "project_not_selected"

	// KindProjectUnknown means the project namespace does not exist for a
	// read.
	KindProjectUnknown Kind = "project_unknown"

	// KindNotFound means the topic or version is absent.
	KindNotFound Kind = "not_found"

	// KindConfirmationRequired means a destructive operation hit an
	// always_check context without force.
	KindConfirmationRequired Kind = "confirmation_required"

	// KindVersionCollision means a concurrent lock raced on the same
	// (label, version). Retried internally with the next minor; surfaced
	// only after the retry budget is exhausted.
	KindVersionCollision Kind = "version_collision"

	// KindTransientIO covers acquisition timeouts, statement timeouts and
	// broken connections. The engine does not retry these; callers may.
	KindTransientIO Kind = "transient_io"

	// KindExternalDegraded means the embedding or LLM collaborator is
	// unreachable. Reads degrade; writes still commit.
	KindExternalDegraded Kind = "external_degraded"

	// KindInternal is an unexpected failure, logged with its cause and
	// surfaced with the kind only.
	KindInternal Kind = "internal"
)

// EngineError carries a kind, a caller-facing message, an optional wrapped
// cause and optional structured context for the response envelope.
type EngineError struct {
	Kind    Kind
	Message string
	Cause   error
	Context map[string]interface{}
}

func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Cause
}

// WithContext attaches a context field and returns the error for chaining.
func (e *EngineError) WithContext(key string, value interface{}) *EngineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates an EngineError of the given kind.
func New(kind Kind, message string) *EngineError {
	return &EngineError{Kind: kind, Message: message}
}

// Newf creates an EngineError with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *EngineError {
	return &EngineError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps a cause into an EngineError of the given kind. A nil cause
// yields nil so call sites can wrap unconditionally.
func Wrap(kind Kind, message string, cause error) *EngineError {
	if cause == nil {
		return nil
	}
	return &EngineError{Kind: kind, Message: message, Cause: cause}
}

// Convenience constructors for the common kinds.

func Validation(message string) *EngineError {
	return New(KindValidation, message)
}

func Validationf(format string, args ...interface{}) *EngineError {
	return Newf(KindValidation, format, args...)
}

func NotFound(message string) *EngineError {
	return New(KindNotFound, message)
}

func ProjectNotSelected() *EngineError {
	return New(KindProjectNotSelected,
		"no project selected for this session; call select_project_for_session first")
}

func ProjectUnknown(project string) *EngineError {
	return Newf(KindProjectUnknown, "project %q does not exist", project).
		WithContext("project", project)
}

func ConfirmationRequired(message string) *EngineError {
	return New(KindConfirmationRequired, message)
}

func TransientIO(message string, cause error) *EngineError {
	return &EngineError{Kind: KindTransientIO, Message: message, Cause: cause}
}

func ExternalDegraded(service string, cause error) *EngineError {
	return &EngineError{
		Kind:    KindExternalDegraded,
		Message: fmt.Sprintf("%s service unavailable", service),
		Cause:   cause,
	}
}

func Internal(message string, cause error) *EngineError {
	return &EngineError{Kind: KindInternal, Message: message, Cause: cause}
}

// KindOf extracts the semantic kind from any error. Non-engine errors map
// to KindInternal.
func KindOf(err error) Kind {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return KindInternal
}

// As unwraps err into an *EngineError, or wraps it as internal when it is
// not one. Returns nil for a nil error.
func As(err error) *EngineError {
	if err == nil {
		return nil
	}
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee
	}
	return Internal("unexpected error", err)
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var ee *EngineError
	return errors.As(err, &ee) && ee.Kind == kind
}

// Retryable reports whether the engine may retry the failed statement. Only
// version collisions are retried internally; everything else is surfaced.
func Retryable(err error) bool {
	return IsKind(err, KindVersionCollision)
}
