// Package errs defines the runner's tagged error kinds (§7 of the design).
//
// Every error kind carries a short machine-readable code and a human
// message, and most carry the field or component that failed so presenters
// can prefix it consistently.
package errs

import "fmt"

// Kind is the machine-readable error code named in §7.
type Kind string

const (
	KindConfig       Kind = "ConfigError"
	KindValidation   Kind = "ValidationError"
	KindSource       Kind = "SourceError"
	KindPlugin       Kind = "PluginError"
	KindContainer    Kind = "ContainerError"
	KindSecretStore  Kind = "SecretStoreError"
	KindReference    Kind = "ReferenceError"
	KindEval         Kind = "EvalError"
	KindNotImplemented Kind = "NotImplementedError"
)

// Error is the concrete tagged error type used throughout the runner.
type Error struct {
	Kind    Kind
	Field   string // the failing config field, when applicable
	Message string
	Cause   error
}

func (e *Error) Error() string {
	prefix := string(e.Kind)
	if e.Field != "" {
		prefix = fmt.Sprintf("%s[%s]", prefix, e.Field)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Code returns the machine-readable kind, satisfying the §7 "short
// machine-readable code" requirement.
func (e *Error) Code() string { return string(e.Kind) }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func WithField(kind Kind, field, message string) *Error {
	return &Error{Kind: kind, Field: field, Message: message}
}

// Is reports whether err is a tagged *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.Kind == kind
}
