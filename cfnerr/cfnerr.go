// Package cfnerr defines the two error kinds the template processor and
// driver distinguish: a defect in the template itself, versus bad arguments
// supplied by the caller.
package cfnerr

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

// Kind tags an Error as either a template defect or a caller-argument
// defect. The driver treats both as user errors that should still trigger
// rollback, but a caller inspecting the error programmatically needs to
// tell them apart.
type Kind int

const (
	// InvalidTemplate marks a structural or semantic defect in the
	// template: a wrong node shape, an unknown directive, a missing
	// required field, an unresolved variable, a directive forbidden in an
	// imported template, or an action issued against a bucket that
	// doesn't exist or isn't versioned.
	InvalidTemplate Kind = iota
	// InvalidArgument marks caller-supplied parameters that are
	// inconsistent, e.g. UsePreviousValue requested with no prior stack.
	InvalidArgument
)

func (k Kind) String() string {
	switch k {
	case InvalidTemplate:
		return "InvalidTemplate"
	case InvalidArgument:
		return "InvalidArgument"
	default:
		return "Unknown"
	}
}

// Error is the tagged error type. It wraps an optional cause so the
// underlying (e.g. infrastructure) error is preserved for logging while the
// message presented to the caller stays template-oriented.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Template builds an InvalidTemplate error from a formatted message. It
// adds no template-name prefix; TemplateIn does that.
func Template(format string, args ...interface{}) *Error {
	return &Error{Kind: InvalidTemplate, Message: fmt.Sprintf(format, args...)}
}

// TemplateIn is like Template but prefixes the message with templateFile,
// matching the "<basename>: <message>" convention the original tool used
// when an InvalidTemplate error crossed a template boundary.
func TemplateIn(templateFile, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    InvalidTemplate,
		Message: fmt.Sprintf("%s: %s", templateFile, fmt.Sprintf(format, args...)),
	}
}

// Argument builds an InvalidArgument error.
func Argument(format string, args ...interface{}) *Error {
	return &Error{Kind: InvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches cause to an existing tagged error, preserving Kind and
// Message but letting Unwrap (and so errors.Is/errors.As) reach the
// underlying failure.
func Wrap(err *Error, cause error) *Error {
	return &Error{Kind: err.Kind, Message: err.Message, cause: errors.WithStack(cause)}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !stderrors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
