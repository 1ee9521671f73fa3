package classifier

import (
	"fmt"

	"github.com/Slithercze/everytrade-plugins/internal/ports"
)

// ErrorKind distinguishes the row-level classification failures.
type ErrorKind int

const (
	UnsupportedKind ErrorKind = iota
	Validation
)

func (k ErrorKind) String() string {
	switch k {
	case UnsupportedKind:
		return "UNSUPPORTED_KIND"
	case Validation:
		return "VALIDATION"
	default:
		return "UNKNOWN"
	}
}

// ClassificationError is returned when a raw record cannot become a cluster.
// It matches ports.ErrUnsupportedKind or ports.ErrValidation with errors.Is.
type ClassificationError struct {
	Kind    ErrorKind
	Message string
	Err     error // underlying cause, may be nil
}

func (e *ClassificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes both the sentinel for the kind and the underlying cause.
func (e *ClassificationError) Unwrap() []error {
	sentinel := ports.ErrValidation
	if e.Kind == UnsupportedKind {
		sentinel = ports.ErrUnsupportedKind
	}
	if e.Err == nil {
		return []error{sentinel}
	}
	return []error{sentinel, e.Err}
}

func unsupported(tag string) *ClassificationError {
	return &ClassificationError{Kind: UnsupportedKind, Message: fmt.Sprintf("unsupported transaction kind %q", tag)}
}

func invalid(msg string, cause error) *ClassificationError {
	return &ClassificationError{Kind: Validation, Message: msg, Err: cause}
}
