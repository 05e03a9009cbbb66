// Package failure classifies the errors that can end a composition.
package failure

import (
	"errors"
	"fmt"
)

// Kind names a class of failure.
type Kind string

const (
	KindConfig               Kind = "config"
	KindProviderBusy         Kind = "provider_busy"
	KindProviderTerminal     Kind = "provider_terminal"
	KindProviderNetwork      Kind = "provider_network"
	KindSynthesisUnavailable Kind = "synthesis_unavailable"
	KindRender               Kind = "render"
	KindNothingToCompose     Kind = "nothing_to_compose"
	KindEncode               Kind = "encode"
	KindUnknown              Kind = "unknown"
)

// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error with a formatted message.
func New(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err. A nil err returns nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Recoverable reports whether a composition may continue after err.
func Recoverable(err error) bool {
	return KindOf(err) == KindRender
}
