package lpg

import (
	"errors"
	"fmt"
)

// Kind classifies an LPG error. Kinds are themselves errors so callers can
// match them with errors.Is.
type Kind uint8

const (
	KindInvalidArgument Kind = iota + 1
	KindResourceExhausted
	KindIO
	KindUnsupported
	KindBusy
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid argument"
	case KindResourceExhausted:
		return "resource exhausted"
	case KindIO:
		return "i/o failure"
	case KindUnsupported:
		return "unsupported"
	case KindBusy:
		return "busy"
	default:
		return "unknown"
	}
}

func (k Kind) Error() string { return k.String() }

// Error kinds usable as errors.Is targets.
var (
	ErrInvalidArgument   error = KindInvalidArgument
	ErrResourceExhausted error = KindResourceExhausted
	ErrIO                error = KindIO
	ErrUnsupported       error = KindUnsupported
	ErrBusy              error = KindBusy
)

// Specific causes.
var (
	ErrLength            = errors.New("single-entry LUT range")
	ErrOutOfSpace        = errors.New("no contiguous free LUT run")
	ErrUnsupportedRepeat = errors.New("repeat must be once or forever")
	ErrNoLUT             = errors.New("device has no LUT block")
)

// Error is returned by all LPG operations.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("lpg: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("lpg: %s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the kind of err, or 0 if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func newError(op string, kind Kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

func invalidf(op, format string, args ...any) error {
	return &Error{Op: op, Kind: KindInvalidArgument, Err: fmt.Errorf(format, args...)}
}

// ioError wraps a bus failure. The bus error stays reachable through
// errors.As.
func ioError(op string, err error) error {
	return &Error{Op: op, Kind: KindIO, Err: err}
}
