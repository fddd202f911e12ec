package safemath

import "fmt"

// ErrorKind enumerates the ways a numeric operation can fail.
type ErrorKind uint8

const (
	InvalidNumber ErrorKind = iota + 1
	DivisionByZero
	EmptySequence
	InvalidBounds
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidNumber:
		return "invalid_number"
	case DivisionByZero:
		return "division_by_zero"
	case EmptySequence:
		return "empty_sequence"
	case InvalidBounds:
		return "invalid_bounds"
	default:
		return "unknown"
	}
}

// Error is returned by every operation in this package.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Is matches any *Error with the same Kind, so errors.Is(err, ErrDivisionByZero)
// works regardless of the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidNumber  = &Error{Kind: InvalidNumber, Msg: "invalid number"}
	ErrDivisionByZero = &Error{Kind: DivisionByZero, Msg: "division by zero"}
	ErrEmptySequence  = &Error{Kind: EmptySequence, Msg: "empty sequence"}
	ErrInvalidBounds  = &Error{Kind: InvalidBounds, Msg: "invalid bounds"}
)

func errorf(kind ErrorKind, format string, a ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, a...)}
}
