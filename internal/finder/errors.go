package finder

import (
	"errors"

	"github.com/teemow/timeslotseeker/internal/slots"
)

// Kind is the semantic category of a search error.
type Kind int

const (
	KindInternal            Kind = iota // unexpected failure
	KindInvalidArgument                 // caller input rejected before any lookup (400)
	KindUpstreamUnavailable             // busy source failed, timed out or returned bad data (502)
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	default:
		return "internal"
	}
}

// Error is a search error carrying its Kind.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err. Errors from the slots package that wrap
// slots.ErrInvalidArgument are reported as KindInvalidArgument; anything else
// unrecognized is KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, slots.ErrInvalidArgument) {
		return KindInvalidArgument
	}
	return KindInternal
}

// IsInvalidArgument reports whether err is of KindInvalidArgument.
func IsInvalidArgument(err error) bool {
	return err != nil && KindOf(err) == KindInvalidArgument
}

// IsUpstreamUnavailable reports whether err is of KindUpstreamUnavailable.
func IsUpstreamUnavailable(err error) bool {
	return err != nil && KindOf(err) == KindUpstreamUnavailable
}

func newInvalidArgument(message string, err ...error) *Error {
	return &Error{Kind: KindInvalidArgument, Message: message, Err: errors.Join(err...)}
}

func newUpstreamUnavailable(message string, err ...error) *Error {
	return &Error{Kind: KindUpstreamUnavailable, Message: message, Err: errors.Join(err...)}
}
