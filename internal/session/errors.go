package session

import (
	"errors"
	"fmt"
)

var (
	// ErrFetchFailed means the provider could not be reached or failed to
	// return links. The attempt is over until the user retries.
	ErrFetchFailed = errors.New("fetching sources failed")
	// ErrNoSources means the provider returned no usable links.
	ErrNoSources = errors.New("no sources available")
	// ErrEngine is a playback engine failure.
	ErrEngine = errors.New("playback engine error")

	ErrInvalidTransition = errors.New("invalid session transition")
	ErrNotLoaded         = errors.New("nothing is loaded")
	ErrSessionClosed     = errors.New("session closed")
)

// Kind classifies session errors.
type Kind int

const (
	KindFetch Kind = iota + 1
	KindUnavailable
	KindEngine
)

func (k Kind) sentinel() error {
	switch k {
	case KindFetch:
		return ErrFetchFailed
	case KindUnavailable:
		return ErrNoSources
	default:
		return ErrEngine
	}
}

func (k Kind) String() string { return k.sentinel().Error() }

// Error is a classified session failure. errors.Is matches it against the
// sentinel of its Kind as well as the wrapped error.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	s := e.Kind.sentinel()
	if e.Err == nil || e.Err == s {
		return s.Error()
	}
	return fmt.Sprintf("%s: %v", s, e.Err)
}

func (e *Error) Is(target error) bool { return target == e.Kind.sentinel() }

func (e *Error) Unwrap() error { return e.Err }

// TransitionError reports a rejected phase change.
type TransitionError struct {
	From, To Phase
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move session from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// classifyFetch turns a resolver error into a session error.
func classifyFetch(err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, ErrNoSources) {
		return &Error{Kind: KindUnavailable, Err: err}
	}
	return &Error{Kind: KindFetch, Err: err}
}
