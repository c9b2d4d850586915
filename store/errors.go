package store

import (
	"errors"
	"strings"
)

var (
	// ErrMediumUnavailable is matched by errors returned when a backend cannot
	// reach, or is refused by, its physical medium.
	ErrMediumUnavailable = errors.New("mockstate: store medium unavailable")

	// ErrInvalidInput is matched by errors returned when the medium rejects
	// a request as malformed, such as a key it cannot store. Retrying the
	// same request will not help.
	ErrInvalidInput = errors.New("mockstate: invalid store input")

	// ErrInvalidConfig is returned when a backend or store cannot be built
	// from its configuration.
	ErrInvalidConfig = errors.New("mockstate: invalid store configuration")

	// ErrClosed is returned by a Factory after Close.
	ErrClosed = errors.New("mockstate: store factory is closed")
)

// OpError describes a failed capability operation.
type OpError struct {
	// Op is the capability operation (e.g. "save", "loadAll").
	Op string

	// Store is the store name.
	Store string

	// Backend is the backend type description.
	Backend string

	// Key is the key involved, empty for whole-store operations.
	Key string

	// Code is the medium's error code, when it reports one.
	Code string

	Err error
}

func (e *OpError) Error() string {
	var b strings.Builder
	b.WriteString("mockstate: ")
	b.WriteString(e.Backend)
	b.WriteString(" ")
	b.WriteString(e.Op)
	b.WriteString(" store=")
	b.WriteString(e.Store)
	if e.Key != "" {
		b.WriteString(" key=")
		b.WriteString(e.Key)
	}
	if e.Code != "" {
		b.WriteString(" code=")
		b.WriteString(e.Code)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *OpError) Unwrap() error { return e.Err }

// Is makes an OpError match ErrMediumUnavailable unless its cause is
// ErrInvalidInput.
func (e *OpError) Is(target error) bool {
	return target == ErrMediumUnavailable && !errors.Is(e.Err, ErrInvalidInput)
}
