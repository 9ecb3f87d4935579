package types

import (
	"errors"
)

var (
	// ErrNotFound is returned for an unknown name or a sensor without a
	// usable capability.
	ErrNotFound = errors.New("not found")
	// ErrConfig marks a fatal configuration error.
	ErrConfig = errors.New("configuration error")
)

// Status is the result code of the library reading calls.
type Status int

const (
	StatusSuccess  Status = 0
	StatusNoSample Status = -1
	StatusNotFound Status = -2
	StatusError    Status = -3
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusNoSample:
		return "NO_SAMPLE"
	case StatusNotFound:
		return "NOT_FOUND"
	case StatusError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// StatusOf maps a dispatch error to its status code.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, ErrNotFound):
		return StatusNotFound
	default:
		return StatusError
	}
}
