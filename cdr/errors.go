package cdr

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedData = errors.New("cdr: malformed data")
	ErrBadValue      = errors.New("cdr: value does not match type")
)

// MalformedDataError reports where decoding stopped and why.
type MalformedDataError struct {
	Offset int
	Reason string
}

func (e *MalformedDataError) Error() string {
	return fmt.Sprintf("cdr: malformed data at offset %d: %s", e.Offset, e.Reason)
}

func (e *MalformedDataError) Is(target error) bool {
	return target == ErrMalformedData
}

func malformed(off int, format string, args ...any) error {
	return &MalformedDataError{Offset: off, Reason: fmt.Sprintf(format, args...)}
}

func badValue(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadValue, fmt.Sprintf(format, args...))
}
