package giop

import (
	"errors"
	"fmt"
)

var ErrProtocol = errors.New("giop: protocol error")

// ProtocolError rejects a single message. Err is the codec failure behind
// it, if any.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("giop: %s: %v", e.Reason, e.Err)
	}
	return "giop: " + e.Reason
}

func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }

func (e *ProtocolError) Unwrap() error { return e.Err }

func protocolErrorf(format string, args ...any) error {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...)}
}
