package protocol

import (
	"errors"
	"fmt"

	"github.com/alanwang67/activation_registry/registry"
	"github.com/alanwang67/activation_registry/repository"
)

// Code identifies a registry failure on the wire. net/rpc only carries
// error strings, so handlers report failures in the reply instead.
type Code uint8

const (
	CodeNone Code = iota
	CodeAlreadyRegistered
	CodeNotRegistered
	CodeAlreadyInstalled
	CodeAlreadyUninstalled
	CodeServerIDInUse
	CodeInvalidServerID
	CodeIDSpaceExhausted
	CodeBadServerDefinition
	CodeRepositoryUnavailable
	CodeInternal
)

var codeNames = map[Code]string{
	CodeNone:                  "none",
	CodeAlreadyRegistered:     "already registered",
	CodeNotRegistered:         "not registered",
	CodeAlreadyInstalled:      "already installed",
	CodeAlreadyUninstalled:    "already uninstalled",
	CodeServerIDInUse:         "server id in use",
	CodeInvalidServerID:       "invalid server id",
	CodeIDSpaceExhausted:      "id space exhausted",
	CodeBadServerDefinition:   "bad server definition",
	CodeRepositoryUnavailable: "repository unavailable",
	CodeInternal:              "internal",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Code(%d)", uint8(c))
}

// Fault is the zero value on success. ServerID is the conflicting or
// missing ID where the failure has one; Detail is the error text.
type Fault struct {
	Code     Code
	ServerID int32
	Detail   string
}

func (f Fault) OK() bool { return f.Code == CodeNone }

// FaultFrom classifies err for the wire.
func FaultFrom(err error) Fault {
	if err == nil {
		return Fault{}
	}
	f := Fault{Code: CodeInternal, ServerID: int32(registry.NoServerID), Detail: err.Error()}

	var (
		are *registry.AlreadyRegisteredError
		nre *registry.NotRegisteredError
		ise *registry.InstallStateError
		bad *repository.BadServerDefinitionError
	)
	switch {
	case errors.As(err, &are):
		f.Code, f.ServerID = CodeAlreadyRegistered, int32(are.ID)
	case errors.As(err, &nre):
		f.Code, f.ServerID = CodeNotRegistered, int32(nre.ID)
		if nre.Name != "" {
			f.Detail = nre.Name
		}
	case errors.As(err, &ise):
		f.Code, f.ServerID = CodeAlreadyUninstalled, int32(ise.ID)
		if ise.Installed {
			f.Code = CodeAlreadyInstalled
		}
	case errors.As(err, &bad):
		f.Code, f.Detail = CodeBadServerDefinition, bad.Reason
	case errors.Is(err, registry.ErrServerIDInUse):
		f.Code = CodeServerIDInUse
	case errors.Is(err, registry.ErrInvalidServerID):
		f.Code = CodeInvalidServerID
	case errors.Is(err, registry.ErrIDSpaceExhausted):
		f.Code = CodeIDSpaceExhausted
	case errors.Is(err, repository.ErrRepositoryUnavailable):
		f.Code = CodeRepositoryUnavailable
	}
	return f
}

// RemoteError is a failure the daemon reported that has no richer local
// type. It matches the sentinel for its code.
type RemoteError struct {
	Code   Code
	Detail string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote: %s: %s", e.Code, e.Detail)
}

func (e *RemoteError) Is(target error) bool {
	switch e.Code {
	case CodeServerIDInUse:
		return target == registry.ErrServerIDInUse
	case CodeInvalidServerID:
		return target == registry.ErrInvalidServerID
	case CodeIDSpaceExhausted:
		return target == registry.ErrIDSpaceExhausted
	case CodeRepositoryUnavailable:
		return target == repository.ErrRepositoryUnavailable
	}
	return false
}

// Err turns f back into the error the daemon's repository returned, nil
// for a successful reply.
func (f Fault) Err() error {
	id := registry.ServerID(f.ServerID)
	switch f.Code {
	case CodeNone:
		return nil
	case CodeAlreadyRegistered:
		return &registry.AlreadyRegisteredError{ID: id}
	case CodeNotRegistered:
		if id == registry.NoServerID {
			return &registry.NotRegisteredError{ID: id, Name: f.Detail}
		}
		return &registry.NotRegisteredError{ID: id}
	case CodeAlreadyInstalled:
		return &registry.InstallStateError{ID: id, Installed: true}
	case CodeAlreadyUninstalled:
		return &registry.InstallStateError{ID: id, Installed: false}
	case CodeBadServerDefinition:
		return &repository.BadServerDefinitionError{Reason: f.Detail}
	default:
		return &RemoteError{Code: f.Code, Detail: f.Detail}
	}
}
