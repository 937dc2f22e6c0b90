package registry

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyRegistered  = errors.New("server already registered")
	ErrNotRegistered      = errors.New("server not registered")
	ErrAlreadyInstalled   = errors.New("server already installed")
	ErrAlreadyUninstalled = errors.New("server already uninstalled")
	ErrServerIDInUse      = errors.New("server id already in use")
	ErrInvalidServerID    = errors.New("invalid server id")
	ErrIDSpaceExhausted   = errors.New("server id space exhausted")
)

// AlreadyRegisteredError carries the ID of the entry that owns the name.
type AlreadyRegisteredError struct {
	ID ServerID
}

func (e *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("server already registered with id %d", e.ID)
}

func (e *AlreadyRegisteredError) Is(target error) bool { return target == ErrAlreadyRegistered }

// NotRegisteredError names the ID or the application name that was looked up.
type NotRegisteredError struct {
	ID   ServerID
	Name string
}

func (e *NotRegisteredError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("no server registered for application %q", e.Name)
	}
	return fmt.Sprintf("server %d not registered", e.ID)
}

func (e *NotRegisteredError) Is(target error) bool { return target == ErrNotRegistered }

// InstallStateError is returned when install or uninstall would not change
// the flag.
type InstallStateError struct {
	ID        ServerID
	Installed bool
}

func (e *InstallStateError) Error() string {
	if e.Installed {
		return fmt.Sprintf("server %d already installed", e.ID)
	}
	return fmt.Sprintf("server %d already uninstalled", e.ID)
}

func (e *InstallStateError) Is(target error) bool {
	if e.Installed {
		return target == ErrAlreadyInstalled
	}
	return target == ErrAlreadyUninstalled
}
