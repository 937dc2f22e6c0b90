package repository

import (
	"errors"
	"fmt"

	"github.com/alanwang67/activation_registry/registry"
	"github.com/alanwang67/activation_registry/storage"
)

var (
	ErrBadServerDefinition = errors.New("bad server definition")

	// ErrRepositoryUnavailable matches every persistence failure: a database
	// that cannot be loaded at start-up or a flush that failed mid-operation.
	ErrRepositoryUnavailable = storage.ErrRepositoryUnavailable
)

// BadServerDefinitionError is returned by RegisterServer when the
// definition fails verification. Reason is one of the fixed phrases below.
type BadServerDefinitionError struct {
	Reason string
}

const (
	ReasonMainClassNotFound    = "main class not found."
	ReasonBootstrapUnavailable = "bootstrap endpoint unavailable."
)

func (e *BadServerDefinitionError) Error() string {
	return fmt.Sprintf("bad server definition: %s", e.Reason)
}

func (e *BadServerDefinitionError) Is(target error) bool { return target == ErrBadServerDefinition }

// resultLabel buckets an operation outcome for the metrics.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, registry.ErrAlreadyRegistered):
		return "already_registered"
	case errors.Is(err, registry.ErrNotRegistered):
		return "not_registered"
	case errors.Is(err, registry.ErrAlreadyInstalled):
		return "already_installed"
	case errors.Is(err, registry.ErrAlreadyUninstalled):
		return "already_uninstalled"
	case errors.Is(err, registry.ErrServerIDInUse), errors.Is(err, registry.ErrInvalidServerID):
		return "bad_id"
	case errors.Is(err, registry.ErrIDSpaceExhausted):
		return "exhausted"
	case errors.Is(err, ErrBadServerDefinition):
		return "bad_definition"
	case errors.Is(err, ErrRepositoryUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
