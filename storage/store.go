// Package storage persists registry snapshots.
//
// A Store never touches the live table: it is handed a complete snapshot
// and either makes all of it durable or reports an error. Every error a
// Store returns matches ErrRepositoryUnavailable.
package storage

import (
	"errors"
	"fmt"

	"github.com/alanwang67/activation_registry/registry"
)

const FileName = "servers.db"

var (
	ErrRepositoryUnavailable = errors.New("repository unavailable")

	// ErrCorrupt means the file exists but is not a registry this build can
	// read: wrong magic, version, checksum or payload.
	ErrCorrupt = errors.New("registry file is corrupt")
	// ErrSealed means the file is sealed and the passphrase is missing or
	// wrong.
	ErrSealed = errors.New("registry file cannot be unsealed")
	// ErrClosed is returned by a Store used after Close.
	ErrClosed = errors.New("store is closed")
)

type Store interface {
	// Load returns the persisted snapshot. A store with nothing persisted
	// yet returns an empty snapshot and persists it.
	Load() (*registry.Snapshot, error)
	// Flush durably replaces the persisted snapshot with s.
	Flush(s *registry.Snapshot) error
	Close() error
}

// UnavailableError wraps any failure to read or write the registry.
type UnavailableError struct {
	Op   string
	Path string
	Err  error
}

func (e *UnavailableError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("repository unavailable: %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("repository unavailable: %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Is(target error) bool { return target == ErrRepositoryUnavailable }

func (e *UnavailableError) Unwrap() error { return e.Err }

func emptySnapshot() *registry.Snapshot {
	return registry.NewTable().Snapshot()
}
