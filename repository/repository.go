// Package repository is the registry service: the server table, its
// persistence and the operations clients call.
//
// Every operation takes the same lock. A mutation runs against a clone of
// the table, the clone is flushed, and only then does it replace the live
// table, so a failed flush leaves nothing applied.
package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/alanwang67/activation_registry/idl"
	"github.com/alanwang67/activation_registry/metrics"
	"github.com/alanwang67/activation_registry/registry"
	"github.com/alanwang67/activation_registry/storage"
)

type Repository struct {
	mutex  sync.Mutex
	table  *registry.Table
	store  storage.Store
	closed bool

	log      *log.Logger
	verifier Verifier
	metrics  *metrics.Metrics
}

type Option func(*Repository)

func WithLogger(l *log.Logger) Option {
	return func(r *Repository) { r.log = l }
}

// WithVerifier enables checking in RegisterServer. Without one every
// definition is accepted.
func WithVerifier(v Verifier) Option {
	return func(r *Repository) { r.verifier = v }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Repository) { r.metrics = m }
}

// New loads the table from store. A store that cannot be read is fatal:
// the error matches ErrRepositoryUnavailable and no repository is returned.
func New(store storage.Store, opts ...Option) (*Repository, error) {
	r := &Repository{
		store: store,
		log:   log.Default().WithPrefix("repository"),
	}
	for _, opt := range opts {
		opt(r)
	}

	snap, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	table, err := registry.FromSnapshot(snap)
	if err != nil {
		return nil, &storage.UnavailableError{Op: "load", Err: err}
	}
	r.table = table
	r.metrics.SetServers(table.Len())
	r.log.Debugf("loaded %d servers, next id %d", table.Len(), table.Counter())
	return r, nil
}

// Close releases the store. Later mutations fail with
// ErrRepositoryUnavailable; reads keep answering from memory.
func (r *Repository) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.store.Close()
}

// mutate applies fn to a clone of the table and installs the clone once it
// is on disk. The caller holds the lock.
func (r *Repository) mutate(fn func(t *registry.Table) error) error {
	if r.closed {
		return &storage.UnavailableError{Op: "flush", Err: storage.ErrClosed}
	}
	next := r.table.Clone()
	if err := fn(next); err != nil {
		return err
	}

	start := time.Now()
	err := r.store.Flush(next.Snapshot())
	r.metrics.ObserveFlush(time.Since(start))
	if err != nil {
		return err
	}
	r.table = next
	r.metrics.SetServers(next.Len())
	return nil
}

func (r *Repository) record(op string, err error) {
	r.metrics.Operation(op, resultLabel(err))
}

// RegisterServer verifies def and registers it under a new ID.
func (r *Repository) RegisterServer(ctx context.Context, def idl.ServerDef) (registry.ServerID, error) {
	if err := ctx.Err(); err != nil {
		return registry.NoServerID, err
	}
	if r.verifier != nil {
		if err := r.verifier.Verify(ctx, def); err != nil {
			r.log.Debugf("registerServer %s rejected: %v", def, err)
			r.record("register", err)
			return registry.NoServerID, err
		}
	}
	return r.register(def, registry.NoServerID)
}

// RegisterServerWithID registers def without verification. With
// registry.NoServerID an ID is allocated; any other ID must be free.
func (r *Repository) RegisterServerWithID(def idl.ServerDef, id registry.ServerID) (registry.ServerID, error) {
	return r.register(def, id)
}

func (r *Repository) register(def idl.ServerDef, requested registry.ServerID) (registry.ServerID, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	assigned := registry.NoServerID
	err := r.mutate(func(t *registry.Table) error {
		id, err := t.Register(def, requested)
		assigned = id
		return err
	})
	r.record("register", err)
	if err != nil {
		r.log.Debugf("registerServer %s with %s failed: %v", def, describeRequest(requested), err)
		return registry.NoServerID, err
	}
	r.log.Debugf("registerServer %s with %s: %d", def, describeRequest(requested), assigned)
	return assigned, nil
}

func describeRequest(id registry.ServerID) string {
	if id == registry.NoServerID {
		return "a new server id"
	}
	return fmt.Sprintf("server id %d", id)
}

func (r *Repository) UnregisterServer(id registry.ServerID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	err := r.mutate(func(t *registry.Table) error { return t.Unregister(id) })
	r.record("unregister", err)
	r.log.Debugf("unregisterServer %d: %v", id, errOrOK(err))
	return err
}

func (r *Repository) GetServer(id registry.ServerID) (idl.ServerDef, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	srv, err := r.table.Lookup(id)
	r.record("get", err)
	if err != nil {
		r.log.Debugf("getServer %d: %v", id, err)
		return idl.ServerDef{}, err
	}
	r.log.Debugf("getServer %d returns %s", id, srv.Def)
	return srv.Def, nil
}

func (r *Repository) IsInstalled(id registry.ServerID) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	srv, err := r.table.Lookup(id)
	r.record("is_installed", err)
	if err != nil {
		return false, err
	}
	return srv.Installed, nil
}

func (r *Repository) Install(id registry.ServerID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	err := r.mutate(func(t *registry.Table) error { return t.Install(id) })
	r.record("install", err)
	r.log.Debugf("install %d: %v", id, errOrOK(err))
	return err
}

func (r *Repository) Uninstall(id registry.ServerID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	err := r.mutate(func(t *registry.Table) error { return t.Uninstall(id) })
	r.record("uninstall", err)
	r.log.Debugf("uninstall %d: %v", id, errOrOK(err))
	return err
}

// ListServers returns every registered ID. The order is registration order
// but callers should not rely on it.
func (r *Repository) ListServers() []registry.ServerID {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ids := r.table.IDs()
	r.record("list", nil)
	if r.log.GetLevel() <= log.DebugLevel {
		var sb strings.Builder
		for _, id := range ids {
			fmt.Fprintf(&sb, " %d", id)
		}
		r.log.Debugf("listRegisteredServers returns%s", sb.String())
	}
	return ids
}

func (r *Repository) GetServerID(applicationName string) (registry.ServerID, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	id, err := r.table.LookupByName(applicationName)
	r.record("get_id", err)
	r.log.Debugf("getServerID for %s is %d", applicationName, id)
	return id, err
}

func (r *Repository) ListApplicationNames() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	names := r.table.ApplicationNames()
	r.record("names", nil)
	r.log.Debugf("getApplicationNames returns %v", names)
	return names
}

func errOrOK(err error) any {
	if err == nil {
		return "ok"
	}
	return err
}
