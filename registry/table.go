// Package registry is the in-memory table of registered servers.
//
// A Table is not safe for concurrent use. The repository package owns the
// only live Table and serializes access to it; it mutates a Clone and swaps
// it in once the new state is on disk.
package registry

import (
	"fmt"

	"github.com/alanwang67/activation_registry/idl"
)

type ServerID int32

const (
	// NoServerID asks Register to allocate an ID.
	NoServerID ServerID = -1
	// FirstUserID is the first ID the allocator hands out; lower IDs are
	// reserved for system servers.
	FirstUserID ServerID = 256
)

type RegisteredServer struct {
	ID        ServerID
	Def       idl.ServerDef
	Installed bool
}

// Snapshot is the whole table in registration order plus the allocator
// counter. It is the unit the storage package persists.
type Snapshot struct {
	NextID  uint32
	Servers []RegisteredServer
}

type Table struct {
	servers map[ServerID]*RegisteredServer
	order   []ServerID
	alloc   Allocator
}

func NewTable() *Table {
	return &Table{
		servers: make(map[ServerID]*RegisteredServer),
		alloc:   NewAllocator(uint32(FirstUserID)),
	}
}

// FromSnapshot rebuilds a table and checks the invariants a foreign or
// damaged snapshot could break: unique IDs, unique names, no negative IDs.
func FromSnapshot(s *Snapshot) (*Table, error) {
	t := &Table{
		servers: make(map[ServerID]*RegisteredServer, len(s.Servers)),
		order:   make([]ServerID, 0, len(s.Servers)),
		alloc:   NewAllocator(s.NextID),
	}
	names := make(map[string]ServerID, len(s.Servers))
	for _, srv := range s.Servers {
		if srv.ID < 0 {
			return nil, fmt.Errorf("snapshot entry %d: %w", srv.ID, ErrInvalidServerID)
		}
		if _, dup := t.servers[srv.ID]; dup {
			return nil, fmt.Errorf("snapshot entry %d: %w", srv.ID, ErrServerIDInUse)
		}
		if owner, dup := names[srv.Def.ApplicationName]; dup {
			return nil, fmt.Errorf("snapshot entry %d: %w", srv.ID, &AlreadyRegisteredError{ID: owner})
		}
		names[srv.Def.ApplicationName] = srv.ID
		entry := srv
		t.servers[srv.ID] = &entry
		t.order = append(t.order, srv.ID)
		t.alloc.Observe(srv.ID)
	}
	return t, nil
}

func (t *Table) Snapshot() *Snapshot {
	s := &Snapshot{
		NextID:  t.alloc.Counter(),
		Servers: make([]RegisteredServer, 0, len(t.order)),
	}
	for _, id := range t.order {
		s.Servers = append(s.Servers, *t.servers[id])
	}
	return s
}

func (t *Table) Clone() *Table {
	c := &Table{
		servers: make(map[ServerID]*RegisteredServer, len(t.servers)),
		order:   append([]ServerID(nil), t.order...),
		alloc:   t.alloc,
	}
	for id, srv := range t.servers {
		entry := *srv
		c.servers[id] = &entry
	}
	return c
}

func (t *Table) Len() int { return len(t.order) }

// Counter is the allocator's next ID.
func (t *Table) Counter() uint32 { return t.alloc.Counter() }

// Register adds def. With NoServerID the ID comes from the allocator;
// otherwise requested is used if no entry holds it yet, and the allocator
// is moved past it.
func (t *Table) Register(def idl.ServerDef, requested ServerID) (ServerID, error) {
	for _, id := range t.order {
		if t.servers[id].Def.ApplicationName == def.ApplicationName {
			return NoServerID, &AlreadyRegisteredError{ID: id}
		}
	}

	var id ServerID
	switch {
	case requested == NoServerID:
		next, err := t.alloc.Next()
		if err != nil {
			return NoServerID, err
		}
		id = next
	case requested < 0:
		return NoServerID, fmt.Errorf("%w: %d", ErrInvalidServerID, requested)
	default:
		if _, taken := t.servers[requested]; taken {
			return NoServerID, fmt.Errorf("%w: %d", ErrServerIDInUse, requested)
		}
		t.alloc.Observe(requested)
		id = requested
	}

	t.servers[id] = &RegisteredServer{ID: id, Def: def}
	t.order = append(t.order, id)
	return id, nil
}

func (t *Table) Unregister(id ServerID) error {
	if _, ok := t.servers[id]; !ok {
		return &NotRegisteredError{ID: id}
	}
	delete(t.servers, id)
	for i, v := range t.order {
		if v == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return nil
}

func (t *Table) Lookup(id ServerID) (RegisteredServer, error) {
	srv, ok := t.servers[id]
	if !ok {
		return RegisteredServer{}, &NotRegisteredError{ID: id}
	}
	return *srv, nil
}

func (t *Table) LookupByName(name string) (ServerID, error) {
	for _, id := range t.order {
		if t.servers[id].Def.ApplicationName == name {
			return id, nil
		}
	}
	return NoServerID, &NotRegisteredError{ID: NoServerID, Name: name}
}

// IDs returns every registered ID in registration order.
func (t *Table) IDs() []ServerID {
	return append([]ServerID{}, t.order...)
}

// ApplicationNames skips entries registered with an empty name.
func (t *Table) ApplicationNames() []string {
	names := make([]string, 0, len(t.order))
	for _, id := range t.order {
		if name := t.servers[id].Def.ApplicationName; name != "" {
			names = append(names, name)
		}
	}
	return names
}

func (t *Table) Install(id ServerID) error {
	return t.setInstalled(id, true)
}

func (t *Table) Uninstall(id ServerID) error {
	return t.setInstalled(id, false)
}

func (t *Table) setInstalled(id ServerID, installed bool) error {
	srv, ok := t.servers[id]
	if !ok {
		return &NotRegisteredError{ID: id}
	}
	if srv.Installed == installed {
		return &InstallStateError{ID: id, Installed: installed}
	}
	srv.Installed = installed
	return nil
}
