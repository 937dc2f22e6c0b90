package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/alanwang67/activation_registry/registry"
)

type Options struct {
	// Passphrase seals the file when set. A plain file is still read and is
	// sealed on the next flush.
	Passphrase string
	// LittleEndian selects the payload byte order for new writes. Reads
	// follow the order recorded in the file.
	LittleEndian bool
}

// FileStore keeps the registry in a single file under dir. It holds an
// exclusive lock on dir/servers.db.lock until Close so that two daemons
// never share a database.
type FileStore struct {
	dir   string
	path  string
	lock  *flock.Flock
	order binary.ByteOrder

	mu     sync.Mutex
	seal   *sealer
	closed bool
}

func Open(dir string, opts Options) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, &UnavailableError{Op: "create", Path: dir, Err: err}
	}
	path := filepath.Join(dir, FileName)

	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, &UnavailableError{Op: "lock", Path: path, Err: err}
	}
	if !ok {
		return nil, &UnavailableError{Op: "lock", Path: path, Err: errors.New("database is in use by another process")}
	}

	var order binary.ByteOrder = binary.BigEndian
	if opts.LittleEndian {
		order = binary.LittleEndian
	}
	return &FileStore{
		dir:   dir,
		path:  path,
		lock:  lock,
		order: order,
		seal:  newSealer(opts.Passphrase),
	}, nil
}

func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Load() (*registry.Snapshot, error) {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return nil, &UnavailableError{Op: "read", Path: f.path, Err: ErrClosed}
	}

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		s := emptySnapshot()
		if err := f.Flush(s); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, &UnavailableError{Op: "read", Path: f.path, Err: err}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	s, err := decodeFile(data, f.seal)
	if err != nil {
		return nil, &UnavailableError{Op: "decode", Path: f.path, Err: err}
	}
	return s, nil
}

// Flush writes s to a temporary file in the same directory, syncs it and
// renames it over the database. A failure at any step leaves the previous
// file in place. Close waits for a flush in progress; a flush after Close
// fails without touching the file.
func (f *FileStore) Flush(s *registry.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return &UnavailableError{Op: "write", Path: f.path, Err: ErrClosed}
	}

	data, err := encodeFile(s, f.order, f.seal)
	if err != nil {
		return &UnavailableError{Op: "encode", Path: f.path, Err: err}
	}

	tmp, err := os.CreateTemp(f.dir, FileName+".tmp-*")
	if err != nil {
		return &UnavailableError{Op: "write", Path: f.path, Err: err}
	}
	tmpName := tmp.Name()
	fail := func(op string, err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return &UnavailableError{Op: op, Path: f.path, Err: err}
	}

	if _, err := tmp.Write(data); err != nil {
		return fail("write", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &UnavailableError{Op: "close", Path: f.path, Err: err}
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return &UnavailableError{Op: "rename", Path: f.path, Err: err}
	}
	syncDir(f.dir)
	return nil
}

func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	if f.seal != nil {
		zero(f.seal.key)
		f.seal.key = nil
	}
	if err := f.lock.Unlock(); err != nil {
		return fmt.Errorf("unlock %s: %w", f.lock.Path(), err)
	}
	return nil
}

// syncDir makes the rename durable. Not every platform can sync a
// directory, so errors are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	d.Sync()
	d.Close()
}
