package storage

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanwang67/activation_registry/cdr"
	"github.com/alanwang67/activation_registry/idl"
	"github.com/alanwang67/activation_registry/registry"
)

func sampleSnapshot(t *testing.T) *registry.Snapshot {
	t.Helper()
	tbl := registry.NewTable()
	for _, name := range []string{"app1", "app2", ""} {
		_, err := tbl.Register(idl.ServerDef{
			ApplicationName: name,
			ServerName:      "srv-" + name,
			ServerClassPath: "/opt/" + name,
			ServerArgs:      "-v",
			ServerVMArgs:    "-Xmx64m",
		}, registry.NoServerID)
		require.NoError(t, err)
	}
	_, err := tbl.Register(idl.ServerDef{ApplicationName: "pinned"}, 40)
	require.NoError(t, err)
	require.NoError(t, tbl.Install(257))
	return tbl.Snapshot()
}

func openStore(t *testing.T, dir string, opts Options) *FileStore {
	t.Helper()
	fs, err := Open(dir, opts)
	require.NoError(t, err)
	t.Cleanup(func() { fs.Close() })
	return fs
}

func TestMemStoreFirstLoad(t *testing.T) {
	m := NewMemStore()
	s, err := m.Load()
	require.NoError(t, err)
	assert.Empty(t, s.Servers)
	assert.Equal(t, uint32(registry.FirstUserID), s.NextID)
	assert.Equal(t, 1, m.Flushes(), "first load persists the empty registry")

	want := sampleSnapshot(t)
	require.NoError(t, m.Flush(want))
	got, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFileStoreFirstRunCreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	fs := openStore(t, dir, Options{})

	s, err := fs.Load()
	require.NoError(t, err)
	assert.Empty(t, s.Servers)
	assert.FileExists(t, filepath.Join(dir, FileName))
}

func TestFileStoreRoundTrip(t *testing.T) {
	for _, little := range []bool{false, true} {
		dir := t.TempDir()
		fs := openStore(t, dir, Options{LittleEndian: little})
		want := sampleSnapshot(t)
		require.NoError(t, fs.Flush(want))
		require.NoError(t, fs.Close())

		reopened := openStore(t, dir, Options{})
		got, err := reopened.Load()
		require.NoError(t, err)
		assert.Equal(t, want, got, "little endian: %v", little)
	}
}

func TestFileStoreHeader(t *testing.T) {
	dir := t.TempDir()
	fs := openStore(t, dir, Options{})
	require.NoError(t, fs.Flush(sampleSnapshot(t)))

	data, err := os.ReadFile(fs.Path())
	require.NoError(t, err)
	assert.Equal(t, "ORBDREPO", string(data[:8]))
	assert.Equal(t, byte(formatVersion), data[8])
	assert.Equal(t, byte(0), data[9])
	n := binary.BigEndian.Uint32(data[12:16])
	assert.Equal(t, len(data)-headerSize-trailerSize, int(n))
	assert.Equal(t, uint32(259), binary.BigEndian.Uint32(data[16:20]), "payload starts with the counter")
}

func TestFileStoreRejectsCorruptFiles(t *testing.T) {
	good, err := encodeFile(sampleSnapshot(t), binary.BigEndian, nil)
	require.NoError(t, err)

	mutate := func(f func(b []byte) []byte) []byte {
		return f(append([]byte(nil), good...))
	}
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"truncated", good[:len(good)-1]},
		{"bad magic", mutate(func(b []byte) []byte { b[0] = 'X'; return b })},
		{"future version", mutate(func(b []byte) []byte { b[8] = 9; return b })},
		{"unknown flag", mutate(func(b []byte) []byte { b[9] = 0x80; return b })},
		{"flipped payload bit", mutate(func(b []byte) []byte { b[headerSize+6] ^= 0x01; return b })},
		{"length mismatch", mutate(func(b []byte) []byte { return append(b, 0) })},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), tt.data, 0o600))
			fs := openStore(t, dir, Options{})
			_, err := fs.Load()
			assert.ErrorIs(t, err, ErrRepositoryUnavailable)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestNativeEndianPayloadIsFlagged(t *testing.T) {
	want := sampleSnapshot(t)
	data, err := encodeFile(want, binary.NativeEndian, nil)
	require.NoError(t, err)
	assert.Equal(t, cdr.IsLittleEndian(binary.NativeEndian), data[9]&flagLittleEndian != 0)

	got, err := decodeFile(data, nil)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFileStoreRejectsBadPayloadWithValidChecksum(t *testing.T) {
	// A count claiming far more entries than the payload holds.
	e := encodePayload(&registry.Snapshot{NextID: 256}, binary.BigEndian)
	binary.BigEndian.PutUint32(e[4:8], 1<<30)
	_, err := decodePayload(e, binary.BigEndian)
	assert.Error(t, err)
}

func TestFileStoreSealed(t *testing.T) {
	dir := t.TempDir()
	fs := openStore(t, dir, Options{Passphrase: "correct horse"})
	want := sampleSnapshot(t)
	require.NoError(t, fs.Flush(want))
	require.NoError(t, fs.Flush(want), "second flush reuses the derived key")
	require.NoError(t, fs.Close())

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Equal(t, flagSealed, data[9]&flagSealed)
	assert.NotContains(t, string(data), "app1")

	got, err := openStore(t, dir, Options{Passphrase: "correct horse"}).Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFileStoreSealedWrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	fs := openStore(t, dir, Options{Passphrase: "one"})
	require.NoError(t, fs.Flush(sampleSnapshot(t)))
	require.NoError(t, fs.Close())

	for _, pass := range []string{"", "two"} {
		fs := openStore(t, dir, Options{Passphrase: pass})
		_, err := fs.Load()
		assert.ErrorIs(t, err, ErrSealed)
		assert.ErrorIs(t, err, ErrRepositoryUnavailable)
		require.NoError(t, fs.Close())
	}
}

func TestFileStoreSealsPlainFileOnNextFlush(t *testing.T) {
	dir := t.TempDir()
	plain := openStore(t, dir, Options{})
	want := sampleSnapshot(t)
	require.NoError(t, plain.Flush(want))
	require.NoError(t, plain.Close())

	sealed := openStore(t, dir, Options{Passphrase: "secret"})
	got, err := sealed.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
	require.NoError(t, sealed.Flush(got))

	data, err := os.ReadFile(sealed.Path())
	require.NoError(t, err)
	assert.Equal(t, flagSealed, data[9]&flagSealed)
}

func TestFileStoreLocksDirectory(t *testing.T) {
	dir := t.TempDir()
	first := openStore(t, dir, Options{})

	_, err := Open(dir, Options{})
	assert.ErrorIs(t, err, ErrRepositoryUnavailable)

	require.NoError(t, first.Close())
	second, err := Open(dir, Options{})
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestFileStoreRefusesUseAfterClose(t *testing.T) {
	dir := t.TempDir()
	fs := openStore(t, dir, Options{})
	require.NoError(t, fs.Flush(sampleSnapshot(t)))
	before, err := os.ReadFile(fs.Path())
	require.NoError(t, err)
	require.NoError(t, fs.Close())

	err = fs.Flush(registry.NewTable().Snapshot())
	assert.ErrorIs(t, err, ErrRepositoryUnavailable)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = fs.Load()
	assert.ErrorIs(t, err, ErrClosed)

	after, err := os.ReadFile(fs.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestFileStoreFailedFlushKeepsPreviousFile(t *testing.T) {
	dir := t.TempDir()
	fs := openStore(t, dir, Options{})
	want := sampleSnapshot(t)
	require.NoError(t, fs.Flush(want))
	before, err := os.ReadFile(fs.Path())
	require.NoError(t, err)

	// Rename over a non-empty directory fails on every platform.
	blocked := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(blocked, "x"), nil, 0o600))
	fs.path = blocked
	err = fs.Flush(registry.NewTable().Snapshot())
	assert.ErrorIs(t, err, ErrRepositoryUnavailable)
	fs.path = filepath.Join(dir, FileName)

	after, err := os.ReadFile(fs.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-", "temporary files are cleaned up")
	}
}
