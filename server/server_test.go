package server

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanwang67/activation_registry/idl"
	"github.com/alanwang67/activation_registry/metrics"
	"github.com/alanwang67/activation_registry/protocol"
	"github.com/alanwang67/activation_registry/registry"
	"github.com/alanwang67/activation_registry/repository"
	"github.com/alanwang67/activation_registry/storage"
)

func setupTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	repo, err := repository.New(storage.NewMemStore())
	require.NoError(t, err)
	s, err := New(&protocol.Connection{Network: "tcp", Address: "127.0.0.1:0"}, repo, opts...)
	require.NoError(t, err)
	return s
}

// serve runs s on a loopback listener until the test ends.
func serve(t *testing.T, s *Server) protocol.Connection {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, l) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	return protocol.Connection{Network: "tcp", Address: l.Addr().String()}
}

func def(name string) idl.ServerDef {
	return idl.ServerDef{ApplicationName: name, ServerName: name, ServerClassPath: "/bin/" + name}
}

func TestHandleRegisterServer(t *testing.T) {
	s := setupTestServer(t)

	reply := &protocol.IDReply{}
	require.NoError(t, s.RegisterServer(&protocol.RegisterRequest{Def: def("app1")}, reply))
	assert.True(t, reply.Fault.OK())
	assert.Equal(t, int32(256), reply.ID)

	reply = &protocol.IDReply{}
	require.NoError(t, s.RegisterServer(&protocol.RegisterRequest{Def: def("app1")}, reply))
	assert.Equal(t, protocol.CodeAlreadyRegistered, reply.Fault.Code)
	assert.Equal(t, int32(256), reply.Fault.ServerID)
}

func TestHandleRegisterServerWithID(t *testing.T) {
	s := setupTestServer(t)

	reply := &protocol.IDReply{}
	require.NoError(t, s.RegisterServerWithID(&protocol.RegisterRequest{Def: def("sys"), ID: 3}, reply))
	assert.Equal(t, int32(3), reply.ID)

	reply = &protocol.IDReply{}
	require.NoError(t, s.RegisterServerWithID(&protocol.RegisterRequest{Def: def("other"), ID: 3}, reply))
	assert.Equal(t, protocol.CodeServerIDInUse, reply.Fault.Code)

	reply = &protocol.IDReply{}
	require.NoError(t, s.RegisterServerWithID(&protocol.RegisterRequest{Def: def("auto"), ID: -1}, reply))
	assert.Equal(t, int32(256), reply.ID)
}

func TestHandleInstallLifecycle(t *testing.T) {
	s := setupTestServer(t)
	reg := &protocol.IDReply{}
	require.NoError(t, s.RegisterServer(&protocol.RegisterRequest{Def: def("app1")}, reg))
	req := &protocol.IDRequest{ID: reg.ID}

	status := &protocol.StatusReply{}
	require.NoError(t, s.Uninstall(req, status))
	assert.Equal(t, protocol.CodeAlreadyUninstalled, status.Fault.Code)

	status = &protocol.StatusReply{}
	require.NoError(t, s.Install(req, status))
	assert.True(t, status.Fault.OK())

	installed := &protocol.InstalledReply{}
	require.NoError(t, s.IsInstalled(req, installed))
	assert.True(t, installed.Installed)

	status = &protocol.StatusReply{}
	require.NoError(t, s.Install(req, status))
	assert.Equal(t, protocol.CodeAlreadyInstalled, status.Fault.Code)
}

func TestHandleLookups(t *testing.T) {
	s := setupTestServer(t)
	for _, name := range []string{"app1", "app2"} {
		require.NoError(t, s.RegisterServer(&protocol.RegisterRequest{Def: def(name)}, &protocol.IDReply{}))
	}

	ids := &protocol.IDListReply{}
	require.NoError(t, s.ListServers(&protocol.Empty{}, ids))
	assert.ElementsMatch(t, []int32{256, 257}, ids.IDs)

	names := &protocol.NameListReply{}
	require.NoError(t, s.ListApplicationNames(&protocol.Empty{}, names))
	assert.ElementsMatch(t, []string{"app1", "app2"}, names.Names)

	byName := &protocol.IDReply{}
	require.NoError(t, s.GetServerID(&protocol.NameRequest{Name: "app2"}, byName))
	assert.Equal(t, int32(257), byName.ID)

	got := &protocol.ServerReply{}
	require.NoError(t, s.GetServer(&protocol.IDRequest{ID: 257}, got))
	assert.Equal(t, def("app2"), got.Def)

	status := &protocol.StatusReply{}
	require.NoError(t, s.UnregisterServer(&protocol.IDRequest{ID: 257}, status))
	assert.True(t, status.Fault.OK())

	got = &protocol.ServerReply{}
	require.NoError(t, s.GetServer(&protocol.IDRequest{ID: 257}, got))
	assert.Equal(t, protocol.CodeNotRegistered, got.Fault.Code)
}

func TestServeOverTCP(t *testing.T) {
	s := setupTestServer(t)
	conn := serve(t, s)
	ctx := context.Background()

	reply := &protocol.IDReply{}
	require.NoError(t, protocol.Invoke(ctx, conn, "RegisterServer", &protocol.RegisterRequest{Def: def("app1")}, reply))
	assert.Equal(t, int32(256), reply.ID)

	missing := &protocol.IDReply{}
	require.NoError(t, protocol.Invoke(ctx, conn, "GetServerID", &protocol.NameRequest{Name: "nope"}, missing))
	assert.ErrorIs(t, missing.Fault.Err(), registry.ErrNotRegistered)
}

func TestConcurrentClients(t *testing.T) {
	s := setupTestServer(t)
	conn := serve(t, s)

	const n = 16
	var wg sync.WaitGroup
	ids := make(chan int32, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reply := &protocol.IDReply{}
			req := &protocol.RegisterRequest{Def: def(string(rune('a' + i)))}
			if assert.NoError(t, protocol.Invoke(context.Background(), conn, "RegisterServer", req, reply)) {
				ids <- reply.ID
			}
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := map[int32]bool{}
	for id := range ids {
		assert.False(t, seen[id])
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestServeStopsOnCancel(t *testing.T) {
	s := setupTestServer(t)
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, l) }()

	// An idle client connection must not keep Serve from returning.
	c, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestAcceptRateLimit(t *testing.T) {
	m := metrics.New()
	s := setupTestServer(t, WithAcceptRate(4, 1), WithMetrics(m))
	conn := serve(t, s)

	for i := 0; i < 3; i++ {
		require.NoError(t, protocol.Invoke(context.Background(), conn, "ListServers", &protocol.Empty{}, &protocol.IDListReply{}))
	}

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var throttled float64
	for _, f := range families {
		if f.GetName() == "orbd_rpc_connections_throttled_total" {
			throttled = f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.GreaterOrEqual(t, throttled, 1.0, "back-to-back connections beyond the burst are delayed")
}
