package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanwang67/activation_registry/idl"
	"github.com/alanwang67/activation_registry/protocol"
	"github.com/alanwang67/activation_registry/registry"
	"github.com/alanwang67/activation_registry/repository"
	"github.com/alanwang67/activation_registry/server"
	"github.com/alanwang67/activation_registry/storage"
	"github.com/alanwang67/activation_registry/workload"
)

func setupTestClient(t *testing.T, opts ...repository.Option) *Client {
	t.Helper()
	repo, err := repository.New(storage.NewMemStore(), opts...)
	require.NoError(t, err)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	conn := &protocol.Connection{Network: "tcp", Address: l.Addr().String()}
	s, err := server.New(conn, repo)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, l) }()

	c, err := Dial(context.Background(), conn)
	require.NoError(t, err)
	t.Cleanup(func() {
		c.Close()
		cancel()
		<-done
	})
	return c
}

func def(name string) idl.ServerDef {
	return idl.ServerDef{
		ApplicationName: name,
		ServerName:      name + "-server",
		ServerClassPath: "/opt/" + name,
		ServerArgs:      "-port 0",
		ServerVMArgs:    "-Xss1m",
	}
}

func TestExampleScenarioOverRPC(t *testing.T) {
	c := setupTestClient(t)
	ctx := context.Background()

	id1, err := c.RegisterServer(ctx, def("app1"))
	require.NoError(t, err)
	assert.Equal(t, registry.ServerID(256), id1)
	id2, err := c.RegisterServer(ctx, def("app2"))
	require.NoError(t, err)
	assert.Equal(t, registry.ServerID(257), id2)

	names, err := c.ListApplicationNames(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"app1", "app2"}, names)

	assert.ErrorIs(t, c.Uninstall(ctx, 256), registry.ErrAlreadyUninstalled)
}

func TestTypedErrorsSurviveTheWire(t *testing.T) {
	c := setupTestClient(t)
	ctx := context.Background()

	id, err := c.RegisterServer(ctx, def("app1"))
	require.NoError(t, err)

	_, err = c.RegisterServer(ctx, def("app1"))
	var are *registry.AlreadyRegisteredError
	require.ErrorAs(t, err, &are)
	assert.Equal(t, id, are.ID)

	_, err = c.GetServer(ctx, 999)
	assert.ErrorIs(t, err, registry.ErrNotRegistered)
	_, err = c.GetServerID(ctx, "missing")
	assert.ErrorIs(t, err, registry.ErrNotRegistered)

	_, err = c.RegisterServerWithID(ctx, def("other"), id)
	assert.ErrorIs(t, err, registry.ErrServerIDInUse)

	require.NoError(t, c.Install(ctx, id))
	assert.ErrorIs(t, c.Install(ctx, id), registry.ErrAlreadyInstalled)
}

func TestBadServerDefinitionOverRPC(t *testing.T) {
	v := &repository.EndpointVerifier{
		Locator:  repository.StaticBootstrap{Port: 1049},
		LookPath: func(string) (string, error) { return "", assert.AnError },
	}
	c := setupTestClient(t, repository.WithVerifier(v))

	_, err := c.RegisterServer(context.Background(), def("app1"))
	var bad *repository.BadServerDefinitionError
	require.ErrorAs(t, err, &bad)
	assert.Equal(t, repository.ReasonMainClassNotFound, bad.Reason)
}

func TestFullLifecycleOverRPC(t *testing.T) {
	c := setupTestClient(t)
	ctx := context.Background()

	id, err := c.RegisterServerWithID(ctx, def("app1"), 42)
	require.NoError(t, err)
	assert.Equal(t, registry.ServerID(42), id)

	got, err := c.GetServer(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, def("app1"), got)

	installed, err := c.IsInstalled(ctx, id)
	require.NoError(t, err)
	assert.False(t, installed)

	byName, err := c.GetServerID(ctx, "app1")
	require.NoError(t, err)
	assert.Equal(t, id, byName)

	ids, err := c.ListServers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []registry.ServerID{42}, ids)

	require.NoError(t, c.UnregisterServer(ctx, id))
	assert.ErrorIs(t, c.UnregisterServer(ctx, id), registry.ErrNotRegistered)
}

func TestCallHonoursContext(t *testing.T) {
	c := setupTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.ListServers(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunWorkload(t *testing.T) {
	c := setupTestClient(t)
	g := workload.NewWorkloadGenerator()
	g.OperationCount = 300
	g.ZipfianV = 20
	g.ReadPercentage = 0.5
	instrs, err := g.Generate()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	report, err := c.Run(ctx, instrs)
	require.NoError(t, err)
	require.Len(t, report.Results, 300)
	assert.Greater(t, report.Throughput(), 0.0)

	total := 0
	for _, st := range report.Summary() {
		total += st.Count
		assert.LessOrEqual(t, st.P50, st.P99)
		assert.LessOrEqual(t, st.Errors, st.Count)
	}
	assert.Equal(t, 300, total)

	names, err := c.ListApplicationNames(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, names)
}

func TestRunStopsOnTransportFailure(t *testing.T) {
	c := setupTestClient(t)
	require.NoError(t, c.Close())

	report, err := c.Run(context.Background(), []workload.Instruction{
		{Op: workload.OpList, Name: "x"},
		{Op: workload.OpList, Name: "y"},
	})
	assert.Error(t, err)
	assert.Len(t, report.Results, 1)
}
