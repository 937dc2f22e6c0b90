package client

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/alanwang67/activation_registry/idl"
	"github.com/alanwang67/activation_registry/protocol"
	"github.com/alanwang67/activation_registry/registry"
)

func Dial(ctx context.Context, server *protocol.Connection) (*Client, error) {
	c, err := protocol.DialContext(ctx, server.Network, server.Address)
	if err != nil {
		return nil, err
	}
	log.Debugf("client connected to %s", server)
	return &Client{Server: server, rpc: c}, nil
}

func (c *Client) Close() error { return c.rpc.Close() }

func (c *Client) call(ctx context.Context, method string, args, reply any) error {
	return protocol.Call(ctx, c.rpc, method, args, reply)
}

// RegisterServer asks the daemon to verify def and register it.
func (c *Client) RegisterServer(ctx context.Context, def idl.ServerDef) (registry.ServerID, error) {
	var reply protocol.IDReply
	if err := c.call(ctx, "RegisterServer", &protocol.RegisterRequest{Def: def}, &reply); err != nil {
		return registry.NoServerID, err
	}
	return registry.ServerID(reply.ID), reply.Fault.Err()
}

func (c *Client) RegisterServerWithID(ctx context.Context, def idl.ServerDef, id registry.ServerID) (registry.ServerID, error) {
	var reply protocol.IDReply
	if err := c.call(ctx, "RegisterServerWithID", &protocol.RegisterRequest{Def: def, ID: int32(id)}, &reply); err != nil {
		return registry.NoServerID, err
	}
	return registry.ServerID(reply.ID), reply.Fault.Err()
}

func (c *Client) UnregisterServer(ctx context.Context, id registry.ServerID) error {
	return c.status(ctx, "UnregisterServer", id)
}

func (c *Client) Install(ctx context.Context, id registry.ServerID) error {
	return c.status(ctx, "Install", id)
}

func (c *Client) Uninstall(ctx context.Context, id registry.ServerID) error {
	return c.status(ctx, "Uninstall", id)
}

func (c *Client) status(ctx context.Context, method string, id registry.ServerID) error {
	var reply protocol.StatusReply
	if err := c.call(ctx, method, &protocol.IDRequest{ID: int32(id)}, &reply); err != nil {
		return err
	}
	return reply.Fault.Err()
}

func (c *Client) GetServer(ctx context.Context, id registry.ServerID) (idl.ServerDef, error) {
	var reply protocol.ServerReply
	if err := c.call(ctx, "GetServer", &protocol.IDRequest{ID: int32(id)}, &reply); err != nil {
		return idl.ServerDef{}, err
	}
	return reply.Def, reply.Fault.Err()
}

func (c *Client) IsInstalled(ctx context.Context, id registry.ServerID) (bool, error) {
	var reply protocol.InstalledReply
	if err := c.call(ctx, "IsInstalled", &protocol.IDRequest{ID: int32(id)}, &reply); err != nil {
		return false, err
	}
	return reply.Installed, reply.Fault.Err()
}

func (c *Client) ListServers(ctx context.Context) ([]registry.ServerID, error) {
	var reply protocol.IDListReply
	if err := c.call(ctx, "ListServers", &protocol.Empty{}, &reply); err != nil {
		return nil, err
	}
	ids := make([]registry.ServerID, len(reply.IDs))
	for i, id := range reply.IDs {
		ids[i] = registry.ServerID(id)
	}
	return ids, nil
}

func (c *Client) GetServerID(ctx context.Context, applicationName string) (registry.ServerID, error) {
	var reply protocol.IDReply
	if err := c.call(ctx, "GetServerID", &protocol.NameRequest{Name: applicationName}, &reply); err != nil {
		return registry.NoServerID, err
	}
	return registry.ServerID(reply.ID), reply.Fault.Err()
}

func (c *Client) ListApplicationNames(ctx context.Context) ([]string, error) {
	var reply protocol.NameListReply
	if err := c.call(ctx, "ListApplicationNames", &protocol.Empty{}, &reply); err != nil {
		return nil, err
	}
	return reply.Names, nil
}
