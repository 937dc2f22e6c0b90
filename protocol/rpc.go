// Package protocol holds what the registry daemon and its clients share:
// the RPC service name, request and reply types, and the Fault that carries
// typed errors across the wire.
package protocol

import (
	"context"
	"net"
	"net/rpc"
)

// ServiceName is the name the daemon registers its handlers under.
const ServiceName = "Repository"

type Connection struct {
	Network string
	Address string
}

func (c Connection) String() string { return c.Network + "://" + c.Address }

func DialContext(ctx context.Context, network, address string) (*rpc.Client, error) {
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	return rpc.NewClient(conn), nil
}

// Call invokes ServiceName.method on c and waits for the reply or for ctx
// to end. An abandoned call's reply is discarded when it arrives.
func Call(ctx context.Context, c *rpc.Client, method string, args, reply any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	call := c.Go(ServiceName+"."+method, args, reply, make(chan *rpc.Call, 1))
	select {
	case <-call.Done:
		return call.Error
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Invoke dials conn, makes one call and hangs up.
func Invoke(ctx context.Context, conn Connection, method string, args, reply any) error {
	c, err := DialContext(ctx, conn.Network, conn.Address)
	if err != nil {
		return err
	}
	defer c.Close()
	return Call(ctx, c, method, args, reply)
}
