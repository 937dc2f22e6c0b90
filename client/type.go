package client

import (
	"net/rpc"

	"github.com/alanwang67/activation_registry/protocol"
)

// Client talks to one registry daemon over a single connection. It is safe
// for concurrent use.
type Client struct {
	Server *protocol.Connection
	rpc    *rpc.Client
}
