package protocol

import "github.com/alanwang67/activation_registry/idl"

type RegisterRequest struct {
	Def idl.ServerDef
	// ID is only read by RegisterServerWithID; -1 asks for allocation.
	ID int32
}

type IDRequest struct {
	ID int32
}

type NameRequest struct {
	Name string
}

type Empty struct{}

type IDReply struct {
	ID    int32
	Fault Fault
}

type ServerReply struct {
	Def   idl.ServerDef
	Fault Fault
}

type InstalledReply struct {
	Installed bool
	Fault     Fault
}

type StatusReply struct {
	Fault Fault
}

type IDListReply struct {
	IDs []int32
}

type NameListReply struct {
	Names []string
}
