// Package idl holds the ActivationIDL value types and their marshaling
// helpers: CDR encoders, TypeCodes and conversions to and from cdr.Any.
package idl

import (
	"errors"
	"fmt"

	"github.com/alanwang67/activation_registry/cdr"
)

const (
	ServerDefID    = "IDL:ActivationIDL/RepositoryPackage/ServerDef:1.0"
	EndPointInfoID = "IDL:ActivationIDL/EndPointInfo:1.0"
	TCPPortID      = "IDL:ActivationIDL/TCPPort:1.0"
)

var ErrWrongType = errors.New("idl: any holds a different type")

// ServerDef is what a caller registers: enough to locate and launch a server.
type ServerDef struct {
	ApplicationName string
	ServerName      string
	ServerClassPath string
	ServerArgs      string
	ServerVMArgs    string
}

func (s ServerDef) String() string {
	return fmt.Sprintf("ServerDef[applicationName=%s serverName=%s serverClassPath=%s serverArgs=%s serverVmArgs=%s]",
		s.ApplicationName, s.ServerName, s.ServerClassPath, s.ServerArgs, s.ServerVMArgs)
}

func (s *ServerDef) MarshalCDR(e *cdr.Encoder) {
	e.WriteString(s.ApplicationName)
	e.WriteString(s.ServerName)
	e.WriteString(s.ServerClassPath)
	e.WriteString(s.ServerArgs)
	e.WriteString(s.ServerVMArgs)
}

func (s *ServerDef) UnmarshalCDR(d *cdr.Decoder) (err error) {
	for _, field := range []*string{
		&s.ApplicationName, &s.ServerName, &s.ServerClassPath, &s.ServerArgs, &s.ServerVMArgs,
	} {
		if *field, err = d.ReadString(); err != nil {
			return err
		}
	}
	return nil
}

var serverDefTC = cdr.StructTC(ServerDefID, "ServerDef",
	cdr.StructMember{Name: "applicationName", Type: cdr.StringTC(0)},
	cdr.StructMember{Name: "serverName", Type: cdr.StringTC(0)},
	cdr.StructMember{Name: "serverClassPath", Type: cdr.StringTC(0)},
	cdr.StructMember{Name: "serverArgs", Type: cdr.StringTC(0)},
	cdr.StructMember{Name: "serverVmArgs", Type: cdr.StringTC(0)},
)

func ServerDefTypeCode() *cdr.TypeCode { return serverDefTC }

func InsertServerDef(def ServerDef) *cdr.Any {
	return &cdr.Any{Type: serverDefTC, Value: []any{
		def.ApplicationName, def.ServerName, def.ServerClassPath, def.ServerArgs, def.ServerVMArgs,
	}}
}

func ExtractServerDef(a *cdr.Any) (ServerDef, error) {
	if a == nil || !serverDefTC.Equal(a.Type) {
		return ServerDef{}, ErrWrongType
	}
	members, ok := a.Value.([]any)
	if !ok || len(members) != 5 {
		return ServerDef{}, ErrWrongType
	}
	var fields [5]string
	for i, m := range members {
		if fields[i], ok = m.(string); !ok {
			return ServerDef{}, ErrWrongType
		}
	}
	return ServerDef{
		ApplicationName: fields[0],
		ServerName:      fields[1],
		ServerClassPath: fields[2],
		ServerArgs:      fields[3],
		ServerVMArgs:    fields[4],
	}, nil
}

// EndPointInfo names an endpoint type and the TCP port it listens on.
type EndPointInfo struct {
	EndpointType string
	Port         int32
}

func (p *EndPointInfo) MarshalCDR(e *cdr.Encoder) {
	e.WriteString(p.EndpointType)
	e.WriteLong(p.Port)
}

func (p *EndPointInfo) UnmarshalCDR(d *cdr.Decoder) (err error) {
	if p.EndpointType, err = d.ReadString(); err != nil {
		return err
	}
	p.Port, err = d.ReadLong()
	return err
}

var endPointInfoTC = cdr.StructTC(EndPointInfoID, "EndPointInfo",
	cdr.StructMember{Name: "endpointType", Type: cdr.StringTC(0)},
	cdr.StructMember{Name: "port", Type: cdr.AliasTC(TCPPortID, "TCPPort", cdr.PrimitiveTC(cdr.TkLong))},
)

func EndPointInfoTypeCode() *cdr.TypeCode { return endPointInfoTC }

func InsertEndPointInfo(p EndPointInfo) *cdr.Any {
	return &cdr.Any{Type: endPointInfoTC, Value: []any{p.EndpointType, p.Port}}
}

func ExtractEndPointInfo(a *cdr.Any) (EndPointInfo, error) {
	if a == nil || !endPointInfoTC.Equal(a.Type) {
		return EndPointInfo{}, ErrWrongType
	}
	members, ok := a.Value.([]any)
	if !ok || len(members) != 2 {
		return EndPointInfo{}, ErrWrongType
	}
	typ, ok1 := members[0].(string)
	port, ok2 := members[1].(int32)
	if !ok1 || !ok2 {
		return EndPointInfo{}, ErrWrongType
	}
	return EndPointInfo{EndpointType: typ, Port: port}, nil
}

// WriteEndPointInfoSeq and ReadEndPointInfoSeq handle EndpointInfoList.
func WriteEndPointInfoSeq(e *cdr.Encoder, eps []EndPointInfo) {
	cdr.WriteSequence(e, eps, func(e *cdr.Encoder, p EndPointInfo) { p.MarshalCDR(e) })
}

func ReadEndPointInfoSeq(d *cdr.Decoder) ([]EndPointInfo, error) {
	return cdr.ReadSequence(d, 8, func(d *cdr.Decoder) (EndPointInfo, error) {
		var p EndPointInfo
		err := p.UnmarshalCDR(d)
		return p, err
	})
}
