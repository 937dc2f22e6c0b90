// Package giop frames GIOP messages: the 12-byte header shared by every
// message kind and the bodies of the kinds this module speaks.
//
// Header layout:
//
//	0..3  magic "GIOP"
//	4     major version
//	5     minor version
//	6     flags: bit 0 set = little-endian, bit 1 set = more fragments follow
//	7     message kind
//	8..11 body size, in the byte order given by bit 0 of flags
package giop

import (
	"encoding/binary"
	"fmt"

	"github.com/alanwang67/activation_registry/cdr"
)

const (
	Magic      = "GIOP"
	HeaderSize = 12

	FlagLittleEndian  byte = 0x01
	FlagMoreFragments byte = 0x02
)

type Version struct {
	Major byte
	Minor byte
}

var (
	V1_0 = Version{1, 0}
	V1_1 = Version{1, 1}
	V1_2 = Version{1, 2}
)

func (v Version) String() string { return fmt.Sprintf("%d.%d", v.Major, v.Minor) }

func (v Version) supported() bool { return v.Major == 1 && v.Minor <= 2 }

type MsgType byte

const (
	MsgRequest MsgType = iota
	MsgReply
	MsgCancelRequest
	MsgLocateRequest
	MsgLocateReply
	MsgCloseConnection
	MsgMessageError
	MsgFragment
)

var msgTypeNames = [...]string{
	"Request", "Reply", "CancelRequest", "LocateRequest",
	"LocateReply", "CloseConnection", "MessageError", "Fragment",
}

func (t MsgType) String() string {
	if int(t) < len(msgTypeNames) {
		return msgTypeNames[t]
	}
	return fmt.Sprintf("MsgType(%d)", byte(t))
}

type Header struct {
	Version Version
	Flags   byte
	Type    MsgType
	Size    uint32
}

func (h Header) Order() binary.ByteOrder {
	if h.Flags&FlagLittleEndian != 0 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

func (h Header) MoreFragments() bool { return h.Flags&FlagMoreFragments != 0 }

func (h Header) put(b []byte) {
	copy(b[0:4], Magic)
	b[4] = h.Version.Major
	b[5] = h.Version.Minor
	b[6] = h.Flags
	b[7] = byte(h.Type)
	h.Order().PutUint32(b[8:12], h.Size)
}

// parseHeader checks the magic and version and reads the body size in the
// header's own byte order.
func parseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, protocolErrorf("message of %d bytes is shorter than the %d-byte header", len(b), HeaderSize)
	}
	if string(b[0:4]) != Magic {
		return Header{}, protocolErrorf("bad magic %q", b[0:4])
	}
	h := Header{
		Version: Version{Major: b[4], Minor: b[5]},
		Flags:   b[6],
		Type:    MsgType(b[7]),
	}
	if !h.Version.supported() {
		return Header{}, protocolErrorf("unsupported GIOP version %s", h.Version)
	}
	h.Size = h.Order().Uint32(b[8:12])
	return h, nil
}

func flagsFor(order binary.ByteOrder) byte {
	if cdr.IsLittleEndian(order) {
		return FlagLittleEndian
	}
	return 0
}
