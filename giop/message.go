package giop

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/alanwang67/activation_registry/cdr"
)

// DefaultMaxBody caps the body size ReadMessage will allocate.
const DefaultMaxBody = 16 * 1024 * 1024

// Message is one of the body types below. The set is closed: decoding picks
// the type from the kind byte through the bodies table.
type Message interface {
	Type() MsgType
	marshalBody(e *cdr.Encoder)
	unmarshalBody(d *cdr.Decoder) error
}

type bodyKind struct {
	size uint32 // exact body size on the wire
	new  func() Message
}

var bodies = map[MsgType]bodyKind{
	MsgCancelRequest:   {size: 4, new: func() Message { return &CancelRequest{} }},
	MsgCloseConnection: {size: 0, new: func() Message { return &CloseConnection{} }},
	MsgMessageError:    {size: 0, new: func() Message { return &MessageError{} }},
}

// CancelRequest asks the peer to stop working on RequestID. It is advisory
// and has no reply.
type CancelRequest struct {
	RequestID uint32
}

func (*CancelRequest) Type() MsgType { return MsgCancelRequest }

func (m *CancelRequest) marshalBody(e *cdr.Encoder) { e.WriteULong(m.RequestID) }

func (m *CancelRequest) unmarshalBody(d *cdr.Decoder) (err error) {
	m.RequestID, err = d.ReadULong()
	return err
}

type CloseConnection struct{}

func (*CloseConnection) Type() MsgType { return MsgCloseConnection }
func (*CloseConnection) marshalBody(*cdr.Encoder) {}
func (*CloseConnection) unmarshalBody(*cdr.Decoder) error { return nil }

type MessageError struct{}

func (*MessageError) Type() MsgType { return MsgMessageError }
func (*MessageError) marshalBody(*cdr.Encoder) {}
func (*MessageError) unmarshalBody(*cdr.Decoder) error { return nil }

// Encode frames m with a header for version v. The body is written in order
// and the flags byte advertises it.
func Encode(v Version, order binary.ByteOrder, m Message) ([]byte, error) {
	if m == nil {
		return nil, protocolErrorf("nil message")
	}
	if !v.supported() {
		return nil, protocolErrorf("unsupported GIOP version %s", v)
	}
	if order == nil {
		order = binary.BigEndian
	}
	body := cdr.NewEncoder(order)
	m.marshalBody(body)

	h := Header{Version: v, Flags: flagsFor(order), Type: m.Type(), Size: uint32(body.Len())}
	out := make([]byte, HeaderSize+body.Len())
	h.put(out)
	copy(out[HeaderSize:], body.Bytes())
	return out, nil
}

// Decode parses one complete message. The header size must match both the
// buffer and the fixed body size of the kind.
func Decode(buf []byte) (Header, Message, error) {
	h, err := parseHeader(buf)
	if err != nil {
		return Header{}, nil, err
	}
	kind, ok := bodies[h.Type]
	if !ok {
		return h, nil, protocolErrorf("unsupported message kind %s", h.Type)
	}
	if h.Size != kind.size {
		return h, nil, protocolErrorf("%s body size %d, want %d", h.Type, h.Size, kind.size)
	}
	if uint64(len(buf)-HeaderSize) != uint64(h.Size) {
		return h, nil, protocolErrorf("header declares %d body bytes, message has %d", h.Size, len(buf)-HeaderSize)
	}
	m := kind.new()
	if err := m.unmarshalBody(cdr.NewDecoder(buf[HeaderSize:], h.Order())); err != nil {
		return h, nil, &ProtocolError{Reason: "decoding " + h.Type.String() + " body", Err: err}
	}
	return h, m, nil
}

// EncodeCancelRequest builds the GIOP 1.1 big-endian, unfragmented form.
func EncodeCancelRequest(requestID uint32) []byte {
	out, _ := Encode(V1_1, binary.BigEndian, &CancelRequest{RequestID: requestID})
	return out
}

func DecodeCancelRequest(buf []byte) (uint32, error) {
	h, m, err := Decode(buf)
	if err != nil {
		return 0, err
	}
	cancel, ok := m.(*CancelRequest)
	if !ok {
		return 0, protocolErrorf("expected %s, got %s", MsgCancelRequest, h.Type)
	}
	return cancel.RequestID, nil
}

// ReadMessage reads one framed message from r and returns header and body
// together, ready for Decode. The declared size is checked against maxBody
// before the body is allocated. io.EOF is returned only at a message
// boundary.
func ReadMessage(r io.Reader, maxBody uint32) ([]byte, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &ProtocolError{Reason: "truncated header", Err: err}
		}
		return nil, err
	}
	h, err := parseHeader(hdr[:])
	if err != nil {
		return nil, err
	}
	if maxBody == 0 {
		maxBody = DefaultMaxBody
	}
	if h.Size > maxBody {
		return nil, protocolErrorf("%s body of %d bytes exceeds limit %d", h.Type, h.Size, maxBody)
	}
	buf := make([]byte, HeaderSize+int(h.Size))
	copy(buf, hdr[:])
	if _, err := io.ReadFull(r, buf[HeaderSize:]); err != nil {
		return nil, &ProtocolError{Reason: "truncated body", Err: err}
	}
	return buf, nil
}
