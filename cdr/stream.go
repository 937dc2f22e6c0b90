// Package cdr implements the marshaling rules used by the GIOP layer and the
// registry file: fixed-width integers, length-prefixed strings, counted
// sequences, structs in member order and self-describing Any values.
//
// Values are packed back to back with no alignment padding. The byte order
// is chosen by the caller and applies to every multi-byte value.
package cdr

import (
	"bytes"
	"encoding/binary"
)

// Encoder is an output stream. The zero value is not usable, use NewEncoder.
type Encoder struct {
	buf   bytes.Buffer
	order binary.ByteOrder
}

func NewEncoder(order binary.ByteOrder) *Encoder {
	if order == nil {
		order = binary.BigEndian
	}
	return &Encoder{order: order}
}

func (e *Encoder) Order() binary.ByteOrder { return e.order }

// Bytes returns the encoded bytes. The slice aliases the encoder's buffer
// until the next write.
func (e *Encoder) Bytes() []byte { return e.buf.Bytes() }

func (e *Encoder) Len() int { return e.buf.Len() }

func (e *Encoder) WriteOctet(v byte) {
	e.buf.WriteByte(v)
}

func (e *Encoder) WriteBoolean(v bool) {
	if v {
		e.buf.WriteByte(1)
		return
	}
	e.buf.WriteByte(0)
}

func (e *Encoder) WriteUShort(v uint16) {
	var b [2]byte
	e.order.PutUint16(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) WriteShort(v int16) { e.WriteUShort(uint16(v)) }

func (e *Encoder) WriteULong(v uint32) {
	var b [4]byte
	e.order.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) WriteLong(v int32) { e.WriteULong(uint32(v)) }

func (e *Encoder) WriteULongLong(v uint64) {
	var b [8]byte
	e.order.PutUint64(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) WriteLongLong(v int64) { e.WriteULongLong(uint64(v)) }

// WriteString writes a 32-bit byte count followed by the raw bytes.
func (e *Encoder) WriteString(s string) {
	e.WriteLong(int32(len(s)))
	e.buf.WriteString(s)
}

// WriteOctets writes raw bytes without a count.
func (e *Encoder) WriteOctets(b []byte) {
	e.buf.Write(b)
}

// IsLittleEndian reports whether order puts the low byte first. It looks at
// what order does rather than which value it is, so binary.NativeEndian
// counts as little-endian on little-endian hosts.
func IsLittleEndian(order binary.ByteOrder) bool {
	return order != nil && order.Uint16([]byte{1, 0}) == 1
}

// Decoder is an input stream over a caller-owned buffer. Every read checks
// the remaining length first, so a short or hostile buffer produces a
// MalformedDataError instead of a panic.
type Decoder struct {
	buf   []byte
	off   int
	order binary.ByteOrder

	sizes sizeCache
}

func NewDecoder(buf []byte, order binary.ByteOrder) *Decoder {
	if order == nil {
		order = binary.BigEndian
	}
	return &Decoder{buf: buf, order: order}
}

func (d *Decoder) Order() binary.ByteOrder { return d.order }

func (d *Decoder) Offset() int { return d.off }

func (d *Decoder) Remaining() int { return len(d.buf) - d.off }

func (d *Decoder) next(n int, what string) ([]byte, error) {
	if n < 0 || d.Remaining() < n {
		return nil, malformed(d.off, "%s needs %d bytes, %d left", what, n, d.Remaining())
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *Decoder) ReadOctet() (byte, error) {
	b, err := d.next(1, "octet")
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Decoder) ReadBoolean() (bool, error) {
	off := d.off
	v, err := d.ReadOctet()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, malformed(off, "boolean octet %#x", v)
}

func (d *Decoder) ReadUShort() (uint16, error) {
	b, err := d.next(2, "ushort")
	if err != nil {
		return 0, err
	}
	return d.order.Uint16(b), nil
}

func (d *Decoder) ReadShort() (int16, error) {
	v, err := d.ReadUShort()
	return int16(v), err
}

func (d *Decoder) ReadULong() (uint32, error) {
	b, err := d.next(4, "ulong")
	if err != nil {
		return 0, err
	}
	return d.order.Uint32(b), nil
}

func (d *Decoder) ReadLong() (int32, error) {
	v, err := d.ReadULong()
	return int32(v), err
}

func (d *Decoder) ReadULongLong() (uint64, error) {
	b, err := d.next(8, "ulonglong")
	if err != nil {
		return 0, err
	}
	return d.order.Uint64(b), nil
}

func (d *Decoder) ReadLongLong() (int64, error) {
	v, err := d.ReadULongLong()
	return int64(v), err
}

func (d *Decoder) ReadString() (string, error) {
	n, err := d.readCount("string", 1)
	if err != nil {
		return "", err
	}
	b, err := d.next(n, "string body")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadOctets returns a copy of the next n bytes.
func (d *Decoder) ReadOctets(n int) ([]byte, error) {
	b, err := d.next(n, "octets")
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

// readCount reads a 32-bit element count and rejects it unless count
// elements of at least minSize bytes each can still fit in the buffer.
func (d *Decoder) readCount(what string, minSize int) (int, error) {
	off := d.off
	n, err := d.ReadLong()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, malformed(off, "%s count %d is negative", what, n)
	}
	if minSize < 1 {
		minSize = 1
	}
	if int64(n)*int64(minSize) > int64(d.Remaining()) {
		return 0, malformed(off, "%s count %d exceeds the %d bytes left", what, n, d.Remaining())
	}
	return int(n), nil
}
