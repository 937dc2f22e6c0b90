package cdr

import "encoding/binary"

// Marshaler is implemented by IDL structs. Members are written in
// declaration order with no tags.
type Marshaler interface {
	MarshalCDR(e *Encoder)
}

type Unmarshaler interface {
	UnmarshalCDR(d *Decoder) error
}

func Marshal(v Marshaler, order binary.ByteOrder) []byte {
	e := NewEncoder(order)
	v.MarshalCDR(e)
	return e.Bytes()
}

// Unmarshal decodes buf into v. Bytes left over after v are an error: a
// buffer is expected to hold exactly one value.
func Unmarshal(buf []byte, order binary.ByteOrder, v Unmarshaler) error {
	d := NewDecoder(buf, order)
	if err := v.UnmarshalCDR(d); err != nil {
		return err
	}
	if d.Remaining() != 0 {
		return malformed(d.Offset(), "%d trailing bytes", d.Remaining())
	}
	return nil
}

// WriteSequence writes a 32-bit element count followed by each element.
func WriteSequence[T any](e *Encoder, items []T, write func(*Encoder, T)) {
	e.WriteLong(int32(len(items)))
	for _, item := range items {
		write(e, item)
	}
}

// ReadSequence reads a counted sequence. minElemSize is the smallest
// encoded size of one element; the count is checked against it before
// anything is allocated.
func ReadSequence[T any](d *Decoder, minElemSize int, read func(*Decoder) (T, error)) ([]T, error) {
	n, err := d.readCount("sequence", minElemSize)
	if err != nil {
		return nil, err
	}
	items := make([]T, 0, n)
	for i := 0; i < n; i++ {
		item, err := read(d)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
