package cdr

// Any pairs a value with the TypeCode needed to decode it.
//
// Go representations by kind: short int16, long int32, ushort uint16,
// ulong uint32, longlong int64, ulonglong uint64, boolean bool, octet byte,
// string string, any *Any, sequence and struct []any (struct members in
// declaration order), null and void nil. Aliases use their target's shape.
type Any struct {
	Type  *TypeCode
	Value any
}

// WriteAny writes a.Type followed by the value. A nil Any is written as a
// null TypeCode with no body.
func (e *Encoder) WriteAny(a *Any) error {
	return e.writeAny(a, 0)
}

func (e *Encoder) writeAny(a *Any, depth int) error {
	if a == nil {
		e.WriteULong(uint32(TkNull))
		return nil
	}
	if err := e.writeTypeCode(a.Type, depth); err != nil {
		return err
	}
	return e.writeValue(a.Type, a.Value, depth)
}

func (e *Encoder) writeValue(tc *TypeCode, v any, depth int) error {
	if depth > maxTypeDepth {
		return badValue("value nested deeper than %d", maxTypeDepth)
	}
	tc = tc.Unalias()
	if tc == nil {
		return badValue("alias without target")
	}
	switch tc.Kind {
	case TkNull, TkVoid:
		if v != nil {
			return badValue("%s carries %T", tc.Kind, v)
		}
		return nil
	case TkShort:
		x, ok := v.(int16)
		if !ok {
			return badValue("short wants int16, got %T", v)
		}
		e.WriteShort(x)
	case TkUShort:
		x, ok := v.(uint16)
		if !ok {
			return badValue("ushort wants uint16, got %T", v)
		}
		e.WriteUShort(x)
	case TkLong:
		x, ok := v.(int32)
		if !ok {
			return badValue("long wants int32, got %T", v)
		}
		e.WriteLong(x)
	case TkULong:
		x, ok := v.(uint32)
		if !ok {
			return badValue("ulong wants uint32, got %T", v)
		}
		e.WriteULong(x)
	case TkLongLong:
		x, ok := v.(int64)
		if !ok {
			return badValue("longlong wants int64, got %T", v)
		}
		e.WriteLongLong(x)
	case TkULongLong:
		x, ok := v.(uint64)
		if !ok {
			return badValue("ulonglong wants uint64, got %T", v)
		}
		e.WriteULongLong(x)
	case TkBoolean:
		x, ok := v.(bool)
		if !ok {
			return badValue("boolean wants bool, got %T", v)
		}
		e.WriteBoolean(x)
	case TkOctet:
		x, ok := v.(byte)
		if !ok {
			return badValue("octet wants byte, got %T", v)
		}
		e.WriteOctet(x)
	case TkString:
		x, ok := v.(string)
		if !ok {
			return badValue("string wants string, got %T", v)
		}
		if tc.Bound > 0 && uint32(len(x)) > tc.Bound {
			return badValue("string of %d bytes exceeds bound %d", len(x), tc.Bound)
		}
		e.WriteString(x)
	case TkAny:
		x, ok := v.(*Any)
		if !ok {
			return badValue("any wants *Any, got %T", v)
		}
		return e.writeAny(x, depth+1)
	case TkSequence:
		items, ok := v.([]any)
		if !ok {
			return badValue("sequence wants []any, got %T", v)
		}
		if tc.Bound > 0 && uint32(len(items)) > tc.Bound {
			return badValue("sequence of %d exceeds bound %d", len(items), tc.Bound)
		}
		e.WriteLong(int32(len(items)))
		for _, item := range items {
			if err := e.writeValue(tc.Content, item, depth+1); err != nil {
				return err
			}
		}
	case TkStruct:
		members, ok := v.([]any)
		if !ok {
			return badValue("struct %s wants []any, got %T", tc.Name, v)
		}
		if len(members) != len(tc.Members) {
			return badValue("struct %s has %d members, got %d values", tc.Name, len(tc.Members), len(members))
		}
		for i, m := range tc.Members {
			if err := e.writeValue(m.Type, members[i], depth+1); err != nil {
				return err
			}
		}
	default:
		return badValue("unsupported kind %s", tc.Kind)
	}
	return nil
}

// ReadAny reads a TypeCode and then the value it describes.
func (d *Decoder) ReadAny() (*Any, error) {
	d.sizes = sizeCache{}
	defer func() { d.sizes = nil }()
	return d.readAny(0)
}

func (d *Decoder) readAny(depth int) (*Any, error) {
	tc, err := d.readTypeCode(depth)
	if err != nil {
		return nil, err
	}
	v, err := d.readValue(tc, depth)
	if err != nil {
		return nil, err
	}
	return &Any{Type: tc, Value: v}, nil
}

func (d *Decoder) minSize(tc *TypeCode) int {
	if d.sizes == nil {
		d.sizes = sizeCache{}
	}
	return d.sizes.minEncodedSize(tc, 0)
}

func (d *Decoder) readValue(tc *TypeCode, depth int) (any, error) {
	if depth > maxTypeDepth {
		return nil, malformed(d.off, "value nested deeper than %d", maxTypeDepth)
	}
	tc = tc.Unalias()
	if tc == nil {
		return nil, malformed(d.off, "alias without target")
	}
	switch tc.Kind {
	case TkNull, TkVoid:
		return nil, nil
	case TkShort:
		return d.ReadShort()
	case TkUShort:
		return d.ReadUShort()
	case TkLong:
		return d.ReadLong()
	case TkULong:
		return d.ReadULong()
	case TkLongLong:
		return d.ReadLongLong()
	case TkULongLong:
		return d.ReadULongLong()
	case TkBoolean:
		return d.ReadBoolean()
	case TkOctet:
		return d.ReadOctet()
	case TkString:
		off := d.off
		s, err := d.ReadString()
		if err != nil {
			return nil, err
		}
		if tc.Bound > 0 && uint32(len(s)) > tc.Bound {
			return nil, malformed(off, "string of %d bytes exceeds bound %d", len(s), tc.Bound)
		}
		return s, nil
	case TkAny:
		return d.readAny(depth + 1)
	case TkSequence:
		off := d.off
		items, err := ReadSequence(d, d.minSize(tc.Content), func(d *Decoder) (any, error) {
			return d.readValue(tc.Content, depth+1)
		})
		if err != nil {
			return nil, err
		}
		if tc.Bound > 0 && uint32(len(items)) > tc.Bound {
			return nil, malformed(off, "sequence of %d exceeds bound %d", len(items), tc.Bound)
		}
		return items, nil
	case TkStruct:
		members := make([]any, 0, len(tc.Members))
		for _, m := range tc.Members {
			v, err := d.readValue(m.Type, depth+1)
			if err != nil {
				return nil, err
			}
			members = append(members, v)
		}
		return members, nil
	}
	return nil, malformed(d.off, "unsupported kind %s", tc.Kind)
}
