package cdr

import "fmt"

// TCKind identifies the shape described by a TypeCode. The numbering is the
// CORBA one so encoded descriptors stay recognizable to other ORBs.
type TCKind uint32

const (
	TkNull      TCKind = 0
	TkVoid      TCKind = 1
	TkShort     TCKind = 2
	TkLong      TCKind = 3
	TkUShort    TCKind = 4
	TkULong     TCKind = 5
	TkBoolean   TCKind = 8
	TkOctet     TCKind = 10
	TkAny       TCKind = 11
	TkStruct    TCKind = 15
	TkString    TCKind = 18
	TkSequence  TCKind = 19
	TkAlias     TCKind = 21
	TkLongLong  TCKind = 23
	TkULongLong TCKind = 24
)

// maxTypeDepth bounds TypeCode and Any nesting on both encode and decode.
const maxTypeDepth = 32

var kindNames = map[TCKind]string{
	TkNull:      "null",
	TkVoid:      "void",
	TkShort:     "short",
	TkLong:      "long",
	TkUShort:    "ushort",
	TkULong:     "ulong",
	TkBoolean:   "boolean",
	TkOctet:     "octet",
	TkAny:       "any",
	TkStruct:    "struct",
	TkString:    "string",
	TkSequence:  "sequence",
	TkAlias:     "alias",
	TkLongLong:  "longlong",
	TkULongLong: "ulonglong",
}

func (k TCKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("tk(%d)", uint32(k))
}

// TypeCode describes the shape of a value carried in an Any.
type TypeCode struct {
	Kind TCKind

	// struct and alias
	ID   string
	Name string

	Members []StructMember // struct
	Content *TypeCode      // sequence element type, alias target
	Bound   uint32         // string and sequence; 0 means unbounded
}

type StructMember struct {
	Name string
	Type *TypeCode
}

func PrimitiveTC(kind TCKind) *TypeCode { return &TypeCode{Kind: kind} }

func StringTC(bound uint32) *TypeCode { return &TypeCode{Kind: TkString, Bound: bound} }

func SequenceTC(bound uint32, content *TypeCode) *TypeCode {
	return &TypeCode{Kind: TkSequence, Bound: bound, Content: content}
}

func StructTC(id, name string, members ...StructMember) *TypeCode {
	return &TypeCode{Kind: TkStruct, ID: id, Name: name, Members: members}
}

func AliasTC(id, name string, content *TypeCode) *TypeCode {
	return &TypeCode{Kind: TkAlias, ID: id, Name: name, Content: content}
}

// Unalias follows alias chains to the underlying type.
func (tc *TypeCode) Unalias() *TypeCode {
	for i := 0; tc != nil && tc.Kind == TkAlias && i < maxTypeDepth; i++ {
		tc = tc.Content
	}
	return tc
}

// Equal reports structural equality. Member names and repository IDs take
// part in the comparison.
func (tc *TypeCode) Equal(other *TypeCode) bool {
	return typeCodesEqual(tc, other, 0)
}

func typeCodesEqual(a, b *TypeCode, depth int) bool {
	if a == nil || b == nil {
		return a == b
	}
	if depth > maxTypeDepth {
		return false
	}
	if a.Kind != b.Kind || a.ID != b.ID || a.Name != b.Name || a.Bound != b.Bound {
		return false
	}
	if len(a.Members) != len(b.Members) {
		return false
	}
	for i := range a.Members {
		if a.Members[i].Name != b.Members[i].Name {
			return false
		}
		if !typeCodesEqual(a.Members[i].Type, b.Members[i].Type, depth+1) {
			return false
		}
	}
	if a.Content != nil || b.Content != nil {
		return typeCodesEqual(a.Content, b.Content, depth+1)
	}
	return true
}

// WriteTypeCode writes the kind followed by the kind's parameters.
func (e *Encoder) WriteTypeCode(tc *TypeCode) error {
	return e.writeTypeCode(tc, 0)
}

func (e *Encoder) writeTypeCode(tc *TypeCode, depth int) error {
	if tc == nil {
		return badValue("nil TypeCode")
	}
	if depth > maxTypeDepth {
		return badValue("TypeCode nested deeper than %d", maxTypeDepth)
	}
	e.WriteULong(uint32(tc.Kind))
	switch tc.Kind {
	case TkNull, TkVoid, TkShort, TkLong, TkUShort, TkULong, TkBoolean,
		TkOctet, TkAny, TkLongLong, TkULongLong:
		return nil
	case TkString:
		e.WriteULong(tc.Bound)
		return nil
	case TkSequence:
		if err := e.writeTypeCode(tc.Content, depth+1); err != nil {
			return err
		}
		e.WriteULong(tc.Bound)
		return nil
	case TkStruct:
		e.WriteString(tc.ID)
		e.WriteString(tc.Name)
		e.WriteLong(int32(len(tc.Members)))
		for _, m := range tc.Members {
			e.WriteString(m.Name)
			if err := e.writeTypeCode(m.Type, depth+1); err != nil {
				return err
			}
		}
		return nil
	case TkAlias:
		e.WriteString(tc.ID)
		e.WriteString(tc.Name)
		return e.writeTypeCode(tc.Content, depth+1)
	}
	return badValue("unsupported TypeCode kind %s", tc.Kind)
}

func (d *Decoder) ReadTypeCode() (*TypeCode, error) {
	return d.readTypeCode(0)
}

func (d *Decoder) readTypeCode(depth int) (*TypeCode, error) {
	off := d.off
	if depth > maxTypeDepth {
		return nil, malformed(off, "TypeCode nested deeper than %d", maxTypeDepth)
	}
	raw, err := d.ReadULong()
	if err != nil {
		return nil, err
	}
	tc := &TypeCode{Kind: TCKind(raw)}
	switch tc.Kind {
	case TkNull, TkVoid, TkShort, TkLong, TkUShort, TkULong, TkBoolean,
		TkOctet, TkAny, TkLongLong, TkULongLong:
		return tc, nil
	case TkString:
		if tc.Bound, err = d.ReadULong(); err != nil {
			return nil, err
		}
		return tc, nil
	case TkSequence:
		if tc.Content, err = d.readTypeCode(depth + 1); err != nil {
			return nil, err
		}
		if tc.Bound, err = d.ReadULong(); err != nil {
			return nil, err
		}
		return tc, nil
	case TkStruct:
		if tc.ID, err = d.ReadString(); err != nil {
			return nil, err
		}
		if tc.Name, err = d.ReadString(); err != nil {
			return nil, err
		}
		// each member carries at least a name count and a kind
		tc.Members, err = ReadSequence(d, 8, func(d *Decoder) (StructMember, error) {
			name, err := d.ReadString()
			if err != nil {
				return StructMember{}, err
			}
			mt, err := d.readTypeCode(depth + 1)
			if err != nil {
				return StructMember{}, err
			}
			return StructMember{Name: name, Type: mt}, nil
		})
		if err != nil {
			return nil, err
		}
		return tc, nil
	case TkAlias:
		if tc.ID, err = d.ReadString(); err != nil {
			return nil, err
		}
		if tc.Name, err = d.ReadString(); err != nil {
			return nil, err
		}
		if tc.Content, err = d.readTypeCode(depth + 1); err != nil {
			return nil, err
		}
		return tc, nil
	}
	return nil, malformed(off, "unsupported TypeCode kind %s", tc.Kind)
}

// sizeCache remembers minimum encoded sizes per TypeCode for the lifetime
// of one decode, so a sequence does not walk its element type per value.
type sizeCache map[*TypeCode]int

// minEncodedSize is the smallest number of bytes a value of tc can occupy.
func (c sizeCache) minEncodedSize(tc *TypeCode, depth int) int {
	if tc == nil || depth > maxTypeDepth {
		return 0
	}
	if n, ok := c[tc]; ok {
		return n
	}
	n := 0
	switch tc.Kind {
	case TkBoolean, TkOctet:
		n = 1
	case TkShort, TkUShort:
		n = 2
	case TkLong, TkULong, TkString, TkSequence, TkAny:
		n = 4
	case TkLongLong, TkULongLong:
		n = 8
	case TkStruct:
		for _, m := range tc.Members {
			n += c.minEncodedSize(m.Type, depth+1)
		}
	case TkAlias:
		n = c.minEncodedSize(tc.Content, depth+1)
	}
	c[tc] = n
	return n
}
