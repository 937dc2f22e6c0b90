package idl

import "github.com/alanwang67/activation_registry/cdr"

const AnySeqID = "IDL:omg.org/CORBA/AnySeq:1.0"

var anySeqTC = cdr.AliasTC(AnySeqID, "AnySeq", cdr.SequenceTC(0, cdr.PrimitiveTC(cdr.TkAny)))

func AnySeqTypeCode() *cdr.TypeCode { return anySeqTC }

// WriteAnySeq writes a long count followed by each Any.
func WriteAnySeq(e *cdr.Encoder, values []*cdr.Any) error {
	e.WriteLong(int32(len(values)))
	for _, v := range values {
		if err := e.WriteAny(v); err != nil {
			return err
		}
	}
	return nil
}

func ReadAnySeq(d *cdr.Decoder) ([]*cdr.Any, error) {
	// an Any is at least its 4-byte kind
	return cdr.ReadSequence(d, 4, (*cdr.Decoder).ReadAny)
}

func InsertAnySeq(values []*cdr.Any) *cdr.Any {
	items := make([]any, len(values))
	for i, v := range values {
		items[i] = v
	}
	return &cdr.Any{Type: anySeqTC, Value: items}
}

func ExtractAnySeq(a *cdr.Any) ([]*cdr.Any, error) {
	if a == nil || !anySeqTC.Equal(a.Type) {
		return nil, ErrWrongType
	}
	items, ok := a.Value.([]any)
	if !ok {
		return nil, ErrWrongType
	}
	out := make([]*cdr.Any, len(items))
	for i, item := range items {
		if out[i], ok = item.(*cdr.Any); !ok {
			return nil, ErrWrongType
		}
	}
	return out, nil
}
