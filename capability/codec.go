package capability

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// EncodeMsgpack writes v as its native MessagePack representation (not a
// tagged struct) — a nil writes msgpack nil, a string writes a msgpack
// string, and so on. This matches the wire shape produced by the
// reference implementation's untagged Value serialization.
func (v Value) EncodeMsgpack(enc *msgpack.Encoder) error {
	switch v.kind {
	case KindNil:
		return enc.EncodeNil()
	case KindBool:
		return enc.EncodeBool(v.b)
	case KindI8, KindI16, KindI32, KindI64:
		return enc.EncodeInt64(v.i)
	case KindU8, KindU16, KindU32, KindU64:
		return enc.EncodeUint64(v.u)
	case KindF32:
		return enc.EncodeFloat32(v.f32)
	case KindF64:
		return enc.EncodeFloat64(v.f64)
	case KindString:
		return enc.EncodeString(v.str)
	case KindBinary:
		return enc.EncodeBytes(v.bin)
	case KindArray:
		if err := enc.EncodeArrayLen(len(v.arr)); err != nil {
			return err
		}
		for _, e := range v.arr {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return nil
	case KindMap:
		return v.mp.EncodeMsgpack(enc)
	default:
		return fmt.Errorf("capability: unknown value kind %d", v.kind)
	}
}

// DecodeMsgpack reconstructs v from its native MessagePack representation.
// MessagePack does not retain a declared integer width: fixints and the
// int8..int64 codes decode as KindI64, the uint8..uint64 codes as KindU64.
// EncodeMsgpack writes every integer with the int64/uint64 code, so a
// signed or unsigned value keeps its signedness across a round trip, but
// an I8/I16/I32 (or U8/U16/U32) comes back as I64 (or U64) and, because
// Equal compares Kind, no longer compares equal to the original. float32
// and float64 decode as KindF32 and KindF64 respectively.
func (v *Value) DecodeMsgpack(dec *msgpack.Decoder) error {
	code, err := dec.PeekCode()
	if err != nil {
		return err
	}
	switch {
	case code == msgpcode.Nil:
		if err := dec.DecodeNil(); err != nil {
			return err
		}
		*v = NilValue()
		return nil
	case msgpcode.IsFixedNum(code) || code == msgpcode.Int8 || code == msgpcode.Int16 ||
		code == msgpcode.Int32 || code == msgpcode.Int64:
		i, err := dec.DecodeInt64()
		if err != nil {
			return err
		}
		*v = I64Value(i)
		return nil
	case code == msgpcode.Uint8 || code == msgpcode.Uint16 || code == msgpcode.Uint32 || code == msgpcode.Uint64:
		u, err := dec.DecodeUint64()
		if err != nil {
			return err
		}
		*v = U64Value(u)
		return nil
	case code == msgpcode.Float:
		f, err := dec.DecodeFloat32()
		if err != nil {
			return err
		}
		*v = F32Value(f)
		return nil
	case code == msgpcode.Double:
		f, err := dec.DecodeFloat64()
		if err != nil {
			return err
		}
		*v = F64Value(f)
		return nil
	case code == msgpcode.True || code == msgpcode.False:
		b, err := dec.DecodeBool()
		if err != nil {
			return err
		}
		*v = BoolValue(b)
		return nil
	case msgpcode.IsFixedString(code) || code == msgpcode.Str8 || code == msgpcode.Str16 || code == msgpcode.Str32:
		s, err := dec.DecodeString()
		if err != nil {
			return err
		}
		*v = StringValue(s)
		return nil
	case code == msgpcode.Bin8 || code == msgpcode.Bin16 || code == msgpcode.Bin32:
		b, err := dec.DecodeBytes()
		if err != nil {
			return err
		}
		*v = BinaryValue(b)
		return nil
	case msgpcode.IsFixedArray(code) || code == msgpcode.Array16 || code == msgpcode.Array32:
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return err
		}
		arr := make([]Value, n)
		for i := 0; i < n; i++ {
			if err := dec.Decode(&arr[i]); err != nil {
				return err
			}
		}
		*v = ArrayValue(arr)
		return nil
	case msgpcode.IsFixedMap(code) || code == msgpcode.Map16 || code == msgpcode.Map32:
		m := NewAssociativeMap()
		if err := m.DecodeMsgpack(dec); err != nil {
			return err
		}
		*v = MapValue(m)
		return nil
	default:
		return fmt.Errorf("capability: unsupported msgpack code %x for Value", code)
	}
}

// EncodeMsgpack writes m as a native MessagePack map.
func (m *AssociativeMap) EncodeMsgpack(enc *msgpack.Encoder) error {
	if m == nil {
		return enc.EncodeNil()
	}
	if err := enc.EncodeMapLen(m.Len()); err != nil {
		return err
	}
	var encErr error
	m.Range(func(key, val Value) {
		if encErr != nil {
			return
		}
		if err := enc.Encode(key); err != nil {
			encErr = err
			return
		}
		if err := enc.Encode(val); err != nil {
			encErr = err
		}
	})
	return encErr
}

// DecodeMsgpack reconstructs m from a native MessagePack map.
func (m *AssociativeMap) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return err
	}
	if m.buckets == nil {
		m.buckets = make(map[uint64][]entry)
	}
	for i := 0; i < n; i++ {
		var key, val Value
		if err := dec.Decode(&key); err != nil {
			return err
		}
		if err := dec.Decode(&val); err != nil {
			return err
		}
		m.Set(key, val)
	}
	return nil
}
