// Package capability implements the Value/AssociativeMap/PlainCapability
// data model used to describe skill output (spoken text, sound, images,
// log entries, …). The model is adopted verbatim from the VAP skill
// protocol's reference implementation; the core treats its contents as
// opaque and only needs to encode, decode, and compare it.
package capability

import "math"

// floatEpsilon is the tolerance used when comparing F32/F64 values.
const floatEpsilon = 1e-6

// Kind discriminates the variants of Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindI8
	KindI16
	KindI32
	KindI64
	KindU8
	KindU16
	KindU32
	KindU64
	KindF32
	KindF64
	KindString
	KindBinary
	KindArray
	KindMap
)

// Value is a tagged union over the MessagePack-representable types used in
// capability payloads and AssociativeMap keys/values. Only one of the
// fields matching Kind is meaningful at a time; the zero value is KindNil.
type Value struct {
	kind Kind

	b    bool
	i    int64
	u    uint64
	f32  float32
	f64  float64
	str  string
	bin  []byte
	arr  []Value
	mp   *AssociativeMap
}

func NilValue() Value                 { return Value{kind: KindNil} }
func BoolValue(v bool) Value          { return Value{kind: KindBool, b: v} }
func I8Value(v int8) Value            { return Value{kind: KindI8, i: int64(v)} }
func I16Value(v int16) Value          { return Value{kind: KindI16, i: int64(v)} }
func I32Value(v int32) Value          { return Value{kind: KindI32, i: int64(v)} }
func I64Value(v int64) Value          { return Value{kind: KindI64, i: v} }
func U8Value(v uint8) Value           { return Value{kind: KindU8, u: uint64(v)} }
func U16Value(v uint16) Value         { return Value{kind: KindU16, u: uint64(v)} }
func U32Value(v uint32) Value         { return Value{kind: KindU32, u: uint64(v)} }
func U64Value(v uint64) Value         { return Value{kind: KindU64, u: v} }
func F32Value(v float32) Value        { return Value{kind: KindF32, f32: v} }
func F64Value(v float64) Value        { return Value{kind: KindF64, f64: v} }
func StringValue(v string) Value      { return Value{kind: KindString, str: v} }
func BinaryValue(v []byte) Value      { return Value{kind: KindBinary, bin: v} }
func ArrayValue(v []Value) Value      { return Value{kind: KindArray, arr: v} }
func MapValue(v *AssociativeMap) Value {
	return Value{kind: KindMap, mp: v}
}

// Kind returns the discriminant of v.
func (v Value) Kind() Kind { return v.kind }

// Equal reports whether v and other represent the same value. Two values
// are equal iff their kinds match and their contents compare equal; for
// floats, equality uses an epsilon-tolerant difference rather than exact
// bit comparison, matching the VAP reference implementation.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNil:
		return true
	case KindBool:
		return v.b == other.b
	case KindI8, KindI16, KindI32, KindI64:
		return v.i == other.i
	case KindU8, KindU16, KindU32, KindU64:
		return v.u == other.u
	case KindF32:
		return floatEqual(float64(v.f32), float64(other.f32))
	case KindF64:
		return floatEqual(v.f64, other.f64)
	case KindString:
		return v.str == other.str
	case KindBinary:
		return bytesEqual(v.bin, other.bin)
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindMap:
		return v.mp.Equal(other.mp)
	default:
		return false
	}
}

// floatEqual reports whether the absolute difference of a and b is below
// floatEpsilon, and treats two NaNs as equal. Two infinities of the same
// sign are not equal, since their difference is NaN.
func floatEqual(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < floatEpsilon || math.IsNaN(a) && math.IsNaN(b)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Hash returns a hash of v that depends only on its Kind, not its content.
// This intentionally collapses every value of a given kind into a single
// bucket — correctness relies entirely on Equal, not on Hash quality. This
// mirrors the reference implementation's Hash impl (which hashes only
// core::mem::discriminant(self)) and is preserved for wire-compat even
// though it is pathological; see DESIGN.md.
func (v Value) Hash() uint64 {
	return uint64(v.kind)
}
