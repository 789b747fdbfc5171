package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestValueEqualByKindAndContent(t *testing.T) {
	assert.True(t, StringValue("hi").Equal(StringValue("hi")))
	assert.False(t, StringValue("hi").Equal(StringValue("bye")))
	assert.False(t, StringValue("1").Equal(I64Value(1)))
}

func TestValueEqualFloatEpsilon(t *testing.T) {
	assert.True(t, F64Value(1.0).Equal(F64Value(1.0+1e-9)))
	assert.False(t, F64Value(1.0).Equal(F64Value(1.1)))
}

func TestValueHashIgnoresContent(t *testing.T) {
	a := I64Value(1)
	b := I64Value(2)
	assert.Equal(t, a.Hash(), b.Hash(), "Hash must depend only on Kind")
	assert.False(t, a.Equal(b))
}

func TestValueRoundTripMsgpack(t *testing.T) {
	cases := []Value{
		NilValue(),
		BoolValue(true),
		I64Value(-7),
		U64Value(7),
		F64Value(3.5),
		StringValue("hello"),
		BinaryValue([]byte{1, 2, 3}),
		ArrayValue([]Value{I64Value(1), StringValue("x")}),
	}
	for _, v := range cases {
		data, err := msgpack.Marshal(v)
		require.NoError(t, err)

		var out Value
		require.NoError(t, msgpack.Unmarshal(data, &out))
		assert.True(t, v.Equal(out), "round-trip changed value kind=%v", v.Kind())
	}
}

func TestAssociativeMapSetGetAndEqual(t *testing.T) {
	m := NewAssociativeMap()
	m.Set(StringValue("key"), I64Value(42))

	v, ok := m.Get(StringValue("key"))
	require.True(t, ok)
	assert.True(t, v.Equal(I64Value(42)))

	_, ok = m.Get(StringValue("missing"))
	assert.False(t, ok)

	other := NewAssociativeMap()
	other.Set(StringValue("key"), I64Value(42))
	assert.True(t, m.Equal(other))
}

func TestAssociativeMapRoundTripMsgpack(t *testing.T) {
	m := NewAssociativeMap()
	m.Set(StringValue("a"), I64Value(1))
	m.Set(StringValue("b"), StringValue("two"))

	data, err := msgpack.Marshal(m)
	require.NoError(t, err)

	out := NewAssociativeMap()
	require.NoError(t, msgpack.Unmarshal(data, out))
	assert.True(t, m.Equal(out))
}
