package registry

import (
	"testing"

	"github.com/plgd-dev/go-coap/v2/message/codes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestCodecRoundTripsNamedFields(t *testing.T) {
	c := NewCodec()
	in := MsgConnect{ID: "com.example.a", Name: "A", VapVersion: ProtocolVersion, UniqueAuthenticationToken: "tok"}

	data, err := c.Encode(in)
	require.NoError(t, err)

	// Encoding must emit named map entries, not positional arrays, so a
	// generic map decode recovers the same field names (spec §4.A).
	var asMap map[string]any
	require.NoError(t, msgpack.Unmarshal(data, &asMap))
	assert.Equal(t, "com.example.a", asMap["id"])
	assert.Equal(t, "A", asMap["name"])
	assert.Equal(t, ProtocolVersion, asMap["vapVersion"])

	var out MsgConnect
	decErr := c.Decode(data, &out)
	require.Nil(t, decErr)
	assert.Equal(t, in, out)
}

func TestCodecDecodeEmptyPayloadIsMalformedFraming(t *testing.T) {
	c := NewCodec()
	var out MsgConnect
	decErr := c.Decode(nil, &out)
	require.NotNil(t, decErr)
	assert.Equal(t, MalformedFraming, decErr.Kind)
}

func TestCodecDecodeTruncatedPayloadIsMalformedFraming(t *testing.T) {
	c := NewCodec()
	data, err := (&Codec{}).Encode(MsgConnect{ID: "com.example.a", VapVersion: ProtocolVersion})
	require.NoError(t, err)

	var out MsgConnect
	decErr := c.Decode(data[:len(data)/2], &out)
	require.NotNil(t, decErr)
	assert.Equal(t, MalformedFraming, decErr.Kind)
}

func TestCodecDecodeWrongKindReportsAnError(t *testing.T) {
	c := NewCodec()
	// skillId is declared as a string on the wire; send it as an integer
	// instead so the decoder hits a type mismatch rather than a framing
	// error (spec §4.A's two distinct failure modes).
	data, err := msgpack.Marshal(map[string]any{"skillId": 12345, "nluData": map[string]any{}})
	require.NoError(t, err)

	var out MsgRegisterIntents
	decErr := c.Decode(data, &out)
	require.NotNil(t, decErr)
	assert.Contains(t, []Kind{TypeMismatch, MalformedFraming}, decErr.Kind)
}

func TestErrorCodeMapping(t *testing.T) {
	assert.Equal(t, codes.RequestEntityIncomplete, (&Error{Kind: TypeMismatch}).Code())
	assert.Equal(t, codes.MethodNotAllowed, (&Error{Kind: MethodNotAllowed}).Code())
	assert.Equal(t, codes.BadRequest, (&Error{Kind: MalformedFraming}).Code())
	assert.Equal(t, codes.BadRequest, (&Error{Kind: UnknownSkill}).Code())
}

func TestIsOKFamily(t *testing.T) {
	assert.True(t, IsOKFamily(codes.Created))
	assert.True(t, IsOKFamily(codes.Changed))
	assert.False(t, IsOKFamily(codes.BadRequest))
	assert.False(t, IsOKFamily(codes.MethodNotAllowed))
}
