package registry

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec is component A: bidirectional conversion between MessagePack bytes
// and the typed message structs in messages.go. Encoding always emits
// named map entries, never positional arrays, to remain compatible with
// skill implementations (spec §4.A).
type Codec struct{}

// NewCodec returns a Codec. It is stateless; a single instance may be
// shared across goroutines.
func NewCodec() *Codec {
	return &Codec{}
}

// Encode serializes v to MessagePack with named struct fields.
func (c *Codec) Encode(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

// Decode deserializes data into v (which must be a pointer). It returns a
// *Error classified per classifyDecodeError on failure, ready to be
// translated directly into a CoAP response status (spec §4.A/§7).
func (c *Codec) Decode(data []byte, v any) *Error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		return classifyDecodeError(err)
	}
	return nil
}

// classifyDecodeError distinguishes a type-mismatch decode failure (field
// present but wrong shape) from every other parse failure (truncated, not
// MessagePack), mapping onto the two CoAP statuses
// named in spec §7. msgpack/v5 does not expose a single well-known
// TypeMismatch error type the way the reference implementation's
// rmp_serde crate does, so this inspects the decoder's reported error
// message, matching the reference's intent: a structurally
// present-but-wrong-kind field is TypeMismatch, anything else
// (truncation, invalid encoding, EOF) is MalformedFraming. A field missing
// from the payload is not an error: the decoder leaves it at its zero value.
func classifyDecodeError(err error) *Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return newError(MalformedFraming, "truncated message: %v", err)
	}
	if isDecodeTypeMismatch(err) {
		return newError(TypeMismatch, "type mismatch: %v", err)
	}
	return newError(MalformedFraming, "malformed payload: %v", err)
}

// isDecodeTypeMismatch recognizes msgpack/v5's decode-time "unexpected
// code" / "can't decode" error text, which indicates the decoder found a
// wire value whose MessagePack type does not match the Go destination
// field's type — the wire-format analogue of rmp_serde's TypeMismatch.
func isDecodeTypeMismatch(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "unexpected code") ||
		strings.Contains(msg, "can't decode") ||
		strings.Contains(msg, "unsupported")
}
