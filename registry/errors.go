package registry

import (
	"errors"
	"fmt"

	"github.com/plgd-dev/go-coap/v2/message/codes"
)

// Kind identifies a category of error from the taxonomy in spec §7. Each
// Kind carries a default CoAP status mapping via Kind.Code.
type Kind int

const (
	// MalformedFraming: payload is not parseable as MessagePack at all.
	MalformedFraming Kind = iota
	// TypeMismatch: a field is present but has the wrong shape.
	TypeMismatch
	// UnknownSkill: the subject skill id is not in the directory.
	UnknownSkill
	// DuplicateSkill: connect for an id that is already attached.
	DuplicateSkill
	// VersionMismatch: vapVersion does not match ProtocolVersion.
	VersionMismatch
	// MethodNotAllowed: the path/method combination is not routed.
	MethodNotAllowed
	// UnknownRequestID: a notification datum references an id absent
	// from the pending table for its type (activation for Requested,
	// can-you-answer for CanYouAnswer). This never fails the outer request —
	// only the per-datum code (see registry/server.go).
	UnknownRequestID
)

// Error pairs a Kind with context, and maps to a CoAP status per spec §7.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Code returns the default CoAP status for e.Kind.
func (e *Error) Code() codes.Code {
	switch e.Kind {
	case TypeMismatch:
		return codes.RequestEntityIncomplete
	case MethodNotAllowed:
		return codes.MethodNotAllowed
	default:
		return codes.BadRequest
	}
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// ErrChannelClosed is returned internally when a host or pending-table
// reply channel is dropped before it resolves (spec §7's ChannelClosed
// row). No CoAP response is emitted for it; the skill observes a timeout.
var ErrChannelClosed = errors.New("registry: reply channel closed without a response")

// okFamily is the exact set of CoAP statuses treated as "OK" when deciding
// whether a connect/close response should mutate the skill directory.
// Recovered from the reference implementation's literal match arm in
// method_handlers/mod.rs (see DESIGN.md).
var okFamily = map[codes.Code]struct{}{
	codes.Created:  {},
	codes.Deleted:  {},
	codes.Valid:    {},
	codes.Changed:  {},
	codes.Content:  {},
	codes.Continue: {},
}

// IsOKFamily reports whether code is in the OK family from spec §4.D.
func IsOKFamily(code codes.Code) bool {
	_, ok := okFamily[code]
	return ok
}
