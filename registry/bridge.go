package registry

import (
	"context"
	"fmt"

	"github.com/plgd-dev/go-coap/v2/message/codes"
	"vap.design/skillregistry/capability"
	"vap.design/skillregistry/telemetry"
)

// Response is the host's reply to one inbound Event: a CoAP-equivalent
// status plus an already-encoded payload (spec §6.4).
type Response struct {
	Status  codes.Code
	Payload []byte
}

// EventKind discriminates the inbound events the host bridge delivers to
// the embedding host.
type EventKind int

const (
	EventConnect EventKind = iota
	EventRegisterIntents
	EventNotification
	EventQuery
	EventClose
)

// Event is one inbound skill message handed to the host, paired with a
// single-shot Reply channel the host must send exactly one Response on.
type Event struct {
	Kind EventKind

	Connect         *MsgConnect
	RegisterIntents *MsgRegisterIntents
	Notification    *MsgNotification
	Query           *MsgQuery
	Close           *MsgSkillClose

	Reply chan<- Response
}

// RequestAck is what the host sends back to acknowledge the capabilities
// produced by an activated skill, after observing them via
// ActivationReply.Ack (spec §4.D's "retain that sender's receiver to await
// the host's acknowledgement").
type RequestAck struct {
	Code codes.Code
}

// ActivationReply is what HostBridge.ActivateSkill resolves with: the
// capabilities the skill produced, and a one-shot sender the host must use
// to acknowledge them. That acknowledgement travels back through the
// notification handler's per-datum status code (spec §4.D/§4.F).
type ActivationReply struct {
	Capabilities []capability.PlainCapability
	Ack          chan<- RequestAck
}

// HostBridge is component F: an event channel exposing inbound skill
// traffic to the host, and an activation API the host uses to drive
// skills. It does not own the CoAP transport directly — it allocates
// request ids, manages the two pending tables, and hands serialized bytes
// to the outbound pusher (component E).
type HostBridge struct {
	events     chan Event
	ids        *IDAllocator
	activation *PendingTable[ActivationReply]
	canAnswer  *PendingTable[float32]
	pusher     *Pusher
	codec      *Codec
	logger     telemetry.Logger
	tracer     telemetry.Tracer
}

// NewHostBridge wires a HostBridge over the given pending tables, id
// allocator, and outbound pusher. eventCapacity bounds the inbound event
// channel (spec §5 suggests 20).
func NewHostBridge(
	ids *IDAllocator,
	activation *PendingTable[ActivationReply],
	canAnswer *PendingTable[float32],
	pusher *Pusher,
	codec *Codec,
	eventCapacity int,
	logger telemetry.Logger,
	tracer telemetry.Tracer,
) *HostBridge {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	return &HostBridge{
		events:     make(chan Event, eventCapacity),
		ids:        ids,
		activation: activation,
		canAnswer:  canAnswer,
		pusher:     pusher,
		codec:      codec,
		logger:     logger,
		tracer:     tracer,
	}
}

// Events returns the channel of inbound events for the host to consume.
func (b *HostBridge) Events() <-chan Event {
	return b.events
}

// Send hands ev to the host's event stream. The dispatcher (component D)
// creates ev.Reply itself and is responsible for awaiting a value on it
// after Send returns.
func (b *HostBridge) Send(ctx context.Context, ev Event) error {
	select {
	case b.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ActivateSkill allocates a fresh request id, stamps it into msg, inserts a
// pending entry in the activation table, serializes msg, hands it to the
// outbound pusher, and awaits the pending entry's resolution (spec §4.F).
func (b *HostBridge) ActivateSkill(ctx context.Context, skillID string, msg MsgSkillRequest) (ActivationReply, error) {
	ctx, span := b.tracer.Start(ctx, "bridge.activate_skill")
	defer span.End()

	id := b.ids.Next()
	msg.RequestID = id

	ch := b.activation.Insert(id, skillID)

	data, err := b.codec.Encode(msg)
	if err != nil {
		span.RecordError(err)
		return ActivationReply{}, fmt.Errorf("activate skill %q: encode request: %w", skillID, err)
	}

	if err := b.pusher.Push(ctx, skillID, data); err != nil {
		span.RecordError(err)
		return ActivationReply{}, fmt.Errorf("activate skill %q: push: %w", skillID, err)
	}

	select {
	case reply, ok := <-ch:
		if !ok {
			return ActivationReply{}, ErrChannelClosed
		}
		return reply, nil
	case <-ctx.Done():
		return ActivationReply{}, ctx.Err()
	}
}

// SkillsAnswerable probes every id in skillIDs with a can-you-answer
// request and returns one MsgNotification batch per skill, each carrying a
// single CanYouAnswer datum with that skill's confidence (spec §4.F).
func (b *HostBridge) SkillsAnswerable(ctx context.Context, skillIDs []string, request MsgSkillRequest) ([]MsgNotification, error) {
	ctx, span := b.tracer.Start(ctx, "bridge.skills_answerable")
	defer span.End()

	out := make([]MsgNotification, 0, len(skillIDs))
	for _, skillID := range skillIDs {
		id := b.ids.Next()
		probe := request
		probe.RequestID = id

		ch := b.canAnswer.Insert(id, skillID)

		data, err := b.codec.Encode(probe)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("skills answerable %q: encode probe: %w", skillID, err)
		}
		if err := b.pusher.Push(ctx, skillID, data); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("skills answerable %q: push: %w", skillID, err)
		}

		var confidence float32
		select {
		case c, ok := <-ch:
			if ok {
				confidence = c
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		out = append(out, MsgNotification{
			SkillID: skillID,
			Data:    []NotificationDatum{NewCanYouAnswerDatum(id, confidence)},
		})
	}
	return out, nil
}
