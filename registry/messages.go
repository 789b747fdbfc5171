package registry

import "vap.design/skillregistry/capability"

// SystemSelfID is the reserved client id used by the host itself when
// addressing notifications, rather than a specific downstream client
// device.
const SystemSelfID = "vap.SYSTEM"

// ProtocolVersion is the compiled-in VAP protocol version string this
// registry accepts on connect. The version gate in spec §4.D/§8 Property 2
// compares against this literal.
const ProtocolVersion = "Alpha"

type (
	// MsgConnect is sent by a skill to attach to the registry.
	MsgConnect struct {
		ID                        string `msgpack:"id"`
		Name                      string `msgpack:"name"`
		VapVersion                string `msgpack:"vapVersion"`
		UniqueAuthenticationToken string `msgpack:"uniqueAuthenticationToken"`
	}

	// MsgConnectResponse is the host's reply to a successful connect.
	MsgConnectResponse struct {
		Langs                     []Language `msgpack:"langs"`
		UniqueAuthenticationToken *string    `msgpack:"uniqueAuthenticationToken"`
	}

	// Language describes one locale the host/skill pairing supports.
	Language struct {
		Country  string  `msgpack:"country"`
		Language string  `msgpack:"language"`
		Extra    *string `msgpack:"extra"`
	}

	// MsgRegisterIntents carries a skill's opaque NLU declaration.
	MsgRegisterIntents struct {
		SkillID string  `msgpack:"skillId"`
		NluData NluData `msgpack:"nluData"`
	}

	// NluData is per-language intent/entity metadata. The registry core
	// never interprets its contents — it is stored and forwarded opaquely.
	NluData struct {
		Intents  []NluDataIntent  `msgpack:"intents"`
		Entities []NluDataEntity  `msgpack:"entities"`
	}

	// NluDataIntent declares a single intent and its utterance templates.
	NluDataIntent struct {
		Name        string                   `msgpack:"name"`
		Utterances  []NluDataIntentUtterance `msgpack:"utterances"`
	}

	// NluDataIntentUtterance is one training utterance with its slot
	// bindings.
	NluDataIntentUtterance struct {
		Utterance string         `msgpack:"utterance"`
		Slots     []NluDataSlot  `msgpack:"slots"`
	}

	// NluDataSlot binds a named slot in an utterance to an entity.
	NluDataSlot struct {
		Name   string `msgpack:"name"`
		Entity string `msgpack:"entity"`
	}

	// NluDataEntity declares an entity and its accepted values.
	NluDataEntity struct {
		Name   string              `msgpack:"name"`
		Strict bool                `msgpack:"strict"`
		Data   []NluDataEntityData `msgpack:"data"`
	}

	// NluDataEntityData is one accepted entity value plus its synonyms.
	NluDataEntityData struct {
		Value    string   `msgpack:"value"`
		Synonyms []string `msgpack:"synonyms"`
	}

	// MsgRegisterIntentsResponse is the (empty) reply to registerIntents.
	MsgRegisterIntentsResponse struct{}

	// ClientDataCapability names a capability kind a client declares
	// support for, with an opaque version string.
	ClientDataCapability struct {
		Name    string `msgpack:"name"`
		Version string `msgpack:"version"`
	}

	// ClientData identifies the client (or the host itself, via
	// SystemSelfID) originating a skill request, plus its declared
	// capabilities.
	ClientData struct {
		SystemID     string                 `msgpack:"systemId"`
		Capabilities []ClientDataCapability `msgpack:"capabilities"`
	}

	// RequestSlot is a resolved slot value for an intent request.
	RequestSlot struct {
		Name  string `msgpack:"name"`
		Value string `msgpack:"value"`
	}

	// RequestData describes what is being asked of the skill: an intent
	// invocation, a bare event, or a can-you-answer probe.
	RequestData struct {
		Type   string        `msgpack:"type"`
		Intent *string       `msgpack:"intent"`
		Locale *string       `msgpack:"locale"`
		Slots  []RequestSlot `msgpack:"slots"`
	}

	// MsgSkillRequest activates a skill: it is pushed to the skill's
	// observe resource by the outbound pusher (component E) after the
	// host bridge stamps a fresh RequestID into it.
	MsgSkillRequest struct {
		RequestID uint64      `msgpack:"requestId"`
		Client    ClientData  `msgpack:"client"`
		Request   RequestData `msgpack:"request"`
	}

	// NotificationDatum is one entry in a MsgNotification batch. Exactly
	// one of StandAlone/Requested/CanYouAnswer's fields is meaningful,
	// selected by Type.
	NotificationDatum struct {
		Type         string                        `msgpack:"type"`
		ClientID     string                        `msgpack:"clientId,omitempty"`
		RequestID    uint64                         `msgpack:"requestId"`
		Capabilities []capability.PlainCapability   `msgpack:"capabilities,omitempty"`
		Confidence   float32                        `msgpack:"confidence"`
	}

	// MsgNotification carries a skill-originated batch of correlated
	// replies and/or standalone broadcasts.
	MsgNotification struct {
		SkillID string              `msgpack:"skillId"`
		Data    []NotificationDatum `msgpack:"data"`
	}

	// NotificationResponseDatum mirrors one input NotificationDatum with
	// the host-resolved CoAP-equivalent status code for that entry.
	NotificationResponseDatum struct {
		Type      string `msgpack:"type"`
		ClientID  string `msgpack:"clientId,omitempty"`
		RequestID uint64 `msgpack:"requestId"`
		Code      uint32 `msgpack:"code"`
	}

	// MsgNotificationResponse is the reply to a notification POST whose
	// batch contained no StandAlone entries (spec §4.D).
	MsgNotificationResponse struct {
		Data []NotificationResponseDatum `msgpack:"data"`
	}

	// QueryData is the payload shape shared by MsgQuery and
	// MsgQueryResponse.
	QueryData struct {
		ClientID     string                        `msgpack:"clientId"`
		Capabilities []capability.PlainCapability  `msgpack:"capabilities"`
	}

	// MsgQuery asks the host a free-form capability query on behalf of a
	// client.
	MsgQuery struct {
		SkillID string    `msgpack:"skillId"`
		Data    QueryData `msgpack:"data"`
	}

	// MsgQueryResponse is the host's answer to a MsgQuery.
	MsgQueryResponse struct {
		Data QueryData `msgpack:"data"`
	}

	// MsgSkillClose detaches a skill.
	MsgSkillClose struct {
		SkillID string `msgpack:"skillId"`
	}
)

// Notification datum type discriminants, matching the "type" field used on
// the wire.
const (
	NotificationTypeStandAlone   = "standAlone"
	NotificationTypeRequested    = "requested"
	NotificationTypeCanYouAnswer = "canYouAnswer"
)

// NewStandAloneDatum builds a StandAlone notification entry.
func NewStandAloneDatum(clientID string, caps []capability.PlainCapability) NotificationDatum {
	return NotificationDatum{Type: NotificationTypeStandAlone, ClientID: clientID, Capabilities: caps}
}

// NewRequestedDatum builds a Requested notification entry.
func NewRequestedDatum(requestID uint64, caps []capability.PlainCapability) NotificationDatum {
	return NotificationDatum{Type: NotificationTypeRequested, RequestID: requestID, Capabilities: caps}
}

// NewCanYouAnswerDatum builds a CanYouAnswer notification entry.
func NewCanYouAnswerDatum(requestID uint64, confidence float32) NotificationDatum {
	return NotificationDatum{Type: NotificationTypeCanYouAnswer, RequestID: requestID, Confidence: confidence}
}

// NewRequestedResult builds a Requested response datum with the given
// resolved status code.
func NewRequestedResult(requestID uint64, code uint32) NotificationResponseDatum {
	return NotificationResponseDatum{Type: NotificationTypeRequested, RequestID: requestID, Code: code}
}

// NewCanYouAnswerResult builds a CanYouAnswer response datum with the given
// resolved status code.
func NewCanYouAnswerResult(requestID uint64, code uint32) NotificationResponseDatum {
	return NotificationResponseDatum{Type: NotificationTypeCanYouAnswer, RequestID: requestID, Code: code}
}

// NewStandAloneResult builds a StandAlone response datum with the given
// resolved status code.
func NewStandAloneResult(clientID string, code uint32) NotificationResponseDatum {
	return NotificationResponseDatum{Type: NotificationTypeStandAlone, ClientID: clientID, Code: code}
}
