package capability

// Kind names recognized by convention for PlainCapability.Name /
// ClientDataCapability.Name. The core never branches on these — they are
// carried only as a documented vocabulary, recovered from the VAP
// reference implementation's capability taxonomy.
const (
	NameSound        = "sound"
	NameText         = "text"
	NameImage        = "image"
	NameWakeWordSync = "wakeWordSync"
	NameWakeWordAudio = "wakeWordAudio"
	NameLog          = "log"
	NameDynamicNLU   = "dynamicNLU"
)

// Code is the reference implementation's compact numeric encoding for the
// named capability kinds above, preserved here as documentation for
// implementers that need to interoperate with skills using the numeric
// form rather than the string name.
type Code uint8

const (
	CodeSound Code = iota
	CodeText
	CodeImage
	CodeWakeWordSync
	CodeWakeWordAudio
	CodeLog
	CodeDynamicNLU
)

// codeNames maps Code to its canonical string name.
var codeNames = map[Code]string{
	CodeSound:         NameSound,
	CodeText:          NameText,
	CodeImage:         NameImage,
	CodeWakeWordSync:  NameWakeWordSync,
	CodeWakeWordAudio: NameWakeWordAudio,
	CodeLog:           NameLog,
	CodeDynamicNLU:    NameDynamicNLU,
}

// String returns the canonical name for c, or "" if c is not recognized.
func (c Code) String() string {
	return codeNames[c]
}
