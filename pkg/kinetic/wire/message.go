// Package wire implements the Kinetic on-the-wire types: the Message and
// Command protobuf messages of spec.md §4.5, and the frame codec that
// carries them. Marshal/Unmarshal are hand-written, field by field,
// directly encoding and decoding varints and length-delimited tags
// against the wire layout spec.md §4.5 specifies, since no protoc
// toolchain is available here and this message set is small and fixed.
package wire

import (
	"fmt"
)

// MessageType enumerates the Command operations this gateway issues or
// observes. Only the subset spec.md's Kinetic blob layer actually uses
// is modeled: PUT, GET, GETKEYRANGE, DELETE, and the connection banner.
type MessageType int32

const (
	MessageType_INVALID_MESSAGE_TYPE MessageType = 0
	MessageType_GET                  MessageType = 2
	MessageType_GET_RESPONSE         MessageType = 3
	MessageType_PUT                  MessageType = 4
	MessageType_PUT_RESPONSE         MessageType = 5
	MessageType_DELETE               MessageType = 6
	MessageType_DELETE_RESPONSE      MessageType = 7
	MessageType_GETKEYRANGE          MessageType = 8
	MessageType_GETKEYRANGE_RESPONSE MessageType = 9
	MessageType_GETLOG               MessageType = 30
	MessageType_GETLOG_RESPONSE      MessageType = 31
)

// StatusCode mirrors the Kinetic protocol's Command.Status.StatusCode
// values this client interprets.
type StatusCode int32

const (
	StatusCode_NOT_ATTEMPTED StatusCode = 0
	StatusCode_SUCCESS       StatusCode = 1
	StatusCode_NOT_FOUND     StatusCode = 5
	StatusCode_INTERNAL_ERROR StatusCode = 9
)

// Header is Command.header: the per-RPC envelope carrying sequencing and
// connection identity, per spec.md §4.5.
type Header struct {
	MessageType     MessageType
	Sequence        int64
	AckSequence     int64
	ConnectionID    int64
	ClusterVersion  int64
	TimeoutMillis   int64
	Priority        int32
}

// KeyValue is Command.body.keyValue: the PUT/GET/DELETE key addressing.
type KeyValue struct {
	Key      []byte
	NewValue []byte // tag used by some Kinetic ops for a rename; unused here but kept for wire-fidelity
}

// Range is Command.body.range: the GETKEYRANGE start/end key bounds.
type Range struct {
	StartKey     []byte
	EndKey       []byte
	StartKeyInclusive bool
	EndKeyInclusive   bool
	MaxReturned       int32
	Keys              [][]byte // populated in a GETKEYRANGE_RESPONSE
}

// Status is Command.status: the reply outcome.
type Status struct {
	Code   StatusCode
	Detail string
}

// Body is Command.body: exactly one of KeyValue or Range is set,
// depending on Header.MessageType.
type Body struct {
	KeyValue *KeyValue
	Range    *Range
}

// Command is the protobuf message carried inside Message.CommandBytes.
type Command struct {
	Header *Header
	Body   *Body
	Status *Status
}

// HMACAuth is Message.hmacAuth: the identity+signature pair proving the
// sender holds the connection's shared secret.
type HMACAuth struct {
	Identity int64
	HMAC     []byte
}

// Message is the outermost protobuf type carried by a Frame's message
// bytes, per spec.md §4.5.
type Message struct {
	CommandBytes []byte
	AuthType     int32
	HMACAuth     *HMACAuth
}

func (m *Message) String() string { return fmt.Sprintf("Message{authType=%d}", m.AuthType) }

func (c *Command) String() string { return fmt.Sprintf("Command{header=%+v}", c.Header) }
