package wire

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/binary"
)

// DefaultHMACSalt is the development-profile shared secret named in
// spec.md §4.5. Production deployments must configure their own.
const DefaultHMACSalt = "asdfasdf"

// AuthTypeHMAC is the Message.auth_type value selecting HMAC-SHA1
// authentication (as opposed to unsolicited/unauthenticated frames used
// only for the connection banner).
const AuthTypeHMAC int32 = 1

// SignCommand computes HMAC-SHA1(salt, be32(len(commandBytes)) ||
// commandBytes), per spec.md §4.5.
func SignCommand(salt []byte, commandBytes []byte) []byte {
	mac := hmac.New(sha1.New, salt)
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(commandBytes)))
	mac.Write(lenPrefix[:])
	mac.Write(commandBytes)
	return mac.Sum(nil)
}

// VerifyCommand reports whether mac is the correct HMAC-SHA1 signature
// for commandBytes under salt.
func VerifyCommand(salt []byte, commandBytes []byte, mac []byte) bool {
	expected := SignCommand(salt, commandBytes)
	return hmac.Equal(expected, mac)
}

// NewAuthenticatedMessage builds a Message wrapping commandBytes with an
// HMAC-SHA1 signature under salt for the given connection identity.
func NewAuthenticatedMessage(identity int64, salt []byte, commandBytes []byte) *Message {
	return &Message{
		CommandBytes: commandBytes,
		AuthType:     AuthTypeHMAC,
		HMACAuth: &HMACAuth{
			Identity: identity,
			HMAC:     SignCommand(salt, commandBytes),
		},
	}
}
