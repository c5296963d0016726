package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/rawgate/rawgate/internal/netio"
)

// FrameMagic is the single leading byte of every Kinetic frame.
const FrameMagic = 'F'

// DefaultMaxFrameLength is the default ceiling on message_length and
// value_length, per spec.md §4.5.
const DefaultMaxFrameLength = 1 << 20 // 1 MiB

// ErrBadMagic is returned when a frame's leading byte is not FrameMagic.
var ErrBadMagic = fmt.Errorf("wire: bad frame magic")

// ErrFrameTooBig is returned when a declared length exceeds the
// configured maximum.
var ErrFrameTooBig = fmt.Errorf("wire: frame exceeds maximum length")

// Frame is one length-prefixed unit on the Kinetic wire: magic byte,
// big-endian message and value lengths, then the message and value
// bytes themselves.
type Frame struct {
	MessageBytes []byte
	ValueBytes   []byte
}

// ReadFrame reads one Frame from ch, rejecting a non-'F' magic with
// ErrBadMagic and either length exceeding maxLen with ErrFrameTooBig.
func ReadFrame(ch *netio.Channel, maxLen int, deadlineMS int64) (*Frame, error) {
	var header [9]byte
	if err := ch.ReadExactly(header[:], deadlineMS); err != nil {
		return nil, err
	}
	if header[0] != FrameMagic {
		return nil, ErrBadMagic
	}
	msgLen := binary.BigEndian.Uint32(header[1:5])
	valLen := binary.BigEndian.Uint32(header[5:9])
	if int(msgLen) > maxLen || int(valLen) > maxLen {
		return nil, ErrFrameTooBig
	}

	msg := make([]byte, msgLen)
	if msgLen > 0 {
		if err := ch.ReadExactly(msg, deadlineMS); err != nil {
			return nil, err
		}
	}
	val := make([]byte, valLen)
	if valLen > 0 {
		if err := ch.ReadExactly(val, deadlineMS); err != nil {
			return nil, err
		}
	}
	return &Frame{MessageBytes: msg, ValueBytes: val}, nil
}

// WriteFrame serializes and sends a Frame as a single vectored write, so
// a short write resumes without re-sending already-sent bytes (see
// netio.Channel.SendVectored).
func WriteFrame(ch *netio.Channel, f *Frame, deadlineMS int64) error {
	var header [9]byte
	header[0] = FrameMagic
	binary.BigEndian.PutUint32(header[1:5], uint32(len(f.MessageBytes)))
	binary.BigEndian.PutUint32(header[5:9], uint32(len(f.ValueBytes)))
	iov := [][]byte{header[:], f.MessageBytes, f.ValueBytes}
	return ch.SendVectored(iov, deadlineMS)
}

// EncodeFrame serializes a Frame to a flat byte slice (used by tests and
// by any transport that doesn't need vectored writes).
func EncodeFrame(f *Frame) []byte {
	out := make([]byte, 0, 9+len(f.MessageBytes)+len(f.ValueBytes))
	var header [9]byte
	header[0] = FrameMagic
	binary.BigEndian.PutUint32(header[1:5], uint32(len(f.MessageBytes)))
	binary.BigEndian.PutUint32(header[5:9], uint32(len(f.ValueBytes)))
	out = append(out, header[:]...)
	out = append(out, f.MessageBytes...)
	out = append(out, f.ValueBytes...)
	return out
}
