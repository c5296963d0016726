package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandMarshalRoundTrip(t *testing.T) {
	cmd := &Command{
		Header: &Header{
			MessageType:  MessageType_PUT,
			Sequence:     42,
			ConnectionID: 7,
			TimeoutMillis: 10000,
		},
		Body: &Body{
			KeyValue: &KeyValue{Key: []byte("C-0-1048576")},
		},
	}
	data, err := cmd.Marshal()
	require.NoError(t, err)

	got, err := UnmarshalCommand(data)
	require.NoError(t, err)
	assert.Equal(t, cmd.Header.MessageType, got.Header.MessageType)
	assert.Equal(t, cmd.Header.Sequence, got.Header.Sequence)
	assert.Equal(t, cmd.Header.ConnectionID, got.Header.ConnectionID)
	assert.Equal(t, cmd.Header.TimeoutMillis, got.Header.TimeoutMillis)
	require.NotNil(t, got.Body.KeyValue)
	assert.Equal(t, "C-0-1048576", string(got.Body.KeyValue.Key))
}

func TestCommandWithRangeAndStatusRoundTrip(t *testing.T) {
	cmd := &Command{
		Header: &Header{MessageType: MessageType_GETKEYRANGE_RESPONSE, AckSequence: 5},
		Body: &Body{
			Range: &Range{
				StartKey:          []byte("C-#"),
				EndKey:            []byte("C-#"),
				StartKeyInclusive: true,
				EndKeyInclusive:   true,
				Keys:              [][]byte{[]byte("C-#")},
			},
		},
		Status: &Status{Code: StatusCode_SUCCESS},
	}
	data, err := cmd.Marshal()
	require.NoError(t, err)

	got, err := UnmarshalCommand(data)
	require.NoError(t, err)
	require.NotNil(t, got.Body.Range)
	assert.True(t, got.Body.Range.StartKeyInclusive)
	assert.Equal(t, [][]byte{[]byte("C-#")}, got.Body.Range.Keys)
	assert.Equal(t, StatusCode_SUCCESS, got.Status.Code)
}

func TestMessageMarshalRoundTripWithHMAC(t *testing.T) {
	cmd := &Command{Header: &Header{MessageType: MessageType_GET, Sequence: 1}}
	cmdBytes, err := cmd.Marshal()
	require.NoError(t, err)

	msg := NewAuthenticatedMessage(1, []byte(DefaultHMACSalt), cmdBytes)
	data, err := msg.Marshal()
	require.NoError(t, err)

	got, err := UnmarshalMessage(data)
	require.NoError(t, err)
	assert.Equal(t, cmdBytes, got.CommandBytes)
	require.NotNil(t, got.HMACAuth)
	assert.True(t, VerifyCommand([]byte(DefaultHMACSalt), got.CommandBytes, got.HMACAuth.HMAC))
}

func TestVerifyCommandRejectsTamperedBytes(t *testing.T) {
	mac := SignCommand([]byte(DefaultHMACSalt), []byte("original"))
	assert.False(t, VerifyCommand([]byte(DefaultHMACSalt), []byte("tampered!"), mac))
}

func TestEncodeFrameLayout(t *testing.T) {
	f := &Frame{MessageBytes: []byte("msg-bytes"), ValueBytes: []byte("value-bytes")}
	encoded := EncodeFrame(f)

	assert.Equal(t, byte(FrameMagic), encoded[0])
	assert.Equal(t, 9+len(f.MessageBytes)+len(f.ValueBytes), len(encoded))
}
