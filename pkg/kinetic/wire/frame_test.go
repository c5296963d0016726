package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawgate/rawgate/internal/netio"
)

func newLoopbackPair(t *testing.T) (client, server *netio.Channel) {
	t.Helper()
	ln, err := netio.Listen("127.0.0.1:0", 16)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	deadline := time.Now().Add(2 * time.Second).UnixMilli()
	serverCh := make(chan *netio.Channel, 1)
	go func() {
		c, err := ln.Accept(deadline)
		if err == nil {
			serverCh <- c
		}
	}()

	cl, err := netio.Connect(ln.Addr().String(), deadline)
	require.NoError(t, err)
	sv := <-serverCh
	return cl, sv
}

func TestWriteReadFrameRoundTrip(t *testing.T) {
	client, server := newLoopbackPair(t)
	defer client.Close()
	defer server.Close()

	f := &Frame{MessageBytes: []byte("hello"), ValueBytes: []byte("world")}
	deadline := time.Now().Add(time.Second).UnixMilli()

	go func() {
		_ = WriteFrame(server, f, deadline)
	}()

	got, err := ReadFrame(client, DefaultMaxFrameLength, deadline)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got.MessageBytes))
	assert.Equal(t, "world", string(got.ValueBytes))
}

func TestReadFrameRejectsBadMagic(t *testing.T) {
	client, server := newLoopbackPair(t)
	defer client.Close()
	defer server.Close()

	deadline := time.Now().Add(time.Second).UnixMilli()
	go func() {
		_ = server.SendVectored([][]byte{[]byte("Xbogus header payload of 9plus")}, deadline)
	}()

	_, err := ReadFrame(client, DefaultMaxFrameLength, deadline)
	assert.ErrorIs(t, err, ErrBadMagic)
}
