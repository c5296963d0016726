package netio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoopbackPair(t *testing.T) (client, server *Channel) {
	t.Helper()
	ln, err := Listen("127.0.0.1:0", 16)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	serverCh := make(chan *Channel, 1)
	errCh := make(chan error, 1)
	go func() {
		c, err := ln.Accept(NowMSFuture(2 * time.Second))
		if err != nil {
			errCh <- err
			return
		}
		serverCh <- c
	}()

	cl, err := Connect(ln.Addr().String(), NowMSFuture(2*time.Second))
	require.NoError(t, err)

	select {
	case sv := <-serverCh:
		return cl, sv
	case err := <-errCh:
		t.Fatalf("accept failed: %v", err)
		return nil, nil
	case <-time.After(2 * time.Second):
		t.Fatal("accept timed out")
		return nil, nil
	}
}

// NowMSFuture is a small test helper returning a deadline d in the future.
func NowMSFuture(d time.Duration) int64 {
	return time.Now().Add(d).UnixMilli()
}

func TestReadExactly(t *testing.T) {
	client, server := newLoopbackPair(t)
	defer client.Close()
	defer server.Close()

	go func() {
		_ = server.SendVectored([][]byte{[]byte("hello "), []byte("world")}, NowMSFuture(time.Second))
	}()

	buf := make([]byte, len("hello world"))
	require.NoError(t, client.ReadExactly(buf, NowMSFuture(time.Second)))
	assert.Equal(t, "hello world", string(buf))
}

func TestReadExactlyTimeout(t *testing.T) {
	client, server := newLoopbackPair(t)
	defer client.Close()
	defer server.Close()

	buf := make([]byte, 10)
	err := client.ReadExactly(buf, NowMSFuture(30*time.Millisecond))
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestPollInThenReadSeesSameBytes(t *testing.T) {
	client, server := newLoopbackPair(t)
	defer client.Close()
	defer server.Close()

	go func() {
		_ = server.SendVectored([][]byte{[]byte("X")}, NowMSFuture(time.Second))
	}()

	outcome, err := client.PollIn(NowMSFuture(time.Second))
	require.NoError(t, err)
	assert.Equal(t, OutcomeReady, outcome)

	buf := make([]byte, 1)
	require.NoError(t, client.ReadExactly(buf, NowMSFuture(time.Second)))
	assert.Equal(t, "X", string(buf))
}

func TestSendVectoredResumesWithoutResend(t *testing.T) {
	client, server := newLoopbackPair(t)
	defer client.Close()
	defer server.Close()

	iov := [][]byte{[]byte("AAAA"), []byte("BBBB")}
	require.NoError(t, server.SendVectored(iov, NowMSFuture(time.Second)))

	buf := make([]byte, 8)
	require.NoError(t, client.ReadExactly(buf, NowMSFuture(time.Second)))
	assert.Equal(t, "AAAABBBB", string(buf))
}
