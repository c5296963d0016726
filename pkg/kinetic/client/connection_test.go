package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawgate/rawgate/internal/netio"
	"github.com/rawgate/rawgate/pkg/kinetic/wire"
)

// fakeDrive accepts one connection, sends a banner, then echoes back a
// PUT_RESPONSE for every PUT it receives, ack_sequence matching the
// request's sequence — exercising the ack_sequence lookup the consumer
// uses to match replies. Replies go out in request order.
func fakeDrive(t *testing.T, addr string) {
	t.Helper()
	ln, err := netio.Listen(addr, 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		ch, err := ln.Accept(deadline(5 * time.Second))
		if err != nil {
			return
		}
		defer ch.Close()

		bannerCmd := &wire.Command{
			Header: &wire.Header{MessageType: wire.MessageType_GETLOG_RESPONSE, ConnectionID: 99},
			Status: &wire.Status{Code: wire.StatusCode_SUCCESS},
		}
		bannerBytes, _ := bannerCmd.Marshal()
		bannerMsg := &wire.Message{CommandBytes: bannerBytes}
		bannerMsgBytes, _ := bannerMsg.Marshal()
		_ = wire.WriteFrame(ch, &wire.Frame{MessageBytes: bannerMsgBytes}, deadline(time.Second))

		for {
			frame, err := wire.ReadFrame(ch, wire.DefaultMaxFrameLength, deadline(2*time.Second))
			if err != nil {
				return
			}
			msg, err := wire.UnmarshalMessage(frame.MessageBytes)
			if err != nil {
				return
			}
			cmd, err := wire.UnmarshalCommand(msg.CommandBytes)
			if err != nil || cmd.Header == nil {
				return
			}

			replyCmd := &wire.Command{
				Header: &wire.Header{
					MessageType: wire.MessageType_PUT_RESPONSE,
					AckSequence: cmd.Header.Sequence,
				},
				Status: &wire.Status{Code: wire.StatusCode_SUCCESS},
			}
			replyBytes, _ := replyCmd.Marshal()
			replyMsg := &wire.Message{CommandBytes: replyBytes}
			replyMsgBytes, _ := replyMsg.Marshal()
			_ = wire.WriteFrame(ch, &wire.Frame{MessageBytes: replyMsgBytes}, deadline(time.Second))
		}
	}()
}

func deadline(d time.Duration) int64 { return time.Now().Add(d).UnixMilli() }

func TestRPCRoundTripsThroughFakeDrive(t *testing.T) {
	addr := "127.0.0.1:18123"
	fakeDrive(t, addr)

	conn := New(Config{Addr: addr})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	conn.Start(ctx)
	defer conn.Stop()

	ex := &Exchange{
		Command: &wire.Command{
			Header: &wire.Header{MessageType: wire.MessageType_PUT},
			Body:   &wire.Body{KeyValue: &wire.KeyValue{Key: []byte("C-0-1048576")}},
		},
		Value: []byte("block-data"),
	}
	sync := conn.RPC(ex)

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer waitCancel()
	err := sync.Wait(waitCtx)
	require.NoError(t, err)
	require.NotNil(t, ex.Reply)
	assert.Equal(t, wire.StatusCode_SUCCESS, ex.Reply.Status.Code)
}
